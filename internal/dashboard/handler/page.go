package handler

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/i18n"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

//go:embed templates/*.html
var templateFS embed.FS

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer(tr *i18n.Translator) (*pageRenderer, error) {
	funcs := template.FuncMap{
		// t "enrollment.enrolled" "Count" 3
		"t": func(id string, kv ...any) (string, error) {
			if len(kv)%2 != 0 {
				return "", fmt.Errorf("t %s: odd number of template args", id)
			}
			if len(kv) == 0 {
				return tr.T(id), nil
			}
			data := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				key, ok := kv[i].(string)
				if !ok {
					return "", fmt.Errorf("t %s: key %v is not a string", id, kv[i])
				}
				data[key] = kv[i+1]
			}
			return tr.T(id, data), nil
		},
		"pct": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
		"inc": func(i int) int { return i + 1 },
	}

	tmpl, err := template.New("page").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("handler: parse templates: %w", err)
	}
	return &pageRenderer{tmpl: tmpl}, nil
}

type pageData struct {
	Lang               string
	Author             string
	ShowLogos          bool
	LogoError          string
	CredentialsMissing bool

	Enrollment    *domain.EnrollmentView
	EnrollmentErr string
	Tunnels       *domain.TunnelView
	TunnelsErr    string
	Activity      *domain.ActivityView
	ActivityErr   string
	Period        period

	Charts charts
}

// period — подписи окна активности: "5am", "10", "septiembre", "2024-09-10", "13:45:00".
type period struct {
	From  string
	Day   string
	Month string
	Date  string
	Time  string
}

type charts struct {
	Distribution *pieChart `json:"distribution,omitempty"`
	Activity     *barChart `json:"activity,omitempty"`
}

type pieChart struct {
	Title  string   `json:"title"`
	Labels []string `json:"labels"`
	Values []int    `json:"values"`
}

type barChart struct {
	Title  string   `json:"title"`
	X      []string `json:"x"`
	Y      []int    `json:"y"`
	XLabel string   `json:"x_label"`
	YLabel string   `json:"y_label"`
}

// Page рендерит страницу дашборда целиком.
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	o := h.service.Overview(r.Context())
	logos := h.service.Logos()

	data := pageData{
		Lang:       h.tr.Lang(),
		Author:     h.author,
		ShowLogos:  logos.Ready(),
		Enrollment: o.Enrollment,
		Tunnels:    o.Tunnels,
		Activity:   o.Activity,
	}
	if logos.Err != nil {
		data.LogoError = logos.Err.Error()
	}
	data.EnrollmentErr = h.viewError(&data, o.EnrollmentErr)
	data.TunnelsErr = h.viewError(&data, o.TunnelsErr)
	data.ActivityErr = h.viewError(&data, o.ActivityErr)

	if o.Enrollment != nil {
		data.Charts.Distribution = h.distributionChart(o.Enrollment)
	}
	if o.Activity != nil {
		loc := h.service.Location()
		end := o.Activity.Window.End.In(loc)
		data.Period = period{
			From:  o.Activity.Window.Start.In(loc).Format("3pm"),
			Day:   end.Format("02"),
			Month: h.tr.Month(end.Month()),
			Date:  end.Format("2006-01-02"),
			Time:  end.Format("15:04:05"),
		}
		// События есть, но ни одного к приватным приложениям: рисуем пустой график
		if o.Activity.EventCount > 0 {
			data.Charts.Activity = h.activityChart(o.Activity, data.Period)
		}
	}

	// Рендерим в буфер, чтобы ошибка шаблона не оставила полстраницы
	var buf bytes.Buffer
	if err := h.page.tmpl.ExecuteTemplate(&buf, "page.html", data); err != nil {
		h.logger.Error("page render failed", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// viewError превращает ошибку раздела в текст для страницы. Отсутствие ключей API
// показывается один раз вверху страницы, а не в каждом разделе.
func (h *DashboardHandler) viewError(data *pageData, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, secureaccess.ErrMissingCredentials) {
		data.CredentialsMissing = true
		return ""
	}
	return err.Error()
}

func (h *DashboardHandler) distributionChart(v *domain.EnrollmentView) *pieChart {
	c := &pieChart{Title: h.tr.T("enrollment.distribution")}
	for _, s := range v.Distribution {
		c.Labels = append(c.Labels, strconv.Itoa(s.ActiveDevices))
		c.Values = append(c.Values, s.UserCount)
	}
	return c
}

func (h *DashboardHandler) activityChart(v *domain.ActivityView, p period) *barChart {
	c := &barChart{
		Title: h.tr.T("activity.top", map[string]any{
			"From": p.From, "Day": p.Day, "Month": p.Month, "Date": p.Date, "Time": p.Time,
		}),
		X:      []string{},
		Y:      []int{},
		XLabel: h.tr.T("column.private_resource"),
		YLabel: h.tr.T("column.count"),
	}
	for _, rc := range v.Counts {
		c.X = append(c.X, rc.Resource)
		c.Y = append(c.Y, rc.Count)
	}
	return c
}
