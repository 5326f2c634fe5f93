package report

import (
	"fmt"
	"sort"
	"time"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

// LoginTimeLayout — формат loginTime в ответе API: "Sep 10 2024 2:15:33 PM UTC".
const LoginTimeLayout = "Jan 2 2006 3:04:05 PM MST"

const displayLayout = "2006-01-02 15:04:05"

// ParseLoginTime разбирает время входа. Часы на стенке всегда трактуются как UTC,
// независимо от аббревиатуры пояса в строке.
func ParseLoginTime(s string) (time.Time, error) {
	t, err := time.Parse(LoginTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("report: parse login time %q: %w", s, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC), nil
}

// FormatActive печатает длительность сессии: "2d 3h 05m", "3h 05m" или "5m".
func FormatActive(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	days := int(d / (24 * time.Hour))
	hours := int(d % (24 * time.Hour) / time.Hour)
	minutes := int(d % time.Hour / time.Minute)

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %02dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %02dm", hours, minutes)
	default:
		return fmt.Sprintf("%dm", minutes)
	}
}

// BuildTunnels строит таблицу подключений, самые долгие сессии сверху.
// Подключения с неразборчивым loginTime остаются в таблице без времени, в конце.
func BuildTunnels(conns []secureaccess.VPNConnection, total int, idmap map[string]string, now time.Time, loc *time.Location) domain.TunnelView {
	if loc == nil {
		loc = time.UTC
	}

	type row struct {
		domain.TunnelRow
		known bool
	}
	rows := make([]row, 0, len(conns))

	for _, c := range conns {
		r := row{TunnelRow: domain.TunnelRow{
			DeviceName: c.DeviceName,
			PublicIP:   c.PublicIP,
			AssignedIP: c.AssignedIP,
			Usuario:    "Unknown",
		}}
		if r.AssignedIP == "" {
			r.AssignedIP = "N/A"
		}
		if u, ok := idmap[ExtractIdentifier(c.DeviceName)]; ok {
			r.Usuario = u
		}

		if login, err := ParseLoginTime(c.LoginTime); err == nil {
			active := now.Sub(login)
			r.LoginTime = login.In(loc).Format(displayLayout)
			r.ActiveTime = FormatActive(active)
			r.ActiveMinutes = active.Minutes()
			r.known = true
		}
		rows = append(rows, r)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].known != rows[j].known {
			return rows[i].known
		}
		return rows[i].ActiveMinutes > rows[j].ActiveMinutes
	})

	view := domain.TunnelView{Total: total, Rows: make([]domain.TunnelRow, len(rows))}
	for i, r := range rows {
		view.Rows[i] = r.TunnelRow
	}
	return view
}
