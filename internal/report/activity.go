package report

import (
	"sort"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

const unknownLabel = "Unknown"

// BuildActivity считает обращения к приватным приложениям и находит
// приватные ресурсы, к которым за окно никто не обращался.
func BuildActivity(events []secureaccess.ZTNAEvent, resources []string, window domain.Window) domain.ActivityView {
	counts := make(map[string]int)
	for _, e := range events {
		for _, app := range e.AllApplications {
			if app.Type != secureaccess.ApplicationTypePrivate {
				continue
			}
			label := app.Label
			if label == "" {
				label = unknownLabel
			}
			counts[label]++
		}
	}

	view := domain.ActivityView{
		Window:     window,
		EventCount: len(events),
		Counts:     make([]domain.ResourceCount, 0, len(counts)),
		Inactive:   []string{},
	}
	for label, n := range counts {
		view.Counts = append(view.Counts, domain.ResourceCount{Resource: label, Count: n})
	}
	sort.Slice(view.Counts, func(i, j int) bool {
		if view.Counts[i].Count != view.Counts[j].Count {
			return view.Counts[i].Count > view.Counts[j].Count
		}
		return view.Counts[i].Resource < view.Counts[j].Resource
	})

	seen := make(map[string]struct{}, len(resources))
	for _, name := range resources {
		if _, active := counts[name]; active {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		view.Inactive = append(view.Inactive, name)
	}
	sort.Strings(view.Inactive)

	return view
}
