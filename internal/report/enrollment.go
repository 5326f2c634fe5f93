package report

import (
	"sort"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

// BuildEnrollment сводит идентичности AD со сводками сертификатов устройств.
// Пользователь считается enrolled, если для него есть сводка.
func BuildEnrollment(identities []secureaccess.Identity, summaries []secureaccess.UserSummary) domain.EnrollmentView {
	byID := make(map[int64]secureaccess.DeviceCertificateCounts, len(summaries))
	for _, s := range summaries {
		if _, dup := byID[int64(s.UserID)]; !dup {
			byID[int64(s.UserID)] = s.DeviceCertificateCounts
		}
	}

	view := domain.EnrollmentView{
		TotalUsers:   len(identities),
		Enrolled:     []domain.EnrolledUser{},
		NotEnrolled:  []domain.Person{},
		MultiDevice:  []domain.EnrolledUser{},
		Distribution: []domain.DistributionSlice{},
	}

	perActive := make(map[int]int)
	for _, id := range identities {
		name, mail := SplitLabel(id.Label)
		person := domain.Person{Usuario: name, Correo: mail}

		counts, ok := byID[id.ID]
		if !ok {
			view.NotEnrolled = append(view.NotEnrolled, person)
			continue
		}

		u := domain.EnrolledUser{
			Person:         person,
			ActiveDevices:  counts.Active,
			ExpiredDevices: counts.Expired,
			RevokedDevices: counts.Revoked,
		}
		view.Enrolled = append(view.Enrolled, u)
		perActive[u.ActiveDevices]++

		if u.ActiveDevices > 0 {
			view.ActiveUsers++
		}
		if u.ActiveDevices > 1 {
			view.MultiDevice = append(view.MultiDevice, u)
		}
	}

	if view.TotalUsers > 0 {
		view.ActivePercent = float64(view.ActiveUsers) / float64(view.TotalUsers) * 100
	}
	view.RemainingPercent = 100 - view.ActivePercent

	for active, users := range perActive {
		view.Distribution = append(view.Distribution, domain.DistributionSlice{ActiveDevices: active, UserCount: users})
	}
	sort.Slice(view.Distribution, func(i, j int) bool {
		a, b := view.Distribution[i], view.Distribution[j]
		if a.UserCount != b.UserCount {
			return a.UserCount > b.UserCount
		}
		return a.ActiveDevices < b.ActiveDevices
	})

	return view
}
