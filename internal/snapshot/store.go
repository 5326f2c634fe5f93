// Package snapshot хранит события активности ZTNA, собранные за текущий день,
// чтобы при следующей загрузке страницы спрашивать у API только новые.
package snapshot

import (
	"context"
	"time"

	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
)

// Store — хранилище почасовых снимков.
type Store interface {
	// Prune удаляет снимки всех дней, кроме day.
	Prune(ctx context.Context, day time.Time) error
	// Load возвращает все события, сохраненные за day.
	Load(ctx context.Context, day time.Time) ([]secureaccess.ZTNAEvent, error)
	// Save дописывает события в снимок часа, которому принадлежит at.
	Save(ctx context.Context, at time.Time, events []secureaccess.ZTNAEvent) error
}

func dayKey(t time.Time) string {
	return t.Format("20060102")
}
