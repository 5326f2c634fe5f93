package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/secure-access-dashboard/internal/domain"
	"github.com/xela07ax/secure-access-dashboard/internal/infra"
	"github.com/xela07ax/secure-access-dashboard/internal/secureaccess"
	"github.com/xela07ax/secure-access-dashboard/internal/snapshot"
)

// ZTNASource — часть клиента Secure Access, нужная сборщику активности.
type ZTNASource interface {
	ZTNAActivity(ctx context.Context, from, to time.Time, limit, offset int) ([]secureaccess.ZTNAEvent, error)
}

// CollectorConfig задает рабочий день и пагинацию отчета активности.
type CollectorConfig struct {
	Location     *time.Location
	DayStartHour int
	PageSize     int
	MaxOffset    int // API не отдает записи дальше этого смещения
}

// Collector догружает события ZTNA с момента последнего сохраненного события.
// API не отдает больше MaxOffset записей на запрос, поэтому окно режется на
// MaxOffset/PageSize равных отрезков и каждый листается отдельно.
type Collector struct {
	mu      sync.Mutex
	api     ZTNASource
	store   snapshot.Store
	cfg     CollectorConfig
	metrics *infra.Metrics
	logger  *zap.Logger
}

func NewCollector(api ZTNASource, store snapshot.Store, cfg CollectorConfig, metrics *infra.Metrics, logger *zap.Logger) *Collector {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5000
	}
	if cfg.MaxOffset < cfg.PageSize {
		cfg.MaxOffset = cfg.PageSize
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	return &Collector{api: api, store: store, cfg: cfg, metrics: metrics, logger: logger.Named("ztna_collector")}
}

// DayStart — начало рабочего дня, к которому относится now.
func (c *Collector) DayStart(now time.Time) time.Time {
	now = now.In(c.cfg.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), c.cfg.DayStartHour, 0, 0, 0, c.cfg.Location)
}

// Collect возвращает все события дня: сохраненные ранее и догруженные до now.
// Вызовы сериализуются, чтобы два запроса страницы не скачали одно окно дважды.
func (c *Collector) Collect(ctx context.Context, now time.Time) ([]secureaccess.ZTNAEvent, domain.Window, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now = now.In(c.cfg.Location)
	window := domain.Window{Start: c.DayStart(now), End: now}
	log := c.logger.With(zap.String("trace_id", infra.TraceID(ctx)))

	if err := c.store.Prune(ctx, now); err != nil {
		log.Warn("failed to prune old snapshots", zap.Error(err))
	}

	// Снимки недоступны: собираем день заново, но не сохраняем, иначе при каждом
	// вызове весь день дописывался бы в снимок текущего часа повторно
	persist := true
	stored, err := c.store.Load(ctx, now)
	if err != nil {
		log.Warn("failed to load snapshots, refetching the whole day", zap.Error(err))
		stored = nil
		persist = false
	}

	from := window.Start
	if last, ok := lastTimestamp(stored); ok {
		// +1ms: граница from включительная, иначе последнее событие придет повторно
		from = time.UnixMilli(last + 1).In(c.cfg.Location)
	}

	fresh, err := c.fetch(ctx, log, from, now)
	if err != nil {
		return nil, window, err
	}

	if len(fresh) > 0 {
		c.metrics.ZTNAEventsCollected.Add(float64(len(fresh)))
		if persist {
			if err := c.store.Save(ctx, now, fresh); err != nil {
				log.Error("failed to save snapshot", zap.Error(err))
			}
		}
	}

	log.Info("ztna activity collected",
		zap.Int("stored", len(stored)),
		zap.Int("fetched", len(fresh)),
		zap.Time("from", from),
		zap.Time("to", now),
	)
	return append(stored, fresh...), window, nil
}

// fetch листает [from, to) отрезками. Ошибка отрезка логируется и не роняет сбор,
// уже полученные страницы сохраняются. Прерывается только по отмене контекста.
func (c *Collector) fetch(ctx context.Context, log *zap.Logger, from, to time.Time) ([]secureaccess.ZTNAEvent, error) {
	if !from.Before(to) {
		return nil, nil
	}

	span := to.Sub(from)
	// Отрезок не короче миллисекунды: API принимает границы в мс
	chunks := min(c.cfg.MaxOffset/c.cfg.PageSize, max(int(span/time.Millisecond), 1))

	var events []secureaccess.ZTNAEvent
	for i := range chunks {
		start := from.Add(span * time.Duration(i) / time.Duration(chunks))
		end := to
		if i < chunks-1 {
			end = from.Add(span * time.Duration(i+1) / time.Duration(chunks))
		}

		for offset := 0; offset < c.cfg.MaxOffset; offset += c.cfg.PageSize {
			page, err := c.api.ZTNAActivity(ctx, start, end, c.cfg.PageSize, offset)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				if errors.Is(err, secureaccess.ErrMissingCredentials) {
					return nil, err
				}
				log.Error("failed to fetch ztna chunk",
					zap.Time("from", start), zap.Time("to", end), zap.Int("offset", offset), zap.Error(err))
				break
			}
			events = append(events, page...)
			if len(page) < c.cfg.PageSize {
				break
			}
		}
	}
	return events, nil
}

func lastTimestamp(events []secureaccess.ZTNAEvent) (int64, bool) {
	if len(events) == 0 {
		return 0, false
	}
	last := events[0].Timestamp
	for _, e := range events[1:] {
		last = max(last, e.Timestamp)
	}
	return last, true
}
