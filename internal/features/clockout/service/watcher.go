package service

import (
	"context"
	"log"
	"sync"
	"time"

	"clockout-watcher/internal/common"
	"clockout-watcher/internal/features/clockout/domain"
	"clockout-watcher/internal/metrics"
)

// Watcher polls the clock-out list on a fixed interval, keeps the
// picture URLs from the current hour, and hands newly seen URLs to the
// image sink.
type Watcher struct {
	provider domain.Provider
	filter   *HourFilter
	sink     domain.ImageSink

	interval time.Duration
	lookback time.Duration

	mu          sync.RWMutex
	running     bool
	lastPollAt  time.Time
	lastPollErr error
	currentHour []string
	accumulated map[string]struct{}

	startOnce sync.Once
}

// NewWatcher creates a watcher polling with the given interval and
// lookback window
func NewWatcher(provider domain.Provider, sink domain.ImageSink, interval, lookback time.Duration) (*Watcher, error) {
	if provider == nil {
		return nil, common.InvalidInputError("provider cannot be nil")
	}
	if sink == nil {
		return nil, common.InvalidInputError("image sink cannot be nil")
	}
	if interval <= 0 {
		return nil, common.InvalidInputError("interval must be positive")
	}
	if lookback <= 0 {
		return nil, common.InvalidInputError("lookback must be positive")
	}

	return &Watcher{
		provider:    provider,
		filter:      NewHourFilter(),
		sink:        sink,
		interval:    interval,
		lookback:    lookback,
		accumulated: make(map[string]struct{}),
	}, nil
}

// Start begins the poll loop. It runs an immediate first poll, then
// polls on every tick until the context is canceled. Subsequent calls
// are no-ops.
func (w *Watcher) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.mu.Lock()
		w.running = true
		w.mu.Unlock()

		go w.run(ctx)
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	log.Printf("Watcher started: interval=%v lookback=%v", w.interval, w.lookback)

	w.poll(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Watcher stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll fetches the lookback window page by page and processes any
// current-hour picture URLs not seen before
func (w *Watcher) poll(ctx context.Context) {
	now := time.Now()
	query := domain.ListQuery{
		StartTime: now.Add(-w.lookback),
		EndTime:   now,
	}

	rows, err := w.fetchAll(ctx, query)
	if err != nil {
		if common.IsContextCanceled(err) {
			return
		}
		metrics.PollsTotal.WithLabelValues("error").Inc()
		w.recordPoll(nil, err)
		log.Printf("Poll failed: %v", err)
		return
	}

	urls := w.filter.CurrentHourURLs(rows)
	fresh := w.recordPoll(urls, nil)
	metrics.PollsTotal.WithLabelValues("success").Inc()

	if len(fresh) > 0 {
		log.Printf("Poll found %d new image URLs (%d in current hour)", len(fresh), len(urls))
		w.sink.Process(ctx, fresh)
	}
}

// fetchAll walks every page of the query window
func (w *Watcher) fetchAll(ctx context.Context, query domain.ListQuery) ([]domain.ClockOutRecord, error) {
	var rows []domain.ClockOutRecord

	query.PageNo = 1
	for {
		page, err := w.provider.GetClockOutList(ctx, query)
		if err != nil {
			return nil, err
		}

		rows = append(rows, page.Rows...)
		if len(page.Rows) == 0 || len(rows) >= page.Total {
			return rows, nil
		}
		query.PageNo++
	}
}

// recordPoll updates the status snapshot and returns the URLs that were
// not seen in any earlier poll
func (w *Watcher) recordPoll(urls []string, pollErr error) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.lastPollAt = time.Now()
	w.lastPollErr = pollErr
	if pollErr != nil {
		return nil
	}

	w.currentHour = urls

	var fresh []string
	for _, u := range urls {
		if _, ok := w.accumulated[u]; ok {
			continue
		}
		w.accumulated[u] = struct{}{}
		fresh = append(fresh, u)
	}
	return fresh
}

// Status returns a point-in-time snapshot of the poll loop
func (w *Watcher) Status() domain.WatcherStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()

	status := domain.WatcherStatus{
		Running:     w.running,
		LastPollAt:  w.lastPollAt,
		CurrentHour: len(w.currentHour),
		Accumulated: len(w.accumulated),
	}
	if w.lastPollErr != nil {
		status.LastPollError = w.lastPollErr.Error()
	}
	return status
}
