package price

import (
	"context"
	"log/slog"
	"time"
)

// RefreshFunc runs one full refresh for a symbol/interval series.
type RefreshFunc func(ctx context.Context, symbol, interval string) error

// PriceRecorder keeps a series current by refreshing it on a fixed period.
type PriceRecorder struct {
	refresh  RefreshFunc
	symbol   string
	interval string
	every    time.Duration
	log      *slog.Logger
}

func NewPriceRecorder(refresh RefreshFunc, symbol, interval string, every time.Duration, log *slog.Logger) *PriceRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &PriceRecorder{
		refresh:  refresh,
		symbol:   symbol,
		interval: interval,
		every:    every,
		log:      log,
	}
}

// StartRecording runs the refresh loop in the background until ctx is done.
// The returned channel closes when the loop exits.
func (r *PriceRecorder) StartRecording(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.run(ctx)
	}()
	return done
}

func (r *PriceRecorder) run(ctx context.Context) {
	ticker := time.NewTicker(r.every)
	defer ticker.Stop()

	r.log.Info("starting scheduled refresh", "symbol", r.symbol, "interval", r.interval, "every", r.every.String())

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopping scheduled refresh", "symbol", r.symbol, "interval", r.interval)
			return
		case <-ticker.C:
			if err := r.refresh(ctx, r.symbol, r.interval); err != nil {
				r.log.Error("scheduled refresh failed", "symbol", r.symbol, "interval", r.interval, "error", err)
			}
		}
	}
}
