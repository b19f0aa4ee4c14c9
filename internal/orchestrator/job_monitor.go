package orchestrator

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/reportcompiler/internal/metrics"
)

// DepthReader reports queue lengths: pending, delayed and dead-lettered.
type DepthReader interface {
	Depths(ctx context.Context) (int64, int64, int64, error)
}

// MonitorQueue publishes queue depths as gauges every interval until ctx
// ends.
func MonitorQueue(ctx context.Context, q DepthReader, every time.Duration) {
	if every <= 0 {
		every = 15 * time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stream, delayed, dlq, err := q.Depths(ctx)
			if err != nil {
				log.Warn().Err(err).Msg("failed to read queue depths")
				continue
			}
			metrics.SetQueueDepth("stream", stream)
			metrics.SetQueueDepth("delayed", delayed)
			metrics.SetQueueDepth("dlq", dlq)
			log.Debug().
				Int64("stream", stream).
				Int64("delayed", delayed).
				Int64("dlq", dlq).
				Msg("queue depths")
		}
	}
}
