package orchestrator

import (
	"context"
	"time"

	"github.com/local/reportcompiler/internal/tempdir"
)

// RunCleanup sweeps scratch directories older than maxAge under parent
// every interval until ctx ends. Compiles remove their own directories;
// this catches the ones left by killed processes.
func RunCleanup(ctx context.Context, parent string, maxAge, every time.Duration) {
	if every <= 0 {
		every = maxAge / 2
	}
	if every <= 0 {
		return
	}
	tempdir.Sweep(parent, maxAge)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tempdir.Sweep(parent, maxAge)
		}
	}
}
