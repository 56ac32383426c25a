package mcp

import (
	"context"
	"os"
	"time"

	"cbrowser/internal/logging"
)

// parentPollInterval is the PID check period.
var parentPollInterval = 2 * time.Second

// WatchParent calls stop once the process that launched serve goes away,
// detected as a change of the parent PID. Without it a client crash leaves
// serve and its Chrome running.
//
// Stdin belongs to the stdio transport; WatchParent only polls the PID.
// The watcher ends with ctx.
func WatchParent(ctx context.Context, stop context.CancelFunc) {
	ppid := os.Getppid()
	interval := parentPollInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if os.Getppid() != ppid {
					logging.New("mcp").Warn("client process gone, stopping server", "parent_pid", ppid)
					stop()
					return
				}
			}
		}
	}()
}
