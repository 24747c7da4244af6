// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import "log/slog"

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged under name rather than crashing the process. Use it for every
// fire-and-forget goroutine: audit writes, background jobs, side servers.
func Go(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "goroutine", name, "panic", r)
			}
		}()
		fn()
	}()
}
