package session

import "time"

// timerHandle is a re-armable one-shot timer owned by a session. Arm and
// Cancel are only called from the session's event goroutine; the fire
// callback is delivered back through the same goroutine by the caller, so
// a stale fire is detected by generation mismatch rather than locking.
type timerHandle struct {
	timer *time.Timer
	gen   uint64
}

// arm (re)schedules the timer. fire receives the generation it was armed
// with; the session loop drops fires whose generation is stale.
func (h *timerHandle) arm(d time.Duration, fire func(gen uint64)) {
	h.cancel()
	h.gen++
	gen := h.gen
	h.timer = time.AfterFunc(d, func() { fire(gen) })
}

// cancel stops a pending fire. Safe to call when nothing is armed.
func (h *timerHandle) cancel() {
	h.gen++
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// live reports whether gen corresponds to the most recent arm
func (h *timerHandle) live(gen uint64) bool {
	return gen == h.gen
}
