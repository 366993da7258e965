package services

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PauseGate is the shared rate-limit guard for outbound calls. One component
// replaces per-call-site boolean flags: when any caller reports throttling,
// every caller backs off for the pause window. Retries while paused are
// bounded; each report past the limit extends the window.
type PauseGate struct {
	mu          sync.Mutex
	pause       time.Duration
	maxRetries  int
	pausedUntil time.Time
	retries     int
	now         func() time.Time
}

func NewPauseGate(pause time.Duration, maxRetries int) *PauseGate {
	return &PauseGate{pause: pause, maxRetries: maxRetries, now: time.Now}
}

// Allow reports whether outbound calls may proceed.
func (g *PauseGate) Allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.now().Before(g.pausedUntil)
}

// ReportRateLimit records a throttling response and opens the pause window.
func (g *PauseGate) ReportRateLimit() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retries++
	until := g.now().Add(g.pause)
	if g.retries > g.maxRetries {
		// Repeated throttling within the window: extend rather than hammer.
		until = g.now().Add(g.pause * time.Duration(g.retries-g.maxRetries+1))
	}
	g.pausedUntil = until
	logrus.WithFields(logrus.Fields{
		"paused_until": until.Format(time.RFC3339),
		"retries":      g.retries,
	}).Warn("Rate limit reported, pausing outbound calls")
}

// ReportSuccess resets the retry counter after a clean call.
func (g *PauseGate) ReportSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retries = 0
}

// PausedUntil returns the end of the current pause window, zero when open.
func (g *PauseGate) PausedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pausedUntil
}
