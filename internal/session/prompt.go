package session

import (
	"context"
	"sync"
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"go.uber.org/zap"
)

// Prompt is the single presentation consumer of session changes. It is open
// from the first expiry of an incident until the session is restored.
type Prompt struct {
	guardian *Guardian
	logger   *zap.Logger

	mu       sync.RWMutex
	open     bool
	openedAt time.Time
	shown    int
}

func NewPrompt(guardian *Guardian, logger *zap.Logger) *Prompt {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prompt{guardian: guardian, logger: logger}
}

// Run consumes changes until ctx is done.
func (p *Prompt) Run(ctx context.Context) {
	changes, unsubscribe := p.guardian.Subscribe()
	defer unsubscribe()

	if state, err := p.guardian.State(ctx); err == nil && state == domain.SessionExpired {
		p.apply(Change{State: state, At: time.Now()})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			p.apply(change)
		}
	}
}

func (p *Prompt) apply(change Change) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch change.State {
	case domain.SessionExpired:
		if p.open {
			return
		}
		p.open = true
		p.openedAt = change.At
		p.shown++
		p.logger.Warn("session expired, recovery required")
	case domain.SessionValid:
		p.open = false
		p.openedAt = time.Time{}
	}
}

// Open reports whether the prompt is showing. It first reconciles with the
// stored state, which another process may have changed.
func (p *Prompt) Open() (bool, time.Time) {
	if state, err := p.guardian.State(context.Background()); err == nil {
		p.apply(Change{State: state, At: time.Now()})
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.open, p.openedAt
}

// Shown counts the incidents for which the prompt was opened.
func (p *Prompt) Shown() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.shown
}
