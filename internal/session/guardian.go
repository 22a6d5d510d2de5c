package session

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

// Change is published when the session state flips.
type Change struct {
	State domain.SessionState
	At    time.Time
}

// HubConfig locates the identity hub and this system's public address.
type HubConfig struct {
	VerifyURL     string
	SystemID      string
	PublicBaseURL string
}

// Guardian owns the session state. It moves to expired at most once per
// incident and back to valid only through Restore.
type Guardian struct {
	store   Store
	hub     HubConfig
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu          sync.Mutex
	subscribers map[uint64]chan Change
	nextID      uint64
}

func NewGuardian(store Store, hub HubConfig, metrics *observability.Metrics, logger *zap.Logger) (*Guardian, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if _, err := url.ParseRequestURI(strings.TrimSpace(hub.VerifyURL)); err != nil {
		return nil, fmt.Errorf("invalid hub verify url: %w", err)
	}
	base, err := url.ParseRequestURI(strings.TrimSpace(hub.PublicBaseURL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid public base url %q", hub.PublicBaseURL)
	}
	if strings.TrimSpace(hub.SystemID) == "" {
		return nil, fmt.Errorf("system id is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hub.VerifyURL = strings.TrimSpace(hub.VerifyURL)
	hub.PublicBaseURL = strings.TrimRight(strings.TrimSpace(hub.PublicBaseURL), "/")

	return &Guardian{
		store:       store,
		hub:         hub,
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		subscribers: make(map[uint64]chan Change),
	}, nil
}

// ReportUnauthorized records an authorization failure. Only the failure that
// performs the valid to expired transition publishes a Change.
func (g *Guardian) ReportUnauthorized(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithoutCancel(ctx)

	transitioned, err := g.store.MarkExpired(ctx)
	if err != nil {
		observability.WithContextLogger(g.logger, ctx).Error("failed to mark session expired", zap.Error(err))
		return
	}
	if !transitioned {
		return
	}

	g.metrics.IncSessionExpiration()
	observability.WithContextLogger(g.logger, ctx).Warn("session expired")
	g.publish(Change{State: domain.SessionExpired, At: g.now()})
}

// Restore marks the session valid again after a successful handshake.
func (g *Guardian) Restore(ctx context.Context) error {
	if err := g.store.MarkValid(ctx); err != nil {
		return fmt.Errorf("restore session: %w", err)
	}

	g.logger.Info("session restored")
	g.publish(Change{State: domain.SessionValid, At: g.now()})
	return nil
}

func (g *Guardian) State(ctx context.Context) (domain.SessionState, error) {
	return g.store.Load(ctx)
}

// Subscribe returns a channel of state changes and a function that detaches
// it. A slow subscriber only sees the latest change; the publisher never
// blocks.
func (g *Guardian) Subscribe() (<-chan Change, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++
	ch := make(chan Change, 1)
	g.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			delete(g.subscribers, id)
			close(ch)
		})
	}
}

func (g *Guardian) publish(change Change) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, ch := range g.subscribers {
		select {
		case ch <- change:
			continue
		default:
		}

		// Publishers are serialized by mu, so after replacing the unread
		// change the slot is free.
		select {
		case stale := <-ch:
			g.logger.Debug("replacing unread session change",
				zap.String("stale", stale.State.String()),
				zap.String("state", change.State.String()),
			)
		default:
		}
		ch <- change
	}
}

// RecoveryURL is the identity hub address that sends the user back to from
// once credentials are re-validated.
func (g *Guardian) RecoveryURL(from string) string {
	location := g.CurrentLocation(from)

	sep := "?"
	if strings.Contains(g.hub.VerifyURL, "?") {
		sep = "&"
	}
	return g.hub.VerifyURL + sep +
		"system_id=" + url.QueryEscape(g.hub.SystemID) +
		"&redirect_url=" + url.QueryEscape(location)
}

// CurrentLocation resolves from against the public base url. Anything that
// is not a local path or a same-origin url resolves to the root.
func (g *Guardian) CurrentLocation(from string) string {
	from = strings.TrimSpace(from)
	if from == "" {
		return g.hub.PublicBaseURL + "/"
	}

	if isLocalPath(from) {
		return g.hub.PublicBaseURL + from
	}

	target, err := url.Parse(from)
	base, baseErr := url.Parse(g.hub.PublicBaseURL)
	if err == nil && baseErr == nil && target.Scheme == base.Scheme && target.Host == base.Host {
		return target.String()
	}
	return g.hub.PublicBaseURL + "/"
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}
