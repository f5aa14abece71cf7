package sessions

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/internal/handshake"
	"github.com/angelmondragon/tebex-storefront/internal/snapshots"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/metrics"
)

const defaultIdleTTL = 30 * time.Minute

// Session is one visitor's store and the coordinator that drives its login detour.
type Session struct {
	ID          string
	Store       *basket.Store
	Coordinator *handshake.Coordinator
	Notices     *Notices
	Directives  *Directives

	initOnce     sync.Once
	stopAutosave func()
	lastSeen     time.Time
}

// Params configure a Registry.
type Params struct {
	Commerce  basket.Commerce
	Persister snapshots.Persister
	Handshake handshake.Options
	IdleTTL   time.Duration
	Logger    *logger.Logger
	Metrics   *metrics.BasketMetrics
}

// Registry owns the live sessions of this process.
type Registry struct {
	commerce  basket.Commerce
	persister snapshots.Persister
	handshake handshake.Options
	idleTTL   time.Duration
	logg      *logger.Logger
	metrics   *metrics.BasketMetrics
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry validates params. A nil persister keeps baskets in memory only.
func NewRegistry(params Params) (*Registry, error) {
	if params.Commerce == nil {
		return nil, fmt.Errorf("commerce client required")
	}
	if _, err := handshake.OriginOf(params.Handshake.PageOrigin); err != nil {
		return nil, fmt.Errorf("page origin: %w", err)
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	return &Registry{
		commerce:  params.Commerce,
		persister: params.Persister,
		handshake: params.Handshake,
		idleTTL:   idle,
		logg:      logg,
		metrics:   params.Metrics,
		now:       time.Now,
		sessions:  make(map[string]*Session),
	}, nil
}

// Get returns the live session for id, building it on first use. A new session restores
// its persisted basket, starts autosave and refreshes the basket once.
func (r *Registry) Get(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id required")
	}
	r.mu.Lock()
	sess, ok := r.sessions[id]
	if !ok {
		built, err := r.build(id)
		if err != nil {
			r.mu.Unlock()
			return nil, err
		}
		r.sessions[id] = built
		sess = built
	}
	sess.lastSeen = r.now()
	r.mu.Unlock()

	sess.initOnce.Do(func() { r.initialize(ctx, sess) })
	return sess, nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) build(id string) (*Session, error) {
	notices := NewNotices(0)
	directives := &Directives{}

	opts := r.handshake
	opts.Opener = directives
	opts.Screens = pageScreens{}
	opts.Notifier = notices
	opts.Logger = r.logg
	opts.Metrics = r.metrics
	coord, err := handshake.New(opts)
	if err != nil {
		return nil, err
	}

	store, err := basket.NewStore(basket.Deps{
		Commerce: r.commerce,
		Opener:   coord,
		Locator:  basket.LocatorFunc(currentURL),
		Logger:   r.logg,
		Metrics:  r.metrics,
	})
	if err != nil {
		return nil, err
	}
	coord.Bind(store)

	return &Session{
		ID:          id,
		Store:       store,
		Coordinator: coord,
		Notices:     notices,
		Directives:  directives,
	}, nil
}

func (r *Registry) initialize(ctx context.Context, sess *Session) {
	ctx = r.logg.WithSessionID(ctx, sess.ID)
	if r.persister == nil {
		return
	}

	snap, ok, err := r.persister.Load(ctx, sess.ID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "persisted basket unreadable; starting empty")
	}
	if ok {
		sess.Store.Restore(snap)
	}
	sess.stopAutosave = snapshots.Autosave(sess.Store, r.persister, sess.ID, r.logg)

	if err := sess.Store.Initialize(ctx); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "restored basket could not be refreshed")
	}
}

// Sweep evicts sessions idle longer than the idle TTL and reports how many it removed.
// Persisted baskets survive eviction.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var idle []*Session
	for id, sess := range r.sessions {
		if sess.lastSeen.Before(cutoff) && !sess.Store.State().IsAuthenticating {
			idle = append(idle, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range idle {
		r.shutdown(sess)
	}
	if len(idle) > 0 {
		r.logg.Debug(r.logg.WithField(ctx, "evicted", len(idle)), "idle sessions evicted")
	}
	return len(idle)
}

// Run sweeps on a fixed cadence until ctx is canceled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.idleTTL / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Close shuts every session down and waits for in-flight login resumes.
func (r *Registry) Close() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for id, sess := range r.sessions {
		all = append(all, sess)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, sess := range all {
		r.shutdown(sess)
	}
}

func (r *Registry) shutdown(sess *Session) {
	sess.Coordinator.Close()
	sess.initOnce.Do(func() {})
	if sess.stopAutosave != nil {
		sess.stopAutosave()
	}
}
