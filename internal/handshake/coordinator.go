package handshake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/metrics"
)

const (
	DefaultGuardDelay   = time.Second
	DefaultAbandonAfter = 10 * time.Minute

	MessageResumeLoading = "Finalizing login..."
	MessageResumeSuccess = "Login successful! Resuming..."
	MessageResumeError   = "Login successful, but failed to refresh cart."
	MessageAbandoned     = "Login timed out. Please try adding the item again."

	abandonedKey = "auth-abandoned"
)

var (
	errNoWindowOpener = errors.New("no window opener configured")
	errUnbound        = errors.New("coordinator is not bound to a store")
)

// Store is the part of the basket store the coordinator drives.
type Store interface {
	State() basket.State
	SetAuthenticating(status bool)
	CompleteAuth(ctx context.Context) error
	CancelAuth()
}

// Notifier surfaces transient progress. Calls sharing a key update one notification.
type Notifier interface {
	Loading(key, message string)
	Success(key, message string)
	Error(key, message string)
}

// Options configures a Coordinator.
type Options struct {
	PageOrigin   string
	GuardDelay   time.Duration
	AbandonAfter time.Duration
	PopupWidth   int
	PopupHeight  int
	Opener       WindowOpener
	Screens      ScreenReporter
	Notifier     Notifier
	Logger       *logger.Logger
	Metrics      *metrics.BasketMetrics
}

// Coordinator bridges the login window back to the primary context's store.
type Coordinator struct {
	origin       string
	guardDelay   time.Duration
	abandonAfter time.Duration
	width        int
	height       int
	opener       WindowOpener
	screens      ScreenReporter
	notifier     Notifier
	logger       *logger.Logger
	metrics      *metrics.BasketMetrics

	store      atomic.Pointer[storeRef]
	processing atomic.Bool
	resumes    sync.WaitGroup

	timerMu      sync.Mutex
	abandonTimer *time.Timer
	generation   uint64
}

type storeRef struct {
	store Store
}

var _ basket.LoginOpener = (*Coordinator)(nil)

// New builds an unbound coordinator. Call Bind once the store exists.
func New(opts Options) (*Coordinator, error) {
	origin, err := OriginOf(opts.PageOrigin)
	if err != nil {
		return nil, fmt.Errorf("page origin: %w", err)
	}
	guard := opts.GuardDelay
	if guard <= 0 {
		guard = DefaultGuardDelay
	}
	abandon := opts.AbandonAfter
	if abandon < 0 {
		abandon = 0
	}
	logg := opts.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Coordinator{
		origin:       origin,
		guardDelay:   guard,
		abandonAfter: abandon,
		width:        opts.PopupWidth,
		height:       opts.PopupHeight,
		opener:       opts.Opener,
		screens:      opts.Screens,
		notifier:     opts.Notifier,
		logger:       logg,
		metrics:      opts.Metrics,
	}, nil
}

// Bind attaches the store whose auth flow this coordinator drives.
func (c *Coordinator) Bind(store Store) {
	if store == nil {
		c.store.Store(nil)
		return
	}
	c.store.Store(&storeRef{store: store})
}

func (c *Coordinator) bound() Store {
	ref := c.store.Load()
	if ref == nil {
		return nil
	}
	return ref.store
}

// PageOrigin is the only origin whose messages are trusted.
func (c *Coordinator) PageOrigin() string {
	return c.origin
}

// ReturnURL builds the login return destination for the current page.
func (c *Coordinator) ReturnURL(currentURL string) (string, error) {
	return ReturnURL(currentURL)
}

// OpenLogin opens a centered login window and arms the abandonment timer.
func (c *Coordinator) OpenLogin(ctx context.Context, loginURL string) error {
	if c.opener == nil {
		return errNoWindowOpener
	}
	screen := Screen{}
	if c.screens != nil {
		if reported, ok := c.screens.Screen(ctx); ok {
			screen = reported
		}
	}
	directive := CenteredWindow(loginURL, screen, c.width, c.height)
	if err := c.opener.Open(ctx, directive); err != nil {
		return fmt.Errorf("open login window: %w", err)
	}
	c.armAbandonment(ctx)
	c.logger.Info(c.logger.WithField(ctx, "window", directive.Name), "login window opened")
	return nil
}

// Deliver processes one cross-window message. Only an exact-origin, exact-signal message
// that is not a duplicate resumes the store.
func (c *Coordinator) Deliver(ctx context.Context, msg Message) Outcome {
	outcome := c.deliver(ctx, msg)
	c.metrics.IncSignal(string(outcome))
	if outcome != OutcomeAccepted {
		c.logger.Debug(c.logger.WithFields(ctx, map[string]any{"outcome": string(outcome), "origin": msg.Origin}), "auth message ignored")
	}
	return outcome
}

func (c *Coordinator) deliver(ctx context.Context, msg Message) Outcome {
	store := c.bound()
	if store == nil {
		return OutcomeUnbound
	}
	if msg.Origin != c.origin {
		return OutcomeRejectedOrigin
	}
	if _, err := ParseSignal(msg.Data); err != nil {
		return OutcomeRejectedSignal
	}
	if !c.processing.CompareAndSwap(false, true) {
		return OutcomeDuplicate
	}

	c.disarmAbandonment()
	store.SetAuthenticating(false)

	key := "auth-resume-" + uuid.NewString()
	c.notify(func(n Notifier) { n.Loading(key, MessageResumeLoading) })

	resumeCtx := context.WithoutCancel(ctx)
	c.resumes.Add(1)
	go func() {
		defer c.resumes.Done()
		defer time.AfterFunc(c.guardDelay, func() { c.processing.Store(false) })

		if err := store.CompleteAuth(resumeCtx); err != nil {
			c.logger.Warn(c.logger.WithField(resumeCtx, "error", err.Error()), "auth resume failed")
			c.notify(func(n Notifier) { n.Error(key, MessageResumeError) })
			return
		}
		c.notify(func(n Notifier) { n.Success(key, MessageResumeSuccess) })
	}()
	return OutcomeAccepted
}

// Cancel is the manual dismissal of the overlay.
func (c *Coordinator) Cancel() error {
	store := c.bound()
	if store == nil {
		return errUnbound
	}
	c.disarmAbandonment()
	store.CancelAuth()
	return nil
}

// Wait blocks until in-flight resumes finish.
func (c *Coordinator) Wait() {
	c.resumes.Wait()
}

// Close disarms timers and waits for in-flight resumes.
func (c *Coordinator) Close() {
	c.disarmAbandonment()
	c.Wait()
}

func (c *Coordinator) armAbandonment(ctx context.Context) {
	if c.abandonAfter <= 0 {
		return
	}
	logCtx := context.WithoutCancel(ctx)

	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.abandonTimer != nil {
		c.abandonTimer.Stop()
	}
	c.generation++
	gen := c.generation
	c.abandonTimer = time.AfterFunc(c.abandonAfter, func() { c.abandon(logCtx, gen) })
}

func (c *Coordinator) disarmAbandonment() {
	c.timerMu.Lock()
	defer c.timerMu.Unlock()
	if c.abandonTimer != nil {
		c.abandonTimer.Stop()
		c.abandonTimer = nil
	}
	c.generation++
}

func (c *Coordinator) abandon(ctx context.Context, gen uint64) {
	c.timerMu.Lock()
	if gen != c.generation {
		c.timerMu.Unlock()
		return
	}
	c.abandonTimer = nil
	c.timerMu.Unlock()

	store := c.bound()
	if store == nil || !store.State().IsAuthenticating {
		return
	}
	store.CancelAuth()
	c.metrics.IncSignal("abandoned")
	c.logger.Warn(ctx, "login window abandoned")
	c.notify(func(n Notifier) { n.Error(abandonedKey, MessageAbandoned) })
}

func (c *Coordinator) notify(fn func(Notifier)) {
	if c.notifier != nil {
		fn(c.notifier)
	}
}
