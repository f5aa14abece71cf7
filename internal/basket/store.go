package basket

import (
	"fmt"
	"sync"

	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/metrics"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

// State is the committed document readers observe. Every transition replaces it whole.
type State struct {
	Basket           *tebex.Basket `json:"basket"`
	IsLoading        bool          `json:"is_loading"`
	IsAuthenticating bool          `json:"is_authenticating"`
	IsOpen           bool          `json:"is_open"`
	PendingPackageID *int          `json:"pending_package_id"`
}

func (s State) clone() State {
	out := s
	out.Basket = s.Basket.Clone()
	if s.PendingPackageID != nil {
		id := *s.PendingPackageID
		out.PendingPackageID = &id
	}
	return out
}

// ItemCount sums line quantities; zero without a basket.
func (s State) ItemCount() int {
	if s.Basket == nil {
		return 0
	}
	total := 0
	for _, item := range s.Basket.Packages {
		total += item.BasketQuantity()
	}
	return total
}

// QuantityOf returns the basket quantity of one package.
func (s State) QuantityOf(packageID int) int {
	item, ok := s.Basket.Find(packageID)
	if !ok {
		return 0
	}
	return item.BasketQuantity()
}

// Deps wires the store to its collaborators.
type Deps struct {
	Commerce Commerce
	Opener   LoginOpener
	Locator  Locator
	Logger   *logger.Logger
	Metrics  *metrics.BasketMetrics
}

type listener struct {
	id int
	fn func(State)
}

// Store is the sole mutator of one visitor's basket and UI flags.
//
// Remote mutations are serialized by opMu. Flag setters and reads never wait on it.
// Listeners run synchronously after each commit, in commit order, and must not call
// back into store mutators.
type Store struct {
	commerce Commerce
	opener   LoginOpener
	locator  Locator
	logger   *logger.Logger
	metrics  *metrics.BasketMetrics

	opMu   sync.Mutex
	emitMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners []listener
	nextID    int
}

// NewStore builds an empty store.
func NewStore(deps Deps) (*Store, error) {
	if deps.Commerce == nil {
		return nil, fmt.Errorf("commerce client required")
	}
	if deps.Locator == nil {
		return nil, fmt.Errorf("page locator required")
	}
	logg := deps.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Store{
		commerce: deps.Commerce,
		opener:   deps.Opener,
		locator:  deps.Locator,
		logger:   logg,
		metrics:  deps.Metrics,
	}, nil
}

// State returns a deep copy of the committed state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// ItemCount sums line quantities of the committed basket.
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ItemCount()
}

// QuantityOf returns the committed basket quantity of a package.
func (s *Store) QuantityOf(packageID int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.QuantityOf(packageID)
}

// Subscribe registers fn for every committed transition. The returned func cancels it.
func (s *Store) Subscribe(fn func(State)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// ToggleCart flips the cart panel.
func (s *Store) ToggleCart() {
	s.commit(func(st *State) {
		st.IsOpen = !st.IsOpen
	})
}

// SetAuthenticating sets the auth overlay flag.
func (s *Store) SetAuthenticating(status bool) {
	s.commit(func(st *State) {
		st.IsAuthenticating = status
	})
}

// CancelAuth dismisses the auth overlay and discards the pending operation unretried.
func (s *Store) CancelAuth() {
	s.commit(func(st *State) {
		st.IsAuthenticating = false
		st.PendingPackageID = nil
		st.IsLoading = false
	})
	s.metrics.IncAction("cancel_auth", "ok")
}

// commit applies mutate to a copy of the state, publishes it whole, then notifies listeners.
func (s *Store) commit(mutate func(*State)) State {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	next := s.state.clone()
	mutate(&next)
	s.state = next
	view := next.clone()
	subscribers := make([]listener, len(s.listeners))
	copy(subscribers, s.listeners)
	s.mu.Unlock()

	for _, l := range subscribers {
		l.fn(view.clone())
	}
	return view
}

func (s *Store) currentBasket() *tebex.Basket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Basket.Clone()
}

func (s *Store) pending() *int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.PendingPackageID == nil {
		return nil
	}
	id := *s.state.PendingPackageID
	return &id
}
