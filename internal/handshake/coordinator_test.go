package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

const testOrigin = "https://shop.test"

type fakeStore struct {
	mu             sync.Mutex
	authenticating bool
	setCalls       []bool
	completeCalls  int
	cancelCalls    int
	completeErr    error
	release        chan struct{}
}

func (s *fakeStore) State() basket.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return basket.State{IsAuthenticating: s.authenticating}
}

func (s *fakeStore) SetAuthenticating(status bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticating = status
	s.setCalls = append(s.setCalls, status)
}

func (s *fakeStore) CompleteAuth(context.Context) error {
	s.mu.Lock()
	s.completeCalls++
	release := s.release
	err := s.completeErr
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	return err
}

func (s *fakeStore) CancelAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelCalls++
	s.authenticating = false
}

func (s *fakeStore) completions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeCalls
}

func (s *fakeStore) cancels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelCalls
}

type notice struct {
	kind, key, message string
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
}

func (n *fakeNotifier) record(kind, key, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice{kind: kind, key: key, message: message})
}

func (n *fakeNotifier) Loading(key, message string) { n.record("loading", key, message) }
func (n *fakeNotifier) Success(key, message string) { n.record("success", key, message) }
func (n *fakeNotifier) Error(key, message string)   { n.record("error", key, message) }

func (n *fakeNotifier) all() []notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notice(nil), n.notices...)
}

type fakeWindowOpener struct {
	mu         sync.Mutex
	directives []Directive
	err        error
}

func (o *fakeWindowOpener) Open(_ context.Context, d Directive) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.directives = append(o.directives, d)
	return o.err
}

type fixedScreen Screen

func (s fixedScreen) Screen(context.Context) (Screen, bool) {
	return Screen(s), true
}

func newCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	if opts.PageOrigin == "" {
		opts.PageOrigin = testOrigin
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

func TestNewRequiresAbsoluteOrigin(t *testing.T) {
	_, err := New(Options{PageOrigin: "/relative"})
	require.Error(t, err)

	c, err := New(Options{PageOrigin: "https://shop.test/store?x=1"})
	require.NoError(t, err)
	assert.Equal(t, "https://shop.test", c.PageOrigin())
}

func TestParseSignal(t *testing.T) {
	sig, err := ParseSignal("TEBEX_AUTH_SUCCESS")
	require.NoError(t, err)
	assert.Equal(t, SignalAuthSuccess, sig)

	for _, raw := range []string{"", "tebex_auth_success", "TEBEX_AUTH_SUCCESS ", "TEBEX_AUTH_FAILED"} {
		_, err := ParseSignal(raw)
		assert.Error(t, err, raw)
	}
}

func TestReturnURLAddsMarker(t *testing.T) {
	got, err := ReturnURL("https://shop.test/store?category=ranks")
	require.NoError(t, err)
	assert.True(t, IsCallback(got))
	assert.Contains(t, got, "category=ranks")
	assert.Contains(t, got, "auth_callback=true")

	_, err = ReturnURL("not a url")
	require.Error(t, err)

	assert.False(t, IsCallback("https://shop.test/store"))
	assert.False(t, IsCallback("https://shop.test/store?auth_callback="))
}

func TestCenteredWindowGeometry(t *testing.T) {
	d := CenteredWindow("https://auth.test/login", Screen{Width: 1920, Height: 1080}, 600, 800)

	assert.Equal(t, "https://auth.test/login", d.URL)
	assert.Equal(t, "TebexAuth", d.Name)
	assert.Equal(t, 660, d.Left)
	assert.Equal(t, 140, d.Top)
	assert.Equal(t, "width=600,height=800,top=140,left=660,resizable=yes,scrollbars=yes,status=yes", d.Features)

	fallback := CenteredWindow("u", Screen{}, 0, 0)
	assert.Equal(t, DefaultWidth, fallback.Width)
	assert.Equal(t, DefaultHeight, fallback.Height)
}

func TestDeliverRequiresExactOriginAndPayload(t *testing.T) {
	cases := []struct {
		name    string
		msg     Message
		outcome Outcome
	}{
		{"wrong origin", Message{Origin: "https://evil.test", Data: string(SignalAuthSuccess)}, OutcomeRejectedOrigin},
		{"origin with path", Message{Origin: testOrigin + "/", Data: string(SignalAuthSuccess)}, OutcomeRejectedOrigin},
		{"scheme mismatch", Message{Origin: "http://shop.test", Data: string(SignalAuthSuccess)}, OutcomeRejectedOrigin},
		{"wrong payload", Message{Origin: testOrigin, Data: "HELLO"}, OutcomeRejectedSignal},
		{"empty payload", Message{Origin: testOrigin}, OutcomeRejectedSignal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &fakeStore{authenticating: true}
			c := newCoordinator(t, Options{})
			c.Bind(store)

			assert.Equal(t, tc.outcome, c.Deliver(context.Background(), tc.msg))
			c.Wait()
			assert.Zero(t, store.completions())
			assert.True(t, store.State().IsAuthenticating)
		})
	}
}

func TestDeliverWithoutStoreIsUnbound(t *testing.T) {
	c := newCoordinator(t, Options{})
	assert.Equal(t, OutcomeUnbound, c.Deliver(context.Background(), Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}))
}

func TestDuplicateSignalsResumeOnce(t *testing.T) {
	store := &fakeStore{authenticating: true}
	c := newCoordinator(t, Options{GuardDelay: time.Hour})
	c.Bind(store)

	valid := Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}
	assert.Equal(t, OutcomeAccepted, c.Deliver(context.Background(), valid))
	assert.Equal(t, OutcomeDuplicate, c.Deliver(context.Background(), valid))
	c.Wait()
	assert.Equal(t, OutcomeDuplicate, c.Deliver(context.Background(), valid), "guard holds until the delay elapses")

	assert.Equal(t, 1, store.completions())
}

func TestGuardResetsAfterDelay(t *testing.T) {
	store := &fakeStore{}
	c := newCoordinator(t, Options{GuardDelay: 20 * time.Millisecond})
	c.Bind(store)

	valid := Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}
	require.Equal(t, OutcomeAccepted, c.Deliver(context.Background(), valid))
	c.Wait()

	assert.Eventually(t, func() bool {
		return c.Deliver(context.Background(), valid) == OutcomeAccepted
	}, time.Second, 10*time.Millisecond)
	c.Wait()
	assert.Equal(t, 2, store.completions())
}

func TestAcceptedSignalClearsOverlayBeforeResume(t *testing.T) {
	store := &fakeStore{authenticating: true, release: make(chan struct{})}
	notifier := &fakeNotifier{}
	c := newCoordinator(t, Options{Notifier: notifier})
	c.Bind(store)

	require.Equal(t, OutcomeAccepted, c.Deliver(context.Background(), Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}))

	assert.False(t, store.State().IsAuthenticating)
	loading := notifier.all()
	require.Len(t, loading, 1)
	assert.Equal(t, "loading", loading[0].kind)
	assert.Equal(t, MessageResumeLoading, loading[0].message)

	close(store.release)
	c.Wait()

	all := notifier.all()
	require.Len(t, all, 2)
	assert.Equal(t, "success", all[1].kind)
	assert.Equal(t, MessageResumeSuccess, all[1].message)
	assert.Equal(t, all[0].key, all[1].key)
}

func TestResumeFailureNotifiesError(t *testing.T) {
	store := &fakeStore{completeErr: errors.New("retry failed")}
	notifier := &fakeNotifier{}
	c := newCoordinator(t, Options{Notifier: notifier})
	c.Bind(store)

	c.Deliver(context.Background(), Message{Origin: testOrigin, Data: string(SignalAuthSuccess)})
	c.Wait()

	all := notifier.all()
	require.Len(t, all, 2)
	assert.Equal(t, "error", all[1].kind)
	assert.Equal(t, MessageResumeError, all[1].message)
}

func TestOpenLoginCentersWindowOnReportedScreen(t *testing.T) {
	opener := &fakeWindowOpener{}
	c := newCoordinator(t, Options{Opener: opener, Screens: fixedScreen{Width: 1280, Height: 1024}, PopupWidth: 600, PopupHeight: 800})

	require.NoError(t, c.OpenLogin(context.Background(), "https://auth.test/login"))

	require.Len(t, opener.directives, 1)
	d := opener.directives[0]
	assert.Equal(t, 340, d.Left)
	assert.Equal(t, 112, d.Top)
	assert.Equal(t, "https://auth.test/login", d.URL)
}

func TestOpenLoginFailures(t *testing.T) {
	c := newCoordinator(t, Options{})
	require.ErrorIs(t, c.OpenLogin(context.Background(), "https://auth.test/login"), errNoWindowOpener)

	c = newCoordinator(t, Options{Opener: &fakeWindowOpener{err: errors.New("blocked")}})
	require.Error(t, c.OpenLogin(context.Background(), "https://auth.test/login"))
}

func TestAbandonedLoginCancelsAuth(t *testing.T) {
	store := &fakeStore{authenticating: true}
	notifier := &fakeNotifier{}
	c := newCoordinator(t, Options{Opener: &fakeWindowOpener{}, Notifier: notifier, AbandonAfter: 20 * time.Millisecond})
	c.Bind(store)

	require.NoError(t, c.OpenLogin(context.Background(), "https://auth.test/login"))

	assert.Eventually(t, func() bool { return store.cancels() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, store.State().IsAuthenticating)
	assert.Eventually(t, func() bool {
		for _, n := range notifier.all() {
			if n.kind == "error" && n.message == MessageAbandoned {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)
}

func TestSignalDisarmsAbandonment(t *testing.T) {
	store := &fakeStore{authenticating: true}
	c := newCoordinator(t, Options{Opener: &fakeWindowOpener{}, AbandonAfter: 30 * time.Millisecond})
	c.Bind(store)

	require.NoError(t, c.OpenLogin(context.Background(), "https://auth.test/login"))
	require.Equal(t, OutcomeAccepted, c.Deliver(context.Background(), Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}))
	c.Wait()

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, store.cancels())
}

func TestCancelDismissesOverlay(t *testing.T) {
	c := newCoordinator(t, Options{})
	require.Error(t, c.Cancel())

	store := &fakeStore{authenticating: true}
	c.Bind(store)
	require.NoError(t, c.Cancel())
	assert.Equal(t, 1, store.cancels())
	assert.False(t, store.State().IsAuthenticating)
}

type pageLocator struct{}

func (pageLocator) CurrentURL(context.Context) (string, error) {
	return testOrigin + "/store", nil
}

type scriptedCommerce struct {
	mu       sync.Mutex
	loggedIn bool
	adds     []int
}

func (s *scriptedCommerce) CreateBasket(context.Context, string, string) (*tebex.Basket, error) {
	return &tebex.Basket{Ident: "b-1", Packages: []tebex.BasketPackage{}}, nil
}

func (s *scriptedCommerce) GetBasket(_ context.Context, ident string) (*tebex.Basket, error) {
	return &tebex.Basket{Ident: ident, Packages: []tebex.BasketPackage{}}, nil
}

func (s *scriptedCommerce) AddPackage(_ context.Context, ident string, packageID, _ int) (*tebex.Basket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adds = append(s.adds, packageID)
	if !s.loggedIn {
		return nil, &tebex.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "x", Details: json.RawMessage(`{"detail":"login required"}`)}
	}
	return &tebex.Basket{Ident: ident, Packages: []tebex.BasketPackage{{ID: packageID, Quantity: 1}}}, nil
}

func (s *scriptedCommerce) RemovePackage(context.Context, string, int) (*tebex.Basket, error) {
	return nil, errors.New("unused")
}

func (s *scriptedCommerce) AuthLinks(context.Context, string, string) []tebex.AuthLink {
	return []tebex.AuthLink{{URL: "https://auth.test/login"}}
}

func TestLoginDetourRetriesPendingItem(t *testing.T) {
	opener := &fakeWindowOpener{}
	c := newCoordinator(t, Options{Opener: opener})
	commerce := &scriptedCommerce{}
	store, err := basket.NewStore(basket.Deps{Commerce: commerce, Opener: c, Locator: pageLocator{}})
	require.NoError(t, err)
	c.Bind(store)

	require.NoError(t, store.AddItem(context.Background(), 42))
	state := store.State()
	require.NotNil(t, state.PendingPackageID)
	assert.Equal(t, 42, *state.PendingPackageID)
	assert.True(t, state.IsAuthenticating)
	require.Len(t, opener.directives, 1)

	commerce.mu.Lock()
	commerce.loggedIn = true
	commerce.mu.Unlock()

	require.Equal(t, OutcomeAccepted, c.Deliver(context.Background(), Message{Origin: testOrigin, Data: string(SignalAuthSuccess)}))
	assert.False(t, store.State().IsAuthenticating)
	c.Wait()

	state = store.State()
	assert.Nil(t, state.PendingPackageID)
	assert.False(t, state.IsLoading)
	assert.Equal(t, 1, state.QuantityOf(42))
	assert.Equal(t, []int{42, 42}, commerce.adds)
}
