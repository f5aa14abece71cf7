package basket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

const testPageURL = "https://shop.test/store"

type fakeCommerce struct {
	mu sync.Mutex

	createFn func(completeURL, cancelURL string) (*tebex.Basket, error)
	getFn    func(ident string) (*tebex.Basket, error)
	addFn    func(ident string, packageID, quantity int) (*tebex.Basket, error)
	removeFn func(ident string, packageID int) (*tebex.Basket, error)
	linksFn  func(ident, returnURL string) []tebex.AuthLink

	createCalls []string
	getCalls    int
	addCalls    []int
	removeCalls []int
	linkReturns []string
}

func (f *fakeCommerce) CreateBasket(_ context.Context, completeURL, cancelURL string) (*tebex.Basket, error) {
	f.mu.Lock()
	f.createCalls = append(f.createCalls, completeURL+"|"+cancelURL)
	fn := f.createFn
	f.mu.Unlock()
	if fn == nil {
		return &tebex.Basket{Ident: "b-new", Packages: []tebex.BasketPackage{}}, nil
	}
	return fn(completeURL, cancelURL)
}

func (f *fakeCommerce) GetBasket(_ context.Context, ident string) (*tebex.Basket, error) {
	f.mu.Lock()
	f.getCalls++
	fn := f.getFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("get not stubbed")
	}
	return fn(ident)
}

func (f *fakeCommerce) AddPackage(_ context.Context, ident string, packageID, quantity int) (*tebex.Basket, error) {
	f.mu.Lock()
	f.addCalls = append(f.addCalls, packageID)
	fn := f.addFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("add not stubbed")
	}
	return fn(ident, packageID, quantity)
}

func (f *fakeCommerce) RemovePackage(_ context.Context, ident string, packageID int) (*tebex.Basket, error) {
	f.mu.Lock()
	f.removeCalls = append(f.removeCalls, packageID)
	fn := f.removeFn
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("remove not stubbed")
	}
	return fn(ident, packageID)
}

func (f *fakeCommerce) AuthLinks(_ context.Context, ident, returnURL string) []tebex.AuthLink {
	f.mu.Lock()
	f.linkReturns = append(f.linkReturns, returnURL)
	fn := f.linksFn
	f.mu.Unlock()
	if fn == nil {
		return []tebex.AuthLink{}
	}
	return fn(ident, returnURL)
}

func (f *fakeCommerce) addCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.addCalls)
}

type fakeOpener struct {
	mu      sync.Mutex
	opened  []string
	openErr error
}

func (o *fakeOpener) ReturnURL(currentURL string) (string, error) {
	return currentURL + "?auth_callback=true", nil
}

func (o *fakeOpener) OpenLogin(_ context.Context, loginURL string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, loginURL)
	return o.openErr
}

func fixedPage(context.Context) (string, error) {
	return testPageURL, nil
}

func newTestStore(t *testing.T, commerce *fakeCommerce, opener LoginOpener) *Store {
	t.Helper()
	store, err := NewStore(Deps{
		Commerce: commerce,
		Opener:   opener,
		Locator:  LocatorFunc(fixedPage),
	})
	require.NoError(t, err)
	return store
}

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func loginRequiredErr() error {
	return &tebex.APIError{
		StatusCode: http.StatusUnprocessableEntity,
		Message:    "Unprocessable Entity",
		Details:    json.RawMessage(`{"detail":"You must login to purchase this package"}`),
	}
}

func sampleBasket() *tebex.Basket {
	return &tebex.Basket{
		Ident:      "b-1",
		Currency:   "EUR",
		TotalPrice: price("30"),
		BasePrice:  price("30"),
		Packages: []tebex.BasketPackage{
			{ID: 1, Quantity: 1, Name: "VIP", InBasket: &tebex.InBasket{Quantity: 1, Price: decimal.RequireFromString("10")}},
			{ID: 2, Quantity: 2, Name: "Key", Price: price("20")},
		},
	}
}

func TestNewStoreRequiresCollaborators(t *testing.T) {
	_, err := NewStore(Deps{Locator: LocatorFunc(fixedPage)})
	require.Error(t, err)
	_, err = NewStore(Deps{Commerce: &fakeCommerce{}})
	require.Error(t, err)
}

func TestEmptyStoreRendersZeroItems(t *testing.T) {
	commerce := &fakeCommerce{}
	store := newTestStore(t, commerce, &fakeOpener{})

	assert.Equal(t, 0, store.ItemCount())
	assert.Nil(t, store.State().Basket)
	require.NoError(t, store.Initialize(context.Background()))
	require.NoError(t, store.RemoveItem(context.Background(), 1))
	assert.Zero(t, commerce.getCalls)
	assert.Empty(t, commerce.removeCalls)
}

func TestInitializeDiscardsBasketOnFailedRefresh(t *testing.T) {
	commerce := &fakeCommerce{getFn: func(string) (*tebex.Basket, error) {
		return nil, &tebex.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	err := store.Initialize(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	state := store.State()
	assert.Nil(t, state.Basket)
	assert.False(t, state.IsLoading)
}

func TestInitializeReplacesRestoredBasket(t *testing.T) {
	remote := sampleBasket()
	remote.TotalPrice = price("25")
	commerce := &fakeCommerce{getFn: func(string) (*tebex.Basket, error) { return remote.Clone(), nil }}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.NoError(t, store.Initialize(context.Background()))
	assert.Equal(t, "25", store.State().Basket.TotalPrice.String())
}

func TestRefreshTwiceYieldsSameBasket(t *testing.T) {
	remote := sampleBasket()
	commerce := &fakeCommerce{getFn: func(string) (*tebex.Basket, error) { return remote.Clone(), nil }}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: &tebex.Basket{Ident: "b-1", Packages: []tebex.BasketPackage{}}})

	require.NoError(t, store.Refresh(context.Background()))
	first := store.State()
	require.NoError(t, store.Refresh(context.Background()))
	second := store.State()

	assert.Equal(t, first, second)
	assert.Equal(t, 2, commerce.getCalls)
}

func TestRefreshFailureKeepsBasket(t *testing.T) {
	commerce := &fakeCommerce{getFn: func(string) (*tebex.Basket, error) { return nil, errors.New("down") }}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.Error(t, store.Refresh(context.Background()))
	assert.Equal(t, "b-1", store.State().Basket.Ident)
	assert.False(t, store.State().IsLoading)
}

func TestAddItemCreatesBasketBoundToCurrentPage(t *testing.T) {
	commerce := &fakeCommerce{addFn: func(ident string, packageID, quantity int) (*tebex.Basket, error) {
		assert.Equal(t, "b-new", ident)
		assert.Equal(t, 1, quantity)
		return &tebex.Basket{Ident: ident, Packages: []tebex.BasketPackage{{ID: packageID, Quantity: 1}}}, nil
	}}
	store := newTestStore(t, commerce, &fakeOpener{})

	require.NoError(t, store.AddItem(context.Background(), 7))

	assert.Equal(t, []string{testPageURL + "|" + testPageURL}, commerce.createCalls)
	state := store.State()
	assert.True(t, state.IsOpen)
	assert.False(t, state.IsLoading)
	assert.Equal(t, 1, state.ItemCount())
	assert.Equal(t, 1, store.QuantityOf(7))
}

func TestAddItemReusesExistingBasket(t *testing.T) {
	commerce := &fakeCommerce{addFn: func(ident string, packageID, _ int) (*tebex.Basket, error) {
		b := sampleBasket()
		b.Packages = append(b.Packages, tebex.BasketPackage{ID: packageID, Quantity: 1})
		return b, nil
	}}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.NoError(t, store.AddItem(context.Background(), 3))
	assert.Empty(t, commerce.createCalls)
	assert.Equal(t, 4, store.ItemCount())
}

func TestAddItemFailureLeavesBasketUntouched(t *testing.T) {
	commerce := &fakeCommerce{addFn: func(string, int, int) (*tebex.Basket, error) {
		return nil, &tebex.APIError{StatusCode: http.StatusUnprocessableEntity, Message: "x", Details: json.RawMessage(`{"detail":"out of stock"}`)}
	}}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})
	before := store.State()

	err := store.AddItem(context.Background(), 9)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	after := store.State()
	assert.Equal(t, before.Basket, after.Basket)
	assert.False(t, after.IsLoading)
	assert.False(t, after.IsAuthenticating)
	assert.Nil(t, after.PendingPackageID)
	assert.Empty(t, commerce.linkReturns)
}

func TestAddItemRejectsNonPositiveID(t *testing.T) {
	store := newTestStore(t, &fakeCommerce{}, &fakeOpener{})
	err := store.AddItem(context.Background(), 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestAddItemLoginRequiredOpensLogin(t *testing.T) {
	commerce := &fakeCommerce{
		addFn: func(string, int, int) (*tebex.Basket, error) { return nil, loginRequiredErr() },
		linksFn: func(string, string) []tebex.AuthLink {
			return []tebex.AuthLink{{Name: "Discord", URL: "https://auth.test/login"}, {URL: "https://auth.test/other"}}
		},
	}
	opener := &fakeOpener{}
	store := newTestStore(t, commerce, opener)
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.NoError(t, store.AddItem(context.Background(), 42))

	state := store.State()
	require.NotNil(t, state.PendingPackageID)
	assert.Equal(t, 42, *state.PendingPackageID)
	assert.True(t, state.IsAuthenticating)
	assert.True(t, state.IsLoading)
	assert.Equal(t, []string{"https://auth.test/login"}, opener.opened)
	assert.Equal(t, []string{testPageURL + "?auth_callback=true"}, commerce.linkReturns)
}

func TestAddItemLoginRequiredWithoutLinksFallsThrough(t *testing.T) {
	commerce := &fakeCommerce{addFn: func(string, int, int) (*tebex.Basket, error) { return nil, loginRequiredErr() }}
	opener := &fakeOpener{}
	store := newTestStore(t, commerce, opener)
	store.Restore(Snapshot{Basket: sampleBasket()})
	before := store.State()

	err := store.AddItem(context.Background(), 42)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAuthRequired))

	state := store.State()
	assert.Equal(t, before.Basket, state.Basket)
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsAuthenticating)
	assert.Nil(t, state.PendingPackageID)
	assert.Empty(t, opener.opened)
}

func TestAddItemLoginRequiredOpenerFailureFallsThrough(t *testing.T) {
	commerce := &fakeCommerce{
		addFn:   func(string, int, int) (*tebex.Basket, error) { return nil, loginRequiredErr() },
		linksFn: func(string, string) []tebex.AuthLink { return []tebex.AuthLink{{URL: "https://auth.test/login"}} },
	}
	store := newTestStore(t, commerce, &fakeOpener{openErr: errors.New("popup blocked")})
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.Error(t, store.AddItem(context.Background(), 42))

	state := store.State()
	assert.False(t, state.IsAuthenticating)
	assert.False(t, state.IsLoading)
	assert.Nil(t, state.PendingPackageID)
}

func TestAddItemLoginRequiredBeforeBasketExists(t *testing.T) {
	commerce := &fakeCommerce{createFn: func(string, string) (*tebex.Basket, error) { return nil, loginRequiredErr() }}
	opener := &fakeOpener{}
	store := newTestStore(t, commerce, opener)

	require.Error(t, store.AddItem(context.Background(), 42))

	state := store.State()
	assert.Nil(t, state.Basket)
	assert.False(t, state.IsLoading)
	assert.False(t, state.IsAuthenticating)
	assert.Empty(t, commerce.linkReturns)
	assert.Empty(t, opener.opened)
}

func TestPendingAddIsRetriedAfterAuth(t *testing.T) {
	var mu sync.Mutex
	loggedIn := false
	commerce := &fakeCommerce{
		addFn: func(ident string, packageID, _ int) (*tebex.Basket, error) {
			mu.Lock()
			defer mu.Unlock()
			if !loggedIn {
				return nil, loginRequiredErr()
			}
			return &tebex.Basket{Ident: ident, Packages: []tebex.BasketPackage{{ID: packageID, Quantity: 1}}}, nil
		},
		getFn: func(ident string) (*tebex.Basket, error) {
			return &tebex.Basket{Ident: ident, Packages: []tebex.BasketPackage{}}, nil
		},
		linksFn: func(string, string) []tebex.AuthLink { return []tebex.AuthLink{{URL: "https://auth.test/login"}} },
	}
	store := newTestStore(t, commerce, &fakeOpener{})

	require.NoError(t, store.AddItem(context.Background(), 42))
	state := store.State()
	require.NotNil(t, state.PendingPackageID)
	assert.Equal(t, 42, *state.PendingPackageID)
	assert.True(t, state.IsAuthenticating)

	mu.Lock()
	loggedIn = true
	mu.Unlock()
	store.SetAuthenticating(false)
	require.NoError(t, store.CompleteAuth(context.Background()))

	state = store.State()
	assert.Nil(t, state.PendingPackageID)
	assert.False(t, state.IsAuthenticating)
	assert.False(t, state.IsLoading)
	assert.Equal(t, []int{42, 42}, commerce.addCalls)
	assert.Equal(t, 1, state.QuantityOf(42))
}

func TestCompleteAuthClearsPendingWhenRetryFails(t *testing.T) {
	commerce := &fakeCommerce{
		addFn:   func(string, int, int) (*tebex.Basket, error) { return nil, loginRequiredErr() },
		getFn:   func(string) (*tebex.Basket, error) { return nil, errors.New("refresh down") },
		linksFn: func(string, string) []tebex.AuthLink { return []tebex.AuthLink{{URL: "https://auth.test/login"}} },
	}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})
	require.NoError(t, store.AddItem(context.Background(), 42))

	commerce.mu.Lock()
	commerce.addFn = func(string, int, int) (*tebex.Basket, error) {
		return nil, &tebex.APIError{StatusCode: http.StatusInternalServerError, Message: "boom"}
	}
	commerce.mu.Unlock()
	store.SetAuthenticating(false)

	err := store.CompleteAuth(context.Background())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))

	state := store.State()
	assert.Nil(t, state.PendingPackageID)
	assert.False(t, state.IsLoading)
	assert.Equal(t, "b-1", state.Basket.Ident, "refresh failure keeps basket")
	assert.Equal(t, 2, commerce.addCount())
}

func TestCompleteAuthWithoutPendingOnlyRefreshes(t *testing.T) {
	commerce := &fakeCommerce{getFn: func(string) (*tebex.Basket, error) { return sampleBasket(), nil }}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: &tebex.Basket{Ident: "b-1"}})

	require.NoError(t, store.CompleteAuth(context.Background()))
	assert.Equal(t, 1, commerce.getCalls)
	assert.Empty(t, commerce.addCalls)
	assert.Equal(t, 3, store.ItemCount())
}

func TestRemoveItemAppliesOptimisticStateBeforeNetwork(t *testing.T) {
	var store *Store
	var seen State
	commerce := &fakeCommerce{removeFn: func(ident string, packageID int) (*tebex.Basket, error) {
		seen = store.State()
		b := sampleBasket()
		b.Packages = b.Packages[1:]
		b.TotalPrice = price("21.50")
		return b, nil
	}}
	store = newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	require.NoError(t, store.RemoveItem(context.Background(), 1))

	require.NotNil(t, seen.Basket)
	assert.Len(t, seen.Basket.Packages, 1)
	assert.Equal(t, "20", seen.Basket.TotalPrice.String())
	assert.Equal(t, "20", seen.Basket.BasePrice.String())
	assert.False(t, seen.IsLoading)

	final := store.State()
	assert.Equal(t, "21.5", final.Basket.TotalPrice.String(), "server basket wins")
}

func TestRemoveItemRollbackRestoresExactBasket(t *testing.T) {
	commerce := &fakeCommerce{removeFn: func(string, int) (*tebex.Basket, error) {
		return nil, errors.New("down")
	}}
	store := newTestStore(t, commerce, &fakeOpener{})

	for _, item := range sampleBasket().Packages {
		store.Restore(Snapshot{Basket: sampleBasket()})
		before := store.State().Basket

		err := store.RemoveItem(context.Background(), item.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
		assert.Equal(t, before, store.State().Basket)
	}
}

func TestOptimisticTotalsNeverNegative(t *testing.T) {
	cases := []struct {
		name string
		item tebex.BasketPackage
	}{
		{"basket scoped", tebex.BasketPackage{ID: 5, InBasket: &tebex.InBasket{Quantity: 1, Price: decimal.RequireFromString("99")}}},
		{"line price", tebex.BasketPackage{ID: 5, Price: price("99")}},
		{"catalog", tebex.BasketPackage{ID: 5, Package: &tebex.Package{ID: 5, Name: "x", TotalPrice: price("99")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seen State
			var store *Store
			commerce := &fakeCommerce{removeFn: func(string, int) (*tebex.Basket, error) {
				seen = store.State()
				return nil, errors.New("down")
			}}
			store = newTestStore(t, commerce, &fakeOpener{})
			store.Restore(Snapshot{Basket: &tebex.Basket{
				Ident:      "b-1",
				TotalPrice: price("5"),
				Packages:   []tebex.BasketPackage{tc.item},
			}})

			_ = store.RemoveItem(context.Background(), 5)

			require.NotNil(t, seen.Basket)
			assert.False(t, seen.Basket.TotalPrice.IsNegative())
			assert.False(t, seen.Basket.BasePrice.IsNegative())
			assert.True(t, seen.Basket.TotalPrice.IsZero())
		})
	}
}

func TestRemoveItemCatalogFallbackDelta(t *testing.T) {
	var seen State
	var store *Store
	commerce := &fakeCommerce{removeFn: func(string, int) (*tebex.Basket, error) {
		seen = store.State()
		return nil, errors.New("down")
	}}
	store = newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: &tebex.Basket{
		Ident:      "b-1",
		TotalPrice: price("20"),
		BasePrice:  price("20"),
		Packages: []tebex.BasketPackage{
			{ID: 3, Quantity: 1, Package: &tebex.Package{ID: 3, Name: "VIP", Price: price("9.99")}},
			{ID: 4, Quantity: 1, Price: price("10.01")},
		},
	}})

	err := store.RemoveItem(context.Background(), 3)
	require.Error(t, err)

	require.NotNil(t, seen.Basket)
	assert.Equal(t, "10.01", seen.Basket.TotalPrice.String())
	assert.Equal(t, "10.01", seen.Basket.BasePrice.String())
	require.Len(t, seen.Basket.Packages, 1)
	assert.Equal(t, 4, seen.Basket.Packages[0].ID)

	assert.Equal(t, "20", store.State().Basket.TotalPrice.String(), "rolled back")
}

func TestResolvePrice(t *testing.T) {
	catalogOnly := tebex.BasketPackage{ID: 1, Package: &tebex.Package{ID: 1, Name: "x", Price: price("9.99")}}
	both := tebex.BasketPackage{
		ID:       1,
		InBasket: &tebex.InBasket{Quantity: 2, Price: decimal.RequireFromString("7.5")},
		Package:  &tebex.Package{ID: 1, Name: "x", TotalPrice: price("12"), Price: price("9.99")},
	}
	linePriceAndCatalog := tebex.BasketPackage{
		ID:      1,
		Price:   price("3"),
		Package: &tebex.Package{ID: 1, Name: "x", BasePrice: price("4")},
	}
	zeroBasketScoped := tebex.BasketPackage{
		ID:       1,
		InBasket: &tebex.InBasket{Quantity: 1, Price: decimal.Zero},
		Package:  &tebex.Package{ID: 1, Name: "x", Price: price("9.99")},
	}
	priceless := tebex.BasketPackage{ID: 1, Package: &tebex.Package{ID: 1, Name: "x"}}

	cases := []struct {
		name   string
		item   tebex.BasketPackage
		source PriceSource
		want   string
	}{
		{"basket source falls back to catalog", catalogOnly, PriceSourceBasket, "9.99"},
		{"catalog source uses nested package", catalogOnly, PriceSourceCatalog, "9.99"},
		{"basket source prefers in_basket", both, PriceSourceBasket, "7.5"},
		{"catalog source prefers total_price", both, PriceSourceCatalog, "12"},
		{"basket source uses line price", linePriceAndCatalog, PriceSourceBasket, "3"},
		{"catalog source uses base_price", linePriceAndCatalog, PriceSourceCatalog, "4"},
		{"present zero wins", zeroBasketScoped, PriceSourceBasket, "0"},
		{"catalog source ignores zero basket price", zeroBasketScoped, PriceSourceCatalog, "9.99"},
		{"catalog source falls back to line price", tebex.BasketPackage{ID: 1, Price: price("2.25")}, PriceSourceCatalog, "2.25"},
		{"nothing known", priceless, PriceSourceCatalog, "0"},
		{"nothing known basket", priceless, PriceSourceBasket, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolvePrice(tc.item, tc.source).String())
		})
	}
}

func TestCancelAuthDiscardsPending(t *testing.T) {
	commerce := &fakeCommerce{
		addFn:   func(string, int, int) (*tebex.Basket, error) { return nil, loginRequiredErr() },
		linksFn: func(string, string) []tebex.AuthLink { return []tebex.AuthLink{{URL: "https://auth.test/login"}} },
	}
	store := newTestStore(t, commerce, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})
	require.NoError(t, store.AddItem(context.Background(), 42))

	store.CancelAuth()

	state := store.State()
	assert.False(t, state.IsAuthenticating)
	assert.False(t, state.IsLoading)
	assert.Nil(t, state.PendingPackageID)
}

func TestToggleCartAndSetAuthenticating(t *testing.T) {
	store := newTestStore(t, &fakeCommerce{}, &fakeOpener{})
	store.ToggleCart()
	assert.True(t, store.State().IsOpen)
	store.ToggleCart()
	assert.False(t, store.State().IsOpen)

	store.SetAuthenticating(true)
	assert.True(t, store.State().IsAuthenticating)
	store.SetAuthenticating(false)
	assert.False(t, store.State().IsAuthenticating)
}

func TestRestoreResetsFlags(t *testing.T) {
	store := newTestStore(t, &fakeCommerce{}, &fakeOpener{})
	store.ToggleCart()
	store.SetAuthenticating(true)

	store.Restore(Snapshot{Basket: sampleBasket()})

	state := store.State()
	assert.False(t, state.IsOpen)
	assert.False(t, state.IsAuthenticating)
	assert.False(t, state.IsLoading)
	assert.Nil(t, state.PendingPackageID)
	assert.Equal(t, sampleBasket().Clone(), store.Snapshot().Basket)
}

func TestStateIsACopy(t *testing.T) {
	store := newTestStore(t, &fakeCommerce{}, &fakeOpener{})
	store.Restore(Snapshot{Basket: sampleBasket()})

	state := store.State()
	state.Basket.Packages[0].InBasket.Quantity = 50
	state.Basket.Ident = "mutated"

	assert.Equal(t, "b-1", store.State().Basket.Ident)
	assert.Equal(t, 3, store.ItemCount())
}

func TestSubscribersSeeCommitsInOrder(t *testing.T) {
	store := newTestStore(t, &fakeCommerce{}, &fakeOpener{})

	var seen []bool
	cancel := store.Subscribe(func(st State) { seen = append(seen, st.IsOpen) })
	store.ToggleCart()
	store.ToggleCart()
	cancel()
	store.ToggleCart()

	assert.Equal(t, []bool{true, false}, seen)
}

func TestItemCountUsesBasketQuantity(t *testing.T) {
	st := State{Basket: &tebex.Basket{Packages: []tebex.BasketPackage{
		{ID: 1, Quantity: 1, InBasket: &tebex.InBasket{Quantity: 3}},
		{ID: 2, Quantity: 2},
	}}}
	assert.Equal(t, 5, st.ItemCount())
	assert.Equal(t, 3, st.QuantityOf(1))
	assert.Equal(t, 0, st.QuantityOf(99))
	assert.Equal(t, 0, State{}.ItemCount())
}
