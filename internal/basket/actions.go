package basket

import (
	"context"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

const (
	actionInitialize   = "initialize"
	actionRefresh      = "refresh"
	actionAddItem      = "add_item"
	actionRemoveItem   = "remove_item"
	actionCompleteAuth = "complete_auth"

	outcomeOK           = "ok"
	outcomeFailed       = "failed"
	outcomeDiscarded    = "discarded"
	outcomeRolledBack   = "rolled_back"
	outcomeAwaitingAuth = "awaiting_auth"
)

// Initialize refreshes a restored basket. A failed refresh discards the local basket.
func (s *Store) Initialize(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	current := s.currentBasket()
	if current == nil {
		return nil
	}
	ctx = s.logger.WithBasketIdent(ctx, current.Ident)

	s.commit(func(st *State) { st.IsLoading = true })
	updated, err := s.commerce.GetBasket(ctx, current.Ident)
	if err != nil {
		s.commit(func(st *State) {
			st.Basket = nil
			st.IsLoading = false
		})
		s.metrics.IncAction(actionInitialize, outcomeDiscarded)
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "restored basket discarded after failed refresh")
		return tebex.ToDomain(err)
	}
	s.commit(func(st *State) {
		st.Basket = updated
		st.IsLoading = false
	})
	s.metrics.IncAction(actionInitialize, outcomeOK)
	return nil
}

// Refresh replaces the basket with the remote copy. Failure leaves the basket untouched.
func (s *Store) Refresh(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Store) refreshLocked(ctx context.Context) error {
	current := s.currentBasket()
	if current == nil {
		return nil
	}
	ctx = s.logger.WithBasketIdent(ctx, current.Ident)

	s.commit(func(st *State) { st.IsLoading = true })
	updated, err := s.commerce.GetBasket(ctx, current.Ident)
	if err != nil {
		s.commit(func(st *State) { st.IsLoading = false })
		s.metrics.IncAction(actionRefresh, outcomeFailed)
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "basket refresh failed")
		return tebex.ToDomain(err)
	}
	s.commit(func(st *State) {
		st.Basket = updated
		st.IsLoading = false
	})
	s.metrics.IncAction(actionRefresh, outcomeOK)
	return nil
}

// AddItem adds one unit of packageID, creating a basket bound to the current page when absent.
// A login-required rejection opens the login flow and returns nil with the store awaiting auth.
func (s *Store) AddItem(ctx context.Context, packageID int) error {
	if packageID <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "package id must be positive")
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.commit(func(st *State) { st.IsLoading = true })

	current := s.currentBasket()
	if current == nil {
		created, err := s.createBasket(ctx)
		if err != nil {
			return s.failAdd(ctx, err)
		}
		s.commit(func(st *State) { st.Basket = created })
		current = created
	}
	ctx = s.logger.WithBasketIdent(ctx, current.Ident)

	updated, err := s.commerce.AddPackage(ctx, current.Ident, packageID, 1)
	if err == nil {
		s.commit(func(st *State) {
			st.Basket = updated
			st.IsLoading = false
			st.IsOpen = true
		})
		s.metrics.IncAction(actionAddItem, outcomeOK)
		return nil
	}

	if tebex.IsLoginRequired(err) && s.beginLogin(ctx, current, packageID) {
		s.metrics.IncAction(actionAddItem, outcomeAwaitingAuth)
		return nil
	}
	return s.failAdd(ctx, err)
}

func (s *Store) createBasket(ctx context.Context) (*tebex.Basket, error) {
	pageURL, err := s.locator.CurrentURL(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "current page url unavailable")
	}
	return s.commerce.CreateBasket(ctx, pageURL, pageURL)
}

// beginLogin parks packageID and opens the first login link. It reports whether the login
// context was opened; on false the pending slot is cleared again.
func (s *Store) beginLogin(ctx context.Context, current *tebex.Basket, packageID int) bool {
	if s.opener == nil {
		return false
	}
	s.commit(func(st *State) {
		id := packageID
		st.PendingPackageID = &id
	})

	abort := func(msg string, err error) bool {
		s.commit(func(st *State) {
			st.PendingPackageID = nil
			st.IsAuthenticating = false
		})
		if err != nil {
			ctx = s.logger.WithField(ctx, "error", err.Error())
		}
		s.logger.Warn(ctx, msg)
		return false
	}

	pageURL, err := s.locator.CurrentURL(ctx)
	if err != nil {
		return abort("login flow unavailable: no page url", err)
	}
	returnURL, err := s.opener.ReturnURL(pageURL)
	if err != nil {
		return abort("login flow unavailable: bad return url", err)
	}
	links := s.commerce.AuthLinks(ctx, current.Ident, returnURL)
	if len(links) == 0 {
		return abort("login flow unavailable: no auth links", nil)
	}

	s.commit(func(st *State) { st.IsAuthenticating = true })
	if err := s.opener.OpenLogin(ctx, links[0].URL); err != nil {
		return abort("login flow unavailable: opener failed", err)
	}
	return true
}

func (s *Store) failAdd(ctx context.Context, err error) error {
	s.commit(func(st *State) { st.IsLoading = false })
	s.metrics.IncAction(actionAddItem, outcomeFailed)
	s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "add item failed")
	return tebex.ToDomain(err)
}

// RemoveItem applies the removal optimistically, then reconciles with the remote basket.
// A failed removal restores the exact pre-mutation basket.
func (s *Store) RemoveItem(ctx context.Context, packageID int) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	previous := s.currentBasket()
	if previous == nil {
		return nil
	}
	ctx = s.logger.WithBasketIdent(ctx, previous.Ident)

	delta := decimal.Zero
	if item, ok := previous.Find(packageID); ok {
		delta = ResolvePrice(item, PriceSourceBasket)
	}
	optimistic := withoutItem(previous, packageID, delta)
	s.commit(func(st *State) {
		st.Basket = optimistic
		st.IsLoading = false
	})

	updated, err := s.commerce.RemovePackage(ctx, previous.Ident, packageID)
	if err != nil {
		s.commit(func(st *State) { st.Basket = previous.Clone() })
		s.metrics.IncAction(actionRemoveItem, outcomeRolledBack)
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "remove item rolled back")
		return tebex.ToDomain(err)
	}
	s.commit(func(st *State) { st.Basket = updated })
	s.metrics.IncAction(actionRemoveItem, outcomeOK)
	return nil
}

// CompleteAuth resumes after a verified login: refresh the basket (failure swallowed), then
// retry the pending add and clear the pending slot whatever the outcome. The retry error is
// returned for notification.
func (s *Store) CompleteAuth(ctx context.Context) error {
	s.opMu.Lock()
	if err := s.refreshLocked(ctx); err != nil {
		s.logger.Warn(ctx, "continuing auth resume without refreshed basket")
	}
	s.opMu.Unlock()

	pendingID := s.pending()
	if pendingID == nil {
		s.metrics.IncAction(actionCompleteAuth, outcomeOK)
		return nil
	}

	retryErr := s.AddItem(ctx, *pendingID)
	s.commit(func(st *State) { st.PendingPackageID = nil })
	if retryErr != nil {
		s.metrics.IncAction(actionCompleteAuth, outcomeFailed)
		return retryErr
	}
	s.metrics.IncAction(actionCompleteAuth, outcomeOK)
	return nil
}
