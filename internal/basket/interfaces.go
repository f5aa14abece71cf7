package basket

import (
	"context"

	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

// Commerce is the subset of the commerce client the store drives.
type Commerce interface {
	CreateBasket(ctx context.Context, completeURL, cancelURL string) (*tebex.Basket, error)
	GetBasket(ctx context.Context, ident string) (*tebex.Basket, error)
	AddPackage(ctx context.Context, ident string, packageID, quantity int) (*tebex.Basket, error)
	RemovePackage(ctx context.Context, ident string, packageID int) (*tebex.Basket, error)
	AuthLinks(ctx context.Context, ident, returnURL string) []tebex.AuthLink
}

// LoginOpener opens the secondary login context and builds the URL it returns to.
type LoginOpener interface {
	ReturnURL(currentURL string) (string, error)
	OpenLogin(ctx context.Context, loginURL string) error
}

// Locator reports the page URL of the primary context handling the action.
type Locator interface {
	CurrentURL(ctx context.Context) (string, error)
}

// LocatorFunc adapts a function to Locator.
type LocatorFunc func(ctx context.Context) (string, error)

func (f LocatorFunc) CurrentURL(ctx context.Context) (string, error) {
	return f(ctx)
}
