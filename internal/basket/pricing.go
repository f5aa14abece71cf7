package basket

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

// PriceSource selects which price a line item resolves to first.
type PriceSource int

const (
	// PriceSourceBasket prefers the basket-scoped price, falling back to the catalog price.
	PriceSourceBasket PriceSource = iota
	// PriceSourceCatalog prefers the catalog price, falling back to the basket-scoped price.
	PriceSourceCatalog
)

// ResolvePrice returns the price of a line item. A present price wins even when zero.
func ResolvePrice(item tebex.BasketPackage, source PriceSource) decimal.Decimal {
	basketScoped, hasBasket := basketPrice(item)
	catalog, hasCatalog := catalogPrice(item)

	switch source {
	case PriceSourceCatalog:
		if hasCatalog {
			return catalog
		}
		if hasBasket {
			return basketScoped
		}
	default:
		if hasBasket {
			return basketScoped
		}
		if hasCatalog {
			return catalog
		}
	}
	return decimal.Zero
}

func basketPrice(item tebex.BasketPackage) (decimal.Decimal, bool) {
	if item.InBasket != nil {
		return item.InBasket.Price, true
	}
	if item.Price != nil {
		return *item.Price, true
	}
	return decimal.Zero, false
}

func catalogPrice(item tebex.BasketPackage) (decimal.Decimal, bool) {
	pkg := item.Package
	if pkg == nil {
		return decimal.Zero, false
	}
	if pkg.TotalPrice == nil && pkg.Price == nil && pkg.BasePrice == nil {
		return decimal.Zero, false
	}
	return pkg.DisplayPrice(), true
}

// withoutItem returns a copy of b minus packageID, with totals reduced by delta and clamped at zero.
func withoutItem(b *tebex.Basket, packageID int, delta decimal.Decimal) *tebex.Basket {
	out := b.Clone()
	kept := make([]tebex.BasketPackage, 0, len(out.Packages))
	for _, item := range out.Packages {
		if item.ID != packageID {
			kept = append(kept, item)
		}
	}
	out.Packages = kept
	out.TotalPrice = clampedSubtract(out.TotalPrice, delta)
	out.BasePrice = clampedSubtract(out.BasePrice, delta)
	return out
}

func clampedSubtract(amount *decimal.Decimal, delta decimal.Decimal) *decimal.Decimal {
	base := decimal.Zero
	if amount != nil {
		base = *amount
	}
	result := base.Sub(delta)
	if result.IsNegative() {
		result = decimal.Zero
	}
	return &result
}
