package tebex

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Category is a catalog grouping with its nested packages.
type Category struct {
	ID          int       `json:"id" validate:"required"`
	Name        string    `json:"name" validate:"required"`
	Slug        *string   `json:"slug,omitempty"`
	Description string    `json:"description"`
	Packages    []Package `json:"packages" validate:"dive"`
	Order       int       `json:"order"`
	DisplayType *string   `json:"display_type,omitempty"`
	ImageURL    *string   `json:"image_url,omitempty"`
	Tiered      bool      `json:"tiered,omitempty"`
}

// PackageCategory is the category reference embedded in a package.
type PackageCategory struct {
	ID   int    `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// InBasket carries the basket-scoped quantity and price of a package.
type InBasket struct {
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Package is a purchasable catalog entry. It is read-only reference data.
type Package struct {
	ID             int              `json:"id" validate:"required"`
	Name           string           `json:"name" validate:"required"`
	Slug           *string          `json:"slug,omitempty"`
	Description    string           `json:"description"`
	TotalPrice     *decimal.Decimal `json:"total_price,omitempty"`
	BasePrice      *decimal.Decimal `json:"base_price,omitempty"`
	Price          *decimal.Decimal `json:"price,omitempty"`
	Currency       string           `json:"currency,omitempty"`
	Image          *string          `json:"image,omitempty"`
	Category       *PackageCategory `json:"category,omitempty"`
	Order          int              `json:"order"`
	DisableQty     bool             `json:"disable_quantity,omitempty"`
	DisableGifting bool             `json:"disable_gifting,omitempty"`
	ExpirationDate *string          `json:"expiration_date,omitempty"`
	UserLimit      *int             `json:"user_limit,omitempty"`
	Type           string           `json:"type,omitempty"`
	CreatedAt      string           `json:"created_at,omitempty"`
	UpdatedAt      string           `json:"updated_at,omitempty"`
	Discount       *decimal.Decimal `json:"discount,omitempty"`
	SalesTax       *decimal.Decimal `json:"sales_tax,omitempty"`
	InBasket       *InBasket        `json:"in_basket,omitempty"`
}

// DisplayPrice is the catalog price shown for a package: total_price, then price,
// then base_price, else zero.
func (p *Package) DisplayPrice() decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	for _, candidate := range []*decimal.Decimal{p.TotalPrice, p.Price, p.BasePrice} {
		if candidate != nil {
			return *candidate
		}
	}
	return decimal.Zero
}

// BasketPackage is a line item: a quantity of one package inside a basket.
type BasketPackage struct {
	ID       int              `json:"id" validate:"required"`
	Quantity int              `json:"qty"`
	Name     string           `json:"name,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
	Image    *string          `json:"image,omitempty"`
	InBasket *InBasket        `json:"in_basket,omitempty"`
	Package  *Package         `json:"package,omitempty"`
}

// UnmarshalJSON applies the wire default of one unit when qty is absent.
func (b *BasketPackage) UnmarshalJSON(data []byte) error {
	type alias BasketPackage
	aux := alias{Quantity: 1}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*b = BasketPackage(aux)
	return nil
}

// BasketQuantity is the in-basket quantity, falling back to the line qty.
func (b BasketPackage) BasketQuantity() int {
	if b.InBasket != nil {
		return b.InBasket.Quantity
	}
	return b.Quantity
}

// BasketLinks holds the checkout-initiation link.
type BasketLinks struct {
	Checkout string `json:"checkout,omitempty"`
}

// UnmarshalJSON accepts either {"checkout": "..."} or a list of {rel, href} entries.
func (l *BasketLinks) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var entries []struct {
			Rel  string `json:"rel"`
			Href string `json:"href"`
		}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return err
		}
		for _, entry := range entries {
			if entry.Rel == "checkout" {
				l.Checkout = entry.Href
				break
			}
		}
		return nil
	case '{':
		var obj struct {
			Checkout string `json:"checkout"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return err
		}
		l.Checkout = obj.Checkout
		return nil
	default:
		return fmt.Errorf("links must be an object or an array")
	}
}

// Basket is the authoritative cart document identified by Ident.
type Basket struct {
	Ident      string           `json:"ident" validate:"required"`
	Expire     string           `json:"expire,omitempty"`
	BasePrice  *decimal.Decimal `json:"base_price,omitempty"`
	SalesTax   *decimal.Decimal `json:"sales_tax,omitempty"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
	Currency   string           `json:"currency,omitempty"`
	Username   *string          `json:"username,omitempty"`
	Packages   []BasketPackage  `json:"packages" validate:"dive"`
	Links      *BasketLinks     `json:"links,omitempty"`
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (b *Basket) Clone() *Basket {
	if b == nil {
		return nil
	}
	out := *b
	out.BasePrice = cloneDecimal(b.BasePrice)
	out.SalesTax = cloneDecimal(b.SalesTax)
	out.TotalPrice = cloneDecimal(b.TotalPrice)
	out.Username = cloneString(b.Username)
	if b.Links != nil {
		links := *b.Links
		out.Links = &links
	}
	out.Packages = make([]BasketPackage, len(b.Packages))
	for i, item := range b.Packages {
		out.Packages[i] = item.clone()
	}
	return &out
}

// Find returns the line item for packageID.
func (b *Basket) Find(packageID int) (BasketPackage, bool) {
	if b == nil {
		return BasketPackage{}, false
	}
	for _, item := range b.Packages {
		if item.ID == packageID {
			return item, true
		}
	}
	return BasketPackage{}, false
}

// CheckoutURL returns the checkout-initiation link, if any.
func (b *Basket) CheckoutURL() string {
	if b == nil || b.Links == nil {
		return ""
	}
	return b.Links.Checkout
}

func (b BasketPackage) clone() BasketPackage {
	out := b
	out.Price = cloneDecimal(b.Price)
	out.Image = cloneString(b.Image)
	if b.InBasket != nil {
		in := *b.InBasket
		out.InBasket = &in
	}
	out.Package = b.Package.clone()
	return out
}

func (p *Package) clone() *Package {
	if p == nil {
		return nil
	}
	out := *p
	out.Slug = cloneString(p.Slug)
	out.Image = cloneString(p.Image)
	out.ExpirationDate = cloneString(p.ExpirationDate)
	out.TotalPrice = cloneDecimal(p.TotalPrice)
	out.BasePrice = cloneDecimal(p.BasePrice)
	out.Price = cloneDecimal(p.Price)
	out.Discount = cloneDecimal(p.Discount)
	out.SalesTax = cloneDecimal(p.SalesTax)
	if p.Category != nil {
		category := *p.Category
		out.Category = &category
	}
	if p.UserLimit != nil {
		limit := *p.UserLimit
		out.UserLimit = &limit
	}
	if p.InBasket != nil {
		in := *p.InBasket
		out.InBasket = &in
	}
	return &out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// AuthLink is a one-time login URL bound to a return destination.
type AuthLink struct {
	Name string `json:"name,omitempty"`
	URL  string `json:"url" validate:"required"`
}
