package controllers

import (
	"github.com/angelmondragon/tebex-storefront/internal/basket"
	"github.com/angelmondragon/tebex-storefront/internal/handshake"
	"github.com/angelmondragon/tebex-storefront/internal/sessions"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

type totalsView struct {
	Base     string `json:"base"`
	SalesTax string `json:"sales_tax"`
	Total    string `json:"total"`
}

type basketStateView struct {
	Basket           *tebex.Basket           `json:"basket"`
	IsLoading        bool                    `json:"is_loading"`
	IsAuthenticating bool                    `json:"is_authenticating"`
	IsOpen           bool                    `json:"is_open"`
	PendingPackageID *int                    `json:"pending_package_id,omitempty"`
	ItemCount        int                     `json:"item_count"`
	Totals           totalsView              `json:"totals"`
	CheckoutURL      string                  `json:"checkout_url,omitempty"`
	Popup            *handshake.Directive    `json:"popup,omitempty"`
	Notifications    []sessions.Notification `json:"notifications"`
}

// newBasketStateView renders the session state and hands over the pending popup and
// notifications, which are delivered once.
func newBasketStateView(sess *sessions.Session, fallbackCurrency string) basketStateView {
	st := sess.Store.State()
	return basketStateView{
		Basket:           st.Basket,
		IsLoading:        st.IsLoading,
		IsAuthenticating: st.IsAuthenticating,
		IsOpen:           st.IsOpen,
		PendingPackageID: st.PendingPackageID,
		ItemCount:        st.ItemCount(),
		Totals:           totalsOf(st, fallbackCurrency),
		CheckoutURL:      st.Basket.CheckoutURL(),
		Popup:            sess.Directives.Take(),
		Notifications:    sess.Notices.Drain(),
	}
}

func totalsOf(st basket.State, fallbackCurrency string) totalsView {
	if st.Basket == nil {
		return totalsView{
			Base:     tebex.FormatPrice(nil, fallbackCurrency),
			SalesTax: tebex.FormatPrice(nil, fallbackCurrency),
			Total:    tebex.FormatPrice(nil, fallbackCurrency),
		}
	}
	currency := st.Basket.Currency
	if currency == "" {
		currency = fallbackCurrency
	}
	return totalsView{
		Base:     tebex.FormatPrice(st.Basket.BasePrice, currency),
		SalesTax: tebex.FormatPrice(st.Basket.SalesTax, currency),
		Total:    tebex.FormatPrice(st.Basket.TotalPrice, currency),
	}
}
