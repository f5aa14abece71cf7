package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/tebex-storefront/api/responses"
	"github.com/angelmondragon/tebex-storefront/api/validators"
	pkgerrors "github.com/angelmondragon/tebex-storefront/pkg/errors"
	"github.com/angelmondragon/tebex-storefront/pkg/logger"
	"github.com/angelmondragon/tebex-storefront/pkg/tebex"
)

// CatalogService serves read-only catalog data.
type CatalogService interface {
	Categories(ctx context.Context, includePackages bool) ([]tebex.Category, error)
	Package(ctx context.Context, id int) (*tebex.Package, error)
}

type packageView struct {
	*tebex.Package
	DisplayPrice string `json:"display_price"`
}

func newPackageView(p *tebex.Package, fallbackCurrency string) packageView {
	currency := p.Currency
	if currency == "" {
		currency = fallbackCurrency
	}
	price := p.DisplayPrice()
	return packageView{Package: p, DisplayPrice: tebex.FormatPrice(&price, currency)}
}

type categoryView struct {
	tebex.Category
	Packages []packageView `json:"packages"`
}

// CategoryList lists catalog categories; include_packages=1 nests their packages.
func CategoryList(svc CatalogService, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		include, err := validators.ParseQueryBool(r, "include_packages", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		categories, err := svc.Categories(r.Context(), include)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]categoryView, 0, len(categories))
		for _, category := range categories {
			view := categoryView{Category: category, Packages: make([]packageView, 0, len(category.Packages))}
			for i := range category.Packages {
				view.Packages = append(view.Packages, newPackageView(&category.Packages[i], currency))
			}
			out = append(out, view)
		}
		responses.WriteSuccess(w, out)
	}
}

// PackageGet returns one package.
func PackageGet(svc CatalogService, currency string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
			return
		}
		id, err := validators.ParsePathID(chi.URLParam(r, "packageId"), "packageId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		pkg, err := svc.Package(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPackageView(pkg, currency))
	}
}
