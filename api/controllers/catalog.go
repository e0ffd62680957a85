package controllers

import (
	"context"
	"net/http"

	"github.com/YeLlowseaG/clientseeker/api/middleware"
	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/internal/catalog"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/geoip"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

type productLister interface {
	List() []catalog.Product
}

type catalogReloader interface {
	Reload(ctx context.Context) (int, error)
}

type locator interface {
	Locate(ctx context.Context, ip string) (*geoip.Location, error)
}

type productsResponse struct {
	Items []catalog.Product `json:"items"`
}

type reloadResponse struct {
	Products int `json:"products"`
}

func PublicProducts(products productLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, productsResponse{Items: products.List()})
	}
}

// AdminCatalogReload swaps in a freshly parsed catalog. A bad file leaves the
// current catalog serving.
func AdminCatalogReload(reloader catalogReloader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := reloader.Reload(r.Context())
		if err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeValidation, err, "catalog reload failed")
			}
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, reloadResponse{Products: count})
	}
}

// PublicGeo geolocates the caller's address.
func PublicGeo(svc locator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loc, err := svc.Locate(r.Context(), middleware.ClientIP(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, loc)
	}
}
