package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/api/validators"
	"github.com/YeLlowseaG/clientseeker/internal/orders"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

type orderReader interface {
	Get(ctx context.Context, userUUID uuid.UUID, orderNo string) (*orders.OrderDTO, error)
	List(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*orders.OrderList, error)
}

func OrderList(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

func OrderDetail(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), userID, chi.URLParam(r, "orderNo"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
