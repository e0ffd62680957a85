package controllers

import (
	"context"
	"net/http"

	"github.com/YeLlowseaG/clientseeker/api/middleware"
	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/api/validators"
	checkoutsvc "github.com/YeLlowseaG/clientseeker/internal/checkout"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

type checkoutService interface {
	Start(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error)
}

type checkoutRequest struct {
	ProductID string `json:"product_id" validate:"required,max=64"`
	Provider  string `json:"provider" validate:"required,oneof=paypal stripe"`
}

// Checkout opens a pending order for a catalog product and returns the
// provider page the buyer should be sent to.
func Checkout(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Start(r.Context(), checkoutsvc.Input{
			UserUUID:  userID,
			Email:     middleware.EmailFromContext(r.Context()),
			ProductID: payload.ProductID,
			Provider:  enums.PaymentProvider(payload.Provider),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
