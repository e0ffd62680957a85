package controllers

import (
	"context"
	"net/http"

	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/api/validators"
	"github.com/YeLlowseaG/clientseeker/internal/payments"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

type captureService interface {
	Capture(ctx context.Context, input payments.CaptureInput) (*payments.Result, error)
}

type captureRequest struct {
	OrderID  string `json:"orderID" validate:"required,max=255"`
	OrderNo  string `json:"orderNo" validate:"required,max=64"`
	Provider string `json:"provider,omitempty" validate:"omitempty,oneof=paypal stripe"`
}

// PaymentCapture confirms a provider payment for one of the caller's orders and
// settles it. Repeating the call for a settled order returns the same result.
func PaymentCapture(svc captureService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload captureRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOrderNo(ctx, payload.OrderNo)
		}
		result, err := svc.Capture(ctx, payments.CaptureInput{
			ProviderOrderID: payload.OrderID,
			OrderNo:         payload.OrderNo,
			UserUUID:        userID,
			Provider:        enums.PaymentProvider(payload.Provider),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
