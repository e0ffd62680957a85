package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/YeLlowseaG/clientseeker/api/middleware"
	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/api/validators"
	"github.com/YeLlowseaG/clientseeker/internal/subscriptions"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
)

type statusService interface {
	Status(ctx context.Context, userUUID uuid.UUID) (*subscriptions.StatusDTO, error)
	StatusByEmail(ctx context.Context, email string) (*subscriptions.StatusDTO, error)
}

type statusRequest struct {
	UserEmail string `json:"userEmail" validate:"required,email,max=255"`
}

func SubscriptionStatus(svc statusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Status(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

// PublicSubscriptionStatus answers for the session user when there is one and
// for body.userEmail otherwise.
func PublicSubscriptionStatus(svc statusService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if middleware.UserIDFromContext(r.Context()) != "" {
			SubscriptionStatus(svc, logg)(w, r)
			return
		}
		if r.ContentLength == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session or userEmail required"))
			return
		}

		var payload statusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.StatusByEmail(r.Context(), payload.UserEmail)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
