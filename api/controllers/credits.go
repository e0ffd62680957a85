package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/YeLlowseaG/clientseeker/api/responses"
	"github.com/YeLlowseaG/clientseeker/api/validators"
	"github.com/YeLlowseaG/clientseeker/internal/ledger"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

type creditsService interface {
	Balance(ctx context.Context, userUUID uuid.UUID, now time.Time) (int64, error)
	History(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*ledger.EntryList, error)
	Consume(ctx context.Context, input ledger.ConsumeInput) (*ledger.ConsumeResult, error)
}

type adminGranter interface {
	AdminGrant(ctx context.Context, input ledger.AdminGrantInput) (*ledger.AdminGrantResult, error)
}

type consumeRequest struct {
	Credits   int64  `json:"credits" validate:"required,gt=0"`
	RequestID string `json:"request_id" validate:"required,max=64"`
}

type adminGrantRequest struct {
	UserUUID      uuid.UUID `json:"user_uuid" validate:"required"`
	Credits       int64     `json:"credits" validate:"required,gt=0"`
	Reference     string    `json:"reference" validate:"required,max=64"`
	ExpiresInDays int       `json:"expires_in_days" validate:"min=0,max=3650"`
}

type balanceResponse struct {
	Balance int64 `json:"balance"`
}

func CreditBalance(svc creditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		balance, err := svc.Balance(r.Context(), userID, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balanceResponse{Balance: balance})
	}
}

func CreditLedger(svc creditsService, logg *logger.Logger) http.HandlerFunc {
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
		page, err := svc.History(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// CreditConsume spends credits once per request_id.
func CreditConsume(svc creditsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload consumeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Consume(r.Context(), ledger.ConsumeInput{
			UserUUID:  userID,
			Credits:   payload.Credits,
			RequestID: payload.RequestID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminCreditGrant(svc adminGranter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload adminGrantRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdminGrant(r.Context(), ledger.AdminGrantInput{
			UserUUID:      payload.UserUUID,
			Credits:       payload.Credits,
			Reference:     payload.Reference,
			ExpiresInDays: payload.ExpiresInDays,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
