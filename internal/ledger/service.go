package ledger

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/metrics"
	"github.com/YeLlowseaG/clientseeker/pkg/outbox"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

const (
	consumeTransPrefix = "consume:"
	adminTransPrefix   = "admin:"
)

var referencePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9.-]{0,63}$`)

// Service defines the credit ledger operations.
type Service interface {
	Grant(ctx context.Context, tx *gorm.DB, input GrantInput) (bool, error)
	RecordExpiry(ctx context.Context, tx *gorm.DB, input ExpiryInput) (bool, error)
	Balance(ctx context.Context, userUUID uuid.UUID, now time.Time) (int64, error)
	Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error)
	AdminGrant(ctx context.Context, input AdminGrantInput) (*AdminGrantResult, error)
	History(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*EntryList, error)
}

// UsageDraw is one slice of a consumption, taken from the bucket expiring at
// ExpiredAt (nil for credits that never lapse).
type UsageDraw struct {
	ExpiredAt *time.Time
	Credits   int64
}

// UsageRecorder keeps subscription counters in step with consumption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID, draws []UsageDraw) error
}

type userLocker interface {
	Lock(ctx context.Context, tx *gorm.DB, userUUID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// GrantInput describes a positive ledger entry.
type GrantInput struct {
	UserUUID  uuid.UUID
	TransNo   string
	TransType enums.CreditTransType
	Credits   int64
	OrderNo   *string
	ExpiredAt *time.Time
}

// ExpiryInput notes credits that lapsed with a subscription period.
type ExpiryInput struct {
	UserUUID  uuid.UUID
	OrderNo   string
	Credits   int64
	ExpiredAt time.Time
}

// ConsumeInput spends credits once per RequestID.
type ConsumeInput struct {
	UserUUID  uuid.UUID
	Credits   int64
	RequestID string
}

type ConsumeResult struct {
	Consumed int64 `json:"consumed"`
	Balance  int64 `json:"balance"`
	Replayed bool  `json:"replayed"`
}

// AdminGrantInput is an operator grant. Reference makes retries safe.
type AdminGrantInput struct {
	UserUUID      uuid.UUID
	Credits       int64
	Reference     string
	ExpiresInDays int
}

type AdminGrantResult struct {
	Entry   EntryDTO `json:"entry"`
	Created bool     `json:"created"`
}

type ServiceParams struct {
	Repo    Repository
	Users   userLocker
	Tx      txRunner
	Usage   UsageRecorder
	Outbox  outbox.Emitter
	Metrics *metrics.PaymentMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	repo    Repository
	users   userLocker
	tx      txRunner
	usage   UsageRecorder
	outbox  outbox.Emitter
	metrics *metrics.PaymentMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires a ledger service. Usage is optional; without it consumption
// only touches the ledger.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("user locker required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repo,
		users:   params.Users,
		tx:      params.Tx,
		usage:   params.Usage,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     func() time.Time { return now().UTC() },
	}, nil
}

// Grant appends a positive entry inside tx. It reports false when the
// trans_no was already used, which callers treat as success.
func (s *service) Grant(ctx context.Context, tx *gorm.DB, input GrantInput) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if input.UserUUID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user uuid is required")
	}
	if strings.TrimSpace(input.TransNo) == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "trans_no is required")
	}
	if !input.TransType.IsGrant() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s is not a grant type", input.TransType))
	}
	if input.Credits <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}

	entry := &models.CreditEntry{
		UserUUID:  input.UserUUID,
		TransNo:   input.TransNo,
		TransType: input.TransType,
		Credits:   input.Credits,
		OrderNo:   input.OrderNo,
		ExpiredAt: utcPtr(input.ExpiredAt),
		CreatedAt: s.now(),
	}
	written, err := s.repo.WithTx(tx).Insert(ctx, entry)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert credit entry")
	}
	if !written {
		return false, nil
	}

	event := outbox.CreditsGrantedEvent{
		UserUUID:  input.UserUUID.String(),
		TransNo:   entry.TransNo,
		TransType: entry.TransType.String(),
		Credits:   entry.Credits,
		ExpiredAt: entry.ExpiredAt,
	}
	if entry.OrderNo != nil {
		event.OrderNo = *entry.OrderNo
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCreditsGranted,
		AggregateType: enums.AggregateCreditEntry,
		AggregateID:   entry.TransNo,
		Data:          event,
	}); err != nil {
		return false, err
	}
	source := "order"
	if entry.TransType == enums.CreditTransSystemAdd {
		source = "admin"
	}
	s.metrics.AddCreditsGranted(source, entry.Credits)
	return true, nil
}

// RecordExpiry appends the "<order_no>:expire" entry. Its expired_at is the
// period end, already in the past, so the balance is unchanged; the row only
// documents what lapsed.
func (s *service) RecordExpiry(ctx context.Context, tx *gorm.DB, input ExpiryInput) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction required")
	}
	if input.Credits <= 0 {
		return false, nil
	}
	orderNo := input.OrderNo
	expiredAt := input.ExpiredAt.UTC()
	written, err := s.repo.WithTx(tx).Insert(ctx, &models.CreditEntry{
		UserUUID:  input.UserUUID,
		TransNo:   orderNo + ":expire",
		TransType: enums.CreditTransExpire,
		Credits:   -input.Credits,
		OrderNo:   &orderNo,
		ExpiredAt: &expiredAt,
		CreatedAt: s.now(),
	})
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert expire entry")
	}
	return written, nil
}

func (s *service) Balance(ctx context.Context, userUUID uuid.UUID, now time.Time) (int64, error) {
	balance, err := s.repo.Balance(ctx, userUUID, now)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum credit balance")
	}
	return balance, nil
}

// Consume spends credits from the soonest-expiring buckets first. Each slice
// is written with its bucket's expiry so the balance stays a plain sum of live
// entries. Repeating a RequestID returns the original outcome.
func (s *service) Consume(ctx context.Context, input ConsumeInput) (*ConsumeResult, error) {
	if input.UserUUID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user uuid is required")
	}
	if input.Credits <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credits must be positive")
	}
	if !referencePattern.MatchString(input.RequestID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "request_id must be 1-64 letters, digits, dots or dashes")
	}
	baseTransNo := consumeTransPrefix + input.RequestID

	var result *ConsumeResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		now := s.now()
		repo := s.repo.WithTx(tx)

		exists, err := s.users.Lock(ctx, tx, input.UserUUID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}

		prior, err := repo.ListByTransNoFamily(ctx, baseTransNo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load prior consumption")
		}
		if len(prior) > 0 {
			if prior[0].UserUUID != input.UserUUID {
				return pkgerrors.New(pkgerrors.CodeIdempotency, "request_id already used")
			}
			var consumed int64
			for _, entry := range prior {
				consumed -= entry.Credits
			}
			balance, err := repo.Balance(ctx, input.UserUUID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum credit balance")
			}
			result = &ConsumeResult{Consumed: consumed, Balance: balance, Replayed: true}
			return nil
		}

		var buckets []Bucket
		if exists {
			buckets, err = repo.Buckets(ctx, input.UserUUID, now)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit buckets")
			}
		}
		var available int64
		for _, b := range buckets {
			if b.Credits > 0 {
				available += b.Credits
			}
		}
		if available < input.Credits {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient credits").
				WithDetails(map[string]any{"reason": pkgerrors.ReasonInsufficientCredits, "balance": available})
		}

		remaining := input.Credits
		slice := 0
		draws := make([]UsageDraw, 0, len(buckets))
		for _, b := range buckets {
			if remaining == 0 {
				break
			}
			if b.Credits <= 0 {
				continue
			}
			take := min(b.Credits, remaining)
			transNo := baseTransNo
			if slice > 0 {
				transNo += ":" + strconv.Itoa(slice)
			}
			written, err := repo.Insert(ctx, &models.CreditEntry{
				UserUUID:  input.UserUUID,
				TransNo:   transNo,
				TransType: enums.CreditTransConsume,
				Credits:   -take,
				ExpiredAt: utcPtr(b.ExpiredAt),
				CreatedAt: now,
			})
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert consume entry")
			}
			if !written {
				return pkgerrors.New(pkgerrors.CodeConflict, "concurrent consumption for request_id")
			}
			draws = append(draws, UsageDraw{ExpiredAt: utcPtr(b.ExpiredAt), Credits: take})
			remaining -= take
			slice++
		}

		if s.usage != nil {
			if err := s.usage.RecordUsage(ctx, tx, input.UserUUID, draws); err != nil {
				return err
			}
		}
		result = &ConsumeResult{Consumed: input.Credits, Balance: available - input.Credits}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) AdminGrant(ctx context.Context, input AdminGrantInput) (*AdminGrantResult, error) {
	if !referencePattern.MatchString(input.Reference) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference must be 1-64 letters, digits, dots or dashes")
	}
	if input.ExpiresInDays < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "expires_in_days must not be negative")
	}
	transNo := adminTransPrefix + input.Reference

	var result *AdminGrantResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		exists, err := s.users.Lock(ctx, tx, input.UserUUID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock user")
		}
		if !exists {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}

		var expiredAt *time.Time
		if input.ExpiresInDays > 0 {
			at := s.now().AddDate(0, 0, input.ExpiresInDays)
			expiredAt = &at
		}
		created, err := s.Grant(ctx, tx, GrantInput{
			UserUUID:  input.UserUUID,
			TransNo:   transNo,
			TransType: enums.CreditTransSystemAdd,
			Credits:   input.Credits,
			ExpiredAt: expiredAt,
		})
		if err != nil {
			return err
		}
		entry, err := s.repo.WithTx(tx).FindByTransNo(ctx, transNo)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load credit entry")
		}
		if entry == nil || entry.UserUUID != input.UserUUID {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "reference already used for another user")
		}
		result = &AdminGrantResult{Entry: *EntryFromModel(entry), Created: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if s.logg != nil && result.Created {
		logCtx := s.logg.WithFields(ctx, map[string]any{"user_uuid": input.UserUUID.String(), "credits": input.Credits, "trans_no": transNo})
		s.logg.Info(logCtx, "admin credit grant recorded")
	}
	return result, nil
}

func (s *service) History(ctx context.Context, userUUID uuid.UUID, params pagination.Params) (*EntryList, error) {
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByUser(ctx, userUUID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list credit entries")
	}
	page := pagination.BuildPage(rows, params.Limit, func(e models.CreditEntry) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	})
	items := make([]EntryDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *EntryFromModel(&page.Items[i]))
	}
	return &EntryList{Items: items, NextCursor: page.NextCursor}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
