package ledger

import (
	"time"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
	"github.com/YeLlowseaG/clientseeker/pkg/enums"
	"github.com/YeLlowseaG/clientseeker/pkg/pagination"
)

// EntryDTO is the API shape of a ledger entry.
type EntryDTO struct {
	TransNo   string                `json:"trans_no"`
	TransType enums.CreditTransType `json:"trans_type"`
	Credits   int64                 `json:"credits"`
	OrderNo   *string               `json:"order_no,omitempty"`
	ExpiredAt *time.Time            `json:"expired_at,omitempty"`
	CreatedAt time.Time             `json:"created_at"`
}

type EntryList = pagination.Page[EntryDTO]

func EntryFromModel(e *models.CreditEntry) *EntryDTO {
	if e == nil {
		return nil
	}
	return &EntryDTO{
		TransNo:   e.TransNo,
		TransType: e.TransType,
		Credits:   e.Credits,
		OrderNo:   e.OrderNo,
		ExpiredAt: e.ExpiredAt,
		CreatedAt: e.CreatedAt,
	}
}
