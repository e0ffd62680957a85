package users

import (
	"time"

	"github.com/google/uuid"

	"github.com/YeLlowseaG/clientseeker/pkg/db/models"
)

// UserDTO is the transport shape of a billing user.
type UserDTO struct {
	UUID      uuid.UUID `json:"uuid"`
	Email     string    `json:"email"`
	Nickname  *string   `json:"nickname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FromModel maps the persisted row into its transport shape.
func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		UUID:      u.UUID,
		Email:     u.Email,
		Nickname:  u.Nickname,
		CreatedAt: u.CreatedAt,
	}
}
