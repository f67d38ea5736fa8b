package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Token is a persisted record of an issued API bearer token. The JTI is
// embedded in the signed JWT; revocation deletes the row.
type Token struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	JTI       uuid.UUID `json:"jti" gorm:"uniqueIndex"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
