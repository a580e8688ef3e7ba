package chat

import (
	"time"

	"github.com/suPer8Hu/ai-debate/internal/tokenstore"
)

type CheckoutStatus string

const (
	CheckoutPending CheckoutStatus = "pending"
	CheckoutPaid    CheckoutStatus = "paid"
)

// Checkout is a payment session. Completing it moves the user to Tier.
type Checkout struct {
	ID string `gorm:"primaryKey;size:26"` // ULID

	UserID uint64          `gorm:"index;not null"`
	Tier   tokenstore.Tier `gorm:"type:varchar(16);not null"`
	Status CheckoutStatus  `gorm:"type:varchar(16);index;not null"`

	// Filled when paid
	PaidAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Checkout) TableName() string { return "checkouts" }
