package models

import "time"

// Beneficiary is a saved transfer recipient owned by a sender.
type Beneficiary struct {
	ID                 string    `json:"id"`
	OwnerID            int64     `json:"ownerId"`
	Name               string    `json:"name"`
	Phone              string    `json:"phone"`
	DestinationCity    string    `json:"destinationCity"`
	DestinationCountry string    `json:"destinationCountry"`
	PreferredServiceID string    `json:"preferredServiceId,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Card brands recognised at capture time.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandUnknown    = "unknown"
)

// PaymentInstrument is a saved card. Only non-sensitive fields are retained; the
// full number and CVV are never part of this type.
type PaymentInstrument struct {
	ID         string    `json:"id"`
	OwnerID    int64     `json:"ownerId"`
	Last4      string    `json:"last4"`
	Brand      string    `json:"brand"`
	HolderName string    `json:"holderName"`
	Expiry     string    `json:"expiry"` // MM/YY
	IsDefault  bool      `json:"isDefault"`
	CreatedAt  time.Time `json:"createdAt"`
}

// User is a sender known to the front-ends.
type User struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
	Tier      VerificationTier
	CreatedAt time.Time
	UpdatedAt time.Time
}
