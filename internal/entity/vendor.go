package entity

import (
	"time"

	"github.com/google/uuid"
)

// VendorIdentity is the canonical supplier record for a bill.
type VendorIdentity struct {
	ID            uuid.UUID `json:"id"`
	CanonicalName string    `json:"canonical_name"`
	TaxID         string    `json:"tax_id,omitempty"`
	StateCode     string    `json:"state_code,omitempty"`
	Address       string    `json:"address,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	Email         string    `json:"email,omitempty"`
	Score         float64   `json:"score"`
	Source        string    `json:"source,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}
