package models

import (
	"fmt"
	"time"
)

const (
	StageProposal    = "proposal"
	StageQualified   = "qualified"
	StageNegotiation = "negotiation"
)

type Organization struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Website     string    `json:"website,omitempty"`
	Industry    string    `json:"industry,omitempty"`
	Location    string    `json:"location,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Contact struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	OrganizationID *int64    `json:"organization_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewDeal is the insert payload for a deal and its contact associations.
type NewDeal struct {
	Title          string
	AmountCents    int64
	OrganizationID int64
	Stage          string
	CloseDate      *time.Time
	ContactIDs     []int64
}

type Deal struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	AmountCents    int64      `json:"amount_cents"`
	OrganizationID int64      `json:"organization_id"`
	Stage          string     `json:"stage"`
	CloseDate      *time.Time `json:"close_date,omitempty"`
	ContactIDs     []int64    `json:"contact_ids"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ActivityEntry is one row of the audit trail.
type ActivityEntry struct {
	Action     string
	EntityType string
	EntityID   int64
	Details    string
}

// FormatCents renders integer cents as a fixed two-decimal string, the
// textual form NUMERIC(10,2) columns accept.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
