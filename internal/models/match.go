package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MatchAction is the kind of transition recorded in the match log.
type MatchAction string

const (
	ActionMatch   MatchAction = "MATCH"
	ActionPartial MatchAction = "PARTIAL"
	ActionUnmatch MatchAction = "UNMATCH"
	ActionIgnore  MatchAction = "IGNORE"
)

// SystemActor is the MatchedBy value for automatic matches.
const SystemActor = "system"

// Match is one append-only entry in the reconciliation audit log. Entries
// are never updated or deleted; an unmatch appends an UNMATCH entry rather
// than removing prior ones. The transaction's cached MatchStatus must always
// equal the fold of its entries.
type Match struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TransactionID string         `gorm:"index" json:"transaction_id"`
	TargetType    TargetType     `json:"target_type,omitempty"`
	TargetID      string         `json:"target_id,omitempty"`
	Confidence    *float64       `json:"confidence,omitempty"`
	MatchedBy     string         `json:"matched_by"`
	Action        MatchAction    `json:"action"`
	PaymentID     string         `json:"payment_id,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	RuleTags      datatypes.JSON `json:"rule_tags,omitempty"`
	FromStatus    MatchStatus    `json:"from_status"`
	ToStatus      MatchStatus    `json:"to_status"`
	CreatedAt     time.Time      `json:"created_at"`
}
