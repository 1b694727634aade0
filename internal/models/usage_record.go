package models

import (
	"time"

	"gorm.io/datatypes"
)

// UsageRecord is the database row backing one identity's ledger record.
type UsageRecord struct {
	Identity string `gorm:"primaryKey;type:text"` // Fingerprint of the identity.

	Counters  datatypes.JSON `gorm:"type:json"`          // Category -> count map.
	LastReset string         `gorm:"type:text;not null"` // RFC3339 window boundary.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TableName fixes the table name independent of GORM pluralization rules.
func (UsageRecord) TableName() string { return "usage_records" }
