package indexer

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventRow stores one committed ledger event.
type EventRow struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Sequence   uint64    `gorm:"uniqueIndex"`
	Height     uint64    `gorm:"index"`
	Root       string    `gorm:"size:64"`
	Type       string    `gorm:"index"`
	CampaignID *uint64   `gorm:"index"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

// CampaignSummary is the latest projected view of a campaign, refreshed from
// every event that carries campaign attributes.
type CampaignSummary struct {
	CampaignID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Creator      string `gorm:"index"`
	Title        string
	Category     string `gorm:"index"`
	State        string `gorm:"index"`
	AmountRaised uint64
	FundingGoal  uint64
	Deadline     int64
	LastSequence uint64
	UpdatedAt    time.Time
}

// AutoMigrate creates or updates the indexer schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&EventRow{}, &CampaignSummary{})
}
