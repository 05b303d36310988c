package indexer

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"hoperise/core"
	"hoperise/native/campaign"
)

// ErrNotFound is returned when no projection exists for a campaign.
var ErrNotFound = errors.New("indexer: not found")

// Indexer projects committed ledger events into a queryable SQL store.
type Indexer struct {
	db *gorm.DB
}

// Open creates an indexer backed by the sqlite file at path.
func Open(path string) (*Indexer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("indexer: path required")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("indexer: open sqlite: %w", err)
	}
	return New(db)
}

// New wraps an existing gorm handle and migrates the schema.
func New(db *gorm.DB) (*Indexer, error) {
	if db == nil {
		return nil, fmt.Errorf("indexer: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db}, nil
}

// Close releases the underlying connection pool.
func (i *Indexer) Close() error {
	sqlDB, err := i.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HandleEvent implements core.EventSink. Replayed sequences are ignored.
func (i *Indexer) HandleEvent(rec core.EventRecord) error {
	if rec.Event == nil {
		return nil
	}
	attrs, err := json.Marshal(rec.Event.Attributes)
	if err != nil {
		return err
	}
	row := EventRow{
		ID:         uuid.New(),
		Sequence:   rec.Sequence,
		Height:     rec.Height,
		Root:       hex.EncodeToString(rec.Root[:]),
		Type:       rec.Event.Type,
		Attributes: string(attrs),
	}
	if id, ok := parseCampaignID(rec.Event.Attributes); ok {
		row.CampaignID = &id
	}
	return i.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sequence"}}, DoNothing: true}).Create(&row)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 || row.CampaignID == nil {
			return nil
		}
		return upsertSummary(tx, *row.CampaignID, rec)
	})
}

func parseCampaignID(attrs map[string]string) (uint64, bool) {
	raw, ok := attrs["id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func upsertSummary(tx *gorm.DB, id uint64, rec core.EventRecord) error {
	var summary CampaignSummary
	err := tx.First(&summary, "campaign_id = ?", id).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	summary.CampaignID = id
	summary.LastSequence = rec.Sequence
	attrs := rec.Event.Attributes
	if v, ok := attrs["creator"]; ok {
		summary.Creator = v
	}
	if v, ok := attrs["title"]; ok && rec.Event.Type != campaign.EventTypeMilestoneAdded {
		summary.Title = v
	}
	if v, ok := attrs["category"]; ok {
		summary.Category = v
	}
	if v, ok := attrs["state"]; ok {
		summary.State = v
	}
	if v, ok := attrs["amountRaised"]; ok {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			summary.AmountRaised = parsed
		}
	}
	if v, ok := attrs["fundingGoal"]; ok {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			summary.FundingGoal = parsed
		}
	}
	if v, ok := attrs["deadline"]; ok {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			summary.Deadline = parsed
		}
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "campaign_id"}},
		UpdateAll: true,
	}).Create(&summary).Error
}

// Filter narrows event listings.
type Filter struct {
	Type       string
	CampaignID *uint64
	After      uint64
	Limit      int
}

// Events returns stored events in sequence order.
func (i *Indexer) Events(filter Filter) ([]EventRow, error) {
	q := i.db.Model(&EventRow{}).Where("sequence > ?", filter.After)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.CampaignID != nil {
		q = q.Where("campaign_id = ?", *filter.CampaignID)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	var rows []EventRow
	if err := q.Order("sequence asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Summary returns the projected view of one campaign.
func (i *Indexer) Summary(id uint64) (*CampaignSummary, error) {
	var summary CampaignSummary
	err := i.db.First(&summary, "campaign_id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Summaries lists projections, optionally restricted to one creator.
func (i *Indexer) Summaries(creator string) ([]CampaignSummary, error) {
	q := i.db.Model(&CampaignSummary{})
	if creator != "" {
		q = q.Where("creator = ?", creator)
	}
	var out []CampaignSummary
	if err := q.Order("campaign_id asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Decode returns the attribute map of a stored event.
func (r EventRow) Decode() (map[string]string, error) {
	out := make(map[string]string)
	if r.Attributes == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}
