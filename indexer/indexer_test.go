package indexer

import (
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"hoperise/core"
	"hoperise/core/types"
	"hoperise/native/campaign"
	"hoperise/storage"
)

func setupIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	idx, err := New(db)
	if err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return idx
}

func record(seq uint64, typ string, attrs map[string]string) core.EventRecord {
	return core.EventRecord{
		Sequence: seq,
		Height:   seq,
		Event:    &types.Event{Type: typ, Attributes: attrs},
	}
}

func TestHandleEventProjectsCampaign(t *testing.T) {
	idx := setupIndexer(t)
	created := record(1, campaign.EventTypeCreated, map[string]string{
		"id":           "0",
		"creator":      "hope1creator",
		"title":        "Community garden",
		"category":     "Community",
		"state":        "draft",
		"amountRaised": "0",
		"fundingGoal":  "1000",
		"deadline":     "1700604800",
	})
	milestone := record(2, campaign.EventTypeMilestoneAdded, map[string]string{
		"id":    "0",
		"title": "Soil",
		"state": "draft",
	})
	contributed := record(3, campaign.EventTypeContributed, map[string]string{
		"id":           "0",
		"state":        "active",
		"amountRaised": "400",
	})
	for _, rec := range []core.EventRecord{created, milestone, contributed} {
		if err := idx.HandleEvent(rec); err != nil {
			t.Fatalf("handle %s: %v", rec.Event.Type, err)
		}
	}

	summary, err := idx.Summary(0)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Title != "Community garden" {
		t.Fatalf("milestone title overwrote campaign title: %q", summary.Title)
	}
	if summary.State != "active" || summary.AmountRaised != 400 || summary.FundingGoal != 1000 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if summary.LastSequence != 3 {
		t.Fatalf("unexpected last sequence %d", summary.LastSequence)
	}

	byCreator, err := idx.Summaries("hope1creator")
	if err != nil {
		t.Fatalf("summaries: %v", err)
	}
	if len(byCreator) != 1 {
		t.Fatalf("expected one summary, got %d", len(byCreator))
	}
}

func TestHandleEventIgnoresReplays(t *testing.T) {
	idx := setupIndexer(t)
	rec := record(7, campaign.EventTypeInitialized, map[string]string{"authority": "hope1auth"})
	if err := idx.HandleEvent(rec); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := idx.HandleEvent(rec); err != nil {
		t.Fatalf("replay: %v", err)
	}
	rows, err := idx.Events(Filter{})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	if rows[0].CampaignID != nil {
		t.Fatalf("initialized event must not carry a campaign id")
	}
	attrs, err := rows[0].Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if attrs["authority"] != "hope1auth" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestEventsFilter(t *testing.T) {
	idx := setupIndexer(t)
	inputs := []core.EventRecord{
		record(1, campaign.EventTypeCreated, map[string]string{"id": "0"}),
		record(2, campaign.EventTypeCreated, map[string]string{"id": "1"}),
		record(3, campaign.EventTypeContributed, map[string]string{"id": "1"}),
	}
	for _, rec := range inputs {
		if err := idx.HandleEvent(rec); err != nil {
			t.Fatalf("handle: %v", err)
		}
	}
	id := uint64(1)
	rows, err := idx.Events(Filter{CampaignID: &id})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 2 || rows[0].Sequence != 2 || rows[1].Sequence != 3 {
		t.Fatalf("unexpected campaign rows %+v", rows)
	}
	rows, err = idx.Events(Filter{Type: campaign.EventTypeCreated, After: 1})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 1 || rows[0].Sequence != 2 {
		t.Fatalf("unexpected typed rows %+v", rows)
	}
	rows, err = idx.Events(Filter{Limit: 1})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 1 || rows[0].Sequence != 1 {
		t.Fatalf("limit not applied: %+v", rows)
	}
}

func TestIndexerFollowsNodeAcrossRestart(t *testing.T) {
	idx := setupIndexer(t)
	db := storage.NewMemDB()
	var authority, creator [20]byte
	authority[0], creator[0] = 0xA1, 0xC1
	params := campaign.CreateParams{
		Title:        "Community garden",
		Category:     campaign.CategoryCommunity,
		FundingGoal:  1_000,
		DurationDays: 7,
	}

	node, err := core.NewNode(db, core.WithEventSink(idx))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.ApplyGenesis(authority, nil); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if _, _, err := node.CampaignCreate(creator, params); err != nil {
		t.Fatalf("create: %v", err)
	}

	restarted, err := core.NewNode(db, core.WithEventSink(idx))
	if err != nil {
		t.Fatalf("reopen node: %v", err)
	}
	if _, _, err := restarted.CampaignCreate(creator, params); err != nil {
		t.Fatalf("create after restart: %v", err)
	}

	rows, err := idx.Events(Filter{})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 indexed events, got %d", len(rows))
	}
	if _, err := idx.Summary(1); err != nil {
		t.Fatalf("campaign created after restart not indexed: %v", err)
	}
}
