package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"hoperise/native/campaign"
	"hoperise/native/common"
	"hoperise/storage"
)

type recordingSink struct {
	records []EventRecord
}

func (s *recordingSink) HandleEvent(rec EventRecord) error {
	s.records = append(s.records, rec)
	return nil
}

type testClock struct{ now int64 }

func (c *testClock) Now() int64 { return c.now }

func account(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

var (
	authority = account(0xA1)
	creator   = account(0xC1)
	backer    = account(0xB1)
)

func newTestNode(t *testing.T, opts ...Option) (*Node, *testClock, *recordingSink) {
	t.Helper()
	clock := &testClock{now: 1_700_000_000}
	sink := &recordingSink{}
	opts = append([]Option{WithClock(clock.Now), WithEventSink(sink)}, opts...)
	node, err := NewNode(storage.NewMemDB(), opts...)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	applied, err := node.ApplyGenesis(authority, []GenesisAllocation{{Address: backer, Balance: 5_000}})
	if err != nil {
		t.Fatalf("genesis: %v", err)
	}
	if !applied {
		t.Fatalf("expected genesis to apply on empty state")
	}
	return node, clock, sink
}

func createCampaign(t *testing.T, node *Node, goal uint64) *campaign.Campaign {
	t.Helper()
	c, _, err := node.CampaignCreate(creator, campaign.CreateParams{
		Title:        "Community garden",
		Category:     campaign.CategoryCommunity,
		FundingGoal:  goal,
		DurationDays: 7,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return c
}

func TestApplyGenesisIsIdempotent(t *testing.T) {
	node, _, _ := newTestNode(t)
	head := node.Head()
	applied, err := node.ApplyGenesis(authority, []GenesisAllocation{{Address: backer, Balance: 5_000}})
	if err != nil {
		t.Fatalf("second genesis: %v", err)
	}
	if applied {
		t.Fatalf("genesis applied twice")
	}
	if node.Head() != head {
		t.Fatalf("head moved on no-op genesis")
	}
	balance, err := node.Balance(backer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5_000 {
		t.Fatalf("unexpected balance %d", balance)
	}
	counter, err := node.CampaignCounter()
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter.Authority != authority || counter.Count != 0 {
		t.Fatalf("unexpected counter %+v", counter)
	}
}

func TestContributeAndRefundFlow(t *testing.T) {
	node, clock, sink := newTestNode(t)
	c := createCampaign(t, node, 1_000)

	if _, commit, err := node.CampaignContribute(backer, c.ID, 400); err != nil {
		t.Fatalf("contribute: %v", err)
	} else if commit.Height == 0 || commit.Writes == 0 {
		t.Fatalf("expected a commit, got %+v", commit)
	}
	got, vault, err := node.Campaign(c.ID)
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if got.AmountRaised != 400 || vault != 400 {
		t.Fatalf("raised %d vault %d", got.AmountRaised, vault)
	}

	clock.now = c.Deadline
	refund, _, err := node.CampaignClaimRefund(backer, c.ID)
	if err != nil {
		t.Fatalf("claim refund: %v", err)
	}
	if !refund.RefundClaimed {
		t.Fatalf("refund not marked claimed")
	}
	balance, err := node.Balance(backer)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 5_000 {
		t.Fatalf("expected full refund, balance %d", balance)
	}
	if _, _, err := node.CampaignClaimRefund(backer, c.ID); !errors.Is(err, campaign.ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}

	var seen []string
	for _, rec := range sink.records {
		seen = append(seen, rec.Event.Type)
	}
	want := []string{
		campaign.EventTypeInitialized,
		campaign.EventTypeCreated,
		campaign.EventTypeContributed,
		campaign.EventTypeResolved,
		campaign.EventTypeRefundClaimed,
	}
	if len(seen) != len(want) {
		t.Fatalf("events %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("event %d: got %s want %s", i, seen[i], want[i])
		}
	}
	for i, rec := range sink.records {
		if rec.Sequence != uint64(i+1) {
			t.Fatalf("record %d has sequence %d", i, rec.Sequence)
		}
	}
}

func TestRejectedOperationLeavesNoTrace(t *testing.T) {
	node, _, sink := newTestNode(t)
	c := createCampaign(t, node, 1_000)
	head := node.Head()
	before := len(sink.records)

	if _, _, err := node.CampaignContribute(backer, c.ID, 50_000); !errors.Is(err, campaign.ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if node.Head() != head {
		t.Fatalf("failed operation advanced the head")
	}
	if len(sink.records) != before {
		t.Fatalf("failed operation published events")
	}
	got, vault, err := node.Campaign(c.ID)
	if err != nil {
		t.Fatalf("campaign: %v", err)
	}
	if got.AmountRaised != 0 || vault != 0 {
		t.Fatalf("state changed after failure: raised %d vault %d", got.AmountRaised, vault)
	}
}

func TestPausedModuleRejectsMutations(t *testing.T) {
	pauses := common.NewPauseSet()
	node, _, _ := newTestNode(t, WithPauses(pauses))
	c := createCampaign(t, node, 1_000)
	pauses[campaign.ModuleName] = true

	if _, _, err := node.CampaignContribute(backer, c.ID, 10); !errors.Is(err, campaign.ErrModulePaused) {
		t.Fatalf("expected paused error, got %v", err)
	}
	if _, _, err := node.Campaign(c.ID); err != nil {
		t.Fatalf("reads must work while paused: %v", err)
	}
}

func TestCampaignListingFilters(t *testing.T) {
	node, clock, _ := newTestNode(t)
	first := createCampaign(t, node, 100)
	second := createCampaign(t, node, 100)
	if _, _, err := node.CampaignContribute(backer, second.ID, 100); err != nil {
		t.Fatalf("contribute: %v", err)
	}

	all, err := node.Campaigns(0, 0, CampaignFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 campaigns, got %d", len(all))
	}

	clock.now = first.Deadline
	succeeded, err := node.Campaigns(0, 0, CampaignFilter{State: campaign.StateSucceeded})
	if err != nil {
		t.Fatalf("list succeeded: %v", err)
	}
	if len(succeeded) != 1 || succeeded[0].ID != second.ID {
		t.Fatalf("unexpected succeeded listing %+v", succeeded)
	}
	failed, err := node.Campaigns(0, 0, CampaignFilter{State: campaign.StateFailed})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != first.ID {
		t.Fatalf("unexpected failed listing %+v", failed)
	}
	other := account(0xEE)
	none, err := node.Campaigns(0, 0, CampaignFilter{Creator: &other})
	if err != nil {
		t.Fatalf("list by creator: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no campaigns for stranger")
	}
}

func TestSubscribeEventsBacklogAndLive(t *testing.T) {
	node, _, _ := newTestNode(t)
	ctx, cancelCtx := context.WithCancel(context.Background())
	defer cancelCtx()

	updates, cancel, backlog, err := node.SubscribeEvents(ctx, "")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()
	if len(backlog) != 1 || backlog[0].Event.Type != campaign.EventTypeInitialized {
		t.Fatalf("unexpected backlog %+v", backlog)
	}

	createCampaign(t, node, 10)
	select {
	case rec := <-updates:
		if rec.Event.Type != campaign.EventTypeCreated {
			t.Fatalf("unexpected live event %s", rec.Event.Type)
		}
		if rec.Cursor != "2" {
			t.Fatalf("unexpected cursor %s", rec.Cursor)
		}
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for event")
	}

	_, cancelAgain, backlog, err := node.SubscribeEvents(ctx, "1")
	if err != nil {
		t.Fatalf("resubscribe: %v", err)
	}
	defer cancelAgain()
	if len(backlog) != 1 || backlog[0].Sequence != 2 {
		t.Fatalf("cursor not honoured: %+v", backlog)
	}
	if _, _, _, err := node.SubscribeEvents(ctx, "abc"); err == nil {
		t.Fatalf("expected invalid cursor error")
	}
}

func TestRecentEventsFiltersByPrefix(t *testing.T) {
	node, _, _ := newTestNode(t)
	c := createCampaign(t, node, 500)
	if _, _, err := node.CampaignAddMilestone(creator, c.ID, "Soil", 200); err != nil {
		t.Fatalf("add milestone: %v", err)
	}
	recs := node.RecentEvents(0, 0, "campaign.milestone.")
	if len(recs) != 1 || recs[0].Event.Type != campaign.EventTypeMilestoneAdded {
		t.Fatalf("unexpected milestone events %+v", recs)
	}
	limited := node.RecentEvents(0, 2, "")
	if len(limited) != 2 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestNodeReopenVerifiesState(t *testing.T) {
	db := storage.NewMemDB()
	node, err := NewNode(db)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.ApplyGenesis(authority, nil); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	head := node.Head()

	reopened, err := NewNode(db)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Head() != head {
		t.Fatalf("head not restored: %+v vs %+v", reopened.Head(), head)
	}
}
