package rpc

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"hoperise/core"
	"hoperise/indexer"
	"hoperise/rpc/middleware"
	"hoperise/storage"
)

func newIndexedTestEnv(t *testing.T) *testEnv {
	t.Helper()
	idx, err := indexer.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open indexer: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	now := int64(1_700_000_000)
	clock := &now
	node, err := core.NewNode(storage.NewMemDB(),
		core.WithClock(func() int64 { return *clock }),
		core.WithEventSink(idx))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.ApplyGenesis(account(0xA1), []core.GenesisAllocation{{Address: account(0xB1), Balance: 1_000}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	server := NewServer(node, Config{Auth: middleware.AuthConfig{HMACSecret: testSecret}}, nil)
	server.SetIndexer(idx)
	return &testEnv{server: server, node: node, clock: clock}
}

func TestListSummariesFromIndexer(t *testing.T) {
	env := newIndexedTestEnv(t)
	creator := bech(0xC1)
	other := bech(0xC2)

	for _, owner := range []string{creator, other} {
		if _, resp := env.call(t, "", "campaign_create", createParams(owner)); resp.Error != nil {
			t.Fatalf("create: %+v", resp.Error)
		}
	}
	if _, resp := env.call(t, "", "campaign_contribute", map[string]interface{}{
		"id": 0, "contributor": bech(0xB1), "amount": "250",
	}); resp.Error != nil {
		t.Fatalf("contribute: %+v", resp.Error)
	}

	_, resp := env.call(t, "", "campaign_listSummaries")
	var all []summaryJSON
	decodeResult(t, resp, &all)
	if len(all) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(all))
	}
	if all[0].AmountRaised != "250" || all[0].State != "active" || all[0].Title != "Library roof" {
		t.Fatalf("unexpected summary %+v", all[0])
	}

	_, resp = env.call(t, "", "campaign_listSummaries", map[string]interface{}{"creator": other})
	var mine []summaryJSON
	decodeResult(t, resp, &mine)
	if len(mine) != 1 || mine[0].ID != 1 {
		t.Fatalf("creator filter failed: %+v", mine)
	}

	status, resp := env.call(t, "", "campaign_listSummaries", map[string]interface{}{"id": 9})
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Message != "NotFound" {
		t.Fatalf("expected NotFound, got %d %+v", status, resp.Error)
	}
}

func TestListSummariesRequiresIndexer(t *testing.T) {
	env := newTestEnv(t)
	status, resp := env.call(t, "", "campaign_listSummaries")
	if status != http.StatusServiceUnavailable || resp.Error == nil {
		t.Fatalf("expected unavailable, got %d %+v", status, resp.Error)
	}
}
