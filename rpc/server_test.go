package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"

	"hoperise/core"
	"hoperise/crypto"
	"hoperise/native/campaign"
	"hoperise/rpc/middleware"
	"hoperise/storage"
)

const testSecret = "rpc-test-secret"

type testResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

type testEnv struct {
	server *Server
	node   *core.Node
	clock  *int64
}

func account(b byte) [20]byte {
	var out [20]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func bech(b byte) string { return crypto.AddressFromArray(account(b)).String() }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := int64(1_700_000_000)
	clock := &now
	node, err := core.NewNode(storage.NewMemDB(), core.WithClock(func() int64 { return *clock }))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if _, err := node.ApplyGenesis(account(0xA1), []core.GenesisAllocation{{Address: account(0xB1), Balance: 1_000}}); err != nil {
		t.Fatalf("genesis: %v", err)
	}
	server := NewServer(node, Config{Auth: middleware.AuthConfig{HMACSecret: testSecret}}, nil)
	return &testEnv{server: server, node: node, clock: clock}
}

func adminToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "ops",
		"scope": middleware.AdminScope,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func (e *testEnv) call(t *testing.T, token, method string, params ...interface{}) (int, testResponse) {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		data, err := json.Marshal(p)
		if err != nil {
			t.Fatalf("marshal params: %v", err)
		}
		raw = append(raw, data)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: raw, ID: 1})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/rpc", bytes.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	var resp testResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func decodeResult(t *testing.T, resp testResponse, dst interface{}) {
	t.Helper()
	if resp.Error != nil {
		t.Fatalf("unexpected error %+v", resp.Error)
	}
	if err := json.Unmarshal(resp.Result, dst); err != nil {
		t.Fatalf("decode result: %v", err)
	}
}

func createParams(creator string) map[string]interface{} {
	return map[string]interface{}{
		"creator":      creator,
		"title":        "Library roof",
		"category":     "community",
		"fundingGoal":  "500",
		"durationDays": 3,
	}
}

func TestCampaignLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t)
	creator := bech(0xC1)
	backer := bech(0xB1)

	_, resp := env.call(t, "", "campaign_create", createParams(creator))
	var created campaignResult
	decodeResult(t, resp, &created)
	if created.Campaign.ID != 0 || created.Campaign.State != string(campaign.StateDraft) {
		t.Fatalf("unexpected campaign %+v", created.Campaign)
	}
	if created.Commit.Height == 0 || len(created.Commit.Root) != 64 {
		t.Fatalf("unexpected commit %+v", created.Commit)
	}

	_, resp = env.call(t, "", "campaign_addMilestone", map[string]interface{}{
		"id": 0, "caller": creator, "title": "Materials", "targetAmount": "300",
	})
	var added milestoneResult
	decodeResult(t, resp, &added)
	if added.Milestone.Index != 0 || added.Milestone.TargetAmount != "300" {
		t.Fatalf("unexpected milestone %+v", added.Milestone)
	}

	_, resp = env.call(t, "", "campaign_contribute", map[string]interface{}{
		"id": 0, "contributor": backer, "amount": "600",
	})
	var contributed contributionResult
	decodeResult(t, resp, &contributed)
	if contributed.Contribution.Amount != "600" {
		t.Fatalf("unexpected contribution %+v", contributed.Contribution)
	}

	*env.clock += 3 * campaign.SecondsPerDay
	_, resp = env.call(t, "", "campaign_completeMilestone", map[string]interface{}{
		"id": 0, "caller": creator, "index": 0,
	})
	var completed milestoneResult
	decodeResult(t, resp, &completed)
	if !completed.Milestone.IsCompleted {
		t.Fatalf("milestone not completed")
	}

	_, resp = env.call(t, "", "campaign_release", map[string]interface{}{
		"id": 0, "caller": creator, "index": 0,
	})
	var released milestoneResult
	decodeResult(t, resp, &released)
	if !released.Milestone.Released {
		t.Fatalf("milestone not released")
	}

	status, resp := env.call(t, "", "campaign_release", map[string]interface{}{
		"id": 0, "caller": creator, "index": 0,
	})
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Message != "AlreadyReleased" {
		t.Fatalf("expected AlreadyReleased conflict, got %d %+v", status, resp.Error)
	}

	_, resp = env.call(t, "", "campaign_withdraw", map[string]interface{}{"id": 0, "caller": creator})
	var withdrawn withdrawResult
	decodeResult(t, resp, &withdrawn)
	if withdrawn.Amount != "300" {
		t.Fatalf("unexpected withdraw amount %s", withdrawn.Amount)
	}

	_, resp = env.call(t, "", "bank_getBalance", map[string]interface{}{"address": creator})
	var balance BalanceResponse
	decodeResult(t, resp, &balance)
	if balance.Balance != "600" {
		t.Fatalf("creator should hold 600, got %s", balance.Balance)
	}

	_, resp = env.call(t, "", "campaign_get", map[string]interface{}{"id": 0})
	var got campaignJSON
	decodeResult(t, resp, &got)
	if got.State != string(campaign.StateSucceeded) || got.Escrowed != "0" || got.VaultBalance != "0" {
		t.Fatalf("unexpected final campaign %+v", got)
	}

	_, resp = env.call(t, "", "campaign_listEvents", map[string]interface{}{"type": campaign.EventTypeMilestoneReleased})
	var events []eventJSON
	decodeResult(t, resp, &events)
	if len(events) != 1 || events[0].Attributes["milestone"] != "0" {
		t.Fatalf("unexpected release events %+v", events)
	}
}

func TestAdminMethodsRequireToken(t *testing.T) {
	env := newTestEnv(t)
	params := map[string]interface{}{"address": bech(0xD1), "amount": "25"}

	status, resp := env.call(t, "", "bank_credit", params)
	if status != http.StatusUnauthorized || resp.Error == nil || resp.Error.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %d %+v", status, resp.Error)
	}

	_, resp = env.call(t, adminToken(t), "bank_credit", params)
	var credited BalanceResponse
	decodeResult(t, resp, &credited)
	if credited.Balance != "25" || credited.Commit == nil {
		t.Fatalf("unexpected credit result %+v", credited)
	}

	status, resp = env.call(t, adminToken(t), "campaign_initialize", map[string]interface{}{"authority": bech(0xA1)})
	if status != http.StatusConflict || resp.Error == nil || resp.Error.Message != "AlreadyInitialized" {
		t.Fatalf("expected AlreadyInitialized, got %d %+v", status, resp.Error)
	}
}

func TestEngineErrorsMapToCodes(t *testing.T) {
	env := newTestEnv(t)
	creator := bech(0xC1)

	long := createParams(creator)
	long["title"] = strings.Repeat("x", campaign.MaxTitleLength+1)
	status, resp := env.call(t, "", "campaign_create", long)
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != kindCodes["InvalidInput"].code {
		t.Fatalf("expected InvalidInput, got %d %+v", status, resp.Error)
	}

	status, resp = env.call(t, "", "campaign_get", map[string]interface{}{"id": 42})
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Message != "NotFound" {
		t.Fatalf("expected NotFound, got %d %+v", status, resp.Error)
	}

	env.call(t, "", "campaign_create", createParams(creator))
	status, resp = env.call(t, "", "campaign_addMilestone", map[string]interface{}{
		"id": 0, "caller": bech(0xEE), "title": "x", "targetAmount": "1",
	})
	if status != http.StatusForbidden || resp.Error == nil || resp.Error.Message != "Unauthorized" {
		t.Fatalf("expected Unauthorized, got %d %+v", status, resp.Error)
	}

	status, resp = env.call(t, "", "campaign_contribute", map[string]interface{}{
		"id": 0, "contributor": "not-an-address", "amount": "1",
	})
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %d %+v", status, resp.Error)
	}
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	status, resp := env.call(t, "", "campaign_nope")
	if status != http.StatusNotFound || resp.Error == nil || resp.Error.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %d %+v", status, resp.Error)
	}

	req := httptest.NewRequest(http.MethodPost, "/rpc", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "-32700") {
		t.Fatalf("expected parse error, got %d %s", rec.Code, rec.Body.String())
	}

	status, resp = env.call(t, "", "campaign_get", map[string]interface{}{"id": 0, "extra": true})
	if status != http.StatusBadRequest || resp.Error == nil || resp.Error.Code != codeInvalidParams {
		t.Fatalf("expected unknown field rejection, got %d %+v", status, resp.Error)
	}
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	var health healthJSON
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health.Status != "ok" || health.Commit.Height != env.node.Head().Height {
		t.Fatalf("unexpected health %+v", health)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("missing request id header")
	}

	env.call(t, "", "campaign_getCounter")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rpc_requests_total") {
		t.Fatalf("request metrics missing from exposition")
	}
	if !strings.Contains(rec.Body.String(), `hoperise_rpc_calls_total{method="campaign_getCounter",module="campaign",result="ok"}`) {
		t.Fatalf("campaign call metrics missing from exposition")
	}
}

func TestEventStreamDeliversBacklog(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read backlog: %v", err)
	}
	var first eventJSON
	if err := json.Unmarshal(data, &first); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if first.Type != campaign.EventTypeInitialized || first.Sequence != 1 {
		t.Fatalf("unexpected first event %+v", first)
	}

	if _, _, err := env.node.CampaignCreate(account(0xC1), campaign.CreateParams{
		Title: "Stream", Category: campaign.CategoryArts, FundingGoal: 10, DurationDays: 1,
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, data, err = conn.Read(ctx)
	if err != nil {
		t.Fatalf("read live: %v", err)
	}
	var live eventJSON
	if err := json.Unmarshal(data, &live); err != nil {
		t.Fatalf("decode live: %v", err)
	}
	if live.Type != campaign.EventTypeCreated {
		t.Fatalf("unexpected live event %s", live.Type)
	}
}
