package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"hoperise/core"
	"hoperise/crypto"
	"hoperise/indexer"
	"hoperise/native/campaign"
)

type campaignInitializeParams struct {
	Authority string `json:"authority"`
}

type campaignCreateParams struct {
	Creator          string `json:"creator"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription,omitempty"`
	Category         string `json:"category"`
	CoverImageRef    string `json:"coverImageRef,omitempty"`
	StoryRef         string `json:"storyRef,omitempty"`
	FundingGoal      string `json:"fundingGoal"`
	DurationDays     uint64 `json:"durationDays"`
}

type campaignIDParams struct {
	ID *uint64 `json:"id"`
}

type campaignActorParams struct {
	ID     *uint64 `json:"id"`
	Caller string  `json:"caller"`
}

type campaignMilestoneParams struct {
	ID     *uint64 `json:"id"`
	Caller string  `json:"caller,omitempty"`
	Index  *uint8  `json:"index"`
}

type campaignAddMilestoneParams struct {
	ID           *uint64 `json:"id"`
	Caller       string  `json:"caller"`
	Title        string  `json:"title"`
	TargetAmount string  `json:"targetAmount"`
}

type campaignContributeParams struct {
	ID          *uint64 `json:"id"`
	Contributor string  `json:"contributor"`
	Amount      string  `json:"amount"`
}

type campaignContributionParams struct {
	ID          *uint64 `json:"id"`
	Contributor string  `json:"contributor"`
}

type campaignListParams struct {
	Offset   uint64 `json:"offset,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Creator  string `json:"creator,omitempty"`
	State    string `json:"state,omitempty"`
	Category string `json:"category,omitempty"`
}

type campaignListEventsParams struct {
	After uint64  `json:"after,omitempty"`
	Limit int     `json:"limit,omitempty"`
	Type  string  `json:"type,omitempty"`
	ID    *uint64 `json:"id,omitempty"`
}

type campaignSummariesParams struct {
	ID      *uint64 `json:"id,omitempty"`
	Creator string  `json:"creator,omitempty"`
}

type campaignResult struct {
	Campaign campaignJSON `json:"campaign"`
	Commit   commitJSON   `json:"commit"`
}

type milestoneResult struct {
	Milestone milestoneJSON `json:"milestone"`
	Commit    commitJSON    `json:"commit"`
}

type contributionResult struct {
	Contribution contributionJSON `json:"contribution"`
	Commit       commitJSON       `json:"commit"`
}

type withdrawResult struct {
	Amount string     `json:"amount"`
	Commit commitJSON `json:"commit"`
}

type counterResult struct {
	Counter counterJSON `json:"counter"`
	Commit  commitJSON  `json:"commit"`
}

const maxListLimit = 100

func parseAccount(field, value string) ([20]byte, error) {
	if strings.TrimSpace(value) == "" {
		return [20]byte{}, fmt.Errorf("%s required", field)
	}
	addr, err := crypto.ParseAccount(strings.TrimSpace(value))
	if err != nil {
		return [20]byte{}, fmt.Errorf("%s: %w", field, err)
	}
	return addr, nil
}

func parseAmount(field, value string) (uint64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, fmt.Errorf("%s required", field)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a base-10 unsigned integer", field)
	}
	return amount, nil
}

func requireID(id *uint64) (uint64, error) {
	if id == nil {
		return 0, fmt.Errorf("id required")
	}
	return *id, nil
}

func (s *Server) handleCampaignInitialize(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignInitializeParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	authority, err := parseAccount("authority", params.Authority)
	if err != nil {
		invalidParams(w, req.ID, "invalid authority", err)
		return
	}
	counter, commit, err := s.node.CampaignInitialize(authority)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, counterResult{Counter: counterFrom(counter), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignCreate(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignCreateParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	creator, err := parseAccount("creator", params.Creator)
	if err != nil {
		invalidParams(w, req.ID, "invalid creator", err)
		return
	}
	goal, err := parseAmount("fundingGoal", params.FundingGoal)
	if err != nil {
		invalidParams(w, req.ID, "invalid fundingGoal", err)
		return
	}
	category, err := campaign.ParseCategory(params.Category)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	c, commit, err := s.node.CampaignCreate(creator, campaign.CreateParams{
		Title:            params.Title,
		ShortDescription: params.ShortDescription,
		Category:         category,
		CoverImageRef:    params.CoverImageRef,
		StoryRef:         params.StoryRef,
		FundingGoal:      goal,
		DurationDays:     params.DurationDays,
	})
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignResult{Campaign: campaignFrom(c), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignAddMilestone(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignAddMilestoneParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	caller, err := parseAccount("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, "invalid caller", err)
		return
	}
	target, err := parseAmount("targetAmount", params.TargetAmount)
	if err != nil {
		invalidParams(w, req.ID, "invalid targetAmount", err)
		return
	}
	m, commit, err := s.node.CampaignAddMilestone(caller, id, params.Title, target)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, milestoneResult{Milestone: milestoneFrom(m), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignContribute(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignContributeParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	contributor, err := parseAccount("contributor", params.Contributor)
	if err != nil {
		invalidParams(w, req.ID, "invalid contributor", err)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		invalidParams(w, req.ID, "invalid amount", err)
		return
	}
	contrib, commit, err := s.node.CampaignContribute(contributor, id, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionResult{Contribution: contributionFrom(contrib), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignResolve(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	c, commit, err := s.node.CampaignResolve(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignResult{Campaign: campaignFrom(c), Commit: commitFrom(commit)})
}

func (s *Server) decodeMilestoneActor(w http.ResponseWriter, req *RPCRequest) ([20]byte, uint64, uint8, bool) {
	var params campaignMilestoneParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return [20]byte{}, 0, 0, false
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return [20]byte{}, 0, 0, false
	}
	if params.Index == nil {
		invalidParams(w, req.ID, "invalid index", fmt.Errorf("index required"))
		return [20]byte{}, 0, 0, false
	}
	caller, err := parseAccount("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, "invalid caller", err)
		return [20]byte{}, 0, 0, false
	}
	return caller, id, *params.Index, true
}

func (s *Server) handleCampaignCompleteMilestone(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, index, ok := s.decodeMilestoneActor(w, req)
	if !ok {
		return
	}
	m, commit, err := s.node.CampaignCompleteMilestone(caller, id, index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, milestoneResult{Milestone: milestoneFrom(m), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignRelease(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, index, ok := s.decodeMilestoneActor(w, req)
	if !ok {
		return
	}
	m, commit, err := s.node.CampaignRelease(caller, id, index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, milestoneResult{Milestone: milestoneFrom(m), Commit: commitFrom(commit)})
}

func (s *Server) decodeActor(w http.ResponseWriter, req *RPCRequest) ([20]byte, uint64, bool) {
	var params campaignActorParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return [20]byte{}, 0, false
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return [20]byte{}, 0, false
	}
	caller, err := parseAccount("caller", params.Caller)
	if err != nil {
		invalidParams(w, req.ID, "invalid caller", err)
		return [20]byte{}, 0, false
	}
	return caller, id, true
}

func (s *Server) handleCampaignClaimRefund(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, ok := s.decodeActor(w, req)
	if !ok {
		return
	}
	contrib, commit, err := s.node.CampaignClaimRefund(caller, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionResult{Contribution: contributionFrom(contrib), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignWithdraw(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, ok := s.decodeActor(w, req)
	if !ok {
		return
	}
	amount, commit, err := s.node.CampaignWithdraw(caller, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, withdrawResult{Amount: formatAmount(amount), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignCancel(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, ok := s.decodeActor(w, req)
	if !ok {
		return
	}
	c, commit, err := s.node.CampaignCancel(caller, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignResult{Campaign: campaignFrom(c), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignClose(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	caller, id, ok := s.decodeActor(w, req)
	if !ok {
		return
	}
	c, commit, err := s.node.CampaignClose(caller, id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, campaignResult{Campaign: campaignFrom(c), Commit: commitFrom(commit)})
}

func (s *Server) handleCampaignGet(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	c, vault, err := s.node.Campaign(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := campaignFrom(c)
	out.VaultBalance = formatAmount(vault)
	writeResult(w, req.ID, out)
}

func (s *Server) handleCampaignList(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignListParams
	if err := decodeOptionalParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	filter := core.CampaignFilter{State: campaign.State(strings.ToLower(strings.TrimSpace(params.State)))}
	if params.Creator != "" {
		creator, err := parseAccount("creator", params.Creator)
		if err != nil {
			invalidParams(w, req.ID, "invalid creator", err)
			return
		}
		filter.Creator = &creator
	}
	if params.Category != "" {
		category, err := campaign.ParseCategory(params.Category)
		if err != nil {
			writeEngineError(w, req.ID, err)
			return
		}
		filter.Category = &category
	}
	limit := params.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	list, err := s.node.Campaigns(params.Offset, limit, filter)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]campaignJSON, 0, len(list))
	for _, c := range list {
		out = append(out, campaignFrom(c))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCampaignGetMilestone(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignMilestoneParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	if params.Index == nil {
		invalidParams(w, req.ID, "invalid index", fmt.Errorf("index required"))
		return
	}
	m, err := s.node.CampaignMilestone(id, *params.Index)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, milestoneFrom(m))
}

func (s *Server) handleCampaignListMilestones(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignIDParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	list, err := s.node.CampaignMilestones(id)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	out := make([]milestoneJSON, 0, len(list))
	for _, m := range list {
		out = append(out, milestoneFrom(m))
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCampaignGetContribution(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignContributionParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	id, err := requireID(params.ID)
	if err != nil {
		invalidParams(w, req.ID, "invalid id", err)
		return
	}
	contributor, err := parseAccount("contributor", params.Contributor)
	if err != nil {
		invalidParams(w, req.ID, "invalid contributor", err)
		return
	}
	contrib, err := s.node.CampaignContribution(id, contributor)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, contributionFrom(contrib))
}

func (s *Server) handleCampaignGetCounter(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if len(req.Params) > 0 {
		invalidParams(w, req.ID, "no parameters expected", nil)
		return
	}
	counter, err := s.node.CampaignCounter()
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, counterFrom(counter))
}

func (s *Server) handleCampaignListEvents(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params campaignListEventsParams
	if err := decodeOptionalParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	limit := params.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	if s.indexer != nil {
		rows, err := s.indexer.Events(indexer.Filter{
			Type:       params.Type,
			CampaignID: params.ID,
			After:      params.After,
			Limit:      limit,
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to query events", err.Error())
			return
		}
		out := make([]eventJSON, 0, len(rows))
		for _, row := range rows {
			attrs, err := row.Decode()
			if err != nil {
				writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "corrupt event row", err.Error())
				return
			}
			out = append(out, eventJSON{
				Sequence:   row.Sequence,
				Cursor:     strconv.FormatUint(row.Sequence, 10),
				Height:     row.Height,
				Root:       row.Root,
				Type:       row.Type,
				Attributes: attrs,
			})
		}
		writeResult(w, req.ID, out)
		return
	}
	records := s.node.RecentEvents(params.After, 0, params.Type)
	out := make([]eventJSON, 0, len(records))
	for _, rec := range records {
		if params.ID != nil && rec.Event.Attributes["id"] != strconv.FormatUint(*params.ID, 10) {
			continue
		}
		out = append(out, eventFrom(rec))
		if len(out) >= limit {
			break
		}
	}
	writeResult(w, req.ID, out)
}

func (s *Server) handleCampaignListSummaries(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	if s.indexer == nil {
		writeError(w, http.StatusServiceUnavailable, req.ID, codeServerError, "indexer disabled", nil)
		return
	}
	var params campaignSummariesParams
	if err := decodeOptionalParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	if params.ID != nil {
		summary, err := s.indexer.Summary(*params.ID)
		if errors.Is(err, indexer.ErrNotFound) {
			writeEngineError(w, req.ID, fmt.Errorf("%w: campaign %d not indexed", campaign.ErrNotFound, *params.ID))
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to query summaries", err.Error())
			return
		}
		writeResult(w, req.ID, []summaryJSON{summaryFrom(*summary)})
		return
	}
	creator := ""
	if params.Creator != "" {
		addr, err := parseAccount("creator", params.Creator)
		if err != nil {
			invalidParams(w, req.ID, err.Error(), nil)
			return
		}
		creator = crypto.AddressFromArray(addr).String()
	}
	rows, err := s.indexer.Summaries(creator)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to query summaries", err.Error())
		return
	}
	out := make([]summaryJSON, 0, len(rows))
	for _, row := range rows {
		out = append(out, summaryFrom(row))
	}
	writeResult(w, req.ID, out)
}
