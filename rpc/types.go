package rpc

import (
	"encoding/hex"
	"strconv"

	"hoperise/core"
	"hoperise/core/state"
	"hoperise/crypto"
	"hoperise/indexer"
	"hoperise/native/campaign"
)

type commitJSON struct {
	Height uint64 `json:"height"`
	Root   string `json:"root"`
}

func commitFrom(c state.Commit) commitJSON {
	return commitJSON{Height: c.Height, Root: hex.EncodeToString(c.Root[:])}
}

type counterJSON struct {
	Count     uint64 `json:"count"`
	Authority string `json:"authority"`
	Address   string `json:"address"`
}

func counterFrom(c *campaign.Counter) counterJSON {
	addr := campaign.CounterAddress()
	return counterJSON{
		Count:     c.Count,
		Authority: crypto.AddressFromArray(c.Authority).String(),
		Address:   hex.EncodeToString(addr[:]),
	}
}

type campaignJSON struct {
	ID               uint64 `json:"id"`
	Address          string `json:"address"`
	Creator          string `json:"creator"`
	Title            string `json:"title"`
	ShortDescription string `json:"shortDescription"`
	Category         string `json:"category"`
	CoverImageRef    string `json:"coverImageRef"`
	StoryRef         string `json:"storyRef"`
	FundingGoal      string `json:"fundingGoal"`
	Deadline         int64  `json:"deadline"`
	AmountRaised     string `json:"amountRaised"`
	AmountReleased   string `json:"amountReleased"`
	AmountRefunded   string `json:"amountRefunded"`
	Escrowed         string `json:"escrowed,omitempty"`
	VaultBalance     string `json:"vaultBalance,omitempty"`
	BackerCount      uint64 `json:"backerCount"`
	IsActive         bool   `json:"isActive"`
	CreatedAt        int64  `json:"createdAt"`
	MilestoneCount   uint8  `json:"milestoneCount"`
	State            string `json:"state"`
	Outcome          string `json:"outcome"`
	Closed           bool   `json:"closed"`
}

func campaignFrom(c *campaign.Campaign) campaignJSON {
	addr := campaign.CampaignAddress(c.ID)
	out := campaignJSON{
		ID:               c.ID,
		Address:          hex.EncodeToString(addr[:]),
		Creator:          crypto.AddressFromArray(c.Creator).String(),
		Title:            c.Title,
		ShortDescription: c.ShortDescription,
		Category:         c.Category.String(),
		CoverImageRef:    c.CoverImageRef,
		StoryRef:         c.StoryRef,
		FundingGoal:      formatAmount(c.FundingGoal),
		Deadline:         c.Deadline,
		AmountRaised:     formatAmount(c.AmountRaised),
		AmountReleased:   formatAmount(c.AmountReleased),
		AmountRefunded:   formatAmount(c.AmountRefunded),
		BackerCount:      c.BackerCount,
		IsActive:         c.IsActive,
		CreatedAt:        c.CreatedAt,
		MilestoneCount:   c.MilestoneCount,
		State:            string(c.State()),
		Outcome:          c.Outcome.String(),
		Closed:           c.Closed,
	}
	if escrowed, err := c.Escrowed(); err == nil {
		out.Escrowed = formatAmount(escrowed)
	}
	return out
}

type milestoneJSON struct {
	Campaign     string `json:"campaign"`
	Index        uint8  `json:"index"`
	Title        string `json:"title"`
	TargetAmount string `json:"targetAmount"`
	IsCompleted  bool   `json:"isCompleted"`
	Released     bool   `json:"released"`
}

func milestoneFrom(m *campaign.Milestone) milestoneJSON {
	return milestoneJSON{
		Campaign:     hex.EncodeToString(m.Campaign[:]),
		Index:        m.Index,
		Title:        m.Title,
		TargetAmount: formatAmount(m.TargetAmount),
		IsCompleted:  m.IsCompleted,
		Released:     m.Released,
	}
}

type contributionJSON struct {
	Campaign      string `json:"campaign"`
	Contributor   string `json:"contributor"`
	Amount        string `json:"amount"`
	ContributedAt int64  `json:"contributedAt"`
	RefundClaimed bool   `json:"refundClaimed"`
}

func contributionFrom(c *campaign.Contribution) contributionJSON {
	return contributionJSON{
		Campaign:      hex.EncodeToString(c.Campaign[:]),
		Contributor:   crypto.AddressFromArray(c.Contributor).String(),
		Amount:        formatAmount(c.Amount),
		ContributedAt: c.ContributedAt,
		RefundClaimed: c.RefundClaimed,
	}
}

type eventJSON struct {
	Sequence   uint64            `json:"sequence"`
	Cursor     string            `json:"cursor"`
	Height     uint64            `json:"height"`
	Root       string            `json:"root"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func eventFrom(rec core.EventRecord) eventJSON {
	out := eventJSON{
		Sequence: rec.Sequence,
		Cursor:   rec.Cursor,
		Height:   rec.Height,
		Root:     hex.EncodeToString(rec.Root[:]),
	}
	if rec.Event != nil {
		out.Type = rec.Event.Type
		out.Attributes = rec.Event.Attributes
	}
	return out
}

func formatAmount(v uint64) string { return strconv.FormatUint(v, 10) }

type summaryJSON struct {
	ID           uint64 `json:"id"`
	Creator      string `json:"creator"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	State        string `json:"state"`
	AmountRaised string `json:"amountRaised"`
	FundingGoal  string `json:"fundingGoal"`
	Deadline     int64  `json:"deadline"`
	LastSequence uint64 `json:"lastSequence"`
}

func summaryFrom(row indexer.CampaignSummary) summaryJSON {
	return summaryJSON{
		ID:           row.CampaignID,
		Creator:      row.Creator,
		Title:        row.Title,
		Category:     row.Category,
		State:        row.State,
		AmountRaised: formatAmount(row.AmountRaised),
		FundingGoal:  formatAmount(row.FundingGoal),
		Deadline:     row.Deadline,
		LastSequence: row.LastSequence,
	}
}
