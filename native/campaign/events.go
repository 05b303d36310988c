package campaign

import (
	"encoding/hex"
	"strconv"

	"hoperise/core/types"
	"hoperise/crypto"
)

const (
	EventTypeInitialized        = "campaign.initialized"
	EventTypeCreated            = "campaign.created"
	EventTypeMilestoneAdded     = "campaign.milestone.added"
	EventTypeContributed        = "campaign.contributed"
	EventTypeResolved           = "campaign.resolved"
	EventTypeMilestoneCompleted = "campaign.milestone.completed"
	EventTypeMilestoneReleased  = "campaign.milestone.released"
	EventTypeRefundClaimed      = "campaign.refund.claimed"
	EventTypeWithdrawn          = "campaign.withdrawn"
	EventTypeCancelled          = "campaign.cancelled"
	EventTypeClosed             = "campaign.closed"
)

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

func accountString(addr [20]byte) string { return crypto.AddressFromArray(addr).String() }

func newCampaignEvent(eventType string, c *Campaign) *types.Event {
	evt := &types.Event{Type: eventType, Attributes: map[string]string{}}
	if c == nil {
		return evt
	}
	addr := CampaignAddress(c.ID)
	evt.Attributes["id"] = strconv.FormatUint(c.ID, 10)
	evt.Attributes["address"] = hex.EncodeToString(addr[:])
	evt.Attributes["creator"] = accountString(c.Creator)
	evt.Attributes["state"] = string(c.State())
	evt.Attributes["amountRaised"] = strconv.FormatUint(c.AmountRaised, 10)
	return evt
}

// NewInitializedEvent is emitted once when the id allocator is bootstrapped.
func NewInitializedEvent(c *Counter) *types.Event {
	evt := &types.Event{Type: EventTypeInitialized, Attributes: map[string]string{}}
	if c != nil {
		evt.Attributes["authority"] = accountString(c.Authority)
	}
	return evt
}

// NewCreatedEvent returns the canonical payload for a newly created campaign.
func NewCreatedEvent(c *Campaign) *types.Event {
	evt := newCampaignEvent(EventTypeCreated, c)
	if c != nil {
		evt.Attributes["title"] = c.Title
		evt.Attributes["category"] = c.Category.String()
		evt.Attributes["fundingGoal"] = strconv.FormatUint(c.FundingGoal, 10)
		evt.Attributes["deadline"] = strconv.FormatInt(c.Deadline, 10)
	}
	return evt
}

func newMilestoneEvent(eventType string, c *Campaign, m *Milestone) *types.Event {
	evt := newCampaignEvent(eventType, c)
	if m != nil {
		evt.Attributes["milestone"] = strconv.FormatUint(uint64(m.Index), 10)
		evt.Attributes["targetAmount"] = strconv.FormatUint(m.TargetAmount, 10)
	}
	return evt
}

func NewMilestoneAddedEvent(c *Campaign, m *Milestone) *types.Event {
	evt := newMilestoneEvent(EventTypeMilestoneAdded, c, m)
	if m != nil {
		evt.Attributes["title"] = m.Title
	}
	return evt
}

func NewMilestoneCompletedEvent(c *Campaign, m *Milestone) *types.Event {
	return newMilestoneEvent(EventTypeMilestoneCompleted, c, m)
}

func NewMilestoneReleasedEvent(c *Campaign, m *Milestone) *types.Event {
	return newMilestoneEvent(EventTypeMilestoneReleased, c, m)
}

// NewContributedEvent records a single accepted contribution of amount.
func NewContributedEvent(c *Campaign, contrib *Contribution, amount uint64) *types.Event {
	evt := newCampaignEvent(EventTypeContributed, c)
	if contrib != nil {
		evt.Attributes["contributor"] = accountString(contrib.Contributor)
		evt.Attributes["total"] = strconv.FormatUint(contrib.Amount, 10)
	}
	evt.Attributes["amount"] = strconv.FormatUint(amount, 10)
	if c != nil {
		evt.Attributes["backerCount"] = strconv.FormatUint(c.BackerCount, 10)
	}
	return evt
}

func NewResolvedEvent(c *Campaign) *types.Event {
	evt := newCampaignEvent(EventTypeResolved, c)
	if c != nil {
		evt.Attributes["outcome"] = c.Outcome.String()
	}
	return evt
}

func NewRefundClaimedEvent(c *Campaign, contrib *Contribution) *types.Event {
	evt := newCampaignEvent(EventTypeRefundClaimed, c)
	if contrib != nil {
		evt.Attributes["contributor"] = accountString(contrib.Contributor)
		evt.Attributes["amount"] = strconv.FormatUint(contrib.Amount, 10)
	}
	return evt
}

func NewWithdrawnEvent(c *Campaign, amount uint64) *types.Event {
	evt := newCampaignEvent(EventTypeWithdrawn, c)
	evt.Attributes["amount"] = strconv.FormatUint(amount, 10)
	return evt
}

func NewCancelledEvent(c *Campaign) *types.Event { return newCampaignEvent(EventTypeCancelled, c) }

func NewClosedEvent(c *Campaign) *types.Event { return newCampaignEvent(EventTypeClosed, c) }
