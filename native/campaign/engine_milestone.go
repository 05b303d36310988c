package campaign

import (
	"fmt"

	"hoperise/native/bank"
	"hoperise/native/common"
)

func (e *Engine) loadMilestones(c *Campaign) ([]*Milestone, error) {
	addr := CampaignAddress(c.ID)
	out := make([]*Milestone, 0, c.MilestoneCount)
	for i := uint8(0); i < c.MilestoneCount; i++ {
		m, ok, err := e.state.CampaignMilestoneGet(addr, i)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: campaign %d milestone %d missing", ErrCorrupted, c.ID, i)
		}
		out = append(out, m.Clone())
	}
	return out, nil
}

// AddMilestone appends the next contiguous milestone to a campaign. Milestones
// can be added until the first one is completed or escrow is paid out. An
// elapsed deadline is resolved first.
func (e *Engine) AddMilestone(caller [20]byte, id uint64, title string, target uint64) (*Milestone, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if caller != c.Creator {
		return nil, ErrUnauthorized
	}
	settled := settle(c, e.now())
	if c.Closed || c.Outcome == OutcomeFailed {
		return nil, ErrCampaignInactive
	}
	if c.AmountReleased > 0 {
		return nil, fmt.Errorf("%w: escrow already paid out", ErrNotEligible)
	}
	if c.MilestoneCount >= MaxMilestones {
		return nil, ErrTooManyMilestones
	}
	if err := checkText("milestone title", title, MaxMilestoneTitleLength, true); err != nil {
		return nil, err
	}
	if target == 0 {
		return nil, fmt.Errorf("%w: target amount must be positive", ErrInvalidInput)
	}
	addr := CampaignAddress(id)
	if c.MilestoneCount > 0 {
		first, ok, err := e.state.CampaignMilestoneGet(addr, 0)
		if err != nil {
			return nil, err
		}
		if ok && first.IsCompleted {
			return nil, fmt.Errorf("%w: milestones already in progress", ErrNotEligible)
		}
	}

	m := &Milestone{
		Campaign:     addr,
		Index:        c.MilestoneCount,
		Title:        title,
		TargetAmount: target,
	}
	c.MilestoneCount++
	if err := e.state.CampaignMilestonePut(m); err != nil {
		return nil, err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	if settled {
		e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	}
	e.emit(campaignEvent{evt: NewMilestoneAddedEvent(c, m)})
	return m.Clone(), nil
}

// Milestone returns a single milestone record.
func (e *Engine) Milestone(id uint64, index uint8) (*Milestone, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	m, ok, err := e.state.CampaignMilestoneGet(CampaignAddress(id), index)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: campaign %d milestone %d", ErrNotFound, id, index)
	}
	return m.Clone(), nil
}

// Milestones returns every milestone of the campaign in index order.
func (e *Engine) Milestones(id uint64) ([]*Milestone, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	return e.loadMilestones(c)
}

// CompleteMilestone marks the next incomplete milestone of a succeeded
// campaign as completed. The cumulative target of completed milestones may
// never exceed the amount raised.
func (e *Engine) CompleteMilestone(caller [20]byte, id uint64, index uint8) (*Milestone, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if caller != c.Creator {
		return nil, ErrUnauthorized
	}
	settled := settle(c, e.now())
	if c.Outcome != OutcomeSucceeded {
		return nil, fmt.Errorf("%w: campaign is %s", ErrNotEligible, c.State())
	}
	if c.Closed {
		return nil, ErrCampaignInactive
	}
	if index >= c.MilestoneCount {
		return nil, fmt.Errorf("%w: milestone %d does not exist", ErrInvalidInput, index)
	}
	milestones, err := e.loadMilestones(c)
	if err != nil {
		return nil, err
	}
	var cumulative uint64
	next := -1
	for i, m := range milestones {
		if !m.IsCompleted {
			next = i
			break
		}
		if cumulative, err = common.AddUint64(cumulative, m.TargetAmount); err != nil {
			return nil, err
		}
	}
	if next != int(index) {
		return nil, fmt.Errorf("%w: next milestone is %d", ErrMilestoneOutOfOrder, next)
	}
	target := milestones[index]
	cumulative, err = common.AddUint64(cumulative, target.TargetAmount)
	if err != nil {
		return nil, err
	}
	if cumulative > c.AmountRaised {
		return nil, fmt.Errorf("%w: cumulative target %d exceeds raised %d", ErrInsufficientFunds, cumulative, c.AmountRaised)
	}

	target.IsCompleted = true
	if err := e.state.CampaignMilestonePut(target); err != nil {
		return nil, err
	}
	if settled {
		if err := e.state.CampaignPut(c); err != nil {
			return nil, err
		}
		e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	}
	e.emit(campaignEvent{evt: NewMilestoneCompletedEvent(c, target)})
	return target.Clone(), nil
}

// Release pays a completed milestone's target from the vault to the creator.
// Each milestone pays out once.
func (e *Engine) Release(caller [20]byte, id uint64, index uint8) (*Milestone, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if caller != c.Creator {
		return nil, ErrUnauthorized
	}
	addr := CampaignAddress(id)
	m, ok, err := e.state.CampaignMilestoneGet(addr, index)
	if err != nil {
		return nil, err
	}
	if !ok || index >= c.MilestoneCount {
		return nil, fmt.Errorf("%w: milestone %d does not exist", ErrInvalidInput, index)
	}
	m = m.Clone()
	if m.Released {
		return nil, ErrAlreadyReleased
	}
	if !m.IsCompleted {
		return nil, fmt.Errorf("%w: milestone %d not completed", ErrNotEligible, index)
	}
	if c.Outcome != OutcomeSucceeded {
		return nil, fmt.Errorf("%w: campaign is %s", ErrNotEligible, c.State())
	}
	released, err := common.AddUint64(c.AmountReleased, m.TargetAmount)
	if err != nil {
		return nil, err
	}
	escrowed, err := c.Escrowed()
	if err != nil {
		return nil, err
	}
	if m.TargetAmount > escrowed {
		return nil, fmt.Errorf("%w: escrow holds %d, milestone needs %d", ErrInsufficientFunds, escrowed, m.TargetAmount)
	}

	if err := bank.Transfer(e.state, addr[:], c.Creator[:], m.TargetAmount); err != nil {
		return nil, transferErr(err)
	}
	m.Released = true
	c.AmountReleased = released
	if err := e.state.CampaignMilestonePut(m); err != nil {
		return nil, err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewMilestoneReleasedEvent(c, m)})
	return m.Clone(), nil
}

// Withdraw pays the unreleased remainder of a succeeded campaign to the
// creator once every milestone has been completed and released.
func (e *Engine) Withdraw(caller [20]byte, id uint64) (uint64, error) {
	if err := e.ready(true); err != nil {
		return 0, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return 0, err
	}
	if caller != c.Creator {
		return 0, ErrUnauthorized
	}
	settled := settle(c, e.now())
	if c.Outcome != OutcomeSucceeded {
		return 0, fmt.Errorf("%w: campaign is %s", ErrNotEligible, c.State())
	}
	milestones, err := e.loadMilestones(c)
	if err != nil {
		return 0, err
	}
	for _, m := range milestones {
		if !m.IsCompleted || !m.Released {
			return 0, fmt.Errorf("%w: milestone %d outstanding", ErrNotEligible, m.Index)
		}
	}
	remainder, err := c.Escrowed()
	if err != nil {
		return 0, err
	}
	if remainder == 0 {
		return 0, fmt.Errorf("%w: nothing left to withdraw", ErrNotEligible)
	}
	released, err := common.AddUint64(c.AmountReleased, remainder)
	if err != nil {
		return 0, err
	}

	addr := CampaignAddress(id)
	if err := bank.Transfer(e.state, addr[:], c.Creator[:], remainder); err != nil {
		return 0, transferErr(err)
	}
	c.AmountReleased = released
	if err := e.state.CampaignPut(c); err != nil {
		return 0, err
	}
	if settled {
		e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	}
	e.emit(campaignEvent{evt: NewWithdrawnEvent(c, remainder)})
	return remainder, nil
}
