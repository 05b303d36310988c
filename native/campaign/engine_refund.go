package campaign

import (
	"fmt"

	"hoperise/native/bank"
	"hoperise/native/common"
)

// ClaimRefund returns a backer's recorded contribution from a failed
// campaign's vault. Each contribution is refunded at most once.
func (e *Engine) ClaimRefund(caller [20]byte, id uint64) (*Contribution, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	addr := CampaignAddress(id)
	record, ok, err := e.state.CampaignContributionGet(addr, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	record = record.Clone()
	settled := settle(c, e.now())
	if c.Outcome != OutcomeFailed {
		return nil, fmt.Errorf("%w: campaign is %s", ErrNotEligible, c.State())
	}
	if record.RefundClaimed {
		return nil, ErrAlreadyClaimed
	}
	refunded, err := common.AddUint64(c.AmountRefunded, record.Amount)
	if err != nil {
		return nil, err
	}
	escrowed, err := c.Escrowed()
	if err != nil {
		return nil, err
	}
	if record.Amount > escrowed {
		return nil, fmt.Errorf("%w: escrow holds %d, refund needs %d", ErrInsufficientFunds, escrowed, record.Amount)
	}

	if err := bank.Transfer(e.state, addr[:], caller[:], record.Amount); err != nil {
		return nil, transferErr(err)
	}
	record.RefundClaimed = true
	c.AmountRefunded = refunded
	if err := e.state.CampaignContributionPut(record); err != nil {
		return nil, err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	if settled {
		e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	}
	e.emit(campaignEvent{evt: NewRefundClaimedEvent(c, record)})
	return record.Clone(), nil
}
