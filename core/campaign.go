package core

import (
	"errors"
	"fmt"

	"hoperise/core/state"
	"hoperise/native/bank"
	"hoperise/native/campaign"
)

// GenesisAllocation credits an account when the ledger is first bootstrapped.
type GenesisAllocation struct {
	Address [20]byte
	Balance uint64
}

// ApplyGenesis initialises the campaign allocator and credits the genesis
// allocations in one commit. It does nothing when the allocator already
// exists, so restarts are safe.
func (n *Node) ApplyGenesis(authority [20]byte, allocations []GenesisAllocation) (bool, error) {
	applied := false
	_, err := n.mutate("genesis", func(engine *campaign.Engine, tx *state.Tx) error {
		if _, ok, err := tx.CampaignCounterGet(); err != nil {
			return err
		} else if ok {
			return nil
		}
		if _, err := engine.Initialize(authority); err != nil {
			return err
		}
		for _, alloc := range allocations {
			if err := bank.Credit(tx, alloc.Address[:], alloc.Balance); err != nil {
				return fmt.Errorf("genesis credit: %w", err)
			}
		}
		applied = true
		return nil
	})
	return applied, err
}

// CampaignInitialize bootstraps the id allocator.
func (n *Node) CampaignInitialize(authority [20]byte) (*campaign.Counter, state.Commit, error) {
	var out *campaign.Counter
	commit, err := n.mutate("initialize", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Initialize(authority)
		return err
	})
	return out, commit, err
}

// CampaignCreate registers a new campaign owned by creator.
func (n *Node) CampaignCreate(creator [20]byte, params campaign.CreateParams) (*campaign.Campaign, state.Commit, error) {
	var out *campaign.Campaign
	commit, err := n.mutate("create", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Create(creator, params)
		return err
	})
	return out, commit, err
}

// CampaignAddMilestone appends a milestone to the creator's campaign.
func (n *Node) CampaignAddMilestone(caller [20]byte, id uint64, title string, target uint64) (*campaign.Milestone, state.Commit, error) {
	var out *campaign.Milestone
	commit, err := n.mutate("add_milestone", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.AddMilestone(caller, id, title, target)
		return err
	})
	return out, commit, err
}

// CampaignContribute moves amount from contributor into the campaign vault.
func (n *Node) CampaignContribute(contributor [20]byte, id uint64, amount uint64) (*campaign.Contribution, state.Commit, error) {
	var out *campaign.Contribution
	commit, err := n.mutate("contribute", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Contribute(contributor, id, amount)
		return err
	})
	if err == nil {
		n.metrics.AddFunds("in", amount)
	}
	return out, commit, err
}

// CampaignResolve settles a campaign whose deadline has passed.
func (n *Node) CampaignResolve(id uint64) (*campaign.Campaign, state.Commit, error) {
	var out *campaign.Campaign
	commit, err := n.mutate("resolve", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Resolve(id)
		return err
	})
	return out, commit, err
}

// CampaignCompleteMilestone marks the next milestone of a succeeded campaign
// complete.
func (n *Node) CampaignCompleteMilestone(caller [20]byte, id uint64, index uint8) (*campaign.Milestone, state.Commit, error) {
	var out *campaign.Milestone
	commit, err := n.mutate("complete_milestone", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.CompleteMilestone(caller, id, index)
		return err
	})
	return out, commit, err
}

// CampaignRelease pays a completed milestone's target to the creator.
func (n *Node) CampaignRelease(caller [20]byte, id uint64, index uint8) (*campaign.Milestone, state.Commit, error) {
	var out *campaign.Milestone
	commit, err := n.mutate("release", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Release(caller, id, index)
		return err
	})
	if err == nil && out != nil {
		n.metrics.AddFunds("released", out.TargetAmount)
	}
	return out, commit, err
}

// CampaignClaimRefund returns a backer's contribution from a failed campaign.
func (n *Node) CampaignClaimRefund(caller [20]byte, id uint64) (*campaign.Contribution, state.Commit, error) {
	var out *campaign.Contribution
	commit, err := n.mutate("claim_refund", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.ClaimRefund(caller, id)
		return err
	})
	if err == nil && out != nil {
		n.metrics.AddFunds("refunded", out.Amount)
	}
	return out, commit, err
}

// CampaignWithdraw pays the remaining escrow of a fully delivered campaign.
func (n *Node) CampaignWithdraw(caller [20]byte, id uint64) (uint64, state.Commit, error) {
	var amount uint64
	commit, err := n.mutate("withdraw", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		amount, err = engine.Withdraw(caller, id)
		return err
	})
	if err == nil {
		n.metrics.AddFunds("released", amount)
	}
	return amount, commit, err
}

// CampaignCancel ends an active campaign early as failed.
func (n *Node) CampaignCancel(caller [20]byte, id uint64) (*campaign.Campaign, state.Commit, error) {
	var out *campaign.Campaign
	commit, err := n.mutate("cancel", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Cancel(caller, id)
		return err
	})
	return out, commit, err
}

// CampaignClose archives a resolved campaign.
func (n *Node) CampaignClose(caller [20]byte, id uint64) (*campaign.Campaign, state.Commit, error) {
	var out *campaign.Campaign
	commit, err := n.mutate("close", func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Close(caller, id)
		return err
	})
	return out, commit, err
}

// Credit mints amount into owner's account. Exposed to operators as a faucet.
func (n *Node) Credit(owner [20]byte, amount uint64) (uint64, state.Commit, error) {
	if amount == 0 {
		return 0, state.Commit{}, fmt.Errorf("%w: amount must be positive", campaign.ErrInvalidInput)
	}
	var balance uint64
	commit, err := n.mutate("credit", func(_ *campaign.Engine, tx *state.Tx) error {
		if err := bank.Credit(tx, owner[:], amount); err != nil {
			return err
		}
		var err error
		balance, err = bank.Balance(tx, owner[:])
		return err
	})
	return balance, commit, err
}

// Balance returns the spendable balance of owner.
func (n *Node) Balance(owner [20]byte) (uint64, error) {
	var balance uint64
	err := n.view(func(_ *campaign.Engine, tx *state.Tx) error {
		var err error
		balance, err = bank.Balance(tx, owner[:])
		return err
	})
	return balance, err
}

// CampaignCounter returns the allocator record.
func (n *Node) CampaignCounter() (*campaign.Counter, error) {
	var out *campaign.Counter
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Counter()
		return err
	})
	return out, err
}

// Campaign returns a campaign and its vault balance.
func (n *Node) Campaign(id uint64) (*campaign.Campaign, uint64, error) {
	var (
		out   *campaign.Campaign
		vault uint64
	)
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		if out, err = engine.Campaign(id); err != nil {
			return err
		}
		vault, err = engine.VaultBalance(id)
		return err
	})
	return out, vault, err
}

// CampaignFilter narrows a listing.
type CampaignFilter struct {
	Creator  *[20]byte
	State    campaign.State
	Category *campaign.Category
}

func (f CampaignFilter) match(c *campaign.Campaign, now int64) bool {
	if f.Creator != nil && c.Creator != *f.Creator {
		return false
	}
	if f.Category != nil && c.Category != *f.Category {
		return false
	}
	if f.State != "" && c.StateAt(now) != f.State {
		return false
	}
	return true
}

// Campaigns lists campaigns with ids starting at offset.
func (n *Node) Campaigns(offset uint64, limit int, filter CampaignFilter) ([]*campaign.Campaign, error) {
	now := n.nowFn()
	var out []*campaign.Campaign
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Campaigns(offset, limit, func(c *campaign.Campaign) bool {
			return filter.match(c, now)
		})
		return err
	})
	if errors.Is(err, campaign.ErrUninitialized) {
		return []*campaign.Campaign{}, nil
	}
	return out, err
}

// CampaignMilestone returns one milestone.
func (n *Node) CampaignMilestone(id uint64, index uint8) (*campaign.Milestone, error) {
	var out *campaign.Milestone
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Milestone(id, index)
		return err
	})
	return out, err
}

// CampaignMilestones returns every milestone of a campaign in index order.
func (n *Node) CampaignMilestones(id uint64) ([]*campaign.Milestone, error) {
	var out []*campaign.Milestone
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Milestones(id)
		return err
	})
	return out, err
}

// CampaignContribution returns a backer's contribution record.
func (n *Node) CampaignContribution(id uint64, contributor [20]byte) (*campaign.Contribution, error) {
	var out *campaign.Contribution
	err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		var err error
		out, err = engine.Contribution(id, contributor)
		return err
	})
	return out, err
}
