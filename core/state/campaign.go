package state

import (
	"hoperise/native/campaign"
)

func (tx *Tx) CampaignCounterGet() (*campaign.Counter, bool, error) {
	raw, ok, err := tx.get(recordKey(campaign.CounterAddress()))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := campaign.DecodeCounter(raw)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (tx *Tx) CampaignCounterPut(c *campaign.Counter) error {
	raw, err := campaign.EncodeCounter(c)
	if err != nil {
		return err
	}
	return tx.put(recordKey(campaign.CounterAddress()), raw)
}

func (tx *Tx) CampaignGet(id uint64) (*campaign.Campaign, bool, error) {
	raw, ok, err := tx.get(recordKey(campaign.CampaignAddress(id)))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := campaign.DecodeCampaign(raw)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (tx *Tx) CampaignPut(c *campaign.Campaign) error {
	raw, err := campaign.EncodeCampaign(c)
	if err != nil {
		return err
	}
	return tx.put(recordKey(campaign.CampaignAddress(c.ID)), raw)
}

func (tx *Tx) CampaignMilestoneGet(addr [32]byte, index uint8) (*campaign.Milestone, bool, error) {
	raw, ok, err := tx.get(recordKey(campaign.MilestoneAddress(addr, index)))
	if err != nil || !ok {
		return nil, false, err
	}
	m, err := campaign.DecodeMilestone(raw)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

func (tx *Tx) CampaignMilestonePut(m *campaign.Milestone) error {
	raw, err := campaign.EncodeMilestone(m)
	if err != nil {
		return err
	}
	return tx.put(recordKey(campaign.MilestoneAddress(m.Campaign, m.Index)), raw)
}

func (tx *Tx) CampaignContributionGet(addr [32]byte, contributor [20]byte) (*campaign.Contribution, bool, error) {
	raw, ok, err := tx.get(recordKey(campaign.ContributionAddress(addr, contributor)))
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := campaign.DecodeContribution(raw)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (tx *Tx) CampaignContributionPut(c *campaign.Contribution) error {
	raw, err := campaign.EncodeContribution(c)
	if err != nil {
		return err
	}
	return tx.put(recordKey(campaign.ContributionAddress(c.Campaign, c.Contributor)), raw)
}
