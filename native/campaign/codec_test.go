package campaign

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"strings"
	"testing"
)

func maxCampaign() *Campaign {
	return &Campaign{
		ID:               ^uint64(0),
		Creator:          addr(0x11),
		Title:            strings.Repeat("t", MaxTitleLength),
		ShortDescription: strings.Repeat("d", MaxDescriptionLength),
		Category:         CategoryArts,
		CoverImageRef:    strings.Repeat("c", MaxRefLength),
		StoryRef:         strings.Repeat("s", MaxRefLength),
		FundingGoal:      1,
		Deadline:         -1,
		AmountRaised:     2,
		BackerCount:      3,
		IsActive:         true,
		CreatedAt:        4,
		MilestoneCount:   MaxMilestones,
		Outcome:          OutcomeFailed,
		AmountReleased:   5,
		AmountRefunded:   6,
		Closed:           true,
	}
}

func TestRecordSizesFitBounds(t *testing.T) {
	counter, err := EncodeCounter(&Counter{Count: 9, Authority: authority})
	if err != nil {
		t.Fatalf("encode counter: %v", err)
	}
	if len(counter) > CounterRecordSize {
		t.Fatalf("counter is %d bytes", len(counter))
	}
	campaign, err := EncodeCampaign(maxCampaign())
	if err != nil {
		t.Fatalf("encode campaign: %v", err)
	}
	if len(campaign) > CampaignRecordSize {
		t.Fatalf("campaign is %d bytes", len(campaign))
	}
	milestone, err := EncodeMilestone(&Milestone{Index: 9, Title: strings.Repeat("m", MaxMilestoneTitleLength)})
	if err != nil {
		t.Fatalf("encode milestone: %v", err)
	}
	if len(milestone) > MilestoneRecordSize {
		t.Fatalf("milestone is %d bytes", len(milestone))
	}
	contribution, err := EncodeContribution(&Contribution{Amount: 1})
	if err != nil {
		t.Fatalf("encode contribution: %v", err)
	}
	if len(contribution) > ContributionRecordSize {
		t.Fatalf("contribution is %d bytes", len(contribution))
	}
}

func TestCampaignCodecRoundTrip(t *testing.T) {
	want := maxCampaign()
	data, err := EncodeCampaign(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeCampaign(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if *got != *want {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestRecordLayoutStartsWithTag(t *testing.T) {
	data, err := EncodeContribution(&Contribution{Amount: 0x0102})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	sum := sha256.Sum256([]byte("account:Contribution"))
	if !bytes.Equal(data[:8], sum[:8]) {
		t.Fatalf("unexpected tag %x", data[:8])
	}
	// tag, campaign, contributor, then the little-endian amount.
	amount := data[8+32+20 : 8+32+20+8]
	if amount[0] != 0x02 || amount[1] != 0x01 {
		t.Fatalf("amount not little endian: %x", amount)
	}
}

func TestEncodeRejectsOversizeStrings(t *testing.T) {
	c := maxCampaign()
	c.Title += "x"
	if _, err := EncodeCampaign(c); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDecodeRejectsMalformedRecords(t *testing.T) {
	valid, err := EncodeMilestone(&Milestone{Index: 1, Title: "ok", TargetAmount: 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	cases := map[string][]byte{
		"oversize":   append(bytes.Repeat([]byte{0}, MilestoneRecordSize), 0),
		"empty":      nil,
		"wrong tag":  append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, valid[8:]...),
		"truncated":  valid[:len(valid)-1],
		"trailing":   append(append([]byte(nil), valid...), 0),
		"bad bool":   append(append([]byte(nil), valid[:len(valid)-1]...), 2),
		"wrong kind": mustEncodeContribution(t),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeMilestone(data); !errors.Is(err, ErrCorrupted) {
				t.Fatalf("expected corrupted, got %v", err)
			}
		})
	}
}

func TestDecodeCampaignRejectsBadEnums(t *testing.T) {
	c := maxCampaign()
	c.Category = Category(6)
	c.Title = "t"
	data, err := EncodeCampaign(c)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeCampaign(data); !errors.Is(err, ErrCorrupted) {
		t.Fatalf("expected corrupted, got %v", err)
	}
}

func TestCounterCodecRoundTrip(t *testing.T) {
	data, err := EncodeCounter(&Counter{Count: 42, Authority: authority})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeCounter(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Count != 42 || got.Authority != authority {
		t.Fatalf("unexpected counter %+v", got)
	}
}

func mustEncodeContribution(t *testing.T) []byte {
	t.Helper()
	data, err := EncodeContribution(&Contribution{Amount: 1})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return data
}

func TestDerivedAddressesAreDistinct(t *testing.T) {
	a := CampaignAddress(0)
	b := CampaignAddress(1)
	if a == b {
		t.Fatalf("campaign addresses collide")
	}
	if MilestoneAddress(a, 0) == MilestoneAddress(a, 1) || MilestoneAddress(a, 0) == MilestoneAddress(b, 0) {
		t.Fatalf("milestone addresses collide")
	}
	if ContributionAddress(a, backerA) == ContributionAddress(a, backerB) {
		t.Fatalf("contribution addresses collide")
	}
	if CounterAddress() == a {
		t.Fatalf("counter collides with campaign")
	}
}
