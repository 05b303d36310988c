package campaign

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"hoperise/native/common"
)

const (
	MaxTitleLength          = 80
	MaxDescriptionLength    = 200
	MaxRefLength            = 200
	MaxMilestoneTitleLength = 100
	MaxMilestones           = 10
	MinDurationDays         = 1
	MaxDurationDays         = 90
	SecondsPerDay           = 86400
)

// Category classifies a campaign for discovery.
type Category uint8

const (
	CategoryEnvironment Category = iota
	CategoryEducation
	CategoryHealthcare
	CategoryTechnology
	CategoryCommunity
	CategoryArts
)

var categoryNames = [...]string{"environment", "education", "healthcare", "technology", "community", "arts"}

// Valid reports whether the category value is within the supported range.
func (c Category) Valid() bool { return int(c) < len(categoryNames) }

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryNames[c]
}

// ParseCategory resolves a case-insensitive category name. Input is NFKC
// normalised so compatibility forms such as fullwidth letters match.
func ParseCategory(name string) (Category, error) {
	trimmed := strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
	for i, candidate := range categoryNames {
		if candidate == trimmed {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, name)
}

// Outcome records how a campaign was resolved.
type Outcome uint8

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
)

func (o Outcome) Valid() bool { return o <= OutcomeFailed }

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// State is the lifecycle stage derived from a campaign's recorded fields.
type State string

const (
	StateDraft     State = "draft"
	StateActive    State = "active"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateClosed    State = "closed"
)

// Counter is the singleton record that issues campaign ids.
type Counter struct {
	Count     uint64
	Authority [20]byte
}

// Clone returns a copy of the counter.
func (c *Counter) Clone() *Counter {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Campaign is the authoritative record for one fundraising campaign.
type Campaign struct {
	ID               uint64
	Creator          [20]byte
	Title            string
	ShortDescription string
	Category         Category
	CoverImageRef    string
	StoryRef         string
	FundingGoal      uint64
	Deadline         int64
	AmountRaised     uint64
	BackerCount      uint64
	IsActive         bool
	CreatedAt        int64
	MilestoneCount   uint8
	Outcome          Outcome
	AmountReleased   uint64
	AmountRefunded   uint64
	Closed           bool
}

// Clone returns a copy of the campaign so callers can mutate it freely.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// State derives the lifecycle stage. A campaign whose deadline has passed but
// which has not been resolved yet still reports active.
func (c *Campaign) State() State {
	switch {
	case c == nil:
		return ""
	case c.Closed:
		return StateClosed
	case c.IsActive && c.AmountRaised == 0:
		return StateDraft
	case c.IsActive:
		return StateActive
	case c.Outcome == OutcomeSucceeded:
		return StateSucceeded
	default:
		return StateFailed
	}
}

// deadlineOutcome is the outcome an active campaign reaches at its deadline.
func (c *Campaign) deadlineOutcome() Outcome {
	if c.AmountRaised >= c.FundingGoal {
		return OutcomeSucceeded
	}
	return OutcomeFailed
}

// StateAt reports the state the campaign has at now once an elapsed deadline
// is resolved. The record itself is left untouched.
func (c *Campaign) StateAt(now int64) State {
	if c == nil || !c.IsActive || now < c.Deadline {
		return c.State()
	}
	resolved := *c
	resolved.IsActive = false
	resolved.Outcome = c.deadlineOutcome()
	return resolved.State()
}

// Escrowed returns the funds still held in the campaign vault. A record that
// paid out more than it raised fails with ErrUnderflow.
func (c *Campaign) Escrowed() (uint64, error) {
	if c == nil {
		return 0, nil
	}
	paid, err := common.AddUint64(c.AmountReleased, c.AmountRefunded)
	if err != nil {
		return 0, err
	}
	return common.SubUint64(c.AmountRaised, paid)
}

// Milestone is a funding checkpoint owned by a campaign.
type Milestone struct {
	Campaign     [32]byte
	Index        uint8
	Title        string
	TargetAmount uint64
	IsCompleted  bool
	Released     bool
}

func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// Contribution is the cumulative record of one backer's funding of one
// campaign.
type Contribution struct {
	Campaign      [32]byte
	Contributor   [20]byte
	Amount        uint64
	ContributedAt int64
	RefundClaimed bool
}

func (c *Contribution) Clone() *Contribution {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// CreateParams carries the creator-supplied fields of a new campaign.
type CreateParams struct {
	Title            string
	ShortDescription string
	Category         Category
	CoverImageRef    string
	StoryRef         string
	FundingGoal      uint64
	DurationDays     uint64
}
