package campaign

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"hoperise/core/events"
	"hoperise/native/bank"
	"hoperise/native/common"
)

// ModuleName identifies the campaign module for pause controls.
const ModuleName = "campaign"

var errNilState = errors.New("campaign engine: state not configured")

type engineState interface {
	bank.Ledger
	CampaignCounterGet() (*Counter, bool, error)
	CampaignCounterPut(*Counter) error
	CampaignGet(id uint64) (*Campaign, bool, error)
	CampaignPut(*Campaign) error
	CampaignMilestoneGet(campaign [32]byte, index uint8) (*Milestone, bool, error)
	CampaignMilestonePut(*Milestone) error
	CampaignContributionGet(campaign [32]byte, contributor [20]byte) (*Contribution, bool, error)
	CampaignContributionPut(*Contribution) error
}

// Engine implements the campaign lifecycle on top of an injected state
// backend. It performs every precondition check before the first write, so a
// failed call leaves no trace as long as the backend discards writes of
// failed calls.
type Engine struct {
	state   engineState
	emitter events.Emitter
	pauses  common.PauseView
	nowFn   func() int64
}

// NewEngine creates a campaign engine with a no-op emitter and the wall clock.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the persistence backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter. Nil restores the no-op emitter.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the operator pause switches.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetNowFunc overrides the engine clock. Intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn() }

func (e *Engine) emit(evt campaignEvent) {
	if e.emitter == nil || evt.evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready(mutating bool) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if mutating {
		if err := common.Guard(e.pauses, ModuleName); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) loadCampaign(id uint64) (*Campaign, error) {
	c, ok, err := e.state.CampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: campaign %d", ErrNotFound, id)
	}
	return c.Clone(), nil
}

// settle applies deadline resolution to c in memory and reports whether it
// changed anything.
func settle(c *Campaign, now int64) bool {
	if !c.IsActive || now < c.Deadline {
		return false
	}
	c.IsActive = false
	c.Outcome = c.deadlineOutcome()
	return true
}

func checkText(field, value string, limit int, required bool) error {
	if !utf8.ValidString(value) {
		return fmt.Errorf("%w: %s must be valid utf-8", ErrInvalidInput, field)
	}
	if len(value) > limit {
		return fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, field, limit)
	}
	if required && strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s required", ErrInvalidInput, field)
	}
	return nil
}

func transferErr(err error) error {
	if errors.Is(err, bank.ErrInsufficientBalance) {
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	}
	return err
}

// Initialize bootstraps the campaign id allocator. It may run exactly once.
func (e *Engine) Initialize(authority [20]byte) (*Counter, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	_, ok, err := e.state.CampaignCounterGet()
	if err != nil {
		return nil, err
	}
	if ok {
		return nil, ErrAlreadyInitialized
	}
	counter := &Counter{Count: 0, Authority: authority}
	if err := e.state.CampaignCounterPut(counter); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewInitializedEvent(counter)})
	return counter.Clone(), nil
}

// Create validates the parameters, allocates the next id and stores a new
// active campaign owned by creator.
func (e *Engine) Create(creator [20]byte, params CreateParams) (*Campaign, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if err := checkText("title", params.Title, MaxTitleLength, true); err != nil {
		return nil, err
	}
	if err := checkText("short_description", params.ShortDescription, MaxDescriptionLength, false); err != nil {
		return nil, err
	}
	if err := checkText("cover_image_ref", params.CoverImageRef, MaxRefLength, false); err != nil {
		return nil, err
	}
	if err := checkText("story_ref", params.StoryRef, MaxRefLength, false); err != nil {
		return nil, err
	}
	if !params.Category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %d", ErrInvalidInput, params.Category)
	}
	if params.FundingGoal == 0 {
		return nil, fmt.Errorf("%w: funding goal must be positive", ErrInvalidInput)
	}
	if params.DurationDays < MinDurationDays || params.DurationDays > MaxDurationDays {
		return nil, fmt.Errorf("%w: duration must be %d..%d days", ErrInvalidInput, MinDurationDays, MaxDurationDays)
	}

	counter, ok, err := e.state.CampaignCounterGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUninitialized
	}
	nextCount, err := common.AddUint64(counter.Count, 1)
	if err != nil {
		return nil, fmt.Errorf("campaign counter: %w", err)
	}
	now := e.now()
	span, err := common.MulUint64(params.DurationDays, SecondsPerDay)
	if err != nil {
		return nil, err
	}
	if now > 0 && span > uint64(math.MaxInt64-now) {
		return nil, fmt.Errorf("deadline: %w", ErrArithmeticOverflow)
	}

	c := &Campaign{
		ID:               counter.Count,
		Creator:          creator,
		Title:            params.Title,
		ShortDescription: params.ShortDescription,
		Category:         params.Category,
		CoverImageRef:    params.CoverImageRef,
		StoryRef:         params.StoryRef,
		FundingGoal:      params.FundingGoal,
		Deadline:         now + int64(span),
		IsActive:         true,
		CreatedAt:        now,
		Outcome:          OutcomePending,
	}
	counter = counter.Clone()
	counter.Count = nextCount
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	if err := e.state.CampaignCounterPut(counter); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewCreatedEvent(c)})
	return c.Clone(), nil
}

// Contribute moves amount from the contributor's balance into the campaign
// vault and records it against the contributor.
func (e *Engine) Contribute(contributor [20]byte, id uint64, amount uint64) (*Contribution, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return nil, ErrCampaignInactive
	}
	now := e.now()
	if now >= c.Deadline {
		return nil, ErrCampaignExpired
	}
	addr := CampaignAddress(id)
	record, exists, err := e.state.CampaignContributionGet(addr, contributor)
	if err != nil {
		return nil, err
	}
	if exists {
		record = record.Clone()
	} else {
		record = &Contribution{Campaign: addr, Contributor: contributor, ContributedAt: now}
	}
	total, err := common.AddUint64(record.Amount, amount)
	if err != nil {
		return nil, err
	}
	raised, err := common.AddUint64(c.AmountRaised, amount)
	if err != nil {
		return nil, err
	}
	backers := c.BackerCount
	if !exists {
		if backers, err = common.AddUint64(backers, 1); err != nil {
			return nil, err
		}
	}
	balance, err := bank.Balance(e.state, contributor[:])
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, fmt.Errorf("%w: balance %d below %d", ErrInsufficientFunds, balance, amount)
	}

	if err := bank.Transfer(e.state, contributor[:], addr[:], amount); err != nil {
		return nil, transferErr(err)
	}
	record.Amount = total
	c.AmountRaised = raised
	c.BackerCount = backers
	if err := e.state.CampaignContributionPut(record); err != nil {
		return nil, err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewContributedEvent(c, record, amount)})
	return record.Clone(), nil
}

// Resolve deactivates a campaign whose deadline has passed and records its
// outcome. Resolving an already resolved campaign is a no-op.
func (e *Engine) Resolve(id uint64) (*Campaign, error) {
	if err := e.ready(true); err != nil {
		return nil, err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return nil, err
	}
	if !c.IsActive {
		return c, nil
	}
	if !settle(c, e.now()) {
		return nil, ErrCampaignActive
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	return c.Clone(), nil
}

// Cancel ends an active campaign before its deadline. The campaign is marked
// failed so that backers can reclaim their contributions.
func (e *Engine) Cancel(caller [20]byte, id uint64) (*Campaign, error) {
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
	if !c.IsActive {
		return nil, ErrCampaignInactive
	}
	if e.now() >= c.Deadline {
		return nil, ErrCampaignExpired
	}
	c.IsActive = false
	c.Outcome = OutcomeFailed
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	e.emit(campaignEvent{evt: NewCancelledEvent(c)})
	return c.Clone(), nil
}

// Close moves a resolved campaign to its terminal state. Succeeded campaigns
// must have paid out their whole escrow first. Refunds of a failed campaign
// stay claimable after closing.
func (e *Engine) Close(caller [20]byte, id uint64) (*Campaign, error) {
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
	if c.Closed {
		return c, nil
	}
	settled := settle(c, e.now())
	if c.IsActive {
		return nil, ErrCampaignActive
	}
	escrowed, err := c.Escrowed()
	if err != nil {
		return nil, err
	}
	if c.Outcome == OutcomeSucceeded && escrowed != 0 {
		return nil, fmt.Errorf("%w: %d still escrowed", ErrNotEligible, escrowed)
	}
	c.Closed = true
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	if settled {
		e.emit(campaignEvent{evt: NewResolvedEvent(c)})
	}
	e.emit(campaignEvent{evt: NewClosedEvent(c)})
	return c.Clone(), nil
}

// Counter returns the allocator record.
func (e *Engine) Counter() (*Counter, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	counter, ok, err := e.state.CampaignCounterGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUninitialized
	}
	return counter.Clone(), nil
}

// Campaign returns the stored campaign record.
func (e *Engine) Campaign(id uint64) (*Campaign, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	return e.loadCampaign(id)
}

// Campaigns lists campaigns in id order starting at offset. A nil filter
// returns every campaign.
func (e *Engine) Campaigns(offset uint64, limit int, filter func(*Campaign) bool) ([]*Campaign, error) {
	counter, err := e.Counter()
	if err != nil {
		return nil, err
	}
	out := make([]*Campaign, 0)
	for id := offset; id < counter.Count; id++ {
		if limit > 0 && len(out) >= limit {
			break
		}
		c, err := e.loadCampaign(id)
		if err != nil {
			return nil, err
		}
		if filter == nil || filter(c) {
			out = append(out, c)
		}
	}
	return out, nil
}

// Contribution returns a backer's record for the campaign.
func (e *Engine) Contribution(id uint64, contributor [20]byte) (*Contribution, error) {
	if err := e.ready(false); err != nil {
		return nil, err
	}
	record, ok, err := e.state.CampaignContributionGet(CampaignAddress(id), contributor)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: contribution", ErrNotFound)
	}
	return record.Clone(), nil
}

// VaultBalance returns the funds currently held in the campaign's escrow vault.
func (e *Engine) VaultBalance(id uint64) (uint64, error) {
	if err := e.ready(false); err != nil {
		return 0, err
	}
	addr := CampaignAddress(id)
	return bank.Balance(e.state, addr[:])
}

// VerifyAllocations checks that every allocated id has a campaign record and
// that each vault holds exactly the campaign's escrowed amount.
func (e *Engine) VerifyAllocations() error {
	counter, err := e.Counter()
	if errors.Is(err, ErrUninitialized) {
		return nil
	}
	if err != nil {
		return err
	}
	for id := uint64(0); id < counter.Count; id++ {
		c, ok, err := e.state.CampaignGet(id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: campaign %d allocated but missing", ErrCorrupted, id)
		}
		escrowed, err := c.Escrowed()
		if err != nil {
			return fmt.Errorf("%w: campaign %d paid out more than raised: %v", ErrCorrupted, id, err)
		}
		vault, err := e.VaultBalance(id)
		if err != nil {
			return err
		}
		if vault != escrowed {
			return fmt.Errorf("%w: campaign %d vault holds %d, expected %d", ErrCorrupted, id, vault, escrowed)
		}
	}
	return nil
}
