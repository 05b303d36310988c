package campaign

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"unicode/utf8"
)

// Maximum persisted sizes, including the type tag.
const (
	CounterRecordSize      = 49
	CampaignRecordSize     = 800
	MilestoneRecordSize    = 160
	ContributionRecordSize = 96
)

const tagLength = 8

var (
	counterTag      = recordTag("CampaignCounter")
	campaignTag     = recordTag("Campaign")
	milestoneTag    = recordTag("Milestone")
	contributionTag = recordTag("Contribution")
)

func recordTag(name string) [tagLength]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var tag [tagLength]byte
	copy(tag[:], sum[:tagLength])
	return tag
}

type encoder struct {
	buf bytes.Buffer
	err error
}

func newEncoder(tag [tagLength]byte) *encoder {
	e := &encoder{}
	e.buf.Write(tag[:])
	return e
}

func (e *encoder) u8(v uint8) { e.buf.WriteByte(v) }

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

func (e *encoder) i64(v int64) { e.u64(uint64(v)) }

func (e *encoder) boolean(v bool) {
	if v {
		e.u8(1)
		return
	}
	e.u8(0)
}

func (e *encoder) bytes(b []byte) { e.buf.Write(b) }

func (e *encoder) str(field, v string, limit int) {
	if e.err != nil {
		return
	}
	if len(v) > limit {
		e.err = fmt.Errorf("%w: %s exceeds %d bytes", ErrInvalidInput, field, limit)
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(v)))
	e.buf.Write(b[:])
	e.buf.WriteString(v)
}

func (e *encoder) finish(record string, limit int) ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	if e.buf.Len() > limit {
		return nil, fmt.Errorf("%w: %s record is %d bytes, limit %d", ErrCorrupted, record, e.buf.Len(), limit)
	}
	return e.buf.Bytes(), nil
}

type decoder struct {
	data []byte
	off  int
	err  error
}

func newDecoder(record string, data []byte, tag [tagLength]byte, limit int) (*decoder, error) {
	if len(data) > limit {
		return nil, fmt.Errorf("%w: %s record is %d bytes, limit %d", ErrCorrupted, record, len(data), limit)
	}
	if len(data) < tagLength || !bytes.Equal(data[:tagLength], tag[:]) {
		return nil, fmt.Errorf("%w: %s record tag mismatch", ErrCorrupted, record)
	}
	return &decoder{data: data, off: tagLength}, nil
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || len(d.data)-d.off < n {
		d.err = fmt.Errorf("%w: record truncated at offset %d", ErrCorrupted, d.off)
		return nil
	}
	out := d.data[d.off : d.off+n]
	d.off += n
	return out
}

func (d *decoder) u8() uint8 {
	b := d.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) i64() int64 { return int64(d.u64()) }

func (d *decoder) boolean() bool {
	switch v := d.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if d.err == nil {
			d.err = fmt.Errorf("%w: invalid bool byte %d", ErrCorrupted, v)
		}
		return false
	}
}

func (d *decoder) fixed(dst []byte) {
	if b := d.take(len(dst)); b != nil {
		copy(dst, b)
	}
}

func (d *decoder) str(field string, limit int) string {
	b := d.take(4)
	if b == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(b)
	if n > uint32(limit) {
		d.err = fmt.Errorf("%w: %s length %d exceeds %d", ErrCorrupted, field, n, limit)
		return ""
	}
	raw := d.take(int(n))
	if raw == nil {
		return ""
	}
	if !utf8.Valid(raw) {
		d.err = fmt.Errorf("%w: %s is not valid utf-8", ErrCorrupted, field)
		return ""
	}
	return string(raw)
}

func (d *decoder) finish() error {
	if d.err != nil {
		return d.err
	}
	if d.off != len(d.data) {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(d.data)-d.off)
	}
	return nil
}

// EncodeCounter serialises the allocator record.
func EncodeCounter(c *Counter) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil counter", ErrInvalidInput)
	}
	e := newEncoder(counterTag)
	e.u64(c.Count)
	e.bytes(c.Authority[:])
	return e.finish("counter", CounterRecordSize)
}

// DecodeCounter parses an allocator record.
func DecodeCounter(data []byte) (*Counter, error) {
	d, err := newDecoder("counter", data, counterTag, CounterRecordSize)
	if err != nil {
		return nil, err
	}
	c := &Counter{}
	c.Count = d.u64()
	d.fixed(c.Authority[:])
	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}

// EncodeCampaign serialises a campaign record.
func EncodeCampaign(c *Campaign) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil campaign", ErrInvalidInput)
	}
	e := newEncoder(campaignTag)
	e.u64(c.ID)
	e.bytes(c.Creator[:])
	e.str("title", c.Title, MaxTitleLength)
	e.str("short_description", c.ShortDescription, MaxDescriptionLength)
	e.u8(uint8(c.Category))
	e.str("cover_image_ref", c.CoverImageRef, MaxRefLength)
	e.str("story_ref", c.StoryRef, MaxRefLength)
	e.u64(c.FundingGoal)
	e.i64(c.Deadline)
	e.u64(c.AmountRaised)
	e.u64(c.BackerCount)
	e.boolean(c.IsActive)
	e.i64(c.CreatedAt)
	e.u8(c.MilestoneCount)
	e.u8(uint8(c.Outcome))
	e.u64(c.AmountReleased)
	e.u64(c.AmountRefunded)
	e.boolean(c.Closed)
	return e.finish("campaign", CampaignRecordSize)
}

// DecodeCampaign parses a campaign record.
func DecodeCampaign(data []byte) (*Campaign, error) {
	d, err := newDecoder("campaign", data, campaignTag, CampaignRecordSize)
	if err != nil {
		return nil, err
	}
	c := &Campaign{}
	c.ID = d.u64()
	d.fixed(c.Creator[:])
	c.Title = d.str("title", MaxTitleLength)
	c.ShortDescription = d.str("short_description", MaxDescriptionLength)
	c.Category = Category(d.u8())
	c.CoverImageRef = d.str("cover_image_ref", MaxRefLength)
	c.StoryRef = d.str("story_ref", MaxRefLength)
	c.FundingGoal = d.u64()
	c.Deadline = d.i64()
	c.AmountRaised = d.u64()
	c.BackerCount = d.u64()
	c.IsActive = d.boolean()
	c.CreatedAt = d.i64()
	c.MilestoneCount = d.u8()
	c.Outcome = Outcome(d.u8())
	c.AmountReleased = d.u64()
	c.AmountRefunded = d.u64()
	c.Closed = d.boolean()
	if err := d.finish(); err != nil {
		return nil, err
	}
	if !c.Category.Valid() {
		return nil, fmt.Errorf("%w: invalid category %d", ErrCorrupted, c.Category)
	}
	if !c.Outcome.Valid() {
		return nil, fmt.Errorf("%w: invalid outcome %d", ErrCorrupted, c.Outcome)
	}
	if c.MilestoneCount > MaxMilestones {
		return nil, fmt.Errorf("%w: milestone count %d", ErrCorrupted, c.MilestoneCount)
	}
	return c, nil
}

// EncodeMilestone serialises a milestone record.
func EncodeMilestone(m *Milestone) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil milestone", ErrInvalidInput)
	}
	e := newEncoder(milestoneTag)
	e.bytes(m.Campaign[:])
	e.u8(m.Index)
	e.str("milestone title", m.Title, MaxMilestoneTitleLength)
	e.u64(m.TargetAmount)
	e.boolean(m.IsCompleted)
	e.boolean(m.Released)
	return e.finish("milestone", MilestoneRecordSize)
}

// DecodeMilestone parses a milestone record.
func DecodeMilestone(data []byte) (*Milestone, error) {
	d, err := newDecoder("milestone", data, milestoneTag, MilestoneRecordSize)
	if err != nil {
		return nil, err
	}
	m := &Milestone{}
	d.fixed(m.Campaign[:])
	m.Index = d.u8()
	m.Title = d.str("milestone title", MaxMilestoneTitleLength)
	m.TargetAmount = d.u64()
	m.IsCompleted = d.boolean()
	m.Released = d.boolean()
	if err := d.finish(); err != nil {
		return nil, err
	}
	if m.Index >= MaxMilestones {
		return nil, fmt.Errorf("%w: milestone index %d", ErrCorrupted, m.Index)
	}
	return m, nil
}

// EncodeContribution serialises a contribution record.
func EncodeContribution(c *Contribution) ([]byte, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil contribution", ErrInvalidInput)
	}
	e := newEncoder(contributionTag)
	e.bytes(c.Campaign[:])
	e.bytes(c.Contributor[:])
	e.u64(c.Amount)
	e.i64(c.ContributedAt)
	e.boolean(c.RefundClaimed)
	return e.finish("contribution", ContributionRecordSize)
}

// DecodeContribution parses a contribution record.
func DecodeContribution(data []byte) (*Contribution, error) {
	d, err := newDecoder("contribution", data, contributionTag, ContributionRecordSize)
	if err != nil {
		return nil, err
	}
	c := &Contribution{}
	d.fixed(c.Campaign[:])
	d.fixed(c.Contributor[:])
	c.Amount = d.u64()
	c.ContributedAt = d.i64()
	c.RefundClaimed = d.boolean()
	if err := d.finish(); err != nil {
		return nil, err
	}
	return c, nil
}
