package campaign

import (
	"errors"

	"hoperise/native/common"
)

// Error kinds surfaced by the lifecycle engine. Callers match them with
// errors.Is; the RPC layer maps each to a wire code.
var (
	ErrInvalidInput        = errors.New("InvalidInput")
	ErrUnauthorized        = errors.New("Unauthorized")
	ErrCampaignInactive    = errors.New("CampaignInactive")
	ErrCampaignExpired     = errors.New("CampaignExpired")
	ErrCampaignActive      = errors.New("CampaignActive")
	ErrTooManyMilestones   = errors.New("TooManyMilestones")
	ErrMilestoneOutOfOrder = errors.New("MilestoneOutOfOrder")
	ErrInsufficientFunds   = errors.New("InsufficientFunds")
	ErrAlreadyReleased     = errors.New("AlreadyReleased")
	ErrAlreadyClaimed      = errors.New("AlreadyClaimed")
	ErrNotEligible         = errors.New("NotEligible")
	ErrArithmeticOverflow  = common.ErrOverflow
	ErrUnderflow           = common.ErrUnderflow
	ErrUninitialized       = errors.New("Uninitialized")
	ErrAlreadyInitialized  = errors.New("AlreadyInitialized")
	ErrNotFound            = errors.New("NotFound")
	ErrCorrupted           = errors.New("Corrupted")
	ErrModulePaused        = common.ErrModulePaused
)

var kindOrder = []struct {
	err  error
	name string
}{
	{ErrInvalidInput, "InvalidInput"},
	{ErrUnauthorized, "Unauthorized"},
	{ErrCampaignInactive, "CampaignInactive"},
	{ErrCampaignExpired, "CampaignExpired"},
	{ErrCampaignActive, "CampaignActive"},
	{ErrTooManyMilestones, "TooManyMilestones"},
	{ErrMilestoneOutOfOrder, "MilestoneOutOfOrder"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrAlreadyReleased, "AlreadyReleased"},
	{ErrAlreadyClaimed, "AlreadyClaimed"},
	{ErrNotEligible, "NotEligible"},
	{ErrArithmeticOverflow, "ArithmeticOverflow"},
	{ErrUnderflow, "Underflow"},
	{ErrUninitialized, "Uninitialized"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
	{ErrNotFound, "NotFound"},
	{ErrCorrupted, "Corrupted"},
	{ErrModulePaused, "ModulePaused"},
}

// KindOf returns the error kind name for err, or "Internal" when err carries
// none of the engine kinds.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
