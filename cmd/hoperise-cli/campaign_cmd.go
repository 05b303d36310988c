package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hoperise/crypto"
)

func runCampaignCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, campaignUsage())
		return 1
	}

	switch args[0] {
	case "init":
		return runCampaignInit(args[1:], stdout, stderr)
	case "create":
		return runCampaignCreate(args[1:], stdout, stderr)
	case "add-milestone":
		return runCampaignAddMilestone(args[1:], stdout, stderr)
	case "contribute":
		return runCampaignContribute(args[1:], stdout, stderr)
	case "resolve":
		return runCampaignResolve(args[1:], stdout, stderr)
	case "complete":
		return runCampaignMilestoneAction("campaign complete", "campaign_completeMilestone", args[1:], stdout, stderr)
	case "release":
		return runCampaignMilestoneAction("campaign release", "campaign_release", args[1:], stdout, stderr)
	case "refund":
		return runCampaignActorAction("campaign refund", "campaign_claimRefund", args[1:], stdout, stderr)
	case "withdraw":
		return runCampaignActorAction("campaign withdraw", "campaign_withdraw", args[1:], stdout, stderr)
	case "cancel":
		return runCampaignActorAction("campaign cancel", "campaign_cancel", args[1:], stdout, stderr)
	case "close":
		return runCampaignActorAction("campaign close", "campaign_close", args[1:], stdout, stderr)
	case "get":
		return runCampaignGet(args[1:], stdout, stderr)
	case "list":
		return runCampaignList(args[1:], stdout, stderr)
	case "milestones":
		return runCampaignMilestones(args[1:], stdout, stderr)
	case "contribution":
		return runCampaignContribution(args[1:], stdout, stderr)
	case "events":
		return runCampaignEvents(args[1:], stdout, stderr)
	case "summaries":
		return runCampaignSummaries(args[1:], stdout, stderr)
	case "counter":
		result, rpcErr, err := rpcCall("campaign_getCounter", nil, false)
		return finish(stdout, stderr, result, rpcErr, err)
	default:
		fmt.Fprintf(stderr, "Unknown campaign subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, campaignUsage())
		return 1
	}
}

func campaignUsage() string {
	return strings.TrimSpace(`Usage:
  hoperise-cli campaign <command> [flags]

Commands:
  init          Bootstrap the campaign id allocator (admin)
  create        Create a campaign from flags or a YAML manifest
  add-milestone Append a milestone to a campaign
  contribute    Contribute funds to an active campaign
  resolve       Settle a campaign after its deadline
  complete      Mark the next milestone of a succeeded campaign complete
  release       Release a completed milestone's funds to the creator
  refund        Claim a refund from a failed campaign
  withdraw      Withdraw the remaining escrow after every milestone
  cancel        Cancel an active campaign before its deadline
  close         Archive a resolved campaign
  get           Fetch campaign details by id
  list          List campaigns
  milestones    List a campaign's milestones
  contribution  Show a backer's contribution
  events        List recent campaign events
  summaries     List indexed campaign summaries
  counter       Show the allocator record
`)
}

func newCampaignFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, campaignUsage())
	}
	return fs
}

func validateAddress(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("--%s is required", field)
	}
	if _, err := crypto.ParseAccount(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid --%s: %v", field, err)
	}
	return nil
}

func validateAmount(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("--%s is required", field)
	}
	amount, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil || amount == 0 {
		return fmt.Errorf("--%s must be a positive integer", field)
	}
	return nil
}

func parseID(value string) (uint64, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("--id is required")
	}
	id, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("--id must be an unsigned integer")
	}
	return id, nil
}

func parseIndex(value string) (uint8, error) {
	if strings.TrimSpace(value) == "" {
		return 0, fmt.Errorf("--index is required")
	}
	idx, err := strconv.ParseUint(strings.TrimSpace(value), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("--index must be between 0 and 255")
	}
	return uint8(idx), nil
}

func runCampaignInit(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign init", stderr)
	var authority string
	fs.StringVar(&authority, "authority", "", "allocator authority bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if err := validateAddress("authority", authority); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_initialize", map[string]string{"authority": authority}, true)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignCreate(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign create", stderr)
	var (
		manifestPath string
		creator      string
		title        string
		description  string
		category     string
		cover        string
		story        string
		goal         string
		days         uint64
	)
	fs.StringVar(&manifestPath, "manifest", "", "YAML manifest describing the campaign and milestones")
	fs.StringVar(&creator, "creator", "", "creator bech32 address")
	fs.StringVar(&title, "title", "", "campaign title")
	fs.StringVar(&description, "description", "", "short description")
	fs.StringVar(&category, "category", "", "campaign category")
	fs.StringVar(&cover, "cover", "", "cover image reference")
	fs.StringVar(&story, "story", "", "story document reference")
	fs.StringVar(&goal, "goal", "", "funding goal in base units")
	fs.Uint64Var(&days, "days", 0, "campaign duration in days")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var (
		params     map[string]interface{}
		milestones []milestoneManifest
	)
	if manifestPath != "" {
		m, err := loadManifest(manifestPath)
		if err != nil {
			return printError(stderr, err.Error())
		}
		if err := validateAddress("creator", m.Creator); err != nil {
			return printError(stderr, err.Error())
		}
		params = m.createParams()
		milestones = m.Milestones
		creator = m.Creator
	} else {
		if err := validateAddress("creator", creator); err != nil {
			return printError(stderr, err.Error())
		}
		if strings.TrimSpace(title) == "" {
			return printError(stderr, "--title is required")
		}
		if err := validateAmount("goal", goal); err != nil {
			return printError(stderr, err.Error())
		}
		params = map[string]interface{}{
			"creator":          creator,
			"title":            title,
			"shortDescription": description,
			"category":         category,
			"coverImageRef":    cover,
			"storyRef":         story,
			"fundingGoal":      goal,
			"durationDays":     days,
		}
	}

	result, rpcErr, err := rpcCall("campaign_create", params, false)
	if err != nil || rpcErr != nil || len(milestones) == 0 {
		return finish(stdout, stderr, result, rpcErr, err)
	}
	var created struct {
		Campaign struct {
			ID uint64 `json:"id"`
		} `json:"campaign"`
	}
	if err := json.Unmarshal(result, &created); err != nil {
		return printError(stderr, fmt.Sprintf("decode create result: %v", err))
	}
	writeRPCResult(stdout, result)
	for _, ms := range milestones {
		msResult, msErr, err := rpcCall("campaign_addMilestone", map[string]interface{}{
			"id":           created.Campaign.ID,
			"caller":       creator,
			"title":        ms.Title,
			"targetAmount": strconv.FormatUint(ms.TargetAmount, 10),
		}, false)
		if code := finish(stdout, stderr, msResult, msErr, err); code != 0 {
			return code
		}
	}
	return 0
}

func runCampaignAddMilestone(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign add-milestone", stderr)
	var id, caller, title, target string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&caller, "caller", "", "creator bech32 address")
	fs.StringVar(&title, "title", "", "milestone title")
	fs.StringVar(&target, "target", "", "milestone target amount")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("caller", caller); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAmount("target", target); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_addMilestone", map[string]interface{}{
		"id": parsedID, "caller": caller, "title": title, "targetAmount": target,
	}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignContribute(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign contribute", stderr)
	var id, from, amount string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&from, "from", "", "contributor bech32 address")
	fs.StringVar(&amount, "amount", "", "amount in base units")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("from", from); err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAmount("amount", amount); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_contribute", map[string]interface{}{
		"id": parsedID, "contributor": from, "amount": amount,
	}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignResolve(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign resolve", stderr)
	var id string
	fs.StringVar(&id, "id", "", "campaign id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_resolve", map[string]interface{}{"id": parsedID}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignMilestoneAction(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet(name, stderr)
	var id, caller, index string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&caller, "caller", "", "creator bech32 address")
	fs.StringVar(&index, "index", "", "milestone index")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("caller", caller); err != nil {
		return printError(stderr, err.Error())
	}
	parsedIndex, err := parseIndex(index)
	if err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall(method, map[string]interface{}{
		"id": parsedID, "caller": caller, "index": parsedIndex,
	}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignActorAction(name, method string, args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet(name, stderr)
	var id, caller string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&caller, "caller", "", "caller bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("caller", caller); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall(method, map[string]interface{}{"id": parsedID, "caller": caller}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignGet(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign get", stderr)
	var id string
	fs.StringVar(&id, "id", "", "campaign id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_get", map[string]interface{}{"id": parsedID}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignList(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign list", stderr)
	var (
		offset   uint64
		limit    int
		creator  string
		state    string
		category string
	)
	fs.Uint64Var(&offset, "offset", 0, "first campaign id")
	fs.IntVar(&limit, "limit", 0, "maximum number of campaigns")
	fs.StringVar(&creator, "creator", "", "filter by creator")
	fs.StringVar(&state, "state", "", "filter by state")
	fs.StringVar(&category, "category", "", "filter by category")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if creator != "" {
		if err := validateAddress("creator", creator); err != nil {
			return printError(stderr, err.Error())
		}
	}
	params := map[string]interface{}{}
	if offset > 0 {
		params["offset"] = offset
	}
	if limit > 0 {
		params["limit"] = limit
	}
	if creator != "" {
		params["creator"] = creator
	}
	if state != "" {
		params["state"] = state
	}
	if category != "" {
		params["category"] = category
	}
	result, rpcErr, err := rpcCall("campaign_list", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignMilestones(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign milestones", stderr)
	var id, index string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&index, "index", "", "optional milestone index")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if index != "" {
		parsedIndex, err := parseIndex(index)
		if err != nil {
			return printError(stderr, err.Error())
		}
		result, rpcErr, err := rpcCall("campaign_getMilestone", map[string]interface{}{"id": parsedID, "index": parsedIndex}, false)
		return finish(stdout, stderr, result, rpcErr, err)
	}
	result, rpcErr, err := rpcCall("campaign_listMilestones", map[string]interface{}{"id": parsedID}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignContribution(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign contribution", stderr)
	var id, contributor string
	fs.StringVar(&id, "id", "", "campaign id")
	fs.StringVar(&contributor, "contributor", "", "contributor bech32 address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	parsedID, err := parseID(id)
	if err != nil {
		return printError(stderr, err.Error())
	}
	if err := validateAddress("contributor", contributor); err != nil {
		return printError(stderr, err.Error())
	}
	result, rpcErr, err := rpcCall("campaign_getContribution", map[string]interface{}{
		"id": parsedID, "contributor": contributor,
	}, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignEvents(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign events", stderr)
	var (
		after     uint64
		limit     int
		eventType string
		id        string
	)
	fs.Uint64Var(&after, "after", 0, "only events after this sequence")
	fs.IntVar(&limit, "limit", 0, "maximum number of events")
	fs.StringVar(&eventType, "type", "", "event type filter")
	fs.StringVar(&id, "id", "", "optional campaign id")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{}
	if after > 0 {
		params["after"] = after
	}
	if limit > 0 {
		params["limit"] = limit
	}
	if eventType != "" {
		params["type"] = eventType
	}
	if id != "" {
		parsedID, err := parseID(id)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params["id"] = parsedID
	}
	result, rpcErr, err := rpcCall("campaign_listEvents", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}

func runCampaignSummaries(args []string, stdout, stderr io.Writer) int {
	fs := newCampaignFlagSet("campaign summaries", stderr)
	var id, creator string
	fs.StringVar(&id, "id", "", "optional campaign id")
	fs.StringVar(&creator, "creator", "", "filter by creator")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	params := map[string]interface{}{}
	if id != "" {
		parsedID, err := parseID(id)
		if err != nil {
			return printError(stderr, err.Error())
		}
		params["id"] = parsedID
	}
	if creator != "" {
		if err := validateAddress("creator", creator); err != nil {
			return printError(stderr, err.Error())
		}
		params["creator"] = creator
	}
	result, rpcErr, err := rpcCall("campaign_listSummaries", params, false)
	return finish(stdout, stderr, result, rpcErr, err)
}
