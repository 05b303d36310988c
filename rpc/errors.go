package rpc

import (
	"net/http"

	"hoperise/native/campaign"
)

type kindMapping struct {
	code   int
	status int
}

// Each engine error kind maps to a stable wire code.
var kindCodes = map[string]kindMapping{
	"InvalidInput":        {-32040, http.StatusBadRequest},
	"Unauthorized":        {-32041, http.StatusForbidden},
	"CampaignInactive":    {-32042, http.StatusConflict},
	"CampaignExpired":     {-32043, http.StatusConflict},
	"CampaignActive":      {-32044, http.StatusConflict},
	"TooManyMilestones":   {-32045, http.StatusConflict},
	"MilestoneOutOfOrder": {-32046, http.StatusConflict},
	"InsufficientFunds":   {-32047, http.StatusConflict},
	"AlreadyReleased":     {-32048, http.StatusConflict},
	"AlreadyClaimed":      {-32049, http.StatusConflict},
	"NotEligible":         {-32050, http.StatusConflict},
	"ArithmeticOverflow":  {-32051, http.StatusBadRequest},
	"Underflow":           {-32052, http.StatusBadRequest},
	"Uninitialized":       {-32053, http.StatusConflict},
	"AlreadyInitialized":  {-32054, http.StatusConflict},
	"NotFound":            {-32055, http.StatusNotFound},
	"ModulePaused":        {-32056, http.StatusServiceUnavailable},
	"Corrupted":           {codeServerError, http.StatusInternalServerError},
}

// errorKindData is attached to every engine error response.
type errorKindData struct {
	Kind   string `json:"kind"`
	Detail string `json:"detail,omitempty"`
}

func writeEngineError(w http.ResponseWriter, id interface{}, err error) {
	kind := campaign.KindOf(err)
	mapping, ok := kindCodes[kind]
	if !ok {
		kind = "Internal"
		mapping = kindMapping{codeServerError, http.StatusInternalServerError}
	}
	data := errorKindData{Kind: kind}
	if err != nil && err.Error() != kind {
		data.Detail = err.Error()
	}
	writeError(w, mapping.status, id, mapping.code, kind, data)
}

func invalidParams(w http.ResponseWriter, id interface{}, message string, err error) {
	var data interface{}
	if err != nil {
		data = err.Error()
	}
	writeError(w, http.StatusBadRequest, id, codeInvalidParams, message, data)
}
