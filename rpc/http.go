package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hoperise/observability"
	"hoperise/rpc/middleware"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, req *RPCRequest)

type method struct {
	module  string
	admin   bool
	handler handlerFunc
}

func (s *Server) methods() map[string]method {
	return map[string]method{
		"campaign_initialize":        {module: observability.ModuleCampaign, admin: true, handler: s.handleCampaignInitialize},
		"campaign_create":            {module: observability.ModuleCampaign, handler: s.handleCampaignCreate},
		"campaign_addMilestone":      {module: observability.ModuleCampaign, handler: s.handleCampaignAddMilestone},
		"campaign_contribute":        {module: observability.ModuleCampaign, handler: s.handleCampaignContribute},
		"campaign_resolve":           {module: observability.ModuleCampaign, handler: s.handleCampaignResolve},
		"campaign_completeMilestone": {module: observability.ModuleCampaign, handler: s.handleCampaignCompleteMilestone},
		"campaign_release":           {module: observability.ModuleCampaign, handler: s.handleCampaignRelease},
		"campaign_claimRefund":       {module: observability.ModuleCampaign, handler: s.handleCampaignClaimRefund},
		"campaign_withdraw":          {module: observability.ModuleCampaign, handler: s.handleCampaignWithdraw},
		"campaign_cancel":            {module: observability.ModuleCampaign, handler: s.handleCampaignCancel},
		"campaign_close":             {module: observability.ModuleCampaign, handler: s.handleCampaignClose},
		"campaign_get":               {module: observability.ModuleCampaign, handler: s.handleCampaignGet},
		"campaign_list":              {module: observability.ModuleCampaign, handler: s.handleCampaignList},
		"campaign_getMilestone":      {module: observability.ModuleCampaign, handler: s.handleCampaignGetMilestone},
		"campaign_listMilestones":    {module: observability.ModuleCampaign, handler: s.handleCampaignListMilestones},
		"campaign_getContribution":   {module: observability.ModuleCampaign, handler: s.handleCampaignGetContribution},
		"campaign_getCounter":        {module: observability.ModuleCampaign, handler: s.handleCampaignGetCounter},
		"campaign_listEvents":        {module: observability.ModuleCampaign, handler: s.handleCampaignListEvents},
		"campaign_listSummaries":     {module: observability.ModuleCampaign, handler: s.handleCampaignListSummaries},
		"bank_getBalance":            {module: observability.ModuleBank, handler: s.handleBankGetBalance},
		"bank_credit":                {module: observability.ModuleBank, admin: true, handler: s.handleBankCredit},
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	defer func() {
		_ = reader.Close()
	}()

	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(reader)
	if err != nil {
		status := http.StatusBadRequest
		message := "failed to read request body"
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			status = http.StatusRequestEntityTooLarge
			message = fmt.Sprintf("request body exceeds %d bytes", maxRequestBytes)
		}
		writeError(w, status, nil, codeInvalidRequest, message, err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}

	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	if req.Method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	m, ok := s.routes[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", req.Method), nil)
		return
	}
	if m.admin {
		subject, err := s.auth.Authorize(r, middleware.AdminScope)
		if err != nil {
			s.logger.Warn("admin call rejected",
				slog.String("method", req.Method),
				slog.String("requestId", middleware.RequestIDFromContext(r.Context())),
				slog.Any("error", err))
			writeError(w, http.StatusUnauthorized, req.ID, codeUnauthorized, "Unauthorized", err.Error())
			return
		}
		s.logger.Info("admin call",
			slog.String("method", req.Method),
			slog.String("subject", subject),
			slog.String("requestId", middleware.RequestIDFromContext(r.Context())))
	}

	start := time.Now()
	recorder := &statusCapture{ResponseWriter: w, status: http.StatusOK}
	m.handler(recorder, r, req)
	observability.RPC().Observe(m.module, req.Method, recorder.status, time.Since(start))
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// decodeParams unmarshals the single parameter object of req into dst.
func decodeParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("expected a single parameter object")
	}
	dec := json.NewDecoder(bytes.NewReader(req.Params[0]))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	return nil
}

// decodeOptionalParams accepts zero parameters or one object.
func decodeOptionalParams(req *RPCRequest, dst interface{}) error {
	if len(req.Params) == 0 {
		return nil
	}
	return decodeParams(req, dst)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}
