package rpc

import (
	"net/http"

	"hoperise/crypto"
)

type bankAddressParams struct {
	Address string `json:"address"`
}

type bankCreditParams struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type BalanceResponse struct {
	Address string      `json:"address"`
	Balance string      `json:"balance"`
	Commit  *commitJSON `json:"commit,omitempty"`
}

func (s *Server) handleBankGetBalance(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bankAddressParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	owner, err := parseAccount("address", params.Address)
	if err != nil {
		invalidParams(w, req.ID, "invalid address", err)
		return
	}
	balance, err := s.node.Balance(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, BalanceResponse{
		Address: crypto.AddressFromArray(owner).String(),
		Balance: formatAmount(balance),
	})
}

func (s *Server) handleBankCredit(w http.ResponseWriter, _ *http.Request, req *RPCRequest) {
	var params bankCreditParams
	if err := decodeParams(req, &params); err != nil {
		invalidParams(w, req.ID, "invalid parameter object", err)
		return
	}
	owner, err := parseAccount("address", params.Address)
	if err != nil {
		invalidParams(w, req.ID, "invalid address", err)
		return
	}
	amount, err := parseAmount("amount", params.Amount)
	if err != nil {
		invalidParams(w, req.ID, "invalid amount", err)
		return
	}
	balance, commit, err := s.node.Credit(owner, amount)
	if err != nil {
		writeEngineError(w, req.ID, err)
		return
	}
	c := commitFrom(commit)
	writeResult(w, req.ID, BalanceResponse{
		Address: crypto.AddressFromArray(owner).String(),
		Balance: formatAmount(balance),
		Commit:  &c,
	})
}
