package types

// Account is the bank record for any balance holder, including campaign
// escrow vaults. It is persisted RLP encoded.
type Account struct {
	Nonce   uint64 `json:"nonce"`
	Balance uint64 `json:"balance"`
}

// Copy returns a detached copy of the account.
func (a *Account) Copy() *Account {
	if a == nil {
		return &Account{}
	}
	clone := *a
	return &clone
}
