package state

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"

	"hoperise/core/types"
)

// GetAccount returns the bank record of owner. Missing accounts are returned
// as zero-balance records.
func (tx *Tx) GetAccount(owner []byte) (*types.Account, error) {
	if len(owner) == 0 {
		return nil, fmt.Errorf("state: account owner required")
	}
	raw, ok, err := tx.get(accountKey(owner))
	if err != nil {
		return nil, err
	}
	account := &types.Account{}
	if !ok {
		return account, nil
	}
	if err := rlp.DecodeBytes(raw, account); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	return account, nil
}

// PutAccount stores the bank record of owner.
func (tx *Tx) PutAccount(owner []byte, account *types.Account) error {
	if len(owner) == 0 {
		return fmt.Errorf("state: account owner required")
	}
	if account == nil {
		account = &types.Account{}
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return tx.put(accountKey(owner), encoded)
}
