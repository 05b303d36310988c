package bank

import (
	"errors"
	"fmt"

	"hoperise/core/types"
	"hoperise/native/common"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the holder's balance.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	errNilLedger           = errors.New("bank: ledger required")
	errEmptyOwner          = errors.New("bank: owner required")
)

// Ledger is the account storage used by the bank helpers. Owners are raw
// byte identifiers: 20-byte accounts or 32-byte campaign vaults.
type Ledger interface {
	GetAccount(owner []byte) (*types.Account, error)
	PutAccount(owner []byte, account *types.Account) error
}

// Balance returns the spendable balance held by owner.
func Balance(ledger Ledger, owner []byte) (uint64, error) {
	if ledger == nil {
		return 0, errNilLedger
	}
	account, err := ledger.GetAccount(owner)
	if err != nil {
		return 0, err
	}
	if account == nil {
		return 0, nil
	}
	return account.Balance, nil
}

// Credit adds amount to the owner's balance.
func Credit(ledger Ledger, owner []byte, amount uint64) error {
	if ledger == nil {
		return errNilLedger
	}
	if len(owner) == 0 {
		return errEmptyOwner
	}
	account, err := ledger.GetAccount(owner)
	if err != nil {
		return err
	}
	account = account.Copy()
	next, err := common.AddUint64(account.Balance, amount)
	if err != nil {
		return fmt.Errorf("bank: credit: %w", err)
	}
	account.Balance = next
	return ledger.PutAccount(owner, account)
}

// Transfer moves amount from one holder to another. Both balances are
// validated before either record is written.
func Transfer(ledger Ledger, from, to []byte, amount uint64) error {
	if ledger == nil {
		return errNilLedger
	}
	if len(from) == 0 || len(to) == 0 {
		return errEmptyOwner
	}
	if amount == 0 {
		return nil
	}
	source, err := ledger.GetAccount(from)
	if err != nil {
		return err
	}
	source = source.Copy()
	if source.Balance < amount {
		return fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, source.Balance, amount)
	}
	if string(from) == string(to) {
		return nil
	}
	dest, err := ledger.GetAccount(to)
	if err != nil {
		return err
	}
	dest = dest.Copy()
	credited, err := common.AddUint64(dest.Balance, amount)
	if err != nil {
		return fmt.Errorf("bank: transfer: %w", err)
	}
	source.Balance -= amount
	source.Nonce++
	dest.Balance = credited
	if err := ledger.PutAccount(from, source); err != nil {
		return err
	}
	return ledger.PutAccount(to, dest)
}
