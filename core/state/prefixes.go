package state

import ethcrypto "github.com/ethereum/go-ethereum/crypto"

var (
	recordPrefix   = []byte("rec/")
	accountPrefix  = []byte("acct/")
	accountSeed    = []byte("account")
	commitRootKey  = []byte("meta/commit/root")
	commitCountKey = []byte("meta/commit/height")
	eventSeqKey    = []byte("meta/events/seq")
)

// recordKey maps a derived record address onto its storage key.
func recordKey(addr [32]byte) []byte {
	buf := make([]byte, len(recordPrefix)+len(addr))
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], addr[:])
	return buf
}

// AccountAddress derives the bank record address of owner.
func AccountAddress(owner []byte) [32]byte {
	return ethcrypto.Keccak256Hash(accountSeed, owner)
}

func accountKey(owner []byte) []byte {
	addr := AccountAddress(owner)
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return buf
}
