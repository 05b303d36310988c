package campaign

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	counterSeed      = []byte("campaign_counter")
	campaignSeed     = []byte("campaign")
	milestoneSeed    = []byte("milestone")
	contributionSeed = []byte("contribution")
)

// CounterAddress is the derived address of the singleton id allocator.
func CounterAddress() [32]byte {
	return ethcrypto.Keccak256Hash(counterSeed)
}

// CampaignAddress derives the record address of campaign id. The same
// address keys the campaign's escrow vault in the bank.
func CampaignAddress(id uint64) [32]byte {
	var idBytes [8]byte
	binary.LittleEndian.PutUint64(idBytes[:], id)
	return ethcrypto.Keccak256Hash(campaignSeed, idBytes[:])
}

// MilestoneAddress derives the record address of a campaign milestone.
func MilestoneAddress(campaign [32]byte, index uint8) [32]byte {
	return ethcrypto.Keccak256Hash(milestoneSeed, campaign[:], []byte{index})
}

// ContributionAddress derives the record address of a backer's contribution.
func ContributionAddress(campaign [32]byte, contributor [20]byte) [32]byte {
	return ethcrypto.Keccak256Hash(contributionSeed, campaign[:], contributor[:])
}
