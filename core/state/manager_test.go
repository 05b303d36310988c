package state

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hoperise/core/types"
	"hoperise/native/campaign"
	"hoperise/storage"
)

func TestUpdateCommitsAtomically(t *testing.T) {
	db := storage.NewMemDB()
	m, err := NewManager(db)
	require.NoError(t, err)

	owner := []byte("alice")
	commit, err := m.Update(func(tx *Tx) error {
		return tx.PutAccount(owner, &types.Account{Balance: 50})
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), commit.Height)
	require.Equal(t, 1, commit.Writes)

	boom := errors.New("boom")
	_, err = m.Update(func(tx *Tx) error {
		if err := tx.PutAccount(owner, &types.Account{Balance: 0}); err != nil {
			return err
		}
		if err := tx.PutAccount([]byte("bob"), &types.Account{Balance: 50}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, m.View(func(tx *Tx) error {
		acc, err := tx.GetAccount(owner)
		require.NoError(t, err)
		require.Equal(t, uint64(50), acc.Balance)
		bob, err := tx.GetAccount([]byte("bob"))
		require.NoError(t, err)
		require.Zero(t, bob.Balance)
		return nil
	}))
	require.Equal(t, commit, Commit{Height: m.Head().Height, Root: m.Head().Root, Writes: 1})
}

func TestTxReadsItsOwnWrites(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	_, err = m.Update(func(tx *Tx) error {
		require.NoError(t, tx.CampaignCounterPut(&campaign.Counter{Count: 3}))
		got, ok, err := tx.CampaignCounterGet()
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(3), got.Count)
		return nil
	})
	require.NoError(t, err)
}

func TestViewIsReadOnly(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	err = m.View(func(tx *Tx) error {
		return tx.PutAccount([]byte("x"), &types.Account{})
	})
	require.ErrorIs(t, err, ErrReadOnly)
}

func TestEmptyUpdateKeepsHead(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	commit, err := m.Update(func(*Tx) error { return nil })
	require.NoError(t, err)
	require.Zero(t, commit.Height)
	require.Zero(t, commit.Writes)
}

func TestRootChainsAcrossRestarts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	db, err := storage.NewLevelDB(path)
	require.NoError(t, err)
	m, err := NewManager(db)
	require.NoError(t, err)
	first, err := m.Update(func(tx *Tx) error {
		return tx.CampaignPut(&campaign.Campaign{ID: 0, Title: "t", IsActive: true})
	})
	require.NoError(t, err)
	db.Close()

	db, err = storage.NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := NewManager(db)
	require.NoError(t, err)
	require.Equal(t, first.Root, reopened.Head().Root)
	require.Equal(t, first.Height, reopened.Head().Height)

	require.NoError(t, reopened.View(func(tx *Tx) error {
		c, ok, err := tx.CampaignGet(0)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "t", c.Title)
		return nil
	}))

	second, err := reopened.Update(func(tx *Tx) error {
		return tx.PutAccount([]byte("a"), &types.Account{Balance: 1})
	})
	require.NoError(t, err)
	require.NotEqual(t, first.Root, second.Root)
}

func TestEventSequencePersists(t *testing.T) {
	db := storage.NewMemDB()
	m, err := NewManager(db)
	require.NoError(t, err)
	require.NoError(t, m.View(func(tx *Tx) error {
		seq, err := tx.EventSequence()
		require.NoError(t, err)
		require.Zero(t, seq)
		return nil
	}))
	_, err = m.Update(func(tx *Tx) error { return tx.SetEventSequence(41) })
	require.NoError(t, err)

	reopened, err := NewManager(db)
	require.NoError(t, err)
	require.NoError(t, reopened.View(func(tx *Tx) error {
		seq, err := tx.EventSequence()
		require.NoError(t, err)
		require.Equal(t, uint64(41), seq)
		return nil
	}))

	require.NoError(t, db.Put(eventSeqKey, []byte{1, 2}))
	require.Error(t, reopened.View(func(tx *Tx) error {
		_, err := tx.EventSequence()
		return err
	}))
}

func TestSchemaVersionMismatch(t *testing.T) {
	db := storage.NewMemDB()
	require.NoError(t, db.Put(stateVersionKey, []byte{0, 0, 0, 9}))
	_, err := NewManager(db)
	require.ErrorIs(t, err, ErrStateVersionMismatch)
}

func TestMissingRecordsReportAbsent(t *testing.T) {
	m, err := NewManager(storage.NewMemDB())
	require.NoError(t, err)
	require.NoError(t, m.View(func(tx *Tx) error {
		_, ok, err := tx.CampaignGet(7)
		require.NoError(t, err)
		require.False(t, ok)
		_, ok, err = tx.CampaignMilestoneGet(campaign.CampaignAddress(7), 0)
		require.NoError(t, err)
		require.False(t, ok)
		_, ok, err = tx.CampaignContributionGet(campaign.CampaignAddress(7), [20]byte{1})
		require.NoError(t, err)
		require.False(t, ok)
		return nil
	}))
}
