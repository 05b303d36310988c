package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"hoperise/storage"
)

// StateVersion identifies the expected on-disk schema layout. Increment this
// constant whenever breaking changes are made to the stored records.
const StateVersion uint32 = 1

var (
	stateVersionKey = []byte("state/version")
	// ErrStateVersionMismatch indicates the stored schema version does not
	// match the version supported by the current binary.
	ErrStateVersionMismatch = errors.New("state: schema version mismatch")
)

// StoredVersion returns the schema version recorded in the database and
// whether one was present.
func (m *Manager) StoredVersion() (uint32, bool, error) {
	if m == nil {
		return 0, false, errNilManager
	}
	raw, err := m.db.Get(stateVersionKey)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 4 {
		return 0, false, fmt.Errorf("state: corrupt schema version")
	}
	return binary.BigEndian.Uint32(raw), true, nil
}

// ensureStateVersion stamps an empty database with StateVersion and rejects
// databases written by a different schema.
func (m *Manager) ensureStateVersion() error {
	version, ok, err := m.StoredVersion()
	if err != nil {
		return err
	}
	if !ok {
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], StateVersion)
		return m.db.Put(stateVersionKey, buf[:])
	}
	if version != StateVersion {
		return fmt.Errorf("%w: stored %d, expected %d", ErrStateVersionMismatch, version, StateVersion)
	}
	return nil
}
