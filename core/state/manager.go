package state

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"lukechampine.com/blake3"

	"hoperise/storage"
)

var (
	errNilManager = errors.New("state: manager unavailable")
	// ErrReadOnly is returned when a write is attempted inside View.
	ErrReadOnly = errors.New("state: read-only transaction")
)

// Commit describes the outcome of a successful Update.
type Commit struct {
	Height uint64
	Root   [32]byte
	Writes int
}

// Manager provides serialised, all-or-nothing access to the ledger state held
// in a storage.Database. Every Update buffers its writes and applies them in a
// single batch, or not at all when the callback fails.
type Manager struct {
	mu     sync.RWMutex
	db     storage.Database
	height uint64
	root   [32]byte
}

// NewManager opens a state manager on db and checks the schema version.
func NewManager(db storage.Database) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("state: database required")
	}
	m := &Manager{db: db}
	if raw, err := db.Get(commitRootKey); err == nil {
		if len(raw) != len(m.root) {
			return nil, fmt.Errorf("state: corrupt commit root")
		}
		copy(m.root[:], raw)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if raw, err := db.Get(commitCountKey); err == nil {
		if len(raw) != 8 {
			return nil, fmt.Errorf("state: corrupt commit height")
		}
		m.height = binary.BigEndian.Uint64(raw)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err := m.ensureStateVersion(); err != nil {
		return nil, err
	}
	return m, nil
}

// Head returns the latest commit.
func (m *Manager) Head() Commit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Commit{Height: m.height, Root: m.root}
}

// Update runs fn against a writable transaction. Writes become visible only
// if fn returns nil and the batch is persisted.
func (m *Manager) Update(fn func(tx *Tx) error) (Commit, error) {
	if m == nil {
		return Commit{}, errNilManager
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newTx(m.db, false)
	if err := fn(tx); err != nil {
		return Commit{}, err
	}
	if len(tx.writes) == 0 {
		return Commit{Height: m.height, Root: m.root}, nil
	}

	root := nextRoot(m.root, tx.writes)
	height := m.height + 1
	batch := storage.NewBatch()
	for _, key := range tx.sortedKeys() {
		batch.Put([]byte(key), tx.writes[key])
	}
	var heightBytes [8]byte
	binary.BigEndian.PutUint64(heightBytes[:], height)
	batch.Put(commitRootKey, root[:])
	batch.Put(commitCountKey, heightBytes[:])
	if err := m.db.Write(batch); err != nil {
		return Commit{}, fmt.Errorf("state: commit: %w", err)
	}
	m.root = root
	m.height = height
	return Commit{Height: height, Root: root, Writes: len(tx.writes)}, nil
}

// View runs fn against a read-only snapshot of committed state.
func (m *Manager) View(fn func(tx *Tx) error) error {
	if m == nil {
		return errNilManager
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(newTx(m.db, true))
}

// nextRoot chains the previous root with the sorted write set.
func nextRoot(prev [32]byte, writes map[string][]byte) [32]byte {
	keys := make([]string, 0, len(writes))
	for k := range writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := blake3.New(32, nil)
	h.Write(prev[:])
	var lenBuf [4]byte
	for _, k := range keys {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(k)))
		h.Write(lenBuf[:])
		h.Write([]byte(k))
		v := writes[k]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		h.Write(lenBuf[:])
		h.Write(v)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Tx is a buffered view of state used for one Update or View call.
type Tx struct {
	db       storage.Database
	writes   map[string][]byte
	readOnly bool
}

func newTx(db storage.Database, readOnly bool) *Tx {
	return &Tx{db: db, writes: make(map[string][]byte), readOnly: readOnly}
}

func (tx *Tx) get(key []byte) ([]byte, bool, error) {
	if v, ok := tx.writes[string(key)]; ok {
		return v, true, nil
	}
	v, err := tx.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (tx *Tx) put(key, value []byte) error {
	if tx.readOnly {
		return ErrReadOnly
	}
	if len(key) == 0 {
		return fmt.Errorf("state: key must not be empty")
	}
	tx.writes[string(key)] = append([]byte(nil), value...)
	return nil
}

// EventSequence returns the sequence number of the last published event.
func (tx *Tx) EventSequence() (uint64, error) {
	raw, ok, err := tx.get(eventSeqKey)
	if err != nil || !ok {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, fmt.Errorf("state: corrupt event sequence")
	}
	return binary.BigEndian.Uint64(raw), nil
}

// SetEventSequence records seq as the last published event sequence. It is
// written in the same batch as the state the events describe.
func (tx *Tx) SetEventSequence(seq uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return tx.put(eventSeqKey, buf[:])
}

func (tx *Tx) sortedKeys() []string {
	keys := make([]string, 0, len(tx.writes))
	for k := range tx.writes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
