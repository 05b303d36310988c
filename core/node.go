package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hoperise/core/events"
	"hoperise/core/state"
	"hoperise/core/types"
	"hoperise/native/campaign"
	"hoperise/native/common"
	"hoperise/observability/metrics"
	"hoperise/storage"
)

// Node owns the ledger state and serialises every lifecycle transition. Each
// mutation runs inside one state transaction; events are published only after
// the transaction has been committed.
type Node struct {
	db      storage.Database
	state   *state.Manager
	stateMu sync.Mutex

	nowFn   func() int64
	pauses  common.PauseView
	logger  *slog.Logger
	metrics *metrics.CampaignMetrics
	sinks   []EventSink

	streamMu      sync.Mutex
	streamHistory []EventRecord
	streamSubs    map[uint64]chan EventRecord
	streamNextID  uint64
}

// Option customises a Node at construction.
type Option func(*Node)

// WithClock overrides the wall clock used by the lifecycle engine.
func WithClock(now func() int64) Option {
	return func(n *Node) {
		if now != nil {
			n.nowFn = now
		}
	}
}

// WithLogger sets the node logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Node) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithPauses wires operator pause switches into the engine.
func WithPauses(p common.PauseView) Option {
	return func(n *Node) { n.pauses = p }
}

// WithEventSink registers a synchronous consumer of committed events.
func WithEventSink(sink EventSink) Option {
	return func(n *Node) {
		if sink != nil {
			n.sinks = append(n.sinks, sink)
		}
	}
}

// NewNode opens the ledger on db and verifies the persisted allocations.
func NewNode(db storage.Database, opts ...Option) (*Node, error) {
	manager, err := state.NewManager(db)
	if err != nil {
		return nil, err
	}
	n := &Node{
		db:      db,
		state:   manager,
		nowFn:   func() int64 { return time.Now().Unix() },
		logger:  slog.Default(),
		metrics: metrics.Campaign(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := n.view(func(engine *campaign.Engine, _ *state.Tx) error {
		return engine.VerifyAllocations()
	}); err != nil {
		return nil, fmt.Errorf("verify state: %w", err)
	}
	n.metrics.SetHeight(manager.Head().Height)
	return n, nil
}

// Head returns the latest state commit.
func (n *Node) Head() state.Commit { return n.state.Head() }

// Now returns the engine clock reading.
func (n *Node) Now() int64 { return n.nowFn() }

func (n *Node) newCampaignEngine(tx *state.Tx, emitter events.Emitter) *campaign.Engine {
	engine := campaign.NewEngine()
	engine.SetState(tx)
	engine.SetEmitter(emitter)
	engine.SetPauses(n.pauses)
	engine.SetNowFunc(n.nowFn)
	return engine
}

// mutate runs fn in a writable transaction and publishes the buffered events
// once the commit succeeds.
func (n *Node) mutate(op string, fn func(engine *campaign.Engine, tx *state.Tx) error) (state.Commit, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	start := time.Now()
	buf := &events.Buffer{}
	var (
		emitted []*types.Event
		first   uint64
	)
	commit, err := n.state.Update(func(tx *state.Tx) error {
		if err := fn(n.newCampaignEngine(tx, buf), tx); err != nil {
			return err
		}
		emitted = typedEvents(buf.Events())
		if len(emitted) == 0 {
			return nil
		}
		last, err := tx.EventSequence()
		if err != nil {
			return err
		}
		first = last + 1
		return tx.SetEventSequence(last + uint64(len(emitted)))
	})
	n.metrics.ObserveOperation(op, campaign.KindOf(err), time.Since(start))
	if err != nil {
		n.logger.Debug("campaign operation rejected",
			slog.String("operation", op),
			slog.String("kind", campaign.KindOf(err)),
			slog.Any("error", err))
		return state.Commit{}, err
	}
	n.metrics.SetHeight(commit.Height)
	n.publish(commit, first, emitted)
	return commit, nil
}

func (n *Node) view(fn func(engine *campaign.Engine, tx *state.Tx) error) error {
	return n.state.View(func(tx *state.Tx) error {
		return fn(n.newCampaignEngine(tx, nil), tx)
	})
}

// Close releases the underlying database.
func (n *Node) Close() {
	if n == nil || n.db == nil {
		return
	}
	n.streamMu.Lock()
	for id, ch := range n.streamSubs {
		close(ch)
		delete(n.streamSubs, id)
	}
	n.streamMu.Unlock()
	n.db.Close()
}
