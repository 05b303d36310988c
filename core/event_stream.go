package core

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"hoperise/core/events"
	"hoperise/core/state"
	"hoperise/core/types"
	"hoperise/observability"
)

const eventHistoryLimit = 2048

// EventRecord is a committed event together with its position in the stream.
type EventRecord struct {
	Sequence uint64
	Cursor   string
	Height   uint64
	Root     [32]byte
	Event    *types.Event
}

// EventSink consumes committed events synchronously, in commit order.
type EventSink interface {
	HandleEvent(EventRecord) error
}

func cloneEventRecord(rec EventRecord) EventRecord {
	cloned := rec
	cloned.Event = rec.Event.Clone()
	return cloned
}

// typedEvents keeps the emitted events that carry a ledger payload.
func typedEvents(emitted []events.Event) []*types.Event {
	out := make([]*types.Event, 0, len(emitted))
	for _, evt := range emitted {
		typed, ok := evt.(events.Typed)
		if !ok || typed.Event() == nil {
			continue
		}
		out = append(out, typed.Event().Clone())
	}
	return out
}

// publish hands committed events to the history, the sinks and the live
// subscribers. Sequences start at first and were persisted with the commit.
func (n *Node) publish(commit state.Commit, first uint64, emitted []*types.Event) {
	for i, evt := range emitted {
		n.publishEvent(EventRecord{
			Sequence: first + uint64(i),
			Height:   commit.Height,
			Root:     commit.Root,
			Event:    evt,
		})
	}
}

func (n *Node) publishEvent(rec EventRecord) {
	rec.Cursor = strconv.FormatUint(rec.Sequence, 10)
	n.streamMu.Lock()
	n.streamHistory = append(n.streamHistory, cloneEventRecord(rec))
	if len(n.streamHistory) > eventHistoryLimit {
		excess := len(n.streamHistory) - eventHistoryLimit
		trimmed := make([]EventRecord, eventHistoryLimit)
		copy(trimmed, n.streamHistory[excess:])
		n.streamHistory = trimmed
	}
	n.streamMu.Unlock()

	observability.Events().RecordEvent(rec.Event.Type)
	for _, sink := range n.sinks {
		if err := sink.HandleEvent(cloneEventRecord(rec)); err != nil {
			n.logger.Warn("event sink failed",
				slog.String("type", rec.Event.Type),
				slog.Any("error", err))
		}
	}

	// Subscribers are only closed under streamMu, so every channel seen here
	// is still open.
	n.streamMu.Lock()
	defer n.streamMu.Unlock()
	for _, ch := range n.streamSubs {
		select {
		case ch <- cloneEventRecord(rec):
		default:
			observability.Events().RecordDrop("stream")
		}
	}
}

// SubscribeEvents registers a subscriber for committed events after the
// supplied cursor. The returned backlog holds retained events newer than the
// cursor; cancel must be called to release the subscription.
func (n *Node) SubscribeEvents(ctx context.Context, cursor string) (<-chan EventRecord, func(), []EventRecord, error) {
	if n == nil {
		return nil, nil, nil, fmt.Errorf("node not initialised")
	}
	updates := make(chan EventRecord, 32)

	var since uint64
	if trimmed := strings.TrimSpace(cursor); trimmed != "" {
		parsed, err := strconv.ParseUint(trimmed, 10, 64)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid cursor %q", cursor)
		}
		since = parsed
	}

	n.streamMu.Lock()
	if n.streamSubs == nil {
		n.streamSubs = make(map[uint64]chan EventRecord)
	}
	id := n.streamNextID
	n.streamNextID++
	n.streamSubs[id] = updates
	backlog := make([]EventRecord, 0, len(n.streamHistory))
	for _, entry := range n.streamHistory {
		if entry.Sequence > since {
			backlog = append(backlog, cloneEventRecord(entry))
		}
	}
	n.streamMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.streamMu.Lock()
			if sub, ok := n.streamSubs[id]; ok {
				delete(n.streamSubs, id)
				close(sub)
			}
			n.streamMu.Unlock()
		})
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			cancel()
		}()
	}
	return updates, cancel, backlog, nil
}

// RecentEvents returns up to limit retained events after cursor, optionally
// filtered by type prefix.
func (n *Node) RecentEvents(since uint64, limit int, typePrefix string) []EventRecord {
	n.streamMu.Lock()
	defer n.streamMu.Unlock()
	out := make([]EventRecord, 0)
	for _, entry := range n.streamHistory {
		if entry.Sequence <= since {
			continue
		}
		if typePrefix != "" && !strings.HasPrefix(entry.Event.Type, typePrefix) {
			continue
		}
		out = append(out, cloneEventRecord(entry))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
