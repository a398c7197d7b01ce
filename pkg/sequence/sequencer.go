// Package sequence maintains the temporal ordering of sessions. Each
// (user, timeline node) pair carries one simple FOLLOWS path; inserting a
// session relinks its predecessor and successor so the path stays a straight
// line regardless of arrival order.
package sequence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/graph"
)

// Sequencer places sessions into their FOLLOWS chain.
type Sequencer struct {
	graph  graph.Driver
	logger *zap.Logger

	// locks serializes placements per (user, node) pair. Concurrent inserts
	// into the same chain would otherwise race on the relink.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewSequencer creates a sequencer over the given graph store.
func NewSequencer(g graph.Driver, logger *zap.Logger) *Sequencer {
	return &Sequencer{graph: g, logger: logger, locks: make(map[string]*sync.Mutex)}
}

func (s *Sequencer) chainLock(userID, nodeID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "|" + nodeID
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Place links an already-persisted session into its (user, node) chain.
// The session's neighbors are found by start time, ties broken by external id
// so ordering is deterministic. Out-of-order arrival is handled by splicing:
// a session landing between two linked sessions takes over both edges.
func (s *Sequencer) Place(ctx context.Context, session graph.Session) error {
	if session.ExternalID == "" {
		return &graph.ValidationError{Field: "externalId", Reason: "must not be empty"}
	}
	if session.UserID == "" || session.NodeID == "" {
		return &graph.ValidationError{Field: "userId/nodeId", Reason: "must not be empty"}
	}

	lock := s.chainLock(session.UserID, session.NodeID)
	lock.Lock()
	defer lock.Unlock()

	sessions, err := s.graph.SessionsForNode(ctx, session.UserID, session.NodeID, time.Time{})
	if err != nil {
		return fmt.Errorf("listing sessions for chain: %w", err)
	}

	idx := -1
	for i, existing := range sessions {
		if existing.ExternalID == session.ExternalID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return fmt.Errorf("session %s: %w", session.ExternalID, graph.ErrNotFound)
	}

	if idx > 0 {
		pred := sessions[idx-1]
		// The predecessor may still point past this session; replace its
		// outgoing edge before wiring the new link.
		if err := s.graph.RemoveFollows(ctx, pred.ExternalID); err != nil {
			return fmt.Errorf("unlinking predecessor %s: %w", pred.ExternalID, err)
		}
		if err := s.graph.SetFollows(ctx, pred.ExternalID, session.ExternalID); err != nil {
			return fmt.Errorf("linking predecessor %s: %w", pred.ExternalID, err)
		}
	}

	if idx < len(sessions)-1 {
		succ := sessions[idx+1]
		if err := s.graph.SetFollows(ctx, session.ExternalID, succ.ExternalID); err != nil {
			return fmt.Errorf("linking successor %s: %w", succ.ExternalID, err)
		}
	}

	s.logger.Debug("session placed in chain",
		zap.String("session_id", session.ExternalID),
		zap.String("user_id", session.UserID),
		zap.String("node_id", session.NodeID),
		zap.Int("position", idx),
		zap.Int("chain_length", len(sessions)),
	)
	return nil
}
