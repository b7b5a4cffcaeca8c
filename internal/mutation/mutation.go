package mutation

import (
	"taskboard/internal/model"
	"taskboard/internal/querycache"
)

type Kind int

const (
	KindCreate Kind = iota + 1
	KindUpdate
	KindDelete
)

func (k Kind) String() string {
	switch k {
	case KindCreate:
		return "create"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// State is where a mutation is in its lifecycle:
// Idle -> Optimistic -> Pending -> Reconciled | RolledBack | Failed.
type State int

const (
	StateIdle State = iota
	StateOptimistic
	StatePending
	// StateReconciled: the server accepted the change and its record was
	// merged into the cache.
	StateReconciled
	// StateRolledBack: the request failed and the snapshot was restored.
	StateRolledBack
	// StateFailed: the request failed and the optimistic change was kept.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOptimistic:
		return "optimistic"
	case StatePending:
		return "pending"
	case StateReconciled:
		return "reconciled"
	case StateRolledBack:
		return "rolled-back"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Mutation is a single create, update or delete moving through the
// begin / apply / finalize protocol.
type Mutation struct {
	Kind   Kind
	TaskID model.TaskID

	state    State
	snapshot querycache.Snapshot
	release  func()
}

func (m *Mutation) State() State {
	return m.state
}

// Snapshot is the cache state captured when the mutation began.
func (m *Mutation) Snapshot() querycache.Snapshot {
	return m.snapshot
}

func (m *Mutation) Succeeded() bool {
	return m.state == StateReconciled
}

func (m *Mutation) Failed() bool {
	return m.state == StateRolledBack || m.state == StateFailed
}

func (m *Mutation) Done() bool {
	return m.Succeeded() || m.Failed()
}
