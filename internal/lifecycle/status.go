// internal/lifecycle/status.go
//
// Job status state machine. The server owns transitions; the client uses
// this model to decide which actions are legal to offer and to detect
// impossible (backward) deltas in server data.

package lifecycle

// Status is a job's lifecycle state.
type Status string

const (
	StatusOpen       Status = "open"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// statusRank orders the forward progression. Cancelled sits outside the
// progression: it is reachable from any non-terminal state.
var statusRank = map[Status]int{
	StatusOpen:       0,
	StatusAssigned:   1,
	StatusInProgress: 2,
	StatusCompleted:  3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusAssigned, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// FriendlyName returns the label used in views.
func (s Status) FriendlyName() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusAssigned:
		return "Assigned"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	case StatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// CanTransition reports whether the move from s to next is a legal
// forward step: open→assigned, assigned→in_progress,
// {assigned,in_progress}→completed, any non-terminal→cancelled.
func (s Status) CanTransition(next Status) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	switch s {
	case StatusOpen:
		return next == StatusAssigned
	case StatusAssigned:
		return next == StatusInProgress || next == StatusCompleted
	case StatusInProgress:
		return next == StatusCompleted
	}
	return false
}

// isBackward reports whether a server-observed change from old to next
// moves against the progression. Such a delta is a data inconsistency to
// log; the authoritative record still wins.
func isBackward(old, next Status) bool {
	if old == next || old == StatusCancelled || next == StatusCancelled {
		return false
	}
	oldRank, okOld := statusRank[old]
	nextRank, okNext := statusRank[next]
	if !okOld || !okNext {
		return false
	}
	return nextRank < oldRank
}
