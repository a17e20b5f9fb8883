package ledger

import "fmt"

// State is the settlement state of a pairwise entry.
type State string

const (
	Outstanding State = "outstanding"
	Requested   State = "requested"
	Settled     State = "settled"
)

// Valid reports whether s is a recognized state.
func (s State) Valid() bool {
	switch s {
	case Outstanding, Requested, Settled:
		return true
	}
	return false
}

// Status is the informational outcome of a settlement operation. The
// "already" statuses are not errors: the caller renders them as messages.
type Status string

const (
	StatusOK               Status = "ok"
	StatusAlreadyRequested Status = "already_requested"
	StatusAlreadySettled   Status = "already_settled"
)

type event int

const (
	evRequest event = iota
	evConfirm
	evReopen
)

func (e event) String() string {
	switch e {
	case evRequest:
		return "request"
	case evConfirm:
		return "confirm"
	case evReopen:
		return "reopen"
	}
	return "unknown"
}

type transitionResult struct {
	to     State
	status Status
}

// transitions lists every supported move. Anything absent is rejected; there
// is deliberately no Requested -> Outstanding edge.
var transitions = map[State]map[event]transitionResult{
	Outstanding: {
		evRequest: {Requested, StatusOK},
		evConfirm: {Settled, StatusOK},
	},
	Requested: {
		evRequest: {Requested, StatusAlreadyRequested},
		evConfirm: {Settled, StatusOK},
	},
	Settled: {
		evRequest: {Settled, StatusAlreadySettled},
		evConfirm: {Settled, StatusAlreadySettled},
		evReopen:  {Outstanding, StatusOK},
	},
}

// transition applies ev to from. Unknown states are data-integrity failures.
func transition(from State, ev event) (State, Status, error) {
	edges, ok := transitions[from]
	if !ok {
		return from, "", fmt.Errorf("%w: unrecognized state %q", ErrCorruptEntry, from)
	}
	res, ok := edges[ev]
	if !ok {
		return from, "", fmt.Errorf("ledger: %s not allowed from state %q", ev, from)
	}
	return res.to, res.status, nil
}
