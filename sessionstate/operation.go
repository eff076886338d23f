package sessionstate

import (
	"errors"
	"fmt"
)

// ErrUnknownOperation is wrapped by ParseOperation for unrecognized names.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is one of the session_state tool operations.
type Operation int

const (
	OpSaveState Operation = iota + 1
	OpLoadState
	OpListStates
)

// Operations lists every operation in presentation order.
func Operations() []Operation {
	return []Operation{OpSaveState, OpLoadState, OpListStates}
}

func (o Operation) String() string {
	switch o {
	case OpSaveState:
		return "save_state"
	case OpLoadState:
		return "load_state"
	case OpListStates:
		return "list_states"
	default:
		return fmt.Sprintf("Operation(%d)", int(o))
	}
}

// ParseOperation maps a wire name to its Operation.
func ParseOperation(name string) (Operation, error) {
	for _, op := range Operations() {
		if op.String() == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
}
