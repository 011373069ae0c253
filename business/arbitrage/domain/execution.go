package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

// State is a step of an arbitrage execution.
type State string

const (
	StateIdle          State = "IDLE"
	StateSimulated     State = "SIMULATED"
	StateLeg1Committed State = "LEG1_COMMITTED"
	StateLeg2Committed State = "LEG2_COMMITTED"
	StateVerified      State = "VERIFIED"
	StateSettled       State = "SETTLED"
)

var next = map[State]State{
	StateIdle:          StateSimulated,
	StateSimulated:     StateLeg1Committed,
	StateLeg1Committed: StateLeg2Committed,
	StateLeg2Committed: StateVerified,
	StateVerified:      StateSettled,
}

// Execution tracks one run of the state machine. Every forward step must be the
// successor of the current state; Abort returns to Idle from any non-terminal state.
type Execution struct {
	state   State
	trail   []State
	aborted bool
}

func NewExecution() *Execution {
	return &Execution{state: StateIdle, trail: []State{StateIdle}}
}

func (e *Execution) State() State { return e.state }

// Trail lists every state visited, in order.
func (e *Execution) Trail() []State {
	out := make([]State, len(e.trail))
	copy(out, e.trail)
	return out
}

func (e *Execution) Aborted() bool { return e.aborted }

// Advance moves to the successor state.
func (e *Execution) Advance(to State) error {
	if want, ok := next[e.state]; !ok || want != to {
		return fmt.Errorf("illegal transition %s -> %s", e.state, to)
	}
	e.state = to
	e.trail = append(e.trail, to)
	return nil
}

// Abort returns to Idle. It is a no-op once settled or already idle.
func (e *Execution) Abort() {
	if e.state == StateSettled || e.state == StateIdle {
		return
	}
	e.aborted = true
	e.state = StateIdle
	e.trail = append(e.trail, StateIdle)
}

// Committed reports whether any leg has been applied.
func (e *Execution) Committed() bool {
	switch e.state {
	case StateLeg1Committed, StateLeg2Committed, StateVerified:
		return true
	default:
		return false
	}
}

// Receipt records one performArbitrage call, successful or not.
// Amounts are in the input asset's smallest unit, except Intermediate which is
// in the other asset.
type Receipt struct {
	ID           string
	Caller       common.Address
	InputAsset   string
	Decimals     uint8
	Direction    Direction
	AmountIn     ledger.Quantity
	Intermediate ledger.Quantity
	Final        ledger.Quantity
	Profit       ledger.Quantity
	Trail        []State
	RolledBack   bool
	ErrorCode    string
	Error        string
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Succeeded reports whether the execution settled.
func (r *Receipt) Succeeded() bool {
	return len(r.Trail) > 0 && r.Trail[len(r.Trail)-1] == StateSettled
}

// Duration is the wall time spent executing.
func (r *Receipt) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
