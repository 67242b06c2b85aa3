package grid

import (
	"context"
	"fmt"

	"github.com/looplab/fsm"
)

// V2G discharge is a two-phase commit: StageDischarge records the amount,
// the next UpdateStep nets it against charging load exactly once. The
// explicit state machine makes the ordering dependency visible.
const (
	v2gIdle    = "idle"
	v2gStaged  = "staged"
	v2gApplied = "applied"
)

type v2gStaging struct {
	machine  *fsm.FSM
	amountKW float64
}

func newV2GStaging() *v2gStaging {
	return &v2gStaging{
		machine: fsm.NewFSM(
			v2gIdle,
			fsm.Events{
				{Name: "stage", Src: []string{v2gIdle, v2gStaged}, Dst: v2gStaged},
				{Name: "apply", Src: []string{v2gStaged}, Dst: v2gApplied},
				{Name: "settle", Src: []string{v2gApplied}, Dst: v2gIdle},
			},
			fsm.Callbacks{},
		),
	}
}

// Stage accumulates a discharge request for the next update. Staging on top
// of an existing staged amount adds to it.
func (v *v2gStaging) Stage(amountKW float64) error {
	if amountKW < 0 {
		return fmt.Errorf("v2g: negative discharge %f", amountKW)
	}
	if amountKW == 0 {
		return nil
	}
	if err := v.machine.Event(context.Background(), "stage"); err != nil {
		return fmt.Errorf("v2g stage: %w", err)
	}
	v.amountKW += amountKW
	return nil
}

// Consume returns the staged amount and resets the machine to idle. It
// returns zero when nothing is staged.
func (v *v2gStaging) Consume() float64 {
	if v.machine.Current() != v2gStaged {
		return 0
	}
	if err := v.machine.Event(context.Background(), "apply"); err != nil {
		return 0
	}
	amount := v.amountKW
	v.amountKW = 0
	if err := v.machine.Event(context.Background(), "settle"); err != nil {
		return amount
	}
	return amount
}

// Pending returns the currently staged amount without consuming it.
func (v *v2gStaging) Pending() float64 {
	if v.machine.Current() != v2gStaged {
		return 0
	}
	return v.amountKW
}
