package page

import (
	"context"

	"github.com/looplab/fsm"
)

// States of a page session, per the design notes' lifecycle diagram:
// idle -> active -> closing -> idle, with shutdown reachable from any
// state into terminal.
const (
	StateIdle     = "idle"
	StateActive   = "active"
	StateClosing  = "closing"
	StateTerminal = "terminal"
)

// Events that drive the page session FSM. Closing is always immediately
// followed by EventCloseComplete (fired by the Session driving loop, not
// from within a callback) so every observer of Current() still sees the
// transient closing state appear.
const (
	EventPacket        = "packet"
	EventGap           = "gap"
	EventSSRCChange    = "ssrc_change"
	EventCloseComplete = "close_complete"
	EventShutdown      = "shutdown"
)

// newPageFSM builds the looplab/fsm state machine for one endpoint's page
// sessions. The callbacks delegate to the owning Session so this file
// stays pure wiring, mirroring the split between refer_fsm.go
// (transitions) and dialog.go (behavior) in the teacher's SIP stack.
func newPageFSM(s *Session) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: EventPacket, Src: []string{StateIdle}, Dst: StateActive},
			{Name: EventPacket, Src: []string{StateActive}, Dst: StateActive},
			{Name: EventGap, Src: []string{StateActive}, Dst: StateClosing},
			{Name: EventSSRCChange, Src: []string{StateActive}, Dst: StateClosing},
			{Name: EventCloseComplete, Src: []string{StateClosing}, Dst: StateIdle},
			{Name: EventShutdown, Src: []string{StateIdle, StateActive, StateClosing}, Dst: StateTerminal},
		},
		fsm.Callbacks{
			"enter_" + StateActive: func(ctx context.Context, e *fsm.Event) {
				s.onEnterActive(ctx, e)
			},
			"enter_" + StateClosing: func(ctx context.Context, e *fsm.Event) {
				s.onEnterClosing(ctx, e)
			},
			"enter_" + StateTerminal: func(ctx context.Context, e *fsm.Event) {
				s.onEnterTerminal(ctx, e)
			},
		},
	)
}
