package irc

import "sync/atomic"

// State is the lifecycle phase of a Session
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateAwaitingReady
	StateJoiningChannels
	StateActive
	StateShuttingDown
)

var stateNames = [...]string{
	StateDisconnected:    "Disconnected",
	StateConnecting:      "Connecting",
	StateHandshaking:     "Handshaking",
	StateAwaitingReady:   "AwaitingReady",
	StateJoiningChannels: "JoiningChannels",
	StateActive:          "Active",
	StateShuttingDown:    "ShuttingDown",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// stateFlag is shared by the read loop and the controlling goroutine
type stateFlag struct {
	v atomic.Int32
}

func (f *stateFlag) load() State {
	return State(f.v.Load())
}

func (f *stateFlag) store(s State) {
	f.v.Store(int32(s))
}

// advance moves from one state to the next only if the current state is from
func (f *stateFlag) advance(from, to State) bool {
	return f.v.CompareAndSwap(int32(from), int32(to))
}
