package model

// RelayState tracks one relay from request to completion.
//
//	Idle -> Resolving -> Connecting -> Streaming -> Completed
//	                         |             |
//	                         +-> Aborted <-+
type RelayState int

const (
	StateIdle RelayState = iota
	StateResolving
	StateConnecting
	StateStreaming
	StateCompleted
	StateAborted
)

var stateNames = [...]string{
	StateIdle:       "idle",
	StateResolving:  "resolving",
	StateConnecting: "connecting",
	StateStreaming:  "streaming",
	StateCompleted:  "completed",
	StateAborted:    "aborted",
}

func (s RelayState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s RelayState) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}
