package goRecovery

// transitions lists every legal stage edge. Stages absent as keys have no
// outgoing edges.
var transitions = map[Stage][]Stage{
	StageChoosing:      {StageEmailEntry, StagePhoneEntry, StageExited},
	StageEmailEntry:    {StageExited},
	StagePhoneEntry:    {StageOTPEntry, StageExited},
	StageOTPEntry:      {StagePasswordReset, StageExited},
	StagePasswordReset: {StageExited},
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
