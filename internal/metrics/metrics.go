package metrics

// Poll results.
const (
	PollResultOK        = "ok"
	PollResultNotFound  = "not_found"
	PollResultTransport = "transport_error"
	PollResultEmpty     = "empty"
	PollResultDiscarded = "discarded"
)

// Recorder knows how to record task runtime metrics.
type Recorder interface {
	IncTaskLaunched(operation string)
	IncLaunchFailed(operation string)
	IncTaskTerminated(operation, state string)
	IncPoll(result string)
	SetInteractionLocked(locked bool)
	IncLockSafetyRelease()
	IncHeartbeat(ok bool)
}

// Noop is a recorder that doesn't record anything.
var Noop Recorder = noop{}

type noop struct{}

func (noop) IncTaskLaunched(string)           {}
func (noop) IncLaunchFailed(string)           {}
func (noop) IncTaskTerminated(string, string) {}
func (noop) IncPoll(string)                   {}
func (noop) SetInteractionLocked(bool)        {}
func (noop) IncLockSafetyRelease()            {}
func (noop) IncHeartbeat(bool)                {}
