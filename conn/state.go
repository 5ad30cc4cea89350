package conn

// State identifies the connection's position in the request cycle.
type State int

const (
	// StateIdle means no request cycle is underway.
	StateIdle State = iota

	// StateRequesting means a request is being assembled and awaits
	// submission.
	StateRequesting

	// StateResponding means a response arrived and its body can be read.
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}

// connState is the connection's internal state variant. The sealed
// interface keeps the three variants closed: a Conn can never hold a
// request and a response at once, or neither marker while mid-cycle.
type connState interface {
	state() State
}

type idle struct{}

func (idle) state() State { return StateIdle }

type requesting struct {
	req *Request
}

func (requesting) state() State { return StateRequesting }

type responding struct {
	resp *Response
}

func (responding) state() State { return StateResponding }
