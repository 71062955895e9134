package schedule

// DefaultLookahead is the number of timed commands the radio's command
// queue accepts before it starts rejecting late ones. The transmit side
// never holds more pulses in flight than this.
const DefaultLookahead = 4

// Gate bounds how far scheduling may run ahead of reception: pulse i is
// admitted only once pulses_received >= i + 1 - depth, which keeps
// pulses_scheduled - pulses_received <= depth.
type Gate struct {
	state *State
	depth int64
}

// NewGate builds a gate over state. depth below 1 selects DefaultLookahead.
func NewGate(state *State, depth int) *Gate {
	if depth < 1 {
		depth = DefaultLookahead
	}
	return &Gate{state: state, depth: int64(depth)}
}

// Admits reports whether pulse index may be scheduled now.
func (g *Gate) Admits(index int64) bool {
	return g.state.Received() >= index+1-g.depth
}
