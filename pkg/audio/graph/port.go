package graph

// ChanPort is a Port backed by a buffered channel.
type ChanPort chan Batch

var _ Port = (ChanPort)(nil)

func NewChanPort(capacity int) ChanPort {
	return make(ChanPort, capacity)
}

func (p ChanPort) Post(b Batch) bool {
	select {
	case p <- b:
		return true
	default:
		return false
	}
}
