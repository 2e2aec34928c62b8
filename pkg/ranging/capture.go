package ranging

import "sync/atomic"

// capture turns echo line transitions into RawEdgeEvents. onEdge runs in the
// transducer's event context: atomics and a non-blocking send only.
type capture struct {
	raw        *queue[RawEdgeEvent]
	startUS    atomic.Uint64
	inProgress atomic.Bool
	spurious   atomic.Uint32
}

func newCapture(raw *queue[RawEdgeEvent]) *capture {
	return &capture{raw: raw}
}

func (c *capture) onEdge(rising bool, atUS uint64) {
	if rising {
		c.startUS.Store(atUS)
		c.inProgress.Store(true)
		return
	}

	// Falling edge without a rising one: the cycle is lost and the
	// processor's timeout reports it.
	if !c.inProgress.Swap(false) {
		c.spurious.Add(1)
		return
	}

	c.raw.offer(RawEdgeEvent{StartUS: c.startUS.Load(), EndUS: atUS})
}
