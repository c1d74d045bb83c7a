package capture

import (
	"sync"
	"sync/atomic"
)

// meterHub fans level-meter frames out to subscribers. Delivery is
// lossy: a subscriber that falls behind loses frames and never blocks
// the capture path.
type meterHub struct {
	mu    sync.Mutex
	next  int
	subs  map[int]chan MeterFrame
	drops atomic.Int64
}

func newMeterHub() *meterHub {
	return &meterHub{subs: make(map[int]chan MeterFrame)}
}

func (h *meterHub) publish(frame MeterFrame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- frame:
		default:
			h.drops.Add(1)
		}
	}
}

func (h *meterHub) subscribe(buffer int) (<-chan MeterFrame, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan MeterFrame, buffer)
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
