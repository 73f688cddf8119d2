package services

import (
	"context"
	"sync"

	"eyemonitor/go-backend/internal/vision"
)

// FrameMailbox is a one-slot, latest-frame-wins handoff between frame
// transports and the analysis loop. Put never blocks; a frame that was not
// taken before the next Put is dropped and counted.
type FrameMailbox struct {
	mu    sync.Mutex
	frame *vision.Frame
	ready chan struct{}
	drops uint64
}

func NewFrameMailbox() *FrameMailbox {
	return &FrameMailbox{ready: make(chan struct{}, 1)}
}

// Put stores f, replacing any unconsumed frame. It reports whether a frame was
// dropped.
func (m *FrameMailbox) Put(f *vision.Frame) bool {
	m.mu.Lock()
	dropped := m.frame != nil
	if dropped {
		m.drops++
	}
	m.frame = f
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Next blocks until a frame is available or ctx is done.
func (m *FrameMailbox) Next(ctx context.Context) (*vision.Frame, error) {
	for {
		if f := m.take(); f != nil {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.ready:
		}
	}
}

func (m *FrameMailbox) take() *vision.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := m.frame
	m.frame = nil
	return f
}

func (m *FrameMailbox) Drops() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drops
}
