package screencap

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
)

// frameSink buffers frames between the capture engine and the consumer:
// FIFO order, bounded memory, and a deterministic overflow policy. The
// producer is never blocked; a slow consumer only ever costs dropped
// frames.
//
// All buffer and termination bookkeeping happens under one mutex held for
// O(1) work. The mutex is never held while a frame is handed to the
// consumer.
type frameSink struct {
	mu     sync.Mutex
	buf    []*Frame
	depth  int
	policy DropPolicy
	done   bool
	err    error // terminal error; nil means clean end

	seq atomic.Uint64

	wake   chan struct{} // pulsed on push
	closed chan struct{} // closed on finish
}

func newFrameSink(depth int, policy DropPolicy) *frameSink {
	if depth < MinQueueDepth {
		depth = MinQueueDepth
	}
	if depth > MaxQueueDepth {
		depth = MaxQueueDepth
	}
	return &frameSink{
		buf:    make([]*Frame, 0, depth),
		depth:  depth,
		policy: policy,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// nextSeq returns the next production sequence number. Sequence numbers
// are assigned before buffering, so a frame that is later dropped still
// consumes one; the consumer detects drops as gaps.
func (s *frameSink) nextSeq() uint64 { return s.seq.Add(1) - 1 }

// push enqueues a frame, applying the drop policy at capacity. After
// finish it is a no-op.
func (s *frameSink) push(f *Frame) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	if len(s.buf) == s.depth {
		switch s.policy {
		case DropNewest:
			s.mu.Unlock()
			return
		default: // DropOldest
			copy(s.buf, s.buf[1:])
			s.buf[len(s.buf)-1] = f
		}
	} else {
		s.buf = append(s.buf, f)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// finish terminates the sink. Buffered frames are cleared; the consumer
// observes the terminal state exactly once. Subsequent calls are no-ops.
func (s *frameSink) finish(err error) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	s.err = err
	s.buf = nil
	s.mu.Unlock()

	close(s.closed)
}

// next returns the oldest buffered frame, suspending until one is
// available or the sink terminates. A clean end returns io.EOF; a failed
// sink returns its terminal error. Cancelling ctx abandons only this read;
// it does not touch producer state.
func (s *frameSink) next(ctx context.Context) (*Frame, error) {
	for {
		s.mu.Lock()
		if len(s.buf) > 0 {
			f := s.buf[0]
			s.buf[0] = nil
			s.buf = s.buf[1:]
			if len(s.buf) == 0 {
				s.buf = make([]*Frame, 0, s.depth)
			}
			s.mu.Unlock()
			return f, nil
		}
		if s.done {
			err := s.err
			s.mu.Unlock()
			if err == nil {
				return nil, io.EOF
			}
			return nil, err
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.wake:
		case <-s.closed:
		}
	}
}

// buffered returns the current number of undelivered frames.
func (s *frameSink) buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}
