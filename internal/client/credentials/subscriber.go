package credentials

import "sync"

// subscriber delivers notifications to one callback, in order, from its own
// goroutine. push never blocks.
type subscriber struct {
	fn func(userID string)

	mu    sync.Mutex
	queue []string

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newSubscriber(fn func(string)) *subscriber {
	return &subscriber{
		fn:   fn,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (s *subscriber) push(userID string) {
	s.mu.Lock()
	s.queue = append(s.queue, userID)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) stop() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *subscriber) run() {
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}

		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			next := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()

			select {
			case <-s.done:
				return
			default:
			}
			s.fn(next)
		}
	}
}
