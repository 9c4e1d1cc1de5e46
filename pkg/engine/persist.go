package engine

import "sync"

const writeQueueSize = 32

// write is storage I/O handed off the cycle goroutine
type write struct {
	name string
	run  func() error
}

// writer runs storage writes in order on its own goroutine
type writer struct {
	queue chan write
	done  chan struct{}
	once  sync.Once
}

func (m *Meter) startWriter() {
	m.writes = &writer{
		queue: make(chan write, writeQueueSize),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(m.writes.done)
		for w := range m.writes.queue {
			if err := w.run(); err != nil {
				m.log.Errorf("%s failed: %v", w.name, err)
			}
		}
	}()
}

// persist queues a write without blocking the cycle
func (m *Meter) persist(name string, run func() error) {
	select {
	case m.writes.queue <- write{name: name, run: run}:
	default:
		m.log.Warnf("write queue full, dropping %s", name)
	}
}

// Flush waits until every queued write has finished
func (m *Meter) Flush() {
	done := make(chan struct{})
	m.writes.queue <- write{name: "flush", run: func() error {
		close(done)
		return nil
	}}
	<-done
}

// Close finishes the queued writes and stops the writer. The meter must
// not cycle afterwards.
func (m *Meter) Close() error {
	m.writes.once.Do(func() {
		close(m.writes.queue)
	})
	<-m.writes.done
	return nil
}
