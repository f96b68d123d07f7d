package concurrent

import (
	"errors"
	"time"
)

// ErrScheduleTimeout returned by GoPool to indicate that there are no free
// goroutines during some period of time.
var ErrScheduleTimeout = errors.New("schedule error: timed out")

// GoPool. bounded goroutine pool for the websocket accept/read path, so a
// burst of connections cannot spawn unbounded goroutines.
// ref: https://sergey.kamardin.org/articles/million-websocket-and-go/
type GoPool struct {
	sem  chan struct{}
	work chan func()
}

func NewGoPool(size, queue int) *GoPool {
	return &GoPool{
		sem:  make(chan struct{}, size),
		work: make(chan func(), queue),
	}
}

// Spawn start n workers up front.
func (p *GoPool) Spawn(n int) {
	for i := 0; i < n; i++ {
		p.sem <- struct{}{}
		go p.worker(func() {})
	}
}

// Schedule run task on a pool goroutine, blocking until one is available.
func (p *GoPool) Schedule(task func()) {
	p.schedule(task, nil)
}

// ScheduleTimeout like Schedule but gives up after timeout with
// ErrScheduleTimeout.
func (p *GoPool) ScheduleTimeout(timeout time.Duration, task func()) error {
	return p.schedule(task, time.After(timeout))
}

func (p *GoPool) schedule(task func(), timeout <-chan time.Time) error {
	select {
	case <-timeout:
		return ErrScheduleTimeout
	case p.work <- task:
		return nil
	case p.sem <- struct{}{}:
		go p.worker(task)
		return nil
	}
}

func (p *GoPool) worker(task func()) {
	defer func() { <-p.sem }()

	task()
	for task := range p.work {
		task()
	}
}

// Close stop accepting work. workers drain the queue and exit.
func (p *GoPool) Close() {
	close(p.work)
}
