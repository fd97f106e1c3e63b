package gomoku

import (
	"sync"

	"github.com/rocketscienceinc/gomoku/internal/entity"
)

// Listener observes the game. Calls arrive on a single goroutine in emission order,
// so an implementation may call back into the controller.
type Listener interface {
	OnCellChanged(field entity.BoardField)
	OnTurnChanged(color entity.FieldState)
	OnOutcome(outcome entity.Outcome)
	OnStatus(text string)
	OnBoardReset(size int)
}

type event func(Listener)

// dispatcher delivers events to listeners without ever blocking the emitter.
type dispatcher struct {
	mu        sync.Mutex
	listeners []Listener
	queue     []event
	closed    bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{
		wake: make(chan struct{}, 1),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}

	go d.run()

	return d
}

func (that *dispatcher) subscribe(listener Listener) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.listeners = append(that.listeners, listener)
}

func (that *dispatcher) emit(e event) {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return
	}
	that.queue = append(that.queue, e)
	that.mu.Unlock()

	select {
	case that.wake <- struct{}{}:
	default:
	}
}

func (that *dispatcher) run() {
	defer close(that.done)

	for {
		select {
		case <-that.wake:
			that.drain()
		case <-that.stop:
			that.drain()
			return
		}
	}
}

func (that *dispatcher) drain() {
	for {
		that.mu.Lock()
		batch := that.queue
		that.queue = nil
		listeners := append([]Listener(nil), that.listeners...)
		that.mu.Unlock()

		if len(batch) == 0 {
			return
		}

		for _, e := range batch {
			for _, listener := range listeners {
				e(listener)
			}
		}
	}
}

// close delivers what is already queued and stops the goroutine.
// It must not be called from a listener.
func (that *dispatcher) close() {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		<-that.done
		return
	}
	that.closed = true
	that.mu.Unlock()

	close(that.stop)
	<-that.done
}
