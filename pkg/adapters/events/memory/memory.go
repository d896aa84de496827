package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/aescanero/scriptbook/pkg/ports"
	"go.uber.org/zap"
)

// ErrBusClosed is returned when publishing on a closed bus
var ErrBusClosed = errors.New("event bus closed")

// InMemoryEventBus implements EventBus using in-memory handlers.
// Each subscription receives events in publish order on its own goroutine.
type InMemoryEventBus struct {
	subscribers map[string]map[uint64]*subscription
	nextID      uint64
	closed      bool
	mu          sync.RWMutex
	logger      *zap.Logger
}

type subscription struct {
	handler ports.EventHandler
	ctx     context.Context

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []ports.Event
	stopped bool
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string]map[uint64]*subscription),
		logger:      logger,
	}
}

// Publish queues an event for every subscriber of a topic. It never blocks on
// handlers.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event ports.Event) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*subscription, 0, len(e.subscribers[topic]))
	for _, sub := range e.subscribers[topic] {
		subs = append(subs, sub)
	}
	e.mu.RUnlock()

	for _, sub := range subs {
		sub.push(event)
	}
	return nil
}

// Subscribe subscribes to events on a specific topic until ctx is done
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	sub := &subscription{handler: handler, ctx: ctx}
	sub.cond = sync.NewCond(&sub.mu)

	e.mu.Lock()
	if e.subscribers[topic] == nil {
		e.subscribers[topic] = make(map[uint64]*subscription)
	}
	id := e.nextID
	e.nextID++
	e.subscribers[topic][id] = sub
	e.mu.Unlock()

	go sub.run(topic, e.logger)

	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, id)
	}()

	return nil
}

// Close closes the event bus and stops every subscription
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			sub.stop()
		}
	}
	e.subscribers = make(map[string]map[uint64]*subscription)
	e.closed = true
	return nil
}

func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if sub, ok := e.subscribers[topic][id]; ok {
		sub.stop()
		delete(e.subscribers[topic], id)
	}
}

func (s *subscription) push(event ports.Event) {
	s.mu.Lock()
	if !s.stopped {
		s.queue = append(s.queue, event)
		s.cond.Signal()
	}
	s.mu.Unlock()
}

func (s *subscription) stop() {
	s.mu.Lock()
	s.stopped = true
	s.queue = nil
	s.cond.Signal()
	s.mu.Unlock()
}

func (s *subscription) run(topic string, logger *zap.Logger) {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if s.stopped {
			s.mu.Unlock()
			return
		}
		event := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.handler(s.ctx, event); err != nil {
			logger.Warn("event handler failed",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.Error(err))
		}
	}
}
