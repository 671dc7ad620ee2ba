package binding

import "sync"

// EventKind distinguishes binding change notifications.
type EventKind int

const (
	// BindingUpdated is raised after a binding file was written.
	BindingUpdated EventKind = iota + 1
	// BindingDeleted is raised after a workspace's binding directory was removed.
	BindingDeleted
)

func (k EventKind) String() string {
	switch k {
	case BindingUpdated:
		return "updated"
	case BindingDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Event describes a change to a workspace binding.
type Event struct {
	Kind            EventKind
	LocalBindingKey string
}

// Handler receives events synchronously on the goroutine that caused them and must not block.
type Handler func(Event)

type subscribers struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]Handler
}

func (s *subscribers) add(h Handler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handlers == nil {
		s.handlers = map[int]Handler{}
	}
	id := s.nextID
	s.nextID++
	s.handlers[id] = h

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.handlers, id)
	}
}

func (s *subscribers) publish(ev Event) {
	s.mu.RLock()
	handlers := make([]Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
