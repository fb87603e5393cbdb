package cloudservice

import (
	"sync"
)

// EventType describes a change to a registered backend service.
type EventType int

const (
	// ServiceAdded means a service appeared under a pid that had none.
	ServiceAdded EventType = iota
	// ServiceModified means the service under a pid was replaced.
	ServiceModified
	// ServiceRemoved means the service under a pid went away.
	ServiceRemoved
)

func (t EventType) String() string {
	switch t {
	case ServiceAdded:
		return "added"
	case ServiceModified:
		return "modified"
	case ServiceRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is delivered to watchers when the service registered under a watched
// pid changes. Service is nil for ServiceRemoved events.
type Event struct {
	Type    EventType
	Pid     string
	Service Service
}

// Registry holds the named backend Service instances available to the
// process and notifies watchers when a named instance is added, replaced or
// removed. It is the discovery seam between whoever manages backend
// connections and the components that consume them.
type Registry struct {
	mu       sync.Mutex
	services map[string]Service
	watchers map[string][]chan Event
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]Service),
		watchers: make(map[string][]chan Event),
	}
}

// Register installs svc under pid, replacing any previous instance. Watchers
// of pid receive ServiceAdded or ServiceModified accordingly.
func (r *Registry) Register(pid string, svc Service) {
	r.mu.Lock()
	_, replaced := r.services[pid]
	r.services[pid] = svc
	targets := append([]chan Event(nil), r.watchers[pid]...)
	r.mu.Unlock()

	eventType := ServiceAdded
	if replaced {
		eventType = ServiceModified
	}
	notify(targets, Event{Type: eventType, Pid: pid, Service: svc})
}

// Unregister removes the service under pid, if any. Watchers receive
// ServiceRemoved.
func (r *Registry) Unregister(pid string) {
	r.mu.Lock()
	_, present := r.services[pid]
	delete(r.services, pid)
	targets := append([]chan Event(nil), r.watchers[pid]...)
	r.mu.Unlock()

	if !present {
		return
	}
	notify(targets, Event{Type: ServiceRemoved, Pid: pid})
}

// notify delivers an event to each watcher without blocking. A watcher that
// has stopped draining, for instance one cancelled concurrently with this
// send, must not wedge the registry; the channel buffer gives live watchers
// ample slack.
func notify(targets []chan Event, event Event) {
	for _, ch := range targets {
		select {
		case ch <- event:
		default:
		}
	}
}

// Lookup returns the service currently registered under pid.
func (r *Registry) Lookup(pid string) (Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[pid]
	return svc, ok
}

// Watch subscribes to changes of the service registered under pid. If a
// service is already present a ServiceAdded event is queued immediately, so
// a watcher opened after registration still observes the current instance.
// The returned cancel function unsubscribes. Delivery is best-effort: a
// watcher that falls more than the channel buffer behind loses events.
func (r *Registry) Watch(pid string) (<-chan Event, func()) {
	ch := make(chan Event, 16)

	r.mu.Lock()
	if svc, ok := r.services[pid]; ok {
		ch <- Event{Type: ServiceAdded, Pid: pid, Service: svc}
	}
	r.watchers[pid] = append(r.watchers[pid], ch)
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		watchers := r.watchers[pid]
		for i, c := range watchers {
			if c == ch {
				r.watchers[pid] = append(watchers[:i], watchers[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}
