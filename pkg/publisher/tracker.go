package publisher

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-cloud-publisher/pkg/cloudservice"
)

// serviceTracker watches the backend registry for the cloud service
// registered under one pid and reports bind/unbind transitions. It owns no
// client state itself; the Service reacts to the callbacks.
type serviceTracker struct {
	pid      string
	onBound  func(svc cloudservice.Service)
	onUnbind func()
	logger   zerolog.Logger

	cancelWatch func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
	closeOnce   sync.Once
}

// newServiceTracker subscribes to the registry for pid and starts delivering
// transitions. If a service is already registered, onBound fires promptly.
// Callbacks run on the tracker's goroutine, never concurrently with each
// other.
func newServiceTracker(
	registry *cloudservice.Registry,
	pid string,
	onBound func(svc cloudservice.Service),
	onUnbind func(),
	logger zerolog.Logger,
) *serviceTracker {
	events, cancel := registry.Watch(pid)

	t := &serviceTracker{
		pid:         pid,
		onBound:     onBound,
		onUnbind:    onUnbind,
		logger:      logger.With().Str("component", "serviceTracker").Str("pid", pid).Logger(),
		cancelWatch: cancel,
		stopCh:      make(chan struct{}),
	}

	t.wg.Add(1)
	go t.run(events)
	return t
}

func (t *serviceTracker) run(events <-chan cloudservice.Event) {
	defer t.wg.Done()
	for {
		select {
		case event := <-events:
			t.logger.Info().Stringer("event", event.Type).Msg("Cloud service availability changed")
			switch event.Type {
			case cloudservice.ServiceAdded, cloudservice.ServiceModified:
				t.onBound(event.Service)
			case cloudservice.ServiceRemoved:
				t.onUnbind()
			}
		case <-t.stopCh:
			return
		}
	}
}

// close stops watching the registry and waits for the delivery goroutine to
// finish. Safe to call more than once.
func (t *serviceTracker) close() {
	t.closeOnce.Do(func() {
		t.cancelWatch()
		close(t.stopCh)
		t.wg.Wait()
	})
}
