package engine

// registry is the per-Engine observer set described in §4.7/§9: dispatch is
// non-blocking and registration is idempotent. Each observer gets its own
// bounded queue drained by a dedicated goroutine so one slow observer can
// never delay another, and a full queue drops the new dispatch for that
// observer rather than blocking the actor.
type registry struct {
	observers map[Observer]chan ObserverMessage
	done      chan struct{}
}

const observerQueueSize = 256

func newRegistry() *registry {
	return &registry{
		observers: make(map[Observer]chan ObserverMessage),
		done:      make(chan struct{}),
	}
}

// register is idempotent: registering the same observer twice is a no-op.
func (r *registry) register(o Observer) {
	if _, ok := r.observers[o]; ok {
		return
	}
	ch := make(chan ObserverMessage, observerQueueSize)
	r.observers[o] = ch
	go drainObserver(o, ch)
}

func (r *registry) unregister(o Observer) {
	ch, ok := r.observers[o]
	if !ok {
		return
	}
	delete(r.observers, o)
	close(ch)
}

// dispatch fans msg out to every registered observer without blocking the
// caller (the actor). A full observer queue drops the message for that
// observer only.
func (r *registry) dispatch(msg ObserverMessage) {
	for _, ch := range r.observers {
		select {
		case ch <- msg:
		default:
		}
	}
}

func drainObserver(o Observer, ch chan ObserverMessage) {
	for msg := range ch {
		o.Notify(msg)
	}
}
