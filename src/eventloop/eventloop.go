package eventloop

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"screen-qr-scan/src/logutil"
	"screen-qr-scan/src/messages"
	"screen-qr-scan/src/region"
	"screen-qr-scan/src/screenshot"
	"screen-qr-scan/src/worker"
)

const pointerQueueSize = 64

// Capturer is the request side of the capture worker.
type Capturer interface {
	Submit(req worker.Request) bool
	Results() <-chan worker.Result
}

// Decoder turns one pixel buffer into a terminal outcome.
type Decoder interface {
	Decode(buf *screenshot.PixelBuffer) messages.Outcome
}

// Target receives decoded payloads. Errors are logged, never escalated.
type Target interface {
	OnPayload(payload string) error
}

type Options struct {
	Capturer Capturer
	Decoder  Decoder
	Target   Target
	// Continuous keeps the loop armed after each outcome.
	Continuous bool
	// Armed starts the loop armed.
	Armed bool
}

// View is what the presentation layer draws: arm state plus tracker snapshot.
type View struct {
	Armed bool
	region.Snapshot
}

// Loop is the single-threaded coordinator between the pointer lane, the
// capture worker and the decoder. It publishes exactly one outcome per
// completed gesture.
type Loop struct {
	tracker    *region.Tracker
	capturer   Capturer
	decoder    Decoder
	target     Target
	continuous bool

	events   chan messages.PointerEvent
	armCh    chan armOp
	outcomes chan messages.Outcome
	done     chan struct{}

	// armed is owned by the loop goroutine; readers go through view.
	armed   bool
	view    atomic.Pointer[View]
	nextID  uint64
	pending uint64

	watchMu  sync.Mutex
	watchers map[int]chan messages.Outcome
	watchSeq int
}

type armOp int

const (
	opArm armOp = iota
	opDisarm
	opToggle
)

// New creates a loop. Capturer and Decoder are required.
func New(opts Options) *Loop {
	l := &Loop{
		tracker:    region.NewTracker(),
		capturer:   opts.Capturer,
		decoder:    opts.Decoder,
		target:     opts.Target,
		continuous: opts.Continuous,
		events:     make(chan messages.PointerEvent, pointerQueueSize),
		armCh:      make(chan armOp, 4),
		outcomes:   make(chan messages.Outcome, 1),
		done:       make(chan struct{}),
		watchers:   make(map[int]chan messages.Outcome),
	}
	l.armed = opts.Armed
	l.publishView()
	return l
}

// Post forwards a pointer event from the input lane. Moves are dropped when
// the queue is full; presses and releases wait until the loop takes them.
func (l *Loop) Post(ev messages.PointerEvent) {
	if _, isMove := ev.(messages.PointerMove); isMove {
		select {
		case l.events <- ev:
		default:
		}
		return
	}
	select {
	case l.events <- ev:
	case <-l.done:
	}
}

// Arm makes the next drag gesture trigger a scan.
func (l *Loop) Arm() { l.control(opArm) }

// Disarm stops reacting to drags and abandons a selection in progress.
func (l *Loop) Disarm() { l.control(opDisarm) }

// Toggle flips the arm state; used by the hotkey.
func (l *Loop) Toggle() { l.control(opToggle) }

func (l *Loop) control(op armOp) {
	select {
	case l.armCh <- op:
	default:
		log.Printf("eventloop: arm request dropped, control queue full")
	}
}

// Snapshot is safe to call from any goroutine. Arm state and tracker state
// come from the same swap.
func (l *Loop) Snapshot() View {
	return *l.view.Load()
}

func (l *Loop) publishView() {
	v := View{Armed: l.armed, Snapshot: l.tracker.Snapshot()}
	l.view.Store(&v)
}

// Outcomes holds at most the latest undelivered outcome. Poll it with a
// non-blocking receive.
func (l *Loop) Outcomes() <-chan messages.Outcome { return l.outcomes }

// Watch registers an extra outcome subscriber with the same latest-wins
// semantics as Outcomes. The returned func unregisters it.
func (l *Loop) Watch() (<-chan messages.Outcome, func()) {
	ch := make(chan messages.Outcome, 1)
	l.watchMu.Lock()
	l.watchSeq++
	id := l.watchSeq
	l.watchers[id] = ch
	l.watchMu.Unlock()
	return ch, func() {
		l.watchMu.Lock()
		delete(l.watchers, id)
		l.watchMu.Unlock()
	}
}

// Run processes events until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	results := l.capturer.Results()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-l.events:
			l.handlePointer(ev)
		case op := <-l.armCh:
			l.handleArm(op)
		case res := <-results:
			l.handleResult(res)
		}
		l.publishView()
	}
}

func (l *Loop) handleArm(op armOp) {
	armed := l.armed
	switch op {
	case opArm:
		armed = true
	case opDisarm:
		armed = false
	case opToggle:
		armed = !armed
	}
	l.armed = armed
	if !armed && l.tracker.Snapshot().State == region.Selecting {
		l.tracker.Reset()
	}
	log.Printf("eventloop: armed=%v", armed)
}

func (l *Loop) handlePointer(ev messages.PointerEvent) {
	// Moves always feed the anchor so a press starts at the real position.
	if _, isMove := ev.(messages.PointerMove); !isMove && !l.armed {
		return
	}
	rect, ok := l.tracker.Handle(ev)
	if !ok {
		return
	}
	l.dispatch(rect)
}

func (l *Loop) dispatch(rect screenshot.Region) {
	l.nextID++
	id := l.nextID
	l.pending = id
	log.Printf("eventloop: gesture complete, request #%d region %+v", id, rect)

	if !l.capturer.Submit(worker.Request{ID: id, Region: rect}) {
		l.pending = 0
		l.publish(messages.CaptureFailed{Reason: "capture worker busy"})
	}
}

func (l *Loop) handleResult(res worker.Result) {
	if l.pending == 0 || res.ID != l.pending {
		log.Printf("eventloop: discarding stale capture result #%d (pending #%d)", res.ID, l.pending)
		res.Buffer.Release()
		return
	}
	l.pending = 0

	if res.Err != nil {
		log.Printf("eventloop: capture #%d failed: %v", res.ID, res.Err)
		l.publish(messages.CaptureFailed{Reason: res.Err.Error()})
		return
	}

	outcome := l.decoder.Decode(res.Buffer)
	res.Buffer.Release()
	l.publish(outcome)
}

// publish delivers the outcome, replaces any undelivered one and re-arms the tracker.
func (l *Loop) publish(o messages.Outcome) {
	log.Printf("eventloop: outcome %s", o.Type())

	if found, ok := o.(messages.PayloadFound); ok && l.target != nil {
		log.Printf("eventloop: payload %q", logutil.Sanitize(found.Payload))
		if err := l.target.OnPayload(found.Payload); err != nil {
			log.Printf("eventloop: delivery error: %v", err)
		}
	}

	offer(l.outcomes, o)
	l.watchMu.Lock()
	for _, ch := range l.watchers {
		offer(ch, o)
	}
	l.watchMu.Unlock()

	l.tracker.Rearm()
	if !l.continuous {
		l.armed = false
	}
}

// offer replaces whatever is waiting in the 1-slot channel. Only the loop
// goroutine sends, so the second send cannot block.
func offer(ch chan messages.Outcome, o messages.Outcome) {
	select {
	case <-ch:
	default:
	}
	ch <- o
}
