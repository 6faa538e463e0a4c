package events

import (
	"context"
	"log"
	"sync"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

const observerQueue = 256

// warningCodes are the notices forwarded as proctor.warning events.
var warningCodes = map[string]bool{
	proctor.CodeTabFirstWarning:  true,
	proctor.CodeTabWarning:       true,
	proctor.CodeTabFinalWarning:  true,
	proctor.CodeFullscreenExited: true,
	proctor.CodeTypingSpeed:      true,
	proctor.CodeMouseBoundary:    true,
}

// Observer turns session callbacks into events. Publishing happens on its
// own goroutine so a slow broker never stalls a session; events are dropped
// when the queue is full.
type Observer struct {
	proctor.NopObserver
	pub   Publisher
	queue chan Event
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func NewObserver(pub Publisher) *Observer {
	o := &Observer{pub: pub, queue: make(chan Event, observerQueue)}
	o.wg.Add(1)
	go o.loop()
	return o
}

func (o *Observer) loop() {
	defer o.wg.Done()
	for e := range o.queue {
		if err := o.pub.Publish(context.Background(), e); err != nil {
			log.Printf("events: %v", err)
		}
	}
}

func (o *Observer) enqueue(e Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		log.Printf("events: observer closed, dropping %s for session %s", e.Type, e.SessionID)
		return
	}
	select {
	case o.queue <- e:
	default:
		log.Printf("events: queue full, dropping %s for session %s", e.Type, e.SessionID)
	}
}

func (o *Observer) Effect(st proctor.State, e proctor.Effect) {
	if (e.Kind != proctor.EffectNotice && e.Kind != proctor.EffectDialog) || !warningCodes[e.Code] {
		return
	}
	o.enqueue(Event{
		Type: EventProctorWarning, SessionID: st.ID, ExamID: st.ExamID, StudentID: st.StudentID, Timestamp: e.At,
		Payload: WarningPayload{Code: e.Code, Title: e.Title, Message: e.Message, Risk: st.Risk, Counters: st.Counters},
	})
}

func (o *Observer) Submitted(sub proctor.Submission, err error) {
	typ := EventExamSubmitted
	if sub.Outcome.Terminated {
		typ = EventExamTerminated
	}
	p := SubmittedPayload{Outcome: sub.Outcome, Counters: sub.Counters, TimeSpent: sub.TimeSpent()}
	if err != nil {
		p.Error = err.Error()
	}
	o.enqueue(Event{
		Type: typ, SessionID: sub.SessionID, ExamID: sub.ExamID, StudentID: sub.StudentID,
		Timestamp: sub.SubmittedAt, Payload: p,
	})
}

// Close drains queued events. Callbacks arriving afterwards are dropped.
func (o *Observer) Close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	o.wg.Wait()
}
