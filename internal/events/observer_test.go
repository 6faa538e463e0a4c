package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Close() error { return nil }

func TestObserverForwardsWarningsAndSubmission(t *testing.T) {
	rec := &recorder{}
	o := NewObserver(rec)
	at := time.Unix(1_700_000_000, 0)
	st := proctor.State{ID: "s1", ExamID: "e1", StudentID: "u1", Risk: 15}

	o.Effect(st, proctor.Effect{Kind: proctor.EffectNotice, Code: proctor.CodeTabFirstWarning, At: at})
	o.Effect(st, proctor.Effect{Kind: proctor.EffectNotice, Code: proctor.CodeMediaConnected, At: at})
	o.Effect(st, proctor.Effect{Kind: proctor.EffectNavigate, To: "/dashboard", At: at})
	o.Submitted(proctor.Submission{
		SessionID: "s1", ExamID: "e1", StudentID: "u1", StartedAt: at, SubmittedAt: at.Add(5 * time.Minute),
		Outcome: proctor.Outcome{Forced: true, Terminated: true, Reason: proctor.ReasonTabSwitches},
	}, nil)
	o.Close()

	require.Len(t, rec.events, 2)
	assert.Equal(t, EventProctorWarning, rec.events[0].Type)
	w, ok := rec.events[0].Payload.(WarningPayload)
	require.True(t, ok)
	assert.Equal(t, 15, w.Risk)

	assert.Equal(t, EventExamTerminated, rec.events[1].Type)
	p, ok := rec.events[1].Payload.(SubmittedPayload)
	require.True(t, ok)
	assert.Equal(t, 5, p.TimeSpent)
}

func TestObserverDropsCallbacksAfterClose(t *testing.T) {
	rec := &recorder{}
	o := NewObserver(rec)
	o.Close()

	assert.NotPanics(t, func() {
		o.Effect(proctor.State{ID: "s1"}, proctor.Effect{Kind: proctor.EffectNotice, Code: proctor.CodeTabWarning})
		o.Submitted(proctor.Submission{SessionID: "s1"}, nil)
	})
	o.Close()
	assert.Empty(t, rec.events)
}

func TestDisabledPublisherIsNoop(t *testing.T) {
	p, err := NewAMQPPublisher("", "")
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Publish(context.Background(), Event{Type: EventExamSubmitted}))
	assert.NoError(t, p.Close())
}
