package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/postline-app/PublishDispatcher/internal/dispatcher"
	"github.com/postline-app/PublishDispatcher/internal/model"
)

type fakeAcknowledger struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *fakeAcknowledger) Ack(uint64, bool) error { a.acked++; return nil }

func (a *fakeAcknowledger) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *fakeAcknowledger) Reject(_ uint64, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

type scriptedHandler struct {
	decision dispatcher.Decision
	err      error
	calls    int
}

func (h *scriptedHandler) HandleJob(context.Context, *model.PublishJob) (dispatcher.Decision, error) {
	h.calls++
	return h.decision, h.err
}

type recordingPublisher struct {
	published []*model.PublishJob
	delays    []time.Duration
	err       error
}

func (p *recordingPublisher) PublishJob(_ context.Context, job *model.PublishJob) error {
	p.published = append(p.published, job)
	return p.err
}

func (p *recordingPublisher) PublishRetry(_ context.Context, job *model.PublishJob, delay time.Duration) error {
	p.published = append(p.published, job)
	p.delays = append(p.delays, delay)
	return p.err
}

func delivery(t *testing.T, ack *fakeAcknowledger) amqp091.Delivery {
	t.Helper()
	body, err := json.Marshal(&model.PublishJob{
		JobID:          "job-1",
		TenantID:       "t1",
		Channels:       []model.Channel{model.ChannelVK},
		Template:       "announce",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	return amqp091.Delivery{Acknowledger: ack, Body: body}
}

func TestSettledJobIsAcked(t *testing.T) {
	c := &Consumer{}
	ack := &fakeAcknowledger{}
	pub := &recordingPublisher{}

	c.handleDelivery(context.Background(), delivery(t, ack), &scriptedHandler{decision: dispatcher.Decision{Ack: true}}, pub)

	require.Equal(t, 1, ack.acked)
	require.Zero(t, ack.nacked)
	require.Empty(t, pub.published)
}

func TestPendingJobIsParkedThenAcked(t *testing.T) {
	c := &Consumer{}
	ack := &fakeAcknowledger{}
	pub := &recordingPublisher{}
	h := &scriptedHandler{decision: dispatcher.Decision{Ack: false, RetryDelay: 400 * time.Millisecond}}

	c.handleDelivery(context.Background(), delivery(t, ack), h, pub)

	require.Len(t, pub.published, 1)
	require.Equal(t, []time.Duration{400 * time.Millisecond}, pub.delays)
	require.Equal(t, 1, ack.acked, "original delivery must be acked once the retry is parked")
	require.Zero(t, ack.nacked)
}

func TestHandlerErrorParksWithFixedDelay(t *testing.T) {
	c := &Consumer{}
	ack := &fakeAcknowledger{}
	pub := &recordingPublisher{}
	h := &scriptedHandler{err: errors.New("ledger check: connection refused")}

	c.handleDelivery(context.Background(), delivery(t, ack), h, pub)

	require.Len(t, pub.published, 1, "infrastructure errors must go through the wait queue")
	require.Equal(t, []time.Duration{infraRetryDelay}, pub.delays)
	require.Equal(t, 1, ack.acked)
	require.Zero(t, ack.nacked, "no immediate requeue while a dependency is down")
}

func TestHandlerErrorFallsBackToRequeueWhenParkFails(t *testing.T) {
	c := &Consumer{}
	ack := &fakeAcknowledger{}
	pub := &recordingPublisher{err: errors.New("channel closed")}
	h := &scriptedHandler{err: errors.New("ledger check: connection refused")}

	c.handleDelivery(context.Background(), delivery(t, ack), h, pub)

	require.Zero(t, ack.acked)
	require.Equal(t, 1, ack.nacked)
	require.True(t, ack.requeue, "the job must stay on the queue when it cannot be parked")
}

func TestMalformedBodyIsDropped(t *testing.T) {
	c := &Consumer{}
	ack := &fakeAcknowledger{}
	pub := &recordingPublisher{}
	h := &scriptedHandler{}

	c.handleDelivery(context.Background(), amqp091.Delivery{Acknowledger: ack, Body: []byte("{not-json")}, h, pub)

	require.Zero(t, h.calls)
	require.Equal(t, 1, ack.nacked)
	require.False(t, ack.requeue, "poison messages must not cycle forever")
	require.Empty(t, pub.published)
}
