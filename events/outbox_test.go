package events

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestOutbox(t *testing.T) *Outbox {
	t.Helper()
	o, err := OpenOutbox(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestEnvelopeCarriesIdentityAndPayload(t *testing.T) {
	env, err := NewEnvelope("node_connected", map[string]int64{"node_id": 7})
	require.NoError(t, err)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "node_connected", env.Kind)
	assert.JSONEq(t, `{"node_id":7}`, string(env.Payload))

	other, err := NewEnvelope("node_connected", map[string]int64{"node_id": 7})
	require.NoError(t, err)
	assert.NotEqual(t, env.ID, other.ID)
}

func TestOutboxEnqueueAndDrainOrder(t *testing.T) {
	o := openTestOutbox(t)

	for _, kind := range []string{"first", "second", "third"} {
		env, err := NewEnvelope(kind, map[string]string{"kind": kind})
		require.NoError(t, err)
		require.NoError(t, o.Enqueue("visionlink.events", env))
	}

	n, err := o.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	pending, err := o.pending(10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "visionlink.events", pending[0].topic)

	require.NoError(t, o.remove(pending[0].id))
	n, err = o.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

type recordingPublisher struct {
	topics   []string
	payloads [][]byte
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return nil
}

func (p *recordingPublisher) Connected() bool { return true }
func (p *recordingPublisher) Close() error    { return nil }

func TestDrainerMovesStagedEvents(t *testing.T) {
	o := openTestOutbox(t)
	env, err := NewEnvelope("node_connected", map[string]int64{"node_id": 7})
	require.NoError(t, err)
	require.NoError(t, o.Enqueue("visionlink.events", env))

	pub := &recordingPublisher{}
	d := NewDrainer(o, pub, time.Hour)
	d.drain()

	require.Len(t, pub.topics, 1)
	assert.Equal(t, "visionlink.events", pub.topics[0])

	n, err := o.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDrainerKeepsEventsOnPublishFailure(t *testing.T) {
	o := openTestOutbox(t)
	env, err := NewEnvelope("node_connected", map[string]int64{"node_id": 7})
	require.NoError(t, err)
	require.NoError(t, o.Enqueue("visionlink.events", env))

	pub := &recordingPublisher{err: errors.New("broker down")}
	d := NewDrainer(o, pub, time.Hour)
	d.drain()

	// The event stays staged for the next pass.
	n, err := o.PendingCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
