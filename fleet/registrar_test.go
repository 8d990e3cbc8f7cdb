package fleet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visionlink/store"
)

type fakeRegistrarStore struct {
	result *store.ConnectionResult
	err    error

	keyValue     string
	nodeID       any
	nodeName     any
	addr         any
	creationDate any
}

func (f *fakeRegistrarStore) CreateConnection(ctx context.Context, keyValue string, nodeID, nodeName, addr, creationDate any) (*store.ConnectionResult, error) {
	f.keyValue, f.nodeID, f.nodeName, f.addr, f.creationDate = keyValue, nodeID, nodeName, addr, creationDate
	return f.result, f.err
}

type fakeRegistrarEmitter struct {
	connectedNodeID int64
	connectedAddr   string
	outcome         string
	rejectedReason  string
	rejections      int
}

func (f *fakeRegistrarEmitter) EmitNodeConnected(nodeID int64, addr, outcome string, durationSecs int) {
	f.connectedNodeID, f.connectedAddr, f.outcome = nodeID, addr, outcome
}

func (f *fakeRegistrarEmitter) EmitNodeRejected(reason string, durationSecs int) {
	f.rejectedReason = reason
	f.rejections++
}

func TestConnectNewNode(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: store.HandshakeNew, NodeID: 7}}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	res, err := r.Connect(context.Background(), ConnectRequest{
		KeyValue:   "key-1",
		NodeName:   "dock-west",
		RemoteAddr: "[::ffff:10.0.0.5]:51234",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.NodeID)
	assert.Equal(t, store.HandshakeNew, res.Outcome)

	// No node id claimed, so the caller self-identifies by address.
	assert.Nil(t, st.nodeID)
	assert.Equal(t, "10.0.0.5", st.addr)
	assert.Equal(t, "dock-west", st.nodeName)

	assert.Equal(t, int64(7), em.connectedNodeID)
	assert.Equal(t, "10.0.0.5", em.connectedAddr)
	assert.Equal(t, store.HandshakeNew, em.outcome)
}

func TestConnectExistingNodePassesIDNotAddr(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: store.HandshakeExisting, NodeID: 7}}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	id := int64(7)
	res, err := r.Connect(context.Background(), ConnectRequest{
		KeyValue:   "key-1",
		NodeID:     &id,
		RemoteAddr: "10.0.0.5:51234",
	})
	require.NoError(t, err)
	assert.Equal(t, store.HandshakeExisting, res.Outcome)

	assert.Equal(t, int64(7), st.nodeID)
	assert.Nil(t, st.addr)
}

func TestConnectKeyAssignedElsewhere(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: store.HandshakeDifferent}}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	_, err := r.Connect(context.Background(), ConnectRequest{KeyValue: "key-1", RemoteAddr: "10.0.0.5:1"})
	assert.ErrorIs(t, err, ErrKeyAssigned)
	assert.Equal(t, "Key already assigned", em.rejectedReason)
	assert.Equal(t, 1, em.rejections)
}

func TestConnectKeyMissing(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: store.HandshakeMissing}}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	_, err := r.Connect(context.Background(), ConnectRequest{KeyValue: "bogus", RemoteAddr: "10.0.0.5:1"})
	assert.ErrorIs(t, err, ErrKeyInvalid)
	assert.Equal(t, "Key invalid", em.rejectedReason)
}

func TestConnectStoreError(t *testing.T) {
	boom := errors.New("routine execution failed")
	st := &fakeRegistrarStore{err: boom}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	_, err := r.Connect(context.Background(), ConnectRequest{KeyValue: "key-1", RemoteAddr: "10.0.0.5:1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "Error", em.rejectedReason)
}

func TestConnectUnknownOutcome(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: "sideways"}}
	em := &fakeRegistrarEmitter{}
	r := NewRegistrar(st, em)

	_, err := r.Connect(context.Background(), ConnectRequest{KeyValue: "key-1", RemoteAddr: "10.0.0.5:1"})
	require.Error(t, err)
	assert.Equal(t, "Error", em.rejectedReason)
}

func TestConnectDropsMalformedCreationDate(t *testing.T) {
	st := &fakeRegistrarStore{result: &store.ConnectionResult{Map: store.HandshakeNew, NodeID: 7}}
	r := NewRegistrar(st, &fakeRegistrarEmitter{})

	_, err := r.Connect(context.Background(), ConnectRequest{
		KeyValue:     "key-1",
		CreationDate: "yesterday-ish",
		RemoteAddr:   "10.0.0.5:1",
	})
	require.NoError(t, err)
	assert.Nil(t, st.creationDate)
}
