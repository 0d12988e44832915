package vex

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntime_SpawnJoin(t *testing.T) {
	rt := NewRuntime()
	id := rt.Spawn(func(workerID uuid.UUID) Value {
		return MakeInt(21 * 2)
	})
	result, err := rt.Join(id)
	require.NoError(t, err)
	assert.Equal(t, int64(42), AsInt(result))
}

func TestRuntime_DoubleJoinReturnsCachedResult(t *testing.T) {
	rt := NewRuntime()
	id := rt.Spawn(func(uuid.UUID) Value { return MakeInt(1) })
	first, err := rt.Join(id)
	require.NoError(t, err)
	second, err := rt.Join(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRuntime_JoinUnknownID(t *testing.T) {
	rt := NewRuntime()
	_, err := rt.Join(uuid.New())
	assert.Error(t, err)
}

func TestRuntime_JoinAll(t *testing.T) {
	rt := NewRuntime()
	ids := make([]uuid.UUID, 5)
	for i := range ids {
		n := int64(i)
		ids[i] = rt.Spawn(func(uuid.UUID) Value { return MakeInt(n) })
	}
	results, err := rt.JoinAll(ids)
	require.NoError(t, err)
	for i, r := range results {
		assert.Equal(t, int64(i), AsInt(r))
	}
}

func TestChannel_SendRecv(t *testing.T) {
	ch := NewChannel(1)
	require.NoError(t, ch.Send(MakeInt(5)))
	v, ok := ch.Recv()
	assert.True(t, ok)
	assert.Equal(t, int64(5), AsInt(v))
}

func TestChannel_ClosesWhenAllSendersDrop(t *testing.T) {
	ch := NewChannel(1)
	ch.DropSender()
	_, ok := ch.Recv()
	assert.False(t, ok)
}

func TestChannel_SendAfterSendersGoneErrors(t *testing.T) {
	ch := NewChannel(1)
	ch.DropSender()
	assert.Error(t, ch.Send(MakeInt(1)))
}

func TestChannel_TryRecvOnEmptyChannel(t *testing.T) {
	ch := NewChannel(1)
	_, ok := ch.TryRecv()
	assert.False(t, ok)
}

func TestChannel_TryRecvReturnsBufferedValue(t *testing.T) {
	ch := NewChannel(1)
	require.NoError(t, ch.Send(MakeInt(9)))
	v, ok := ch.TryRecv()
	assert.True(t, ok)
	assert.Equal(t, int64(9), AsInt(v))
}

func TestChannel_RecvTimeoutExpiresOnEmptyChannel(t *testing.T) {
	ch := NewChannel(1)
	_, ok := ch.RecvTimeout(5 * time.Millisecond)
	assert.False(t, ok)
}

func TestChannel_RecvTimeoutReturnsValueBeforeDeadline(t *testing.T) {
	ch := NewChannel(1)
	require.NoError(t, ch.Send(MakeInt(7)))
	v, ok := ch.RecvTimeout(time.Second)
	assert.True(t, ok)
	assert.Equal(t, int64(7), AsInt(v))
}

func TestChannel_ReceiverCount(t *testing.T) {
	ch := NewChannel(1)
	ch.AddReceiver()
	assert.Equal(t, 2, ch.ReceiversRemaining())
	ch.DropReceiver()
	assert.Equal(t, 1, ch.ReceiversRemaining())
}

func TestMutex_LockUnlockGuardsPayload(t *testing.T) {
	m := NewMutex(10)
	g := m.Lock()
	assert.Equal(t, int64(10), g.Value())
	g.Set(20)
	g.Unlock()

	g2 := m.Lock()
	defer g2.Unlock()
	assert.Equal(t, int64(20), g2.Value())
}

func TestMutex_LockScoped(t *testing.T) {
	m := NewMutex(1)
	m.LockScoped(func(payload int64) int64 { return payload + 1 })
	g := m.Lock()
	defer g.Unlock()
	assert.Equal(t, int64(2), g.Value())
}

func TestAtomicInt64_AddAndCAS(t *testing.T) {
	a := NewAtomicInt64(0)
	assert.Equal(t, int64(5), a.Add(5))
	assert.True(t, a.CompareAndSwap(5, 10))
	assert.False(t, a.CompareAndSwap(5, 99))
	assert.Equal(t, int64(10), a.Load())
}

func TestSleep_ReturnsAfterDuration(t *testing.T) {
	start := time.Now()
	Sleep(5 * time.Millisecond)
	assert.True(t, time.Since(start) >= 5*time.Millisecond)
}
