package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startManager(t *testing.T, maxConn int) *Manager {
	t.Helper()
	m := NewManager(Config{
		MaxConnPerUser: maxConn,
		WriteWait:      time.Second,
		PongWait:       time.Minute,
		PingPeriod:     50 * time.Second,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go m.Run(ctx)
	return m
}

func connect(t *testing.T, m *Manager, id, userID string) *Client {
	t.Helper()
	before := m.GetUserConnections(userID)
	c := NewClient(id, userID, nil, m)
	require.True(t, m.Join(c))
	require.Eventually(t, func() bool { return m.GetUserConnections(userID) == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func receive(t *testing.T, c *Client) *Message {
	t.Helper()
	select {
	case raw, ok := <-c.Send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(raw, &msg))
		return &msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestManager_SessionRevokedReachesAllUserConnections(t *testing.T) {
	m := startManager(t, 5)
	phone := connect(t, m, "c1", "user-1")
	laptop := connect(t, m, "c2", "user-1")
	other := connect(t, m, "c3", "user-2")

	m.SessionRevoked("user-1", "logout")

	for _, c := range []*Client{phone, laptop} {
		msg := receive(t, c)
		assert.Equal(t, TypeSessionRevoked, msg.Type)

		var payload SessionRevokedPayload
		require.NoError(t, msg.UnmarshalPayload(&payload))
		assert.Equal(t, "logout", payload.Reason)
	}

	assert.Empty(t, other.Send)
}

func TestManager_SessionRevokedWithoutConnections(t *testing.T) {
	m := startManager(t, 5)
	assert.NotPanics(t, func() { m.SessionRevoked("nobody", "superseded") })
}

func TestManager_MaxConnectionsPerUser(t *testing.T) {
	m := startManager(t, 1)
	connect(t, m, "c1", "user-1")

	rejected := NewClient("c2", "user-1", nil, m)
	require.True(t, m.Join(rejected))

	select {
	case _, ok := <-rejected.Send:
		assert.False(t, ok, "rejected client's channel is closed")
	case <-time.After(time.Second):
		t.Fatal("rejected client was not closed")
	}
	assert.Equal(t, 1, m.GetUserConnections("user-1"))
}

func TestManager_Unregister(t *testing.T) {
	m := startManager(t, 5)
	c := connect(t, m, "c1", "user-1")

	m.Leave(c)
	require.Eventually(t, func() bool { return m.GetUserConnections("user-1") == 0 }, time.Second, 5*time.Millisecond)

	_, ok := <-c.Send
	assert.False(t, ok)
}

func TestManager_PingPong(t *testing.T) {
	m := startManager(t, 5)
	c := connect(t, m, "c1", "user-1")

	ping, err := NewMessage(TypePing, nil)
	require.NoError(t, err)
	raw, err := json.Marshal(ping)
	require.NoError(t, err)

	m.HandleMessage <- &ClientMessage{Client: c, Message: raw}

	msg := receive(t, c)
	assert.Equal(t, TypePong, msg.Type)
}

func TestManager_SlowClientIsDropped(t *testing.T) {
	m := startManager(t, 5)
	c := connect(t, m, "c1", "user-1")

	for i := 0; i < cap(c.Send); i++ {
		c.Send <- []byte("{}")
	}

	m.SessionRevoked("user-1", "logout")
	assert.Equal(t, 0, m.GetUserConnections("user-1"))
}

func TestNewMessage(t *testing.T) {
	msg, err := NewMessage(TypeSessionRevoked, &SessionRevokedPayload{Reason: "superseded"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"reason":"superseded"}`, string(msg.Payload))

	empty, err := NewMessage(TypePong, nil)
	require.NoError(t, err)
	assert.Nil(t, empty.Payload)

	var v SessionRevokedPayload
	assert.NoError(t, empty.UnmarshalPayload(&v))
}

func TestManager_JoinAndLeaveReturnAfterShutdown(t *testing.T) {
	m := NewManager(Config{WriteWait: time.Second, PongWait: time.Minute, PingPeriod: 50 * time.Second}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(stopped)
	}()

	c := connect(t, m, "c1", "user-1")
	cancel()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("manager did not stop")
	}

	_, ok := <-c.Send
	assert.False(t, ok, "shutdown closes client channels")

	joined := make(chan bool, 1)
	go func() {
		m.Leave(c)
		assert.False(t, m.deliver(&ClientMessage{Client: c, Message: []byte("{}")}))
		joined <- m.Join(NewClient("c2", "user-1", nil, m))
	}()

	select {
	case ok := <-joined:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("calls into a stopped manager blocked")
	}
}
