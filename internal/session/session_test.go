package session

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/scribear/scribear/internal/manager"
)

type fakeConn struct {
	inbound [][2]any // [messageType, data]
	idx     int

	written [][]byte
	closed  bool
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	if c.idx >= len(c.inbound) {
		return 0, nil, errors.New("fakeConn: no more messages")
	}
	m := c.inbound[c.idx]
	c.idx++
	return m[0].(int), m[1].([]byte), nil
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.written = append(c.written, data)
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, deadline time.Time) error {
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func textMsg(v any) [2]any {
	data, _ := json.Marshal(v)
	return [2]any{websocket.TextMessage, data}
}

type fakeProviders struct {
	validKey string
}

func (p *fakeProviders) Authenticate(apiKey string) bool { return apiKey == p.validKey }

func (p *fakeProviders) RegisterJob(providerKey string, config json.RawMessage) (*manager.JobHandle, error) {
	return nil, nil
}

func TestSessionRejectsBadAPIKey(t *testing.T) {
	conn := &fakeConn{inbound: [][2]any{textMsg(AuthMessage{Type: "auth", APIKey: "wrong"})}}
	s := New(conn, &fakeProviders{validKey: "right"}, time.Second)

	err := s.Run()
	require.Error(t, err)
	require.True(t, conn.closed)
}

func TestSessionAuthTimeout(t *testing.T) {
	conn := &fakeConn{} // no inbound messages -> ReadMessage errors immediately
	s := New(conn, &fakeProviders{validKey: "right"}, 10*time.Millisecond)

	err := s.Run()
	require.Error(t, err)
}

func TestSessionRejectsMalformedAuthJSON(t *testing.T) {
	conn := &fakeConn{inbound: [][2]any{{websocket.TextMessage, []byte("not json")}}}
	s := New(conn, &fakeProviders{validKey: "right"}, time.Second)

	err := s.Run()
	require.Error(t, err)
	require.True(t, conn.closed)
}
