package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/scribear/scribear/internal/audio"
	"github.com/scribear/scribear/internal/errs"
	"github.com/scribear/scribear/internal/jobs"
	"github.com/scribear/scribear/internal/manager"
	"github.com/scribear/scribear/internal/pipeline"
)

// State is the connection's position in its AWAITING_AUTH ->
// AWAITING_CONFIG -> ACTIVE -> CLOSED lifecycle.
type State int

const (
	StateAwaitingAuth State = iota
	StateAwaitingConfig
	StateActive
	StateClosed
)

// Conn is the narrow transport contract a Session needs: enough of
// *websocket.Conn to send/receive and to close with a code, grounded on
// the teacher's trackRemote-style minimal wrapper interface.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// Providers resolves an api key to a provider registration and a
// known-good api key check, grounded on the provider-config document's
// providers[] list (internal/config).
type Providers interface {
	Authenticate(apiKey string) bool
	RegisterJob(providerKey string, config json.RawMessage) (*manager.JobHandle, error)
}

// Session drives one connection through its lifecycle. Grounded on the
// teacher's Transcriber errCh/doneCh shutdown shape, generalized from
// "one long-lived call" to "one request/response state machine per
// websocket."
type Session struct {
	conn        Conn
	providers   Providers
	initTimeout time.Duration

	state  State
	handle *manager.JobHandle
}

// New constructs a Session in StateAwaitingAuth.
func New(conn Conn, providers Providers, initTimeout time.Duration) *Session {
	return &Session{conn: conn, providers: providers, initTimeout: initTimeout, state: StateAwaitingAuth}
}

// Run drives the session until it closes, returning the reason it
// closed (nil for a normal client-initiated close).
func (s *Session) Run() error {
	defer s.cleanup()

	if err := s.awaitAuth(); err != nil {
		return err
	}
	if err := s.awaitConfig(); err != nil {
		return err
	}
	return s.runActive()
}

func (s *Session) cleanup() {
	if s.handle != nil {
		s.handle.Deregister()
	}
	s.state = StateClosed
}

func (s *Session) awaitAuth() error {
	s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.initTimeout))

	mt, data, err := s.readWithDeadline(s.initTimeout)
	if err != nil {
		return s.closeWith(websocket.ClosePolicyViolation, "Auth Timeout", err)
	}
	if mt != websocket.TextMessage {
		return s.closeWith(websocket.ClosePolicyViolation, "expected auth message", errs.New(errs.KindProtocol, fmt.Errorf("unexpected message type %d", mt)))
	}

	var auth AuthMessage
	if err := json.Unmarshal(data, &auth); err != nil || auth.Type != "auth" {
		return s.closeWith(websocket.CloseInvalidFramePayloadData, "invalid auth message", errs.New(errs.KindProtocol, fmt.Errorf("malformed auth message")))
	}

	if !s.providers.Authenticate(auth.APIKey) {
		return s.closeWith(websocket.ClosePolicyViolation, "invalid api key", errs.New(errs.KindProtocol, fmt.Errorf("invalid api key")))
	}

	s.state = StateAwaitingConfig
	return nil
}

func (s *Session) awaitConfig() error {
	mt, data, err := s.readWithDeadline(s.initTimeout)
	if err != nil {
		return s.closeWith(websocket.ClosePolicyViolation, "Config Timeout", err)
	}
	if mt != websocket.TextMessage {
		return s.closeWith(websocket.ClosePolicyViolation, "expected config message", errs.New(errs.KindProtocol, fmt.Errorf("unexpected message type %d", mt)))
	}

	var cfg ConfigMessage
	if err := json.Unmarshal(data, &cfg); err != nil || cfg.Type != "config" {
		return s.closeWith(websocket.CloseInvalidFramePayloadData, "invalid config message", errs.New(errs.KindProtocol, fmt.Errorf("malformed config message")))
	}

	providerKey, providerConfig, err := parseProviderSelection(cfg.Config)
	if err != nil {
		return s.closeWith(websocket.CloseInvalidFramePayloadData, "invalid config message", errs.New(errs.KindProtocol, err))
	}

	handle, err := s.providers.RegisterJob(providerKey, providerConfig)
	if err != nil {
		if errs.KindOf(err) == errs.KindDispatcher {
			return s.closeWith(websocket.CloseInternalServerErr, err.Error(), err)
		}
		return s.closeWith(websocket.CloseInvalidFramePayloadData, err.Error(), err)
	}

	s.handle = handle
	s.handle.OnResult("session", s.onJobResult)
	s.state = StateActive
	return nil
}

func (s *Session) runActive() error {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		if mt != websocket.BinaryMessage {
			return s.closeWith(websocket.CloseInvalidFramePayloadData, "expected binary audio", errs.New(errs.KindProtocol, fmt.Errorf("unexpected message type %d in ACTIVE", mt)))
		}

		chunk := audio.Chunk{Data: data, ReceivedAt: time.Now(), ChunkID: uuid.NewString()}
		if err := s.handle.QueueData([]any{chunk}); err != nil {
			return s.closeWith(websocket.CloseInternalServerErr, "failed to queue audio", err)
		}
	}
}

func (s *Session) onJobResult(result jobs.Result) {
	if !result.Ok {
		kind := errs.KindOf(result.Err)
		if kind == errs.KindClientTranscription {
			s.closeWith(websocket.CloseInvalidFramePayloadData, result.Err.Error(), result.Err)
		} else {
			s.closeWith(websocket.CloseInternalServerErr, "transcription failed", result.Err)
		}
		return
	}

	res, ok := result.Value.(pipeline.Result)
	if !ok {
		return
	}
	if res.InProgress != nil {
		s.send(InProgressMessage(*res.InProgress))
	}
	if res.Final != nil {
		s.send(FinalMessage(*res.Final))
	}
}

func (s *Session) send(msg TranscriptMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	_ = s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Session) closeWith(code int, reason string, cause error) error {
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	_ = s.conn.Close()
	return cause
}

func (s *Session) readWithDeadline(timeout time.Duration) (int, []byte, error) {
	type result struct {
		mt   int
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		mt, data, err := s.conn.ReadMessage()
		done <- result{mt, data, err}
	}()

	select {
	case r := <-done:
		return r.mt, r.data, r.err
	case <-time.After(timeout):
		return 0, nil, fmt.Errorf("session: timed out waiting for message")
	}
}

// providerSelection is the shape of ConfigMessage.Config this session
// expects: a provider_key naming which configured provider to route to,
// plus that provider's opaque provider_config.
type providerSelection struct {
	ProviderKey string          `json:"provider_key"`
	Config      json.RawMessage `json:"provider_config"`
}

func parseProviderSelection(raw json.RawMessage) (string, json.RawMessage, error) {
	var sel providerSelection
	if err := json.Unmarshal(raw, &sel); err != nil {
		return "", nil, fmt.Errorf("invalid provider selection: %w", err)
	}
	if sel.ProviderKey == "" {
		return "", nil, fmt.Errorf("provider_key cannot be empty")
	}
	return sel.ProviderKey, sel.Config, nil
}
