package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haus-ai/concierge/pkg/core"
	"github.com/haus-ai/concierge/pkg/core/types"
)

// Transport is the provider-agnostic session surface consumed by the
// conversation layer.
type Transport interface {
	Connect(ctx context.Context) error
	Events() <-chan ServerEvent
	SendAudio(pcm []byte) error
	SendToolResult(call types.ToolCallRecord, result string) error
	SendUserText(text string) error
	Close() error
}

// SessionConfig configures a realtime transport session.
type SessionConfig struct {
	Options     SessionOptions
	Translator  Translator
	Credentials *CredentialClient
	Logger      *slog.Logger

	// DialTimeout bounds the websocket handshake. Zero means 30s.
	DialTimeout time.Duration
}

// Session is a live websocket session against a realtime voice
// provider. All provider framing goes through the Translator; the
// session itself only moves bytes and preserves ordering.
//
// Messages sent before the provider acknowledges setup are buffered
// and flushed in send order once the channel opens.
type Session struct {
	cfg    SessionConfig
	logger *slog.Logger

	conn    *websocket.Conn
	writeMu sync.Mutex

	events     chan ServerEvent
	eventsOnce sync.Once
	done       chan struct{}
	closed     atomic.Bool

	openMu  sync.Mutex
	open    bool
	pending []any
}

// NewSession creates an unconnected session. Call Connect to dial.
func NewSession(cfg SessionConfig) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		cfg:    cfg,
		logger: logger.With("transport", cfg.Translator.Name()),
		events: make(chan ServerEvent, 100),
		done:   make(chan struct{}),
	}
}

// Events returns the stream of normalized server events. The channel
// is closed after Close returns or the provider disconnects.
func (s *Session) Events() <-chan ServerEvent {
	return s.events
}

// Connect mints a credential, dials the provider, and sends the setup
// handshake. It returns once the websocket is established; the channel
// is considered open when the provider's opening acknowledgement
// arrives on Events.
func (s *Session) Connect(ctx context.Context) error {
	var secret string
	if s.cfg.Credentials != nil {
		cred, err := s.cfg.Credentials.Mint(ctx, CredentialRequest{
			Model:       s.cfg.Options.Model,
			Voice:       s.cfg.Options.Voice,
			CustomTools: s.cfg.Options.Tools,
		})
		if err != nil {
			return err
		}
		if cred.Expired(time.Now()) {
			return core.NewAuthError("minted credential already expired", nil)
		}
		secret = cred.ClientSecret.Value
	}

	wsURL, header := s.cfg.Translator.DialRequest(s.cfg.Options, secret)

	timeout := s.cfg.DialTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == 401 || resp.StatusCode == 403) {
			return core.NewAuthError("realtime handshake rejected", err)
		}
		return core.NewNegotiationError("dial realtime endpoint", err)
	}
	// Close may have raced the dial. The connection must not outlive
	// a session that is already torn down.
	s.writeMu.Lock()
	if s.closed.Load() {
		s.writeMu.Unlock()
		conn.Close()
		return core.NewChannelError("session closed", nil)
	}
	s.conn = conn
	s.writeMu.Unlock()

	for _, msg := range s.cfg.Translator.Setup(s.cfg.Options) {
		if err := s.writeJSON(msg); err != nil {
			conn.Close()
			s.closeEvents()
			return core.NewNegotiationError("send session setup", err)
		}
	}

	go s.readLoop()
	return nil
}

func (s *Session) closeEvents() {
	s.eventsOnce.Do(func() { close(s.events) })
}

func (s *Session) readLoop() {
	defer s.closeEvents()
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.logger.Warn("realtime read failed", "error", err)
			s.emit(&ClosedEvent{Reason: err.Error()})
			return
		}

		events, err := s.cfg.Translator.Translate(raw)
		if err != nil {
			s.logger.Warn("untranslatable server message", "error", err)
			continue
		}
		for _, ev := range events {
			if _, ok := ev.(*SessionOpenedEvent); ok {
				s.flushPending()
			}
			s.emit(ev)
		}
	}
}

func (s *Session) emit(ev ServerEvent) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// SendAudio forwards a chunk of input PCM to the provider.
func (s *Session) SendAudio(pcm []byte) error {
	return s.send(s.cfg.Translator.AppendAudio(pcm))
}

// SendToolResult reports a completed tool call back to the provider.
func (s *Session) SendToolResult(call types.ToolCallRecord, result string) error {
	return s.sendAll(s.cfg.Translator.ToolResult(call, result))
}

// SendUserText submits a typed user turn, used by text-driven clients.
func (s *Session) SendUserText(text string) error {
	return s.sendAll(s.cfg.Translator.UserText(text))
}

func (s *Session) sendAll(msgs []any) error {
	for _, msg := range msgs {
		if err := s.send(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) send(msg any) error {
	if s.closed.Load() {
		return core.NewChannelError("session closed", nil)
	}
	s.openMu.Lock()
	if !s.open {
		s.pending = append(s.pending, msg)
		s.openMu.Unlock()
		return nil
	}
	s.openMu.Unlock()
	return s.writeJSON(msg)
}

func (s *Session) flushPending() {
	s.openMu.Lock()
	pending := s.pending
	s.pending = nil
	s.open = true
	s.openMu.Unlock()

	for _, msg := range pending {
		if err := s.writeJSON(msg); err != nil {
			s.logger.Warn("flush buffered message failed", "error", err)
			return
		}
	}
}

func (s *Session) writeJSON(msg any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		return core.NewChannelError("write to realtime channel", err)
	}
	return nil
}

// Close tears the session down. It is idempotent and safe to call from
// any state; once it returns no further events are delivered.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	s.writeMu.Lock()
	conn := s.conn
	s.writeMu.Unlock()
	if conn == nil {
		s.closeEvents()
		return nil
	}
	s.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return conn.Close()
}
