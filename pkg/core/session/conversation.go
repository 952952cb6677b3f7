package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/haus-ai/concierge/internal/metrics"
	"github.com/haus-ai/concierge/pkg/core"
	"github.com/haus-ai/concierge/pkg/core/audio"
	"github.com/haus-ai/concierge/pkg/core/realtime"
	"github.com/haus-ai/concierge/pkg/core/tools"
	"github.com/haus-ai/concierge/pkg/core/types"
)

// Handlers are observer callbacks invoked from the event loop. All are
// optional. Callbacks run serially; a slow callback backpressures event
// processing rather than reordering it.
type Handlers struct {
	// OnStateChanged fires on every state transition or flag change.
	OnStateChanged func(State)
	// OnMessageUpdated fires whenever a transcript message is created,
	// appended to, or completed. The message is a copy.
	OnMessageUpdated func(types.ConversationMessage)
	// OnToolCall fires when a tool call is dispatched.
	OnToolCall func(types.ToolCallRecord)
	// OnError fires on provider-reported errors that do not end the session.
	OnError func(error)
}

// Config configures a Conversation.
type Config struct {
	// NewTransport dials a fresh transport for each Start; realtime
	// sessions are single-use.
	NewTransport func() realtime.Transport
	Dispatcher   *tools.Dispatcher
	// Capture and Playback are nil in typed-input mode.
	Capture  *audio.Capture
	Playback *audio.Playback
	Handlers Handlers
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	// Provider names the transport for metrics labels.
	Provider string
}

// Conversation drives voice conversations against the marketplace.
// Start begins a conversation; Stop ends it; a new Start after a
// terminal state begins a fresh conversation with a clean transcript.
type Conversation struct {
	cfg    Config
	logger *slog.Logger

	mu        sync.Mutex
	state     State
	transport realtime.Transport
	messages  []*types.ConversationMessage
	byID      map[string]*types.ConversationMessage
	pending   map[string]types.ToolCallRecord
	stopped   bool
	running   bool
	started   time.Time
	recorded  bool

	loopDone chan struct{}
}

// New creates an idle conversation.
func New(cfg Config) *Conversation {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversation{
		cfg:      cfg,
		logger:   logger,
		byID:     make(map[string]*types.ConversationMessage),
		pending:  make(map[string]types.ToolCallRecord),
		loopDone: make(chan struct{}),
	}
}

// State returns a snapshot of the conversation state.
func (c *Conversation) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Messages returns a copy of the transcript in arrival order.
func (c *Conversation) Messages() []types.ConversationMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.ConversationMessage, len(c.messages))
	for i, m := range c.messages {
		out[i] = *m
		out[i].Parts = append([]types.MessagePart(nil), m.Parts...)
	}
	return out
}

// Start connects the transport, acquires audio, and begins processing
// events. Any transcript and error from a previous Start are cleared
// first. Start returns once the channel is dialing; failures surface
// through the returned error or the error state.
func (c *Conversation) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Status == StatusConnecting || c.state.Status == StatusActive {
		c.mu.Unlock()
		return core.NewInvalidRequestError("conversation already started")
	}
	c.messages = nil
	c.byID = make(map[string]*types.ConversationMessage)
	c.pending = make(map[string]types.ToolCallRecord)
	c.state = State{Status: StatusConnecting}
	c.stopped = false
	c.running = false
	c.recorded = false
	c.started = time.Now()
	c.loopDone = make(chan struct{})
	transport := c.cfg.NewTransport()
	c.transport = transport
	c.mu.Unlock()
	c.notifyState()

	if err := transport.Connect(ctx); err != nil {
		c.fail(err)
		return err
	}

	// Stop may have raced the connect; a late success is discarded.
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		transport.Close()
		close(c.loopDone)
		return core.NewChannelError("conversation stopped during connect", nil)
	}
	c.mu.Unlock()

	if c.cfg.Capture != nil {
		if err := c.cfg.Capture.Acquire(c.onCapturedAudio); err != nil {
			c.transport.Close()
			c.fail(err)
			return err
		}
		c.setListening(true)
	}

	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSessionStart()
	}
	c.mu.Lock()
	c.running = true
	c.recorded = true
	c.mu.Unlock()
	go c.run()
	return nil
}

func (c *Conversation) onCapturedAudio(pcm []byte) {
	if err := c.transport.SendAudio(pcm); err != nil {
		c.logger.Debug("drop captured frame", "error", err)
		return
	}
	if c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordAudio("input", len(pcm))
	}
}

// SendText submits a typed user turn. Used by text-driven clients; the
// turn is appended to the transcript immediately since no input
// transcription will arrive for it.
func (c *Conversation) SendText(text string) error {
	c.mu.Lock()
	if c.state.Status != StatusActive && c.state.Status != StatusConnecting {
		c.mu.Unlock()
		return core.NewChannelError("conversation not active", nil)
	}
	msg := &types.ConversationMessage{
		ID:        uuid.NewString(),
		Role:      types.RoleUser,
		Completed: true,
	}
	msg.AppendText(text)
	c.messages = append(c.messages, msg)
	c.byID[msg.ID] = msg
	snapshot := *msg
	c.mu.Unlock()

	c.notifyMessage(snapshot)
	return c.transport.SendUserText(text)
}

// SetMuted mutes or unmutes the microphone without releasing it.
func (c *Conversation) SetMuted(muted bool) {
	if c.cfg.Capture == nil {
		return
	}
	if muted {
		c.cfg.Capture.Mute()
	} else {
		c.cfg.Capture.Unmute()
	}
	c.setListening(!muted)
}

// Stop ends the conversation. Idempotent; safe from any state including
// mid-connect. The transcript is retained unless the model ended the
// conversation itself.
func (c *Conversation) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	running := c.running
	transport := c.transport
	c.mu.Unlock()

	c.releaseAudio()
	if transport != nil {
		transport.Close()
	}
	if running {
		<-c.loopDone
	}
	c.finish(StatusClosed, nil)
}

func (c *Conversation) run() {
	defer close(c.loopDone)
	for ev := range c.transport.Events() {
		c.handleEvent(ev)
	}
}

func (c *Conversation) handleEvent(ev realtime.ServerEvent) {
	switch e := ev.(type) {
	case *realtime.SessionOpenedEvent:
		c.setStatus(StatusActive)

	case *realtime.SpeechStartedEvent:
		// Barge-in: the provider detected user speech, so anything the
		// assistant had queued is stale.
		c.flushPlayback()
		c.setSpeaking(true, false)

	case *realtime.SpeechStoppedEvent:
		c.setFlag(func(s *State) { s.UserSpeaking = false })

	case *realtime.InterruptionEvent:
		c.flushPlayback()
		c.setFlag(func(s *State) { s.AssistantSpeaking = false })

	case *realtime.TranscriptDeltaEvent:
		c.applyDelta(e)

	case *realtime.TranscriptDoneEvent:
		c.completeMessage(e)

	case *realtime.AssistantAudioEvent:
		if c.cfg.Playback != nil {
			c.cfg.Playback.Write(e.Data)
		}
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordAudio("output", len(e.Data))
		}
		c.setFlag(func(s *State) { s.AssistantSpeaking = true })

	case *realtime.AssistantAudioDoneEvent:
		c.setFlag(func(s *State) { s.AssistantSpeaking = false })

	case *realtime.ToolCallEvent:
		c.dispatchToolCall(e)

	case *realtime.ErrorEvent:
		err := classifyProviderError(e)
		c.logger.Warn("provider error", "code", e.Code, "message", e.Message)
		if c.cfg.Metrics != nil {
			c.cfg.Metrics.RecordError(e.Code)
		}
		if err.IsFatal() {
			c.releaseAudio()
			c.transport.Close()
			c.finish(StatusError, err)
			return
		}
		if c.cfg.Handlers.OnError != nil {
			c.cfg.Handlers.OnError(err)
		}

	case *realtime.ClosedEvent:
		// Remote teardown mid-session is a fault; local Stop never
		// produces this event.
		c.releaseAudio()
		c.finish(StatusError, core.NewChannelError(e.Reason, nil))
	}
}

// classifyProviderError maps a provider error event onto the core error
// taxonomy. Most provider errors are per-request complaints the session
// survives; codes that mean the channel credentials are dead end it.
func classifyProviderError(e *realtime.ErrorEvent) *core.Error {
	switch e.Code {
	case "session_expired", "session_not_found", "token_expired":
		return core.NewAuthError(e.Message, nil)
	default:
		return &core.Error{Kind: core.ErrInvalidRequest, Message: e.Message, Code: e.Code}
	}
}

// applyDelta appends a transcript fragment, creating the message on the
// first fragment for its ID. Deltas are applied in arrival order, which
// the transport guarantees matches channel order.
func (c *Conversation) applyDelta(e *realtime.TranscriptDeltaEvent) {
	c.mu.Lock()
	msg, ok := c.byID[e.MessageID]
	if !ok {
		msg = &types.ConversationMessage{ID: e.MessageID, Role: e.Role}
		c.messages = append(c.messages, msg)
		c.byID[e.MessageID] = msg
	}
	msg.AppendText(e.Delta)
	snapshot := *msg
	c.mu.Unlock()
	c.notifyMessage(snapshot)
}

func (c *Conversation) completeMessage(e *realtime.TranscriptDoneEvent) {
	c.mu.Lock()
	msg, ok := c.byID[e.MessageID]
	if !ok {
		msg = &types.ConversationMessage{ID: e.MessageID, Role: e.Role}
		c.messages = append(c.messages, msg)
		c.byID[e.MessageID] = msg
	}
	// The final transcript is authoritative when the provider sends one.
	if e.Text != "" {
		msg.Parts = []types.MessagePart{{Text: e.Text}}
	}
	msg.Completed = true
	empty := msg.Text() == "" && len(msg.Parts) == 0
	if empty {
		// Nothing was said in this turn; drop the placeholder.
		delete(c.byID, e.MessageID)
		for i, m := range c.messages {
			if m == msg {
				c.messages = append(c.messages[:i], c.messages[i+1:]...)
				break
			}
		}
		c.mu.Unlock()
		return
	}
	snapshot := *msg
	c.mu.Unlock()
	c.notifyMessage(snapshot)
}

func (c *Conversation) dispatchToolCall(e *realtime.ToolCallEvent) {
	record := types.ToolCallRecord{
		CallID:    e.CallID,
		Name:      e.Name,
		Arguments: e.Arguments,
		MessageID: e.MessageID,
	}

	c.mu.Lock()
	c.pending[e.CallID] = record
	msg, ok := c.byID[e.MessageID]
	if !ok {
		msg = &types.ConversationMessage{ID: e.MessageID, Role: types.RoleAssistant}
		c.messages = append(c.messages, msg)
		c.byID[e.MessageID] = msg
	}
	msg.AppendToolCall(types.ToolCallPart{
		CallID:    e.CallID,
		Name:      e.Name,
		Arguments: e.Arguments,
	})
	c.mu.Unlock()

	if c.cfg.Handlers.OnToolCall != nil {
		c.cfg.Handlers.OnToolCall(record)
	}

	result := c.cfg.Dispatcher.Dispatch(context.Background(), record)
	if result.EndSession {
		// The user asked to finish; the transcript is not kept and no
		// result goes back to the model.
		c.mu.Lock()
		c.stopped = true
		c.messages = nil
		c.byID = make(map[string]*types.ConversationMessage)
		c.mu.Unlock()
		c.releaseAudio()
		c.transport.Close()
		c.finish(StatusClosed, nil)
		return
	}

	c.mu.Lock()
	delete(c.pending, e.CallID)
	c.setToolResultLocked(e.MessageID, e.CallID, result.Output)
	c.mu.Unlock()

	if err := c.transport.SendToolResult(record, result.Output); err != nil {
		c.logger.Warn("send tool result failed", "tool", e.Name, "error", err)
	}
}

func (c *Conversation) setToolResultLocked(messageID, callID, output string) {
	msg, ok := c.byID[messageID]
	if !ok {
		return
	}
	for i := range msg.Parts {
		call := msg.Parts[i].ToolCall
		if call != nil && call.CallID == callID {
			call.Result = output
			return
		}
	}
}

func (c *Conversation) flushPlayback() {
	if c.cfg.Playback != nil {
		c.cfg.Playback.Flush()
	}
}

func (c *Conversation) releaseAudio() {
	if c.cfg.Capture != nil {
		c.cfg.Capture.Release()
	}
	if c.cfg.Playback != nil {
		c.cfg.Playback.Flush()
	}
}

func (c *Conversation) setStatus(status Status) {
	c.mu.Lock()
	if c.state.Status == status {
		c.mu.Unlock()
		return
	}
	c.state.Status = status
	c.mu.Unlock()
	c.notifyState()
}

func (c *Conversation) setSpeaking(user, assistant bool) {
	c.setFlag(func(s *State) {
		s.UserSpeaking = user
		s.AssistantSpeaking = assistant
	})
}

func (c *Conversation) setListening(listening bool) {
	c.setFlag(func(s *State) { s.Listening = listening })
}

func (c *Conversation) setFlag(mutate func(*State)) {
	c.mu.Lock()
	before := c.state
	mutate(&c.state)
	changed := c.state != before
	c.mu.Unlock()
	if changed {
		c.notifyState()
	}
}

// fail moves straight to the error state during startup.
func (c *Conversation) fail(err error) {
	close(c.loopDone)
	c.finish(StatusError, err)
}

// finish records the terminal state. First terminal transition wins.
func (c *Conversation) finish(status Status, err error) {
	c.mu.Lock()
	if c.state.Status == StatusClosed || c.state.Status == StatusError {
		c.mu.Unlock()
		return
	}
	c.state.Status = status
	c.state.Err = err
	c.state.UserSpeaking = false
	c.state.AssistantSpeaking = false
	c.state.Listening = false
	provider := c.cfg.Provider
	started := c.started
	recorded := c.recorded
	c.recorded = false
	c.mu.Unlock()

	// Only sessions that recorded a start record an end; a failed
	// startup must not drive the active gauge negative.
	if recorded && c.cfg.Metrics != nil {
		c.cfg.Metrics.RecordSessionEnd(provider, status.String(), time.Since(started))
	}
	c.notifyState()
}

func (c *Conversation) notifyState() {
	if c.cfg.Handlers.OnStateChanged != nil {
		c.cfg.Handlers.OnStateChanged(c.State())
	}
}

func (c *Conversation) notifyMessage(msg types.ConversationMessage) {
	if c.cfg.Handlers.OnMessageUpdated != nil {
		c.cfg.Handlers.OnMessageUpdated(msg)
	}
}
