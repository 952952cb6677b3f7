package session

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/haus-ai/concierge/internal/metrics"
	"github.com/haus-ai/concierge/pkg/core"
	"github.com/haus-ai/concierge/pkg/core/audio"
	"github.com/haus-ai/concierge/pkg/core/realtime"
	"github.com/haus-ai/concierge/pkg/core/tools"
	"github.com/haus-ai/concierge/pkg/core/types"
)

// fakeTransport feeds scripted events and records outbound traffic.
type fakeTransport struct {
	events chan realtime.ServerEvent

	mu          sync.Mutex
	audioFrames int
	toolResults []types.ToolCallRecord
	texts       []string
	closed      bool

	connectErr   error
	blockConnect chan struct{}

	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan realtime.ServerEvent, 32)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	if f.blockConnect != nil {
		<-f.blockConnect
	}
	return f.connectErr
}

func (f *fakeTransport) Events() <-chan realtime.ServerEvent { return f.events }

func (f *fakeTransport) SendAudio(pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioFrames++
	return nil
}

func (f *fakeTransport) SendToolResult(call types.ToolCallRecord, result string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toolResults = append(f.toolResults, call)
	return nil
}

func (f *fakeTransport) SendUserText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestConversation(transport *fakeTransport, reg *tools.Registry) *Conversation {
	if reg == nil {
		reg = tools.NewRegistry()
	}
	return New(Config{
		NewTransport: func() realtime.Transport { return transport },
		Dispatcher:   tools.NewDispatcher(reg, nil, nil),
		Provider:     "openai",
	})
}

func TestConversationTranscriptLifecycle(t *testing.T) {
	transport := newFakeTransport()
	conv := newTestConversation(transport, nil)

	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	waitFor(t, func() bool { return conv.State().Status == StatusActive })

	transport.events <- &realtime.TranscriptDeltaEvent{MessageID: "m1", Role: types.RoleUser, Delta: "show "}
	transport.events <- &realtime.TranscriptDeltaEvent{MessageID: "m1", Role: types.RoleUser, Delta: "me apartments"}
	transport.events <- &realtime.TranscriptDoneEvent{MessageID: "m1", Role: types.RoleUser, Text: "Show me apartments."}
	waitFor(t, func() bool {
		msgs := conv.Messages()
		return len(msgs) == 1 && msgs[0].Completed
	})

	msgs := conv.Messages()
	if msgs[0].Text() != "Show me apartments." {
		t.Errorf("final text = %q, want authoritative transcript", msgs[0].Text())
	}
	if msgs[0].Role != types.RoleUser {
		t.Errorf("role = %v, want user", msgs[0].Role)
	}

	conv.Stop()
	if conv.State().Status != StatusClosed {
		t.Errorf("status = %v, want closed", conv.State().Status)
	}
	if len(conv.Messages()) != 1 {
		t.Error("transcript must survive a normal stop")
	}
	conv.Stop() // idempotent
}

func TestStartClearsPreviousConversation(t *testing.T) {
	first := newFakeTransport()
	second := newFakeTransport()
	transports := []*fakeTransport{first, second}
	i := 0
	conv := New(Config{
		NewTransport: func() realtime.Transport { tr := transports[i]; i++; return tr },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
	})

	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	first.events <- &realtime.SessionOpenedEvent{}
	first.events <- &realtime.TranscriptDeltaEvent{MessageID: "m1", Role: types.RoleUser, Delta: "hello"}
	waitFor(t, func() bool { return len(conv.Messages()) == 1 })
	conv.Stop()

	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	if len(conv.Messages()) != 0 {
		t.Error("Start must clear the previous transcript")
	}
	if conv.State().Err != nil {
		t.Error("Start must clear the previous error")
	}
	conv.Stop()
}

func TestToolCallRoundTrip(t *testing.T) {
	reg := tools.NewRegistry()
	reg.MustRegister(types.NewFunctionTool("searchProperties", "", nil),
		func(ctx context.Context, args json.RawMessage) (any, error) {
			return map[string]any{"count": 0}, nil
		})

	transport := newFakeTransport()
	conv := newTestConversation(transport, reg)
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	transport.events <- &realtime.ToolCallEvent{
		CallID:    "call_1",
		Name:      "searchProperties",
		Arguments: json.RawMessage(`{}`),
		MessageID: "m1",
	}

	waitFor(t, func() bool {
		transport.mu.Lock()
		defer transport.mu.Unlock()
		return len(transport.toolResults) == 1
	})
	if transport.toolResults[0].CallID != "call_1" {
		t.Errorf("result call id = %q", transport.toolResults[0].CallID)
	}

	msgs := conv.Messages()
	if len(msgs) != 1 || len(msgs[0].Parts) != 1 {
		t.Fatalf("messages = %+v", msgs)
	}
	call := msgs[0].Parts[0].ToolCall
	if call == nil || call.Result == "" {
		t.Errorf("tool part must carry the result: %+v", call)
	}
	conv.Stop()
}

func TestEndConversationDiscardsTranscript(t *testing.T) {
	reg := tools.NewRegistry()
	(&tools.Builtins{}).RegisterAll(reg)

	transport := newFakeTransport()
	conv := newTestConversation(transport, reg)
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	transport.events <- &realtime.TranscriptDeltaEvent{MessageID: "m1", Role: types.RoleUser, Delta: "goodbye"}
	transport.events <- &realtime.ToolCallEvent{CallID: "call_end", Name: tools.EndConversationTool, MessageID: "m2"}

	waitFor(t, func() bool { return conv.State().Status == StatusClosed })
	if len(conv.Messages()) != 0 {
		t.Error("model-ended conversation must not retain a transcript")
	}
	transport.mu.Lock()
	results := len(transport.toolResults)
	transport.mu.Unlock()
	if results != 0 {
		t.Error("endConversation must not send a result back to the model")
	}
	if !transport.isClosed() {
		t.Error("transport must be closed")
	}
}

func TestConnectFailureEntersErrorState(t *testing.T) {
	m := metrics.New("")
	transport := newFakeTransport()
	transport.connectErr = core.NewAuthError("credential endpoint returned 401", nil)
	conv := New(Config{
		NewTransport: func() realtime.Transport { return transport },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
		Metrics:      m,
		Provider:     "openai",
	})

	err := conv.Start(context.Background())
	if err == nil {
		t.Fatal("expected Start() to fail")
	}
	if !core.IsKind(err, core.ErrAuth) {
		t.Errorf("error kind = %v, want %v", err, core.ErrAuth)
	}

	state := conv.State()
	if state.Status != StatusError {
		t.Errorf("status = %v, want error", state.Status)
	}
	if state.Err == nil {
		t.Error("error state must carry the failure")
	}
	if state.Listening || state.UserSpeaking || state.AssistantSpeaking {
		t.Errorf("flags must be clear after a failed connect: %+v", state)
	}

	// A session that never became active never touched the gauge.
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("sessions_active = %v after failed connect, want 0", got)
	}
}

func TestStopFromIdleLeavesGaugeAlone(t *testing.T) {
	m := metrics.New("")
	conv := New(Config{
		NewTransport: func() realtime.Transport { return newFakeTransport() },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
		Metrics:      m,
	})
	conv.Stop()
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("sessions_active = %v after idle stop, want 0", got)
	}
}

func TestSessionGaugeBalancesAcrossLifecycle(t *testing.T) {
	m := metrics.New("")
	transport := newFakeTransport()
	conv := New(Config{
		NewTransport: func() realtime.Transport { return transport },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
		Metrics:      m,
		Provider:     "openai",
	})
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("sessions_active = %v while running, want 1", got)
	}
	conv.Stop()
	if got := testutil.ToFloat64(m.SessionsActive); got != 0 {
		t.Errorf("sessions_active = %v after stop, want 0", got)
	}
}

func TestStopDuringConnectDiscardsLateSuccess(t *testing.T) {
	transport := newFakeTransport()
	transport.blockConnect = make(chan struct{})
	conv := newTestConversation(transport, nil)

	errCh := make(chan error, 1)
	go func() { errCh <- conv.Start(context.Background()) }()
	waitFor(t, func() bool { return conv.State().Status == StatusConnecting })

	conv.Stop()
	close(transport.blockConnect)

	if err := <-errCh; err == nil {
		t.Error("Start must fail when stopped mid-connect")
	}
	waitFor(t, func() bool { return transport.isClosed() })
	if conv.State().Status != StatusClosed {
		t.Errorf("status = %v, want closed", conv.State().Status)
	}
}

func TestNonFatalProviderErrorKeepsSessionAlive(t *testing.T) {
	var mu sync.Mutex
	var reported []error
	transport := newFakeTransport()
	conv := New(Config{
		NewTransport: func() realtime.Transport { return transport },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
		Handlers: Handlers{OnError: func(err error) {
			mu.Lock()
			reported = append(reported, err)
			mu.Unlock()
		}},
	})
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	waitFor(t, func() bool { return conv.State().Status == StatusActive })

	transport.events <- &realtime.ErrorEvent{Code: "invalid_value", Message: "unknown parameter"}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reported) == 1
	})
	if conv.State().Status != StatusActive {
		t.Errorf("status = %v, a recoverable provider error must not end the session", conv.State().Status)
	}
	conv.Stop()
}

func TestFatalProviderErrorEndsSession(t *testing.T) {
	transport := newFakeTransport()
	conv := newTestConversation(transport, nil)
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	waitFor(t, func() bool { return conv.State().Status == StatusActive })

	transport.events <- &realtime.ErrorEvent{Code: "session_expired", Message: "session expired"}
	waitFor(t, func() bool { return conv.State().Status == StatusError })
	if !core.IsKind(conv.State().Err, core.ErrAuth) {
		t.Errorf("error = %v, want auth kind", conv.State().Err)
	}
	if !transport.isClosed() {
		t.Error("transport must be closed after a fatal provider error")
	}
}

func TestChannelFaultRetainsTranscript(t *testing.T) {
	transport := newFakeTransport()
	conv := newTestConversation(transport, nil)
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	transport.events <- &realtime.TranscriptDeltaEvent{MessageID: "m1", Role: types.RoleUser, Delta: "hello"}
	waitFor(t, func() bool { return len(conv.Messages()) == 1 })

	transport.events <- &realtime.ClosedEvent{Reason: "connection reset"}
	transport.Close()

	waitFor(t, func() bool { return conv.State().Status == StatusError })
	if conv.State().Err == nil {
		t.Error("error state must carry the fault")
	}
	if len(conv.Messages()) != 1 {
		t.Error("transcript up to the fault must be retained")
	}
}

type fakePlayerContext struct{}

type fakePlayer struct{}

func (p *fakePlayer) Play()        {}
func (p *fakePlayer) Pause()       {}
func (p *fakePlayer) Reset()       {}
func (p *fakePlayer) Close() error { return nil }

func (c *fakePlayerContext) NewPlayer(io.Reader) audio.Player { return &fakePlayer{} }

func TestBargeInFlushesQueuedAudio(t *testing.T) {
	playback := audio.NewPlayback(&fakePlayerContext{})
	transport := newFakeTransport()
	conv := New(Config{
		NewTransport: func() realtime.Transport { return transport },
		Dispatcher:   tools.NewDispatcher(tools.NewRegistry(), nil, nil),
		Playback:     playback,
	})
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	transport.events <- &realtime.AssistantAudioEvent{Data: make([]byte, 9600)}
	waitFor(t, func() bool { return conv.State().AssistantSpeaking })

	transport.events <- &realtime.SpeechStartedEvent{}
	waitFor(t, func() bool { return conv.State().UserSpeaking })
	if playback.Buffered() != 0 {
		t.Errorf("queued audio = %d bytes after barge-in, want 0", playback.Buffered())
	}
	conv.Stop()
}

func TestSendTextAppearsInTranscript(t *testing.T) {
	transport := newFakeTransport()
	conv := newTestConversation(transport, nil)
	if err := conv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	transport.events <- &realtime.SessionOpenedEvent{}
	waitFor(t, func() bool { return conv.State().Status == StatusActive })

	if err := conv.SendText("two bedrooms please"); err != nil {
		t.Fatalf("SendText() error = %v", err)
	}
	msgs := conv.Messages()
	if len(msgs) != 1 || msgs[0].Text() != "two bedrooms please" || msgs[0].Role != types.RoleUser {
		t.Errorf("messages = %+v", msgs)
	}
	transport.mu.Lock()
	texts := transport.texts
	transport.mu.Unlock()
	if len(texts) != 1 || texts[0] != "two bedrooms please" {
		t.Errorf("forwarded texts = %v", texts)
	}
	conv.Stop()
}
