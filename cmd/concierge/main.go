// Command concierge runs the HAUS voice concierge from a terminal.
//
// Modes:
//
//	(default)  live voice conversation over the realtime channel
//	-demo      deterministic typed demo, no network or microphone
//	-text      typed conversation over the realtime channel, no microphone
//
// Environment variables:
//
//	HAUS_GATEWAY_URL  - credential endpoint base (default http://localhost:8090)
//	HAUS_PROVIDER     - openai | gemini (default openai)
//	HAUS_MODEL        - provider model id
//	HAUS_VOICE        - assistant voice (default marin)
//	HAUS_BACKEND_URL  - backend RPC base for preferences and interactions (optional)
//	HAUS_DB           - sqlite property database path (default bundled demo data)
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/haus-ai/concierge/internal/metrics"
	"github.com/haus-ai/concierge/pkg/backend"
	"github.com/haus-ai/concierge/pkg/core/audio"
	"github.com/haus-ai/concierge/pkg/core/realtime"
	"github.com/haus-ai/concierge/pkg/core/search"
	"github.com/haus-ai/concierge/pkg/core/session"
	"github.com/haus-ai/concierge/pkg/core/tools"
	"github.com/haus-ai/concierge/pkg/core/types"
)

const systemPrompt = `You are HAUS, a friendly real-estate concierge. You are in live voice mode,
so keep replies short and conversational. Help the user narrow down property
searches, remember their stated preferences, and call searchProperties as soon
as you have enough to search with. When the user says goodbye, call
endConversation.`

const demoPhrase = "Show me a luxury apartment in Sydney with a pool and at least 2 bedrooms under $1.5M."

func main() {
	demoMode := flag.Bool("demo", false, "run the deterministic typed demo")
	textMode := flag.Bool("text", false, "typed conversation, no microphone")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if *demoMode {
		runDemo(ctx)
		return
	}
	if err := runLive(ctx, logger, *textMode); err != nil {
		logger.Error("concierge failed", "error", err)
		os.Exit(1)
	}
}

// runDemo replays the scripted phrase through the same accumulation
// path the live session uses. No network, no microphone.
func runDemo(ctx context.Context) {
	acc := search.NewAccumulator()
	acc.OnFieldSet = func(f search.Field) {
		fmt.Printf("  [set] %s\n", f)
	}
	sim := search.NewSimulator(search.SimulatorConfig{
		Accumulator: acc,
		Seed:        42,
		OnText: func(text string) {
			fmt.Printf("\r> %s", text)
		},
	})
	fmt.Println("HAUS typed demo")
	if err := sim.Replay(ctx, demoPhrase); err != nil {
		return
	}
	fmt.Println()

	params, _ := json.MarshalIndent(acc.Parameters(), "", "  ")
	fmt.Printf("extracted search parameters:\n%s\n", params)
}

func runLive(ctx context.Context, logger *slog.Logger, textMode bool) error {
	gatewayURL := envOr("HAUS_GATEWAY_URL", "http://localhost:8090")
	provider := envOr("HAUS_PROVIDER", "openai")
	voice := envOr("HAUS_VOICE", "marin")

	var translator realtime.Translator
	var model string
	switch provider {
	case "gemini":
		translator = realtime.NewGeminiTranslator()
		model = envOr("HAUS_MODEL", "gemini-2.0-flash-live-001")
	default:
		translator = realtime.NewOpenAITranslator()
		model = envOr("HAUS_MODEL", "gpt-realtime")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	registry := tools.NewRegistry()
	builtins := &tools.Builtins{
		Search: store,
		Client: &terminalClient{},
	}
	if backendURL := os.Getenv("HAUS_BACKEND_URL"); backendURL != "" {
		rpc := backend.NewClient(backendURL)
		builtins.Preferences = backend.NewPreferences(rpc, "demo-user")
		builtins.Interactions = backend.NewInteractions(rpc, "demo-user")
	}
	builtins.RegisterAll(registry)

	m := metrics.New("")
	dispatcher := tools.NewDispatcher(registry, logger, m)

	opts := realtime.SessionOptions{
		Model:           model,
		Voice:           voice,
		Instructions:    systemPrompt,
		Tools:           registry.Tools(),
		InputSampleRate: audio.DefaultSampleRate,
	}
	credentials := realtime.NewCredentialClient(gatewayURL + "/v1/realtime/sessions")

	cfg := session.Config{
		NewTransport: func() realtime.Transport {
			return realtime.NewSession(realtime.SessionConfig{
				Options:     opts,
				Translator:  translator,
				Credentials: credentials,
				Logger:      logger,
			})
		},
		Dispatcher: dispatcher,
		Logger:     logger,
		Metrics:    m,
		Provider:   provider,
		Handlers: session.Handlers{
			OnMessageUpdated: printMessage,
			OnStateChanged: func(s session.State) {
				logger.Debug("state", "status", s.Status.String(),
					"user_speaking", s.UserSpeaking,
					"assistant_speaking", s.AssistantSpeaking)
			},
		},
	}

	if !textMode {
		playback, err := audio.NewSpeakerPlayback(audio.DefaultSampleRate, audio.DefaultChannels)
		if err != nil {
			return err
		}
		defer playback.Close()
		cfg.Capture = audio.NewCapture(audio.CaptureConfig{})
		cfg.Playback = playback
	}

	conv := session.New(cfg)
	if err := conv.Start(ctx); err != nil {
		return err
	}
	defer conv.Stop()

	fmt.Println("HAUS concierge connected. Speak, type a message, or 'q' to quit.")
	input := bufio.NewScanner(os.Stdin)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !input.Scan() {
			return input.Err()
		}
		line := strings.TrimSpace(input.Text())
		switch {
		case line == "q":
			return nil
		case line == "/mute":
			conv.SetMuted(true)
		case line == "/unmute":
			conv.SetMuted(false)
		case line != "":
			if err := conv.SendText(line); err != nil {
				logger.Warn("send text failed", "error", err)
			}
		}
	}
}

func printMessage(msg types.ConversationMessage) {
	if !msg.Completed {
		return
	}
	speaker := "you"
	if msg.Role == types.RoleAssistant {
		speaker = "haus"
	}
	if text := msg.Text(); text != "" {
		fmt.Printf("[%s] %s\n", speaker, text)
	}
}

// terminalClient renders client-side tool effects as terminal output.
type terminalClient struct{}

func (terminalClient) Navigate(route string) error {
	fmt.Printf("  [navigate] %s\n", route)
	return nil
}

func (terminalClient) SetTheme(theme string) error {
	fmt.Printf("  [theme] %s\n", theme)
	return nil
}

func openStore() (*backend.PropertyStore, error) {
	path := envOr("HAUS_DB", ":memory:")
	store, err := backend.OpenPropertyStore(path)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		seedDemoListings(store)
	}
	return store, nil
}

func seedDemoListings(store *backend.PropertyStore) {
	listings := []types.Property{
		{ID: "haus-101", Address: "18/2 Macquarie St", Suburb: "Sydney", State: "NSW",
			Price: 1450000, Bedrooms: 2, Bathrooms: 2, Parking: 1, Type: "apartment",
			AreaSqm: 104, Features: []string{"pool", "gym", "balcony"},
			Description: "Harbourside apartment with district views."},
		{ID: "haus-102", Address: "44 Gurner St", Suburb: "Paddington", State: "NSW",
			Price: 2850000, Bedrooms: 3, Bathrooms: 2, Parking: 1, Type: "house",
			AreaSqm: 168, Features: []string{"garden", "fireplace"},
			Description: "Restored Victorian terrace on a quiet street."},
		{ID: "haus-103", Address: "7/15 Beach Rd", Suburb: "Bondi", State: "NSW",
			Price: 1250000, Bedrooms: 2, Bathrooms: 1, Type: "apartment",
			AreaSqm: 88, Features: []string{"balcony"},
			Description: "Two minutes from the sand."},
	}
	for _, p := range listings {
		if err := store.Insert(context.Background(), p); err != nil {
			slog.Warn("seed listing failed", "id", p.ID, "error", err)
		}
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
