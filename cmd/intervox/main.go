// Command intervox is the terminal client for AI-led mock interviews.
// It drives a full session against the interview service: spoken
// questions land as audio files, answers are typed, and the final
// feedback is printed when the interview completes.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/intervox/intervox/internal/config"
	"github.com/intervox/intervox/internal/interview"
	"github.com/intervox/intervox/internal/observe"
	"github.com/intervox/intervox/internal/playback"
	"github.com/intervox/intervox/internal/resilience"
	"github.com/intervox/intervox/internal/session"
	"github.com/intervox/intervox/pkg/audio/filesink"
	"github.com/intervox/intervox/pkg/provider/stt"
	sttdeepgram "github.com/intervox/intervox/pkg/provider/stt/deepgram"
	sttmock "github.com/intervox/intervox/pkg/provider/stt/mock"
	sttopenai "github.com/intervox/intervox/pkg/provider/stt/openai"
	sttremote "github.com/intervox/intervox/pkg/provider/stt/remote"
	"github.com/intervox/intervox/pkg/provider/tts"
	ttscache "github.com/intervox/intervox/pkg/provider/tts/cache"
	ttsmock "github.com/intervox/intervox/pkg/provider/tts/mock"
	ttsopenai "github.com/intervox/intervox/pkg/provider/tts/openai"
	ttsremote "github.com/intervox/intervox/pkg/provider/tts/remote"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	userID := flag.String("user", "", "user identity to start the session as (default: $USER)")
	audioDir := flag.String("audio-dir", "", "directory for synthesized question audio (default: discard)")
	flag.Parse()

	// .env is optional; real environment always wins.
	_ = godotenv.Load()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "intervox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "intervox: %v\n", err)
		}
		return 1
	}

	user := strings.TrimSpace(*userID)
	if user == "" {
		user = os.Getenv("USER")
	}
	if user == "" {
		fmt.Fprintln(os.Stderr, "intervox: no user identity — pass -user or set $USER")
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.LevelFromConfig(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	slog.Info("intervox starting",
		"config", *configPath,
		"service_url", cfg.Service.BaseURL,
		"variant", cfg.Interview.Variant,
		"log_level", cfg.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "intervox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Interview service client ──────────────────────────────────────────────
	client, err := interview.NewClient(cfg.Service.BaseURL,
		interview.WithHTTPClient(&http.Client{Timeout: cfg.Service.Timeout}),
		interview.WithBreaker(resilience.NewBreaker(resilience.BreakerConfig{
			Name:        "interview-service",
			MaxFailures: cfg.Service.BreakerMaxFailures,
			Cooldown:    cfg.Service.BreakerCooldown,
		})),
	)
	if err != nil {
		slog.Error("failed to create interview client", "err", err)
		return 1
	}

	// ── Speech providers ──────────────────────────────────────────────────────
	synth, err := buildTTS(cfg)
	if err != nil {
		slog.Error("failed to create tts provider", "err", err)
		return 1
	}
	transcriber, err := buildSTT(cfg)
	if err != nil {
		slog.Error("failed to create stt provider", "err", err)
		return 1
	}

	// ── Playback queue ────────────────────────────────────────────────────────
	sink, err := filesink.New(*audioDir)
	if err != nil {
		slog.Error("failed to create audio sink", "err", err)
		return 1
	}
	queue, err := playback.New(playback.Config{
		Driver:   sink,
		Synth:    synth,
		Voice:    tts.Voice(cfg.Interview.Voice),
		Listener: consoleListener{},
		Retry:    cfg.Retry,
	})
	if err != nil {
		slog.Error("failed to create playback queue", "err", err)
		return 1
	}
	defer queue.Close()

	// ── Session engine ────────────────────────────────────────────────────────
	// No recorder: voice capture needs a host surface, so the CLI takes
	// typed answers. The transcriber still runs behind manual clip
	// uploads if a surface provides them.
	engine, err := session.New(session.Config{
		Service:      client,
		Queue:        queue,
		Transcriber:  transcriber,
		Retry:        cfg.Retry,
		MaxQuestions: cfg.Interview.MaxQuestions,
		AnswerWindow: cfg.Interview.AnswerWindow,
	})
	if err != nil {
		slog.Error("failed to create session engine", "err", err)
		return 1
	}

	printBanner(cfg, user)

	if err := runInterview(ctx, engine, user); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nInterrupted.")
			_ = engine.End(context.Background())
			return 0
		}
		slog.Error("interview error", "err", err)
		return 1
	}
	return 0
}

// runInterview drives one full session: start, the question/answer loop,
// then feedback.
func runInterview(ctx context.Context, engine *session.Engine, user string) error {
	lines := readLines(ctx)

	if err := engine.Start(ctx, user); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	fmt.Printf("Session %s started.\n", engine.SessionID())
	fmt.Println(`Type your answer and press Enter. "/end" finishes early.`)

	for {
		switch engine.Status() {
		case session.AwaitingAnswer:
			fmt.Printf("\nQ%d: %s\n> ", engine.QuestionNumber(), engine.CurrentQuestion())
			answer, endRequested, err := awaitAnswer(ctx, engine, lines)
			if endRequested {
				if err := engine.End(ctx); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				if recoverable(err) {
					fmt.Println("(temporary failure, try again)")
					continue
				}
				return err
			}
			if answer == session.TimeoutPlaceholder {
				fmt.Println("(time expired — recorded as no answer)")
			}

		case session.Active:
			if err := engine.RequestNextQuestion(ctx, ""); err != nil {
				if recoverable(err) {
					fmt.Println("(temporary failure fetching next question, retrying)")
					continue
				}
				return err
			}

		case session.Evaluating:
			fb, err := engine.Feedback(ctx)
			if err != nil {
				return fmt.Errorf("feedback: %w", err)
			}
			printFeedback(fb)
			return nil

		case session.Completed:
			fb, err := engine.Feedback(ctx)
			if err != nil {
				return fmt.Errorf("feedback: %w", err)
			}
			printFeedback(fb)
			return nil

		case session.Failed:
			return errors.New("session failed")

		default:
			return fmt.Errorf("unexpected session state %s", engine.Status())
		}

		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// awaitAnswer runs one answer window, intercepting the "/end" command by
// cancelling the window's context so no placeholder answer is recorded.
func awaitAnswer(ctx context.Context, engine *session.Engine, lines <-chan string) (answer string, endRequested bool, err error) {
	windowCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	forward := make(chan string, 1)
	ended := make(chan struct{}, 1)
	go func() {
		select {
		case line, ok := <-lines:
			if !ok || strings.TrimSpace(line) == "/end" {
				ended <- struct{}{}
				cancel()
				return
			}
			forward <- line
		case <-windowCtx.Done():
		}
	}()

	answer, err = engine.AwaitTextAnswer(windowCtx, forward)
	if err != nil && windowCtx.Err() != nil && ctx.Err() == nil {
		select {
		case <-ended:
			return "", true, nil
		default:
		}
	}
	return answer, false, err
}

// readLines forwards stdin lines to a channel the answer loop selects on.
// The goroutine exits with the process; stdin has no portable unblock.
func readLines(ctx context.Context) <-chan string {
	out := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case out <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		close(out)
	}()
	return out
}

func recoverable(err error) bool {
	return resilience.Recoverable(err) || errors.Is(err, resilience.ErrInFlight)
}

// ── Provider wiring ───────────────────────────────────────────────────────────

func buildTTS(cfg *config.Config) (tts.Provider, error) {
	var (
		p   tts.Provider
		err error
	)
	switch cfg.Providers.TTS.Name {
	case "remote":
		p, err = ttsremote.New(cfg.Service.BaseURL, ttsremote.WithTimeout(cfg.Service.Timeout))
	case "openai":
		p, err = ttsopenai.New(cfg.Providers.TTS.APIKey, cfg.Providers.TTS.Model)
	case "mock":
		p = &ttsmock.Provider{}
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.Providers.TTS.Name)
	}
	if err != nil {
		return nil, err
	}
	if ttl := cfg.Providers.TTS.CacheTTL; ttl > 0 {
		p = ttscache.New(p, ttscache.WithTTL(ttl))
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)
	return p, nil
}

func buildSTT(cfg *config.Config) (stt.Provider, error) {
	var (
		p   stt.Provider
		err error
	)
	switch cfg.Providers.STT.Name {
	case "remote":
		p, err = sttremote.New(cfg.Service.BaseURL, sttremote.WithTimeout(cfg.Service.Timeout))
	case "openai":
		var opts []sttopenai.Option
		if lang := cfg.Providers.STT.Language; lang != "" {
			opts = append(opts, sttopenai.WithLanguage(lang))
		}
		p, err = sttopenai.New(cfg.Providers.STT.APIKey, cfg.Providers.STT.Model, opts...)
	case "deepgram":
		var opts []sttdeepgram.Option
		if model := cfg.Providers.STT.Model; model != "" {
			opts = append(opts, sttdeepgram.WithModel(model))
		}
		if lang := cfg.Providers.STT.Language; lang != "" {
			opts = append(opts, sttdeepgram.WithLanguage(lang))
		}
		p, err = sttdeepgram.New(cfg.Providers.STT.APIKey, opts...)
	case "mock":
		p = &sttmock.Provider{}
	default:
		return nil, fmt.Errorf("unknown stt provider %q", cfg.Providers.STT.Name)
	}
	if err != nil {
		return nil, err
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)
	return p, nil
}

// ── Console output ────────────────────────────────────────────────────────────

// consoleListener surfaces playback problems the queue would otherwise
// only log.
type consoleListener struct{}

func (consoleListener) ItemStarted(playback.Item)         {}
func (consoleListener) ItemFinished(playback.Item, error) {}

func (consoleListener) ManualPlayNeeded(item playback.Item, err error) {
	fmt.Printf("(audio for %q unavailable: %v)\n", item.Label, err)
}

func (consoleListener) Halted(err error) {
	fmt.Printf("(playback paused: %v)\n", err)
}

func printBanner(cfg *config.Config, user string) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        Intervox — mock interview      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("User", user)
	printRow("Variant", string(cfg.Interview.Variant))
	printRow("Questions", fmt.Sprintf("up to %d", cfg.Interview.MaxQuestions))
	printRow("Answer window", cfg.Interview.AnswerWindow.String())
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", key, value)
}

func printFeedback(fb interview.Feedback) {
	fmt.Println("\n── Interview feedback ──")
	if fb.Source == interview.FeedbackSourceLocalEstimate {
		fmt.Println("(server evaluation unavailable — showing a local estimate)")
	}
	fmt.Printf("Overall score : %.1f\n", fb.OverallScore)
	fmt.Printf("Relevance     : %.0f\n", fb.ComponentScores.Relevance)
	fmt.Printf("Technical     : %.0f\n", fb.ComponentScores.TechnicalAccuracy)
	fmt.Printf("Communication : %.0f\n", fb.ComponentScores.Communication)
	for _, s := range fb.Strengths {
		fmt.Printf("  + %s\n", s)
	}
	for _, s := range fb.Improvements {
		fmt.Printf("  - %s\n", s)
	}
	for _, s := range fb.Recommendations {
		fmt.Printf("  * %s\n", s)
	}
	if fb.Summary != "" {
		fmt.Println(fb.Summary)
	}
}
