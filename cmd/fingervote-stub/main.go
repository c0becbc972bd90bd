package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/fingervote/internal/stubserver"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

type stubConfig struct {
	Addr           string
	TriggerTTL     time.Duration
	TriggerRate    float64
	TriggerBurst   int
	MatchThreshold float64
	VotingOpen     bool
	LogLevel       string
}

func main() {
	var cfg stubConfig
	var showVersion bool

	flag.StringVar(&cfg.Addr, "addr", "127.0.0.1:8000", "listen address")
	flag.DurationVar(&cfg.TriggerTTL, "trigger-ttl", 5*time.Minute, "how long a scan trigger stays valid")
	flag.Float64Var(&cfg.TriggerRate, "trigger-rate", 5, "scan triggers allowed per second")
	flag.IntVar(&cfg.TriggerBurst, "trigger-burst", 10, "scan trigger burst size")
	flag.Float64Var(&cfg.MatchThreshold, "match-threshold", 0.85, "minimum score for a match")
	flag.BoolVar(&cfg.VotingOpen, "voting-open", true, "start with a voting session open")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "print version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("fingervote-stub - Development Backend\n")
		fmt.Printf("  Version:    %s\n", version)
		fmt.Printf("  Commit:     %s\n", commit)
		fmt.Printf("  Built:      %s\n", buildTime)
		fmt.Printf("  Go version: %s\n", goVersion)
		return
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg stubConfig) error {
	if cfg.TriggerRate <= 0 {
		return fmt.Errorf("invalid trigger-rate: %v", cfg.TriggerRate)
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		return fmt.Errorf("invalid match-threshold: %v", cfg.MatchThreshold)
	}
	lvl, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log-level: %q", cfg.LogLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(lvl).With().Timestamp().Logger()

	srv := stubserver.NewServer(stubserver.Config{
		Addr:           cfg.Addr,
		TriggerTTL:     cfg.TriggerTTL,
		TriggerRate:    cfg.TriggerRate,
		TriggerBurst:   cfg.TriggerBurst,
		MatchThreshold: cfg.MatchThreshold,
		VotingOpen:     cfg.VotingOpen,
	}, logger)
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start stub backend: %w", err)
	}

	printStartupBanner(cfg, srv.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		fmt.Println("\nShutting down...")
		return srv.Stop()
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func printStartupBanner(cfg stubConfig, addr string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	var lines []string
	lines = append(lines, "")
	lines = append(lines, cyan.Bold(true).Render("    fingervote stub backend")+"  "+dim.Render("v"+version))
	lines = append(lines, dim.Render("    ─────────────────────────────────"))
	lines = append(lines, "")
	lines = append(lines, fmt.Sprintf("    %s  HTTP           %s", check, cyan.Render("http://"+addr)))
	lines = append(lines, fmt.Sprintf("    %s  Device scans   %s", check, dim.Render("POST /api/dev/scan")))
	if cfg.VotingOpen {
		lines = append(lines, fmt.Sprintf("    %s  Voting         %s", check, green.Render("open")))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Voting         %s", dot, dim.Render("closed")))
	}
	lines = append(lines, fmt.Sprintf("    %s  Trigger TTL    %s", check, dim.Render(cfg.TriggerTTL.String())))
	lines = append(lines, "")
	lines = append(lines, bold.Render("    Press Ctrl+C to stop"))
	lines = append(lines, "")

	fmt.Println(strings.Join(lines, "\n"))
}
