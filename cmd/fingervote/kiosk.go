package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/demo"
	"github.com/tinytelemetry/fingervote/internal/store"
	"github.com/tinytelemetry/fingervote/internal/tui"
)

var kioskCmd = &cobra.Command{
	Use:   "kiosk",
	Short: "Open the full-screen voting kiosk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runKiosk(ctx, cfg)
	},
}

func init() {
	kioskCmd.Flags().Bool("simulated", false, "use the simulated scanner on the verify page")
}

func runKiosk(ctx context.Context, cfg appConfig) error {
	logger, closeLog, err := fileLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	client, err := cfg.newClient()
	if err != nil {
		return err
	}
	if err := client.Prime(ctx); err != nil {
		// The pages report connection errors as they happen.
		logger.Warn().Err(err).Str("backend", client.BaseURL()).Msg("backend not reachable at startup")
	}

	st, err := store.Open(cfg.DBPath, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open election store: %w", err)
	}
	defer st.Close()

	seed, err := demo.LoadSeed(time.Now())
	if err != nil {
		return err
	}
	seeded, err := st.Seed(seed.Data)
	if err != nil {
		return fmt.Errorf("failed to seed election store: %w", err)
	}
	if seeded {
		logger.Info().Str("db", st.DBPath()).Msg("seeded demo election")
	}

	journal, err := audit.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open activity journal: %w", err)
	}
	defer journal.Close()

	recorder := audit.NewRecorder(journal, st, logger)
	if _, err := recorder.Sync(); err != nil {
		logger.Warn().Err(err).Msg("journal replay incomplete")
	}

	kiosk := demo.NewKiosk(st, demo.Config{
		Position:       seed.Position,
		SessionTimeout: cfg.SessionTimeout,
	}, demo.WithActivityLog(recorder), demo.WithLogger(logger))

	deps := &tui.Deps{
		Ctx:     ctx,
		Backend: client,
		Scan:    cfg.scanConfig(),
		Journal: recorder,
		Navigate: func(path string) {
			logger.Info().Str("path", path).Msg("navigate")
		},
		Logger: logger,
	}

	app := tui.NewApp(
		tui.NewScanPage(deps),
		tui.NewVerifyPage(deps, cfg.Simulated),
		tui.NewEnrollPage(deps),
		tui.NewDemoPage(deps, kiosk),
	)

	logger.Info().Str("backend", client.BaseURL()).Bool("simulated", cfg.Simulated).Msg("kiosk started")

	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		if strings.Contains(err.Error(), "TTY") || strings.Contains(err.Error(), "/dev/tty") {
			return fmt.Errorf("kiosk requires a real terminal")
		}
		return fmt.Errorf("error running kiosk: %w", err)
	}
	return nil
}
