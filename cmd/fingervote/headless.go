package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/enroll"
	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanpoll"
)

var (
	proceedFlag bool
	watchFlag   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Trigger a match scan and poll until it finishes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHeadless(cmd, func(ctx context.Context, h *headless) error {
			return h.scan(ctx)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify [FINGERPRINT_ID]",
	Short: "Verify a fingerprint id, or run the simulated scanner",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHeadless(cmd, func(ctx context.Context, h *headless) error {
			if h.cfg.Simulated {
				return h.simulate(ctx)
			}
			if len(args) == 0 {
				return errors.New("a fingerprint id is required unless --simulated is set")
			}
			return h.verify(ctx, args[0])
		})
	},
}

var enrollCmd = &cobra.Command{
	Use:   "enroll VOTER_ID",
	Short: "Arm the device to capture a template for a voter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withHeadless(cmd, func(ctx context.Context, h *headless) error {
			return h.enroll(ctx, model.VoterID(args[0]))
		})
	},
}

func init() {
	scanCmd.Flags().BoolVar(&proceedFlag, "proceed", false, "hand off to the voter home page as soon as a voter matches")
	scanCmd.Flags().Duration("max-wait", 0, "give up on a pending scan after this long (negative disables)")
	scanCmd.Flags().Duration("poll-interval", 0, "time between scan result requests")
	verifyCmd.Flags().Bool("simulated", false, "run the simulated scanner against the test fingerprint")
	enrollCmd.Flags().BoolVar(&watchFlag, "watch", false, "keep polling for captured fingerprint ids until interrupted")
}

// headless carries what the non-interactive commands share.
type headless struct {
	cfg      appConfig
	out      io.Writer
	logger   zerolog.Logger
	backend  model.ScanBackend
	recorder *audit.Recorder
}

func withHeadless(cmd *cobra.Command, fn func(context.Context, *headless) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := consoleLogger(cfg)
	client, err := cfg.newClient()
	if err != nil {
		return err
	}
	if err := client.Prime(ctx); err != nil {
		logger.Debug().Err(err).Msg("csrf priming failed")
	}

	journal, err := audit.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("failed to open activity journal: %w", err)
	}
	defer journal.Close()

	h := &headless{
		cfg:     cfg,
		out:     os.Stdout,
		logger:  logger,
		backend: client,
		// Entries stay uncommitted until the kiosk replays them into its store.
		recorder: audit.NewRecorder(journal, nil, logger),
	}
	err = fn(ctx, h)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(h.out, "Cancelled.")
		return nil
	}
	return err
}

func (h *headless) record(ev audit.Event) {
	if err := h.recorder.Record(ev); err != nil {
		h.logger.Warn().Err(err).Msg("journal record failed")
	}
}

var toneStyles = map[scanpoll.Tone]lipgloss.Style{
	scanpoll.ToneInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	scanpoll.ToneSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true),
	scanpoll.ToneWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	scanpoll.ToneDanger:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
}

// render prints one line per distinct view.
func (h *headless) render(v scanpoll.View) {
	line := toneStyles[v.Tone].Render(v.Message)
	if v.Progress > 0 {
		line = fmt.Sprintf("[%3d%%] %s", v.Progress, line)
	}
	fmt.Fprintln(h.out, line)
}

func (h *headless) navigate(path string) {
	fmt.Fprintf(h.out, "-> %s%s\n", strings.TrimSuffix(h.cfg.BackendURL, "/"), path)
}

func (h *headless) runner(backend model.ScanBackend) *scanpoll.Runner {
	return scanpoll.NewRunner(backend, h.cfg.scanConfig(),
		scanpoll.WithRender(h.render),
		scanpoll.WithNavigator(h.navigate),
		scanpoll.WithAutoProceed(proceedFlag),
		scanpoll.WithLogger(h.logger),
	)
}

func (h *headless) scan(ctx context.Context) error {
	session, err := h.runner(h.backend).Run(ctx)
	if session.Status.IsTerminal() {
		h.record(audit.ScanEvent(session))
	}
	if err != nil {
		return err
	}
	if session.Status != model.StatusMatched {
		return fmt.Errorf("scan finished with status %s", session.Status)
	}
	return nil
}

func (h *headless) verify(ctx context.Context, fingerprintID string) error {
	capture := &verifyCapture{ScanBackend: h.backend}
	v, err := h.runner(capture).Verify(ctx, fingerprintID)
	if err != nil {
		return err
	}
	res, rerr := capture.last()
	h.record(audit.VerifyEvent(fingerprintID, res, rerr, time.Now()))
	return verifyOutcome(v)
}

func (h *headless) simulate(ctx context.Context) error {
	capture := &verifyCapture{ScanBackend: h.backend}
	v, err := h.runner(capture).Simulate(ctx)
	if err != nil {
		return err
	}
	res, rerr := capture.last()
	h.record(audit.VerifyEvent(h.cfg.TestFingerprint, res, rerr, time.Now()))
	return verifyOutcome(v)
}

func verifyOutcome(v scanpoll.View) error {
	if v.Tone == scanpoll.ToneSuccess {
		return nil
	}
	return fmt.Errorf("verification failed: %s", v.Message)
}

// enroll sends the register trigger and, with --watch, keeps auto-filling
// the captured fingerprint id until interrupted.
func (h *headless) enroll(ctx context.Context, voterID model.VoterID) error {
	registrar := enroll.NewRegistrar(h.backend, h.logger)
	autofill := enroll.NewAutofill(h.backend,
		enroll.WithInterval(h.cfg.PollInterval),
		enroll.WithLogger(h.logger),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := registrar.Trigger(gctx, voterID)
		form := registrar.Form()
		h.record(audit.EnrollEvent(voterID, form.TriggerID, err, time.Now()))
		h.printForm(form)
		if err != nil {
			autofill.Stop()
		}
		return err
	})

	g.Go(func() error {
		if !watchFlag {
			if autofill.Poll(gctx, time.Now()) {
				fmt.Fprintln(h.out, autofill.Message())
			}
			return nil
		}
		err := autofill.Run(gctx, func(string) {
			fmt.Fprintln(h.out, autofill.Message())
		})
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	})

	return g.Wait()
}

func (h *headless) printForm(f enroll.Form) {
	style := toneStyles[scanpoll.ToneSuccess]
	if f.Failed {
		style = toneStyles[scanpoll.ToneDanger]
	}
	fmt.Fprintln(h.out, style.Render(f.Message))
	for _, o := range f.Options {
		if o.Value == "" {
			continue
		}
		fmt.Fprintf(h.out, "  %s\n", o.Label)
	}
	if !f.RegisterEnabled {
		fmt.Fprintln(h.out, "  (no pending templates)")
	}
}

// verifyCapture keeps the last verification outcome for the journal.
type verifyCapture struct {
	model.ScanBackend

	mu  sync.Mutex
	res model.VerifyResult
	err error
}

func (c *verifyCapture) VerifyFingerprint(ctx context.Context, fingerprintID string) (model.VerifyResult, error) {
	res, err := c.ScanBackend.VerifyFingerprint(ctx, fingerprintID)
	c.mu.Lock()
	c.res, c.err = res, err
	c.mu.Unlock()
	return res, err
}

func (c *verifyCapture) last() (model.VerifyResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.res, c.err
}
