package scanpoll

import (
	"fmt"

	"github.com/tinytelemetry/fingervote/internal/model"
)

const msgSimScanning = "Scanning... %d%%"

// Simulation stands in for the device on kiosks without a reader: it
// advances a progress indicator on a fixed tick and then verifies the
// configured test fingerprint through a Verifier.
type Simulation struct {
	cfg      Config
	verifier *Verifier
	progress int
	running  bool
}

func NewSimulation(cfg Config) *Simulation {
	cfg = cfg.withDefaults()
	return &Simulation{cfg: cfg, verifier: NewVerifier(cfg)}
}

// View returns the progress view while scanning, then the verifier's.
func (s *Simulation) View() View {
	if s.running {
		return View{
			Message:  fmt.Sprintf(msgSimScanning, s.progress),
			Tone:     ToneInfo,
			Waiting:  true,
			Progress: s.progress,
		}
	}
	return s.verifier.View()
}

func (s *Simulation) Progress() int { return s.progress }

func (s *Simulation) Start() ([]Effect, error) {
	if s.running || s.verifier.Busy() {
		return nil, ErrSessionActive
	}
	if s.verifier.redirecting {
		return nil, ErrRedirectPending
	}
	s.running = true
	s.progress = 0
	return []Effect{SimulatedTick{After: s.cfg.SimulatedTick}}, nil
}

// Tick advances the progress by one step.
func (s *Simulation) Tick() []Effect {
	if !s.running {
		return nil
	}
	s.progress += s.cfg.SimulatedStep
	if s.progress < 100 {
		return []Effect{SimulatedTick{After: s.cfg.SimulatedTick}}
	}
	s.progress = 100
	s.running = false
	s.verifier.view.Progress = 100
	effects, err := s.verifier.Begin(s.cfg.TestFingerprintID)
	if err != nil {
		return nil
	}
	return effects
}

// Apply forwards the verification outcome.
func (s *Simulation) Apply(token uint64, result model.VerifyResult, err error) []Effect {
	return s.verifier.Apply(token, result, err)
}

func (s *Simulation) Redirected() { s.verifier.Redirected() }

func (s *Simulation) Cancel() {
	s.running = false
	s.progress = 0
	s.verifier.Cancel()
}
