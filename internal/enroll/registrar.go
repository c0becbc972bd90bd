// Package enroll implements the admin side of voter registration: arming the
// device for a register capture, listing captured templates and picking up
// the latest fingerprint id for the voter form.
package enroll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// ErrNoVoterID rejects a register trigger without a voter id.
var ErrNoVoterID = errors.New("enroll: voter id not found")

const (
	msgNoVoterID     = "Voter ID not found."
	msgTriggerSent   = "Scan trigger sent successfully!"
	msgTriggerFailed = "Failed to trigger scan."
	blankOption      = "---------"
)

// Option is one entry of the template dropdown.
type Option struct {
	Value string
	Label string
}

// Form is the rendering state of the registration form.
type Form struct {
	Message         string
	Failed          bool
	TriggerID       string
	Options         []Option
	RegisterEnabled bool
}

// Registrar triggers register scans and keeps the template dropdown current.
type Registrar struct {
	backend model.ScanBackend
	logger  zerolog.Logger

	mu   sync.Mutex
	form Form
}

func NewRegistrar(backend model.ScanBackend, logger zerolog.Logger) *Registrar {
	return &Registrar{
		backend: backend,
		logger:  logger,
		form:    Form{Options: []Option{{Value: "", Label: blankOption}}},
	}
}

// Form returns a copy of the current form state.
func (r *Registrar) Form() Form {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := r.form
	f.Options = append([]Option(nil), r.form.Options...)
	return f
}

// Trigger arms the device to capture a template for voterID and refreshes
// the dropdown on success.
func (r *Registrar) Trigger(ctx context.Context, voterID model.VoterID) error {
	id := model.VoterID(strings.TrimSpace(string(voterID)))
	if id == "" {
		r.setMessage(msgNoVoterID, true, "")
		return ErrNoVoterID
	}

	triggerID, err := r.backend.TriggerScan(ctx, model.TriggerRequest{Action: model.ActionRegister, VoterID: id})
	if err != nil {
		r.logger.Error().Err(err).Str("voter_id", string(id)).Msg("register trigger failed")
		r.setMessage(msgTriggerFailed, true, "")
		return fmt.Errorf("enroll: trigger register scan: %w", err)
	}
	r.logger.Info().Str("voter_id", string(id)).Str("trigger_id", triggerID).Msg("register trigger sent")
	r.setMessage(msgTriggerSent, false, triggerID)

	// A failed refresh keeps the old dropdown and is not a trigger failure.
	_ = r.RefreshTemplates(ctx)
	return nil
}

// RefreshTemplates rebuilds the dropdown from the pending templates. On
// error the previous options stay.
func (r *Registrar) RefreshTemplates(ctx context.Context) error {
	templates, err := r.backend.PendingTemplates(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to update templates")
		return fmt.Errorf("enroll: refresh templates: %w", err)
	}

	options := make([]Option, 0, len(templates)+1)
	options = append(options, Option{Value: "", Label: blankOption})
	for _, t := range templates {
		options = append(options, Option{Value: t.ID, Label: "Template " + t.ID})
	}

	r.mu.Lock()
	r.form.Options = options
	r.form.RegisterEnabled = len(templates) > 0
	r.mu.Unlock()
	return nil
}

func (r *Registrar) setMessage(msg string, failed bool, triggerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.form.Message = msg
	r.form.Failed = failed
	r.form.TriggerID = triggerID
}
