package demo

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinytelemetry/fingervote/internal/model"
)

// Page is the kiosk screen currently shown.
type Page int

const (
	PageWelcome Page = iota
	PageScanner
	PageDashboard
	PageThankYou
	PageAdmin
)

func (p Page) String() string {
	switch p {
	case PageWelcome:
		return "welcome"
	case PageScanner:
		return "scanner"
	case PageDashboard:
		return "dashboard"
	case PageThankYou:
		return "thank-you"
	case PageAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ToastKind colours a toast notification.
type ToastKind int

const (
	ToastSuccess ToastKind = iota
	ToastError
	ToastWarning
)

// Toast is a transient notification.
type Toast struct {
	Message string
	Kind    ToastKind
}

// Receipt is the thank-you summary of a cast vote.
type Receipt struct {
	Position  string
	Candidate model.Candidate
	Time      time.Time
}

// ScanOutcome reports the end of a simulated scan. RetryAfter is set on
// failure and tells the caller when to return to the welcome page.
type ScanOutcome struct {
	Done       bool
	Voter      model.Voter
	Success    bool
	RetryAfter time.Duration
}

var (
	ErrNoSession   = errors.New("demo: no voter signed in")
	ErrNoSelection = errors.New("demo: no candidate selected")
	ErrScanning    = errors.New("demo: scan already running")
)

// Toast texts.
const (
	msgScanFailed = "Fingerprint verification failed. Please try again."
	msgWelcome    = "Welcome, %s!"
	msgVoteCast   = "Vote cast successfully!"
	msgExpired    = "Session expired due to inactivity"
	msgLoggedOut  = "Logged out successfully"
	msgRefreshed  = "Data refreshed successfully"
	msgReports    = "Reports generated successfully"
	msgLanguage   = "Language changed to %s"
)

// Activity actions.
const (
	ActionLogin    = "Login"
	ActionVoteCast = "Vote Cast"
	ActionLogout   = "Logout"
)

// Config tunes the demo kiosk.
type Config struct {
	Position       string
	SessionTimeout time.Duration
	ScanTick       time.Duration
	ScanStep       int
	SuccessRate    float64
	FailureDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Position == "" {
		c.Position = "Student Council President"
	}
	if c.SessionTimeout <= 0 {
		c.SessionTimeout = model.DefaultSessionTimeout
	}
	if c.ScanTick <= 0 {
		c.ScanTick = 50 * time.Millisecond
	}
	if c.ScanStep <= 0 {
		c.ScanStep = 2
	}
	if c.SuccessRate <= 0 {
		c.SuccessRate = 0.8
	}
	if c.FailureDelay <= 0 {
		c.FailureDelay = 2 * time.Second
	}
	return c
}

// ActivityLog receives the kiosk's activity rows.
type ActivityLog interface {
	AppendActivity(entry model.ActivityEntry) error
}

type Option func(*Kiosk)

// WithActivityLog routes activity rows somewhere other than the store,
// typically an audit recorder.
func WithActivityLog(l ActivityLog) Option {
	return func(k *Kiosk) { k.activity = l }
}

func WithClock(now func() time.Time) Option {
	return func(k *Kiosk) { k.now = now }
}

// WithRand replaces the random source used to pick scan outcomes.
func WithRand(float func() float64, intn func(n int) int) Option {
	return func(k *Kiosk) {
		k.float = float
		k.intn = intn
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(k *Kiosk) { k.logger = l }
}

// Kiosk is the demo election front end: scanner, ballot, session timer and
// admin dashboard. It is safe for concurrent use.
type Kiosk struct {
	cfg      Config
	store    model.ElectionStore
	activity ActivityLog
	now      func() time.Time
	float    func() float64
	intn     func(n int) int
	logger   zerolog.Logger

	mu          sync.Mutex
	lang        Lang
	page        Page
	scanning    bool
	progress    int
	voter       *model.Voter
	sessionEnds time.Time
	selected    *model.Candidate
	receipt     *Receipt
	toasts      []Toast
}

func NewKiosk(s model.ElectionStore, cfg Config, opts ...Option) *Kiosk {
	k := &Kiosk{
		cfg:      cfg.withDefaults(),
		store:    s,
		activity: s,
		now:      time.Now,
		float:    rand.Float64,
		intn:     rand.IntN,
		logger:   zerolog.Nop(),
		lang:     LangEnglish,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kiosk) Config() Config { return k.cfg }

func (k *Kiosk) Page() Page {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.page
}

func (k *Kiosk) Lang() Lang {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lang
}

// T translates key in the current language.
func (k *Kiosk) T(key string) string {
	return T(k.Lang(), key)
}

// Voter returns the signed-in voter.
func (k *Kiosk) Voter() (model.Voter, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.voter == nil {
		return model.Voter{}, false
	}
	return *k.voter, true
}

// Selected returns the candidate awaiting confirmation.
func (k *Kiosk) Selected() (model.Candidate, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.selected == nil {
		return model.Candidate{}, false
	}
	return *k.selected, true
}

func (k *Kiosk) Receipt() (Receipt, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.receipt == nil {
		return Receipt{}, false
	}
	return *k.receipt, true
}

func (k *Kiosk) Scanning() (bool, int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.scanning, k.progress
}

// Toasts returns and clears pending notifications.
func (k *Kiosk) Toasts() []Toast {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := k.toasts
	k.toasts = nil
	return out
}

func (k *Kiosk) toast(kind ToastKind, format string, args ...any) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	k.toasts = append(k.toasts, Toast{Message: msg, Kind: kind})
}

func (k *Kiosk) log(voter, action, status string) {
	entry := model.ActivityEntry{Time: k.now(), Voter: voter, Action: action, Status: status}
	if err := k.activity.AppendActivity(entry); err != nil {
		k.logger.Warn().Err(err).Str("action", action).Msg("activity log append failed")
	}
}

// StartScan opens the scanner page and resets progress.
func (k *Kiosk) StartScan() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.scanning {
		return ErrScanning
	}
	k.page = PageScanner
	k.scanning = true
	k.progress = 0
	return nil
}

// ScanTick advances the simulated scan. At 100 % a voter is picked at
// random and authenticated, or the scan fails.
func (k *Kiosk) ScanTick() (ScanOutcome, error) {
	k.mu.Lock()
	if !k.scanning {
		k.mu.Unlock()
		return ScanOutcome{}, nil
	}
	k.progress += k.cfg.ScanStep
	if k.progress < 100 {
		k.mu.Unlock()
		return ScanOutcome{}, nil
	}
	k.progress = 100
	k.scanning = false
	success := k.float() < k.cfg.SuccessRate
	if !success {
		k.toast(ToastError, msgScanFailed)
		k.mu.Unlock()
		return ScanOutcome{Done: true, RetryAfter: k.cfg.FailureDelay}, nil
	}
	k.mu.Unlock()

	voters, err := k.store.Voters()
	if err != nil {
		return ScanOutcome{}, fmt.Errorf("demo: load voters: %w", err)
	}
	if len(voters) == 0 {
		k.mu.Lock()
		k.toast(ToastError, msgScanFailed)
		k.mu.Unlock()
		return ScanOutcome{Done: true, RetryAfter: k.cfg.FailureDelay}, nil
	}
	voter := voters[k.intn(len(voters))]
	k.Authenticate(voter)
	return ScanOutcome{Done: true, Success: true, Voter: voter}, nil
}

// Authenticate signs voter in and starts the session timer.
func (k *Kiosk) Authenticate(voter model.Voter) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.scanning = false
	k.voter = &voter
	k.selected = nil
	k.receipt = nil
	k.sessionEnds = k.now().Add(k.cfg.SessionTimeout)
	k.page = PageDashboard
	k.log(voter.Name, ActionLogin, model.ActivitySuccess)
	k.toast(ToastSuccess, msgWelcome, voter.Name)
}

// Remaining is the time left in the voter session.
func (k *Kiosk) Remaining() time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.voter == nil {
		return 0
	}
	return max(k.sessionEnds.Sub(k.now()), 0)
}

// TimerText renders Remaining as mm:ss, rounding partial seconds up.
func (k *Kiosk) TimerText() string {
	secs := int(math.Ceil(k.Remaining().Seconds()))
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

// Tick expires the session once its timer runs out. It reports whether the
// voter was logged out.
func (k *Kiosk) Tick() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.voter == nil || k.page != PageDashboard || k.now().Before(k.sessionEnds) {
		return false
	}
	k.toast(ToastWarning, msgExpired)
	k.logout()
	return true
}

// Candidates lists the ballot.
func (k *Kiosk) Candidates() ([]model.Candidate, error) {
	return k.store.Candidates()
}

// SelectCandidate opens the confirmation for candidate id.
func (k *Kiosk) SelectCandidate(id int) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.voter == nil {
		return ErrNoSession
	}
	if k.voter.HasVoted {
		return model.ErrAlreadyVoted
	}
	candidates, err := k.store.Candidates()
	if err != nil {
		return fmt.Errorf("demo: load candidates: %w", err)
	}
	for _, c := range candidates {
		if c.ID == id {
			k.selected = &c
			return nil
		}
	}
	return model.ErrCandidateNotFound
}

// CancelVote closes the confirmation.
func (k *Kiosk) CancelVote() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.selected = nil
}

// ConfirmVote casts the selected vote and shows the receipt.
func (k *Kiosk) ConfirmVote() (Receipt, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.voter == nil {
		return Receipt{}, ErrNoSession
	}
	if k.selected == nil {
		return Receipt{}, ErrNoSelection
	}
	if k.voter.HasVoted {
		k.selected = nil
		return Receipt{}, model.ErrAlreadyVoted
	}
	if err := k.store.CastVote(k.voter.ID, k.selected.ID); err != nil {
		return Receipt{}, fmt.Errorf("demo: cast vote: %w", err)
	}
	k.voter.HasVoted = true
	k.log(k.voter.Name, ActionVoteCast, model.ActivitySuccess)
	k.toast(ToastSuccess, msgVoteCast)

	r := Receipt{Position: k.cfg.Position, Candidate: *k.selected, Time: k.now()}
	k.receipt = &r
	k.selected = nil
	k.page = PageThankYou
	return r, nil
}

// Logout ends the voter session.
func (k *Kiosk) Logout() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.logout()
}

func (k *Kiosk) logout() {
	if k.voter != nil {
		k.log(k.voter.Name, ActionLogout, model.ActivitySuccess)
		k.toast(ToastSuccess, msgLoggedOut)
	}
	k.reset()
}

// ShowWelcome returns to the welcome page without logging anything.
func (k *Kiosk) ShowWelcome() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.reset()
}

func (k *Kiosk) reset() {
	k.voter = nil
	k.selected = nil
	k.receipt = nil
	k.scanning = false
	k.progress = 0
	k.page = PageWelcome
}

// ShowAdmin opens the admin dashboard.
func (k *Kiosk) ShowAdmin() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.page = PageAdmin
}

// ToggleLanguage switches between English and Nepali.
func (k *Kiosk) ToggleLanguage() Lang {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lang = k.lang.Toggle()
	k.toast(ToastSuccess, msgLanguage, T(k.lang, "language"))
	return k.lang
}

// Stats computes the admin turnout figures.
func (k *Kiosk) Stats() (model.AdminStats, error) {
	voters, err := k.store.Voters()
	if err != nil {
		return model.AdminStats{}, fmt.Errorf("demo: load voters: %w", err)
	}
	tally, err := k.store.Tally()
	if err != nil {
		return model.AdminStats{}, fmt.Errorf("demo: load tally: %w", err)
	}
	return computeStats(len(voters), tally), nil
}

func computeStats(voters int, tally []model.VoteCount) model.AdminStats {
	st := model.AdminStats{TotalVoters: voters}
	for _, t := range tally {
		st.TotalVotes += t.Count
	}
	if voters > 0 {
		st.TurnoutPercentage = int(math.Round(float64(st.TotalVotes) / float64(voters) * 100))
	}
	return st
}

// Tally returns per-candidate counts for the results chart.
func (k *Kiosk) Tally() ([]model.VoteCount, error) {
	return k.store.Tally()
}

// Activity returns the newest activity rows.
func (k *Kiosk) Activity() ([]model.ActivityEntry, error) {
	return k.store.RecentActivity(model.MaxActivityEntries)
}

// Refresh acknowledges an admin refresh.
func (k *Kiosk) Refresh() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.toast(ToastSuccess, msgRefreshed)
}

// GenerateReport logs the current results and returns them.
func (k *Kiosk) GenerateReport() ([]model.VoteCount, model.AdminStats, error) {
	tally, err := k.store.Tally()
	if err != nil {
		return nil, model.AdminStats{}, fmt.Errorf("demo: load tally: %w", err)
	}
	voters, err := k.store.Voters()
	if err != nil {
		return nil, model.AdminStats{}, fmt.Errorf("demo: load voters: %w", err)
	}
	st := computeStats(len(voters), tally)
	for _, t := range tally {
		k.logger.Info().Int("candidate_id", t.CandidateID).Str("candidate", t.Name).Int("votes", t.Count).Msg("election result")
	}
	k.logger.Info().Int("voters", st.TotalVoters).Int("votes", st.TotalVotes).Int("turnout_pct", st.TurnoutPercentage).Msg("election report")

	k.mu.Lock()
	k.toast(ToastSuccess, msgReports)
	k.mu.Unlock()
	return tally, st, nil
}
