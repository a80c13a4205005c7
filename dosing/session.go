package dosing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"doseedge/backend"
	"doseedge/config"
)

// requestTimeout bounds every backend call the session makes on its own
// behalf (polls, reloads, scanner control driven by timers).
const requestTimeout = 8 * time.Second

// Backend is the slice of the remote backend API the session drives.
type Backend interface {
	ActiveMaterial(ctx context.Context) (*backend.ActiveMaterial, error)
	WeighAndUpdate(ctx context.Context) (backend.WeighResult, error)
	BypassPending(ctx context.Context, recipeID int64) (string, error)
	StartScanner(ctx context.Context) error
	StopScanner(ctx context.Context) error
}

// Session is the dosing workflow orchestrator for one workstation. It owns
// the scan/weigh state machine: resolve the active material, arm the scanner,
// verify the scanned barcode, poll weigh-and-update until the dose lands,
// then advance to the next pending material.
//
// All mutable state is guarded by mu. Timer callbacks and backend responses
// carry the generation counter captured when they were armed; any transition
// bumps the generation, so a stale callback observing a different generation
// discards itself. Backend calls are made outside the lock.
type Session struct {
	cfg     config.DosingConfig
	backend Backend
	emitter EventEmitter

	mu         sync.Mutex
	state      string
	material   *backend.ActiveMaterial
	matchCount int // matched scans since the last batch boundary
	gen        uint64
	timers     *timerRegistry
	closed     bool
}

// NewSession creates an orchestrator in the idle state. Call Resolve to load
// the active material.
func NewSession(cfg config.DosingConfig, b Backend, emitter EventEmitter) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MismatchDelay <= 0 {
		cfg.MismatchDelay = 2 * time.Second
	}
	if cfg.OverweightInterval <= 0 {
		cfg.OverweightInterval = 3 * time.Second
	}
	if cfg.OverweightTimeout <= 0 {
		cfg.OverweightTimeout = 2 * time.Minute
	}
	return &Session{
		cfg:     cfg,
		backend: b,
		emitter: emitter,
		state:   StateIdle,
		timers:  newTimerRegistry(),
	}
}

// Close cancels all timers and rejects further work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.gen++
	s.timers.cancelAll()
	s.mu.Unlock()
}

// Snapshot is the session state as exposed to the operator interface.
type Snapshot struct {
	State      string                  `json:"state"`
	Material   *backend.ActiveMaterial `json:"material"`
	MatchCount int                     `json:"match_count"`
	Polling    bool                    `json:"polling"`
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		State:      s.state,
		MatchCount: s.matchCount,
		Polling:    polling(s.state),
	}
	if s.material != nil {
		m := *s.material
		snap.Material = &m
	}
	return snap
}

// setState transitions to a new state and emits the change. Callers hold mu.
func (s *Session) setState(newState string) {
	if s.state == newState {
		return
	}
	old := s.state
	s.state = newState
	s.emitter.EmitStateChanged(old, newState, s.material)
}

// Resolve fetches the active material and enters awaiting_scan (or idle if
// nothing is pending). Any in-flight work is abandoned first.
func (s *Session) Resolve() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	s.gen++
	gen := s.gen
	s.timers.cancelAll()
	s.matchCount = 0
	s.mu.Unlock()
	return s.reload(gen, false)
}

// reload fetches the active material and applies it, unless the session has
// moved on since gen was captured. With arm set the scanner is re-armed
// without operator action once a material resolves.
func (s *Session) reload(gen uint64, arm bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	mat, err := s.backend.ActiveMaterial(ctx)
	cancel()

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		// Known-safe state: no material, no timers, operator informed.
		s.material = nil
		s.matchCount = 0
		s.setState(StateIdle)
		s.emitter.EmitNotice(NoticeError, "failed to load active material: "+err.Error())
		s.mu.Unlock()
		return err
	}
	if mat == nil {
		s.material = nil
		s.matchCount = 0
		s.setState(StateIdle)
		s.mu.Unlock()
		return nil
	}
	s.material = mat
	if !arm {
		s.setState(StateAwaitingScan)
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sctx, scancel := context.WithTimeout(context.Background(), requestTimeout)
	err = s.backend.StartScanner(sctx)
	scancel()

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.setState(StateAwaitingScan)
		s.emitter.EmitNotice(NoticeError, "failed to re-arm scanner: "+err.Error())
	} else {
		s.setState(StateListening)
	}
	s.mu.Unlock()
	return nil
}

// StartScan arms the barcode scanner for the current material.
func (s *Session) StartScan(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	if s.state != StateAwaitingScan {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot start scan in state %q", state)
	}
	if s.material == nil || NormalizeBarcode(s.material.Barcode) == "" {
		s.mu.Unlock()
		return fmt.Errorf("active material has no barcode configured")
	}
	gen := s.gen
	s.mu.Unlock()

	if err := s.backend.StartScanner(ctx); err != nil {
		s.mu.Lock()
		s.emitter.EmitNotice(NoticeError, "failed to start scanner: "+err.Error())
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if !s.closed && s.gen == gen && s.state == StateAwaitingScan {
		s.setState(StateListening)
	}
	s.mu.Unlock()
	return nil
}

// StopScan stops the scanner and resets the session to awaiting_scan (or
// idle when no material is loaded). The reset happens even if the scanner
// stop call fails; the error is returned for surfacing.
func (s *Session) StopScan(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("session closed")
	}
	s.mu.Unlock()

	stopErr := s.backend.StopScanner(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return stopErr
	}
	s.gen++
	s.timers.cancelAll()
	s.matchCount = 0
	if stopErr != nil {
		s.emitter.EmitNotice(NoticeError, "failed to stop scanner: "+stopErr.Error())
	}
	if s.material != nil {
		s.setState(StateAwaitingScan)
	} else {
		s.setState(StateIdle)
	}
	s.mu.Unlock()
	return stopErr
}

// Bypass rejects all pending materials of the active recipe, re-arms the
// scanner, and resolves whatever the backend considers active next.
// Requires a loaded material.
func (s *Session) Bypass(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", fmt.Errorf("session closed")
	}
	if s.material == nil {
		s.mu.Unlock()
		return "", fmt.Errorf("no active material to bypass")
	}
	recipeID := s.material.RecipeID
	gen := s.gen
	s.mu.Unlock()

	msg, err := s.backend.BypassPending(ctx, recipeID)
	if err != nil {
		s.mu.Lock()
		s.emitter.EmitNotice(NoticeError, "bypass failed: "+err.Error())
		s.mu.Unlock()
		return "", err
	}

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return msg, nil
	}
	s.gen++
	newGen := s.gen
	s.timers.cancelAll()
	s.matchCount = 0
	s.material = nil
	s.setState(StateAdvancing)
	if msg != "" {
		s.emitter.EmitNotice(NoticeInfo, msg)
	}
	s.mu.Unlock()

	s.reload(newGen, true)
	return msg, nil
}

// HandleBarcode processes a scan event. Scans arriving outside the listening
// state are discarded without side effects.
func (s *Session) HandleBarcode(code string) {
	s.mu.Lock()
	if s.closed || !acceptsScan(s.state) || s.material == nil {
		s.mu.Unlock()
		return
	}
	expected := NormalizeBarcode(s.material.Barcode)
	scanned := NormalizeBarcode(code)
	if scanned != expected {
		gen := s.gen
		s.setState(StateMismatch)
		s.emitter.EmitScanMismatch(expected, scanned)
		t := time.AfterFunc(s.cfg.MismatchDelay, func() { s.clearMismatch(gen) })
		s.timers.arm(timerMismatch, func() { t.Stop() })
		s.mu.Unlock()
		return
	}

	s.matchCount++
	gen := s.gen
	mat := *s.material
	s.setState(StateAwaitingWeight)
	s.emitter.EmitScanMatched(&mat, scanned)
	s.mu.Unlock()

	// Exactly one scanner stop per matched scan.
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	err := s.backend.StopScanner(ctx)
	cancel()

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.emitter.EmitNotice(NoticeWarning, "failed to stop scanner after match: "+err.Error())
	}
	if s.state == StateAwaitingWeight {
		s.armPollLocked(gen)
	}
	s.mu.Unlock()
}

// clearMismatch returns the session to listening after the mismatch display
// delay, unless the session has moved on.
func (s *Session) clearMismatch(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen || s.state != StateMismatch {
		return
	}
	s.setState(StateListening)
}

// HandleOrderCreated reacts to a new production order: re-resolve the active
// material. If the resolved material is the same one already in flight, the
// current state is kept; otherwise in-flight work is abandoned.
func (s *Session) HandleOrderCreated() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	gen := s.gen
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	mat, err := s.backend.ActiveMaterial(ctx)
	cancel()

	s.mu.Lock()
	if s.closed || s.gen != gen {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.emitter.EmitNotice(NoticeError, "failed to load active material: "+err.Error())
		s.mu.Unlock()
		return
	}
	if mat != nil && s.material != nil &&
		mat.RecipeID == s.material.RecipeID && mat.MaterialID == s.material.MaterialID &&
		s.state != StateIdle {
		// Same material still pending; the new order changes nothing here.
		s.mu.Unlock()
		return
	}
	s.gen++
	s.timers.cancelAll()
	s.matchCount = 0
	s.material = mat
	if mat != nil {
		s.setState(StateAwaitingScan)
	} else {
		s.setState(StateIdle)
	}
	s.mu.Unlock()
}

// HandleOrderDeleted aborts the in-flight workflow when the deleted order's
// recipe matches the loaded material, then re-resolves.
func (s *Session) HandleOrderDeleted(recipeID int64) {
	s.mu.Lock()
	if s.closed || s.material == nil || s.material.RecipeID != recipeID {
		s.mu.Unlock()
		return
	}
	s.gen++
	gen := s.gen
	s.timers.cancelAll()
	s.matchCount = 0
	s.material = nil
	s.setState(StateAdvancing)
	s.emitter.EmitNotice(NoticeWarning, "active production order was deleted; reloading")
	s.mu.Unlock()

	s.reload(gen, false)
}

// armPollLocked starts the weigh poll loop. Callers hold mu. At most one
// loop exists; arming under the poll name cancels any previous loop first.
func (s *Session) armPollLocked(gen uint64) {
	stop := make(chan struct{})
	s.timers.arm(timerPoll, func() { close(stop) })
	go s.pollLoop(gen, stop)
}

// pollLoop issues weigh-and-update calls at the configured cadence until
// stopped. Calls are sequential; a slow backend delays the next tick rather
// than stacking requests.
func (s *Session) pollLoop(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	for {
		s.pollTick(gen)
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (s *Session) pollTick(gen uint64) {
	s.mu.Lock()
	if s.closed || s.gen != gen || !polling(s.state) {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	res, err := s.backend.WeighAndUpdate(ctx)
	cancel()

	s.mu.Lock()
	if s.closed || s.gen != gen || !polling(s.state) {
		s.mu.Unlock()
		return
	}
	if err != nil {
		// Transient failure: keep polling at cadence, tell the operator.
		s.emitter.EmitNotice(NoticeWarning, "weigh poll failed: "+err.Error())
		s.mu.Unlock()
		return
	}

	switch res.Outcome {
	case backend.WeighPending:
		if s.state == StateOverweight {
			// Weight dropped back under the set point; resume normal polling.
			s.timers.cancel(timerOverweightAlert)
			s.timers.cancel(timerOverweightTimeout)
			s.setState(StateAwaitingWeight)
		}
		s.mu.Unlock()

	case backend.WeighOverweight:
		if s.state == StateAwaitingWeight {
			s.setState(StateOverweight)
			s.emitOverweightLocked(res.Data)
			s.armOverweightLocked(gen)
		}
		s.mu.Unlock()

	case backend.WeighDosed:
		s.handleDosedLocked(gen, res)

	default:
		s.mu.Unlock()
	}
}

// handleDosedLocked records a successful dose and advances. Called with mu
// held; releases it.
func (s *Session) handleDosedLocked(gen uint64, res backend.WeighResult) {
	s.gen++
	newGen := s.gen
	s.timers.cancelAll()

	if s.material != nil && res.Data != nil {
		s.material.Actual = res.Data.Actual
		s.material.Margin = res.Data.Margin
		s.material.Status = res.Data.Status
	}
	var dosed *backend.ActiveMaterial
	if s.material != nil {
		m := *s.material
		dosed = &m
	}
	s.emitter.EmitMaterialDosed(dosed, res.Data, res.ResetDone, res.TotalRemaining)
	if res.ResetDone {
		s.matchCount = 0
		s.emitter.EmitBatchComplete(dosed, res.Data)
	}
	s.setState(StateAdvancing)
	resetDone := res.ResetDone
	// Mid-batch with at least one matched scan behind us: the next material
	// arms without operator action.
	autoArm := !resetDone && s.matchCount > 0
	s.mu.Unlock()

	if resetDone {
		// Batch boundary: the scanner stays off until the operator starts
		// the next round.
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		if err := s.backend.StopScanner(ctx); err != nil {
			s.mu.Lock()
			s.emitter.EmitNotice(NoticeWarning, "failed to stop scanner at batch end: "+err.Error())
			s.mu.Unlock()
		}
		cancel()
	}

	s.reload(newGen, autoArm)
}

// emitOverweightLocked emits the overweight alert with the current material.
// Callers hold mu.
func (s *Session) emitOverweightLocked(data *backend.DosedMaterial) {
	var mat *backend.ActiveMaterial
	if s.material != nil {
		m := *s.material
		mat = &m
	}
	s.emitter.EmitOverweight(mat, data)
}

// armOverweightLocked arms the recurring alert and the give-up timeout.
// Callers hold mu.
func (s *Session) armOverweightLocked(gen uint64) {
	stop := make(chan struct{})
	s.timers.arm(timerOverweightAlert, func() { close(stop) })
	go s.overweightAlertLoop(gen, stop)

	t := time.AfterFunc(s.cfg.OverweightTimeout, func() { s.overweightTimeout(gen) })
	s.timers.arm(timerOverweightTimeout, func() { t.Stop() })
}

// overweightAlertLoop repeats the overweight alert at the configured interval
// while the condition persists.
func (s *Session) overweightAlertLoop(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(s.cfg.OverweightInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		if s.closed || s.gen != gen || s.state != StateOverweight {
			s.mu.Unlock()
			return
		}
		s.emitOverweightLocked(nil)
		s.mu.Unlock()
	}
}

// overweightTimeout gives up on a persistent overweight condition: polling
// stops and the material goes back to awaiting a manual scan start.
func (s *Session) overweightTimeout(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.gen != gen || s.state != StateOverweight {
		return
	}
	s.gen++
	s.timers.cancelAll()
	s.matchCount = 0
	s.setState(StateAwaitingScan)
	s.emitter.EmitNotice(NoticeWarning,
		"overweight condition persisted; polling stopped, remove excess material and restart the scan")
}
