// Package control owns the apparatus control state and the shutdown
// policy. A single Orchestrator instance runs the check-act cycle,
// drives the real-time control loop, and exposes status snapshots to
// the presentation layer.
package control

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"empulse-control/internal/bus"
	"empulse-control/internal/safety"
	"empulse-control/internal/sensor"
	"empulse-control/internal/waveform"
)

type State string

const (
	StateStopped          State = "stopped"
	StateInitialized      State = "initialized"
	StateRunning          State = "running"
	StateEmergencyStopped State = "emergency_stopped"
)

type Action string

const (
	ActionNone              Action = "none"
	ActionWarningNotice     Action = "warning_notice"
	ActionSafeShutdown      Action = "safe_shutdown"
	ActionEmergencyShutdown Action = "emergency_shutdown"
)

const (
	DefaultMaxEmergencyShutdowns = 3
	DefaultLoopInterval          = 10 * time.Millisecond
	DefaultQueueCapacity         = 32
)

// Actuator receives the adapted waveform. Hardware dispatch is outside
// this core; the default implementation discards the signal.
type Actuator interface {
	Dispatch(wave []float64) error
}

type NopActuator struct{}

func (NopActuator) Dispatch([]float64) error { return nil }

// Trainable is the calibration side of the sequence predictor, fitted
// once during Initialize.
type Trainable interface {
	Fit(history []float64) error
}

// CheckResult reports one safety check. Safe reflects the computed
// level even when auto-shutdown is disabled; Action records what the
// orchestrator actually did.
type CheckResult struct {
	Safe        bool           `json:"safe"`
	Description string         `json:"description"`
	Action      Action         `json:"action"`
	Level       safety.Level   `json:"level"`
	Reading     safety.Reading `json:"reading"`
	RecordID    string         `json:"record_id"`
}

// Status is a point-in-time copy of the orchestrator state, safe to
// hand to callers.
type Status struct {
	Status                State        `json:"status"`
	IsRunning             bool         `json:"is_running"`
	SafetyEnabled         bool         `json:"safety_enabled"`
	AutoShutdownEnabled   bool         `json:"auto_shutdown_enabled"`
	EmergencyCount        int          `json:"emergency_count"`
	MaxEmergencyShutdowns int          `json:"max_emergency_shutdowns"`
	LastCheckTime         time.Time    `json:"last_check_time"`
	OperationMode         string       `json:"operation_mode"`
	QueueDepth            int          `json:"queue_depth"`
}

type Options struct {
	MaxEmergencyShutdowns int
	LoopInterval          time.Duration
	QueueCapacity         int
	OperationMode         string
	Actuator              Actuator
	Notifier              bus.Notifier
	Logger                *slog.Logger
}

type Orchestrator struct {
	source     sensor.Source
	thresholds *safety.ThresholdStore
	history    *safety.History
	controller *waveform.Controller
	trainer    Trainable
	actuator   Actuator
	notifier   bus.Notifier
	logger     *slog.Logger

	interval     time.Duration
	maxEmergency int
	input        chan []float64

	mu             sync.Mutex
	state          State
	running        bool
	safetyEnabled  bool
	autoShutdown   bool
	emergencyCount int
	lastCheck      time.Time
	operationMode  string
	params         waveform.TargetSpec
	loopStop       chan struct{}
	loopDone       chan struct{}
}

func New(source sensor.Source, thresholds *safety.ThresholdStore, history *safety.History, controller *waveform.Controller, trainer Trainable, opts Options) *Orchestrator {
	if opts.MaxEmergencyShutdowns <= 0 {
		opts.MaxEmergencyShutdowns = DefaultMaxEmergencyShutdowns
	}
	if opts.LoopInterval <= 0 {
		opts.LoopInterval = DefaultLoopInterval
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = DefaultQueueCapacity
	}
	if opts.OperationMode == "" {
		opts.OperationMode = "simulation"
	}
	if opts.Actuator == nil {
		opts.Actuator = NopActuator{}
	}
	if opts.Notifier == nil {
		opts.Notifier = bus.NopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		source:        source,
		thresholds:    thresholds,
		history:       history,
		controller:    controller,
		trainer:       trainer,
		actuator:      opts.Actuator,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		interval:      opts.LoopInterval,
		maxEmergency:  opts.MaxEmergencyShutdowns,
		input:         make(chan []float64, opts.QueueCapacity),
		state:         StateStopped,
		safetyEnabled: true,
		autoShutdown:  true,
		operationMode: opts.OperationMode,
	}
}

// Initialize fits the predictive collaborators against historical data.
// A malformed history is reported and leaves the state untouched.
func (o *Orchestrator) Initialize(history []float64) error {
	o.mu.Lock()
	if o.state != StateStopped {
		state := o.state
		o.mu.Unlock()
		return fmt.Errorf("initialize only valid from %s, current state is %s", StateStopped, state)
	}
	o.mu.Unlock()

	if err := o.trainer.Fit(history); err != nil {
		o.logger.Warn("model initialization failed", slog.String("error", err.Error()))
		return fmt.Errorf("initialize: %w", err)
	}

	o.mu.Lock()
	if o.state == StateStopped {
		o.state = StateInitialized
	}
	o.mu.Unlock()
	o.logger.Info("system initialized", slog.Int("history_samples", len(history)))
	return nil
}

// PerformSafetyCheck pulls one reading, classifies it, records it, and
// applies the shutdown policy. A sensor failure skips the cycle and is
// reported without touching the ledger or the state.
func (o *Orchestrator) PerformSafetyCheck() (CheckResult, error) {
	reading, err := o.source.Generate()
	if err != nil {
		o.logger.Warn("sensor reading unavailable, skipping check", slog.String("error", err.Error()))
		return CheckResult{}, fmt.Errorf("sensor read: %w", err)
	}

	level, description, violations := safety.Classify(reading, o.thresholds.Snapshot())
	rec := safety.NewRecord(level, reading, violations)
	o.history.Record(rec)

	o.mu.Lock()
	o.lastCheck = time.Now().UTC()
	shutdownAllowed := o.autoShutdown && o.safetyEnabled
	o.mu.Unlock()

	result := CheckResult{
		Safe:        true,
		Description: description,
		Action:      ActionNone,
		Level:       level,
		Reading:     rec.Reading,
		RecordID:    rec.ID,
	}

	switch {
	case level == safety.LevelCritical:
		result.Safe = false
		if shutdownAllowed {
			result.Action = ActionEmergencyShutdown
			o.EmergencyShutdown()
		}
	case level == safety.LevelDanger:
		result.Safe = false
		if shutdownAllowed {
			result.Action = ActionSafeShutdown
			o.SafeShutdown()
		}
	case level == safety.LevelWarning:
		result.Action = ActionWarningNotice
	}

	if level >= safety.LevelDanger {
		evt := bus.AlertEvent{
			ID:          rec.ID,
			Level:       level.String(),
			Action:      string(result.Action),
			Description: description,
			Violations:  rec.Violations,
			Reading:     map[string]float64(rec.Reading),
			TriggeredAt: rec.Timestamp,
		}
		if err := o.notifier.PublishAlert(evt); err != nil {
			o.logger.Warn("alert publish failed", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

// EmergencyShutdown stops the control loop, latches the
// emergency_stopped state, and counts toward the lockout. A repeat call
// while already emergency-stopped is a no-op.
func (o *Orchestrator) EmergencyShutdown() {
	o.mu.Lock()
	if o.state == StateEmergencyStopped {
		o.mu.Unlock()
		return
	}
	done := o.stopLoopLocked()
	o.state = StateEmergencyStopped
	o.emergencyCount++
	count := o.emergencyCount
	lockout := count >= o.maxEmergency && o.safetyEnabled
	if lockout {
		o.safetyEnabled = false
	}
	o.mu.Unlock()

	if done != nil {
		<-done
	}
	o.logger.Error("emergency shutdown executed", slog.Int("emergency_count", count))
	if lockout {
		o.logger.Error("emergency shutdown limit reached, safety monitoring disabled",
			slog.Int("limit", o.maxEmergency),
		)
	}
}

// SafeShutdown stops the control loop and returns to stopped.
// Idempotent; it never downgrades an emergency stop.
func (o *Orchestrator) SafeShutdown() {
	o.mu.Lock()
	if o.state == StateEmergencyStopped {
		o.mu.Unlock()
		return
	}
	alreadyStopped := o.state == StateStopped
	done := o.stopLoopLocked()
	o.state = StateStopped
	o.mu.Unlock()

	if done != nil {
		<-done
	}
	if !alreadyStopped {
		o.logger.Info("safe shutdown executed")
	}
}

// Reset clears an emergency stop after operator intervention. It is the
// only path out of emergency_stopped.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateEmergencyStopped {
		return fmt.Errorf("reset only valid from %s, current state is %s", StateEmergencyStopped, o.state)
	}
	o.state = StateStopped
	o.logger.Info("emergency stop reset")
	return nil
}

// Start begins the real-time control loop. Valid only from stopped or
// initialized.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateStopped && o.state != StateInitialized {
		return fmt.Errorf("cannot start real-time control from state %s", o.state)
	}
	o.state = StateRunning
	o.running = true
	o.loopStop = make(chan struct{})
	o.loopDone = make(chan struct{})
	go o.runLoop(o.loopStop, o.loopDone)
	o.logger.Info("real-time control started", slog.Duration("interval", o.interval))
	return nil
}

// Stop is the external safe-stop entry point.
func (o *Orchestrator) Stop() {
	o.SafeShutdown()
}

// Submit queues input samples for the control loop. When the queue is
// full the oldest queued sample is dropped so the loop always works on
// the freshest data.
func (o *Orchestrator) Submit(samples []float64) {
	for {
		select {
		case o.input <- samples:
			return
		default:
		}
		select {
		case <-o.input:
		default:
		}
	}
}

// SetParameters merges the patch into the control parameters consumed
// by the waveform controller.
func (o *Orchestrator) SetParameters(patch waveform.TargetSpec) {
	o.mu.Lock()
	o.params = o.params.Merge(patch)
	o.mu.Unlock()
}

func (o *Orchestrator) Parameters() waveform.TargetSpec {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params
}

// SetSafetyEnabled toggles safety monitoring. Re-enabling after a
// lockout clears the emergency counter; that is a deliberate operator
// action, never automatic.
func (o *Orchestrator) SetSafetyEnabled(enabled bool) {
	o.mu.Lock()
	o.safetyEnabled = enabled
	if enabled {
		o.emergencyCount = 0
	}
	o.mu.Unlock()
}

func (o *Orchestrator) SetAutoShutdown(enabled bool) {
	o.mu.Lock()
	o.autoShutdown = enabled
	o.mu.Unlock()
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		Status:                o.state,
		IsRunning:             o.running,
		SafetyEnabled:         o.safetyEnabled,
		AutoShutdownEnabled:   o.autoShutdown,
		EmergencyCount:        o.emergencyCount,
		MaxEmergencyShutdowns: o.maxEmergency,
		LastCheckTime:         o.lastCheck,
		OperationMode:         o.operationMode,
		QueueDepth:            len(o.input),
	}
}

// stopLoopLocked signals the loop to exit and returns its done channel;
// the caller must wait on it after releasing the mutex.
func (o *Orchestrator) stopLoopLocked() chan struct{} {
	o.running = false
	if o.loopStop == nil {
		return nil
	}
	close(o.loopStop)
	done := o.loopDone
	o.loopStop = nil
	o.loopDone = nil
	return done
}

func (o *Orchestrator) runLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			o.step()
		}
	}
}

// step consumes at most one queued input per period; an empty queue is
// an idle tick.
func (o *Orchestrator) step() {
	select {
	case samples := <-o.input:
		adapted, err := o.controller.Adapt(samples, o.Parameters())
		if err != nil {
			o.logger.Warn("waveform adaptation failed", slog.String("error", err.Error()))
			return
		}
		if err := o.actuator.Dispatch(adapted); err != nil {
			o.logger.Warn("actuator dispatch failed", slog.String("error", err.Error()))
		}
	default:
	}
}
