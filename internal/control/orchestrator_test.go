package control

import (
	"errors"
	"sync"
	"testing"
	"time"

	"empulse-control/internal/bus"
	"empulse-control/internal/safety"
	"empulse-control/internal/waveform"
)

type stubSource struct {
	mu      sync.Mutex
	reading safety.Reading
	err     error
}

func (s *stubSource) Generate() (safety.Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.reading.Clone(), nil
}

func (s *stubSource) set(reading safety.Reading) {
	s.mu.Lock()
	s.reading = reading
	s.mu.Unlock()
}

type stubTrainer struct {
	err   error
	calls int
}

func (t *stubTrainer) Fit(history []float64) error {
	t.calls++
	if t.err != nil {
		return t.err
	}
	if len(history) == 0 {
		return errors.New("empty history")
	}
	return nil
}

type stubPredictor struct{}

func (stubPredictor) Window() int                             { return 50 }
func (stubPredictor) Predict([]float64) ([]float64, error)    { return []float64{0}, nil }

type stubGenerator struct{}

func (stubGenerator) Length() int { return 4 }
func (stubGenerator) Generate(count int) ([][]float64, error) {
	return [][]float64{{0.1, 0.2, 0.1, 0}}, nil
}

type recordingActuator struct {
	mu         sync.Mutex
	dispatched [][]float64
}

func (a *recordingActuator) Dispatch(wave []float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.dispatched = append(a.dispatched, wave)
	return nil
}

func (a *recordingActuator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.dispatched)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []bus.AlertEvent
}

func (n *recordingNotifier) PublishAlert(evt bus.AlertEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
	return nil
}

func reading(voltage float64) safety.Reading {
	return safety.Reading{
		safety.MetricVoltage:              voltage,
		safety.MetricCurrent:              30,
		safety.MetricTemperature:          60,
		safety.MetricCapacitorCharge:      0.7,
		safety.MetricInsulationResistance: 1000,
		safety.MetricGroundResistance:     0.1,
	}
}

func newTestOrchestrator(t *testing.T, source *stubSource, opts Options) (*Orchestrator, *safety.History) {
	t.Helper()
	store, err := safety.NewThresholdStore(safety.DefaultThresholds())
	if err != nil {
		t.Fatalf("threshold store: %v", err)
	}
	history := safety.NewHistory(100)
	controller := waveform.NewController(stubPredictor{}, stubGenerator{}, 1, nil)
	orch := New(source, store, history, controller, &stubTrainer{}, opts)
	return orch, history
}

func TestNewStartsStopped(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	status := orch.Status()
	if status.Status != StateStopped || status.IsRunning {
		t.Fatalf("unexpected initial status %+v", status)
	}
	if !status.SafetyEnabled || !status.AutoShutdownEnabled {
		t.Fatalf("safety must default to enabled: %+v", status)
	}
	if status.EmergencyCount != 0 || status.MaxEmergencyShutdowns != DefaultMaxEmergencyShutdowns {
		t.Fatalf("unexpected emergency settings %+v", status)
	}
}

func TestInitializeTransitions(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	if err := orch.Initialize(nil); err == nil {
		t.Fatalf("expected error for malformed history")
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("failed initialize must keep state stopped, got %s", orch.Status().Status)
	}
	if err := orch.Initialize([]float64{1, 2, 3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orch.Status().Status != StateInitialized {
		t.Fatalf("expected initialized got %s", orch.Status().Status)
	}
	if err := orch.Initialize([]float64{1}); err == nil {
		t.Fatalf("initialize must only be valid from stopped")
	}
}

func TestCheckNormal(t *testing.T) {
	orch, history := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Safe || result.Action != ActionNone || result.Level != safety.LevelNormal {
		t.Fatalf("unexpected result %+v", result)
	}
	if history.Len() != 1 {
		t.Fatalf("check must be recorded, len=%d", history.Len())
	}
	if orch.Status().LastCheckTime.IsZero() {
		t.Fatalf("last check time not updated")
	}
}

func TestCheckWarningKeepsState(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(1100)}, Options{})
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Safe || result.Action != ActionWarningNotice || result.Level != safety.LevelWarning {
		t.Fatalf("unexpected result %+v", result)
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("warning must not change state, got %s", orch.Status().Status)
	}
}

func TestCheckDangerTriggersSafeShutdown(t *testing.T) {
	source := &stubSource{reading: reading(800)}
	orch, _ := newTestOrchestrator(t, source, Options{LoopInterval: time.Millisecond})
	if err := orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	source.set(reading(1250))
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Safe || result.Action != ActionSafeShutdown || result.Level != safety.LevelDanger {
		t.Fatalf("unexpected result %+v", result)
	}
	status := orch.Status()
	if status.Status != StateStopped || status.IsRunning {
		t.Fatalf("expected stopped after safe shutdown, got %+v", status)
	}
	if status.EmergencyCount != 0 {
		t.Fatalf("safe shutdown must not count as emergency")
	}
}

func TestCheckCriticalTriggersEmergencyShutdown(t *testing.T) {
	notifier := &recordingNotifier{}
	source := &stubSource{reading: reading(1350)}
	orch, _ := newTestOrchestrator(t, source, Options{Notifier: notifier})
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Safe || result.Action != ActionEmergencyShutdown || result.Level != safety.LevelCritical {
		t.Fatalf("unexpected result %+v", result)
	}
	status := orch.Status()
	if status.Status != StateEmergencyStopped {
		t.Fatalf("expected emergency_stopped got %s", status.Status)
	}
	if status.EmergencyCount != 1 {
		t.Fatalf("expected emergency count 1 got %d", status.EmergencyCount)
	}
	if len(notifier.events) != 1 || notifier.events[0].Action != string(ActionEmergencyShutdown) {
		t.Fatalf("expected one emergency alert event, got %+v", notifier.events)
	}
}

func TestCheckWithAutoShutdownDisabledStillReportsDanger(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(1350)}, Options{})
	orch.SetAutoShutdown(false)
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Safe {
		t.Fatalf("disabling auto-shutdown must not suppress danger reporting")
	}
	if result.Action != ActionNone {
		t.Fatalf("no automatic action expected, got %s", result.Action)
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("state must not change, got %s", orch.Status().Status)
	}
}

func TestEmergencyLockout(t *testing.T) {
	source := &stubSource{reading: reading(1350)}
	orch, _ := newTestOrchestrator(t, source, Options{MaxEmergencyShutdowns: 3})

	for i := 1; i <= 3; i++ {
		result, err := orch.PerformSafetyCheck()
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if result.Action != ActionEmergencyShutdown {
			t.Fatalf("check %d: expected emergency shutdown got %s", i, result.Action)
		}
		if err := orch.Reset(); err != nil {
			t.Fatalf("reset %d: %v", i, err)
		}
	}

	status := orch.Status()
	if status.SafetyEnabled {
		t.Fatalf("expected safety disabled after %d emergencies", status.MaxEmergencyShutdowns)
	}
	if status.EmergencyCount != 3 {
		t.Fatalf("expected count 3 got %d", status.EmergencyCount)
	}

	// a later critical check must not shut down anymore
	result, err := orch.PerformSafetyCheck()
	if err != nil {
		t.Fatalf("post-lockout check: %v", err)
	}
	if result.Safe || result.Action != ActionNone {
		t.Fatalf("lockout must disable the response, not the report: %+v", result)
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("state must stay stopped under lockout, got %s", orch.Status().Status)
	}
	if orch.Status().SafetyEnabled {
		t.Fatalf("lockout must persist")
	}
}

func TestSafetyReEnableClearsCounter(t *testing.T) {
	source := &stubSource{reading: reading(1350)}
	orch, _ := newTestOrchestrator(t, source, Options{MaxEmergencyShutdowns: 1})
	if _, err := orch.PerformSafetyCheck(); err != nil {
		t.Fatalf("check: %v", err)
	}
	if orch.Status().SafetyEnabled {
		t.Fatalf("expected lockout")
	}
	orch.SetSafetyEnabled(true)
	status := orch.Status()
	if !status.SafetyEnabled || status.EmergencyCount != 0 {
		t.Fatalf("re-enable must rearm monitoring: %+v", status)
	}
}

func TestEmergencyShutdownIdempotent(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	orch.EmergencyShutdown()
	orch.EmergencyShutdown()
	status := orch.Status()
	if status.EmergencyCount != 1 {
		t.Fatalf("repeat emergency shutdown while stopped must not count, got %d", status.EmergencyCount)
	}
}

func TestSensorFailureSkipsCycle(t *testing.T) {
	source := &stubSource{err: errors.New("bus timeout")}
	orch, history := newTestOrchestrator(t, source, Options{})
	if _, err := orch.PerformSafetyCheck(); err == nil {
		t.Fatalf("expected error")
	}
	if history.Len() != 0 {
		t.Fatalf("failed check must not be recorded")
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("failed check must not change state")
	}

	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()
	if _, err := orch.PerformSafetyCheck(); err != nil {
		t.Fatalf("retry on next cycle should succeed: %v", err)
	}
}

func TestResetOnlyFromEmergencyStopped(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	if err := orch.Reset(); err == nil {
		t.Fatalf("reset from stopped must fail")
	}
	orch.EmergencyShutdown()
	if err := orch.Reset(); err != nil {
		t.Fatalf("reset from emergency_stopped: %v", err)
	}
	if orch.Status().Status != StateStopped {
		t.Fatalf("expected stopped after reset, got %s", orch.Status().Status)
	}
}

func TestStartStateGuards(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{LoopInterval: time.Millisecond})
	if err := orch.Start(); err != nil {
		t.Fatalf("start from stopped: %v", err)
	}
	if err := orch.Start(); err == nil {
		t.Fatalf("start while running must fail")
	}
	orch.Stop()
	if status := orch.Status(); status.Status != StateStopped || status.IsRunning {
		t.Fatalf("expected stopped after stop, got %+v", status)
	}
	orch.Stop() // idempotent

	orch.EmergencyShutdown()
	if err := orch.Start(); err == nil {
		t.Fatalf("start from emergency_stopped must fail")
	}
}

func TestControlLoopDispatchesQueuedInput(t *testing.T) {
	actuator := &recordingActuator{}
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{
		LoopInterval: time.Millisecond,
		Actuator:     actuator,
	})
	if err := orch.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	orch.Submit([]float64{1, 2, 3, 4})

	deadline := time.Now().Add(time.Second)
	for actuator.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if actuator.count() == 0 {
		t.Fatalf("loop never dispatched the queued input")
	}
	orch.Stop()
	dispatched := actuator.count()
	time.Sleep(10 * time.Millisecond)
	if actuator.count() != dispatched {
		t.Fatalf("loop kept running after stop")
	}
}

func TestSubmitDropsOldestWhenFull(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{QueueCapacity: 2})
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			orch.Submit([]float64{float64(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Submit must never block")
	}
	if depth := orch.Status().QueueDepth; depth != 2 {
		t.Fatalf("expected queue depth 2 got %d", depth)
	}
}

func TestSetParametersMerges(t *testing.T) {
	orch, _ := newTestOrchestrator(t, &stubSource{reading: reading(800)}, Options{})
	orch.SetParameters(waveform.TargetSpec{FrequencyRange: &waveform.Range{Min: 0.1, Max: 0.2}})
	orch.SetParameters(waveform.TargetSpec{Smoothness: true})
	params := orch.Parameters()
	if params.FrequencyRange == nil || params.FrequencyRange.Min != 0.1 || !params.Smoothness {
		t.Fatalf("parameters lost on merge: %+v", params)
	}
}
