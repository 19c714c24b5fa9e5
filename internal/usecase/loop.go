package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

const (
	defaultInitBackoff = time.Second
	fallbackPeriod     = 10 * time.Millisecond
	triggerBuffer      = 32
)

// RuntimeMetrics reports the runtime connection state.
type RuntimeMetrics interface {
	SetRuntimeConnected(bool)
}

type LoopDeps struct {
	Runtime      Runtime
	Orchestrator *Orchestrator
	Viewfinder   *Viewfinder
	Status       *StatusHub
	Metrics      RuntimeMetrics
	Logger       *zerolog.Logger
	InitBackoff  time.Duration
	// OnExit runs when the runtime quits and ExitWithRuntime is set.
	OnExit func()
}

// Loop is the single polling goroutine that owns the runtime, the
// orchestrator and the viewfinder. Other goroutines reach it only through
// Submit and the helpers built on it.
type Loop struct {
	rt      Runtime
	orch    *Orchestrator
	vf      *Viewfinder
	status  *StatusHub
	metrics RuntimeMetrics
	logger  *zerolog.Logger
	backoff time.Duration
	onExit  func()

	triggers  chan func()
	ready     atomic.Bool
	dashboard atomic.Bool
	settings  atomic.Value // domain.Settings

	ticker    *time.Ticker
	period    time.Duration
	timerNext time.Time
}

func NewLoop(d LoopDeps) *Loop {
	l := &Loop{
		rt:       d.Runtime,
		orch:     d.Orchestrator,
		vf:       d.Viewfinder,
		status:   d.Status,
		metrics:  d.Metrics,
		logger:   d.Logger,
		backoff:  d.InitBackoff,
		onExit:   d.OnExit,
		triggers: make(chan func(), triggerBuffer),
	}
	if l.backoff <= 0 {
		l.backoff = defaultInitBackoff
	}
	if l.logger == nil {
		nop := zerolog.Nop()
		l.logger = &nop
	}
	l.settings.Store(d.Orchestrator.Settings())
	return l
}

// Ready reports whether the runtime is initialized and captures can be taken.
func (l *Loop) Ready() bool { return l.ready.Load() }

// DashboardVisible reports whether the platform dashboard is open.
func (l *Loop) DashboardVisible() bool { return l.dashboard.Load() }

// Settings returns the latest settings snapshot. Safe from any goroutine.
func (l *Loop) Settings() domain.Settings { return l.settings.Load().(domain.Settings) }

// Submit hands fn to the polling goroutine. It never blocks and reports
// false when the trigger buffer is full.
func (l *Loop) Submit(fn func()) bool {
	select {
	case l.triggers <- fn:
		return true
	default:
		l.logger.Warn().Msg("trigger buffer full, dropping request")
		return false
	}
}

// TriggerCapture schedules a capture. delaySeconds > 0 or a locally enabled
// delay runs it as a delayed capture.
func (l *Loop) TriggerCapture(remote *domain.RemoteRequest, delaySeconds int) bool {
	return l.Submit(func() {
		if delaySeconds > 0 {
			_, _ = l.orch.DelayedRequestCapture(delaySeconds, l.orch.Settings().SuperSampling, remote)
			return
		}
		l.capture(remote)
	})
}

// TriggerLocal schedules a capture requested through the ops API. Unlike
// TriggerCapture it picks supersampling explicitly instead of from settings.
func (l *Loop) TriggerLocal(superSample bool, delaySeconds int, remote *domain.RemoteRequest) bool {
	return l.Submit(func() {
		if delaySeconds > 0 {
			_, _ = l.orch.DelayedRequestCapture(delaySeconds, superSample, remote)
			return
		}
		_, _ = l.orch.RequestCapture(CaptureRequest{ByUser: true, SuperSample: superSample, Remote: remote})
	})
}

func (l *Loop) UpdateSettings(s domain.Settings) bool {
	if !l.Submit(func() { l.orch.UpdateSettings(s) }) {
		return false
	}
	l.settings.Store(s)
	return true
}

func (l *Loop) SetViewfinder(on bool) bool {
	return l.Submit(func() {
		if on {
			l.vf.Show()
		} else {
			l.vf.Hide()
		}
		l.publishViewfinder()
	})
}

// Run initializes the runtime, retrying until it succeeds or ctx ends, then
// polls until ctx ends. A runtime quit without ExitWithRuntime goes back to
// initializing.
func (l *Loop) Run(ctx context.Context) {
	for {
		if err := l.initialize(ctx); err != nil {
			return
		}
		exit, stopped := l.poll(ctx)
		l.teardown()
		if stopped {
			return
		}
		if exit {
			if l.onExit != nil {
				l.onExit()
			}
			return
		}
	}
}

func (l *Loop) initialize(ctx context.Context) error {
	attempt := 0
	for {
		attempt++
		err := l.rt.Init()
		if err == nil {
			break
		}
		if attempt == 1 || attempt%30 == 0 {
			l.logger.Warn().Err(err).Int("attempt", attempt).Msg("runtime init failed, retrying")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	l.logger.Info().Int("attempts", attempt).Msg("runtime initialized")
	l.orch.Attach()
	l.vf.ResetAspect()
	l.resetTimer(time.Now())
	l.ready.Store(true)
	l.setConnected(true)
	return nil
}

func (l *Loop) teardown() {
	l.ready.Store(false)
	l.dashboard.Store(false)
	l.vf.Hide()
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
	l.rt.Shutdown()
	l.setConnected(false)
}

// poll returns stopped when ctx ended, exit when the runtime quit and the
// process should follow it.
func (l *Loop) poll(ctx context.Context) (exit, stopped bool) {
	l.period = framePeriod(l.rt.DisplayFrequency())
	l.ticker = time.NewTicker(l.period)
	l.orch.SetFrameHook(l.period, l.frame)
	for {
		select {
		case <-ctx.Done():
			return false, true
		case now := <-l.ticker.C:
			if quit, exit := l.tick(now); quit {
				return exit, false
			}
		}
	}
}

// tick runs one polling iteration. It reports quit when the runtime shut down.
func (l *Loop) tick(now time.Time) (quit, exit bool) {
	events := l.rt.Events()
drain:
	for {
		select {
		case ev := <-events:
			if l.handleEvent(ev) {
				return true, l.orch.Settings().ExitWithRuntime
			}
		default:
			break drain
		}
	}

triggers:
	for {
		select {
		case fn := <-l.triggers:
			fn()
		default:
			break triggers
		}
	}

	if a, err := l.rt.PollActions(); err != nil {
		l.logger.Debug().Err(err).Msg("action poll failed")
	} else {
		l.handleActions(a)
	}

	s := l.orch.Settings()
	if s.CaptureTimer && s.TimerSeconds > 0 && !now.Before(l.timerNext) {
		l.timerNext = now.Add(time.Duration(s.TimerSeconds) * time.Second)
		_, _ = l.orch.RequestCapture(CaptureRequest{Timer: true, SuperSample: s.SuperSampling})
	}

	l.frame()
	return false, false
}

// frame refreshes the viewfinder for the current head pose.
func (l *Loop) frame() {
	l.vf.Update(l.rt.HeadPose(), l.rt.FieldOfView(), l.orch.Settings(), l.orch.InFlight(), l.dashboard.Load())
}

// handleEvent returns true when the runtime is quitting.
func (l *Loop) handleEvent(ev domain.RuntimeEvent) bool {
	switch ev.Type {
	case domain.EventRequestScreenshot:
		// follows a capture call made with no application running
		l.logger.Debug().Msg("runtime requested a screenshot")
	case domain.EventScreenshotTriggered:
		l.logger.Debug().Bool("hooked", l.orch.Hooked()).Msg("platform screenshot shortcut pressed")
		if l.orch.Hooked() {
			l.capture(nil)
		}
	case domain.EventScreenshotTaken:
		l.orch.OnScreenshotTaken(ev.Handle)
	case domain.EventScreenshotFailed:
		l.orch.OnScreenshotFailed(ev.Handle)
	case domain.EventSceneApplicationChanged:
		l.orch.OnApplicationChanged()
	case domain.EventTrackedDeviceActivated:
		l.logger.Debug().Uint32("device", ev.DeviceIndex).Msg("tracked device activated")
	case domain.EventDisplaySettingChanged:
		l.vf.ResetAspect()
		if p := framePeriod(l.rt.DisplayFrequency()); p != l.period && l.ticker != nil {
			l.period = p
			l.ticker.Reset(p)
			l.orch.SetFrameHook(p, l.frame)
		}
	case domain.EventDashboardVisibility:
		l.dashboard.Store(ev.Visible)
	case domain.EventQuitAcknowledged:
		l.rt.AcknowledgeQuit()
		exit := l.orch.Settings().ExitWithRuntime
		l.logger.Info().Bool("exit", exit).Msg("runtime is quitting")
		if exit {
			l.status.Publish(domain.StatusEvent{Type: domain.StatusExitRequest, Value: 1})
		}
		return true
	default:
		l.logger.Debug().Str("type", string(ev.Type)).Msg("ignoring runtime event")
	}
	return false
}

func (l *Loop) handleActions(a domain.ActionStates) {
	switch {
	case a.TakeScreenshot, a.ChordModifier && a.ChordTrigger:
		l.capture(nil)
	case a.TakeDelayedScreenshot:
		_, _ = l.orch.DelayedRequestCapture(0, l.orch.Settings().SuperSampling, nil)
	}
	if a.ToggleViewfinder {
		l.vf.Toggle()
		l.publishViewfinder()
	}
}

// capture runs a user capture honoring the local delay and supersampling settings.
func (l *Loop) capture(remote *domain.RemoteRequest) {
	s := l.orch.Settings()
	if s.DelayCapture {
		_, _ = l.orch.DelayedRequestCapture(0, s.SuperSampling, remote)
		return
	}
	_, _ = l.orch.RequestCapture(CaptureRequest{ByUser: true, SuperSample: s.SuperSampling, Remote: remote})
}

func (l *Loop) resetTimer(now time.Time) {
	s := l.orch.Settings()
	l.timerNext = now.Add(time.Duration(s.TimerSeconds) * time.Second)
}

func (l *Loop) publishViewfinder() {
	v := 0
	if l.vf.On() {
		v = 1
	}
	l.status.Publish(domain.StatusEvent{Type: domain.StatusViewfinder, Value: v})
}

func (l *Loop) setConnected(on bool) {
	v := 0
	if on {
		v = 1
	}
	if l.metrics != nil {
		l.metrics.SetRuntimeConnected(on)
	}
	l.status.Publish(domain.StatusEvent{Type: domain.StatusRuntime, Value: v})
}

func framePeriod(hz float64) time.Duration {
	if hz <= 0 {
		return fallbackPeriod
	}
	p := time.Duration(float64(time.Second) / hz)
	if p <= 0 {
		return fallbackPeriod
	}
	return p
}
