package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

const (
	superSampleSettle = 100 * time.Millisecond
	superSampleRevert = 500 * time.Millisecond
	thumbnailEdge     = 256
	sinkTimeout       = 3 * time.Second
)

// CaptureMetrics is the observability surface the orchestrator reports to.
type CaptureMetrics interface {
	CaptureOutcome(outcome string)
	SetPendingCaptures(n int)
}

type nopMetrics struct{}

func (nopMetrics) CaptureOutcome(string)  {}
func (nopMetrics) SetPendingCaptures(int) {}

// CaptureRequest describes one capture intent.
type CaptureRequest struct {
	ByUser      bool
	SuperSample bool
	// Timer marks unattended interval captures (date subfolder, no audio)
	Timer  bool
	Remote *domain.RemoteRequest
}

type OrchestratorDeps struct {
	Runtime    CaptureRuntime
	Queue      *CaptureQueue
	Viewfinder *Viewfinder
	Audio      AudioPlayer
	Replier    Replier
	Imaging    Imaging
	Sinks      []ResultSink
	Status     *StatusHub
	Metrics    CaptureMetrics
	Logger     *zerolog.Logger
	Sleep      func(time.Duration)
	Now        func() time.Time
}

// Orchestrator drives the capture lifecycle
// Idle → Requested → AwaitingRuntime → Completed | Failed.
// Every method must be called from the polling goroutine; the queue is the
// only state other goroutines may read.
type Orchestrator struct {
	rt       CaptureRuntime
	queue    *CaptureQueue
	vf       *Viewfinder
	audio    AudioPlayer
	replier  Replier
	imaging  Imaging
	sinks    []ResultSink
	status   *StatusHub
	metrics  CaptureMetrics
	logger   *zerolog.Logger
	sleep    func(time.Duration)
	now      func() time.Time
	frame    func()
	framePer time.Duration

	settings   domain.Settings
	appID      string
	outputDir  string
	hooked     bool
	lastHandle domain.Handle
	hasLast    bool

	sinkWG sync.WaitGroup
}

func NewOrchestrator(d OrchestratorDeps, settings domain.Settings) *Orchestrator {
	o := &Orchestrator{
		rt:       d.Runtime,
		queue:    d.Queue,
		vf:       d.Viewfinder,
		audio:    d.Audio,
		replier:  d.Replier,
		imaging:  d.Imaging,
		sinks:    d.Sinks,
		status:   d.Status,
		metrics:  d.Metrics,
		logger:   d.Logger,
		sleep:    d.Sleep,
		now:      d.Now,
		settings: settings,
	}
	if o.queue == nil {
		o.queue = NewCaptureQueue()
	}
	if o.audio == nil {
		o.audio = nopAudio{}
	}
	if o.replier == nil {
		o.replier = nopReplier{}
	}
	if o.metrics == nil {
		o.metrics = nopMetrics{}
	}
	if o.logger == nil {
		l := zerolog.Nop()
		o.logger = &l
	}
	if o.sleep == nil {
		o.sleep = time.Sleep
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

func (o *Orchestrator) Queue() *CaptureQueue      { return o.queue }
func (o *Orchestrator) Settings() domain.Settings { return o.settings }
func (o *Orchestrator) AppID() string             { return o.appID }
func (o *Orchestrator) OutputDir() string         { return o.outputDir }

// SetFrameHook installs a callback run every period while a delayed capture
// waits, so the viewfinder keeps tracking the head.
func (o *Orchestrator) SetFrameHook(period time.Duration, fn func()) {
	o.framePer = period
	o.frame = fn
}

// UpdateSettings swaps in a new settings snapshot.
func (o *Orchestrator) UpdateSettings(s domain.Settings) {
	prev := o.settings
	o.settings = s
	if prev.Directory != s.Directory || prev.SubfolderPerApp != s.SubfolderPerApp {
		if _, err := o.UpdateOutputFolder(false, false); err != nil {
			o.logger.Warn().Err(err).Msg("output folder update failed")
		}
	}
	if s.ReplaceShortcut && !prev.ReplaceShortcut {
		o.UpdateScreenshotHook(false)
	}
}

// Attach is called once the runtime is initialized.
func (o *Orchestrator) Attach() {
	o.appID = o.rt.RunningApplicationID()
	o.hooked = false
	o.UpdateScreenshotHook(false)
	if _, err := o.UpdateOutputFolder(false, false); err != nil {
		o.logger.Warn().Err(err).Msg("output folder update failed")
	}
	o.publish(domain.StatusApp, "", 0, o.appID)
}

// Hooked reports whether the platform screenshot shortcut is routed to us.
func (o *Orchestrator) Hooked() bool { return o.hooked }

func (o *Orchestrator) UpdateScreenshotHook(force bool) {
	if !o.settings.ReplaceShortcut {
		return
	}
	if o.hooked && !force {
		return
	}
	o.hooked = o.rt.HookScreenshots()
	o.logger.Info().Bool("hooked", o.hooked).Msg("hooking platform screenshot shortcut")
}

// UpdateOutputFolder resolves the output directory for the running app,
// optionally creating it, and hands it to the runtime.
func (o *Orchestrator) UpdateOutputFolder(create, timer bool) (string, error) {
	if o.settings.Directory == "" {
		return "", fmt.Errorf("no output directory set")
	}
	dir := OutputDir(o.settings, o.appID, timer, o.now())
	if create {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create output folder %s: %w", dir, err)
		}
	}
	if err := o.rt.SetScreenshotOutputFolder(dir); err != nil {
		return "", fmt.Errorf("set runtime output folder: %w", err)
	}
	o.outputDir = dir
	return dir, nil
}

// InFlight reports whether the most recently triggered capture is still pending.
func (o *Orchestrator) InFlight() bool {
	return o.hasLast && o.queue.Has(o.lastHandle)
}

// RequestCapture submits a capture to the runtime and records it as pending.
func (o *Orchestrator) RequestCapture(req CaptureRequest) (domain.Handle, error) {
	if o.appID == "" {
		o.logger.Warn().Bool("byUser", req.ByUser).Msg("capture skipped: no application is running")
		o.metrics.CaptureOutcome("rejected")
		o.replyError(req.Remote, "capture skipped", ErrNoApplication)
		return 0, ErrNoApplication
	}
	if req.SuperSample && o.queue.Len() > 0 {
		o.logger.Warn().Int("pending", o.queue.Len()).Msg("supersampled capture rejected while another is pending")
		o.metrics.CaptureOutcome("rejected")
		o.replyError(req.Remote, "capture rejected", ErrCaptureInFlight)
		return 0, ErrCaptureInFlight
	}

	if o.vf != nil {
		o.vf.Conceal()
	}
	// clears a request left hanging by an earlier failed capture
	o.rt.SubmitScreenshot(nil)

	dir, err := o.UpdateOutputFolder(true, req.Timer)
	if err != nil {
		o.logger.Error().Err(err).Msg("capture skipped: output folder unavailable")
		o.metrics.CaptureOutcome("rejected")
		o.replyError(req.Remote, "capture skipped", err)
		return 0, err
	}
	o.publish(domain.StatusCapture, string(domain.CaptureRequested), 0, dir)

	originalScale := 0.0
	if req.SuperSample {
		originalScale = o.rt.RenderScale()
		o.rt.SetRenderScale(o.settings.SuperSamplingScale)
		o.sleep(superSampleSettle)
	}

	tag := ""
	if req.Remote != nil {
		tag = req.Remote.Tag
	}
	now := o.now()
	target := domain.CaptureTarget{Dir: dir, Name: CaptureName(now, tag, o.settings.AddTag)}
	res, ok := o.rt.TakeScreenshot(target)
	if !ok {
		o.logger.Warn().Str("dir", dir).Msg("runtime capture call failed")
		o.rt.SubmitScreenshot(nil)
		if req.SuperSample {
			o.rt.SetRenderScale(originalScale)
		}
		o.metrics.CaptureOutcome("failed")
		o.replyError(req.Remote, "capture failed", ErrCaptureFailed)
		return 0, ErrCaptureFailed
	}

	p := domain.PendingCapture{
		Handle:        res.Handle,
		ByUser:        req.ByUser,
		SuperSampled:  req.SuperSample,
		OriginalScale: originalScale,
		Remote:        req.Remote,
		FilePath:      res.FilePath,
		FilePathVR:    res.FilePathVR,
		RequestedAt:   now,
	}
	if !o.queue.Add(p) {
		o.logger.Error().Uint32("handle", uint32(res.Handle)).Msg("runtime reused a pending handle; keeping the earlier capture")
		return res.Handle, fmt.Errorf("handle %d already pending", res.Handle)
	}
	o.lastHandle, o.hasLast = res.Handle, true
	o.metrics.CaptureOutcome("requested")
	o.metrics.SetPendingCaptures(o.queue.Len())
	o.logger.Info().Uint32("handle", uint32(res.Handle)).Bool("byUser", req.ByUser).Bool("superSample", req.SuperSample).Str("file", res.FilePath).Msg("capture requested")
	o.publish(domain.StatusCapture, string(domain.CaptureAwaitingRuntime), int(res.Handle), res.FilePath)

	if req.ByUser && o.settings.Audio {
		o.audio.Play()
	}
	return res.Handle, nil
}

// DelayedRequestCapture shows the viewfinder, blocks the polling goroutine
// for the delay and then captures on behalf of the user. The wait is the
// configured local delay unless delaySeconds asks for a longer one.
func (o *Orchestrator) DelayedRequestCapture(delaySeconds int, superSample bool, remote *domain.RemoteRequest) (domain.Handle, error) {
	delay := o.settings.DelaySeconds
	if delaySeconds > delay {
		delay = delaySeconds
	}
	if o.vf != nil {
		o.vf.Show()
	}
	o.logger.Info().Int("delaySeconds", delay).Msg("delayed capture armed")
	o.wait(time.Duration(delay) * time.Second)
	return o.RequestCapture(CaptureRequest{ByUser: true, SuperSample: superSample, Remote: remote})
}

func (o *Orchestrator) wait(d time.Duration) {
	if o.frame == nil || o.framePer <= 0 {
		o.sleep(d)
		return
	}
	for d > 0 {
		step := o.framePer
		if step > d {
			step = d
		}
		o.frame()
		o.sleep(step)
		d -= step
	}
}

// OnScreenshotTaken completes a capture. The queue entry is removed on
// every path out of this method.
func (o *Orchestrator) OnScreenshotTaken(h domain.Handle) {
	p, ok := o.queue.Get(h)
	if !ok {
		o.logger.Warn().Uint32("handle", uint32(h)).Msg("screenshot taken for unknown handle")
		o.metrics.CaptureOutcome("unknown")
		if o.settings.Notifications {
			o.notify("Screenshot taken (unknown request)", nil)
		}
		return
	}
	defer func() {
		o.queue.Remove(h)
		o.pendingChanged()
	}()

	log := o.logger.With().Uint32("handle", uint32(h)).Str("file", p.FilePath).Logger()
	if !fileExists(p.FilePath) {
		log.Error().Msg("could not find screenshot after taking it")
		o.metrics.CaptureOutcome("failed")
		if o.settings.Notifications {
			o.notify("Screenshot taken, but the file is missing", nil)
		}
		o.replyError(p.Remote, "screenshot file missing", fmt.Errorf("file not found: %s", p.FilePath))
		o.revertScale(p)
		o.publish(domain.StatusCapture, string(domain.CaptureFailed), int(h), p.FilePath)
		return
	}

	if o.settings.SubmitToPlatform && o.appID != "" {
		submitted := o.rt.SubmitScreenshot(&domain.ScreenshotResult{Handle: h, FilePath: p.FilePath, FilePathVR: p.FilePathVR})
		log.Debug().Bool("submitted", submitted).Msg("submitted capture to platform gallery")
	}

	rightPath := ""
	if o.settings.SaveRightImage && o.imaging != nil && p.FilePathVR != "" {
		rp := RightEyePath(p.FilePathVR)
		if err := o.imaging.SaveRightEye(p.FilePathVR, rp); err != nil {
			log.Warn().Err(err).Msg("saving right eye image failed")
		} else {
			rightPath = rp
		}
	}

	o.respond(p)

	if o.settings.Notifications {
		var thumb image.Image
		if o.settings.Thumbnail && o.imaging != nil {
			img, err := o.imaging.Thumbnail(p.FilePath, thumbnailEdge)
			if err != nil {
				log.Warn().Err(err).Msg("thumbnail failed")
			} else {
				thumb = img
			}
		}
		o.notify("Screenshot taken!", thumb)
	}

	if p.SuperSampled {
		o.sleep(superSampleRevert)
		o.revertScale(p)
	}

	o.metrics.CaptureOutcome("taken")
	o.publish(domain.StatusCapture, string(domain.CaptureCompleted), int(h), p.FilePath)
	log.Info().Msg("capture completed")
	o.publishRecord(p, rightPath)
}

// OnScreenshotFailed drops the entry; unknown handles are ignored.
func (o *Orchestrator) OnScreenshotFailed(h domain.Handle) {
	p, ok := o.queue.Remove(h)
	if !ok {
		o.logger.Debug().Uint32("handle", uint32(h)).Msg("screenshot failed for unknown handle")
		return
	}
	o.metrics.CaptureOutcome("failed")
	o.logger.Warn().Uint32("handle", uint32(h)).Msg("runtime reported screenshot failure")
	o.rt.SubmitScreenshot(nil)
	o.revertScale(p)
	o.publish(domain.StatusCapture, string(domain.CaptureFailed), int(h), p.FilePath)
	o.pendingChanged()
}

// OnApplicationChanged invalidates everything tied to the previous application.
func (o *Orchestrator) OnApplicationChanged() {
	orphans := o.queue.Snapshot()
	o.queue.Clear()
	for _, p := range orphans {
		o.metrics.CaptureOutcome("orphaned")
		o.revertScale(p)
	}
	o.hasLast = false
	if len(orphans) > 0 {
		o.pendingChanged()
	}

	o.appID = o.rt.RunningApplicationID()
	o.hooked = false
	o.UpdateScreenshotHook(false)
	if _, err := o.UpdateOutputFolder(false, false); err != nil {
		o.logger.Warn().Err(err).Msg("output folder update failed")
	}
	o.logger.Info().Str("app", o.appID).Int("orphaned", len(orphans)).Msg("application changed")
	o.publish(domain.StatusApp, "", 0, o.appID)
}

// Wait blocks until in-flight sink publications finish.
func (o *Orchestrator) Wait() { o.sinkWG.Wait() }

func (o *Orchestrator) respond(p domain.PendingCapture) {
	if !o.replier.Running() {
		return
	}
	if p.Remote == nil && !o.settings.TransmitAll {
		return
	}
	nonce := ""
	if p.Remote != nil {
		nonce = p.Remote.Nonce
	}
	var resp domain.ScreenshotResponse
	if o.imaging == nil {
		resp = domain.NewImageResponse(nonce, "", 0, 0, p.FilePath, p.FilePathVR)
	} else {
		data, w, h, err := o.imaging.EncodeResponse(p.FilePath, o.settings.ResponseEdge())
		if err != nil {
			o.logger.Warn().Err(err).Msg("encoding response image failed")
			resp = domain.NewErrorResponse(nonce, "could not encode image", err.Error())
		} else {
			resp = domain.NewImageResponse(nonce, data, w, h, p.FilePath, p.FilePathVR)
		}
	}
	o.send(p.Remote, resp)
}

func (o *Orchestrator) replyError(remote *domain.RemoteRequest, message string, err error) {
	if remote == nil || !o.replier.Running() {
		return
	}
	o.send(remote, domain.NewErrorResponse(remote.Nonce, message, err.Error()))
}

func (o *Orchestrator) send(remote *domain.RemoteRequest, resp domain.ScreenshotResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		o.logger.Error().Err(err).Msg("encode response")
		return
	}
	if remote != nil && remote.Session != nil {
		o.replier.Send(remote.Session, payload)
		return
	}
	o.replier.Broadcast(payload)
}

func (o *Orchestrator) notify(text string, thumb image.Image) {
	if err := o.rt.Notify(text, thumb); err != nil {
		o.logger.Debug().Err(err).Msg("notification failed")
	}
}

func (o *Orchestrator) revertScale(p domain.PendingCapture) {
	if p.SuperSampled {
		o.rt.SetRenderScale(p.OriginalScale)
	}
}

// pendingChanged reports the queue length after a removal and announces
// idle once nothing is pending.
func (o *Orchestrator) pendingChanged() {
	n := o.queue.Len()
	o.metrics.SetPendingCaptures(n)
	if n == 0 {
		o.publish(domain.StatusCapture, string(domain.CaptureIdle), 0, "")
	}
}

func (o *Orchestrator) publish(t domain.StatusType, name string, value int, text string) {
	o.status.Publish(domain.StatusEvent{Type: t, Name: name, Value: value, Text: text})
}

func (o *Orchestrator) publishRecord(p domain.PendingCapture, rightPath string) {
	if len(o.sinks) == 0 {
		return
	}
	rec := domain.CaptureRecord{
		ID:            uuid.NewString(),
		Handle:        p.Handle,
		AppID:         o.appID,
		State:         domain.CaptureCompleted,
		ByUser:        p.ByUser,
		SuperSampled:  p.SuperSampled,
		FilePath:      p.FilePath,
		FilePathVR:    p.FilePathVR,
		FilePathRight: rightPath,
		TimestampMs:   o.now().UnixMilli(),
	}
	if p.Remote != nil {
		rec.Nonce = p.Remote.Nonce
		rec.Tag = p.Remote.Tag
	}
	for _, s := range o.sinks {
		o.sinkWG.Add(1)
		go func(s ResultSink) {
			defer o.sinkWG.Done()
			ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
			defer cancel()
			if err := s.Publish(ctx, rec); err != nil {
				o.logger.Warn().Err(err).Str("sink", s.Name()).Msg("publishing capture record failed")
			}
		}(s)
	}
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(filepath.Clean(path))
	return err == nil && !st.IsDir()
}
