package vrsim

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/pkg/shared/mat34"
)

const eventBuffer = 64

type Options struct {
	AppID     string
	DisplayHz float64
	FovDeg    float64
	// Latency between a capture call and its ScreenshotTaken event
	Latency time.Duration
	// Eye image size; the stereo file is twice as wide
	Width  int
	Height int
}

// Runtime stands in for a headset runtime: it keeps overlay state in memory,
// writes a generated stereo PNG pair per capture and delivers events on a
// buffered channel.
type Runtime struct {
	opts   Options
	logger *zerolog.Logger
	events chan domain.RuntimeEvent

	mu          sync.Mutex
	initialized bool
	appID       string
	folder      string
	hooked      bool
	scale       float64
	nextHandle  uint32
	pose        domain.Pose
	actions     domain.ActionStates
	overlays    map[domain.OverlayKind]domain.OverlayState
	notes       []string
	submitted   int
	shutters    int
}

func New(opts Options, logger *zerolog.Logger) *Runtime {
	if opts.DisplayHz <= 0 {
		opts.DisplayHz = 90
	}
	if opts.FovDeg <= 0 {
		opts.FovDeg = 110
	}
	if opts.Latency <= 0 {
		opts.Latency = 50 * time.Millisecond
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts.Width, opts.Height = 320, 240
	}
	return &Runtime{
		opts:       opts,
		logger:     logger,
		events:     make(chan domain.RuntimeEvent, eventBuffer),
		appID:      opts.AppID,
		scale:      1,
		nextHandle: 1,
		pose:       domain.Pose{Transform: mat34.Identity(), Valid: true},
		overlays:   make(map[domain.OverlayKind]domain.OverlayState),
	}
}

func (r *Runtime) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = true
	return nil
}

func (r *Runtime) IsInitialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

func (r *Runtime) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initialized = false
	r.hooked = false
}

func (r *Runtime) AcknowledgeQuit() { r.logger.Debug().Msg("quit acknowledged") }

func (r *Runtime) Events() <-chan domain.RuntimeEvent { return r.events }

func (r *Runtime) RunningApplicationID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appID
}

func (r *Runtime) HookScreenshots() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooked = r.initialized
	return r.hooked
}

func (r *Runtime) SetScreenshotOutputFolder(dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.folder = dir
	return nil
}

// TakeScreenshot writes {name}.png and {name}_vr.png into target.Dir and
// reports ScreenshotTaken after the configured latency.
func (r *Runtime) TakeScreenshot(target domain.CaptureTarget) (domain.ScreenshotResult, bool) {
	r.mu.Lock()
	if !r.initialized || r.appID == "" {
		r.mu.Unlock()
		r.emit(domain.RuntimeEvent{Type: domain.EventRequestScreenshot})
		return domain.ScreenshotResult{}, false
	}
	h := domain.Handle(r.nextHandle)
	r.nextHandle++
	scale := r.scale
	r.mu.Unlock()

	res := domain.ScreenshotResult{
		Handle:     h,
		FilePath:   filepath.Join(target.Dir, target.Name+".png"),
		FilePathVR: filepath.Join(target.Dir, target.Name+"_vr.png"),
	}
	w := int(float64(r.opts.Width) * math.Max(scale, 1))
	hgt := int(float64(r.opts.Height) * math.Max(scale, 1))
	if err := writeFrame(res.FilePath, w, hgt, false); err != nil {
		r.logger.Warn().Err(err).Msg("sim capture failed")
		return domain.ScreenshotResult{}, false
	}
	if err := writeFrame(res.FilePathVR, w, hgt, true); err != nil {
		r.logger.Warn().Err(err).Msg("sim capture failed")
		return domain.ScreenshotResult{}, false
	}
	time.AfterFunc(r.opts.Latency, func() {
		r.emit(domain.RuntimeEvent{Type: domain.EventScreenshotTaken, Handle: h})
	})
	return res, true
}

func (r *Runtime) SubmitScreenshot(res *domain.ScreenshotResult) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res != nil {
		r.submitted++
	}
	return true
}

func (r *Runtime) RenderScale() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scale
}

func (r *Runtime) SetRenderScale(scale float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scale = scale
}

func (r *Runtime) Notify(text string, thumbnail image.Image) error {
	ev := r.logger.Info().Str("text", text)
	if thumbnail != nil {
		b := thumbnail.Bounds()
		ev = ev.Str("thumbnail", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
	}
	ev.Msg("notification")
	r.mu.Lock()
	r.notes = append(r.notes, text)
	r.mu.Unlock()
	return nil
}

// Play stands in for the capture shutter sound.
func (r *Runtime) Play() {
	r.mu.Lock()
	r.shutters++
	r.mu.Unlock()
	r.logger.Debug().Msg("shutter")
}

func (r *Runtime) UpdateOverlay(st domain.OverlayState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlays[st.Kind] = st
	return nil
}

func (r *Runtime) ReticleAspectRatio() float64 { return 1 }

func (r *Runtime) PollActions() (domain.ActionStates, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.actions
	r.actions = domain.ActionStates{}
	return a, nil
}

func (r *Runtime) HeadPose() domain.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pose
}

func (r *Runtime) DisplayFrequency() float64 { return r.opts.DisplayHz }

func (r *Runtime) FieldOfView() float64 { return r.opts.FovDeg }

// SetPose replaces the head pose reported to the loop.
func (r *Runtime) SetPose(p domain.Pose) {
	r.mu.Lock()
	r.pose = p
	r.mu.Unlock()
}

// Press queues digital action edges for the next poll.
func (r *Runtime) Press(a domain.ActionStates) {
	r.mu.Lock()
	r.actions = a
	r.mu.Unlock()
}

// SwitchApplication changes the running application and emits the event.
func (r *Runtime) SwitchApplication(appID string) {
	r.mu.Lock()
	r.appID = appID
	r.mu.Unlock()
	r.emit(domain.RuntimeEvent{Type: domain.EventSceneApplicationChanged})
}

func (r *Runtime) SetDashboard(visible bool) {
	r.emit(domain.RuntimeEvent{Type: domain.EventDashboardVisibility, Visible: visible})
}

// Quit emits QuitAcknowledged as the runtime does before shutting down.
func (r *Runtime) Quit() { r.emit(domain.RuntimeEvent{Type: domain.EventQuitAcknowledged}) }

// Overlay returns the last state pushed for kind.
func (r *Runtime) Overlay(kind domain.OverlayKind) (domain.OverlayState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.overlays[kind]
	return st, ok
}

func (r *Runtime) Notifications() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notes...)
}

func (r *Runtime) emit(ev domain.RuntimeEvent) {
	select {
	case r.events <- ev:
	default:
		r.logger.Warn().Str("type", string(ev.Type)).Msg("sim event buffer full, dropping event")
	}
}

// writeFrame renders a gradient; stereo frames are two eyes side by side
// with the right eye tinted blue.
func writeFrame(path string, w, h int, stereo bool) error {
	width := w
	if stereo {
		width = 2 * w
	}
	img := image.NewRGBA(image.Rect(0, 0, width, h))
	for y := 0; y < h; y++ {
		for x := 0; x < width; x++ {
			ex := x % w
			c := color.RGBA{R: uint8(255 * ex / w), G: uint8(255 * y / h), B: 64, A: 255}
			if stereo && x >= w {
				c.B = 255
			}
			img.SetRGBA(x, y, c)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}
