package usecase

import (
	"context"
	"image"

	"vr-screenshotter/internal/domain"
)

// CaptureRuntime is the part of the VR runtime adapter the orchestrator uses.
// Implementations need not be safe for concurrent use: only the polling
// goroutine calls them.
type CaptureRuntime interface {
	RunningApplicationID() string
	HookScreenshots() bool
	SetScreenshotOutputFolder(dir string) error
	// TakeScreenshot returns a handle synchronously; the image arrives later
	// as a ScreenshotTaken or ScreenshotFailed event.
	TakeScreenshot(target domain.CaptureTarget) (domain.ScreenshotResult, bool)
	// SubmitScreenshot with nil submits the empty placeholder that clears a
	// stuck request on the compositor side.
	SubmitScreenshot(result *domain.ScreenshotResult) bool
	RenderScale() float64
	SetRenderScale(scale float64)
	Notify(text string, thumbnail image.Image) error
}

// OverlayRuntime draws the viewfinder indicators.
type OverlayRuntime interface {
	UpdateOverlay(state domain.OverlayState) error
	// ReticleAspectRatio is width/height of the reticle texture, 0 while unknown.
	ReticleAspectRatio() float64
}

// Runtime is the full VR runtime adapter driven by the polling loop.
type Runtime interface {
	CaptureRuntime
	OverlayRuntime
	Init() error
	IsInitialized() bool
	Shutdown()
	AcknowledgeQuit()
	Events() <-chan domain.RuntimeEvent
	PollActions() (domain.ActionStates, error)
	HeadPose() domain.Pose
	DisplayFrequency() float64
	FieldOfView() float64
}

type AudioPlayer interface {
	Play()
}

// Replier delivers encoded responses to remote sessions.
type Replier interface {
	Running() bool
	Send(session domain.SessionRef, payload []byte)
	Broadcast(payload []byte)
}

// Imaging covers the bitmap work done on finished captures.
type Imaging interface {
	Thumbnail(path string, edge int) (image.Image, error)
	// EncodeResponse returns a base64 PNG no larger than maxEdge (-1: original size).
	EncodeResponse(path string, maxEdge int) (data string, width, height int, err error)
	SaveRightEye(vrPath, outPath string) error
}

// ResultSink receives a record for every completed capture.
type ResultSink interface {
	Name() string
	Publish(ctx context.Context, rec domain.CaptureRecord) error
}

type nopAudio struct{}

func (nopAudio) Play() {}

type nopReplier struct{}

func (nopReplier) Running() bool                  { return false }
func (nopReplier) Send(domain.SessionRef, []byte) {}
func (nopReplier) Broadcast([]byte)               {}
