package usecase

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

type fakeRuntime struct {
	mu sync.Mutex

	appID      string
	hookOK     bool
	hookCalls  int
	folder     string
	nextHandle uint32
	takeFail   bool
	writeFiles bool
	takes      []domain.CaptureTarget
	submits    []*domain.ScreenshotResult
	scale      float64
	scaleSets  []float64
	notes      []string
	overlays   []domain.OverlayState
	aspect     float64

	initErrs    []error
	initCalls   int
	initialized bool
	shutdowns   int
	quitAcks    int
	events      chan domain.RuntimeEvent
	actions     domain.ActionStates
	pose        domain.Pose
	hz          float64
	fov         float64
}

func newFakeRuntime(appID string) *fakeRuntime {
	return &fakeRuntime{
		appID:      appID,
		hookOK:     true,
		nextHandle: 7,
		writeFiles: true,
		scale:      1,
		aspect:     1,
		events:     make(chan domain.RuntimeEvent, 16),
		hz:         1000,
		fov:        110,
	}
}

func (f *fakeRuntime) RunningApplicationID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appID
}

func (f *fakeRuntime) setApp(id string) {
	f.mu.Lock()
	f.appID = id
	f.mu.Unlock()
}

func (f *fakeRuntime) HookScreenshots() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hookCalls++
	return f.hookOK
}

func (f *fakeRuntime) SetScreenshotOutputFolder(dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.folder = dir
	return nil
}

func (f *fakeRuntime) TakeScreenshot(target domain.CaptureTarget) (domain.ScreenshotResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.takes = append(f.takes, target)
	if f.takeFail {
		return domain.ScreenshotResult{}, false
	}
	res := domain.ScreenshotResult{
		Handle:     domain.Handle(f.nextHandle),
		FilePath:   filepath.Join(target.Dir, target.Name+".png"),
		FilePathVR: filepath.Join(target.Dir, target.Name+"_vr.png"),
	}
	f.nextHandle++
	if f.writeFiles {
		_ = os.WriteFile(res.FilePath, []byte("png"), 0o644)
		_ = os.WriteFile(res.FilePathVR, []byte("png"), 0o644)
	}
	return res, true
}

func (f *fakeRuntime) SubmitScreenshot(r *domain.ScreenshotResult) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submits = append(f.submits, r)
	return true
}

func (f *fakeRuntime) RenderScale() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scale
}

func (f *fakeRuntime) SetRenderScale(s float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scale = s
	f.scaleSets = append(f.scaleSets, s)
}

func (f *fakeRuntime) Notify(text string, _ image.Image) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = append(f.notes, text)
	return nil
}

func (f *fakeRuntime) UpdateOverlay(st domain.OverlayState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overlays = append(f.overlays, st)
	return nil
}

func (f *fakeRuntime) ReticleAspectRatio() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aspect
}

func (f *fakeRuntime) Init() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initCalls++
	if len(f.initErrs) > 0 {
		err := f.initErrs[0]
		f.initErrs = f.initErrs[1:]
		return err
	}
	f.initialized = true
	return nil
}

func (f *fakeRuntime) IsInitialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

func (f *fakeRuntime) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	f.shutdowns++
}

func (f *fakeRuntime) AcknowledgeQuit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quitAcks++
}

func (f *fakeRuntime) Events() <-chan domain.RuntimeEvent { return f.events }

func (f *fakeRuntime) PollActions() (domain.ActionStates, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.actions
	f.actions = domain.ActionStates{}
	return a, nil
}

func (f *fakeRuntime) setActions(a domain.ActionStates) {
	f.mu.Lock()
	f.actions = a
	f.mu.Unlock()
}

func (f *fakeRuntime) HeadPose() domain.Pose {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pose
}

func (f *fakeRuntime) DisplayFrequency() float64 { return f.hz }
func (f *fakeRuntime) FieldOfView() float64      { return f.fov }

func (f *fakeRuntime) takeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.takes)
}

func (f *fakeRuntime) noteCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

type countingAudio struct{ n int }

func (a *countingAudio) Play() { a.n++ }

type stubSession string

func (s stubSession) ID() string { return string(s) }

type sentMessage struct {
	session domain.SessionRef
	payload []byte
}

type recordingReplier struct {
	mu        sync.Mutex
	running   bool
	sent      []sentMessage
	broadcast [][]byte
}

func (r *recordingReplier) Running() bool { return r.running }

func (r *recordingReplier) Send(s domain.SessionRef, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{session: s, payload: payload})
}

func (r *recordingReplier) Broadcast(payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, payload)
}

func (r *recordingReplier) sentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type stubImaging struct {
	thumbs  int
	encoded []int
	right   []string
	failEnc bool
}

func (s *stubImaging) Thumbnail(string, int) (image.Image, error) {
	s.thumbs++
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

func (s *stubImaging) EncodeResponse(_ string, maxEdge int) (string, int, int, error) {
	s.encoded = append(s.encoded, maxEdge)
	if s.failEnc {
		return "", 0, 0, errors.New("decode failed")
	}
	return "aGVsbG8=", 4, 4, nil
}

func (s *stubImaging) SaveRightEye(_, out string) error {
	s.right = append(s.right, out)
	return nil
}

type memorySink struct {
	mu   sync.Mutex
	recs []domain.CaptureRecord
}

func (m *memorySink) Name() string { return "memory" }

func (m *memorySink) Publish(_ context.Context, rec domain.CaptureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	outcomes map[string]int
	pending  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: map[string]int{}}
}

func (m *countingMetrics) CaptureOutcome(o string) {
	m.mu.Lock()
	m.outcomes[o]++
	m.mu.Unlock()
}

func (m *countingMetrics) SetPendingCaptures(n int) {
	m.mu.Lock()
	m.pending = n
	m.mu.Unlock()
}
