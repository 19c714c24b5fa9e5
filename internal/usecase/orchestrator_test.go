package usecase

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/pkg/shared/mat34"
)

type orchestratorFixture struct {
	rt      *fakeRuntime
	audio   *countingAudio
	replier *recordingReplier
	imaging *stubImaging
	sink    *memorySink
	metrics *countingMetrics
	slept   time.Duration
	o       *Orchestrator
}

func testSettings(dir string) domain.Settings {
	return domain.Settings{
		Directory:          dir,
		SubfolderPerApp:    true,
		ReplaceShortcut:    true,
		Notifications:      true,
		Thumbnail:          true,
		Audio:              true,
		DelaySeconds:       3,
		SuperSamplingScale: 4,
		ResponseResolution: 1,
		Viewfinder:         true,
		OverlayDistance:    1,
		OverlayOpacity:     50,
		ReticleSize:        25,
	}
}

func newOrchestratorFixture(t *testing.T, appID string, mutate func(*domain.Settings)) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		rt:      newFakeRuntime(appID),
		audio:   &countingAudio{},
		replier: &recordingReplier{running: true},
		imaging: &stubImaging{},
		sink:    &memorySink{},
		metrics: newCountingMetrics(),
	}
	s := testSettings(t.TempDir())
	if mutate != nil {
		mutate(&s)
	}
	f.o = NewOrchestrator(OrchestratorDeps{
		Runtime:    f.rt,
		Viewfinder: NewViewfinder(f.rt, testLogger()),
		Audio:      f.audio,
		Replier:    f.replier,
		Imaging:    f.imaging,
		Sinks:      []ResultSink{f.sink},
		Status:     NewStatusHub(),
		Metrics:    f.metrics,
		Logger:     testLogger(),
		Sleep:      func(d time.Duration) { f.slept += d },
		Now:        func() time.Time { return fixedNow },
	}, s)
	f.o.Attach()
	return f
}

func TestRequestCaptureHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t, "steam.app.620", nil)

	h, err := f.o.RequestCapture(CaptureRequest{ByUser: true})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if h != 7 {
		t.Fatalf("expected handle 7, got %d", h)
	}
	if !f.o.Queue().Has(7) || !f.o.InFlight() {
		t.Fatalf("handle 7 should be pending")
	}
	if f.audio.n != 1 {
		t.Fatalf("expected one audio cue, got %d", f.audio.n)
	}
	// empty submit precedes the capture call
	if len(f.rt.submits) != 1 || f.rt.submits[0] != nil {
		t.Fatalf("expected a single empty submit, got %v", f.rt.submits)
	}
	wantDir := filepath.Join(f.o.Settings().Directory, "steam.app.620")
	if f.rt.folder != wantDir {
		t.Fatalf("output folder = %q, want %q", f.rt.folder, wantDir)
	}
	if _, err := os.Stat(wantDir); err != nil {
		t.Fatalf("output folder not created: %v", err)
	}

	f.o.OnScreenshotTaken(7)
	f.o.Wait()
	if f.o.Queue().Len() != 0 {
		t.Fatalf("queue should be empty after completion")
	}
	if f.rt.noteCount() != 1 {
		t.Fatalf("expected exactly one notification, got %v", f.rt.notes)
	}
	if f.imaging.thumbs != 1 {
		t.Fatalf("expected a thumbnail for the notification")
	}
	if len(f.replier.sent)+len(f.replier.broadcast) != 0 {
		t.Fatalf("local capture without transmit-all must not be sent")
	}
	if len(f.sink.recs) != 1 || f.sink.recs[0].Handle != 7 || f.sink.recs[0].State != domain.CaptureCompleted {
		t.Fatalf("unexpected sink records %+v", f.sink.recs)
	}
	if f.metrics.outcomes["taken"] != 1 {
		t.Fatalf("taken outcome not counted: %v", f.metrics.outcomes)
	}
}

func TestRequestCaptureWithoutApplication(t *testing.T) {
	f := newOrchestratorFixture(t, "", nil)
	_, err := f.o.RequestCapture(CaptureRequest{ByUser: true})
	if !errors.Is(err, ErrNoApplication) {
		t.Fatalf("expected ErrNoApplication, got %v", err)
	}
	if f.rt.takeCount() != 0 {
		t.Fatalf("runtime capture must not be called")
	}
	if f.o.Queue().Len() != 0 {
		t.Fatalf("queue must stay empty")
	}
	if f.audio.n != 0 {
		t.Fatalf("no audio without a capture")
	}
}

func TestRemoteRequestWithoutApplicationRepliesError(t *testing.T) {
	f := newOrchestratorFixture(t, "", nil)
	remote := &domain.RemoteRequest{Nonce: "n1", Session: stubSession("s1")}
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true, Remote: remote}); err == nil {
		t.Fatalf("expected error")
	}
	if len(f.replier.sent) != 1 {
		t.Fatalf("expected one error reply, got %d", len(f.replier.sent))
	}
	var resp domain.ScreenshotResponse
	if err := json.Unmarshal(f.replier.sent[0].payload, &resp); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.Nonce != "n1" || resp.Error == "" {
		t.Fatalf("unexpected reply %+v", resp)
	}
}

func TestRuntimeCaptureCallFailure(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	f.rt.takeFail = true
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("expected ErrCaptureFailed, got %v", err)
	}
	if f.o.Queue().Len() != 0 {
		t.Fatalf("failed capture must not be queued")
	}
	// pre-capture empty submit plus the corrective one
	if len(f.rt.submits) != 2 || f.rt.submits[1] != nil {
		t.Fatalf("expected corrective empty submit, got %v", f.rt.submits)
	}
}

func TestFailedUnknownHandleIsNoop(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
		t.Fatalf("request: %v", err)
	}
	submits := len(f.rt.submits)
	f.o.OnScreenshotFailed(99)
	if !f.o.Queue().Has(7) || f.o.Queue().Len() != 1 {
		t.Fatalf("unknown failure must not touch the queue")
	}
	if len(f.rt.submits) != submits {
		t.Fatalf("unknown failure must not submit")
	}

	f.o.OnScreenshotFailed(7)
	if f.o.Queue().Len() != 0 {
		t.Fatalf("known failure must remove the entry")
	}
}

func TestTakenUnknownHandleOnlyNotifies(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	f.o.OnScreenshotTaken(42)
	f.o.Wait()
	if f.rt.noteCount() != 1 {
		t.Fatalf("expected the unknown-capture notification")
	}
	if len(f.sink.recs) != 0 || f.metrics.outcomes["unknown"] != 1 {
		t.Fatalf("unknown handle must not complete anything")
	}
}

func TestSuperSampleRejectedWhilePending(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true, SuperSample: true}); !errors.Is(err, ErrCaptureInFlight) {
		t.Fatalf("expected ErrCaptureInFlight, got %v", err)
	}
	if f.rt.takeCount() != 1 {
		t.Fatalf("second capture must not reach the runtime")
	}
	if len(f.rt.scaleSets) != 0 {
		t.Fatalf("render scale must be untouched")
	}
}

func TestNonSuperSampledCapturesMayOverlap(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	for i := 0; i < 2; i++ {
		if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}
	if f.o.Queue().Len() != 2 {
		t.Fatalf("expected two pending captures, got %d", f.o.Queue().Len())
	}
}

func TestSuperSampleRaisesAndRestoresScale(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	f.rt.scale = 1.5
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true, SuperSample: true}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if f.rt.scale != 4 {
		t.Fatalf("scale during capture = %v, want 4", f.rt.scale)
	}
	if f.slept < superSampleSettle {
		t.Fatalf("expected a settle wait before capturing")
	}
	f.o.OnScreenshotTaken(7)
	if f.rt.scale != 1.5 {
		t.Fatalf("scale not restored: %v", f.rt.scale)
	}
}

func TestApplicationChangeClearsQueue(t *testing.T) {
	f := newOrchestratorFixture(t, "app.one", nil)
	for i := 0; i < 3; i++ {
		if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
			t.Fatalf("request: %v", err)
		}
	}
	f.rt.setApp("app.two")
	f.o.OnApplicationChanged()
	if f.o.Queue().Len() != 0 {
		t.Fatalf("queue must be empty after app change")
	}
	if f.o.AppID() != "app.two" {
		t.Fatalf("app id not refreshed: %q", f.o.AppID())
	}
	if f.metrics.outcomes["orphaned"] != 3 {
		t.Fatalf("expected 3 orphaned captures, got %v", f.metrics.outcomes)
	}
	// late completion for an orphaned handle is treated as unknown
	f.o.OnScreenshotTaken(7)
	f.o.Wait()
	if len(f.sink.recs) != 0 {
		t.Fatalf("orphaned capture must not complete")
	}
}

func TestRemoteCaptureRepliesToSession(t *testing.T) {
	f := newOrchestratorFixture(t, "app", func(s *domain.Settings) {
		s.AddTag = true
		s.ResponseResolution = 2
	})
	remote := &domain.RemoteRequest{Nonce: "abc", Tag: "sunset", Session: stubSession("s1")}
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true, Remote: remote}); err != nil {
		t.Fatalf("request: %v", err)
	}
	if got := f.rt.takes[0].Name; got != "20240309_140506_789_sunset" {
		t.Fatalf("tag not in name: %q", got)
	}
	f.o.OnScreenshotTaken(7)
	f.o.Wait()
	if len(f.replier.sent) != 1 || f.replier.sent[0].session.ID() != "s1" {
		t.Fatalf("expected reply to s1, got %+v", f.replier.sent)
	}
	var resp domain.ScreenshotResponse
	if err := json.Unmarshal(f.replier.sent[0].payload, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Nonce != "abc" || resp.Image == "" || resp.Error != "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(f.imaging.encoded) != 1 || f.imaging.encoded[0] != 512 {
		t.Fatalf("expected encode at 512px, got %v", f.imaging.encoded)
	}
	if f.sink.recs[0].Nonce != "abc" || f.sink.recs[0].Tag != "sunset" {
		t.Fatalf("record lost remote origin: %+v", f.sink.recs[0])
	}
}

func TestTransmitAllBroadcastsLocalCaptures(t *testing.T) {
	f := newOrchestratorFixture(t, "app", func(s *domain.Settings) { s.TransmitAll = true })
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.o.OnScreenshotTaken(7)
	if len(f.replier.broadcast) != 1 || len(f.replier.sent) != 0 {
		t.Fatalf("expected one broadcast, got sent=%d broadcast=%d", len(f.replier.sent), len(f.replier.broadcast))
	}
}

func TestMissingFileRepliesError(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	f.rt.writeFiles = false
	remote := &domain.RemoteRequest{Nonce: "n", Session: stubSession("s")}
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true, Remote: remote}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.o.OnScreenshotTaken(7)
	f.o.Wait()
	if f.o.Queue().Len() != 0 {
		t.Fatalf("entry must be removed even when the file is missing")
	}
	if len(f.replier.sent) != 1 {
		t.Fatalf("expected an error reply")
	}
	var resp domain.ScreenshotResponse
	_ = json.Unmarshal(f.replier.sent[0].payload, &resp)
	if resp.Error == "" || resp.Image != "" {
		t.Fatalf("expected an error response, got %+v", resp)
	}
	if len(f.sink.recs) != 0 {
		t.Fatalf("missing file must not be journaled")
	}
}

func TestSaveRightImageAndSubmit(t *testing.T) {
	f := newOrchestratorFixture(t, "app", func(s *domain.Settings) {
		s.SaveRightImage = true
		s.SubmitToPlatform = true
	})
	if _, err := f.o.RequestCapture(CaptureRequest{ByUser: true}); err != nil {
		t.Fatalf("request: %v", err)
	}
	f.o.OnScreenshotTaken(7)
	f.o.Wait()
	if len(f.imaging.right) != 1 {
		t.Fatalf("expected a right-eye crop")
	}
	last := f.rt.submits[len(f.rt.submits)-1]
	if last == nil || last.Handle != 7 {
		t.Fatalf("expected a gallery submit for handle 7, got %v", last)
	}
	if f.sink.recs[0].FilePathRight != f.imaging.right[0] {
		t.Fatalf("record missing right-eye path")
	}
}

func TestDelayedCaptureWaitsThenCaptures(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	frames := 0
	f.o.SetFrameHook(250*time.Millisecond, func() { frames++ })

	if _, err := f.o.DelayedRequestCapture(5, false, nil); err != nil {
		t.Fatalf("delayed: %v", err)
	}
	if f.slept != 5*time.Second {
		t.Fatalf("slept %v, want 5s", f.slept)
	}
	if frames != 20 {
		t.Fatalf("expected 20 viewfinder frames, got %d", frames)
	}
	if f.rt.takeCount() != 1 {
		t.Fatalf("expected one capture after the delay")
	}

	f.slept = 0
	f.o.SetFrameHook(0, nil)
	if _, err := f.o.DelayedRequestCapture(0, false, nil); err != nil {
		t.Fatalf("delayed: %v", err)
	}
	if f.slept != 3*time.Second {
		t.Fatalf("local default delay not used: %v", f.slept)
	}
}

func TestDelayedCaptureKeepsLongerLocalDelay(t *testing.T) {
	f := newOrchestratorFixture(t, "app", func(s *domain.Settings) { s.DelaySeconds = 5 })
	remote := &domain.RemoteRequest{Nonce: "abc", Delay: 1}
	if _, err := f.o.DelayedRequestCapture(1, false, remote); err != nil {
		t.Fatalf("delayed: %v", err)
	}
	if f.slept != 5*time.Second {
		t.Fatalf("slept %v, want the 5s local delay", f.slept)
	}
}

func TestDelayedCaptureHonorsSuperSample(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	h, err := f.o.DelayedRequestCapture(0, true, nil)
	if err != nil {
		t.Fatalf("delayed: %v", err)
	}
	p, ok := f.o.Queue().Get(h)
	if !ok || !p.SuperSampled {
		t.Fatalf("expected a supersampled pending capture, got %+v", p)
	}
	if f.rt.RenderScale() != 4 {
		t.Fatalf("render scale not raised: %v", f.rt.RenderScale())
	}
}

func TestViewfinderReturnsAfterCapture(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	pose := domain.Pose{Transform: mat34.Identity(), Valid: true}
	update := func() {
		f.rt.overlays = nil
		f.o.vf.Update(pose, 110, f.o.Settings(), f.o.InFlight(), false)
	}
	visible := func() int {
		n := 0
		for _, st := range f.rt.overlays {
			if st.Visible {
				n++
			}
		}
		return n
	}

	f.o.vf.Show()
	update()
	if visible() != len(domain.OverlayKinds) {
		t.Fatalf("viewfinder not shown before capture")
	}
	h, err := f.o.RequestCapture(CaptureRequest{ByUser: true})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !f.o.vf.On() {
		t.Fatalf("capture must not switch the viewfinder off")
	}
	update()
	if visible() != 0 {
		t.Fatalf("overlays must stay hidden while the capture is in flight")
	}
	f.o.OnScreenshotTaken(h)
	update()
	if visible() != len(domain.OverlayKinds) {
		t.Fatalf("viewfinder did not come back after the capture, %d visible", visible())
	}
}

func TestCaptureStatesPublished(t *testing.T) {
	f := newOrchestratorFixture(t, "app", nil)
	ch := f.o.status.Subscribe()
	defer f.o.status.Unsubscribe(ch)

	h, err := f.o.RequestCapture(CaptureRequest{ByUser: true})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.o.OnScreenshotTaken(h)

	var got []string
	for len(ch) > 0 {
		if ev := <-ch; ev.Type == domain.StatusCapture {
			got = append(got, ev.Name)
		}
	}
	want := []string{
		string(domain.CaptureRequested),
		string(domain.CaptureAwaitingRuntime),
		string(domain.CaptureCompleted),
		string(domain.CaptureIdle),
	}
	if len(got) != len(want) {
		t.Fatalf("capture states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("capture states = %v, want %v", got, want)
		}
	}
}

func TestScreenshotHookOnlyWhenReplacing(t *testing.T) {
	f := newOrchestratorFixture(t, "app", func(s *domain.Settings) { s.ReplaceShortcut = false })
	if f.rt.hookCalls != 0 || f.o.Hooked() {
		t.Fatalf("hook must not be installed when not replacing the shortcut")
	}
	s := f.o.Settings()
	s.ReplaceShortcut = true
	f.o.UpdateSettings(s)
	if f.rt.hookCalls != 1 || !f.o.Hooked() {
		t.Fatalf("hook should be installed after enabling")
	}
	f.o.UpdateScreenshotHook(false)
	if f.rt.hookCalls != 1 {
		t.Fatalf("hook must not be reinstalled without force")
	}
}
