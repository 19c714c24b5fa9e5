package usecase

import (
	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

// Viewfinder owns the on-headset indicator overlays. It lives on the polling
// goroutine.
type Viewfinder struct {
	rt     OverlayRuntime
	logger *zerolog.Logger
	on     bool
	shown  bool
	aspect float64
	last   [4]domain.OverlayState
}

func NewViewfinder(rt OverlayRuntime, logger *zerolog.Logger) *Viewfinder {
	return &Viewfinder{rt: rt, logger: logger}
}

func (v *Viewfinder) On() bool { return v.on }

func (v *Viewfinder) Show() { v.on = true }

func (v *Viewfinder) Toggle() bool {
	if v.on {
		v.Hide()
	} else {
		v.on = true
	}
	return v.on
}

// Hide switches the viewfinder off and pushes invisible overlays right away.
func (v *Viewfinder) Hide() {
	v.on = false
	v.Conceal()
}

// Conceal pushes invisible overlays but leaves the viewfinder on, so the
// next Update shows it again once nothing suppresses it.
func (v *Viewfinder) Conceal() {
	if !v.shown {
		return
	}
	v.shown = false
	for _, st := range v.last {
		st.Visible = false
		if err := v.rt.UpdateOverlay(st); err != nil {
			v.logger.Debug().Err(err).Str("overlay", string(st.Kind)).Msg("hide overlay failed")
		}
	}
}

// ResetAspect forgets the cached reticle aspect ratio; it is fetched again
// on the next update.
func (v *Viewfinder) ResetAspect() { v.aspect = 0 }

// Update recomputes the overlays for the current pose and applies them.
// It is a no-op while the viewfinder is off.
func (v *Viewfinder) Update(pose domain.Pose, fovDeg float64, s domain.Settings, inFlight, dashboardOpen bool) {
	if !v.on {
		return
	}
	if v.aspect <= 0 {
		v.aspect = v.rt.ReticleAspectRatio()
	}
	states := ComputeOverlays(GeometryInput{
		HeadPose:    pose.Transform,
		FovDeg:      fovDeg,
		Distance:    s.OverlayDistance,
		Opacity:     s.OverlayOpacity,
		ReticleSize: s.ReticleSize,
		Aspect:      v.aspect,
	})
	visible := pose.Valid && ViewfinderVisible(s.Viewfinder, inFlight, dashboardOpen)
	for i := range states {
		states[i].Visible = visible
		if err := v.rt.UpdateOverlay(states[i]); err != nil {
			v.logger.Debug().Err(err).Str("overlay", string(states[i].Kind)).Msg("update overlay failed")
		}
	}
	v.last = states
	v.shown = visible
}
