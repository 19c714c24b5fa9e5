package domain

import "vr-screenshotter/pkg/shared/mat34"

type OverlayKind string

const (
	OverlayViewfinder OverlayKind = "viewfinder"
	OverlayRoll       OverlayKind = "roll"
	OverlayPitch      OverlayKind = "pitch"
	OverlayReticle    OverlayKind = "reticle"
)

// OverlayKinds lists the indicator overlays in draw order.
var OverlayKinds = []OverlayKind{OverlayViewfinder, OverlayRoll, OverlayPitch, OverlayReticle}

// OverlayState is recomputed every active frame and never persisted.
// Transform is relative to the head-mounted display.
type OverlayState struct {
	Kind      OverlayKind
	Width     float64
	Alpha     float64
	Transform mat34.Mat34
	Visible   bool
}

type Pose struct {
	Transform mat34.Mat34
	Valid     bool
}

// ActionStates is one poll of the digital input actions. Fields report a
// press edge since the previous poll, except ChordModifier which is held state.
type ActionStates struct {
	TakeScreenshot        bool
	TakeDelayedScreenshot bool
	ToggleViewfinder      bool
	ChordModifier         bool
	ChordTrigger          bool
}
