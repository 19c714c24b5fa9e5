package usecase

import (
	"math"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/pkg/shared/mat34"
)

// GeometryInput is everything the viewfinder layout depends on.
type GeometryInput struct {
	HeadPose    mat34.Mat34
	FovDeg      float64
	Distance    float64 // meters
	Opacity     float64 // 0..100
	ReticleSize float64 // percent of the viewfinder width
	Aspect      float64 // reticle texture width/height
}

// OverlayWidth is the quad width that exactly fills fovDeg at distance.
func OverlayWidth(distance, fovDeg float64) float64 {
	return 2 * distance * math.Tan(fovDeg*math.Pi/360)
}

// ComputeOverlays lays out the viewfinder, roll, pitch and reticle quads in
// head space. It is a pure function; Visible is left false for the caller's
// policy to decide.
func ComputeOverlays(in GeometryInput) [4]domain.OverlayState {
	width := OverlayWidth(in.Distance, in.FovDeg)
	factor := in.ReticleSize / 100
	aspect := in.Aspect
	if aspect <= 0 {
		aspect = 1
	}
	alpha := in.Opacity / 100

	static := mat34.Translation(0, 0, -in.Distance)
	roll := static.Mul(mat34.RotationZ(-in.HeadPose.Roll()))

	limit := width * factor / (8 * aspect)
	offset := in.Distance * math.Tan(-in.HeadPose.Pitch())
	offset = math.Max(-limit, math.Min(limit, offset))
	pitch := roll.Mul(mat34.Translation(0, offset, 0))

	return [4]domain.OverlayState{
		{Kind: domain.OverlayViewfinder, Width: width, Alpha: alpha, Transform: static},
		{Kind: domain.OverlayRoll, Width: width * factor, Alpha: alpha, Transform: roll},
		{Kind: domain.OverlayPitch, Width: width * factor, Alpha: alpha, Transform: pitch},
		{Kind: domain.OverlayReticle, Width: width * factor, Alpha: alpha, Transform: static},
	}
}

// ViewfinderVisible: enabled in settings, nothing in flight for the latest
// capture, and the platform dashboard closed.
func ViewfinderVisible(enabled, inFlight, dashboardOpen bool) bool {
	return enabled && !inFlight && !dashboardOpen
}
