package usecase

import "errors"

var (
	ErrNoApplication   = errors.New("no application is running")
	ErrCaptureInFlight = errors.New("supersampled capture rejected: a capture is already pending")
	ErrCaptureFailed   = errors.New("runtime capture call failed")
)

// Remote request gating. Only ErrMalformedMessage is answered on the socket.
var (
	ErrMalformedMessage = errors.New("malformed capture request")
	ErrEmptyNonce       = errors.New("capture request without nonce")
	ErrNotReady         = errors.New("runtime not ready")
	ErrDashboardOpen    = errors.New("dashboard is open")
	ErrTriggerDropped   = errors.New("capture trigger dropped")
)
