package usecase

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
)

// CaptureTrigger is the thread-safe face of the polling loop.
type CaptureTrigger interface {
	Ready() bool
	DashboardVisible() bool
	TriggerCapture(remote *domain.RemoteRequest, delaySeconds int) bool
}

// Dispatcher turns inbound socket messages into capture triggers. It runs
// on network goroutines and never touches orchestrator state directly.
type Dispatcher struct {
	trigger CaptureTrigger
	replier Replier
	logger  *zerolog.Logger
}

func NewDispatcher(trigger CaptureTrigger, replier Replier, logger *zerolog.Logger) *Dispatcher {
	if replier == nil {
		replier = nopReplier{}
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Dispatcher{trigger: trigger, replier: replier, logger: logger}
}

// HandleMessage decodes one text frame from session. The returned error is
// informational; only malformed payloads get a reply.
func (d *Dispatcher) HandleMessage(session domain.SessionRef, raw []byte) error {
	var msg domain.ScreenshotMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		d.logger.Warn().Err(err).Str("session", sessionID(session)).Msg("could not decode capture request")
		d.reply(session, domain.NewErrorResponse("", "could not decode request", err.Error()))
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return d.Dispatch(session, msg)
}

// Dispatch applies the gating rules to a decoded request and forwards it to
// the polling loop. A nil session marks a non-targeted request whose
// result is broadcast.
func (d *Dispatcher) Dispatch(session domain.SessionRef, msg domain.ScreenshotMessage) error {
	log := d.logger.With().Str("session", sessionID(session)).Str("nonce", msg.Nonce).Logger()
	switch {
	case !d.trigger.Ready():
		log.Debug().Msg("ignoring capture request: runtime not ready")
		return ErrNotReady
	case d.trigger.DashboardVisible():
		log.Debug().Msg("ignoring capture request: dashboard open")
		return ErrDashboardOpen
	case msg.Nonce == "":
		log.Debug().Msg("ignoring capture request without nonce")
		return ErrEmptyNonce
	}
	delay := msg.Delay
	if delay < 0 {
		delay = 0
	}
	req := &domain.RemoteRequest{Nonce: msg.Nonce, Delay: delay, Tag: msg.Tag, Session: session}
	if !d.trigger.TriggerCapture(req, delay) {
		return ErrTriggerDropped
	}
	log.Info().Int("delay", delay).Msg("capture request accepted")
	return nil
}

func (d *Dispatcher) reply(session domain.SessionRef, resp domain.ScreenshotResponse) {
	if session == nil || !d.replier.Running() {
		return
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	d.replier.Send(session, payload)
}

func sessionID(s domain.SessionRef) string {
	if s == nil {
		return ""
	}
	return s.ID()
}
