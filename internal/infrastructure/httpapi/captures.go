package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"vr-screenshotter/internal/domain"
)

type pendingDTO struct {
	Handle       domain.Handle `json:"handle"`
	ByUser       bool          `json:"byUser"`
	SuperSampled bool          `json:"superSampled"`
	Nonce        string        `json:"nonce,omitempty"`
	Tag          string        `json:"tag,omitempty"`
	FilePath     string        `json:"filePath"`
	RequestedAt  time.Time     `json:"requestedAt"`
}

type captureRequestDTO struct {
	Delay       int    `json:"delay"`
	SuperSample bool   `json:"superSample"`
	Tag         string `json:"tag"`
	Nonce       string `json:"nonce"`
}

func (d *Deps) handleCaptures(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		items := []pendingDTO{}
		for _, p := range d.Pending.Snapshot() {
			dto := pendingDTO{
				Handle:       p.Handle,
				ByUser:       p.ByUser,
				SuperSampled: p.SuperSampled,
				FilePath:     p.FilePath,
				RequestedAt:  p.RequestedAt,
			}
			if p.Remote != nil {
				dto.Nonce = p.Remote.Nonce
				dto.Tag = p.Remote.Tag
			}
			items = append(items, dto)
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
	case http.MethodPost:
		var in captureRequestDTO
		if r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
				return
			}
		}
		if in.Delay < 0 {
			writeError(w, http.StatusBadRequest, "BAD_VALUE", "delay must be non-negative", map[string]any{"delay": in.Delay})
			return
		}
		if !d.Loop.Ready() {
			writeError(w, http.StatusServiceUnavailable, "RUNTIME_NOT_READY", "runtime not initialized", nil)
			return
		}
		// a nonce or tag makes the capture answer remote sessions like a socket request
		var remote *domain.RemoteRequest
		if strings.TrimSpace(in.Nonce) != "" || in.Tag != "" {
			remote = &domain.RemoteRequest{Nonce: strings.TrimSpace(in.Nonce), Delay: in.Delay, Tag: in.Tag}
		}
		if !d.Loop.TriggerLocal(in.SuperSample, in.Delay, remote) {
			writeError(w, http.StatusServiceUnavailable, "TRIGGER_BUFFER_FULL", "capture trigger dropped", nil)
			return
		}
		d.Logger.Info().Int("delay", in.Delay).Bool("superSample", in.SuperSample).Str("tag", in.Tag).Msg("capture requested over http")
		writeJSON(w, http.StatusAccepted, map[string]any{"accepted": true})
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

type viewfinderDTO struct {
	On bool `json:"on"`
}

func (d *Deps) handleViewfinder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}
	var in viewfinderDTO
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", nil)
		return
	}
	if !d.Loop.Ready() {
		writeError(w, http.StatusServiceUnavailable, "RUNTIME_NOT_READY", "runtime not initialized", nil)
		return
	}
	if !d.Loop.SetViewfinder(in.On) {
		writeError(w, http.StatusServiceUnavailable, "TRIGGER_BUFFER_FULL", "viewfinder change dropped", nil)
		return
	}
	writeJSON(w, http.StatusAccepted, in)
}
