package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"vr-screenshotter/internal/infrastructure/config"
)

const maxSettingsBody = 64 << 10

// handleSettings reads or updates the live settings. POST bodies are merged
// over the current snapshot, so clients may send only the fields they change.
func (d *Deps) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, d.Loop.Settings())
	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingsBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_BODY", "could not read body", nil)
			return
		}
		prev := d.Loop.Settings()
		next := prev
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&next); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_JSON", "invalid json", map[string]any{"reason": err.Error()})
			return
		}
		if err := config.ValidateSettings(&next); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_VALUE", err.Error(), nil)
			return
		}

		if d.Remote != nil {
			switch {
			case next.EnableServer && (!d.Remote.Running() || next.ServerPort != prev.ServerPort):
				if err := d.Remote.Start(next.ServerPort); err != nil {
					d.Logger.Error().Err(err).Int("port", next.ServerPort).Msg("remote server start failed")
					writeError(w, http.StatusConflict, "SERVER_START_FAILED", err.Error(), map[string]any{"port": next.ServerPort})
					return
				}
			case !next.EnableServer && d.Remote.Running():
				d.Remote.Stop()
			}
		}

		if !d.Loop.UpdateSettings(next) {
			writeError(w, http.StatusServiceUnavailable, "TRIGGER_BUFFER_FULL", "settings update dropped", nil)
			return
		}
		d.Logger.Info().Msg("settings updated")
		writeJSON(w, http.StatusOK, next)
	default:
		methodNotAllowed(w, "GET, POST")
	}
}
