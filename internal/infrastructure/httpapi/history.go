package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"vr-screenshotter/internal/usecase"
)

func (d *Deps) handleHistory(w http.ResponseWriter, r *http.Request) {
	if d.History == nil {
		writeError(w, http.StatusNotFound, "HISTORY_DISABLED", "capture history is disabled", nil)
		return
	}
	switch r.Method {
	case http.MethodDelete:
		if err := d.History.ClearRecords(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "HISTORY_CLEAR_FAILED", err.Error(), nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		offset, _ := strconv.Atoi(q.Get("offset"))
		f := usecase.HistoryFilter{Q: q.Get("q"), AppID: q.Get("app"), Limit: limit, Offset: offset}
		items, total, err := d.History.ListRecords(r.Context(), f)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "HISTORY_LIST_FAILED", err.Error(), nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": total})
	default:
		methodNotAllowed(w, "GET, DELETE")
	}
}

func (d *Deps) handleHistoryByID(w http.ResponseWriter, r *http.Request) {
	// path: /api/history/{id}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/history/"), "/")
	if id == "" {
		d.handleHistory(w, r)
		return
	}
	if d.History == nil {
		writeError(w, http.StatusNotFound, "HISTORY_DISABLED", "capture history is disabled", nil)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	rec, ok, err := d.History.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "HISTORY_GET_FAILED", err.Error(), map[string]any{"id": id})
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "capture record not found", map[string]any{"id": id})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
