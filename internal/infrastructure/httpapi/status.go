package httpapi

import (
	"net/http"

	"vr-screenshotter/internal/domain"
)

type statusDTO struct {
	RuntimeReady     bool                       `json:"runtimeReady"`
	AppID            string                     `json:"appId"`
	DashboardVisible bool                       `json:"dashboardVisible"`
	PendingCaptures  int                        `json:"pendingCaptures"`
	Server           domain.ServerStatus        `json:"server"`
	Sessions         []domain.RemoteSessionInfo `json:"sessions"`
	MonitorClients   int                        `json:"monitorClients"`
}

func (d *Deps) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, "GET")
		return
	}
	out := statusDTO{
		RuntimeReady:     d.Loop.Ready(),
		DashboardVisible: d.Loop.DashboardVisible(),
		Sessions:         []domain.RemoteSessionInfo{},
	}
	if d.Status != nil {
		if ev, ok := d.Status.LastOf(domain.StatusApp); ok {
			out.AppID = ev.Text
		}
	}
	if d.Pending != nil {
		out.PendingCaptures = d.Pending.Len()
	}
	if d.Remote != nil {
		out.Server = d.Remote.Status()
		out.Sessions = append(out.Sessions, d.Remote.Sessions()...)
	}
	if d.Monitor != nil {
		out.MonitorClients = d.Monitor.Clients()
	}
	writeJSON(w, http.StatusOK, out)
}
