package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"vr-screenshotter/internal/domain"
	"vr-screenshotter/internal/infrastructure/config"
	obs "vr-screenshotter/internal/infrastructure/observability"
	"vr-screenshotter/internal/usecase"
)

// LoopControl is the thread-safe surface of the polling loop.
type LoopControl interface {
	Ready() bool
	DashboardVisible() bool
	Settings() domain.Settings
	TriggerLocal(superSample bool, delaySeconds int, remote *domain.RemoteRequest) bool
	SetViewfinder(on bool) bool
	UpdateSettings(s domain.Settings) bool
}

type PendingView interface {
	Snapshot() []domain.PendingCapture
	Len() int
}

// RemoteControl starts and inspects the remote socket server.
type RemoteControl interface {
	Start(port int) error
	Stop()
	Running() bool
	Status() domain.ServerStatus
	Sessions() []domain.RemoteSessionInfo
}

type Deps struct {
	Cfg     config.Config
	Logger  *zerolog.Logger
	Metrics *obs.Metrics
	Loop    LoopControl
	Pending PendingView
	History usecase.CaptureHistory
	Remote  RemoteControl
	Status  *usecase.StatusHub
	Monitor *MonitorHub
}

func NewRouter(d *Deps) http.Handler {
	if d.Monitor == nil {
		d.Monitor = NewMonitorHub(d.Status)
	}
	return withCORS(d.Cfg, buildBaseMux(d))
}

func buildBaseMux(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !d.Loop.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("runtime not initialized"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		info := obs.BuildInfo()
		info["name"] = "vr-screenshotter"
		writeJSON(w, http.StatusOK, info)
	})

	mux.HandleFunc("/api/status", d.handleStatus)
	mux.HandleFunc("/api/captures", d.handleCaptures)
	mux.HandleFunc("/api/history", d.handleHistory)
	mux.HandleFunc("/api/history/", d.handleHistoryByID)
	mux.HandleFunc("/api/viewfinder", d.handleViewfinder)
	mux.HandleFunc("/api/settings", d.handleSettings)
	mux.HandleFunc("/api/monitor/ws", d.Monitor.HandleWS)

	return mux
}

func withCORS(cfg config.Config, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
