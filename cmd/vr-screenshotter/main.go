package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"vr-screenshotter/internal/adapters/imaging"
	"vr-screenshotter/internal/adapters/remote"
	mqttsink "vr-screenshotter/internal/adapters/sinks/mqtt"
	redissink "vr-screenshotter/internal/adapters/sinks/redis"
	"vr-screenshotter/internal/adapters/storage/memory"
	"vr-screenshotter/internal/adapters/vrsim"
	cfgpkg "vr-screenshotter/internal/infrastructure/config"
	httpapi "vr-screenshotter/internal/infrastructure/httpapi"
	obs "vr-screenshotter/internal/infrastructure/observability"
	"vr-screenshotter/internal/usecase"
	"vr-screenshotter/pkg/shared/redact"
)

type closableSink interface {
	usecase.ResultSink
	io.Closer
}

func main() {
	cfg, err := cfgpkg.FromEnv()
	logger := obs.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error().Err(err).Msg("configuration error")
		os.Exit(1)
	}
	logger.Info().Str("addr", cfg.Addr).Str("dir", cfg.Settings.Directory).Msg("starting vr-screenshotter")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := obs.NewMetrics()
	status := usecase.NewStatusHub()

	rt := vrsim.New(vrsim.Options{
		AppID:     cfg.Sim.AppID,
		DisplayHz: cfg.Sim.DisplayHz,
		FovDeg:    cfg.Sim.FovDeg,
	}, obs.Component(logger, "runtime"))
	server := remote.NewServer(obs.Component(logger, "remote"), status, metrics)
	history := memory.NewStore(500, 2*time.Hour)
	sinks := append([]closableSink{history}, openSinks(cfg, logger)...)

	resultSinks := make([]usecase.ResultSink, 0, len(sinks))
	for _, s := range sinks {
		resultSinks = append(resultSinks, s)
	}
	vf := usecase.NewViewfinder(rt, obs.Component(logger, "viewfinder"))
	orch := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Runtime:    rt,
		Viewfinder: vf,
		Audio:      rt,
		Replier:    server,
		Imaging:    imaging.NewProcessor(),
		Sinks:      resultSinks,
		Status:     status,
		Metrics:    metrics,
		Logger:     obs.Component(logger, "capture"),
	}, cfg.Settings)
	loop := usecase.NewLoop(usecase.LoopDeps{
		Runtime:      rt,
		Orchestrator: orch,
		Viewfinder:   vf,
		Status:       status,
		Metrics:      metrics,
		Logger:       obs.Component(logger, "loop"),
		OnExit: func() {
			logger.Info().Msg("runtime quit, exiting with it")
			stop()
		},
	})
	server.SetHandler(usecase.NewDispatcher(loop, server, obs.Component(logger, "dispatcher")))
	if cfg.Settings.EnableServer {
		if err := server.Start(cfg.Settings.ServerPort); err != nil {
			logger.Error().Err(err).Int("port", cfg.Settings.ServerPort).Msg("remote server start failed")
		}
	}

	deps := &httpapi.Deps{
		Cfg:     cfg,
		Logger:  obs.Component(logger, "httpapi"),
		Metrics: metrics,
		Loop:    loop,
		Pending: orch.Queue(),
		History: history,
		Remote:  server,
		Status:  status,
		Monitor: httpapi.NewMonitorHub(status),
	}
	go deps.Monitor.Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	loopDone := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(loopDone)
	}()

	<-ctx.Done()
	<-loopDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown error")
	}
	server.Stop()
	orch.Wait()
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			logger.Warn().Err(err).Str("sink", s.Name()).Msg("sink close failed")
		}
	}
	logger.Info().Msg("vr-screenshotter stopped")
}

// openSinks connects the configured result sinks. A sink that cannot be
// reached at startup is skipped.
func openSinks(cfg cfgpkg.Config, logger *zerolog.Logger) []closableSink {
	var out []closableSink
	if cfg.Sinks.RedisURL != "" {
		s, err := redissink.New(cfg.Sinks.RedisURL, cfg.Sinks.RedisKey)
		if err != nil {
			logger.Error().Err(err).Str("url", redact.URL(cfg.Sinks.RedisURL)).Msg("redis sink disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := s.Ping(ctx); err != nil {
				logger.Warn().Err(err).Msg("redis not reachable yet, capture records may be lost")
			}
			cancel()
			logger.Info().Str("url", redact.URL(cfg.Sinks.RedisURL)).Str("key", cfg.Sinks.RedisKey).Msg("redis sink enabled")
			out = append(out, s)
		}
	}
	if cfg.Sinks.MQTTBroker != "" {
		s, err := mqttsink.Connect(cfg.Sinks.MQTTBroker, cfg.Sinks.MQTTClientID, cfg.Sinks.MQTTTopic, obs.Component(logger, "mqtt"))
		if err != nil {
			logger.Error().Err(err).Str("broker", redact.URL(cfg.Sinks.MQTTBroker)).Msg("mqtt sink disabled")
		} else {
			out = append(out, s)
		}
	}
	return out
}
