package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"vr-screenshotter/interfaces/go/client"
	obs "vr-screenshotter/internal/infrastructure/observability"
)

// vr-capture asks a running vr-screenshotter for a screenshot over the
// remote socket protocol and optionally saves the returned image.
func main() {
	url := flag.String("url", "ws://127.0.0.1:8807/", "Remote socket server URL")
	nonce := flag.String("nonce", "", "Request nonce (random when empty)")
	delay := flag.Int("delay", 0, "Seconds to wait before capturing")
	tag := flag.String("tag", "", "Tag appended to the file name when tagging is enabled")
	out := flag.String("out", "", "Write the returned PNG to this path")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for the reply")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vr-capture %s (%s)\n", obs.Version, obs.Commit)
		os.Exit(0)
	}
	level := "info"
	if *debug {
		level = "debug"
	}
	logger := obs.NewLogger(level)
	if *nonce == "" {
		*nonce = uuid.NewString()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout+time.Duration(*delay)*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, *url)
	if err != nil {
		logger.Error().Err(err).Msg("connect failed")
		os.Exit(1)
	}
	defer c.Close()

	logger.Debug().Str("nonce", *nonce).Int("delay", *delay).Str("tag", *tag).Msg("requesting capture")
	resp, err := c.Capture(ctx, *nonce, *delay, *tag)
	if err != nil {
		logger.Error().Err(err).Msg("capture request failed")
		os.Exit(1)
	}
	if resp.Failed() {
		logger.Error().Str("message", resp.Message).Str("error", resp.Error).Msg("capture failed")
		os.Exit(2)
	}
	logger.Info().
		Str("file", resp.FilePath).
		Str("fileVR", resp.FilePathVR).
		Int("width", resp.Width).
		Int("height", resp.Height).
		Msg("capture completed")

	if *out != "" {
		data, err := base64.StdEncoding.DecodeString(resp.Image)
		if err != nil {
			logger.Error().Err(err).Msg("reply image is not valid base64")
			os.Exit(1)
		}
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			logger.Error().Err(err).Str("path", *out).Msg("write failed")
			os.Exit(1)
		}
		logger.Info().Str("path", *out).Int("bytes", len(data)).Msg("image saved")
	}
}
