package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"vr-screenshotter/internal/domain"
)

type Config struct {
	Addr     string
	LogLevel string
	DevMode  bool
	// Access-Control-Allow-Origin for the ops API
	CORSAllowOrigin string
	// Optional YAML file layered between defaults and env overrides
	ConfigFile string

	Settings domain.Settings `yaml:"settings"`
	Sinks    Sinks           `yaml:"sinks"`
	Sim      Sim             `yaml:"sim"`
}

// Sinks configures optional consumers of completed captures. Empty
// endpoints disable the sink.
type Sinks struct {
	RedisURL     string `yaml:"redis_url"`
	RedisKey     string `yaml:"redis_key"`
	MQTTBroker   string `yaml:"mqtt_broker"`
	MQTTTopic    string `yaml:"mqtt_topic"`
	MQTTClientID string `yaml:"mqtt_client_id"`
}

// Sim configures the simulated runtime used when no headset runtime is attached.
type Sim struct {
	AppID     string  `yaml:"app_id"`
	DisplayHz float64 `yaml:"display_hz"`
	FovDeg    float64 `yaml:"fov_deg"`
}

func Default() Config {
	wd, _ := os.Getwd()
	return Config{
		Addr:     ":9092",
		LogLevel: "info",

		CORSAllowOrigin: "*",
		Settings: domain.Settings{
			Directory:          wd,
			SubfolderPerApp:    true,
			ReplaceShortcut:    true,
			Notifications:      true,
			Thumbnail:          true,
			Audio:              true,
			TimerSeconds:       10,
			DelaySeconds:       5,
			SuperSamplingScale: 5,
			ServerPort:         8807,
			ResponseResolution: 1,
			Viewfinder:         true,
			OverlayDistance:    1,
			OverlayOpacity:     50,
			ReticleSize:        25,
		},
		Sinks: Sinks{
			RedisKey:     "vr_screenshotter_captures",
			MQTTTopic:    "vr-screenshotter/captures",
			MQTTClientID: "vr-screenshotter",
		},
		Sim: Sim{AppID: "steam.app.demo", DisplayHz: 90, FovDeg: 110},
	}
}

func FromEnv() (Config, error) {
	cfg := Default()
	cfg.ConfigFile = getEnv("CONFIG_FILE", "")
	if cfg.ConfigFile != "" {
		if err := loadFile(cfg.ConfigFile, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DevMode = getEnvBool("DEV_MODE", cfg.DevMode)
	cfg.CORSAllowOrigin = getEnv("CORS_ALLOW_ORIGIN", cfg.CORSAllowOrigin)

	s := &cfg.Settings
	s.Directory = getEnv("SCREENSHOT_DIR", s.Directory)
	s.SubfolderPerApp = getEnvBool("SUBFOLDER_PER_APP", s.SubfolderPerApp)
	s.ReplaceShortcut = getEnvBool("REPLACE_SHORTCUT", s.ReplaceShortcut)
	s.SubmitToPlatform = getEnvBool("SUBMIT_TO_PLATFORM", s.SubmitToPlatform)
	s.SaveRightImage = getEnvBool("SAVE_RIGHT_IMAGE", s.SaveRightImage)
	s.Notifications = getEnvBool("NOTIFICATIONS", s.Notifications)
	s.Thumbnail = getEnvBool("THUMBNAIL", s.Thumbnail)
	s.Audio = getEnvBool("AUDIO", s.Audio)
	s.ExitWithRuntime = getEnvBool("EXIT_WITH_RUNTIME", s.ExitWithRuntime)
	s.CaptureTimer = getEnvBool("CAPTURE_TIMER", s.CaptureTimer)
	s.TimerSeconds = getEnvInt("TIMER_SECONDS", s.TimerSeconds)
	s.TimerDateSubfolder = getEnvBool("TIMER_DATE_SUBFOLDER", s.TimerDateSubfolder)
	s.DelayCapture = getEnvBool("DELAY_CAPTURE", s.DelayCapture)
	s.DelaySeconds = getEnvInt("DELAY_SECONDS", s.DelaySeconds)
	s.SuperSampling = getEnvBool("SUPERSAMPLING", s.SuperSampling)
	s.SuperSamplingScale = getEnvFloat("SUPERSAMPLING_SCALE", s.SuperSamplingScale)
	s.EnableServer = getEnvBool("ENABLE_SERVER", s.EnableServer)
	s.ServerPort = getEnvInt("SERVER_PORT", s.ServerPort)
	s.AddTag = getEnvBool("ADD_TAG", s.AddTag)
	s.TransmitAll = getEnvBool("TRANSMIT_ALL", s.TransmitAll)
	s.ResponseResolution = getEnvInt("RESPONSE_RESOLUTION", s.ResponseResolution)
	s.Viewfinder = getEnvBool("VIEWFINDER", s.Viewfinder)
	s.OverlayDistance = getEnvFloat("OVERLAY_DISTANCE", s.OverlayDistance)
	s.OverlayOpacity = getEnvFloat("OVERLAY_OPACITY", s.OverlayOpacity)
	s.ReticleSize = getEnvFloat("RETICLE_SIZE", s.ReticleSize)

	cfg.Sinks.RedisURL = getEnv("REDIS_URL", cfg.Sinks.RedisURL)
	cfg.Sinks.RedisKey = getEnv("REDIS_KEY", cfg.Sinks.RedisKey)
	cfg.Sinks.MQTTBroker = getEnv("MQTT_BROKER", cfg.Sinks.MQTTBroker)
	cfg.Sinks.MQTTTopic = getEnv("MQTT_TOPIC", cfg.Sinks.MQTTTopic)
	cfg.Sinks.MQTTClientID = getEnv("MQTT_CLIENT_ID", cfg.Sinks.MQTTClientID)

	cfg.Sim.AppID = getEnv("SIM_APP_ID", cfg.Sim.AppID)
	cfg.Sim.DisplayHz = getEnvFloat("SIM_DISPLAY_HZ", cfg.Sim.DisplayHz)

	if err := Validate(&cfg); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}
