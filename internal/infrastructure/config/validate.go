package config

import (
	"errors"
	"fmt"

	"vr-screenshotter/internal/domain"
)

// Validate checks ranges the capture core relies on.
func Validate(cfg *Config) error {
	if err := ValidateSettings(&cfg.Settings); err != nil {
		return err
	}
	if cfg.Sinks.RedisURL != "" && cfg.Sinks.RedisKey == "" {
		return errors.New("redis_key is required when redis_url is set")
	}
	if cfg.Sinks.MQTTBroker != "" && cfg.Sinks.MQTTTopic == "" {
		return errors.New("mqtt_topic is required when mqtt_broker is set")
	}
	return nil
}

// ValidateSettings checks a settings snapshot. Negative timer and delay
// values are folded to their absolute value.
func ValidateSettings(s *domain.Settings) error {
	if s.TimerSeconds < 0 {
		s.TimerSeconds = -s.TimerSeconds
	}
	if s.DelaySeconds < 0 {
		s.DelaySeconds = -s.DelaySeconds
	}
	if s.CaptureTimer && s.TimerSeconds == 0 {
		return errors.New("timer_seconds must be > 0 when capture_timer is enabled")
	}
	if s.ServerPort < 0 || s.ServerPort > 65535 {
		return fmt.Errorf("server_port out of range: %d", s.ServerPort)
	}
	if s.OverlayDistance <= 0 {
		return fmt.Errorf("overlay_distance must be > 0, got %v", s.OverlayDistance)
	}
	if s.OverlayOpacity < 0 || s.OverlayOpacity > 100 {
		return fmt.Errorf("overlay_opacity must be within 0..100, got %v", s.OverlayOpacity)
	}
	if s.ReticleSize < 0 || s.ReticleSize > 100 {
		return fmt.Errorf("reticle_size must be within 0..100, got %v", s.ReticleSize)
	}
	if s.SuperSamplingScale <= 0 {
		return fmt.Errorf("supersampling_scale must be > 0, got %v", s.SuperSamplingScale)
	}
	if s.ResponseResolution < 0 || s.ResponseResolution >= len(domain.ResponseResolutions) {
		return fmt.Errorf("response_resolution must be within 0..%d", len(domain.ResponseResolutions)-1)
	}
	return nil
}
