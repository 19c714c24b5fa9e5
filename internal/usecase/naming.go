package usecase

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"vr-screenshotter/internal/domain"
)

const maxTagLen = 64

// OutputDir resolves root[/appId][/YYYY-MM-DD]. The date level is only used
// for unattended timer captures.
func OutputDir(s domain.Settings, appID string, timer bool, now time.Time) string {
	dir := s.Directory
	if s.SubfolderPerApp && appID != "" {
		dir = filepath.Join(dir, sanitizeName(appID))
	}
	if timer && s.TimerDateSubfolder {
		dir = filepath.Join(dir, now.Format("2006-01-02"))
	}
	return dir
}

// CaptureName builds the file base name for a capture; the tag is appended
// only when tagging is enabled.
func CaptureName(now time.Time, tag string, addTag bool) string {
	name := now.Format("20060102_150405") + fmt.Sprintf("_%03d", now.Nanosecond()/int(time.Millisecond))
	if addTag {
		if t := sanitizeName(tag); t != "" {
			name += "_" + t
		}
	}
	return name
}

// RightEyePath derives the cropped right-eye file next to the stereo file.
func RightEyePath(vrPath string) string {
	ext := filepath.Ext(vrPath)
	base := strings.TrimSuffix(vrPath, ext)
	base = strings.TrimSuffix(base, "_vr")
	if ext == "" {
		ext = ".png"
	}
	return base + "_right" + ext
}

func sanitizeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('_')
		}
		if b.Len() >= maxTagLen {
			break
		}
	}
	return strings.Trim(b.String(), ".")
}
