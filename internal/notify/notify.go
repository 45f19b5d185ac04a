package notify

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync/atomic"
)

// Urgency levels for notifications
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyNormal   Urgency = "normal"
	UrgencyCritical Urgency = "critical"
)

const appName = "CTA Overlay Renderer"

var enabled atomic.Bool

// SetEnabled turns desktop notifications on or off (off by default)
func SetEnabled(on bool) {
	enabled.Store(on)
}

// Enabled reports whether notifications are sent
func Enabled() bool {
	return enabled.Load()
}

// Send sends a desktop notification using notify-send
func Send(title, body string, urgency Urgency, icon string) error {
	if !Enabled() {
		return nil
	}

	args := []string{title, body}

	if urgency != "" {
		args = append(args, "--urgency="+string(urgency))
	}

	if icon != "" {
		args = append(args, "--icon="+icon)
	}

	cmd := exec.Command("notify-send", args...)
	return cmd.Run()
}

// Info sends an informational notification
func Info(title, body string) error {
	return Send(title, body, UrgencyNormal, "video-x-generic")
}

// Warning sends a warning notification
func Warning(title, body string) error {
	return Send(title, body, UrgencyLow, "dialog-warning")
}

// Error sends an error notification
func Error(title, body string) error {
	return Send(title, body, UrgencyCritical, "dialog-error")
}

// RenderComplete notifies that a render finished
func RenderComplete(outputPath string) error {
	return Info(appName, filepath.Base(outputPath)+" saved!")
}

// RenderFailed notifies that a render failed
func RenderFailed(reason string) error {
	return Error(appName+": render failed", reason)
}

// BatchComplete notifies that a batch finished
func BatchComplete(succeeded, total, failed int) error {
	body := fmt.Sprintf("Processed %d of %d files", succeeded, total)
	if failed > 0 {
		body += fmt.Sprintf(", %d with errors", failed)
		return Warning(appName, body)
	}
	return Info(appName, body)
}
