package logger

import (
	"fmt"
	"time"
)

// LogDownload logs a content or thumbnail download outcome
func LogDownload(username, name, kind string, success bool, err error) {
	fields := map[string]interface{}{
		"username": username,
		"name":     name,
		"kind":     kind,
		"success":  success,
	}

	l := GetLogger().WithFields(fields)

	if err != nil {
		l.WithError(err).Error("Download failed")
	} else if success {
		l.Info("Download completed")
	} else {
		l.Warn("Download skipped")
	}
}

// LogRetryWait logs a transient failure with its retry countdown
func LogRetryWait(operation string, attempt int, delay time.Duration, err error) {
	GetLogger().WithFields(map[string]interface{}{
		"operation": operation,
		"attempt":   attempt,
		"retry_in":  delay.String(),
		"error":     err.Error(),
	}).Warn("Transient failure, retrying")
}

// LogOutage logs the terminal site-down event that halts all acquisition
func LogOutage(component string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"action":    "outage",
	}).Error("Remote site unreachable, halting all acquisition")
}

// LogWalkSummary logs the accounting for one completed walk
func LogWalkSummary(username, section string, found, newLinks, alreadyKnown int) {
	GetLogger().WithFields(map[string]interface{}{
		"username":      username,
		"section":       section,
		"found":         found,
		"new":           newLinks,
		"already_known": alreadyKnown,
	}).Info(fmt.Sprintf("Walk finished: %d found, %d new, %d already downloaded", found, newLinks, alreadyKnown))
}

// LogComponentStart logs when a component starts
func LogComponentStart(component string, config map[string]interface{}) {
	l := GetLogger().WithField("component", component)
	if len(config) > 0 {
		l = l.WithFields(config)
	}
	l.Info("Component started")
}

// LogComponentStop logs when a component stops
func LogComponentStop(component string, reason string) {
	GetLogger().WithFields(map[string]interface{}{
		"component": component,
		"reason":    reason,
	}).Info("Component stopped")
}
