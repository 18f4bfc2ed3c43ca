package config

// DiffResult describes what changed between two configs. Only fields that can
// be safely hot-reloaded without restarting the capture stream are tracked.
type DiffResult struct {
	VADChanged           bool
	NewVAD               VADConfig
	LogLevelChanged      bool
	NewLogLevel          LogLevel
	NotificationsChanged bool
	NewNotifications     NotificationsConfig
}

// Any reports whether the diff contains at least one hot-reloadable change.
func (d DiffResult) Any() bool {
	return d.VADChanged || d.LogLevelChanged || d.NotificationsChanged
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart: model and
// server settings require a daemon restart and are deliberately ignored.
func Diff(old, new *Config) DiffResult {
	d := DiffResult{}

	if old.VAD != new.VAD {
		d.VADChanged = true
		d.NewVAD = new.VAD
	}
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Notifications != new.Notifications {
		d.NotificationsChanged = true
		d.NewNotifications = new.Notifications
	}

	return d
}
