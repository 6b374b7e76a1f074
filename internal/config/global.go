// SPDX-License-Identifier: MPL-2.0

package config

// configDirOverride allows tests to override the user config directory.
var configDirOverride string

// Reset clears test overrides. Call from test cleanup to restore defaults.
func Reset() {
	configDirOverride = ""
}

// SetConfigDirOverride sets a custom config directory path. It exists for
// tests, where os.UserConfigDir does not reliably honor HOME on every
// platform.
func SetConfigDirOverride(dir string) {
	configDirOverride = dir
}
