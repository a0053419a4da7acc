package utils

import (
	"os"
	"os/user"
	"regexp"
	"strings"
)

var (
	deviceNameInvalid = regexp.MustCompile(`[^a-z0-9\-_]`)
	deviceNameHyphens = regexp.MustCompile(`-+`)
)

// GetUsername returns the current username.
func GetUsername() (string, error) {
	user, err := user.Current()
	if err != nil {
		return "", err
	}
	return user.Username, nil
}

// GetHostname returns the system hostname.
func GetHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", err
	}
	return hostname, nil
}

// SanitizeDeviceName lowercases name, turns spaces into hyphens and drops
// anything that is not alphanumeric, a hyphen or an underscore.
func SanitizeDeviceName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "-")
	name = deviceNameInvalid.ReplaceAllString(name, "")
	name = deviceNameHyphens.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-")

	if name == "" {
		name = "device"
	}

	return name
}

// DeviceName names this machine, falling back to the username when the
// hostname is unavailable.
func DeviceName() string {
	hostname, err := GetHostname()
	if err != nil {
		username, userErr := GetUsername()
		if userErr != nil {
			return "device"
		}
		hostname = username
	}
	return SanitizeDeviceName(hostname)
}
