package configs

import (
	"log"
	"os"
	"path/filepath"

	"github.com/PolarWolf314/keysync/internal/utils"
)

type UserSettings struct {
	// UserConfigsPath is the directory holding config.toml.
	UserConfigsPath string

	// UserDataPath holds the file store and the audit log.
	UserDataPath string

	Username string
}

var UserKeysyncSettings *UserSettings

func init() {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Fatalf("error getting home directory: %s", err)
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatalf("error getting config directory: %s", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")

	if dataDir == "" {
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	username, err := utils.GetUsername()
	if err != nil {
		log.Fatalf("error getting username: %s", err)
	}

	UserKeysyncSettings = &UserSettings{
		UserConfigsPath: filepath.Join(configDir, "keysync"),
		UserDataPath:    filepath.Join(dataDir, "keysync"),
		Username:        username,
	}
}

// DefaultConfigPath returns KEYSYNC_CONFIG if set, otherwise config.toml in
// the user config directory.
func DefaultConfigPath() string {
	if path := os.Getenv("KEYSYNC_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(UserKeysyncSettings.UserConfigsPath, "config.toml")
}

// DefaultStorePath returns the key file used by the file driver.
func DefaultStorePath() string {
	return filepath.Join(UserKeysyncSettings.UserDataPath, "keys.toml")
}

// AuditLogPath returns the audit log location.
func AuditLogPath() string {
	return filepath.Join(UserKeysyncSettings.UserDataPath, "audit.jsonl")
}
