package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/PolarWolf314/keysync/internal/configs"
	"github.com/PolarWolf314/keysync/internal/utils"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp string `json:"ts"`     // RFC3339 with microseconds.
	User      string `json:"user"`   // Local username.
	Device    string `json:"device"` // Sanitized hostname.
	Operation string `json:"op"`     // Operation name.

	// Optional fields depending on operation.
	RecordID     string `json:"record_id,omitempty"`     // For show/create/agree.
	Curve        string `json:"curve,omitempty"`         // For create.
	Outcome      string `json:"outcome,omitempty"`       // How the key was resolved.
	RemovedCount int    `json:"removed_count,omitempty"` // For dedup and delete.
	Account      string `json:"account,omitempty"`       // Remote account involved.
	Status       string `json:"status,omitempty"`        // For account set.
	Fingerprint  string `json:"fingerprint,omitempty"`   // Public key fingerprint.
}

// Log appends an entry to the audit log. Failures are ignored.
func Log(entry Entry) {
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	logPath := LogPath()
	if logPath == "" {
		return
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
		return
	}

	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	_, _ = f.Write(append(data, '\n'))
}

// LogWithUser returns an entry for op with the user and device filled in.
func LogWithUser(op string) Entry {
	entry := Entry{
		Operation: op,
		Device:    utils.DeviceName(),
	}
	if configs.UserKeysyncSettings != nil {
		entry.User = configs.UserKeysyncSettings.Username
	}
	return entry
}

// LogPath returns the path to the audit log file, or "" when no data
// directory is configured.
func LogPath() string {
	if configs.UserKeysyncSettings == nil || configs.UserKeysyncSettings.UserDataPath == "" {
		return ""
	}
	return configs.AuditLogPath()
}

// ReadEntries reads all entries from the audit log.
// Returns an empty slice if the log doesn't exist.
func ReadEntries() ([]Entry, error) {
	logPath := LogPath()
	if logPath == "" {
		return nil, nil
	}

	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
