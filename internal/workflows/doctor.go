package workflows

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/PolarWolf314/keysync/internal/audit"
	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	"github.com/PolarWolf314/keysync/internal/keycodec"
	"github.com/PolarWolf314/keysync/internal/keystore"
	logger "github.com/PolarWolf314/keysync/internal/logging"
)

// remoteCheckTimeout bounds the reachability probe.
const remoteCheckTimeout = 5 * time.Second

// CheckStatus represents the result status of a health check.
type CheckStatus int

const (
	// CheckPass means the check passed.
	CheckPass CheckStatus = iota
	// CheckWarning means the check found a non-critical issue.
	CheckWarning
	// CheckError means the check found a critical issue.
	CheckError
)

// String returns a string representation of CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarning:
		return "warning"
	case CheckError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for CheckStatus.
func (s CheckStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// CheckResult holds the result of a single health check.
type CheckResult struct {
	Name       string      `json:"name"`
	Status     CheckStatus `json:"status"`
	Message    string      `json:"message"`
	Suggestion string      `json:"suggestion,omitempty"`
}

// DoctorResult holds the complete result of the doctor workflow.
type DoctorResult struct {
	Checks      []CheckResult `json:"checks"`
	Summary     DoctorSummary `json:"summary"`
	Suggestions []string      `json:"suggestions,omitempty"`
}

// DoctorSummary holds counts of checks by status.
type DoctorSummary struct {
	Passed   int `json:"passed"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// DoctorOptions configures the doctor workflow.
type DoctorOptions struct {
	// ConfigPath is the file to check. Empty uses configs.DefaultConfigPath.
	ConfigPath string

	Logger logger.Logger

	// Backend replaces the backend built from [remote].
	Backend cloud.Backend
}

// Doctor runs read-only health checks on the configuration, the local store
// and the remote. It never creates or deletes keys.
func Doctor(ctx context.Context, opts DoctorOptions) (*DoctorResult, error) {
	path := opts.ConfigPath
	if path == "" {
		path = configs.DefaultConfigPath()
	}

	var results []CheckResult
	cfg, configCheck := checkConfig(path)
	results = append(results, configCheck)

	if cfg != nil {
		results = append(results, checkCurve(cfg))
		results = append(results, checkStore(ctx, cfg, opts.Logger)...)
		results = append(results, checkRemote(ctx, cfg, opts.Backend))
	}
	results = append(results, checkAuditLog())

	summary := calculateDoctorSummary(results)

	var suggestions []string
	seen := make(map[string]bool)
	for _, result := range results {
		if result.Suggestion != "" && result.Status != CheckPass && !seen[result.Suggestion] {
			suggestions = append(suggestions, result.Suggestion)
			seen[result.Suggestion] = true
		}
	}

	return &DoctorResult{
		Checks:      results,
		Summary:     summary,
		Suggestions: suggestions,
	}, nil
}

func checkConfig(path string) (*configs.Config, CheckResult) {
	result := CheckResult{Name: "Configuration"}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		result.Status = CheckPass
		result.Message = "No config file, using defaults"
		return configs.DefaultConfig(), result
	}

	cfg, err := configs.LoadConfig(path)
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Config is invalid: %v", err)
		result.Suggestion = "Fix or remove " + path
		return nil, result
	}

	result.Status = CheckPass
	result.Message = "Config is valid"
	return cfg, result
}

func checkCurve(cfg *configs.Config) CheckResult {
	result := CheckResult{Name: "Key curve"}
	codec, err := keycodec.ForCurve(cfg.Key.Curve)
	if err != nil {
		result.Status = CheckError
		result.Message = err.Error()
		result.Suggestion = "Set [key] curve to p256, x25519 or x448"
		return result
	}
	result.Status = CheckPass
	result.Message = fmt.Sprintf("Using %s keys", codec.Curve())
	return result
}

// checkStore opens the store and inspects its records without resolving.
func checkStore(ctx context.Context, cfg *configs.Config, log logger.Logger) []CheckResult {
	open := CheckResult{Name: "Local store"}

	store, err := OpenStore(ctx, cfg, log)
	if err != nil {
		open.Status = CheckError
		open.Message = fmt.Sprintf("Cannot open %s store: %v", cfg.Store.Driver, err)
		open.Suggestion = "Check [store] settings and that the store is reachable"
		return []CheckResult{open}
	}
	defer store.Close()

	records, err := store.FetchAllSortedByCreation(ctx)
	if err != nil {
		open.Status = CheckError
		open.Message = fmt.Sprintf("Cannot read %s store: %v", cfg.Store.Driver, err)
		open.Suggestion = "Check [store] settings and that the store is reachable"
		return []CheckResult{open}
	}
	open.Status = CheckPass
	open.Message = fmt.Sprintf("%s store is readable", cfg.Store.Driver)

	results := []CheckResult{open, checkRecords(cfg, records)}
	if cfg.Store.Driver == configs.StoreFile {
		results = append(results, checkStoreFilePermissions(cfg.StorePath()))
	}
	if replica, ok := store.(keystore.Replica); ok && cfg.Remote.Driver != configs.RemoteNone {
		results = append(results, checkOutbox(ctx, replica))
	}
	return results
}

func checkRecords(cfg *configs.Config, records []keystore.Record) CheckResult {
	result := CheckResult{Name: "Key records"}

	switch len(records) {
	case 0:
		result.Status = CheckWarning
		result.Message = "No key yet"
		result.Suggestion = "Run 'keysync key show' to create or sync one"
		return result
	case 1:
	default:
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("%d records found, duplicates will be removed on next use", len(records))
		result.Suggestion = "Run 'keysync key show' to collapse duplicate keys"
		return result
	}

	codec, err := keycodec.ForCurve(cfg.Key.Curve)
	if err != nil {
		result.Status = CheckError
		result.Message = err.Error()
		return result
	}
	if _, err := codec.Decode(records[0].KeyData); err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Record %s does not decode as a %s key", records[0].ID, codec.Curve())
		result.Suggestion = "Run 'keysync key delete' to discard the corrupt key"
		return result
	}

	result.Status = CheckPass
	result.Message = "One valid key"
	return result
}

func checkStoreFilePermissions(path string) CheckResult {
	result := CheckResult{Name: "Store file permissions"}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = CheckPass
		result.Message = "Store file not created yet"
		return result
	}
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Cannot stat %s: %v", path, err)
		return result
	}

	if perm := info.Mode().Perm(); perm&0077 != 0 {
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("Store file has permissions %04o", perm)
		result.Suggestion = fmt.Sprintf("Run 'chmod 600 %s'", path)
		return result
	}

	result.Status = CheckPass
	result.Message = "Store file is private"
	return result
}

func checkOutbox(ctx context.Context, replica keystore.Replica) CheckResult {
	result := CheckResult{Name: "Sync outbox"}

	pending, err := replica.PendingChanges(ctx)
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Cannot read outbox: %v", err)
		return result
	}
	if len(pending) > 0 {
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("%d change(s) not yet pushed", len(pending))
		result.Suggestion = "Check that the remote is reachable, changes are pushed on next use"
		return result
	}

	result.Status = CheckPass
	result.Message = "All local changes pushed"
	return result
}

func checkRemote(ctx context.Context, cfg *configs.Config, override cloud.Backend) CheckResult {
	result := CheckResult{Name: "Remote"}

	if cfg.Remote.Driver == configs.RemoteNone && override == nil {
		result.Status = CheckPass
		result.Message = "No remote configured, keys stay on this device"
		return result
	}

	ctx, cancel := context.WithTimeout(ctx, remoteCheckTimeout)
	defer cancel()

	backend := override
	if backend == nil {
		var err error
		backend, err = OpenBackend(ctx, cfg)
		if err != nil {
			result.Status = CheckError
			result.Message = fmt.Sprintf("Cannot connect to %s remote: %v", cfg.Remote.Driver, err)
			result.Suggestion = "Check [remote] addr and that the service is running"
			return result
		}
		defer backend.Close()
	}

	status, err := backend.AccountStatus(ctx, cfg.Account())
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Account status query failed: %v", err)
		result.Suggestion = "Check [remote] addr and that the service is running"
		return result
	}

	switch status {
	case cloud.StatusAvailable:
		result.Status = CheckPass
		result.Message = fmt.Sprintf("Account %s is available", cfg.Account())
	case cloud.StatusNoAccount:
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("Account %s does not exist, keys will not sync", cfg.Account())
		result.Suggestion = "Run 'keysync account set available' to provision the account"
	default:
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("Account %s is %s", cfg.Account(), status)
	}
	return result
}

func checkAuditLog() CheckResult {
	result := CheckResult{Name: "Audit log"}

	path := audit.LogPath()
	if path == "" {
		result.Status = CheckWarning
		result.Message = "No data directory, audit entries are not recorded"
		return result
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = CheckPass
		result.Message = "Audit log not created yet"
		return result
	}
	if err != nil {
		result.Status = CheckError
		result.Message = fmt.Sprintf("Cannot stat %s: %v", path, err)
		return result
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		result.Status = CheckWarning
		result.Message = fmt.Sprintf("Audit log has permissions %04o", perm)
		result.Suggestion = fmt.Sprintf("Run 'chmod 600 %s'", path)
		return result
	}

	result.Status = CheckPass
	result.Message = "Audit log is private"
	return result
}

func calculateDoctorSummary(results []CheckResult) DoctorSummary {
	var summary DoctorSummary
	for _, result := range results {
		switch result.Status {
		case CheckPass:
			summary.Passed++
		case CheckWarning:
			summary.Warnings++
		case CheckError:
			summary.Errors++
		}
	}
	return summary
}
