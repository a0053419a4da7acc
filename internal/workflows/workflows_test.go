package workflows

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/PolarWolf314/keysync/internal/audit"
	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keymanager"
	"github.com/PolarWolf314/keysync/internal/keystore"
)

// withUserSettings points the audit log and default paths at a temp dir.
func withUserSettings(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()

	originalSettings := configs.UserKeysyncSettings
	configs.UserKeysyncSettings = &configs.UserSettings{
		UserConfigsPath: filepath.Join(tempDir, "config"),
		UserDataPath:    filepath.Join(tempDir, "data"),
		Username:        "testuser",
	}
	t.Cleanup(func() {
		configs.UserKeysyncSettings = originalSettings
	})
	return tempDir
}

// deviceConfig returns a fast-syncing config with its own file store.
func deviceConfig(t *testing.T, name string) *configs.Config {
	t.Helper()
	cfg := configs.DefaultConfig()
	cfg.Key.Curve = "x25519"
	cfg.Store.Path = filepath.Join(t.TempDir(), name, "keys.toml")
	cfg.Remote.Account = "alice"
	cfg.Sync.StatusAttempts = 1
	cfg.Sync.StatusBackoff = configs.Duration{}
	cfg.Sync.GracePeriod = configs.Duration{Duration: 200 * time.Millisecond}
	cfg.Sync.PollInterval = configs.Duration{Duration: 10 * time.Millisecond}
	return cfg
}

func openSession(t *testing.T, cfg *configs.Config, backend cloud.Backend) *Session {
	t.Helper()
	session, err := Open(context.Background(), SessionOptions{Config: cfg, Backend: backend})
	if err != nil {
		t.Fatalf("Failed to open session: %v", err)
	}
	t.Cleanup(func() { _ = session.Close() })
	return session
}

func TestShowKey_CreatesThenReuses(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()
	cfg := deviceConfig(t, "laptop")

	first, err := ShowKey(ctx, ShowKeyOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to show key: %v", err)
	}
	if first.Outcome != keymanager.OutcomeCreated {
		t.Errorf("Expected first call to create a key, got %s", first.Outcome)
	}
	if first.PrivateKey != nil {
		t.Error("Expected private key to stay hidden without Reveal")
	}
	if len(first.PublicKey) != 32 {
		t.Errorf("Expected 32-byte x25519 public key, got %d", len(first.PublicKey))
	}

	second, err := ShowKey(ctx, ShowKeyOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to show key again: %v", err)
	}
	if second.Outcome != keymanager.OutcomeReused {
		t.Errorf("Expected second call to reuse the key, got %s", second.Outcome)
	}
	if second.RecordID != first.RecordID || second.Fingerprint != first.Fingerprint {
		t.Error("Expected the same key on both calls")
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		t.Fatalf("Failed to read audit log: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].Outcome != "created" || entries[1].Outcome != "reused" {
		t.Errorf("Unexpected audit outcomes: %s, %s", entries[0].Outcome, entries[1].Outcome)
	}
}

func TestShowKey_Reveal(t *testing.T) {
	withUserSettings(t)
	cfg := deviceConfig(t, "laptop")
	cfg.Key.Curve = "x448"

	result, err := ShowKey(context.Background(), ShowKeyOptions{Config: cfg, Reveal: true})
	if err != nil {
		t.Fatalf("Failed to show key: %v", err)
	}
	if len(result.PrivateKey) != 56 {
		t.Errorf("Expected 56-byte x448 private key, got %d", len(result.PrivateKey))
	}
	if result.Curve != "x448" {
		t.Errorf("Expected curve x448, got %s", result.Curve)
	}
}

func TestShowKey_DevicesConverge(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	backend := cloud.NewMemoryBackend()
	if err := backend.SetAccountStatus(ctx, "alice", cloud.StatusAvailable); err != nil {
		t.Fatalf("Failed to provision account: %v", err)
	}

	laptop := openSession(t, deviceConfig(t, "laptop"), backend)
	phone := openSession(t, deviceConfig(t, "phone"), backend)

	first, err := ShowKey(ctx, ShowKeyOptions{Session: laptop})
	if err != nil {
		t.Fatalf("Failed to show key on laptop: %v", err)
	}
	second, err := ShowKey(ctx, ShowKeyOptions{Session: phone})
	if err != nil {
		t.Fatalf("Failed to show key on phone: %v", err)
	}

	if second.Outcome != keymanager.OutcomeSynced {
		t.Errorf("Expected phone to adopt the synced key, got %s", second.Outcome)
	}
	if second.Fingerprint != first.Fingerprint {
		t.Errorf("Expected devices to converge, got %s and %s", first.Fingerprint, second.Fingerprint)
	}
	if second.Account != "alice" {
		t.Errorf("Expected account alice, got %q", second.Account)
	}
}

func TestDeleteKeys_PropagatesToOtherDevices(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	backend := cloud.NewMemoryBackend()
	if err := backend.SetAccountStatus(ctx, "alice", cloud.StatusAvailable); err != nil {
		t.Fatalf("Failed to provision account: %v", err)
	}
	laptop := openSession(t, deviceConfig(t, "laptop"), backend)
	phone := openSession(t, deviceConfig(t, "phone"), backend)

	shared, err := ShowKey(ctx, ShowKeyOptions{Session: laptop})
	if err != nil {
		t.Fatalf("Failed to show key on laptop: %v", err)
	}
	if _, err := ShowKey(ctx, ShowKeyOptions{Session: phone}); err != nil {
		t.Fatalf("Failed to show key on phone: %v", err)
	}

	if _, err := DeleteKeys(ctx, DeleteKeysOptions{Session: laptop}); err != nil {
		t.Fatalf("Failed to delete keys on laptop: %v", err)
	}

	onPhone, err := ShowKey(ctx, ShowKeyOptions{Session: phone})
	if err != nil {
		t.Fatalf("Failed to show key on phone after delete: %v", err)
	}
	if onPhone.RecordID == shared.RecordID {
		t.Fatalf("Expected phone to drop the deleted key %s", shared.RecordID)
	}
	if onPhone.Outcome != keymanager.OutcomeCreated {
		t.Errorf("Expected phone to create a new key, got %s", onPhone.Outcome)
	}

	onLaptop, err := ShowKey(ctx, ShowKeyOptions{Session: laptop})
	if err != nil {
		t.Fatalf("Failed to show key on laptop: %v", err)
	}
	if onLaptop.RecordID != onPhone.RecordID {
		t.Errorf("Expected devices to converge, got %s and %s", onLaptop.RecordID, onPhone.RecordID)
	}
}

func TestShowKey_RacedDevicesConverge(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	// Without an account both devices create a key and keep it local.
	backend := cloud.NewMemoryBackend()
	laptop := openSession(t, deviceConfig(t, "laptop"), backend)
	phone := openSession(t, deviceConfig(t, "phone"), backend)
	for name, session := range map[string]*Session{"laptop": laptop, "phone": phone} {
		res, err := ShowKey(ctx, ShowKeyOptions{Session: session})
		if err != nil {
			t.Fatalf("Failed to show key on %s: %v", name, err)
		}
		if res.Outcome != keymanager.OutcomeCreated {
			t.Fatalf("Expected %s to create a key, got %s", name, res.Outcome)
		}
	}
	snap, err := backend.Pull(ctx, "alice")
	if err != nil {
		t.Fatalf("Failed to pull: %v", err)
	}
	if len(snap.Records) != 0 {
		t.Fatalf("Expected nothing published without an account, got %d records", len(snap.Records))
	}

	if err := backend.SetAccountStatus(ctx, "alice", cloud.StatusAvailable); err != nil {
		t.Fatalf("Failed to provision account: %v", err)
	}

	if _, err := ShowKey(ctx, ShowKeyOptions{Session: laptop}); err != nil {
		t.Fatalf("Failed to show key on laptop: %v", err)
	}
	onPhone, err := ShowKey(ctx, ShowKeyOptions{Session: phone})
	if err != nil {
		t.Fatalf("Failed to show key on phone: %v", err)
	}
	if onPhone.Outcome != keymanager.OutcomeDeduplicated || onPhone.Removed != 1 {
		t.Errorf("Expected phone to collapse the raced keys, got %s removing %d", onPhone.Outcome, onPhone.Removed)
	}
	onLaptop, err := ShowKey(ctx, ShowKeyOptions{Session: laptop})
	if err != nil {
		t.Fatalf("Failed to show key on laptop: %v", err)
	}
	if onLaptop.RecordID != onPhone.RecordID {
		t.Errorf("Expected devices to converge, got %s and %s", onLaptop.RecordID, onPhone.RecordID)
	}

	for name, session := range map[string]*Session{"laptop": laptop, "phone": phone} {
		records, err := session.Store.FetchAllSortedByCreation(ctx)
		if err != nil {
			t.Fatalf("Failed to fetch %s records: %v", name, err)
		}
		if len(records) != 1 {
			t.Errorf("Expected one record on %s, got %d", name, len(records))
		}
	}
}

func TestDeleteKeys(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()
	cfg := deviceConfig(t, "laptop")

	before, err := ShowKey(ctx, ShowKeyOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to show key: %v", err)
	}

	result, err := DeleteKeys(ctx, DeleteKeysOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to delete keys: %v", err)
	}
	if result.Removed != 1 {
		t.Errorf("Expected 1 record removed, got %d", result.Removed)
	}

	after, err := ShowKey(ctx, ShowKeyOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Failed to show key after delete: %v", err)
	}
	if after.Outcome != keymanager.OutcomeCreated {
		t.Errorf("Expected a new key after delete, got %s", after.Outcome)
	}
	if after.RecordID == before.RecordID {
		t.Error("Expected a different record after delete")
	}
}

func TestAgree(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()
	alice := deviceConfig(t, "alice")
	bob := deviceConfig(t, "bob")

	alicePub, err := ShowKey(ctx, ShowKeyOptions{Config: alice})
	if err != nil {
		t.Fatalf("Failed to show alice's key: %v", err)
	}
	bobPub, err := ShowKey(ctx, ShowKeyOptions{Config: bob})
	if err != nil {
		t.Fatalf("Failed to show bob's key: %v", err)
	}

	aliceSide, err := Agree(ctx, AgreeOptions{Config: alice, PeerPublicKey: hex.EncodeToString(bobPub.PublicKey)})
	if err != nil {
		t.Fatalf("Failed to agree on alice's side: %v", err)
	}
	bobSide, err := Agree(ctx, AgreeOptions{Config: bob, PeerPublicKey: hex.EncodeToString(alicePub.PublicKey)})
	if err != nil {
		t.Fatalf("Failed to agree on bob's side: %v", err)
	}

	if !bytes.Equal(aliceSide.SharedSecret, bobSide.SharedSecret) {
		t.Error("Expected both sides to derive the same secret")
	}
	if aliceSide.PeerFingerprint != bobPub.Fingerprint {
		t.Errorf("Expected peer fingerprint %s, got %s", bobPub.Fingerprint, aliceSide.PeerFingerprint)
	}
}

func TestAgree_InvalidPeer(t *testing.T) {
	withUserSettings(t)
	cfg := deviceConfig(t, "laptop")

	for _, peer := range []string{"", "not hex", "abcd"} {
		_, err := Agree(context.Background(), AgreeOptions{Config: cfg, PeerPublicKey: peer})
		if !errors.Is(err, kerrors.ErrInvalidKeyEncoding) {
			t.Errorf("Peer %q: expected ErrInvalidKeyEncoding, got %v", peer, err)
		}
	}
}

func TestAccountStatus(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	t.Run("Offline", func(t *testing.T) {
		result, err := AccountStatus(ctx, AccountStatusOptions{Config: deviceConfig(t, "laptop")})
		if err != nil {
			t.Fatalf("Failed to get account status: %v", err)
		}
		if result.Status != cloud.StatusNoAccount {
			t.Errorf("Expected no_account offline, got %s", result.Status)
		}
		if result.Remote != configs.RemoteNone || result.Account != "" {
			t.Errorf("Expected no remote and no account, got %q and %q", result.Remote, result.Account)
		}
	})

	t.Run("WithBackend", func(t *testing.T) {
		backend := cloud.NewMemoryBackend()
		cfg := deviceConfig(t, "laptop")

		if _, err := SetAccountStatus(ctx, SetAccountStatusOptions{Config: cfg, Backend: backend, Status: "available"}); err != nil {
			t.Fatalf("Failed to set account status: %v", err)
		}

		session := openSession(t, cfg, backend)
		if _, err := ShowKey(ctx, ShowKeyOptions{Session: session}); err != nil {
			t.Fatalf("Failed to show key: %v", err)
		}

		result, err := AccountStatus(ctx, AccountStatusOptions{Session: session})
		if err != nil {
			t.Fatalf("Failed to get account status: %v", err)
		}
		if result.Status != cloud.StatusAvailable {
			t.Errorf("Expected available, got %s", result.Status)
		}
		if result.LocalRecords != 1 {
			t.Errorf("Expected 1 local record, got %d", result.LocalRecords)
		}
		if result.PendingChanges != 0 {
			t.Errorf("Expected the new key to be pushed, got %d pending", result.PendingChanges)
		}
	})
}

func TestSetAccountStatus_Errors(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	_, err := SetAccountStatus(ctx, SetAccountStatusOptions{Config: configs.DefaultConfig(), Status: "available"})
	if !errors.Is(err, kerrors.ErrNoRemote) {
		t.Errorf("Expected ErrNoRemote, got %v", err)
	}

	_, err = SetAccountStatus(ctx, SetAccountStatusOptions{Backend: cloud.NewMemoryBackend(), Status: "frozen"})
	if !errors.Is(err, kerrors.ErrInvalidAccountStatus) {
		t.Errorf("Expected ErrInvalidAccountStatus, got %v", err)
	}
}

func TestOpen_ConfigErrors(t *testing.T) {
	withUserSettings(t)
	t.Setenv(configs.DatabaseURLEnv, "")

	badCurve := configs.DefaultConfig()
	badCurve.Key.Curve = "ed25519"

	noDSN := configs.DefaultConfig()
	noDSN.Store.Driver = configs.StorePostgres

	for name, cfg := range map[string]*configs.Config{"UnknownCurve": badCurve, "PostgresWithoutDSN": noDSN} {
		t.Run(name, func(t *testing.T) {
			_, err := Open(context.Background(), SessionOptions{Config: cfg})
			if !errors.Is(err, kerrors.ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func writeAuditEntries(t *testing.T, entries ...audit.Entry) {
	t.Helper()
	for _, e := range entries {
		audit.Log(e)
	}
}

func TestLog(t *testing.T) {
	withUserSettings(t)
	ctx := context.Background()

	if _, err := Log(ctx, LogOptions{}); !errors.Is(err, kerrors.ErrNoAuditLog) {
		t.Fatalf("Expected ErrNoAuditLog before anything is logged, got %v", err)
	}

	writeAuditEntries(t,
		audit.Entry{Timestamp: "2026-01-01T10:00:00.000000Z", User: "alice", Device: "laptop", Operation: "show"},
		audit.Entry{Timestamp: "2026-01-02T10:00:00.000000Z", User: "alice", Device: "phone", Operation: "show"},
		audit.Entry{Timestamp: "2026-01-03T10:00:00.000000Z", User: "bob", Device: "laptop", Operation: "delete"},
		audit.Entry{Timestamp: "2026-01-04T10:00:00.000000Z", User: "alice", Device: "laptop", Operation: "agree"},
	)

	tests := []struct {
		name string
		opts LogOptions
		want []string
	}{
		{"All", LogOptions{}, []string{"show", "show", "delete", "agree"}},
		{"ByUser", LogOptions{User: "BOB"}, []string{"delete"}},
		{"ByDevice", LogOptions{Device: "phone"}, []string{"show"}},
		{"ByOperations", LogOptions{Operations: "delete, agree"}, []string{"delete", "agree"}},
		{"Since", LogOptions{Since: "2026-01-03"}, []string{"delete", "agree"}},
		{"Until", LogOptions{Until: "2026-01-02"}, []string{"show", "show"}},
		{"LimitKeepsMostRecent", LogOptions{Limit: 1}, []string{"agree"}},
		{"ReverseWithLimit", LogOptions{Reverse: true, Limit: 2}, []string{"agree", "delete"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Log(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Failed to read log: %v", err)
			}
			if result.TotalEntriesBeforeFilter != 4 {
				t.Errorf("Expected 4 entries before filtering, got %d", result.TotalEntriesBeforeFilter)
			}
			var got []string
			for _, e := range result.Entries {
				got = append(got, e.Operation)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, got)
				}
			}
		})
	}

	if _, err := Log(ctx, LogOptions{Since: "01/02/2026"}); !errors.Is(err, kerrors.ErrInvalidDateFormat) {
		t.Errorf("Expected ErrInvalidDateFormat, got %v", err)
	}
}

func TestFormatDetails(t *testing.T) {
	tests := []struct {
		entry audit.Entry
		want  string
	}{
		{audit.Entry{Operation: "show", RecordID: "0123456789abcdef", Outcome: "deduplicated", RemovedCount: 2}, "01234567 (deduplicated), removed 2 duplicate(s)"},
		{audit.Entry{Operation: "delete", RemovedCount: 3}, "3 record(s)"},
		{audit.Entry{Operation: "agree", Fingerprint: "aa:bb"}, "peer aa:bb"},
		{audit.Entry{Operation: "account-set", Account: "alice", Status: "available"}, "alice -> available"},
		{audit.Entry{Operation: "unknown"}, ""},
	}

	for _, tt := range tests {
		if got := FormatDetails(tt.entry); got != tt.want {
			t.Errorf("FormatDetails(%s) = %q, want %q", tt.entry.Operation, got, tt.want)
		}
	}
}

func findCheck(t *testing.T, result *DoctorResult, name string) CheckResult {
	t.Helper()
	for _, c := range result.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Check %q not found in %+v", name, result.Checks)
	return CheckResult{}
}

func TestDoctor(t *testing.T) {
	tempDir := withUserSettings(t)
	ctx := context.Background()

	cfg := deviceConfig(t, "laptop")
	configPath := filepath.Join(tempDir, "config.toml")
	if err := configs.SaveConfig(configPath, cfg); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	t.Run("NoKeyYet", func(t *testing.T) {
		result, err := Doctor(ctx, DoctorOptions{ConfigPath: configPath})
		if err != nil {
			t.Fatalf("Doctor failed: %v", err)
		}
		if c := findCheck(t, result, "Key records"); c.Status != CheckWarning {
			t.Errorf("Expected a warning for an empty store, got %s: %s", c.Status, c.Message)
		}
		if result.Summary.Errors != 0 {
			t.Errorf("Expected no errors, got %+v", result.Checks)
		}
	})

	t.Run("Duplicates", func(t *testing.T) {
		store, err := keystore.OpenFileStore(cfg.StorePath())
		if err != nil {
			t.Fatalf("Failed to open store: %v", err)
		}
		tx, err := store.Begin(ctx)
		if err != nil {
			t.Fatalf("Failed to begin: %v", err)
		}
		for i := 0; i < 2; i++ {
			if _, err := tx.Insert(ctx, bytes.Repeat([]byte{byte(i + 1)}, 32)); err != nil {
				t.Fatalf("Failed to insert: %v", err)
			}
		}
		if err := tx.Commit(ctx); err != nil {
			t.Fatalf("Failed to commit: %v", err)
		}
		_ = store.Close()

		result, err := Doctor(ctx, DoctorOptions{ConfigPath: configPath})
		if err != nil {
			t.Fatalf("Doctor failed: %v", err)
		}
		if c := findCheck(t, result, "Key records"); c.Status != CheckWarning {
			t.Errorf("Expected a warning for duplicates, got %s: %s", c.Status, c.Message)
		}
		if len(result.Suggestions) == 0 {
			t.Error("Expected a suggestion for duplicates")
		}
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		badPath := filepath.Join(tempDir, "bad.toml")
		bad := configs.DefaultConfig()
		bad.Store.Driver = "sqlite"
		if err := configs.SaveTOML(badPath, bad); err != nil {
			t.Fatalf("Failed to write config: %v", err)
		}

		result, err := Doctor(ctx, DoctorOptions{ConfigPath: badPath})
		if err != nil {
			t.Fatalf("Doctor failed: %v", err)
		}
		if c := findCheck(t, result, "Configuration"); c.Status != CheckError {
			t.Errorf("Expected config error, got %s", c.Status)
		}
		if result.Summary.Errors != 1 {
			t.Errorf("Expected exactly one error, got %d", result.Summary.Errors)
		}
	})

	t.Run("RemoteWithoutAccount", func(t *testing.T) {
		result, err := Doctor(ctx, DoctorOptions{ConfigPath: configPath, Backend: cloud.NewMemoryBackend()})
		if err != nil {
			t.Fatalf("Doctor failed: %v", err)
		}
		if c := findCheck(t, result, "Remote"); c.Status != CheckWarning {
			t.Errorf("Expected a warning for a missing account, got %s: %s", c.Status, c.Message)
		}
	})
}
