package cmd

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PolarWolf314/keysync/internal/cloud"
	"github.com/PolarWolf314/keysync/internal/configs"
	"github.com/PolarWolf314/keysync/internal/relay"
)

func TestAccountStatus_Offline(t *testing.T) {
	env := setupTestEnvironment(t)

	output, err := env.run(t, "account", "status")
	if err != nil {
		t.Fatalf("account status failed: %v", err)
	}
	if !strings.Contains(output, "No remote configured") {
		t.Errorf("Expected offline message, got: %s", output)
	}
	if !strings.Contains(output, "Local records:") {
		t.Errorf("Expected local record count, got: %s", output)
	}
}

func TestAccountSet_NoRemote(t *testing.T) {
	env := setupTestEnvironment(t)

	output, err := env.run(t, "account", "set", "available")
	if err != nil {
		t.Fatalf("Expected a handled error, got: %v", err)
	}
	if !strings.Contains(output, "No remote is configured") {
		t.Errorf("Expected no remote message, got: %s", output)
	}
}

func TestAccount_ThroughRelay(t *testing.T) {
	srv := httptest.NewServer(relay.NewServer(cloud.NewMemoryBackend()).Routes())
	defer srv.Close()

	env := setupTestEnvironment(t)
	env.config.Remote.Driver = configs.RemoteHTTP
	env.config.Remote.Addr = srv.URL
	env.config.Remote.Account = "alice"
	env.saveConfig(t)

	output, err := env.run(t, "account", "set", "frozen")
	if err != nil {
		t.Fatalf("Expected a handled error, got: %v", err)
	}
	if !strings.Contains(output, "invalid account status") {
		t.Errorf("Expected invalid status message, got: %s", output)
	}

	output, err = env.run(t, "account", "set", "available")
	if err != nil {
		t.Fatalf("account set failed: %v", err)
	}
	if !strings.Contains(output, "is now available") {
		t.Errorf("Expected status change message, got: %s", output)
	}

	if _, err := env.run(t, "key", "show"); err != nil {
		t.Fatalf("key show failed: %v", err)
	}

	output, err = env.run(t, "account", "status")
	if err != nil {
		t.Fatalf("account status failed: %v", err)
	}
	if !strings.Contains(output, "is available") {
		t.Errorf("Expected available account, got: %s", output)
	}
	if !strings.Contains(output, "Pending changes: 0") {
		t.Errorf("Expected the new key to be pushed, got: %s", output)
	}
}
