package cmd

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PolarWolf314/keysync/internal/keycodec"
)

func showKeyJSON(t *testing.T, env *testEnv, extra ...string) keyShowJSON {
	t.Helper()
	args := append([]string{"key", "show", "--json"}, extra...)
	output, err := env.run(t, args...)
	if err != nil {
		t.Fatalf("key show failed: %v\n%s", err, output)
	}
	var out keyShowJSON
	if err := json.Unmarshal([]byte(output), &out); err != nil {
		t.Fatalf("Failed to parse key show output: %v\n%s", err, output)
	}
	return out
}

func TestKeyShow(t *testing.T) {
	env := setupTestEnvironment(t)

	output, err := env.run(t, "key", "show")
	if err != nil {
		t.Fatalf("key show failed: %v", err)
	}
	if !strings.Contains(output, "Created a new x25519 key") {
		t.Errorf("Expected creation message, got: %s", output)
	}
	if !strings.Contains(output, "Fingerprint:") || !strings.Contains(output, "Public key:") {
		t.Errorf("Expected key details, got: %s", output)
	}
	if strings.Contains(output, "Private key:") {
		t.Errorf("Private key printed without --reveal: %s", output)
	}

	output, err = env.run(t, "key", "show")
	if err != nil {
		t.Fatalf("Second key show failed: %v", err)
	}
	if !strings.Contains(output, "Using existing key") {
		t.Errorf("Expected existing key on second run, got: %s", output)
	}
}

func TestKeyShow_JSON(t *testing.T) {
	env := setupTestEnvironment(t)

	first := showKeyJSON(t, env)
	if first.Outcome != "created" {
		t.Errorf("Expected outcome created, got %s", first.Outcome)
	}
	if first.Curve != "x25519" {
		t.Errorf("Expected curve x25519, got %s", first.Curve)
	}
	if len(first.PublicKey) != 64 {
		t.Errorf("Expected 64 hex chars of public key, got %d", len(first.PublicKey))
	}
	if first.PrivateKey != "" {
		t.Error("Expected no private key without --reveal")
	}

	second := showKeyJSON(t, env, "--reveal")
	if second.RecordID != first.RecordID {
		t.Errorf("Expected the same record, got %s and %s", first.RecordID, second.RecordID)
	}
	if len(second.PrivateKey) != 64 {
		t.Errorf("Expected 64 hex chars of private key with --reveal, got %d", len(second.PrivateKey))
	}
}

func TestKeyShow_InvalidConfig(t *testing.T) {
	env := setupTestEnvironment(t)
	env.config.Key.Curve = "ed25519"
	env.saveConfig(t)

	output, err := env.run(t, "key", "show")
	if err != nil {
		t.Fatalf("Expected a handled error, got: %v", err)
	}
	if !strings.Contains(output, "Invalid configuration") {
		t.Errorf("Expected invalid configuration message, got: %s", output)
	}
}

func TestKeyDelete(t *testing.T) {
	env := setupTestEnvironment(t)

	before := showKeyJSON(t, env)

	output, err := env.run(t, "key", "delete", "--yes")
	if err != nil {
		t.Fatalf("key delete failed: %v", err)
	}
	if !strings.Contains(output, "Deleted 1 key record(s)") {
		t.Errorf("Expected deletion message, got: %s", output)
	}

	output, err = env.run(t, "key", "delete", "--yes")
	if err != nil {
		t.Fatalf("Second key delete failed: %v", err)
	}
	if !strings.Contains(output, "No keys to delete") {
		t.Errorf("Expected nothing to delete, got: %s", output)
	}

	after := showKeyJSON(t, env)
	if after.Outcome != "created" || after.RecordID == before.RecordID {
		t.Errorf("Expected a fresh key after delete, got %+v", after)
	}
}

func TestKeyAgree(t *testing.T) {
	env := setupTestEnvironment(t)
	device := showKeyJSON(t, env)

	codec, err := keycodec.New(keycodec.X25519)
	if err != nil {
		t.Fatalf("Failed to create codec: %v", err)
	}
	peer, err := codec.Generate()
	if err != nil {
		t.Fatalf("Failed to generate peer key: %v", err)
	}
	peerPub := hex.EncodeToString(codec.EncodePublic(codec.PublicKey(peer)))

	output, err := env.run(t, "key", "agree", "--json", "--peer", peerPub)
	if err != nil {
		t.Fatalf("key agree failed: %v\n%s", err, output)
	}
	var result map[string]string
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("Failed to parse agree output: %v\n%s", err, output)
	}

	devicePub, err := hex.DecodeString(device.PublicKey)
	if err != nil {
		t.Fatalf("Failed to decode device public key: %v", err)
	}
	want, err := codec.Agree(peer, devicePub)
	if err != nil {
		t.Fatalf("Failed to agree on the peer side: %v", err)
	}
	got, err := hex.DecodeString(result["shared_secret"])
	if err != nil {
		t.Fatalf("Failed to decode shared secret: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Error("Expected the CLI and the peer to derive the same secret")
	}
	if result["record_id"] != device.RecordID {
		t.Errorf("Expected agreement with record %s, got %s", device.RecordID, result["record_id"])
	}
}

func TestKeyAgree_InvalidPeer(t *testing.T) {
	env := setupTestEnvironment(t)

	output, err := env.run(t, "key", "agree", "--peer", "zz")
	if err == nil {
		t.Fatal("Expected an error for an invalid peer key")
	}
	if !strings.Contains(output, "Key material is invalid") {
		t.Errorf("Expected invalid key message, got: %s", output)
	}
}
