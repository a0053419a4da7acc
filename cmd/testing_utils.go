package cmd

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PolarWolf314/keysync/internal/configs"

	"github.com/spf13/cobra"
)

// testEnv is an isolated keysync installation for one test.
type testEnv struct {
	dir        string
	configPath string
	config     *configs.Config
}

// setupTestEnvironment points user settings at a temp dir and writes a
// config with a file store and fast sync timings.
func setupTestEnvironment(t *testing.T) *testEnv {
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
		ResetGlobalState()
	})

	cfg := configs.DefaultConfig()
	cfg.Key.Curve = "x25519"
	cfg.Store.Path = filepath.Join(tempDir, "data", "keys.toml")
	cfg.Sync.StatusAttempts = 1
	cfg.Sync.StatusBackoff = configs.Duration{}
	cfg.Sync.GracePeriod = configs.Duration{Duration: 100 * time.Millisecond}
	cfg.Sync.PollInterval = configs.Duration{Duration: 10 * time.Millisecond}

	env := &testEnv{
		dir:        tempDir,
		configPath: filepath.Join(tempDir, "config", "config.toml"),
		config:     cfg,
	}
	env.saveConfig(t)
	return env
}

// saveConfig writes env.config to env.configPath.
func (e *testEnv) saveConfig(t *testing.T) {
	t.Helper()
	if err := configs.SaveConfig(e.configPath, e.config); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
}

// run executes keysync with args against the test config and returns the
// combined output.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ResetGlobalState()
	args = append(args, "--config", e.configPath)
	return captureOutput(func() error {
		return createTestCLI(args, nil, nil).Execute()
	})
}

// createTestCLI creates a complete CLI instance for testing with the given arguments.
func createTestCLI(args []string, stdout, stderr io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "keysync",
		Short:         "keysync - per-device key agreement keys that sync across your devices.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	for _, group := range Groups() {
		rootCmd.AddCommand(group)
		if stdout != nil {
			group.SetOut(stdout)
		}
		if stderr != nil {
			group.SetErr(stderr)
		}
	}
	if stdout != nil {
		rootCmd.SetOut(stdout)
	}
	if stderr != nil {
		rootCmd.SetErr(stderr)
	}

	rootCmd.SetArgs(args)
	return rootCmd
}

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	stdoutChan := make(chan string, 1)
	stderrChan := make(chan string, 1)

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stdoutReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		stdoutChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stderrReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		stderrChan <- buf.String()
	}()

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdout = originalStdout
	os.Stderr = originalStderr

	return <-stdoutChan + <-stderrChan, err
}
