package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// maxStdinBytes bounds what ReadStdin accepts. Encoded keys are far smaller.
const maxStdinBytes = 64 << 10

// ReadStdin reads piped input and returns it with surrounding whitespace
// removed. It fails when stdin is a terminal, empty, or larger than 64 KiB.
func ReadStdin() (string, error) {
	return readPiped(os.Stdin)
}

func readPiped(f *os.File) (string, error) {
	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat stdin: %w", err)
	}
	if stat.Mode()&os.ModeCharDevice != 0 {
		return "", errors.New("no data provided on stdin (hint: pipe the peer public key to this command)")
	}

	data, err := io.ReadAll(io.LimitReader(f, maxStdinBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read from stdin: %w", err)
	}
	if len(data) > maxStdinBytes {
		return "", errors.New("stdin input is too large")
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", errors.New("stdin is empty")
	}
	return text, nil
}
