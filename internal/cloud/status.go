package cloud

import (
	"fmt"
	"strings"

	kerrors "github.com/PolarWolf314/keysync/internal/errors"
)

// AccountStatus is the remote account state reported by a backend.
type AccountStatus int

const (
	StatusUnknown AccountStatus = iota
	StatusAvailable
	StatusNoAccount
	StatusRestricted
)

func (s AccountStatus) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusNoAccount:
		return "no_account"
	case StatusRestricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// ParseAccountStatus parses the names produced by String, plus a few
// spellings of no_account.
func ParseAccountStatus(raw string) (AccountStatus, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "available":
		return StatusAvailable, nil
	case "no_account", "noaccount", "no-account", "none":
		return StatusNoAccount, nil
	case "restricted":
		return StatusRestricted, nil
	case "unknown":
		return StatusUnknown, nil
	default:
		return StatusUnknown, fmt.Errorf("%w: %q", kerrors.ErrInvalidAccountStatus, raw)
	}
}

func (s AccountStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *AccountStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
