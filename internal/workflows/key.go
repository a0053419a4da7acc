package workflows

import (
	"context"
	"fmt"
	"time"

	"github.com/PolarWolf314/keysync/internal/audit"
	"github.com/PolarWolf314/keysync/internal/configs"
	kerrors "github.com/PolarWolf314/keysync/internal/errors"
	"github.com/PolarWolf314/keysync/internal/keycodec"
	"github.com/PolarWolf314/keysync/internal/keymanager"
	logger "github.com/PolarWolf314/keysync/internal/logging"
	"github.com/PolarWolf314/keysync/internal/utils"
)

// ShowKeyOptions configures the show key workflow.
type ShowKeyOptions struct {
	Config *configs.Config
	Logger logger.Logger

	// Reveal includes the encoded private key in the result.
	Reveal bool

	// Session reuses an open session instead of opening one from Config.
	Session *Session
}

// ShowKeyResult contains the device's resolved key.
type ShowKeyResult struct {
	Curve       keycodec.Curve
	RecordID    string
	CreatedAt   time.Time
	Outcome     keymanager.Outcome
	Removed     int
	Account     string
	PublicKey   []byte
	Fingerprint string

	// PrivateKey is set only when ShowKeyOptions.Reveal is true.
	PrivateKey []byte
}

// ShowKey gets or creates the device's key and describes it.
//
// Returns ErrStoreUnavailable if the local store cannot be used.
// Returns ErrInvalidKeyEncoding if the canonical record is corrupt.
func ShowKey(ctx context.Context, opts ShowKeyOptions) (*ShowKeyResult, error) {
	session, release, err := sessionFor(ctx, opts.Session, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := session.Mirror(ctx); err != nil {
		return nil, err
	}
	res, err := session.Manager.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	codec := session.Manager.Codec()
	pub := codec.PublicKey(res.Key)
	result := &ShowKeyResult{
		Curve:       codec.Curve(),
		RecordID:    res.Record.ID,
		CreatedAt:   res.Record.CreatedAt,
		Outcome:     res.Outcome,
		Removed:     res.Removed,
		Account:     session.Account(),
		PublicKey:   codec.EncodePublic(pub),
		Fingerprint: keycodec.Fingerprint(pub),
	}
	if opts.Reveal {
		result.PrivateKey = codec.Encode(res.Key)
	}

	entry := audit.LogWithUser("show")
	entry.RecordID = result.RecordID
	entry.Curve = string(result.Curve)
	entry.Outcome = string(result.Outcome)
	entry.RemovedCount = result.Removed
	entry.Account = result.Account
	entry.Fingerprint = result.Fingerprint
	audit.Log(entry)

	return result, nil
}

// DeleteKeysOptions configures the delete keys workflow.
type DeleteKeysOptions struct {
	Config  *configs.Config
	Logger  logger.Logger
	Session *Session
}

// DeleteKeysResult reports how many records were removed locally.
type DeleteKeysResult struct {
	Removed int
	Account string
}

// DeleteKeys removes every key record and waits for the remote to catch up.
func DeleteKeys(ctx context.Context, opts DeleteKeysOptions) (*DeleteKeysResult, error) {
	session, release, err := sessionFor(ctx, opts.Session, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := session.Mirror(ctx); err != nil {
		return nil, err
	}
	removed, err := session.Manager.DeleteAll(ctx)
	if err != nil {
		return nil, err
	}

	entry := audit.LogWithUser("delete")
	entry.RemovedCount = removed
	entry.Account = session.Account()
	audit.Log(entry)

	return &DeleteKeysResult{Removed: removed, Account: session.Account()}, nil
}

// AgreeOptions configures the key agreement workflow.
type AgreeOptions struct {
	Config  *configs.Config
	Logger  logger.Logger
	Session *Session

	// PeerPublicKey is the peer's encoded public key in hex.
	PeerPublicKey string
}

// AgreeResult contains the shared secret with a peer.
type AgreeResult struct {
	Curve           keycodec.Curve
	RecordID        string
	SharedSecret    []byte
	PeerFingerprint string
}

// Agree derives the shared secret between the device's key and a peer's
// public key. The device key is created if it does not exist yet.
//
// Returns ErrInvalidKeyEncoding if the peer key is not valid hex or not a
// point on the configured curve.
func Agree(ctx context.Context, opts AgreeOptions) (*AgreeResult, error) {
	peer, err := utils.ParseHex(opts.PeerPublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: peer public key: %w", kerrors.ErrInvalidKeyEncoding, err)
	}

	session, release, err := sessionFor(ctx, opts.Session, opts.Config, opts.Logger)
	if err != nil {
		return nil, err
	}
	defer release()

	if err := session.Mirror(ctx); err != nil {
		return nil, err
	}
	res, err := session.Manager.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	codec := session.Manager.Codec()
	secret, err := codec.Agree(res.Key, peer)
	if err != nil {
		return nil, err
	}

	entry := audit.LogWithUser("agree")
	entry.RecordID = res.Record.ID
	entry.Curve = string(codec.Curve())
	entry.Fingerprint = keycodec.FingerprintBytes(peer)
	audit.Log(entry)

	return &AgreeResult{
		Curve:           codec.Curve(),
		RecordID:        res.Record.ID,
		SharedSecret:    secret,
		PeerFingerprint: entry.Fingerprint,
	}, nil
}

// sessionFor returns the given session, or opens one from cfg. release
// closes only a session opened here.
func sessionFor(ctx context.Context, existing *Session, cfg *configs.Config, log logger.Logger) (*Session, func(), error) {
	if existing != nil {
		return existing, func() {}, nil
	}
	session, err := Open(ctx, SessionOptions{Config: cfg, Logger: log})
	if err != nil {
		return nil, nil, err
	}
	return session, func() {
		if err := session.Close(); err != nil {
			log.Warnf("Failed to close session: %v", err)
		}
	}, nil
}
