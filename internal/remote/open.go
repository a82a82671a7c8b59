package remote

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/existflow/punch/internal/config"
)

// Options supplies what Open needs beyond the remote's own config block.
type Options struct {
	Config *config.Config
	Auth   *config.Auth
	// Passphrase returns the encryption passphrase for a sealed remote.
	Passphrase func(r config.Remote) (string, error)
}

// PassphraseEnv is consulted before prompting for a passphrase.
const PassphraseEnv = "PUNCH_PASSPHRASE"

// Open builds the remote described by r.
func Open(ctx context.Context, r config.Remote, opts Options) (Remote, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	var inner Remote
	switch r.Type {
	case config.RemoteDir:
		if r.Path == "" {
			return nil, fmt.Errorf("remote %s: path is required", r.Name)
		}
		inner = NewDir(afero.NewOsFs(), cfg.ResolvePath(r.Path))

	case config.RemoteSQLite:
		if r.Path == "" {
			return nil, fmt.Errorf("remote %s: path is required", r.Name)
		}
		s, err := OpenSQLite(cfg.ResolvePath(r.Path))
		if err != nil {
			return nil, fmt.Errorf("remote %s: %w", r.Name, err)
		}
		inner = s

	case config.RemoteS3:
		b, err := NewS3(S3Options{
			Bucket:          r.Bucket,
			Endpoint:        r.Endpoint,
			Region:          r.Region,
			Insecure:        r.Insecure,
			AccessKeyID:     r.AccessKeyID,
			SecretAccessKey: r.SecretAccessKey,
			CredentialsFile: cfg.ResolvePath(r.CredentialsFile),
		})
		if err != nil {
			return nil, fmt.Errorf("remote %s: %w", r.Name, err)
		}
		inner = b

	case config.RemoteHTTP:
		url, token := r.URL, r.Token
		if opts.Auth != nil {
			if creds, ok := opts.Auth.Get(r.Name); ok {
				token = creds.Token
				if creds.ServerURL != "" {
					url = creds.ServerURL
				}
			}
		}
		if token == "" {
			return nil, fmt.Errorf("remote %s: %w (run 'punch auth login %s')", r.Name, ErrNotLoggedIn, r.Name)
		}
		inner = NewHTTP(url, token)

	default:
		return nil, fmt.Errorf("remote %s: unknown type %q", r.Name, r.Type)
	}

	if r.EncryptionSalt == "" {
		return inner, nil
	}

	crypto, err := CryptoFor(r, opts.Passphrase)
	if err != nil {
		closeQuietly(inner)
		return nil, err
	}
	return NewSealed(inner, crypto), nil
}

// CryptoFor derives the key of a sealed remote.
func CryptoFor(r config.Remote, passphrase func(config.Remote) (string, error)) (*Crypto, error) {
	salt, err := base64.StdEncoding.DecodeString(r.EncryptionSalt)
	if err != nil {
		return nil, fmt.Errorf("remote %s: invalid encryption_salt: %w", r.Name, err)
	}

	pass := os.Getenv(PassphraseEnv)
	if pass == "" && passphrase != nil {
		if pass, err = passphrase(r); err != nil {
			return nil, err
		}
	}
	if pass == "" {
		return nil, fmt.Errorf("remote %s is encrypted: set %s or enter a passphrase", r.Name, PassphraseEnv)
	}
	return NewCrypto(pass, salt), nil
}

func closeQuietly(r Remote) {
	if c, ok := r.(interface{ Close() error }); ok {
		_ = c.Close()
	}
}
