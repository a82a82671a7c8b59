package remote

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/gjson"
	"golang.org/x/crypto/pbkdf2"

	"github.com/existflow/punch/internal/record"
)

const (
	keySize          = 32 // AES-256
	nonceSize        = 12 // GCM standard nonce size
	saltSize         = 16
	pbkdf2Iterations = 100000
)

// ErrDecrypt is returned when a sealed punch cannot be opened.
var ErrDecrypt = errors.New("decryption failed: invalid key or corrupted data")

// Crypto handles encryption/decryption
type Crypto struct {
	key []byte
}

// NewCrypto creates a crypto instance with derived key from passphrase
func NewCrypto(passphrase string, salt []byte) *Crypto {
	key := pbkdf2.Key([]byte(passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	return &Crypto{key: key}
}

// GenerateSalt generates a random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Fingerprint returns a short, displayable digest of the derived key so
// two machines can confirm they use the same passphrase.
func (c *Crypto) Fingerprint() string {
	sum := sha256.Sum256(c.key)
	return base64.RawURLEncoding.EncodeToString(sum[:])[:16]
}

// Encrypt encrypts data using AES-256-GCM
func (c *Crypto) Encrypt(plaintext []byte) (string, error) {
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	// Seal appends ciphertext to the nonce
	ciphertext := gcm.Seal(nonce, nonce, plaintext, nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt decrypts data using AES-256-GCM
func (c *Crypto) Decrypt(encrypted string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, err
	}
	if len(data) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}

	gcm, err := c.gcm()
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func (c *Crypto) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// envelope is what a sealed remote stores in place of a punch. Only id and
// updated stay readable so the remote can still build its manifest.
type envelope struct {
	ID      string `json:"id"`
	Updated int64  `json:"updated"`
	Sealed  string `json:"sealed"`
}

// Sealed encrypts punches before they reach another remote.
type Sealed struct {
	inner  Remote
	crypto *Crypto
}

// NewSealed wraps inner so it only ever sees encrypted punches.
func NewSealed(inner Remote, crypto *Crypto) *Sealed {
	return &Sealed{inner: inner, crypto: crypto}
}

func (s *Sealed) Manifest(ctx context.Context) (record.Manifest, error) {
	return s.inner.Manifest(ctx)
}

func (s *Sealed) Upload(ctx context.Context, records []record.Record) (record.UploadResult, error) {
	failed := map[string]error{}
	sealed := make([]record.Record, 0, len(records))
	for _, rec := range records {
		ciphertext, err := s.crypto.Encrypt(rec.Data)
		if err != nil {
			failed[rec.ID] = fmt.Errorf("encrypt: %w", err)
			continue
		}
		data, err := json.Marshal(envelope{ID: rec.ID, Updated: rec.Updated, Sealed: ciphertext})
		if err != nil {
			failed[rec.ID] = err
			continue
		}
		sealed = append(sealed, record.Record{ID: rec.ID, Updated: rec.Updated, Data: data})
	}

	result := record.UploadResult{Failed: failed}
	if len(sealed) == 0 {
		return result, nil
	}

	inner, err := s.inner.Upload(ctx, sealed)
	if err != nil {
		return result, err
	}
	result.Accepted = inner.Accepted
	for id, err := range inner.Failed {
		result.Failed[id] = err
	}
	return result, nil
}

// Download opens each envelope. The punch inside is stamped with the
// envelope's updated, which is what the remote's manifest holds.
func (s *Sealed) Download(ctx context.Context, ids []string) (record.DownloadResult, error) {
	inner, err := s.inner.Download(ctx, ids)
	if err != nil {
		return record.DownloadResult{Failed: map[string]error{}}, err
	}

	result := record.DownloadResult{Failed: inner.Failed}
	if result.Failed == nil {
		result.Failed = map[string]error{}
	}
	for _, rec := range inner.Records {
		opened, err := s.open(rec)
		if err != nil {
			result.Failed[rec.ID] = err
			continue
		}
		result.Records = append(result.Records, opened)
	}
	return result, nil
}

func (s *Sealed) open(rec record.Record) (record.Record, error) {
	ciphertext := gjson.GetBytes(rec.Data, "sealed")
	if ciphertext.Type != gjson.String {
		return record.Record{}, fmt.Errorf("punch %s is not sealed", rec.ID)
	}
	plaintext, err := s.crypto.Decrypt(ciphertext.Str)
	if err != nil {
		return record.Record{}, fmt.Errorf("punch %s: %w", rec.ID, err)
	}

	opened, err := record.Parse(plaintext)
	if err != nil {
		return record.Record{}, fmt.Errorf("punch %s: %w", rec.ID, err)
	}
	if opened.ID != rec.ID {
		return record.Record{}, fmt.Errorf("sealed punch %s holds id %q", rec.ID, opened.ID)
	}
	if opened.Updated == rec.Updated {
		return opened, nil
	}
	return opened.WithUpdated(rec.Updated)
}

// Close closes the wrapped remote when it holds resources.
func (s *Sealed) Close() error {
	if c, ok := s.inner.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
