package service

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	passwordKeyLen  = 32
	passwordSaltLen = 16
)

var errMalformedHash = errors.New("malformed password hash")

// Argon2Params is the Argon2id cost applied to new directory passwords.
type Argon2Params struct {
	Time      uint32
	MemoryKiB uint32
	Threads   uint8
}

func (p Argon2Params) validate() error {
	switch {
	case p.Time < 1:
		return errors.New("argon2 time must be at least 1")
	case p.Threads < 1:
		return errors.New("argon2 threads must be at least 1")
	case p.MemoryKiB < 8*uint32(p.Threads):
		return fmt.Errorf("argon2 memory must be at least %d KiB for %d threads", 8*uint32(p.Threads), p.Threads)
	}
	return nil
}

// storedHash is a decoded "$argon2id$v=19$m=..,t=..,p=..$salt$key" string.
type storedHash struct {
	params Argon2Params
	salt   []byte
	key    []byte
}

func (h storedHash) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.MemoryKiB, h.params.Time, h.params.Threads,
		base64.RawStdEncoding.EncodeToString(h.salt),
		base64.RawStdEncoding.EncodeToString(h.key),
	)
}

func parseStoredHash(encoded string) (storedHash, error) {
	var h storedHash

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return h, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return h, fmt.Errorf("%w: unsupported version %q", errMalformedHash, parts[2])
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &h.params.MemoryKiB, &h.params.Time, &h.params.Threads); err != nil {
		return h, fmt.Errorf("%w: params: %w", errMalformedHash, err)
	}

	var err error
	if h.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return h, fmt.Errorf("%w: salt: %w", errMalformedHash, err)
	}
	if h.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", errMalformedHash)
	}
	return h, nil
}

func (h storedHash) derive(password string) []byte {
	return argon2.IDKey([]byte(password), h.salt, h.params.Time, h.params.MemoryKiB, h.params.Threads, uint32(len(h.key)))
}

// Argon2HashService implements ports.HashService.
type Argon2HashService struct {
	params Argon2Params
}

// NewArgon2HashService rejects cost settings argon2 cannot run with.
func NewArgon2HashService(params Argon2Params) (*Argon2HashService, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Argon2HashService{params: params}, nil
}

func (s *Argon2HashService) Hash(password string) (string, error) {
	h := storedHash{params: s.params, salt: make([]byte, passwordSaltLen), key: make([]byte, passwordKeyLen)}
	if _, err := rand.Read(h.salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	h.key = h.derive(password)
	return h.String(), nil
}

// Verify re-derives the key with the cost recorded in encoded. A malformed
// hash is an error, a mismatch is not.
func (s *Argon2HashService) Verify(password, encoded string) (bool, error) {
	h, err := parseStoredHash(encoded)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(h.key, h.derive(password)) == 1, nil
}

// NeedsRehash reports whether encoded was made with other settings than the
// current ones.
func (s *Argon2HashService) NeedsRehash(encoded string) bool {
	h, err := parseStoredHash(encoded)
	return err != nil || h.params != s.params || len(h.key) != passwordKeyLen
}
