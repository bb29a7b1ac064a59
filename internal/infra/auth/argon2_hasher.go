// Package auth provides concrete implementations for authentication-related domain services.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"

	"accounts/config"
	"accounts/internal/domain/service"
	"accounts/internal/errors"
)

const (
	defaultArgon2Memory      = 64 * 1024 // KiB
	defaultArgon2Iterations  = 3
	defaultArgon2Parallelism = 2
	defaultArgon2SaltLength  = 16
	defaultArgon2KeyLength   = 32

	argon2idPrefix = "$argon2id$"
)

// argon2Hasher is a concrete implementation of the PasswordHasher interface using argon2id.
// Hashes are PHC strings, so verification reads its parameters from the hash itself.
type argon2Hasher struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	saltLength  uint32
	keyLength   uint32
}

// NewArgon2Hasher is the constructor for argon2Hasher.
// Unset values in auth.argon2 fall back to the defaults.
func NewArgon2Hasher(cfg *config.Config) service.PasswordHasher {
	h := &argon2Hasher{
		memory:      defaultArgon2Memory,
		iterations:  defaultArgon2Iterations,
		parallelism: defaultArgon2Parallelism,
		saltLength:  defaultArgon2SaltLength,
		keyLength:   defaultArgon2KeyLength,
	}

	if cfg == nil || cfg.Auth == nil || cfg.Auth.Argon2 == nil {
		return h
	}

	params := cfg.Auth.Argon2
	if params.MemoryKiB > 0 {
		h.memory = params.MemoryKiB
	}
	if params.Iterations > 0 {
		h.iterations = params.Iterations
	}
	if params.Parallelism > 0 {
		h.parallelism = params.Parallelism
	}
	if params.SaltLength > 0 {
		h.saltLength = params.SaltLength
	}
	if params.KeyLength > 0 {
		h.keyLength = params.KeyLength
	}

	return h
}

// Hash generates a salted argon2id hash encoded as
// $argon2id$v=19$m=<KiB>,t=<iterations>,p=<parallelism>$<salt>$<key>.
func (h *argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", errors.Wrap(err, "failed to generate salt")
	}

	key := argon2.IDKey([]byte(password), salt, h.iterations, h.memory, h.parallelism, h.keyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.memory,
		h.iterations,
		h.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Check compares a plaintext password with an argon2id or legacy bcrypt hash.
func (h *argon2Hasher) Check(password, hash string) bool {
	if isBcryptHash(hash) {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
	}

	params, salt, key, err := decodeArgon2idHash(hash)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, params.iterations, params.memory, params.parallelism, params.keyLength)

	return subtle.ConstantTimeCompare(key, computed) == 1
}

func isBcryptHash(hash string) bool {
	return strings.HasPrefix(hash, "$2a$") ||
		strings.HasPrefix(hash, "$2b$") ||
		strings.HasPrefix(hash, "$2y$")
}

func decodeArgon2idHash(encoded string) (*argon2Hasher, []byte, []byte, error) {
	if !strings.HasPrefix(encoded, argon2idPrefix) {
		return nil, nil, nil, errors.New("unsupported hash algorithm")
	}

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, nil, nil, errors.New("invalid hash format")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, nil, errors.Wrap(err, "invalid version")
	}
	if version != argon2.Version {
		return nil, nil, nil, errors.Errorf("unsupported argon2 version %d", version)
	}

	params := &argon2Hasher{}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &params.memory, &params.iterations, &params.parallelism); err != nil {
		return nil, nil, nil, errors.Wrap(err, "invalid parameters")
	}
	if params.memory == 0 || params.iterations == 0 || params.parallelism == 0 {
		return nil, nil, nil, errors.New("invalid parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "invalid salt")
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "invalid key")
	}
	if len(key) == 0 {
		return nil, nil, nil, errors.New("empty key")
	}
	params.keyLength = uint32(len(key))

	return params, salt, key, nil
}
