package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// --- Argon2id Configuration ---
// These parameters follow OWASP recommendations for a balance of security and performance.
type HashParams struct {
	Memory      uint32 // KiB
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

var DefaultParams = HashParams{
	Memory:      64 * 1024, // 64MB
	Iterations:  3,
	Parallelism: 2,
	SaltLength:  16,
	KeyLength:   32,
}

// Upper bounds accepted when decoding a stored digest. A corrupted row must
// not be able to make a single verification allocate gigabytes.
const (
	maxMemory      = 1024 * 1024
	maxIterations  = 64
	minSaltLength  = 8
	minKeyLength   = 16
	maxKeyLength   = 128
	argon2idPrefix = "$argon2id$"
)

var errMalformedHash = errors.New("invalid hash format")

// randRead is swapped in tests to simulate an exhausted entropy source.
var randRead = rand.Read

const burnPassword = "lifeline-dummy-password"

// Hasher hashes and verifies passwords. The zero value is not usable; call NewHasher.
type Hasher struct {
	params HashParams

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher using p as its work factor.
func NewHasher(p HashParams) *Hasher {
	return &Hasher{params: p}
}

// Params returns the work factor used for new digests.
func (h *Hasher) Params() HashParams {
	return h.params
}

// Hash generates an Argon2id hash from a plaintext password.
// Returns a string in the standard encoded format: $argon2id$v=19$m=...,t=...,p=...$salt$hash
// Every call draws a fresh salt, so equal passwords never share a digest.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := randRead(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return h.encode(password, salt), nil
}

func (h *Hasher) encode(password string, salt []byte) string {
	hash := argon2.IDKey(
		[]byte(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, h.params.Memory, h.params.Iterations, h.params.Parallelism, b64Salt, b64Hash)
}

// Verify checks if a digest matches a plaintext password.
// Argon2id digests are compared in constant time. Legacy bcrypt digests are
// accepted too. Anything unparseable fails closed.
func (h *Hasher) Verify(password, encodedHash string) bool {
	if isBcrypt(encodedHash) {
		return bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password)) == nil
	}

	d, err := decodeArgon2id(encodedHash)
	if err != nil {
		return false
	}

	comparisonHash := argon2.IDKey([]byte(password), d.salt, d.params.Iterations, d.params.Memory, d.params.Parallelism, d.params.KeyLength)
	return subtle.ConstantTimeCompare(d.hash, comparisonHash) == 1
}

// NeedsRehash reports whether encodedHash was produced by another algorithm
// or with a different work factor than the current one.
func (h *Hasher) NeedsRehash(encodedHash string) bool {
	d, err := decodeArgon2id(encodedHash)
	if err != nil {
		return true
	}
	p := d.params
	return p.Memory != h.params.Memory ||
		p.Iterations != h.params.Iterations ||
		p.Parallelism != h.params.Parallelism ||
		p.KeyLength != h.params.KeyLength
}

// Burn spends the same work as a real verification and always discards the
// result. Used when the account does not exist so both paths cost the same.
func (h *Hasher) Burn(password string) {
	h.dummyOnce.Do(func() {
		dummy, err := h.Hash(burnPassword)
		if err != nil {
			// The dummy is never matched against, so a zero salt still
			// buys a verification at the configured cost.
			dummy = h.encode(burnPassword, make([]byte, h.params.SaltLength))
		}
		h.dummy = dummy
	})
	_ = h.Verify(password, h.dummy)
}

type argon2Digest struct {
	params HashParams
	salt   []byte
	hash   []byte
}

func decodeArgon2id(encodedHash string) (*argon2Digest, error) {
	if !strings.HasPrefix(encodedHash, argon2idPrefix) {
		return nil, errMalformedHash
	}
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errMalformedHash
	}

	var p HashParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Iterations, &p.Parallelism); err != nil {
		return nil, errMalformedHash
	}
	if p.Memory == 0 || p.Memory > maxMemory || p.Iterations == 0 || p.Iterations > maxIterations || p.Parallelism == 0 {
		return nil, errMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minSaltLength {
		return nil, errMalformedHash
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(hash) < minKeyLength || len(hash) > maxKeyLength {
		return nil, errMalformedHash
	}

	p.SaltLength = uint32(len(salt))
	p.KeyLength = uint32(len(hash))
	return &argon2Digest{params: p, salt: salt, hash: hash}, nil
}

func isBcrypt(encodedHash string) bool {
	return strings.HasPrefix(encodedHash, "$2a$") ||
		strings.HasPrefix(encodedHash, "$2b$") ||
		strings.HasPrefix(encodedHash, "$2y$")
}
