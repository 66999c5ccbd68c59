package credential

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/ssocore/platform/internal/apperr"
)

// Hasher is the password-hashing contract, mirroring the teacher's
// PasswordHasher interface shape so callers can be mocked in tests.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// Argon2Hasher implements Hasher with argon2id, the memory-hard KDF spec
// §4.3 requires (bcrypt, the teacher's original choice, is not memory-hard).
// Parameters are tuned so a modern server spends roughly 50ms+ per
// verification, per spec §4.3.
type Argon2Hasher struct {
	memoryKiB  uint32
	iterations uint32
	threads    uint8
	keyLen     uint32
	saltLen    uint32
}

// NewArgon2Hasher builds a hasher with the default cost parameters.
func NewArgon2Hasher() *Argon2Hasher {
	return &Argon2Hasher{
		memoryKiB:  64 * 1024, // 64 MiB
		iterations: 3,
		threads:    2,
		keyLen:     32,
		saltLen:    16,
	}
}

// encoded format: argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt-b64>$<hash-b64>
const hashPrefix = "argon2id"

func (h *Argon2Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.saltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", apperr.Wrap(apperr.KindCryptoError, "failed to generate salt", err)
	}
	sum := argon2.IDKey([]byte(password), salt, h.iterations, h.memoryKiB, h.threads, h.keyLen)

	encoded := fmt.Sprintf("%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashPrefix, argon2.Version, h.memoryKiB, h.iterations, h.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	)
	return encoded, nil
}

// Compare verifies a candidate password against an encoded hash in
// constant time relative to the candidate, per spec §4.3.
func (h *Argon2Hasher) Compare(hash, password string) error {
	parts := strings.Split(hash, "$")
	if len(parts) != 5 || parts[0] != hashPrefix {
		return apperr.New(apperr.KindCryptoError, "unrecognized password hash format")
	}

	var version int
	var memKiB, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[1], "v=%d", &version); err != nil {
		return apperr.New(apperr.KindCryptoError, "malformed password hash header")
	}
	if _, err := fmt.Sscanf(parts[2], "m=%d,t=%d,p=%d", &memKiB, &iterations, &threads); err != nil {
		return apperr.New(apperr.KindCryptoError, "malformed password hash parameters")
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return apperr.New(apperr.KindCryptoError, "malformed password hash salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return apperr.New(apperr.KindCryptoError, "malformed password hash digest")
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memKiB, threads, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return apperr.New(apperr.KindInvalidCredentials, "password does not match")
	}
	return nil
}

// CheckHistory returns true iff password matches any of the prior hashes,
// spec §4.3's history check. It runs the full comparison loop rather than
// short-circuiting on the first mismatch error to keep timing uniform
// across a non-match result.
func CheckHistory(h Hasher, password string, priorHashes []string) bool {
	matched := false
	for _, prior := range priorHashes {
		if h.Compare(prior, password) == nil {
			matched = true
		}
	}
	return matched
}
