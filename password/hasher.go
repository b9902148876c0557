// Package password provides one-way hashing and verification of user
// secrets with an upgradeable work factor.
package password

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// ErrCorruptCredential is returned when a stored hash record cannot be
// decoded or fails bcrypt's own format checks.
var ErrCorruptCredential = errors.New("corrupt credential record")

const (
	// DefaultCost is the work factor applied when none is configured.
	// Hashes stored below the hasher's configured cost are reported by
	// NeedsRehash so they can be upgraded on the next successful login.
	DefaultCost = 12

	saltLength   = 22 // bcrypt base64, fixed
	digestLength = 31
)

// HashRecord is the decoded form of a stored password hash.
type HashRecord struct {
	Algorithm string // bcrypt version identifier, e.g. "2a"
	Cost      int
	Salt      string
	Digest    string
}

// Encoded reassembles the record into modular-crypt form, the exact string
// bcrypt produced when the secret was hashed.
func (hr HashRecord) Encoded() string {
	return fmt.Sprintf("$%s$%02d$%s%s", hr.Algorithm, hr.Cost, hr.Salt, hr.Digest)
}

// ParseHashRecord decodes a modular-crypt bcrypt string ($2a$10$...) into
// its algorithm, cost, salt and digest parts.
func ParseHashRecord(encoded string) (HashRecord, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 4 || parts[0] != "" {
		return HashRecord{}, fmt.Errorf("%w: unexpected format", ErrCorruptCredential)
	}
	if !strings.HasPrefix(parts[1], "2") {
		return HashRecord{}, fmt.Errorf("%w: unsupported algorithm %q", ErrCorruptCredential, parts[1])
	}
	cost, err := strconv.Atoi(parts[2])
	if err != nil {
		return HashRecord{}, fmt.Errorf("%w: bad cost %q", ErrCorruptCredential, parts[2])
	}
	if len(parts[3]) != saltLength+digestLength {
		return HashRecord{}, fmt.Errorf("%w: truncated hash", ErrCorruptCredential)
	}
	return HashRecord{
		Algorithm: parts[1],
		Cost:      cost,
		Salt:      parts[3][:saltLength],
		Digest:    parts[3][saltLength:],
	}, nil
}

// Hasher hashes and verifies secrets with bcrypt.
type Hasher struct {
	cost int
}

// NewHasher creates a Hasher with the given work factor. Costs outside
// bcrypt's supported range are clamped.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost {
		cost = DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{cost: cost}
}

// Hash derives a salted hash of secret at the configured cost.
// This is CPU-bound and deliberately expensive.
func (h *Hasher) Hash(secret string) (HashRecord, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return HashRecord{}, fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}
	return ParseHashRecord(string(bytes))
}

// Verify reports whether secret matches the stored record. The comparison
// runs in constant time over the full digest. A record bcrypt cannot decode
// fails with ErrCorruptCredential; a plain mismatch is (false, nil).
func (h *Hasher) Verify(secret string, record HashRecord) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(record.Encoded()), []byte(secret))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrCorruptCredential, err)
}

// NeedsRehash reports whether the record was hashed below the currently
// configured cost and should be re-hashed on the next successful verify.
func (h *Hasher) NeedsRehash(record HashRecord) bool {
	return record.Cost < h.cost
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}
