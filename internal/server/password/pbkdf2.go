package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/securingai/internal/common"
	"golang.org/x/crypto/pbkdf2"
)

const (
	pbkdf2Prefix        = "$pbkdf2-sha256$"
	defaultPBKDF2Rounds = 30000
	pbkdf2SaltLen       = 16
	pbkdf2KeyLen        = 32
)

// adapted base64: standard alphabet with '.' instead of '+', no padding.
// This is the encoding used by the modular crypt format for PBKDF2 digests.
var ab64 = base64.RawStdEncoding

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(ab64.EncodeToString(b), "+", ".")
}

func ab64Decode(s string) ([]byte, error) {
	return ab64.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

// PBKDF2SHA256 produces "$pbkdf2-sha256$<rounds>$<salt>$<checksum>" digests.
type PBKDF2SHA256 struct {
	rounds int
}

func NewPBKDF2SHA256(rounds int) *PBKDF2SHA256 {
	if rounds <= 0 {
		rounds = defaultPBKDF2Rounds
	}
	return &PBKDF2SHA256{rounds: rounds}
}

func (p *PBKDF2SHA256) Name() string { return SchemePBKDF2SHA256 }

func (p *PBKDF2SHA256) Identify(digest string) bool {
	return strings.HasPrefix(digest, pbkdf2Prefix)
}

func (p *PBKDF2SHA256) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(pbkdf2SaltLen)
	sum := pbkdf2.Key([]byte(password), salt, p.rounds, pbkdf2KeyLen, sha256.New)
	return fmt.Sprintf("%s%d$%s$%s", pbkdf2Prefix, p.rounds, ab64Encode(salt), ab64Encode(sum)), nil
}

func (p *PBKDF2SHA256) Verify(password, digest string) (bool, error) {
	rounds, salt, expected, err := parsePBKDF2(digest)
	if err != nil {
		return false, err
	}
	sum := pbkdf2.Key([]byte(password), salt, rounds, len(expected), sha256.New)
	return subtle.ConstantTimeCompare(sum, expected) == 1, nil
}

func (p *PBKDF2SHA256) NeedsUpdate(digest string) bool {
	rounds, _, _, err := parsePBKDF2(digest)
	return err == nil && rounds < p.rounds
}

func parsePBKDF2(digest string) (int, []byte, []byte, error) {
	if !strings.HasPrefix(digest, pbkdf2Prefix) {
		return 0, nil, nil, ErrMalformedHash
	}
	parts := strings.Split(strings.TrimPrefix(digest, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return 0, nil, nil, ErrMalformedHash
	}

	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 {
		return 0, nil, nil, fmt.Errorf("%w: bad rounds %q", ErrMalformedHash, parts[0])
	}
	salt, err := ab64Decode(parts[1])
	if err != nil {
		return 0, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	sum, err := ab64Decode(parts[2])
	if err != nil || len(sum) == 0 {
		return 0, nil, nil, fmt.Errorf("%w: checksum", ErrMalformedHash)
	}
	return rounds, salt, sum, nil
}
