package password

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/securingai/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	argon2Prefix = "$argon2id$v=19$"

	defaultArgon2Passes = 3
	maxArgon2Passes     = 16
)

// Argon2ID produces PHC-formatted digests:
// "$argon2id$v=19$m=<memory>,t=<passes>,p=<threads>$<salt>$<hash>".
type Argon2ID struct {
	Memory      uint32
	Passes      uint32
	Parallelism uint8
	SaltLength  int
	KeyLength   uint32
}

func NewArgon2ID(passes int) *Argon2ID {
	if passes <= 0 {
		passes = defaultArgon2Passes
	}
	return &Argon2ID{
		Memory:      64 * 1024,
		Passes:      uint32(passes),
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (a *Argon2ID) Name() string { return SchemeArgon2ID }

func (a *Argon2ID) Identify(digest string) bool {
	return strings.HasPrefix(digest, argon2Prefix)
}

func (a *Argon2ID) Hash(password string) (string, error) {
	salt := common.GenerateRandByteArray(a.SaltLength)
	sum := argon2.IDKey([]byte(password), salt, a.Passes, a.Memory, a.Parallelism, a.KeyLength)

	return fmt.Sprintf("%sm=%d,t=%d,p=%d$%s$%s", argon2Prefix,
		a.Memory, a.Passes, a.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum)), nil
}

func (a *Argon2ID) Verify(password, digest string) (bool, error) {
	params, salt, expected, err := parseArgon2(digest)
	if err != nil {
		return false, err
	}
	sum := argon2.IDKey([]byte(password), salt, params.Passes, params.Memory, params.Parallelism, uint32(len(expected)))
	return subtle.ConstantTimeCompare(sum, expected) == 1, nil
}

func (a *Argon2ID) NeedsUpdate(digest string) bool {
	params, _, _, err := parseArgon2(digest)
	if err != nil {
		return false
	}
	return params.Memory < a.Memory || params.Passes < a.Passes
}

func parseArgon2(digest string) (*Argon2ID, []byte, []byte, error) {
	if !strings.HasPrefix(digest, argon2Prefix) {
		return nil, nil, nil, ErrMalformedHash
	}
	parts := strings.Split(strings.TrimPrefix(digest, argon2Prefix), "$")
	if len(parts) != 3 {
		return nil, nil, nil, ErrMalformedHash
	}

	params := &Argon2ID{}
	if _, err := fmt.Sscanf(parts[0], "m=%d,t=%d,p=%d", &params.Memory, &params.Passes, &params.Parallelism); err != nil {
		return nil, nil, nil, fmt.Errorf("%w: params: %v", ErrMalformedHash, err)
	}
	if params.Memory == 0 || params.Passes == 0 || params.Parallelism == 0 {
		return nil, nil, nil, fmt.Errorf("%w: zero parameter", ErrMalformedHash)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	sum, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil || len(sum) == 0 {
		return nil, nil, nil, fmt.Errorf("%w: hash", ErrMalformedHash)
	}
	return params, salt, sum, nil
}
