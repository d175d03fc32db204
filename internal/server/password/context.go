// Package password hashes and verifies user passwords.
//
// A Context holds several schemes at once: new hashes always use the default
// scheme while digests produced by any registered scheme still verify, which
// lets stored hashes migrate to a new algorithm as users log in. Digests are
// self-describing (algorithm tag, cost parameters and salt are embedded), so
// nothing besides the digest string needs to be stored.
package password

import (
	"errors"
	"fmt"
)

// Scheme names accepted by New.
const (
	SchemePBKDF2SHA256 = "pbkdf2_sha256"
	SchemeBcrypt       = "bcrypt"
	SchemeArgon2ID     = "argon2id"
)

var (
	ErrUnknownScheme = errors.New("password: unknown scheme")
	ErrMalformedHash = errors.New("password: malformed hash")
)

// Scheme is a single hashing algorithm.
type Scheme interface {
	Name() string
	// Identify reports whether digest was produced by this scheme.
	Identify(digest string) bool
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
	// NeedsUpdate reports whether digest uses weaker parameters than the
	// scheme is currently configured with.
	NeedsUpdate(digest string) bool
}

// Context hashes with its default scheme and verifies against all of them.
type Context struct {
	schemes []Scheme
	def     Scheme
}

// NewContext builds a Context from explicit schemes. defaultScheme must name
// one of them.
func NewContext(defaultScheme string, schemes ...Scheme) (*Context, error) {
	c := &Context{schemes: schemes}
	for _, s := range schemes {
		if s.Name() == defaultScheme {
			c.def = s
		}
	}
	if c.def == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, defaultScheme)
	}
	return c, nil
}

// New builds a Context with every supported scheme registered. rounds tunes
// the default scheme (PBKDF2 iterations, bcrypt cost or Argon2 passes); zero
// keeps the scheme's own default.
func New(defaultScheme string, rounds int) (*Context, error) {
	pbkdf2Rounds, bcryptCost, argonPasses := 0, 0, 0
	switch defaultScheme {
	case SchemePBKDF2SHA256:
		pbkdf2Rounds = rounds
	case SchemeBcrypt:
		bcryptCost = rounds
	case SchemeArgon2ID:
		if rounds < 0 || rounds > maxArgon2Passes {
			return nil, fmt.Errorf("password: argon2 passes out of range: %d", rounds)
		}
		argonPasses = rounds
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, defaultScheme)
	}

	bc, err := NewBcrypt(bcryptCost)
	if err != nil {
		return nil, err
	}

	return NewContext(defaultScheme,
		NewPBKDF2SHA256(pbkdf2Rounds),
		bc,
		NewArgon2ID(argonPasses),
	)
}

// Default returns the name of the scheme used for new hashes.
func (c *Context) Default() string {
	return c.def.Name()
}

// Hash returns a salted digest of password produced by the default scheme.
func (c *Context) Hash(password string) (string, error) {
	return c.def.Hash(password)
}

// Verify reports whether password matches digest. Digests that no
// registered scheme recognises, or that fail to parse, never match.
func (c *Context) Verify(password, digest string) bool {
	s := c.identify(digest)
	if s == nil {
		return false
	}
	ok, err := s.Verify(password, digest)
	return err == nil && ok
}

// NeedsUpdate reports whether digest should be replaced by a fresh hash:
// it was produced by a non-default scheme or with weaker parameters.
func (c *Context) NeedsUpdate(digest string) bool {
	s := c.identify(digest)
	if s == nil {
		return false
	}
	if s.Name() != c.def.Name() {
		return true
	}
	return s.NeedsUpdate(digest)
}

func (c *Context) identify(digest string) Scheme {
	for _, s := range c.schemes {
		if s.Identify(digest) {
			return s
		}
	}
	return nil
}
