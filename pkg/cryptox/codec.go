package cryptox

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"

	"golang.org/x/crypto/sha3"
)

// Supported MAC algorithms for invite token hashing.
const (
	AlgHmacSHA256   = "HmacSHA256"
	AlgHmacSHA384   = "HmacSHA384"
	AlgHmacSHA512   = "HmacSHA512"
	AlgHmacSHA3_256 = "HmacSHA3-256"
	AlgHmacSHA3_512 = "HmacSHA3-512"
)

// Codec limits and defaults.
const (
	MinTokenBytes     = 16
	MaxTokenBytes     = 64
	MinSaltBytes      = 8
	MaxSaltBytes      = 64
	MinSecretBytes    = 16
	DefaultTokenBytes = TokenSize256
	DefaultSaltBytes  = 16
	DefaultAlgorithm  = AlgHmacSHA256
)

var (
	ErrConfiguration = errors.New("cryptox: invalid codec configuration")
	ErrValidation    = errors.New("cryptox: invalid token input")
)

var algorithms = map[string]func() hash.Hash{
	AlgHmacSHA256:   sha256.New,
	AlgHmacSHA384:   sha512.New384,
	AlgHmacSHA512:   sha512.New,
	AlgHmacSHA3_256: sha3.New256,
	AlgHmacSHA3_512: sha3.New512,
}

// TokenCodecConfig configures a TokenCodec. Zero sizes and an empty algorithm
// fall back to the defaults; the secret is always required.
type TokenCodecConfig struct {
	TokenBytes int
	SaltBytes  int
	Algorithm  string
	Secret     []byte
}

// TokenCodec generates invite tokens and salts and derives the keyed hash that
// is stored in place of the token.
type TokenCodec struct {
	tokenBytes int
	saltBytes  int
	algorithm  string
	newHash    func() hash.Hash
	secret     []byte
}

// NewTokenCodec validates cfg and returns a ready codec. Any bad value yields
// ErrConfiguration, which should abort startup.
func NewTokenCodec(cfg TokenCodecConfig) (*TokenCodec, error) {
	if cfg.TokenBytes == 0 {
		cfg.TokenBytes = DefaultTokenBytes
	}
	if cfg.SaltBytes == 0 {
		cfg.SaltBytes = DefaultSaltBytes
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = DefaultAlgorithm
	}

	if cfg.TokenBytes < MinTokenBytes || cfg.TokenBytes > MaxTokenBytes {
		return nil, fmt.Errorf("%w: token bytes %d outside [%d,%d]", ErrConfiguration, cfg.TokenBytes, MinTokenBytes, MaxTokenBytes)
	}
	if cfg.SaltBytes < MinSaltBytes || cfg.SaltBytes > MaxSaltBytes {
		return nil, fmt.Errorf("%w: salt bytes %d outside [%d,%d]", ErrConfiguration, cfg.SaltBytes, MinSaltBytes, MaxSaltBytes)
	}
	newHash, ok := algorithms[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrConfiguration, cfg.Algorithm)
	}
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("%w: secret must be at least %d bytes", ErrConfiguration, MinSecretBytes)
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &TokenCodec{
		tokenBytes: cfg.TokenBytes,
		saltBytes:  cfg.SaltBytes,
		algorithm:  cfg.Algorithm,
		newHash:    newHash,
		secret:     secret,
	}, nil
}

// Algorithm reports the configured MAC algorithm name.
func (c *TokenCodec) Algorithm() string { return c.algorithm }

// GenerateToken returns a fresh base64url token of the configured size.
func (c *TokenCodec) GenerateToken() (string, error) {
	return GenerateToken(c.tokenBytes)
}

// GenerateSalt returns a fresh base64url salt of the configured size.
func (c *TokenCodec) GenerateSalt() (string, error) {
	return GenerateToken(c.saltBytes)
}

// HashToken computes the lowercase hex MAC of "{token}:{salt}". Both inputs must
// be unpadded base64url strings that decode to exactly the configured sizes.
func (c *TokenCodec) HashToken(token, salt string) (string, error) {
	if err := validateEncoded("token", token, c.tokenBytes); err != nil {
		return "", err
	}
	if err := validateEncoded("salt", salt, c.saltBytes); err != nil {
		return "", err
	}

	mac := hmac.New(c.newHash, c.secret)
	mac.Write([]byte(token + ":" + salt))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

// HashesEqualConstantTime compares two hex digests in constant time. Anything
// that is not valid hex, or digests of different lengths, compare unequal.
func HashesEqualConstantTime(a, b string) bool {
	da, err := hex.DecodeString(a)
	if err != nil {
		return false
	}
	db, err := hex.DecodeString(b)
	if err != nil {
		return false
	}
	if len(da) != len(db) {
		return false
	}
	return subtle.ConstantTimeCompare(da, db) == 1
}

func validateEncoded(field, value string, size int) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is blank", ErrValidation, field)
	}
	for i := 0; i < len(value); i++ {
		if !isBase64URLChar(value[i]) {
			return fmt.Errorf("%w: %s contains characters outside base64url", ErrValidation, field)
		}
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return fmt.Errorf("%w: %s is not valid base64url", ErrValidation, field)
	}
	if len(raw) != size {
		return fmt.Errorf("%w: %s decodes to %d bytes, want %d", ErrValidation, field, len(raw), size)
	}
	return nil
}

func isBase64URLChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9') || b == '-' || b == '_'
}
