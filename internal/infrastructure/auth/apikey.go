package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pannpers/go-apperr/apperr"
	"github.com/pannpers/go-apperr/apperr/codes"
	"golang.org/x/crypto/argon2"
)

// ApiKeyPrefix is the literal prefix every issued API key carries.
const ApiKeyPrefix = "tt_"

// apiKeyPattern discriminates an API key from a session bearer token: the
// tt_ prefix followed by at least 32 characters of url-safe entropy.
var apiKeyPattern = regexp.MustCompile(`^tt_[A-Za-z0-9_-]{32,}$`)

// LooksLikeApiKey reports whether token matches the API-key shape. Callers
// treat anything else as a session bearer token.
func LooksLikeApiKey(token string) bool {
	return apiKeyPattern.MatchString(token)
}

// secretBytes is the amount of raw entropy packed into an issued secret.
const secretBytes = 32

// prefixChars is how much of the encoded secret becomes the lookup prefix.
const prefixChars = 10

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
)

// GenerateApiKeySecret mints a new full secret and its lookup prefix.
// The secret is returned to the caller exactly once; only its hash is ever
// persisted.
func GenerateApiKeySecret() (secret, prefix string, err error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("generate api key entropy: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	secret = ApiKeyPrefix + body
	if len(secret) < prefixChars {
		return "", "", fmt.Errorf("generated secret shorter than prefix length")
	}
	prefix = secret[:prefixChars]
	return secret, prefix, nil
}

// HashApiKeySecret derives the PHC-formatted argon2id digest of secret,
// embedding the parameters used so verification remains possible after
// future tuning.
func HashApiKeySecret(secret string) (string, error) {
	return hashPHC(secret)
}

// VerifyApiKeySecret reports whether secret matches the PHC-formatted
// digest encoded, using a constant-time comparison over the derived hash.
func VerifyApiKeySecret(encoded, secret string) (bool, error) {
	return verifyPHC(encoded, secret)
}

// hashPHC derives a PHC-formatted argon2id digest of secret, embedding the
// parameters used so verification remains possible after future tuning.
// Shared by API-key secrets and user passwords: both are a single opaque
// string hashed the same way, just stored in different columns.
func hashPHC(secret string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	hash := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// verifyPHC reports whether secret matches the PHC-formatted digest
// encoded, using a constant-time comparison over the derived hash.
func verifyPHC(encoded, secret string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, apperr.New(codes.Internal, "malformed password hash encoding")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, apperr.New(codes.Internal, "malformed password hash version")
	}

	var memory, time, threads uint32
	for _, seg := range strings.Split(parts[3], ",") {
		kv := strings.SplitN(seg, "=", 2)
		if len(kv) != 2 {
			return false, apperr.New(codes.Internal, "malformed password hash params")
		}
		n, err := strconv.ParseUint(kv[1], 10, 32)
		if err != nil {
			return false, apperr.New(codes.Internal, "malformed password hash params")
		}
		switch kv[0] {
		case "m":
			memory = uint32(n)
		case "t":
			time = uint32(n)
		case "p":
			threads = uint32(n)
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, apperr.New(codes.Internal, "malformed password hash salt")
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, apperr.New(codes.Internal, "malformed password hash digest")
	}

	got := argon2.IDKey([]byte(secret), salt, time, memory, uint8(threads), uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
