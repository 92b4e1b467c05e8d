// Package signature implements the gateway's checksum scheme for signing
// outbound requests and authenticating inbound callbacks.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"log/slog"
	"strings"
)

// Delimiter separates the checksum from the salt key index in a signature
const Delimiter = "###"

// Sign computes the signature for a request carrying a payload:
// hex(sha256(base64(payload) + endpoint + saltKey)) + "###" + saltIndex.
// Deterministic, pure.
func Sign(payload []byte, endpoint, saltKey, saltIndex string) string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	sum := sha256.Sum256([]byte(encoded + endpoint + saltKey))
	return hex.EncodeToString(sum[:]) + Delimiter + saltIndex
}

// SignEndpoint computes the signature for a payload-less request such as a
// status query: only the endpoint path and the salt key are hashed. The
// gateway's status surface signs differently from its pay surface and the
// two must not be mixed up.
func SignEndpoint(endpoint, saltKey, saltIndex string) string {
	sum := sha256.Sum256([]byte(endpoint + saltKey))
	return hex.EncodeToString(sum[:]) + Delimiter + saltIndex
}

// Codec binds the merchant's salt key and index so call sites don't have to
// thread the secret around. Verification failures are logged as security
// events; Verify never panics on malformed input.
type Codec struct {
	logger    *slog.Logger
	saltKey   string
	saltIndex string
}

// NewCodec creates a Codec. An empty salt key is a misconfiguration, not a
// bypass: it still participates in every hash, so nothing verifies for free.
func NewCodec(saltKey, saltIndex string, logger *slog.Logger) *Codec {
	return &Codec{
		logger:    logger,
		saltKey:   saltKey,
		saltIndex: saltIndex,
	}
}

// Sign signs a payload destined for the given endpoint
func (c *Codec) Sign(payload []byte, endpoint string) string {
	return Sign(payload, endpoint, c.saltKey, c.saltIndex)
}

// SignEndpoint signs a payload-less request for the given endpoint
func (c *Codec) SignEndpoint(endpoint string) string {
	return SignEndpoint(endpoint, c.saltKey, c.saltIndex)
}

// Verify recomputes the checksum for an inbound payload and compares it,
// in constant time, against the portion of the presented signature before
// the "###" delimiter. Malformed signatures return false.
func (c *Codec) Verify(payload []byte, presented string) bool {
	checksum, _, found := strings.Cut(presented, Delimiter)
	if !found || checksum == "" {
		c.logger.Warn("malformed signature rejected",
			"reason", "missing delimiter",
		)
		return false
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	sum := sha256.Sum256([]byte(encoded + c.saltKey))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(checksum)) != 1 {
		c.logger.Warn("signature verification failed",
			"reason", "checksum mismatch",
		)
		return false
	}

	return true
}
