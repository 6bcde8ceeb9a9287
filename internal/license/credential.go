package license

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// CredentialPrefix marks license keys issued by this service.
const CredentialPrefix = "PR"

// GenerateCredential produces a new opaque license key. The key pairs
// a millisecond timestamp with a random suffix so collisions are
// vanishingly unlikely even for credentials issued in the same instant.
// A credential is assigned exactly once per identity; callers must
// never regenerate one for an identity that already holds a record.
func GenerateCredential() (string, error) {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to generate credential suffix: %w", err)
	}
	return fmt.Sprintf("%s-%d-%s", CredentialPrefix, time.Now().UnixMilli(), hex.EncodeToString(suffix)), nil
}
