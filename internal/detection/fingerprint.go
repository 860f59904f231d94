package detection

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// Fingerprint returns the sha256 hex digest of the snapshot's RFC 8785
// canonical JSON form. Snapshots with equal content share a fingerprint.
func Fingerprint(s Snapshot) (string, error) {
	raw, err := json.Marshal(s.Normalize())
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
