package decision

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// EvidenceDigest hashes the canonical JSON form of evidence, so two checks that
// cite the same clauses with the same text share a digest.
func EvidenceDigest(evidence []Evidence) (string, error) {
	if evidence == nil {
		evidence = []Evidence{}
	}
	raw, err := json.Marshal(evidence)
	if err != nil {
		return "", fmt.Errorf("marshal evidence: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize evidence: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
