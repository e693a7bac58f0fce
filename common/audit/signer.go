package audit

import (
	"fmt"
	"os/exec"
)

// Sign outcomes. Skips and errors are statuses, not failures: the
// manifest/chain pair is already consistent when signing runs.
const (
	SignStatusSigned        = "signed"
	SignStatusCosignMissing = "skip:cosign_missing"
	SignStatusKeyMissing    = "skip:key_missing"
)

// Signer produces a detached cosign signature over the manifest
type Signer struct {
	// Key is the cosign key reference (file path or KMS URI)
	Key string
}

// NewSigner builds a signer for the given key reference
func NewSigner(key string) *Signer {
	return &Signer{Key: key}
}

// Sign invokes `cosign sign-blob` when both the tool and the key are
// available. Returns a status string, never an error.
func (s *Signer) Sign(manifestPath, sigPath string) string {
	cosign, err := exec.LookPath("cosign")
	if err != nil {
		return SignStatusCosignMissing
	}
	if s.Key == "" {
		return SignStatusKeyMissing
	}
	cmd := exec.Command(cosign,
		"sign-blob",
		"--yes",
		"--key", s.Key,
		"--output-signature", sigPath,
		manifestPath,
	)
	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return fmt.Sprintf("error:%d", exitErr.ExitCode())
		}
		return fmt.Sprintf("error:%v", err)
	}
	return SignStatusSigned
}
