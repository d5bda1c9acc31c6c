package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"runtime"
)

// Fingerprint derives the artifact key for a kernel source text. Two
// sources share a fingerprint exactly when their bytes match, so any
// change to register layout, instruction order or constant payloads
// yields a distinct artifact.
func Fingerprint(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// PlatformKey names the artifact directory for this process. Artifacts
// are only meaningful on the platform and under the configuration salt
// that produced them, so the key folds in both.
func PlatformKey(salt string) string {
	sum := sha256.Sum256([]byte(salt))
	return fmt.Sprintf("v1-%s-%s-%s", runtime.GOOS, runtime.GOARCH, hex.EncodeToString(sum[:4]))
}
