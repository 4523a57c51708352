package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(period_name|start|end|entry_strategy|exit_strategy)
// Returns hex-encoded hash (64 characters).
func ComputeRunID(periodName string, start, end time.Time, entryStrategy, exitStrategy string) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		periodName,
		start.UTC().Format("2006-01-02"),
		end.UTC().Format("2006-01-02"),
		entryStrategy,
		exitStrategy,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
