package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|instrument_id|entry_date|exit_date|quantity)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(runID, instrumentID string, entryDate, exitDate time.Time, quantity int64) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%d",
		runID,
		instrumentID,
		entryDate.UTC().Format("2006-01-02"),
		exitDate.UTC().Format("2006-01-02"),
		quantity,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
