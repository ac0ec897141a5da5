// Package runid derives deterministic identifiers for pipeline runs so
// reports produced from the same inputs and configuration carry the same ID.
package runid

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/mr-tron/base58"

	"equity-window-lab/internal/domain"
)

// Compute hashes the configuration, the symbol set, and the input row
// count into a short base58 run ID. Symbol order does not matter.
func Compute(cfg domain.PrepConfig, symbols []string, rowCount int) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)

	mas := cfg.SortedMovingAverageWindows()
	maParts := make([]string, len(mas))
	for i, m := range mas {
		maParts[i] = fmt.Sprintf("%d", m)
	}

	canonical := fmt.Sprintf("w=%d|p=%d|ma=%s|vw=%d|symbols=%s|rows=%d",
		cfg.WindowSize,
		cfg.PredictionDays,
		strings.Join(maParts, ","),
		cfg.VolumeWindow,
		strings.Join(sorted, ","),
		rowCount,
	)

	hash := sha256.Sum256([]byte(canonical))
	return base58.Encode(hash[:12])
}
