// Package adjust is the corporate-action adjustment seam. Accurate
// split/dividend adjustment needs external corporate-action data, so the
// current implementation is an explicit pass-through: callers must supply
// pre-adjusted inputs.
package adjust

import (
	"log"

	"equity-window-lab/internal/domain"
)

// Prices returns the input unchanged and logs that no adjustment was
// applied.
func Prices(bars []*domain.Bar) []*domain.Bar {
	log.Printf("[adjust] split/dividend adjustment not implemented; using raw prices")
	return bars
}
