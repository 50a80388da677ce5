package vectorstore

import (
	"fmt"
	"math"

	"github.com/docsage/docsage/internal/apperr"
	"github.com/docsage/docsage/internal/models"
)

const maxPointIDLen = 512

// validatePoint rejects chunks that would corrupt the collection: missing
// identifiers, empty text, absent or non-finite vectors, or a vector whose
// dimensionality disagrees with the collection.
func validatePoint(ec models.EmbeddedChunk, dims int) error {
	if ec.ID == "" {
		return apperr.New(apperr.InvalidPoint, "INVALID_POINT", "point has empty id")
	}
	if len(ec.ID) > maxPointIDLen {
		return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT", "point id %q exceeds %d bytes", ec.ID[:32]+"...", maxPointIDLen)
	}
	if ec.Text == "" {
		return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT", "point %s has empty text", ec.ID)
	}
	if ec.DocID == "" {
		return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT", "point %s has empty doc id", ec.ID)
	}
	if len(ec.Vector) == 0 {
		return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT", "point %s has no vector", ec.ID)
	}
	if dims > 0 && len(ec.Vector) != dims {
		return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT",
			"point %s has %d dimensions, collection expects %d", ec.ID, len(ec.Vector), dims)
	}
	for i, v := range ec.Vector {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return apperr.Newf(apperr.InvalidPoint, "INVALID_POINT",
				"point %s has non-finite value at dimension %d", ec.ID, i)
		}
	}
	return nil
}

// validateSearch checks query vector and topK bounds before hitting the backend.
func validateSearch(vector []float32, topK int) error {
	if len(vector) == 0 {
		return apperr.New(apperr.InvalidInput, "INVALID_INPUT", "search vector is empty")
	}
	if topK < 1 || topK > 100 {
		return apperr.Newf(apperr.InvalidInput, "INVALID_INPUT", "topK must be between 1 and 100, got %d", topK)
	}
	return nil
}

func batchRange(from, to int) string {
	return fmt.Sprintf("points %d..%d", from, to)
}
