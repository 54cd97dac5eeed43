package normalize

import (
	"fmt"

	"github.com/crawlkit/docscrawler/pkg/failure"
	"github.com/crawlkit/docscrawler/internal/metadata"
)

type NormalizationErrorCause string

// Structural shape issues (missing/duplicate H1, skipped heading levels,
// orphan content, empty content) are not represented here: per the
// extractor's fail-open contract, a malformed document normalizes to
// empty content and a quality score of zero rather than an error. Only
// genuine construction failures — hashing, section derivation — are
// still modeled as errors.
const (
	ErrCauseHashComputationFailed   = "hash computation failed"
	ErrCauseSectionDerivationFailed = "section derivation failed"
)

type NormalizationError struct {
	Message   string
	Retryable bool
	Cause     NormalizationErrorCause
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalization error: %s", e.Cause)
}

func (e *NormalizationError) Severity() failure.Severity {
	if e.Retryable {
		return failure.SeverityRecoverable
	}
	return failure.SeverityFatal
}

// mapNormalizationErrorToMetadataCause maps normalize-local error semantics
// to the canonical metadata.ErrorCause table.
//
// This mapping is observational only and MUST NOT be used
// to derive control-flow decisions.
func mapNormalizationErrorToMetadataCause(err NormalizationError) metadata.ErrorCause {
	switch err.Cause {
	case ErrCauseHashComputationFailed:
		return metadata.CauseStorageFailure
	case ErrCauseSectionDerivationFailed:
		return metadata.CauseInvariantViolation
	default:
		return metadata.CauseUnknown
	}
}
