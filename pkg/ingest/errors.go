package ingest

import (
	"errors"

	"github.com/canopy-network/stacksx/pkg/normalize"
	"github.com/canopy-network/stacksx/pkg/reorg"
)

var (
	ErrUnknownLineage = errors.New("unknown lineage")
	ErrClosed         = errors.New("ingestor closed")
)

// Class groups errors by what the sender should do about them.
type Class string

const (
	ClassValidation  Class = "validation"
	ClassSequencing  Class = "sequencing"
	ClassConsistency Class = "consistency"
	ClassInternal    Class = "internal"
)

// Classify maps an ingestion error onto its class. Validation failures are
// never worth resending, sequencing failures resolve once the missing blocks
// arrive, and everything else is a fault on this side.
func Classify(err error) Class {
	switch {
	case normalize.IsValidation(err):
		return ClassValidation
	case reorg.IsSequencing(err):
		return ClassSequencing
	case reorg.IsConsistencyFault(err):
		return ClassConsistency
	default:
		return ClassInternal
	}
}
