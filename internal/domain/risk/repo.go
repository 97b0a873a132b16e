package risk

import (
	"context"

	"github.com/google/uuid"
)

// ScoreRepository is the persistence boundary for risk scores. The ledger
// invariant (at most one active score per patient/model) is upheld by calling
// DeactivateActive and Create inside one transaction via db.TxRunner.
type ScoreRepository interface {
	Create(ctx context.Context, s *Score) error
	GetByID(ctx context.Context, id uuid.UUID) (*Score, error)
	// DeactivateActive marks every active score for (patientID, modelName)
	// inactive. Rows are never deleted; history is preserved.
	DeactivateActive(ctx context.Context, patientID uuid.UUID, modelName string) error
	// ListActiveByPatient returns all currently-active scores for a patient,
	// newest effective date first.
	ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Score, error)
	// CountActiveForModel counts all active scores for the model.
	CountActiveForModel(ctx context.Context, modelName string) (int, error)
	// CountActiveBelow counts active scores for the model strictly below the
	// given normalized score, excluding the subject patient's own rows.
	CountActiveBelow(ctx context.Context, modelName string, normalizedScore float64, excludePatient uuid.UUID) (int, error)
	Search(ctx context.Context, f Filters, limit, offset int) ([]*Score, int, error)
}

// MemberScoreWriter is the write-through hook the ledger uses to mirror a
// freshly committed score onto population membership rows. Implemented by the
// population package; the tier travels as a plain string to keep the
// dependency one-way.
type MemberScoreWriter interface {
	UpdateRiskForPatient(ctx context.Context, patientID uuid.UUID, normalizedScore float64, riskTier string) error
}
