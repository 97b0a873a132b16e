package risk

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pophealth/pophealth/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type scoreRepoPG struct{ pool *pgxpool.Pool }

func NewScoreRepoPG(pool *pgxpool.Pool) ScoreRepository {
	return &scoreRepoPG{pool: pool}
}

func (r *scoreRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const scoreCols = `id, patient_id, fhir_patient_ref, model_name, model_version, score_type,
	raw_score, normalized_score, percentile, risk_tier, risk_factors,
	clinical_factors, social_factors, predicted_cost, predicted_events,
	effective_date, is_active, created_at, updated_at`

func (r *scoreRepoPG) scanRow(row pgx.Row) (*Score, error) {
	var s Score
	err := row.Scan(&s.ID, &s.PatientID, &s.FHIRPatientRef, &s.ModelName, &s.ModelVersion, &s.ScoreType,
		&s.RawScore, &s.NormalizedScore, &s.Percentile, &s.RiskTier, &s.RiskFactors,
		&s.ClinicalFactors, &s.SocialFactors, &s.PredictedCost, &s.PredictedEvents,
		&s.EffectiveDate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *scoreRepoPG) Create(ctx context.Context, s *Score) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO risk_score (id, patient_id, fhir_patient_ref, model_name, model_version, score_type,
			raw_score, normalized_score, percentile, risk_tier, risk_factors,
			clinical_factors, social_factors, predicted_cost, predicted_events,
			effective_date, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,NOW(),$16)`,
		s.ID, s.PatientID, s.FHIRPatientRef, s.ModelName, s.ModelVersion, s.ScoreType,
		s.RawScore, s.NormalizedScore, s.Percentile, s.RiskTier, s.RiskFactors,
		s.ClinicalFactors, s.SocialFactors, s.PredictedCost, s.PredictedEvents,
		s.IsActive)
	return err
}

func (r *scoreRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Score, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx, `SELECT `+scoreCols+` FROM risk_score WHERE id = $1`, id))
}

func (r *scoreRepoPG) DeactivateActive(ctx context.Context, patientID uuid.UUID, modelName string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE risk_score SET is_active = FALSE, updated_at = NOW()
		WHERE patient_id = $1 AND model_name = $2 AND is_active`,
		patientID, modelName)
	return err
}

func (r *scoreRepoPG) ListActiveByPatient(ctx context.Context, patientID uuid.UUID) ([]*Score, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+scoreCols+` FROM risk_score
		WHERE patient_id = $1 AND is_active
		ORDER BY effective_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scores []*Score
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, s)
	}
	return scores, rows.Err()
}

func (r *scoreRepoPG) CountActiveForModel(ctx context.Context, modelName string) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM risk_score WHERE model_name = $1 AND is_active`,
		modelName).Scan(&count)
	return count, err
}

func (r *scoreRepoPG) CountActiveBelow(ctx context.Context, modelName string, normalizedScore float64, excludePatient uuid.UUID) (int, error) {
	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM risk_score
		WHERE model_name = $1 AND is_active AND normalized_score < $2 AND patient_id <> $3`,
		modelName, normalizedScore, excludePatient).Scan(&count)
	return count, err
}

func (r *scoreRepoPG) Search(ctx context.Context, f Filters, limit, offset int) ([]*Score, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.PatientID != nil {
		where += " AND patient_id = " + arg(*f.PatientID)
	}
	if f.ModelName != "" {
		where += " AND model_name = " + arg(f.ModelName)
	}
	if f.ScoreType != "" {
		where += " AND score_type = " + arg(f.ScoreType)
	}
	if f.RiskTier != "" {
		where += " AND risk_tier = " + arg(f.RiskTier)
	}
	if f.IsActive != nil {
		where += " AND is_active = " + arg(*f.IsActive)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM risk_score`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + scoreCols + ` FROM risk_score` + where +
		` ORDER BY effective_date DESC LIMIT ` + arg(limit) + ` OFFSET ` + arg(offset)
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var scores []*Score
	for rows.Next() {
		s, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		scores = append(scores, s)
	}
	return scores, total, rows.Err()
}
