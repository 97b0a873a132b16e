package population

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pophealth/pophealth/internal/domain/risk"
	"github.com/pophealth/pophealth/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type populationRepoPG struct{ pool *pgxpool.Pool }

func NewPopulationRepoPG(pool *pgxpool.Pool) PopulationRepository {
	return &populationRepoPG{pool: pool}
}

func (r *populationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const populationCols = `id, name, description, fhir_group_id, created_at, updated_at`

func (r *populationRepoPG) scanRow(row pgx.Row) (*Population, error) {
	var p Population
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.FHIRGroupID, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *populationRepoPG) Create(ctx context.Context, p *Population) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO population (id, name, description, fhir_group_id)
		VALUES ($1,$2,$3,$4)`,
		p.ID, p.Name, p.Description, p.FHIRGroupID)
	return err
}

func (r *populationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Population, error) {
	return r.scanRow(r.conn(ctx).QueryRow(ctx,
		`SELECT `+populationCols+` FROM population WHERE id = $1`, id))
}

func (r *populationRepoPG) List(ctx context.Context, limit, offset int) ([]*Population, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM population`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+populationCols+` FROM population ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Population
	for rows.Next() {
		p, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

func (r *memberRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const memberCols = `id, population_id, patient_id, fhir_patient_ref, status,
	current_risk_score, risk_tier, enrolled_at, created_at, updated_at`

func (r *memberRepoPG) scanRow(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.PopulationID, &m.PatientID, &m.FHIRPatientRef, &m.Status,
		&m.CurrentRiskScore, &m.RiskTier, &m.EnrolledAt, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *memberRepoPG) Add(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	if m.Status == "" {
		m.Status = "active"
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO population_member (id, population_id, patient_id, fhir_patient_ref, status,
			current_risk_score, risk_tier, enrolled_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
		m.ID, m.PopulationID, m.PatientID, m.FHIRPatientRef, m.Status,
		m.CurrentRiskScore, m.RiskTier)
	return err
}

func (r *memberRepoPG) ListByPopulation(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Member, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM population_member WHERE population_id = $1`, populationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+memberCols+` FROM population_member
		WHERE population_id = $1 ORDER BY enrolled_at DESC LIMIT $2 OFFSET $3`,
		populationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, m)
	}
	return items, total, rows.Err()
}

func (r *memberRepoPG) UpdateRiskForPatient(ctx context.Context, patientID uuid.UUID, normalizedScore float64, riskTier string) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE population_member
		SET current_risk_score = $2, risk_tier = $3, updated_at = NOW()
		WHERE patient_id = $1`,
		patientID, normalizedScore, riskTier)
	return err
}

func (r *memberRepoPG) DistributionByTier(ctx context.Context, populationID uuid.UUID) (Distribution, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT risk_tier, COUNT(*), AVG(COALESCE(current_risk_score, 0))
		FROM population_member
		WHERE population_id = $1 AND status = 'active' AND risk_tier IS NOT NULL
		GROUP BY risk_tier`, populationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dist := make(Distribution)
	for rows.Next() {
		var tier risk.Tier
		var count int
		var avg float64
		if err := rows.Scan(&tier, &count, &avg); err != nil {
			return nil, err
		}
		dist[tier] = TierStats{Count: count, AverageScore: avg}
	}
	return dist, rows.Err()
}

func (r *memberRepoPG) HighRisk(ctx context.Context, opts HighRiskOptions) ([]*Member, error) {
	where := ` WHERE status = 'active'`
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.PopulationID != nil {
		where += ` AND population_id = ` + arg(*opts.PopulationID)
	}
	if opts.MinRiskScore != nil {
		where += ` AND current_risk_score >= ` + arg(*opts.MinRiskScore)
	}
	if len(opts.RiskTiers) > 0 {
		tiers := make([]string, 0, len(opts.RiskTiers))
		for _, t := range opts.RiskTiers {
			tiers = append(tiers, string(t))
		}
		where += ` AND risk_tier = ANY(` + arg(tiers) + `)`
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+memberCols+` FROM population_member`+where+
			` ORDER BY current_risk_score DESC NULLS LAST LIMIT `+arg(limit),
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Member
	for rows.Next() {
		m, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
