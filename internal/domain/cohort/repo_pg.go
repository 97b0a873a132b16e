package cohort

import (
	"context"

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

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type cohortRepoPG struct{ pool *pgxpool.Pool }

func NewCohortRepoPG(pool *pgxpool.Pool) CohortRepository {
	return &cohortRepoPG{pool: pool}
}

const cohortCols = `id, population_id, name, description, cohort_type, risk_level, fhir_group_id, created_at, updated_at`

func (r *cohortRepoPG) scanRow(row pgx.Row) (*Cohort, error) {
	var c Cohort
	err := row.Scan(&c.ID, &c.PopulationID, &c.Name, &c.Description, &c.CohortType,
		&c.RiskLevel, &c.FHIRGroupID, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *cohortRepoPG) Create(ctx context.Context, c *Cohort) error {
	c.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cohort (id, population_id, name, description, cohort_type, risk_level, fhir_group_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.PopulationID, c.Name, c.Description, c.CohortType, c.RiskLevel, c.FHIRGroupID)
	return err
}

func (r *cohortRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Cohort, error) {
	return r.scanRow(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+cohortCols+` FROM cohort WHERE id = $1`, id))
}

func (r *cohortRepoPG) ListByPopulation(ctx context.Context, populationID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM cohort WHERE population_id = $1`, populationID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+cohortCols+` FROM cohort
		WHERE population_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		populationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*Cohort
	for rows.Next() {
		c, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

type memberRepoPG struct{ pool *pgxpool.Pool }

func NewMemberRepoPG(pool *pgxpool.Pool) MemberRepository {
	return &memberRepoPG{pool: pool}
}

const memberCols = `id, cohort_id, patient_id, fhir_patient_ref, risk_score, status, created_at, updated_at`

func (r *memberRepoPG) scanRow(row pgx.Row) (*Member, error) {
	var m Member
	err := row.Scan(&m.ID, &m.CohortID, &m.PatientID, &m.FHIRPatientRef,
		&m.RiskScore, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *memberRepoPG) Add(ctx context.Context, m *Member) error {
	m.ID = uuid.New()
	if m.Status == "" {
		m.Status = "active"
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO cohort_member (id, cohort_id, patient_id, fhir_patient_ref, risk_score, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		m.ID, m.CohortID, m.PatientID, m.FHIRPatientRef, m.RiskScore, m.Status)
	return err
}

func (r *memberRepoPG) ListActive(ctx context.Context, cohortID uuid.UUID) ([]*Member, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+memberCols+` FROM cohort_member
		WHERE cohort_id = $1 AND status = 'active'`, cohortID)
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

type careGapRepoPG struct{ pool *pgxpool.Pool }

func NewCareGapRepoPG(pool *pgxpool.Pool) CareGapRepository {
	return &careGapRepoPG{pool: pool}
}

const careGapCols = `id, patient_id, cohort_id, gap_type, title, description, priority, status,
	quality_measure_id, recommended_action, identified_at, resolved_at, created_at, updated_at`

func (r *careGapRepoPG) scanRow(row pgx.Row) (*CareGap, error) {
	var g CareGap
	err := row.Scan(&g.ID, &g.PatientID, &g.CohortID, &g.GapType, &g.Title, &g.Description,
		&g.Priority, &g.Status, &g.QualityMeasureID, &g.RecommendedAction,
		&g.IdentifiedAt, &g.ResolvedAt, &g.CreatedAt, &g.UpdatedAt)
	return &g, err
}

func (r *careGapRepoPG) Create(ctx context.Context, g *CareGap) error {
	g.ID = uuid.New()
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO care_gap (id, patient_id, cohort_id, gap_type, title, description, priority, status,
			quality_measure_id, recommended_action, identified_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NOW())`,
		g.ID, g.PatientID, g.CohortID, g.GapType, g.Title, g.Description, g.Priority, g.Status,
		g.QualityMeasureID, g.RecommendedAction)
	return err
}

func (r *careGapRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*CareGap, error) {
	return r.scanRow(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+careGapCols+` FROM care_gap WHERE id = $1`, id))
}

func (r *careGapRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*CareGap, int, error) {
	var total int
	if err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM care_gap WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+careGapCols+` FROM care_gap
		WHERE patient_id = $1 ORDER BY identified_at DESC LIMIT $2 OFFSET $3`,
		patientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*CareGap
	for rows.Next() {
		g, err := r.scanRow(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, g)
	}
	return items, total, rows.Err()
}

func (r *careGapRepoPG) Update(ctx context.Context, g *CareGap) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `
		UPDATE care_gap SET status=$2, priority=$3, resolved_at=$4, updated_at=NOW()
		WHERE id = $1`,
		g.ID, g.Status, g.Priority, g.ResolvedAt)
	return err
}
