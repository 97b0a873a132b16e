package quality

import (
	"context"
	"fmt"
	"strings"

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

type measureRepoPG struct{ pool *pgxpool.Pool }

func NewMeasureRepoPG(pool *pgxpool.Pool) MeasureRepository {
	return &measureRepoPG{pool: pool}
}

const measureCols = `id, measure_id, name, description, measure_type, category, steward, domain,
	fhir_measure_id, fhir_version, numerator_criteria, denominator_criteria, exclusion_criteria,
	target_rate, reporting_year, is_active, created_at, updated_at`

func scanMeasure(row pgx.Row) (*QualityMeasure, error) {
	var m QualityMeasure
	err := row.Scan(&m.ID, &m.MeasureID, &m.Name, &m.Description, &m.MeasureType, &m.Category,
		&m.Steward, &m.Domain, &m.FHIRMeasureID, &m.FHIRVersion,
		&m.NumeratorCriteria, &m.DenominatorCriteria, &m.ExclusionCriteria,
		&m.TargetRate, &m.ReportingYear, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return &m, err
}

func (r *measureRepoPG) Create(ctx context.Context, m *QualityMeasure) error {
	m.ID = uuid.New()
	m.IsActive = true
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO quality_measure (id, measure_id, name, description, measure_type, category,
			steward, domain, fhir_measure_id, fhir_version,
			numerator_criteria, denominator_criteria, exclusion_criteria,
			target_rate, reporting_year, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		m.ID, m.MeasureID, m.Name, m.Description, m.MeasureType, m.Category,
		m.Steward, m.Domain, m.FHIRMeasureID, m.FHIRVersion,
		m.NumeratorCriteria, m.DenominatorCriteria, m.ExclusionCriteria,
		m.TargetRate, m.ReportingYear, m.IsActive)
	return err
}

func (r *measureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*QualityMeasure, error) {
	return scanMeasure(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+measureCols+` FROM quality_measure WHERE id = $1`, id))
}

func (r *measureRepoPG) GetByMeasureID(ctx context.Context, measureID string) (*QualityMeasure, error) {
	return scanMeasure(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+measureCols+` FROM quality_measure WHERE measure_id = $1`, measureID))
}

func (r *measureRepoPG) List(ctx context.Context, f MeasureFilters) ([]*QualityMeasure, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Category != "" {
		where = append(where, "category = "+arg(f.Category))
	}
	if f.MeasureType != "" {
		where = append(where, "measure_type = "+arg(f.MeasureType))
	}
	if f.ReportingYear != nil {
		where = append(where, "reporting_year = "+arg(*f.ReportingYear))
	}
	if f.IsActive != nil {
		where = append(where, "is_active = "+arg(*f.IsActive))
	}
	if f.Search != "" {
		p := arg("%" + f.Search + "%")
		where = append(where, fmt.Sprintf("(name ILIKE %s OR measure_id ILIKE %s OR description ILIKE %s)", p, p, p))
	}

	query := `SELECT ` + measureCols + ` FROM quality_measure`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY category ASC, measure_id ASC"

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*QualityMeasure
	for rows.Next() {
		m, err := scanMeasure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *measureRepoPG) UpsertByMeasureID(ctx context.Context, m *QualityMeasure) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	m.IsActive = true
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO quality_measure (id, measure_id, name, description, measure_type, category,
			steward, domain, fhir_measure_id, fhir_version,
			numerator_criteria, denominator_criteria, exclusion_criteria,
			target_rate, reporting_year, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (measure_id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			measure_type = EXCLUDED.measure_type,
			category = EXCLUDED.category,
			steward = EXCLUDED.steward,
			domain = EXCLUDED.domain,
			numerator_criteria = EXCLUDED.numerator_criteria,
			denominator_criteria = EXCLUDED.denominator_criteria,
			target_rate = EXCLUDED.target_rate,
			reporting_year = EXCLUDED.reporting_year,
			updated_at = NOW()`,
		m.ID, m.MeasureID, m.Name, m.Description, m.MeasureType, m.Category,
		m.Steward, m.Domain, m.FHIRMeasureID, m.FHIRVersion,
		m.NumeratorCriteria, m.DenominatorCriteria, m.ExclusionCriteria,
		m.TargetRate, m.ReportingYear, m.IsActive)
	return err
}

type patientMeasureRepoPG struct{ pool *pgxpool.Pool }

func NewPatientMeasureRepoPG(pool *pgxpool.Pool) PatientMeasureRepository {
	return &patientMeasureRepoPG{pool: pool}
}

const patientMeasureCols = `id, patient_id, quality_measure_id, measure_period, fhir_patient_ref,
	in_denominator, in_numerator, is_excluded, exclusion_reason, status,
	due_date, completed_date, evidence_ref, notes, created_at, updated_at`

func scanPatientMeasure(row pgx.Row) (*PatientQualityMeasure, error) {
	var pm PatientQualityMeasure
	err := row.Scan(&pm.ID, &pm.PatientID, &pm.QualityMeasureID, &pm.MeasurePeriod, &pm.FHIRPatientRef,
		&pm.InDenominator, &pm.InNumerator, &pm.IsExcluded, &pm.ExclusionReason, &pm.Status,
		&pm.DueDate, &pm.CompletedDate, &pm.EvidenceRef, &pm.Notes, &pm.CreatedAt, &pm.UpdatedAt)
	return &pm, err
}

func (r *patientMeasureRepoPG) Upsert(ctx context.Context, pm *PatientQualityMeasure) error {
	if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	if pm.Status == "" {
		pm.Status = StatusPending
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO patient_quality_measure (id, patient_id, quality_measure_id, measure_period,
			fhir_patient_ref, in_denominator, in_numerator, is_excluded, exclusion_reason,
			status, due_date, completed_date, evidence_ref, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (patient_id, quality_measure_id, measure_period) DO UPDATE SET
			fhir_patient_ref = EXCLUDED.fhir_patient_ref,
			in_denominator = EXCLUDED.in_denominator,
			in_numerator = EXCLUDED.in_numerator,
			is_excluded = EXCLUDED.is_excluded,
			exclusion_reason = EXCLUDED.exclusion_reason,
			status = EXCLUDED.status,
			due_date = EXCLUDED.due_date,
			completed_date = EXCLUDED.completed_date,
			evidence_ref = EXCLUDED.evidence_ref,
			notes = EXCLUDED.notes,
			updated_at = NOW()`,
		pm.ID, pm.PatientID, pm.QualityMeasureID, pm.MeasurePeriod,
		pm.FHIRPatientRef, pm.InDenominator, pm.InNumerator, pm.IsExcluded, pm.ExclusionReason,
		pm.Status, pm.DueDate, pm.CompletedDate, pm.EvidenceRef, pm.Notes)
	return err
}

func (r *patientMeasureRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error) {
	query := `
		SELECT ` + prefixCols("pm", patientMeasureCols) + `
		FROM patient_quality_measure pm
		JOIN quality_measure qm ON qm.id = pm.quality_measure_id
		WHERE pm.patient_id = $1`
	args := []interface{}{patientID}
	if measurePeriod != "" {
		query += ` AND pm.measure_period = $2`
		args = append(args, measurePeriod)
	}
	query += ` ORDER BY qm.domain ASC`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PatientQualityMeasure
	for rows.Next() {
		pm, err := scanPatientMeasure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pm)
	}
	return items, rows.Err()
}

func (r *patientMeasureRepoPG) ListForMeasure(ctx context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]*PatientQualityMeasure, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+patientMeasureCols+` FROM patient_quality_measure
		WHERE quality_measure_id = $1 AND measure_period = $2`,
		qualityMeasureID, measurePeriod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PatientQualityMeasure
	for rows.Next() {
		pm, err := scanPatientMeasure(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, pm)
	}
	return items, rows.Err()
}

func (r *patientMeasureRepoPG) ListGaps(ctx context.Context, qualityMeasureID uuid.UUID, measurePeriod string) ([]GapPatient, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT patient_id, due_date FROM patient_quality_measure
		WHERE quality_measure_id = $1 AND measure_period = $2
		  AND in_denominator AND NOT in_numerator AND NOT is_excluded`,
		qualityMeasureID, measurePeriod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []GapPatient
	for rows.Next() {
		var g GapPatient
		if err := rows.Scan(&g.PatientID, &g.DueDate); err != nil {
			return nil, err
		}
		items = append(items, g)
	}
	return items, rows.Err()
}

type populationMeasureRepoPG struct{ pool *pgxpool.Pool }

func NewPopulationMeasureRepoPG(pool *pgxpool.Pool) PopulationMeasureRepository {
	return &populationMeasureRepoPG{pool: pool}
}

const populationMeasureCols = `id, population_id, quality_measure_id, measure_period,
	numerator, denominator, exclusions, performance_rate, star_rating, benchmark_percentile,
	calculated_at, updated_at`

func (r *populationMeasureRepoPG) Upsert(ctx context.Context, pm *PopulationQualityMeasure) error {
	if pm.ID == uuid.Nil {
		pm.ID = uuid.New()
	}
	_, err := conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO population_quality_measure (id, population_id, quality_measure_id, measure_period,
			numerator, denominator, exclusions, performance_rate, star_rating)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (population_id, quality_measure_id, measure_period) DO UPDATE SET
			numerator = EXCLUDED.numerator,
			denominator = EXCLUDED.denominator,
			exclusions = EXCLUDED.exclusions,
			performance_rate = EXCLUDED.performance_rate,
			star_rating = EXCLUDED.star_rating,
			calculated_at = NOW(),
			updated_at = NOW()`,
		pm.ID, pm.PopulationID, pm.QualityMeasureID, pm.MeasurePeriod,
		pm.Numerator, pm.Denominator, pm.Exclusions, pm.PerformanceRate, pm.StarRating)
	return err
}

func (r *populationMeasureRepoPG) scanDetail(row pgx.Row) (*PopulationMeasureDetail, error) {
	var d PopulationMeasureDetail
	err := row.Scan(
		&d.ID, &d.PopulationID, &d.QualityMeasureID, &d.MeasurePeriod,
		&d.Numerator, &d.Denominator, &d.Exclusions, &d.PerformanceRate,
		&d.StarRating, &d.BenchmarkPercentile, &d.CalculatedAt, &d.UpdatedAt,
		&d.Measure.ID, &d.Measure.MeasureID, &d.Measure.Name, &d.Measure.Description,
		&d.Measure.MeasureType, &d.Measure.Category, &d.Measure.Steward, &d.Measure.Domain,
		&d.Measure.FHIRMeasureID, &d.Measure.FHIRVersion,
		&d.Measure.NumeratorCriteria, &d.Measure.DenominatorCriteria, &d.Measure.ExclusionCriteria,
		&d.Measure.TargetRate, &d.Measure.ReportingYear, &d.Measure.IsActive,
		&d.Measure.CreatedAt, &d.Measure.UpdatedAt)
	return &d, err
}

func (r *populationMeasureRepoPG) detailQuery() string {
	return `
		SELECT ` + prefixCols("pm", populationMeasureCols) + `, ` + prefixCols("qm", measureCols) + `
		FROM population_quality_measure pm
		JOIN quality_measure qm ON qm.id = pm.quality_measure_id`
}

func (r *populationMeasureRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PopulationMeasureDetail, error) {
	return r.scanDetail(conn(ctx, r.pool).QueryRow(ctx,
		r.detailQuery()+` WHERE pm.id = $1`, id))
}

func (r *populationMeasureRepoPG) ListByPopulation(ctx context.Context, populationID uuid.UUID, measurePeriod string) ([]*PopulationMeasureDetail, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		r.detailQuery()+` WHERE pm.population_id = $1 AND pm.measure_period = $2 ORDER BY qm.domain ASC`,
		populationID, measurePeriod)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*PopulationMeasureDetail
	for rows.Next() {
		d, err := r.scanDetail(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

// prefixCols qualifies each column in a comma-separated list with a table
// alias, for join queries that reuse the shared column lists.
func prefixCols(alias, cols string) string {
	parts := strings.Split(cols, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
