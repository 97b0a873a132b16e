package cohort

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

// -- Mock Cohort Repository --

type mockCohortRepo struct {
	cohorts map[uuid.UUID]*Cohort
}

func newMockCohortRepo() *mockCohortRepo {
	return &mockCohortRepo{cohorts: make(map[uuid.UUID]*Cohort)}
}

func (m *mockCohortRepo) Create(_ context.Context, c *Cohort) error {
	c.ID = uuid.New()
	c.CreatedAt = time.Now()
	c.UpdatedAt = time.Now()
	m.cohorts[c.ID] = c
	return nil
}

func (m *mockCohortRepo) GetByID(_ context.Context, id uuid.UUID) (*Cohort, error) {
	c, ok := m.cohorts[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return c, nil
}

func (m *mockCohortRepo) ListByPopulation(_ context.Context, populationID uuid.UUID, limit, offset int) ([]*Cohort, int, error) {
	var out []*Cohort
	for _, c := range m.cohorts {
		if c.PopulationID == populationID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

// -- Mock Member Repository --

type mockMemberRepo struct {
	members map[uuid.UUID]*Member
}

func newMockMemberRepo() *mockMemberRepo {
	return &mockMemberRepo{members: make(map[uuid.UUID]*Member)}
}

func (m *mockMemberRepo) Add(_ context.Context, member *Member) error {
	member.ID = uuid.New()
	if member.Status == "" {
		member.Status = "active"
	}
	m.members[member.ID] = member
	return nil
}

func (m *mockMemberRepo) ListActive(_ context.Context, cohortID uuid.UUID) ([]*Member, error) {
	var out []*Member
	for _, member := range m.members {
		if member.CohortID == cohortID && member.Status == "active" {
			out = append(out, member)
		}
	}
	return out, nil
}

// -- Mock Care Gap Repository --

type mockCareGapRepo struct {
	gaps map[uuid.UUID]*CareGap
}

func newMockCareGapRepo() *mockCareGapRepo {
	return &mockCareGapRepo{gaps: make(map[uuid.UUID]*CareGap)}
}

func (m *mockCareGapRepo) Create(_ context.Context, g *CareGap) error {
	g.ID = uuid.New()
	g.IdentifiedAt = time.Now()
	g.CreatedAt = time.Now()
	g.UpdatedAt = time.Now()
	m.gaps[g.ID] = g
	return nil
}

func (m *mockCareGapRepo) GetByID(_ context.Context, id uuid.UUID) (*CareGap, error) {
	g, ok := m.gaps[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return g, nil
}

func (m *mockCareGapRepo) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*CareGap, int, error) {
	var out []*CareGap
	for _, g := range m.gaps {
		if g.PatientID == patientID {
			out = append(out, g)
		}
	}
	return out, len(out), nil
}

func (m *mockCareGapRepo) Update(_ context.Context, g *CareGap) error {
	if _, ok := m.gaps[g.ID]; !ok {
		return fmt.Errorf("not found")
	}
	m.gaps[g.ID] = g
	return nil
}

func newTestService() (*Service, *mockCohortRepo, *mockMemberRepo, *mockCareGapRepo) {
	cohorts := newMockCohortRepo()
	members := newMockMemberRepo()
	gaps := newMockCareGapRepo()
	return NewService(cohorts, members, gaps), cohorts, members, gaps
}

func mustCreateCohort(t *testing.T, svc *Service) *Cohort {
	t.Helper()
	c := &Cohort{PopulationID: uuid.New(), Name: "High-risk CHF"}
	if err := svc.CreateCohort(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

func addSnapshotMember(t *testing.T, members *mockMemberRepo, cohortID uuid.UUID, score *float64) {
	t.Helper()
	if err := members.Add(context.Background(), &Member{
		CohortID:  cohortID,
		PatientID: uuid.New(),
		RiskScore: score,
	}); err != nil {
		t.Fatal(err)
	}
}

func f(v float64) *float64 { return &v }

func TestCreateCohortValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	if err := svc.CreateCohort(context.Background(), &Cohort{Name: "x"}); err != ErrInvalidInput {
		t.Errorf("err = %v, want ErrInvalidInput for missing population", err)
	}
	if err := svc.CreateCohort(context.Background(), &Cohort{PopulationID: uuid.New()}); err != ErrInvalidInput {
		t.Errorf("err = %v, want ErrInvalidInput for missing name", err)
	}
}

func TestStratifyZeroFillsAllTiers(t *testing.T) {
	svc, _, members, _ := newTestService()
	c := mustCreateCohort(t, svc)

	addSnapshotMember(t, members, c.ID, f(10))
	addSnapshotMember(t, members, c.ID, f(30))
	addSnapshotMember(t, members, c.ID, f(95))
	// Member with no snapshot score counts as 0 and lands in low.
	addSnapshotMember(t, members, c.ID, nil)

	strat, err := svc.Stratify(context.Background(), c.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(strat) != 5 {
		t.Fatalf("stratification tiers = %d, want all 5 present", len(strat))
	}
	if strat[risk.TierLow] != 2 {
		t.Errorf("low = %d, want 2", strat[risk.TierLow])
	}
	if strat[risk.TierModerate] != 1 {
		t.Errorf("moderate = %d, want 1", strat[risk.TierModerate])
	}
	if strat[risk.TierHigh] != 0 || strat[risk.TierVeryHigh] != 0 {
		t.Errorf("empty tiers should be zero-filled, got high=%d very_high=%d",
			strat[risk.TierHigh], strat[risk.TierVeryHigh])
	}
	if strat[risk.TierCritical] != 1 {
		t.Errorf("critical = %d, want 1", strat[risk.TierCritical])
	}
}

func TestStratifyUnknownCohort(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Stratify(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown cohort")
	}
}

func TestOpenCareGapDefaults(t *testing.T) {
	svc, _, _, _ := newTestService()

	g := &CareGap{
		PatientID: uuid.New(),
		GapType:   "screening",
		Title:     "Mammogram overdue",
	}
	if err := svc.OpenCareGap(context.Background(), g); err != nil {
		t.Fatal(err)
	}
	if g.Status != "open" || g.Priority != "medium" {
		t.Errorf("status/priority = %s/%s, want open/medium", g.Status, g.Priority)
	}
}

func TestResolveCareGap(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	g := &CareGap{PatientID: uuid.New(), GapType: "screening", Title: "Mammogram overdue"}
	if err := svc.OpenCareGap(ctx, g); err != nil {
		t.Fatal(err)
	}

	resolved, err := svc.ResolveCareGap(ctx, g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != "resolved" || resolved.ResolvedAt == nil {
		t.Errorf("resolved gap = %s/%v", resolved.Status, resolved.ResolvedAt)
	}

	// Resolving twice is a conflict.
	if _, err := svc.ResolveCareGap(ctx, g.ID); err != ErrGapResolved {
		t.Errorf("second resolve err = %v, want ErrGapResolved", err)
	}
}
