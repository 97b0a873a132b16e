package population

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pophealth/pophealth/internal/domain/risk"
)

// -- Mock Population Repository --

type mockPopulationRepo struct {
	populations map[uuid.UUID]*Population
}

func newMockPopulationRepo() *mockPopulationRepo {
	return &mockPopulationRepo{populations: make(map[uuid.UUID]*Population)}
}

func (m *mockPopulationRepo) Create(_ context.Context, p *Population) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = time.Now()
	m.populations[p.ID] = p
	return nil
}

func (m *mockPopulationRepo) GetByID(_ context.Context, id uuid.UUID) (*Population, error) {
	p, ok := m.populations[id]
	if !ok {
		return nil, fmt.Errorf("not found")
	}
	return p, nil
}

func (m *mockPopulationRepo) List(_ context.Context, limit, offset int) ([]*Population, int, error) {
	var out []*Population
	for _, p := range m.populations {
		out = append(out, p)
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

func (m *mockMemberRepo) ListByPopulation(_ context.Context, populationID uuid.UUID, limit, offset int) ([]*Member, int, error) {
	var out []*Member
	for _, member := range m.members {
		if member.PopulationID == populationID {
			out = append(out, member)
		}
	}
	return out, len(out), nil
}

func (m *mockMemberRepo) UpdateRiskForPatient(_ context.Context, patientID uuid.UUID, normalizedScore float64, riskTier string) error {
	for _, member := range m.members {
		if member.PatientID == patientID {
			score := normalizedScore
			tier := risk.Tier(riskTier)
			member.CurrentRiskScore = &score
			member.RiskTier = &tier
		}
	}
	return nil
}

func (m *mockMemberRepo) DistributionByTier(_ context.Context, populationID uuid.UUID) (Distribution, error) {
	sums := make(map[risk.Tier]float64)
	counts := make(map[risk.Tier]int)
	for _, member := range m.members {
		if member.PopulationID != populationID || member.Status != "active" || member.RiskTier == nil {
			continue
		}
		score := 0.0
		if member.CurrentRiskScore != nil {
			score = *member.CurrentRiskScore
		}
		sums[*member.RiskTier] += score
		counts[*member.RiskTier]++
	}

	dist := make(Distribution)
	for tier, count := range counts {
		dist[tier] = TierStats{Count: count, AverageScore: sums[tier] / float64(count)}
	}
	return dist, nil
}

func (m *mockMemberRepo) HighRisk(_ context.Context, opts HighRiskOptions) ([]*Member, error) {
	var out []*Member
	for _, member := range m.members {
		if member.Status != "active" {
			continue
		}
		if opts.PopulationID != nil && member.PopulationID != *opts.PopulationID {
			continue
		}
		if opts.MinRiskScore != nil && (member.CurrentRiskScore == nil || *member.CurrentRiskScore < *opts.MinRiskScore) {
			continue
		}
		out = append(out, member)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := -1.0, -1.0
		if out[i].CurrentRiskScore != nil {
			si = *out[i].CurrentRiskScore
		}
		if out[j].CurrentRiskScore != nil {
			sj = *out[j].CurrentRiskScore
		}
		return si > sj
	})
	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestService() (*Service, *mockPopulationRepo, *mockMemberRepo) {
	populations := newMockPopulationRepo()
	members := newMockMemberRepo()
	return NewService(populations, members), populations, members
}

func addMember(t *testing.T, members *mockMemberRepo, populationID uuid.UUID, score float64, tier risk.Tier) *Member {
	t.Helper()
	m := &Member{
		PopulationID:     populationID,
		PatientID:        uuid.New(),
		Status:           "active",
		CurrentRiskScore: &score,
		RiskTier:         &tier,
	}
	if err := members.Add(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCreatePopulationRequiresName(t *testing.T) {
	svc, _, _ := newTestService()
	if err := svc.CreatePopulation(context.Background(), &Population{}); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestAddMemberUnknownPopulation(t *testing.T) {
	svc, _, _ := newTestService()
	err := svc.AddMember(context.Background(), &Member{
		PopulationID: uuid.New(),
		PatientID:    uuid.New(),
	})
	if err == nil {
		t.Error("expected error for unknown population")
	}
}

func TestRiskDistributionOmitsEmptyTiers(t *testing.T) {
	svc, _, members := newTestService()
	ctx := context.Background()

	pop := &Population{Name: "Medicare Advantage"}
	if err := svc.CreatePopulation(ctx, pop); err != nil {
		t.Fatal(err)
	}

	addMember(t, members, pop.ID, 10, risk.TierLow)
	addMember(t, members, pop.ID, 20, risk.TierLow)
	addMember(t, members, pop.ID, 95, risk.TierCritical)

	dist, err := svc.RiskDistribution(ctx, pop.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(dist) != 2 {
		t.Fatalf("distribution tiers = %d, want 2 (empty tiers omitted)", len(dist))
	}
	if dist[risk.TierLow].Count != 2 || dist[risk.TierLow].AverageScore != 15 {
		t.Errorf("low tier = %+v, want count 2 avg 15", dist[risk.TierLow])
	}
	if _, present := dist[risk.TierModerate]; present {
		t.Error("moderate tier should be absent, not zero-filled")
	}
}

func TestRiskDistributionUnknownPopulation(t *testing.T) {
	svc, _, _ := newTestService()
	if _, err := svc.RiskDistribution(context.Background(), uuid.New()); err == nil {
		t.Error("expected error for unknown population")
	}
}

func TestHighRiskPatientsOrdering(t *testing.T) {
	svc, _, members := newTestService()
	ctx := context.Background()

	pop := &Population{Name: "CHF Panel"}
	if err := svc.CreatePopulation(ctx, pop); err != nil {
		t.Fatal(err)
	}

	addMember(t, members, pop.ID, 40, risk.TierModerate)
	high := addMember(t, members, pop.ID, 92, risk.TierCritical)
	addMember(t, members, pop.ID, 78, risk.TierVeryHigh)

	min := 70.0
	got, err := svc.HighRiskPatients(ctx, HighRiskOptions{PopulationID: &pop.ID, MinRiskScore: &min})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("high-risk members = %d, want 2", len(got))
	}
	if got[0].ID != high.ID {
		t.Error("highest score should sort first")
	}
}
