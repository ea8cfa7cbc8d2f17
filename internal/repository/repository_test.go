package repository

import (
	"context"
	"os"
	"testing"

	"github.com/opensource-credit/kestrel/internal/domain"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleBorrower(email string) *domain.Borrower {
	paynet := 650
	return &domain.Borrower{
		FullName:        "Dana Price",
		Email:           email,
		MobileNo:        "555-0101",
		BusinessName:    "Price Machining",
		BusinessState:   "TX",
		YearsInBusiness: 6,
		AnnualRevenue:   1_500_000,
		AvgDailyBalance: 22_000,
		DSCRRatio:       1.4,
		GuarantorFICO:   710,
		PaynetScore:     &paynet,
		EntityType:      domain.EntityLLC,
		IndustryTier:    domain.IndustryTier2,
		IndustryNAICS:   "332710",
		IsHomeowner:     true,
		LoanAmount:      150_000,
		LTVRatio:        0.8,
		EquipmentType:   domain.EquipmentCNC,
		EquipmentAge:    2,
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		if err := repo.Ping(ctx); err != nil {
			t.Errorf("Ping failed: %v", err)
		}
	})

	t.Run("UpsertAndGetBorrower", func(t *testing.T) {
		b := sampleBorrower("dana@price-machining.com")
		id, err := repo.UpsertBorrower(ctx, b)
		if err != nil {
			t.Fatalf("UpsertBorrower failed: %v", err)
		}
		if id == 0 {
			t.Fatal("expected a generated id")
		}

		got, err := repo.GetBorrower(ctx, id)
		if err != nil {
			t.Fatalf("GetBorrower failed: %v", err)
		}
		if got.Email != b.Email {
			t.Errorf("email = %s, want %s", got.Email, b.Email)
		}
		if got.GuarantorFICO != 710 {
			t.Errorf("fico = %d, want 710", got.GuarantorFICO)
		}
		if got.PaynetScore == nil || *got.PaynetScore != 650 {
			t.Errorf("paynet = %v, want 650", got.PaynetScore)
		}
		if got.YearsSinceBankruptcyDischarge != nil {
			t.Error("nullable field should round-trip as nil")
		}
		if got.EntityType != domain.EntityLLC || !got.IsHomeowner {
			t.Errorf("categoricals wrong: %+v", got)
		}
	})

	t.Run("UpsertReplacesByEmail", func(t *testing.T) {
		b := sampleBorrower("repeat@applicant.com")
		firstID, err := repo.UpsertBorrower(ctx, b)
		if err != nil {
			t.Fatalf("first upsert failed: %v", err)
		}

		updated := sampleBorrower("repeat@applicant.com")
		updated.GuarantorFICO = 740
		updated.LoanAmount = 250_000
		secondID, err := repo.UpsertBorrower(ctx, updated)
		if err != nil {
			t.Fatalf("second upsert failed: %v", err)
		}
		if secondID != firstID {
			t.Errorf("re-application should keep id %d, got %d", firstID, secondID)
		}

		got, err := repo.GetBorrower(ctx, firstID)
		if err != nil {
			t.Fatalf("GetBorrower failed: %v", err)
		}
		if got.GuarantorFICO != 740 || got.LoanAmount != 250_000 {
			t.Errorf("record not replaced: fico=%d loan=%v", got.GuarantorFICO, got.LoanAmount)
		}
	})

	t.Run("GetBorrowerNotFound", func(t *testing.T) {
		if _, err := repo.GetBorrower(ctx, 99999); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("UpsertRequiresEmail", func(t *testing.T) {
		if _, err := repo.UpsertBorrower(ctx, &domain.Borrower{}); err == nil {
			t.Error("expected error for missing email")
		}
	})

	t.Run("CreateAndGetLender", func(t *testing.T) {
		l := &domain.Lender{
			ID:    "lender-001",
			Name:  "Summit Capital",
			Email: "ops@summitcap.example",
		}
		if err := repo.CreateLender(ctx, l); err != nil {
			t.Fatalf("CreateLender failed: %v", err)
		}

		got, err := repo.GetLender(ctx, "lender-001")
		if err != nil {
			t.Fatalf("GetLender failed: %v", err)
		}
		if got.Name != "Summit Capital" {
			t.Errorf("name = %s", got.Name)
		}

		byEmail, err := repo.GetLenderByEmail(ctx, "ops@summitcap.example")
		if err != nil || byEmail.ID != "lender-001" {
			t.Errorf("GetLenderByEmail = %+v, %v", byEmail, err)
		}
	})
}

func TestPolicyVersioning(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	maxAmt := 500_000.0
	p1 := &domain.LenderPolicy{
		ID:                 "pol-v1",
		LenderID:           "lender-001",
		VersionName:        "v1",
		Active:             true,
		ExcludedIndustries: []string{"7225"},
		RestrictedStates:   []string{"CA"},
		Programs: []domain.Program{{
			Name:          "Core",
			MinLoanAmount: 10_000,
			MaxLoanAmount: &maxAmt,
			Rules: []domain.Rule{
				{FieldName: domain.FieldGuarantorFICO, Operator: domain.OpGTE, Value: 650.0, Strict: true},
			},
		}},
	}

	if err := repo.CreatePolicyVersion(ctx, p1); err != nil {
		t.Fatalf("CreatePolicyVersion failed: %v", err)
	}

	got, err := repo.GetActivePolicy(ctx, "lender-001")
	if err != nil {
		t.Fatalf("GetActivePolicy failed: %v", err)
	}
	if got.ID != "pol-v1" || !got.Active {
		t.Errorf("active policy = %+v", got)
	}
	if len(got.Programs) != 1 || got.Programs[0].Name != "Core" {
		t.Fatalf("programs did not round-trip: %+v", got.Programs)
	}
	if got.Programs[0].MaxLoanAmount == nil || *got.Programs[0].MaxLoanAmount != 500_000 {
		t.Errorf("max loan amount = %v", got.Programs[0].MaxLoanAmount)
	}
	rule := got.Programs[0].Rules[0]
	if !rule.Strict || rule.Operator != domain.OpGTE {
		t.Errorf("rule did not round-trip: %+v", rule)
	}
	if v, ok := rule.Value.(float64); !ok || v != 650 {
		t.Errorf("rule value = %#v, want 650.0", rule.Value)
	}

	// New version deactivates the old one.
	p2 := &domain.LenderPolicy{
		ID:          "pol-v2",
		LenderID:    "lender-001",
		VersionName: "v2",
		Active:      true,
		Programs:    []domain.Program{{Name: "Expanded"}},
	}
	if err := repo.CreatePolicyVersion(ctx, p2); err != nil {
		t.Fatalf("second version failed: %v", err)
	}

	active, err := repo.GetActivePolicy(ctx, "lender-001")
	if err != nil {
		t.Fatalf("GetActivePolicy failed: %v", err)
	}
	if active.ID != "pol-v2" {
		t.Errorf("active = %s, want pol-v2", active.ID)
	}

	old, err := repo.GetPolicy(ctx, "pol-v1")
	if err != nil {
		t.Fatalf("GetPolicy failed: %v", err)
	}
	if old.Active {
		t.Error("prior version should be deactivated")
	}

	versions, err := repo.ListPolicyVersions(ctx, "lender-001")
	if err != nil {
		t.Fatalf("ListPolicyVersions failed: %v", err)
	}
	if len(versions) != 2 {
		t.Errorf("got %d versions, want 2", len(versions))
	}

	actives, err := repo.ListActivePolicies(ctx)
	if err != nil {
		t.Fatalf("ListActivePolicies failed: %v", err)
	}
	if len(actives) != 1 || actives[0].ID != "pol-v2" {
		t.Errorf("active policies = %+v", actives)
	}
}

func TestReplaceMatches(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	match := func(lender string, borrower int64, score float64) *domain.LoanMatch {
		return &domain.LoanMatch{
			LenderID:    lender,
			BorrowerID:  borrower,
			Score:       score,
			Tier:        domain.TierFor(score),
			ProgramName: "Core",
			Active:      true,
		}
	}

	seed := []*domain.LoanMatch{
		match("lender-a", 1, 61.5),
		match("lender-b", 1, 48.2),
	}
	if err := repo.ReplaceBorrowerMatches(ctx, 1, seed); err != nil {
		t.Fatalf("ReplaceBorrowerMatches failed: %v", err)
	}

	got, err := repo.ListMatchesForBorrower(ctx, 1)
	if err != nil {
		t.Fatalf("ListMatchesForBorrower failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d matches, want 2", len(got))
	}
	if got[0].Score < got[1].Score {
		t.Error("matches should be ordered best-first")
	}

	// Replace shrinks the set; stale rows must not linger.
	if err := repo.ReplaceBorrowerMatches(ctx, 1, []*domain.LoanMatch{match("lender-a", 1, 72.0)}); err != nil {
		t.Fatalf("second replace failed: %v", err)
	}
	got, _ = repo.ListMatchesForBorrower(ctx, 1)
	if len(got) != 1 || got[0].Score != 72.0 || got[0].LenderID != "lender-a" {
		t.Errorf("replace-all left wrong set: %+v", got)
	}

	// Replacing with nil clears the set.
	if err := repo.ReplaceBorrowerMatches(ctx, 1, nil); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	got, _ = repo.ListMatchesForBorrower(ctx, 1)
	if len(got) != 0 {
		t.Errorf("expected empty set, got %+v", got)
	}

	// Lender-direction replace only touches that lender's rows.
	if err := repo.ReplaceBorrowerMatches(ctx, 2, []*domain.LoanMatch{match("lender-b", 2, 55.0)}); err != nil {
		t.Fatalf("seed borrower 2 failed: %v", err)
	}
	if err := repo.ReplaceLenderMatches(ctx, "lender-a", []*domain.LoanMatch{match("lender-a", 2, 80.0)}); err != nil {
		t.Fatalf("ReplaceLenderMatches failed: %v", err)
	}
	byLender, err := repo.ListMatchesForLender(ctx, "lender-a")
	if err != nil {
		t.Fatalf("ListMatchesForLender failed: %v", err)
	}
	if len(byLender) != 1 || byLender[0].BorrowerID != 2 {
		t.Errorf("lender matches = %+v", byLender)
	}
	otherLender, _ := repo.ListMatchesForLender(ctx, "lender-b")
	if len(otherLender) != 1 {
		t.Errorf("unrelated lender rows must survive, got %+v", otherLender)
	}
}

func TestIterateBorrowers(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	profiles := []struct {
		email string
		fico  int
		state string
		loan  float64
	}{
		{"a@x.com", 600, "TX", 100_000},
		{"b@x.com", 700, "CA", 100_000},
		{"c@x.com", 750, "TX", 0},
		{"d@x.com", 780, "NY", 50_000},
	}
	for _, p := range profiles {
		b := sampleBorrower(p.email)
		b.GuarantorFICO = p.fico
		b.BusinessState = p.state
		b.LoanAmount = p.loan
		if _, err := repo.UpsertBorrower(ctx, b); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}

	collect := func(f domain.BorrowerFilter) []string {
		var emails []string
		err := repo.IterateBorrowers(ctx, f, func(b *domain.Borrower) error {
			emails = append(emails, b.Email)
			return nil
		})
		if err != nil {
			t.Fatalf("IterateBorrowers failed: %v", err)
		}
		return emails
	}

	if got := collect(domain.BorrowerFilter{}); len(got) != 4 {
		t.Errorf("unfiltered scan = %v", got)
	}

	got := collect(domain.BorrowerFilter{
		MinFICO:            650,
		ExcludeStates:      []string{"CA"},
		PositiveLoanAmount: true,
	})
	if len(got) != 1 || got[0] != "d@x.com" {
		t.Errorf("filtered scan = %v, want [d@x.com]", got)
	}

	// Early termination propagates the callback error.
	sentinel := context.Canceled
	count := 0
	err := repo.IterateBorrowers(ctx, domain.BorrowerFilter{}, func(*domain.Borrower) error {
		count++
		return sentinel
	})
	if err != sentinel || count != 1 {
		t.Errorf("iteration should stop on first error: err=%v count=%d", err, count)
	}
}
