package matcher

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/opensource-credit/kestrel/internal/bus"
	"github.com/opensource-credit/kestrel/internal/cache"
	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/opensource-credit/kestrel/internal/engine"
	"github.com/opensource-credit/kestrel/internal/repository"
)

func newTestService(t *testing.T) (*Service, domain.Repository) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-matcher-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: tmpPath,
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	svc := NewService(repo, cache.NewLRUCache(100), engine.New(nil), nil, nil)
	return svc, repo
}

func seedBorrower(t *testing.T, repo domain.Repository, email, state string, fico int, loan float64) int64 {
	t.Helper()
	id, err := repo.UpsertBorrower(context.Background(), &domain.Borrower{
		FullName:        "Test Borrower",
		Email:           email,
		BusinessState:   state,
		GuarantorFICO:   fico,
		AnnualRevenue:   2_000_000,
		YearsInBusiness: 5,
		LoanAmount:      loan,
	})
	if err != nil {
		t.Fatalf("seed borrower failed: %v", err)
	}
	return id
}

func seedPolicy(t *testing.T, repo domain.Repository, id, lenderID string, programs ...domain.Program) {
	t.Helper()
	err := repo.CreatePolicyVersion(context.Background(), &domain.LenderPolicy{
		ID:       id,
		LenderID: lenderID,
		Active:   true,
		Programs: programs,
	})
	if err != nil {
		t.Fatalf("seed policy failed: %v", err)
	}
}

func TestRecomputeBorrower(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	borrowerID := seedBorrower(t, repo, "b@x.com", "TX", 750, 100_000)
	seedPolicy(t, repo, "pol-a", "lender-a", domain.Program{Name: "Core"})
	seedPolicy(t, repo, "pol-b", "lender-b", domain.Program{
		Name: "Prime Only",
		Rules: []domain.Rule{
			{FieldName: domain.FieldGuarantorFICO, Operator: domain.OpGTE, Value: 780.0, Strict: true},
		},
	})

	if err := svc.RecomputeBorrower(ctx, borrowerID); err != nil {
		t.Fatalf("RecomputeBorrower failed: %v", err)
	}

	matches, err := repo.ListMatchesForBorrower(ctx, borrowerID)
	if err != nil {
		t.Fatalf("ListMatchesForBorrower failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (strict FICO 780 gate excludes lender-b)", len(matches))
	}
	if matches[0].LenderID != "lender-a" || matches[0].Score != 60.33 {
		t.Errorf("match = %+v", matches[0])
	}

	// Idempotence: same inputs, same resulting set.
	if err := svc.RecomputeBorrower(ctx, borrowerID); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	again, _ := repo.ListMatchesForBorrower(ctx, borrowerID)
	if len(again) != 1 || again[0].Score != matches[0].Score || again[0].LenderID != matches[0].LenderID {
		t.Errorf("recompute not idempotent: %+v vs %+v", matches, again)
	}
}

func TestRecomputeBorrowerMissingBorrower(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.RecomputeBorrower(context.Background(), 4242); err == nil {
		t.Error("expected error for unknown borrower")
	}
}

func TestRecomputePolicy(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	strong := seedBorrower(t, repo, "strong@x.com", "TX", 760, 100_000)
	seedBorrower(t, repo, "weak@x.com", "TX", 400, 100_000)      // below prefilter and base score floor
	seedBorrower(t, repo, "blocked@x.com", "CA", 760, 100_000)   // restricted state
	seedBorrower(t, repo, "noloan@x.com", "TX", 760, 0)          // no requested amount

	err := repo.CreatePolicyVersion(ctx, &domain.LenderPolicy{
		ID:               "pol-1",
		LenderID:         "lender-1",
		Active:           true,
		RestrictedStates: []string{"CA"},
		Programs: []domain.Program{{
			Name: "Core",
			Rules: []domain.Rule{
				{FieldName: domain.FieldGuarantorFICO, Operator: domain.OpGTE, Value: 700.0, Strict: true},
			},
		}},
	})
	if err != nil {
		t.Fatalf("seed policy failed: %v", err)
	}

	if err := svc.RecomputePolicy(ctx, "lender-1", "pol-1"); err != nil {
		t.Fatalf("RecomputePolicy failed: %v", err)
	}

	matches, err := repo.ListMatchesForLender(ctx, "lender-1")
	if err != nil {
		t.Fatalf("ListMatchesForLender failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].BorrowerID != strong {
		t.Errorf("matched borrower %d, want %d", matches[0].BorrowerID, strong)
	}

	// A replacement version with an empty program list clears the set.
	err = repo.CreatePolicyVersion(ctx, &domain.LenderPolicy{
		ID:       "pol-2",
		LenderID: "lender-1",
		Active:   true,
	})
	if err != nil {
		t.Fatalf("second version failed: %v", err)
	}
	if err := svc.RecomputePolicy(ctx, "lender-1", "pol-2"); err != nil {
		t.Fatalf("second recompute failed: %v", err)
	}
	matches, _ = repo.ListMatchesForLender(ctx, "lender-1")
	if len(matches) != 0 {
		t.Errorf("expected cleared set, got %+v", matches)
	}
}

func TestActivePoliciesCaching(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	seedPolicy(t, repo, "pol-1", "lender-1", domain.Program{})

	policies, err := svc.ActivePolicies(ctx)
	if err != nil {
		t.Fatalf("ActivePolicies failed: %v", err)
	}
	if len(policies) != 1 {
		t.Fatalf("got %d policies, want 1", len(policies))
	}

	// A write the cache has not seen yet stays invisible until invalidation.
	seedPolicy(t, repo, "pol-2", "lender-2", domain.Program{})

	cached, _ := svc.ActivePolicies(ctx)
	if len(cached) != 1 {
		t.Errorf("expected cached set of 1, got %d", len(cached))
	}

	svc.InvalidateActivePolicies(ctx)
	fresh, _ := svc.ActivePolicies(ctx)
	if len(fresh) != 2 {
		t.Errorf("expected fresh set of 2, got %d", len(fresh))
	}
}

func TestKeyedMutex(t *testing.T) {
	km := newKeyedMutex()

	var mu sync.Mutex
	counts := map[string]int{}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		key := "a"
		if i%2 == 0 {
			key = "b"
		}
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			km.Lock(k)
			defer km.Unlock(k)
			mu.Lock()
			counts[k]++
			mu.Unlock()
		}(key)
	}
	wg.Wait()

	if counts["a"] != 25 || counts["b"] != 25 {
		t.Errorf("counts = %v", counts)
	}
	if len(km.locks) != 0 {
		t.Errorf("idle locks should be released, %d remain", len(km.locks))
	}
}

func TestWorkerProcessesEvents(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	borrowerID := seedBorrower(t, repo, "evt@x.com", "TX", 750, 100_000)
	seedPolicy(t, repo, "pol-1", "lender-1", domain.Program{Name: "Core"})

	b := bus.NewChannelBus(10)
	defer b.Close()

	w := NewWorker(b, svc, domain.MatcherConfig{Workers: 2, RecomputeTimeout: 10}, nil)
	if err := w.Start(); err != nil {
		t.Fatalf("worker start failed: %v", err)
	}
	defer w.Stop()

	payload, _ := json.Marshal(domain.MatchBorrowerEvent{BorrowerID: borrowerID})
	if err := b.Publish(ctx, domain.TopicMatchBorrower, payload); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		matches, err := repo.ListMatchesForBorrower(ctx, borrowerID)
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		if len(matches) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timeout waiting for worker to write matches")
}
