// Package matcher orchestrates match recomputation: it feeds borrowers and
// policies through the scoring engine and atomically replaces the affected
// entity's match set. Recomputes are serialized per entity so concurrent
// jobs for the same borrower or lender cannot interleave their
// delete-then-insert windows.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/opensource-credit/kestrel/internal/domain"
	"github.com/opensource-credit/kestrel/internal/engine"
	"github.com/opensource-credit/kestrel/internal/metrics"
)

// ficoPrefilterMargin widens the FICO prefilter below the strictest
// threshold so soft-penalty tolerance cannot exclude viable candidates.
const ficoPrefilterMargin = 50

// Service runs recompute jobs against the repository.
type Service struct {
	repo    domain.Repository
	cache   domain.Cache
	engine  *engine.Engine
	metrics *metrics.Collector
	logger  *slog.Logger
	locks   *keyedMutex
}

// NewService creates a matcher service. cache and collector may be nil.
func NewService(repo domain.Repository, cache domain.Cache, eng *engine.Engine, collector *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		cache:   cache,
		engine:  eng,
		metrics: collector,
		logger:  logger,
		locks:   newKeyedMutex(),
	}
}

// ActivePolicies returns every active policy, read through the cache. The
// cache entry is invalidated on policy writes; the TTL only bounds staleness
// if an invalidation is lost.
func (s *Service) ActivePolicies(ctx context.Context) ([]*domain.LenderPolicy, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, domain.KeyActivePolicies); err == nil && data != nil {
			var policies []*domain.LenderPolicy
			if err := json.Unmarshal(data, &policies); err == nil {
				return policies, nil
			}
		}
	}

	policies, err := s.repo.ListActivePolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active policies: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(policies); err == nil {
			_ = s.cache.Set(ctx, domain.KeyActivePolicies, data, domain.ActivePoliciesTTL)
		}
	}
	return policies, nil
}

// InvalidateActivePolicies drops the cached active policy set. Called after
// every policy write.
func (s *Service) InvalidateActivePolicies(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, domain.KeyActivePolicies)
	}
}

// RecomputeBorrower reevaluates one borrower against every active policy
// and replaces their whole match set. Running it twice with unchanged data
// yields the same set.
func (s *Service) RecomputeBorrower(ctx context.Context, borrowerID int64) error {
	start := time.Now()
	key := "borrower:" + strconv.FormatInt(borrowerID, 10)
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	written := 0
	err := func() error {
		b, err := s.repo.GetBorrower(ctx, borrowerID)
		if err != nil {
			return fmt.Errorf("load borrower: %w", err)
		}

		policies, err := s.ActivePolicies(ctx)
		if err != nil {
			return err
		}

		matches := s.engine.EvaluateBorrower(b, policies)
		s.recordScores(matches)
		written = len(matches)

		if err := s.repo.ReplaceBorrowerMatches(ctx, borrowerID, matches); err != nil {
			return fmt.Errorf("replace borrower matches: %w", err)
		}
		return nil
	}()

	if s.metrics != nil {
		s.metrics.RecordRecompute(metrics.DirectionBorrower, time.Since(start), written, err)
	}
	if err != nil {
		s.logger.Error("borrower recompute failed",
			"borrower_id", borrowerID,
			"error", err,
		)
		return err
	}

	s.logger.Info("borrower matches recomputed",
		"borrower_id", borrowerID,
		"matches", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// RecomputePolicy reevaluates one policy version against the borrower
// population and replaces the lender's whole match set. The scan is bounded
// by a coarse prefilter derived from the policy's FICO floors and restricted
// states; the engine still applies the full filters per candidate.
func (s *Service) RecomputePolicy(ctx context.Context, lenderID, policyID string) error {
	start := time.Now()
	key := "lender:" + lenderID
	s.locks.Lock(key)
	defer s.locks.Unlock(key)

	written := 0
	err := func() error {
		policy, err := s.loadPolicy(ctx, lenderID, policyID)
		if err != nil {
			return err
		}

		filter := domain.BorrowerFilter{
			PositiveLoanAmount: true,
			ExcludeStates:      policy.RestrictedStates,
		}
		if minFICO, ok := engine.MinimumFICOTarget(policy); ok && minFICO > ficoPrefilterMargin {
			filter.MinFICO = int(minFICO) - ficoPrefilterMargin
		}

		var matches []*domain.LoanMatch
		err = s.repo.IterateBorrowers(ctx, filter, func(b *domain.Borrower) error {
			if m := s.engine.EvaluatePolicy(b, policy); m != nil {
				matches = append(matches, m)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan borrowers: %w", err)
		}

		s.recordScores(matches)
		written = len(matches)

		if err := s.repo.ReplaceLenderMatches(ctx, policy.LenderID, matches); err != nil {
			return fmt.Errorf("replace lender matches: %w", err)
		}
		return nil
	}()

	if s.metrics != nil {
		s.metrics.RecordRecompute(metrics.DirectionPolicy, time.Since(start), written, err)
	}
	if err != nil {
		s.logger.Error("policy recompute failed",
			"lender_id", lenderID,
			"policy_id", policyID,
			"error", err,
		)
		return err
	}

	s.logger.Info("lender matches recomputed",
		"lender_id", lenderID,
		"policy_id", policyID,
		"matches", written,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (s *Service) loadPolicy(ctx context.Context, lenderID, policyID string) (*domain.LenderPolicy, error) {
	if policyID != "" {
		p, err := s.repo.GetPolicy(ctx, policyID)
		if err != nil {
			return nil, fmt.Errorf("load policy %s: %w", policyID, err)
		}
		return p, nil
	}
	p, err := s.repo.GetActivePolicy(ctx, lenderID)
	if err != nil {
		return nil, fmt.Errorf("load active policy for %s: %w", lenderID, err)
	}
	return p, nil
}

func (s *Service) recordScores(matches []*domain.LoanMatch) {
	if s.metrics == nil {
		return
	}
	for _, m := range matches {
		s.metrics.RecordScore(m.Score)
	}
}
