package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"github.com/smartshop/smartshop-backend/pkg/vies"
	"golang.org/x/sync/errgroup"
)

// VATChecker looks a VAT number up in an authoritative registry
type VATChecker interface {
	Check(ctx context.Context, countryCode, vatNumber string) (*vies.Result, error)
}

// RecheckConfig thresholds of the background verification jobs
type RecheckConfig struct {
	RecheckAfter     time.Duration
	PendingAfter     time.Duration
	StaleReviewAfter time.Duration
	BatchSize        int
	Concurrency      int // 동시 VIES 조회 수
}

func NewRecheckConfig(cfg config.SchedulerConfig) RecheckConfig {
	return RecheckConfig{
		RecheckAfter:     cfg.RecheckAfter,
		PendingAfter:     cfg.PendingAfter,
		StaleReviewAfter: cfg.StaleReviewAfter,
		BatchSize:        cfg.BatchSize,
		Concurrency:      cfg.VIESConcurrency,
	}
}

// RecheckSummary counts of one job run
type RecheckSummary struct {
	Checked int `json:"checked"`
	Valid   int `json:"valid"`
	Invalid int `json:"invalid"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

type vatLookup struct {
	result  *vies.Result
	err     error
	skipped bool
}

// PartnerRecheckService background checks that keep approved and waiting partners honest
type PartnerRecheckService interface {
	RecheckApproved(ctx context.Context) (RecheckSummary, error)
	SweepPending(ctx context.Context) (int, error)
	FlagStaleReviews(ctx context.Context) (int, error)
}

type partnerRecheckService struct {
	cfg          RecheckConfig
	companyRepo  repository.CompanyRepository
	verification VerificationService
	alerts       CRMAlertService
	checker      VATChecker
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewPartnerRecheckService checker may be nil, which disables the VIES recheck
func NewPartnerRecheckService(
	cfg RecheckConfig,
	companyRepo repository.CompanyRepository,
	verification VerificationService,
	alerts CRMAlertService,
	checker VATChecker,
	m *metrics.Metrics,
) PartnerRecheckService {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 4
	}
	return &partnerRecheckService{
		cfg:          cfg,
		companyRepo:  companyRepo,
		verification: verification,
		alerts:       alerts,
		checker:      checker,
		metrics:      m,
		now:          time.Now,
	}
}

// RecheckApproved looks up approved EU companies in VIES. The status is never
// changed here; an invalid number raises a critical alert for an admin.
func (s *partnerRecheckService) RecheckApproved(ctx context.Context) (RecheckSummary, error) {
	var summary RecheckSummary
	if s.checker == nil {
		logger.Debug("VAT recheck disabled")
		return summary, nil
	}

	now := s.now()
	companies, err := s.companyRepo.ListDueForRecheck(now.Add(-s.cfg.RecheckAfter), s.cfg.BatchSize)
	if err != nil {
		return summary, err
	}

	// 조회만 병렬로, 결과 처리(알림/DB 기록)는 순서대로
	lookups := make([]vatLookup, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range companies {
		company := &companies[i]
		if !util.HasVATPattern(util.VATPrefix(company.CountryCode)) {
			lookups[i].skipped = true
			continue
		}
		i := i
		g.Go(func() error {
			lookups[i].result, lookups[i].err = s.checker.Check(gctx, company.CountryCode, company.TaxID)
			return nil
		})
	}
	g.Wait()
	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	for i := range companies {
		company := &companies[i]
		lookup := lookups[i]

		if lookup.skipped {
			summary.Skipped++
			s.metrics.IncRecheck("skipped")
			s.markRechecked(company.ID, now)
			continue
		}

		summary.Checked++
		if lookup.err != nil {
			summary.Errors++
			s.metrics.IncRecheck("error")
			logger.Warn("VAT recheck failed", map[string]interface{}{
				"company_id":  company.ID,
				"unavailable": errors.Is(lookup.err, vies.ErrServiceUnavailable),
				"error":       lookup.err.Error(),
			})
			continue
		}

		result := lookup.result
		if !result.Valid {
			summary.Invalid++
			s.metrics.IncRecheck("invalid")
			s.raiseOnce(model.AlertSeverityCritical, model.AlertTypeTaxIDInvalid, company,
				fmt.Sprintf("VAT number no longer valid: %s", company.LegalName),
				fmt.Sprintf("VIES reports %s%s (%s) as invalid. The company is still approved.",
					result.CountryCode, result.VATNumber, company.LegalName))
		} else {
			summary.Valid++
			s.metrics.IncRecheck("valid")
			if !namesMatch(company.LegalName, result.Name) {
				s.raiseOnce(model.AlertSeverityWarning, model.AlertTypeTaxIDInvalid, company,
					fmt.Sprintf("Registered name differs: %s", company.LegalName),
					fmt.Sprintf("VIES registers %s%s to %q, the partner submitted %q.",
						result.CountryCode, result.VATNumber, result.Name, company.LegalName))
			}
		}
		s.markRechecked(company.ID, now)
	}

	logger.Info("VAT recheck completed", map[string]interface{}{
		"checked": summary.Checked,
		"valid":   summary.Valid,
		"invalid": summary.Invalid,
		"skipped": summary.Skipped,
		"errors":  summary.Errors,
	})
	return summary, nil
}

// SweepPending evaluates companies left pending, e.g. when evaluation failed right after submit
func (s *partnerRecheckService) SweepPending(ctx context.Context) (int, error) {
	companies, err := s.companyRepo.ListByStatusSince(model.VerificationStatusPending, s.now().Add(-s.cfg.PendingAfter), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	evaluated := 0
	for _, company := range companies {
		if ctx.Err() != nil {
			return evaluated, ctx.Err()
		}
		if _, err := s.verification.Evaluate(company.ID); err != nil {
			// 다른 경로에서 이미 평가된 경우
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict) {
				continue
			}
			logger.Error("Pending sweep evaluation failed", err, map[string]interface{}{
				"company_id": company.ID,
			})
			continue
		}
		evaluated++
	}

	if len(companies) > 0 {
		logger.Info("Pending sweep completed", map[string]interface{}{
			"found":     len(companies),
			"evaluated": evaluated,
		})
	}
	return evaluated, nil
}

// FlagStaleReviews raises one open verification_stale alert per company waiting too long
func (s *partnerRecheckService) FlagStaleReviews(ctx context.Context) (int, error) {
	now := s.now()
	companies, err := s.companyRepo.ListByStatusSince(model.VerificationStatusNeedsReview, now.Add(-s.cfg.StaleReviewAfter), s.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	raised := 0
	for i := range companies {
		if ctx.Err() != nil {
			return raised, ctx.Err()
		}
		company := &companies[i]
		waiting := now.Sub(company.UpdatedAt).Round(time.Hour)
		if s.raiseOnce(model.AlertSeverityWarning, model.AlertTypeVerificationStale, company,
			fmt.Sprintf("Review overdue: %s", company.LegalName),
			fmt.Sprintf("%s (%s %s) has been waiting for review for %s.",
				company.LegalName, company.CountryCode, company.TaxID, waiting)) {
			raised++
		}
	}
	return raised, nil
}

// raiseOnce records the alert unless an unacknowledged one of the same type exists
func (s *partnerRecheckService) raiseOnce(severity model.AlertSeverity, alertType model.AlertType, company *model.Company, title, message string) bool {
	open, err := s.alerts.HasOpenAlert(alertType, company.ID)
	if err != nil {
		logger.Error("Failed to check open alerts", err, map[string]interface{}{
			"company_id": company.ID,
			"alert_type": alertType,
		})
		return false
	}
	if open {
		return false
	}

	companyID := company.ID
	_, err = s.alerts.Record(&model.CRMAlert{
		Severity:         severity,
		AlertType:        alertType,
		Title:            title,
		Message:          message,
		RelatedCompanyID: &companyID,
	})
	if err != nil {
		logger.Error("Failed to record CRM alert", err, map[string]interface{}{
			"company_id": company.ID,
			"alert_type": alertType,
		})
		return false
	}
	return true
}

func (s *partnerRecheckService) markRechecked(companyID uint, at time.Time) {
	if err := s.companyRepo.MarkRechecked(companyID, at); err != nil {
		logger.Warn("Failed to stamp recheck time", map[string]interface{}{
			"company_id": companyID,
			"error":      err.Error(),
		})
	}
}

// namesMatch compares letters and digits only; some member states hide the name ("---")
func namesMatch(submitted, registered string) bool {
	r := comparableName(registered)
	if r == "" {
		return true
	}
	s := comparableName(submitted)
	return strings.Contains(r, s) || strings.Contains(s, r)
}

func comparableName(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(name) {
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) {
			b.WriteRune(ch)
		}
	}
	return b.String()
}
