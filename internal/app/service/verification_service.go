package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"gorm.io/gorm"
)

var (
	ErrInvalidTransition = errors.New("invalid verification transition")
	ErrValidation        = errors.New("validation failed")
	ErrCompanyNotFound   = errors.New("company not found")
	ErrConflict          = errors.New("company was modified concurrently, retry")
	ErrDuplicateCompany  = errors.New("company with this tax ID is already registered")
)

// TransitionError names the disallowed status pair
type TransitionError struct {
	From model.VerificationStatus
	To   model.VerificationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid verification transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// ValidationError a required field is missing or malformed
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// allowedTransitions every edge of the verification state machine
var allowedTransitions = map[model.VerificationStatus]map[model.VerificationStatus]bool{
	model.VerificationStatusPending: {
		model.VerificationStatusAutoApproved: true,
		model.VerificationStatusNeedsReview:  true,
		model.VerificationStatusAutoRejected: true,
	},
	model.VerificationStatusAutoApproved: {
		model.VerificationStatusApproved: true,
	},
	model.VerificationStatusAutoRejected: {
		model.VerificationStatusRejected: true,
	},
	model.VerificationStatusNeedsReview: {
		model.VerificationStatusApproved: true,
		model.VerificationStatusRejected: true,
	},
	model.VerificationStatusRejected: {
		model.VerificationStatusNeedsReview: true,
	},
}

// CanTransition reports whether from -> to is an edge of the state machine
func CanTransition(from, to model.VerificationStatus) bool {
	return allowedTransitions[from][to]
}

// ReplayStatus folds an ordered event history starting from pending.
// It fails on the first event that does not continue the chain.
func ReplayStatus(events []model.VerificationEvent) (model.VerificationStatus, error) {
	current := model.VerificationStatusPending
	for _, event := range events {
		if event.FromStatus != current || !CanTransition(event.FromStatus, event.ToStatus) {
			return current, &TransitionError{From: event.FromStatus, To: event.ToStatus}
		}
		current = event.ToStatus
	}
	return current, nil
}

// EventDispatcher receives committed events for best-effort side effects
type EventDispatcher interface {
	Dispatch(event model.VerificationEvent)
}

type VerificationService interface {
	Submit(submission model.CompanySubmission) (*model.Company, error)
	Evaluate(companyID uint) (*model.Company, error)
	Approve(companyID uint, actor string) (*model.Company, error)
	Reject(companyID uint, actor, reason string) (*model.Company, error)
	Reopen(companyID uint, actor, reason string) (*model.Company, error)
	GetCompany(companyID uint) (*model.Company, error)
	ListCompanies(filter repository.CompanyFilter, page, pageSize int) ([]model.Company, int64, error)
	GetHistory(companyID uint) ([]model.VerificationEvent, error)
}

type verificationService struct {
	companyRepo repository.CompanyRepository
	eventRepo   repository.VerificationEventRepository
	evaluator   VerificationEvaluator
	dispatcher  EventDispatcher
	alerts      CRMAlertService
	metrics     *metrics.Metrics
	now         func() time.Time
}

func NewVerificationService(
	companyRepo repository.CompanyRepository,
	eventRepo repository.VerificationEventRepository,
	evaluator VerificationEvaluator,
	dispatcher EventDispatcher,
	alerts CRMAlertService,
	m *metrics.Metrics,
) VerificationService {
	return &verificationService{
		companyRepo: companyRepo,
		eventRepo:   eventRepo,
		evaluator:   evaluator,
		dispatcher:  dispatcher,
		alerts:      alerts,
		metrics:     m,
		now:         time.Now,
	}
}

// Submit stores a new pending company and runs the automated checks on it.
// If evaluation fails after the insert the company stays pending and the
// scheduler sweep evaluates it later.
func (s *verificationService) Submit(submission model.CompanySubmission) (*model.Company, error) {
	submission.LegalName = strings.TrimSpace(submission.LegalName)
	submission.TaxID = util.NormalizeTaxID(submission.TaxID)
	submission.CountryCode = util.NormalizeCountryCode(submission.CountryCode)
	submission.ContactEmail = strings.TrimSpace(submission.ContactEmail)
	submission.Website = strings.TrimSpace(submission.Website)

	if err := validateSubmission(submission); err != nil {
		logger.Warn("Company submission rejected by validation", map[string]interface{}{
			"legal_name": submission.LegalName,
			"error":      err.Error(),
		})
		return nil, err
	}

	existing, err := s.companyRepo.FindByTaxID(submission.CountryCode, submission.TaxID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil && existing.VerificationStatus != model.VerificationStatusRejected {
		logger.Warn("Duplicate company submission", map[string]interface{}{
			"existing_company_id": existing.ID,
			"country_code":        submission.CountryCode,
		})
		return nil, ErrDuplicateCompany
	}

	company := &model.Company{
		LegalName:          submission.LegalName,
		TaxID:              submission.TaxID,
		CountryCode:        submission.CountryCode,
		ContactEmail:       submission.ContactEmail,
		Website:            submission.Website,
		DocumentRefs:       model.StringList(nonEmpty(submission.DocumentRefs)),
		VerificationStatus: model.VerificationStatusPending,
		SubmittedAt:        s.now(),
		Version:            1,
	}
	if err := s.companyRepo.Create(company); err != nil {
		if errors.Is(err, repository.ErrDuplicateTaxID) {
			logger.Warn("Duplicate company submission", map[string]interface{}{
				"country_code": submission.CountryCode,
			})
			return nil, ErrDuplicateCompany
		}
		return nil, err
	}

	logger.Info("Company submitted for verification", map[string]interface{}{
		"company_id":   company.ID,
		"country_code": company.CountryCode,
	})

	return s.Evaluate(company.ID)
}

func validateSubmission(submission model.CompanySubmission) error {
	if submission.LegalName == "" {
		return &ValidationError{Field: "legal_name", Message: "is required"}
	}
	if submission.TaxID == "" {
		return &ValidationError{Field: "tax_id", Message: "is required"}
	}
	if submission.CountryCode == "" {
		return &ValidationError{Field: "country_code", Message: "is required"}
	}
	if submission.ContactEmail == "" {
		return &ValidationError{Field: "contact_email", Message: "is required"}
	}
	if _, err := mail.ParseAddress(submission.ContactEmail); err != nil {
		return &ValidationError{Field: "contact_email", Message: "is not a valid email address"}
	}
	return nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Evaluate runs the evaluator on a pending company. auto_approved and
// auto_rejected are promoted to their terminal status in the same commit,
// recording both events.
func (s *verificationService) Evaluate(companyID uint) (*model.Company, error) {
	start := s.now()
	defer s.metrics.ObserveEvaluation(start)

	var result EvaluationResult
	company, events, err := s.companyRepo.Transition(companyID, func(c *model.Company) ([]model.VerificationEvent, error) {
		result = s.evaluator.Evaluate(c.Submission())
		if c.VerificationStatus != model.VerificationStatusPending || !CanTransition(c.VerificationStatus, result.Status) {
			return nil, &TransitionError{From: c.VerificationStatus, To: result.Status}
		}

		now := s.now()
		events := []model.VerificationEvent{
			applyTransition(c, result.Status, model.ActorSystem, result.Reason, now),
		}

		switch result.Status {
		case model.VerificationStatusAutoApproved:
			events = append(events, applyTransition(c, model.VerificationStatusApproved, model.ActorSystem, "auto-approval confirmed", now))
		case model.VerificationStatusAutoRejected:
			events = append(events, applyTransition(c, model.VerificationStatusRejected, model.ActorSystem, result.Reason, now))
		}
		return events, nil
	})
	if err != nil {
		return nil, s.translateError(err, companyID)
	}

	logger.Info("Company evaluated", map[string]interface{}{
		"company_id": company.ID,
		"outcome":    result.Status,
		"status":     company.VerificationStatus,
		"reason":     result.Reason,
	})

	s.afterCommit(company, events)
	return company, nil
}

func (s *verificationService) Approve(companyID uint, actor string) (*model.Company, error) {
	return s.adminTransition(companyID, model.VerificationStatusApproved, actor, "", false)
}

func (s *verificationService) Reject(companyID uint, actor, reason string) (*model.Company, error) {
	return s.adminTransition(companyID, model.VerificationStatusRejected, actor, reason, true)
}

func (s *verificationService) Reopen(companyID uint, actor, reason string) (*model.Company, error) {
	return s.adminTransition(companyID, model.VerificationStatusNeedsReview, actor, reason, true)
}

func (s *verificationService) adminTransition(
	companyID uint,
	to model.VerificationStatus,
	actor, reason string,
	reasonRequired bool,
) (*model.Company, error) {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)

	if actor == "" {
		return nil, &ValidationError{Field: "actor", Message: "is required"}
	}
	if actor == model.ActorSystem {
		return nil, &ValidationError{Field: "actor", Message: "must identify an admin"}
	}
	if reasonRequired && reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "is required"}
	}

	company, events, err := s.companyRepo.Transition(companyID, func(c *model.Company) ([]model.VerificationEvent, error) {
		if !CanTransition(c.VerificationStatus, to) {
			return nil, &TransitionError{From: c.VerificationStatus, To: to}
		}
		return []model.VerificationEvent{applyTransition(c, to, actor, reason, s.now())}, nil
	})
	if err != nil {
		err = s.translateError(err, companyID)
		logger.Warn("Admin verification decision refused", map[string]interface{}{
			"company_id": companyID,
			"to":         to,
			"actor":      actor,
			"error":      err.Error(),
		})
		return nil, err
	}

	logger.Info("Admin verification decision applied", map[string]interface{}{
		"company_id": company.ID,
		"status":     company.VerificationStatus,
		"actor":      actor,
	})

	s.afterCommit(company, events)
	return company, nil
}

// applyTransition mutates the company for one edge and returns its event
func applyTransition(c *model.Company, to model.VerificationStatus, actor, reason string, now time.Time) model.VerificationEvent {
	event := model.VerificationEvent{
		CreatedAt:  now,
		FromStatus: c.VerificationStatus,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
	}

	c.VerificationStatus = to
	switch {
	case to.IsTerminal():
		c.DecidedAt = &now
	case to == model.VerificationStatusNeedsReview:
		c.DecidedAt = nil
	}
	switch {
	case reason != "" && (to == model.VerificationStatusRejected || to == model.VerificationStatusNeedsReview):
		c.VerificationNotes = reason
	case to == model.VerificationStatusApproved && actor != model.ActorSystem:
		// 수동 승인은 검토 사유를 덮어쓴다. 이전 사유는 이벤트 이력에 남아 있다
		c.VerificationNotes = "approved by " + actor
	}
	return event
}

// afterCommit records metrics for every committed event, records the CRM
// alert of the final transition and dispatches it, so a promoted auto
// decision sends a single notification. The alert does not depend on mail
// delivery or on a dispatcher being wired.
func (s *verificationService) afterCommit(company *model.Company, events []model.VerificationEvent) {
	if len(events) == 0 {
		return
	}
	for _, event := range events {
		actorKind := "admin"
		if event.Actor == model.ActorSystem {
			actorKind = model.ActorSystem
		}
		s.metrics.IncTransition(string(event.FromStatus), string(event.ToStatus), actorKind)
	}
	last := events[len(events)-1]
	s.recordDecisionAlert(company, last)
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(last)
	}
}

func (s *verificationService) recordDecisionAlert(company *model.Company, event model.VerificationEvent) {
	if s.alerts == nil {
		return
	}

	var alert *model.CRMAlert
	switch {
	case event.ToStatus == model.VerificationStatusRejected:
		alert = &model.CRMAlert{
			Severity:  model.AlertSeverityInfo,
			AlertType: model.AlertTypeCompanyRejected,
			Title:     fmt.Sprintf("Company rejected: %s", company.LegalName),
			Message: fmt.Sprintf("%s rejected %s (%s %s): %s",
				event.Actor, company.LegalName, company.CountryCode, company.TaxID, event.Reason),
		}
	case event.FromStatus == model.VerificationStatusRejected && event.ToStatus == model.VerificationStatusNeedsReview:
		alert = &model.CRMAlert{
			Severity:  model.AlertSeverityInfo,
			AlertType: model.AlertTypeReviewReopened,
			Title:     fmt.Sprintf("Review reopened: %s", company.LegalName),
			Message:   fmt.Sprintf("%s reopened the review of %s: %s", event.Actor, company.LegalName, event.Reason),
		}
	default:
		return
	}

	companyID := company.ID
	alert.RelatedCompanyID = &companyID
	if _, err := s.alerts.Record(alert); err != nil {
		logger.Error("Failed to record verification alert", err, map[string]interface{}{
			"company_id": company.ID,
			"alert_type": alert.AlertType,
		})
	}
}

func (s *verificationService) translateError(err error, companyID uint) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrCompanyNotFound
	case errors.Is(err, repository.ErrConcurrentUpdate):
		return ErrConflict
	case errors.Is(err, repository.ErrDuplicateTaxID):
		return ErrDuplicateCompany
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrValidation):
		return err
	default:
		logger.Error("Verification transition failed", err, map[string]interface{}{
			"company_id": companyID,
		})
		return err
	}
}

func (s *verificationService) GetCompany(companyID uint) (*model.Company, error) {
	company, err := s.companyRepo.FindByID(companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompanyNotFound
		}
		return nil, err
	}
	return company, nil
}

func (s *verificationService) ListCompanies(filter repository.CompanyFilter, page, pageSize int) ([]model.Company, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	filter.CountryCode = util.NormalizeCountryCode(filter.CountryCode)
	filter.Search = strings.TrimSpace(filter.Search)

	return s.companyRepo.List(filter, page, pageSize)
}

func (s *verificationService) GetHistory(companyID uint) ([]model.VerificationEvent, error) {
	if _, err := s.GetCompany(companyID); err != nil {
		return nil, err
	}
	return s.eventRepo.ListByCompany(companyID)
}
