package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var errRelayDown = errors.New("smtp relay unreachable")

type sentMail struct {
	Template  string
	Recipient string
	Vars      map[string]string
}

// fakeSender fails the first failFirst attempts, or every attempt when failAlways is set
type fakeSender struct {
	mu         sync.Mutex
	failFirst  int
	failAlways bool
	attempts   int
	sent       []sentMail
}

func (s *fakeSender) Send(_ context.Context, template, recipient string, vars map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempts++
	if s.failAlways || s.attempts <= s.failFirst {
		return errRelayDown
	}
	s.sent = append(s.sent, sentMail{Template: template, Recipient: recipient, Vars: vars})
	return nil
}

func (s *fakeSender) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *fakeSender) Sent() []sentMail {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMail(nil), s.sent...)
}

type verificationFixture struct {
	db          *gorm.DB
	companyRepo repository.CompanyRepository
	eventRepo   repository.VerificationEventRepository
	alertRepo   repository.CRMAlertRepository
	alerts      CRMAlertService
	sender      *fakeSender
	dispatcher  *NotificationDispatcher
	service     VerificationService
}

func newVerificationFixture(t *testing.T, sender *fakeSender) *verificationFixture {
	t.Helper()

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	if sender == nil {
		sender = &fakeSender{}
	}

	companyRepo := repository.NewCompanyRepository(testDB)
	eventRepo := repository.NewVerificationEventRepository(testDB)
	alertRepo := repository.NewCRMAlertRepository(testDB)
	alerts := NewCRMAlertService(alertRepo, nil, nil)
	tracker := NewDBFailureTracker(repository.NewDeliveryStreakRepository(testDB))

	dispatcher := NewNotificationDispatcher(DispatcherConfig{
		Workers:        1,
		QueueSize:      16,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		CriticalStreak: 3,
		DashboardURL:   "http://localhost:3000/b2b/cabinet",
	}, companyRepo, sender, alerts, tracker, nil)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)

	service := NewVerificationService(
		companyRepo,
		eventRepo,
		NewVerificationEvaluator(testRules()),
		dispatcher,
		alerts,
		nil,
	)

	return &verificationFixture{
		db:          testDB,
		companyRepo: companyRepo,
		eventRepo:   eventRepo,
		alertRepo:   alertRepo,
		alerts:      alerts,
		sender:      sender,
		dispatcher:  dispatcher,
		service:     service,
	}
}

// flush waits until every dispatched job has been processed
func (f *verificationFixture) flush() {
	f.dispatcher.Stop()
}

func (f *verificationFixture) alertsOfType(t *testing.T, alertType model.AlertType) []model.CRMAlert {
	t.Helper()
	var alerts []model.CRMAlert
	require.NoError(t, f.db.Where("alert_type = ?", alertType).Order("id ASC").Find(&alerts).Error)
	return alerts
}

func (f *verificationFixture) eventCount(t *testing.T, companyID uint) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&model.VerificationEvent{}).Where("company_id = ?", companyID).Count(&count).Error)
	return count
}

// submitForReview creates a company that lands in needs_review (no documents)
func (f *verificationFixture) submitForReview(t *testing.T, name string) *model.Company {
	t.Helper()
	company, err := f.service.Submit(model.CompanySubmission{
		LegalName:    name,
		TaxID:        "DE136695976",
		CountryCode:  "DE",
		ContactEmail: "finance@acme.example.com",
	})
	require.NoError(t, err)
	require.Equal(t, model.VerificationStatusNeedsReview, company.VerificationStatus)
	return company
}
