package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/smartshop/smartshop-backend/pkg/mailer"
)

// FailureTracker per-recipient consecutive delivery failure counter
type FailureTracker interface {
	RecordFailure(ctx context.Context, recipient string) (int, error)
	Reset(ctx context.Context, recipient string) error
}

type dbFailureTracker struct {
	repo repository.DeliveryStreakRepository
}

// NewDBFailureTracker keeps streaks in the delivery_streaks table
func NewDBFailureTracker(repo repository.DeliveryStreakRepository) FailureTracker {
	return &dbFailureTracker{repo: repo}
}

func (t *dbFailureTracker) RecordFailure(_ context.Context, recipient string) (int, error) {
	return t.repo.RecordFailure(recipient)
}

func (t *dbFailureTracker) Reset(_ context.Context, recipient string) error {
	return t.repo.Reset(recipient)
}

// DispatcherConfig queue and retry policy of the notification dispatcher
type DispatcherConfig struct {
	Workers        int
	QueueSize      int
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	SendTimeout    time.Duration
	CriticalStreak int
	DashboardURL   string
}

func NewDispatcherConfig(cfg config.NotificationConfig, frontendURL string) DispatcherConfig {
	return DispatcherConfig{
		Workers:        cfg.Workers,
		QueueSize:      cfg.QueueSize,
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		SendTimeout:    30 * time.Second,
		CriticalStreak: cfg.CriticalStreak,
		DashboardURL:   strings.TrimRight(frontendURL, "/") + "/b2b/cabinet",
	}
}

func (c *DispatcherConfig) applyDefaults() {
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 1 {
		c.QueueSize = 64
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 30 * time.Second
	}
	if c.CriticalStreak < 1 {
		c.CriticalStreak = 3
	}
}

type dispatchJob struct {
	ID         string
	Event      model.VerificationEvent
	EnqueuedAt time.Time
}

// NotificationDispatcher sends verification emails on a bounded worker pool and
// records delivery and backlog alerts. Dispatch never blocks on delivery and never fails.
type NotificationDispatcher struct {
	cfg         DispatcherConfig
	companyRepo repository.CompanyRepository
	sender      mailer.Sender
	alerts      CRMAlertService
	tracker     FailureTracker
	metrics     *metrics.Metrics

	queue   chan dispatchJob
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
}

func NewNotificationDispatcher(
	cfg DispatcherConfig,
	companyRepo repository.CompanyRepository,
	sender mailer.Sender,
	alerts CRMAlertService,
	tracker FailureTracker,
	m *metrics.Metrics,
) *NotificationDispatcher {
	cfg.applyDefaults()
	return &NotificationDispatcher{
		cfg:         cfg,
		companyRepo: companyRepo,
		sender:      sender,
		alerts:      alerts,
		tracker:     tracker,
		metrics:     m,
		queue:       make(chan dispatchJob, cfg.QueueSize),
	}
}

// Start launches the workers; they stop when ctx is cancelled or Stop drains the queue
func (d *NotificationDispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.stopped {
		return
	}
	d.started = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}

	logger.Info("Notification dispatcher started", map[string]interface{}{
		"workers":     d.cfg.Workers,
		"queue_size":  d.cfg.QueueSize,
		"max_retries": d.cfg.MaxRetries,
	})
}

// Stop refuses new jobs, waits until queued jobs are processed and returns
func (d *NotificationDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	logger.Info("Notification dispatcher stopped")
}

// Dispatch enqueues the side effects of a committed event
func (d *NotificationDispatcher) Dispatch(event model.VerificationEvent) {
	job := dispatchJob{
		ID:         uuid.NewString(),
		Event:      event,
		EnqueuedAt: time.Now(),
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		logger.Warn("Notification dispatcher stopped, event not dispatched", map[string]interface{}{
			"company_id": event.CompanyID,
			"to_status":  event.ToStatus,
		})
		return
	}

	select {
	case d.queue <- job:
		d.metrics.SetQueueDepth(len(d.queue))
		logger.Debug("Notification job queued", map[string]interface{}{
			"job_id":     job.ID,
			"company_id": event.CompanyID,
			"to_status":  event.ToStatus,
		})
	default:
		d.metrics.IncDropped()
		logger.Warn("Notification queue full, job dropped", map[string]interface{}{
			"job_id":     job.ID,
			"company_id": event.CompanyID,
		})
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.recordAlert(model.AlertSeverityWarning, model.AlertTypeNotificationBacklog,
				"Notification dropped",
				fmt.Sprintf("Notification for transition %s -> %s was dropped because the queue was full",
					event.FromStatus, event.ToStatus),
				event.CompanyID)
		}()
	}
}

func (d *NotificationDispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			logger.Debug("Notification worker cancelled", map[string]interface{}{"worker": id})
			return
		case job, ok := <-d.queue:
			if !ok {
				return
			}
			d.metrics.SetQueueDepth(len(d.queue))
			d.process(ctx, job)
		}
	}
}

// TemplateForStatus mail template of a verification status, "" when none is sent
func TemplateForStatus(status model.VerificationStatus) string {
	switch status {
	case model.VerificationStatusAutoApproved, model.VerificationStatusApproved:
		return mailer.TemplateVerificationApproved
	case model.VerificationStatusNeedsReview:
		return mailer.TemplateVerificationPending
	case model.VerificationStatusAutoRejected, model.VerificationStatusRejected:
		return mailer.TemplateVerificationRejected
	}
	return ""
}

func (d *NotificationDispatcher) process(ctx context.Context, job dispatchJob) {
	event := job.Event
	log := logger.WithContext(map[string]interface{}{
		"job_id":     job.ID,
		"company_id": event.CompanyID,
		"to_status":  event.ToStatus,
	})

	company, err := d.companyRepo.FindByID(event.CompanyID)
	if err != nil {
		log.Error("Failed to load company for notification", err)
		return
	}

	template := TemplateForStatus(event.ToStatus)
	if template == "" {
		log.Debug("No notification template for status")
		return
	}

	vars := map[string]string{
		"company_name":  company.LegalName,
		"status":        string(event.ToStatus),
		"reason":        event.Reason,
		"dashboard_url": d.cfg.DashboardURL,
	}
	d.deliver(ctx, company, template, vars)
}

// deliver attempts the send once plus MaxRetries retries. Every failed attempt
// extends the recipient streak and a success resets it. A job with any failed
// attempt records exactly one delivery alert.
func (d *NotificationDispatcher) deliver(ctx context.Context, company *model.Company, template string, vars map[string]string) {
	recipient := company.ContactEmail

	var (
		attempts   int
		failures   int
		peakStreak int
		lastErr    error
	)

	operation := func() error {
		attempts++
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
		defer cancel()

		err := d.sender.Send(sendCtx, template, recipient, vars)
		if err == nil {
			if resetErr := d.tracker.Reset(ctx, recipient); resetErr != nil {
				logger.Error("Failed to reset delivery streak", resetErr, map[string]interface{}{
					"recipient": recipient,
				})
			}
			return nil
		}

		failures++
		lastErr = err
		streak, trackErr := d.tracker.RecordFailure(ctx, recipient)
		if trackErr != nil {
			logger.Error("Failed to record delivery failure", trackErr, map[string]interface{}{
				"recipient": recipient,
			})
			streak = failures
		}
		if streak > peakStreak {
			peakStreak = streak
		}

		logger.Warn("Notification delivery attempt failed", map[string]interface{}{
			"company_id": company.ID,
			"template":   template,
			"attempt":    attempts,
			"streak":     streak,
			"error":      err.Error(),
		})

		if errors.Is(err, mailer.ErrUnknownTemplate) || errors.Is(err, mailer.ErrNoRecipient) {
			return backoff.Permanent(err)
		}
		return err
	}

	err := backoff.Retry(operation, d.newBackOff(ctx))

	outcome := "delivered"
	switch {
	case err != nil:
		outcome = "failed"
	case failures > 0:
		outcome = "recovered"
	}
	d.metrics.IncDelivery(template, outcome)

	if failures == 0 {
		logger.Info("Notification delivered", map[string]interface{}{
			"company_id": company.ID,
			"template":   template,
		})
		return
	}

	severity := model.AlertSeverityWarning
	if peakStreak >= d.cfg.CriticalStreak {
		severity = model.AlertSeverityCritical
	}

	title := fmt.Sprintf("Email delivery failed: %s", company.LegalName)
	if err == nil {
		title = fmt.Sprintf("Email delivery retried: %s", company.LegalName)
	}
	message := fmt.Sprintf("Template %s to %s: %d of %d attempts failed, %d consecutive failures for this recipient. Last error: %v",
		template, recipient, failures, attempts, peakStreak, lastErr)

	d.recordAlert(severity, model.AlertTypeDeliveryFailed, title, message, company.ID)
}

func (d *NotificationDispatcher) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.cfg.InitialBackoff
	exp.MaxInterval = d.cfg.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithMaxRetries(backoff.WithContext(exp, ctx), uint64(d.cfg.MaxRetries))
}

func (d *NotificationDispatcher) recordAlert(severity model.AlertSeverity, alertType model.AlertType, title, message string, companyID uint) {
	alert := &model.CRMAlert{
		Severity:  severity,
		AlertType: alertType,
		Title:     title,
		Message:   message,
	}
	if companyID != 0 {
		alert.RelatedCompanyID = &companyID
	}

	if _, err := d.alerts.Record(alert); err != nil {
		logger.Error("Failed to record CRM alert", err, map[string]interface{}{
			"alert_type": alertType,
			"company_id": companyID,
		})
	}
}
