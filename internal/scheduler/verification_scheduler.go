package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

// jobTimeout upper bound of one scheduled run
const jobTimeout = 30 * time.Minute

// VerificationScheduler 파트너 재검증 / pending 스윕 / 리뷰 지연 알림 스케줄러
type VerificationScheduler struct {
	cron        *cron.Cron
	recheck     service.PartnerRecheckService
	recheckSpec string
	sweepSpec   string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewVerificationScheduler(recheck service.PartnerRecheckService, recheckSpec, sweepSpec string) *VerificationScheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &VerificationScheduler{
		// 이전 실행이 끝나지 않았으면 건너뜀
		cron:        cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		recheck:     recheck,
		recheckSpec: recheckSpec,
		sweepSpec:   sweepSpec,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start registers the jobs and starts the cron runner
func (s *VerificationScheduler) Start() error {
	if _, err := s.cron.AddFunc(s.recheckSpec, s.wrap("vat_recheck", s.runRecheck)); err != nil {
		logger.Error("Failed to add cron job for VAT recheck", err, map[string]interface{}{
			"spec": s.recheckSpec,
		})
		return err
	}

	if _, err := s.cron.AddFunc(s.sweepSpec, s.wrap("pending_sweep", s.runSweep)); err != nil {
		logger.Error("Failed to add cron job for pending sweep", err, map[string]interface{}{
			"spec": s.sweepSpec,
		})
		return err
	}

	s.cron.Start()
	logger.Info("Verification scheduler started", map[string]interface{}{
		"recheck_spec": s.recheckSpec,
		"sweep_spec":   s.sweepSpec,
	})
	return nil
}

// Stop cancels running jobs and waits for them to return
func (s *VerificationScheduler) Stop() {
	logger.Info("Stopping verification scheduler...")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
	logger.Info("Verification scheduler stopped")
}

func (s *VerificationScheduler) wrap(name string, job func(ctx context.Context)) func() {
	return func() {
		s.wg.Add(1)
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
		defer cancel()

		start := time.Now()
		logger.Info("Starting scheduled job", map[string]interface{}{"job": name})
		job(ctx)
		logger.Info("Scheduled job finished", map[string]interface{}{
			"job":      name,
			"duration": time.Since(start).String(),
		})
	}
}

func (s *VerificationScheduler) runRecheck(ctx context.Context) {
	if _, err := s.recheck.RecheckApproved(ctx); err != nil {
		logger.Error("Scheduled VAT recheck failed", err)
	}
}

// runSweep also raises stale review alerts; both are cheap queries on the same cadence
func (s *VerificationScheduler) runSweep(ctx context.Context) {
	if _, err := s.recheck.SweepPending(ctx); err != nil {
		logger.Error("Scheduled pending sweep failed", err)
	}
	if _, err := s.recheck.FlagStaleReviews(ctx); err != nil {
		logger.Error("Scheduled stale review check failed", err)
	}
}
