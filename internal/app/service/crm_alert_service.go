package service

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/metrics"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("CRM alert not found")

// exportLimit upper bound of rows written to one XLSX export
const exportLimit = 10000

// AlertNotifier pushes new alerts to connected admin consoles
type AlertNotifier interface {
	NotifyAlert(alert *model.CRMAlert)
}

// CRMAlertService append-only admin alert log
type CRMAlertService interface {
	Record(alert *model.CRMAlert) (uint, error)
	List(filter model.CRMAlertFilter, page, pageSize int) ([]model.CRMAlert, int64, error)
	Acknowledge(alertID, adminID uint) (*model.CRMAlert, error)
	UnacknowledgedCount() (int64, error)
	HasOpenAlert(alertType model.AlertType, companyID uint) (bool, error)
	ExportXLSX(filter model.CRMAlertFilter, w io.Writer) (int, error)
}

type crmAlertService struct {
	repo     repository.CRMAlertRepository
	notifier AlertNotifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewCRMAlertService(repo repository.CRMAlertRepository, notifier AlertNotifier, m *metrics.Metrics) CRMAlertService {
	return &crmAlertService{
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		now:      time.Now,
	}
}

// Record appends an alert and returns its id. Acknowledgement fields of the
// input are ignored; new alerts are always unacknowledged.
func (s *crmAlertService) Record(alert *model.CRMAlert) (uint, error) {
	alert.Title = strings.TrimSpace(alert.Title)
	if !alert.Severity.IsValid() {
		return 0, &ValidationError{Field: "severity", Message: "must be info, warning or critical"}
	}
	if alert.AlertType == "" {
		return 0, &ValidationError{Field: "alert_type", Message: "is required"}
	}
	if alert.Title == "" {
		return 0, &ValidationError{Field: "title", Message: "is required"}
	}

	alert.ID = 0
	alert.Acknowledged = false
	alert.AcknowledgedBy = nil
	alert.AcknowledgedAt = nil

	if err := s.repo.Create(alert); err != nil {
		return 0, err
	}

	logger.Info("CRM alert recorded", map[string]interface{}{
		"alert_id":   alert.ID,
		"alert_type": alert.AlertType,
		"severity":   alert.Severity,
	})

	s.metrics.IncAlert(string(alert.Severity), string(alert.AlertType))
	if s.notifier != nil {
		s.notifier.NotifyAlert(alert)
	}
	return alert.ID, nil
}

// List newest first
func (s *crmAlertService) List(filter model.CRMAlertFilter, page, pageSize int) ([]model.CRMAlert, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	if filter.Severity != nil && !filter.Severity.IsValid() {
		return nil, 0, &ValidationError{Field: "severity", Message: "must be info, warning or critical"}
	}

	return s.repo.List(filter, pageSize, (page-1)*pageSize)
}

// Acknowledge marks an alert read; acknowledging twice keeps the first acknowledgement
func (s *crmAlertService) Acknowledge(alertID, adminID uint) (*model.CRMAlert, error) {
	alert, err := s.repo.Acknowledge(alertID, adminID, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, err
	}

	logger.Info("CRM alert acknowledged", map[string]interface{}{
		"alert_id": alert.ID,
		"admin_id": adminID,
	})
	return alert, nil
}

func (s *crmAlertService) UnacknowledgedCount() (int64, error) {
	return s.repo.CountUnacknowledged()
}

// HasOpenAlert reports an unacknowledged alert of alertType for the company
func (s *crmAlertService) HasOpenAlert(alertType model.AlertType, companyID uint) (bool, error) {
	return s.repo.ExistsOpen(alertType, companyID)
}

// ExportXLSX writes the filtered alerts as a spreadsheet and returns the row count
func (s *crmAlertService) ExportXLSX(filter model.CRMAlertFilter, w io.Writer) (int, error) {
	alerts, _, err := s.repo.List(filter, exportLimit, 0)
	if err != nil {
		return 0, err
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Alerts"
	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return 0, fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := []interface{}{"ID", "Created At", "Severity", "Type", "Title", "Message", "Company ID", "Acknowledged", "Acknowledged By", "Acknowledged At"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}

	for i, alert := range alerts {
		row := []interface{}{
			alert.ID,
			alert.CreatedAt.Format(time.RFC3339),
			string(alert.Severity),
			string(alert.AlertType),
			alert.Title,
			alert.Message,
			optionalUint(alert.RelatedCompanyID),
			alert.Acknowledged,
			optionalUint(alert.AcknowledgedBy),
			optionalTime(alert.AcknowledgedAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return 0, fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return 0, fmt.Errorf("failed to write workbook: %w", err)
	}
	return len(alerts), nil
}

func optionalUint(v *uint) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalTime(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format(time.RFC3339)
}
