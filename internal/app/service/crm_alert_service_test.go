package service

import (
	"bytes"
	"sync"
	"testing"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []model.CRMAlert
}

func (n *recordingNotifier) NotifyAlert(alert *model.CRMAlert) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, *alert)
}

func setupCRMAlertService(t *testing.T) (CRMAlertService, *recordingNotifier) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.CleanupTestDB(testDB) })

	notifier := &recordingNotifier{}
	return NewCRMAlertService(repository.NewCRMAlertRepository(testDB), notifier, nil), notifier
}

func TestCRMAlertService_Record(t *testing.T) {
	svc, notifier := setupCRMAlertService(t)

	companyID := uint(7)
	adminID := uint(1)
	alert := &model.CRMAlert{
		Severity:         model.AlertSeverityWarning,
		AlertType:        model.AlertTypeVerificationStale,
		Title:            "  Review overdue  ",
		Message:          "Acme GmbH waits for review",
		RelatedCompanyID: &companyID,
		Acknowledged:     true,
		AcknowledgedBy:   &adminID,
	}

	id, err := svc.Record(alert)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, "Review overdue", alert.Title)
	assert.False(t, alert.Acknowledged)
	assert.Nil(t, alert.AcknowledgedBy)

	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, id, notifier.alerts[0].ID)

	count, err := svc.UnacknowledgedCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestCRMAlertService_RecordValidation(t *testing.T) {
	svc, notifier := setupCRMAlertService(t)

	tests := []struct {
		name  string
		alert model.CRMAlert
	}{
		{"unknown severity", model.CRMAlert{Severity: "fatal", AlertType: model.AlertTypeDeliveryFailed, Title: "x"}},
		{"missing type", model.CRMAlert{Severity: model.AlertSeverityInfo, Title: "x"}},
		{"blank title", model.CRMAlert{Severity: model.AlertSeverityInfo, AlertType: model.AlertTypeDeliveryFailed, Title: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alert := tt.alert
			_, err := svc.Record(&alert)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
	assert.Empty(t, notifier.alerts)
}

func TestCRMAlertService_ListNewestFirst(t *testing.T) {
	svc, _ := setupCRMAlertService(t)

	for _, title := range []string{"first", "second", "third"} {
		_, err := svc.Record(&model.CRMAlert{
			Severity:  model.AlertSeverityInfo,
			AlertType: model.AlertTypeCompanyRejected,
			Title:     title,
		})
		require.NoError(t, err)
	}
	_, err := svc.Record(&model.CRMAlert{
		Severity:  model.AlertSeverityCritical,
		AlertType: model.AlertTypeDeliveryFailed,
		Title:     "critical",
	})
	require.NoError(t, err)

	alerts, total, err := svc.List(model.CRMAlertFilter{}, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	require.Len(t, alerts, 2)
	assert.Equal(t, "critical", alerts[0].Title)
	assert.Equal(t, "third", alerts[1].Title)

	severity := model.AlertSeverityInfo
	alerts, total, err = svc.List(model.CRMAlertFilter{Severity: &severity}, 2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, alerts, 1)
	assert.Equal(t, "first", alerts[0].Title)

	bogus := model.AlertSeverity("fatal")
	_, _, err = svc.List(model.CRMAlertFilter{Severity: &bogus}, 1, 10)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCRMAlertService_Acknowledge(t *testing.T) {
	svc, _ := setupCRMAlertService(t)

	id, err := svc.Record(&model.CRMAlert{
		Severity:  model.AlertSeverityWarning,
		AlertType: model.AlertTypeDeliveryFailed,
		Title:     "Email delivery retried",
	})
	require.NoError(t, err)

	acked, err := svc.Acknowledge(id, 1)
	require.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.EqualValues(t, 1, *acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)

	again, err := svc.Acknowledge(id, 2)
	require.NoError(t, err)
	require.NotNil(t, again.AcknowledgedBy)
	assert.EqualValues(t, 1, *again.AcknowledgedBy)

	count, err := svc.UnacknowledgedCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Acknowledge(999, 1)
	assert.ErrorIs(t, err, ErrAlertNotFound)
}

func TestCRMAlertService_ExportXLSX(t *testing.T) {
	svc, _ := setupCRMAlertService(t)

	companyID := uint(42)
	_, err := svc.Record(&model.CRMAlert{
		Severity:         model.AlertSeverityCritical,
		AlertType:        model.AlertTypeTaxIDInvalid,
		Title:            "VAT number no longer valid",
		Message:          "VIES reports DE136695976 as invalid",
		RelatedCompanyID: &companyID,
	})
	require.NoError(t, err)
	_, err = svc.Record(&model.CRMAlert{
		Severity:  model.AlertSeverityInfo,
		AlertType: model.AlertTypeCompanyRejected,
		Title:     "Company rejected",
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	rows, err := svc.ExportXLSX(model.CRMAlertFilter{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, rows)

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	sheetRows, err := book.GetRows("Alerts")
	require.NoError(t, err)
	require.Len(t, sheetRows, 3)
	assert.Equal(t, "Severity", sheetRows[0][2])
	assert.Equal(t, "info", sheetRows[1][2])
	assert.Equal(t, "critical", sheetRows[2][2])
	assert.Equal(t, "tax_id_invalid", sheetRows[2][3])
	assert.Equal(t, "42", sheetRows[2][6])
}
