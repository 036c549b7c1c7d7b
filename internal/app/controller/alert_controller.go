package controller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
	ws "github.com/smartshop/smartshop-backend/internal/websocket"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AlertController CRM alert log for admins
type AlertController struct {
	alertService service.CRMAlertService
	hub          *ws.Hub
	upgrader     websocket.Upgrader
}

func NewAlertController(alertService service.CRMAlertService, hub *ws.Hub, allowedOrigins []string) *AlertController {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}

	return &AlertController{
		alertService: alertService,
		hub:          hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return origins[r.Header.Get("Origin")]
			},
		},
	}
}

func parseAlertFilter(c *gin.Context) (model.CRMAlertFilter, bool) {
	var filter model.CRMAlertFilter

	if v := c.Query("severity"); v != "" {
		severity := model.AlertSeverity(v)
		if !severity.IsValid() {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "severity must be info, warning or critical")
			return filter, false
		}
		filter.Severity = &severity
	}
	if v := c.Query("acknowledged"); v != "" {
		ack, err := strconv.ParseBool(v)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "acknowledged must be true or false")
			return filter, false
		}
		filter.Acknowledged = &ack
	}
	if v := c.Query("company_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid company_id")
			return filter, false
		}
		companyID := uint(id)
		filter.CompanyID = &companyID
	}
	return filter, true
}

// List alerts newest first
// GET /api/v1/admin/alerts
func (ctrl *AlertController) List(c *gin.Context) {
	filter, ok := parseAlertFilter(c)
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	alerts, total, err := ctrl.alertService.List(filter, page, pageSize)
	if err != nil {
		respondServiceError(c, err, "list alerts")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"alerts":    alerts,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// UnreadCount GET /api/v1/admin/alerts/unread-count
func (ctrl *AlertController) UnreadCount(c *gin.Context) {
	count, err := ctrl.alertService.UnacknowledgedCount()
	if err != nil {
		respondServiceError(c, err, "count alerts")
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// Acknowledge POST /api/v1/admin/alerts/:id/acknowledge
func (ctrl *AlertController) Acknowledge(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	alert, err := ctrl.alertService.Acknowledge(id, adminID)
	if err != nil {
		respondServiceError(c, err, "acknowledge alert")
		return
	}

	if count, err := ctrl.alertService.UnacknowledgedCount(); err == nil {
		ctrl.hub.Broadcast(ws.MessageTypeUnreadCount, gin.H{"unread_count": count})
	}

	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// Export downloads the filtered alerts as XLSX
// GET /api/v1/admin/alerts/export
func (ctrl *AlertController) Export(c *gin.Context) {
	filter, ok := parseAlertFilter(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	rows, err := ctrl.alertService.ExportXLSX(filter, &buf)
	if err != nil {
		respondServiceError(c, err, "export alerts")
		return
	}

	middleware.GetLoggerFromContext(c).Info("CRM alerts exported", map[string]interface{}{
		"rows": rows,
	})

	filename := fmt.Sprintf("crm-alerts-%s.xlsx", time.Now().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// Stream pushes new alerts to the admin console
// GET /api/v1/admin/alerts/ws
// 토큰은 query parameter로 받지만 로깅하지 않음
func (ctrl *AlertController) Stream(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	adminID, ok := middleware.GetUserID(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("Failed to upgrade to WebSocket", err)
		return
	}

	client := ws.NewClient(ctrl.hub, &ws.Conn{Conn: conn}, adminID)
	ctrl.hub.Register(client)

	// 접속 직후 읽지 않은 알림 수 전송
	if count, err := ctrl.alertService.UnacknowledgedCount(); err == nil {
		if payload, err := json.Marshal(ws.Envelope{Type: ws.MessageTypeUnreadCount, Data: gin.H{"unread_count": count}}); err == nil {
			client.Send <- payload
		}
	}

	go client.WritePump()
	go client.ReadPump()

	log.Info("Alert stream connected", map[string]interface{}{
		"admin_id": adminID,
	})
}
