package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

// AdminCompanyController admin review queue and decisions
type AdminCompanyController struct {
	verificationService service.VerificationService
}

func NewAdminCompanyController(verificationService service.VerificationService) *AdminCompanyController {
	return &AdminCompanyController{verificationService: verificationService}
}

type DecisionRequest struct {
	Reason string `json:"reason"`
}

// List companies filtered by status/country/search
// GET /api/v1/admin/companies
func (ctrl *AdminCompanyController) List(c *gin.Context) {
	filter := repository.CompanyFilter{
		Status:      model.VerificationStatus(c.Query("status")),
		CountryCode: c.Query("country"),
		Search:      c.Query("q"),
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Unknown verification status")
		return
	}

	page, pageSize := parsePage(c)
	companies, total, err := ctrl.verificationService.ListCompanies(filter, page, pageSize)
	if err != nil {
		respondServiceError(c, err, "list companies")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"companies": companies,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get one company
// GET /api/v1/admin/companies/:id
func (ctrl *AdminCompanyController) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	company, err := ctrl.verificationService.GetCompany(id)
	if err != nil {
		respondServiceError(c, err, "get company")
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}

// History returns the event log; consistent is false when it does not replay to the stored status
// GET /api/v1/admin/companies/:id/events
func (ctrl *AdminCompanyController) History(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	company, err := ctrl.verificationService.GetCompany(id)
	if err != nil {
		respondServiceError(c, err, "get company history")
		return
	}
	events, err := ctrl.verificationService.GetHistory(id)
	if err != nil {
		respondServiceError(c, err, "get company history")
		return
	}

	replayed, replayErr := service.ReplayStatus(events)
	consistent := replayErr == nil && replayed == company.VerificationStatus
	if !consistent {
		middleware.GetLoggerFromContext(c).Warn("Verification history does not match stored status", map[string]interface{}{
			"company_id": id,
			"stored":     company.VerificationStatus,
			"replayed":   replayed,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"events":     events,
		"status":     company.VerificationStatus,
		"consistent": consistent,
	})
}

// Approve POST /api/v1/admin/companies/:id/approve
func (ctrl *AdminCompanyController) Approve(c *gin.Context) {
	ctrl.decide(c, func(id uint, actor, _ string) (*model.Company, error) {
		return ctrl.verificationService.Approve(id, actor)
	})
}

// Reject POST /api/v1/admin/companies/:id/reject
func (ctrl *AdminCompanyController) Reject(c *gin.Context) {
	ctrl.decide(c, ctrl.verificationService.Reject)
}

// Reopen POST /api/v1/admin/companies/:id/reopen
func (ctrl *AdminCompanyController) Reopen(c *gin.Context) {
	ctrl.decide(c, ctrl.verificationService.Reopen)
}

// Evaluate re-runs automated checks on a pending company
// POST /api/v1/admin/companies/:id/evaluate
func (ctrl *AdminCompanyController) Evaluate(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	company, err := ctrl.verificationService.Evaluate(id)
	if err != nil {
		respondServiceError(c, err, "evaluate company")
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}

func (ctrl *AdminCompanyController) decide(c *gin.Context, apply func(id uint, actor, reason string) (*model.Company, error)) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := middleware.GetActor(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return
	}

	var req DecisionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid decision payload")
			return
		}
	}

	company, err := apply(id, actor, req.Reason)
	if err != nil {
		respondServiceError(c, err, "verification decision")
		return
	}
	c.JSON(http.StatusOK, gin.H{"company": company})
}
