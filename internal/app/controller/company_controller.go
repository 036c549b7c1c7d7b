package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	apperrors "github.com/smartshop/smartshop-backend/internal/errors"
	"github.com/smartshop/smartshop-backend/internal/middleware"
)

// CompanyController public partner intake
type CompanyController struct {
	verificationService service.VerificationService
	documentService     service.DocumentService
}

func NewCompanyController(verificationService service.VerificationService, documentService service.DocumentService) *CompanyController {
	return &CompanyController{
		verificationService: verificationService,
		documentService:     documentService,
	}
}

type RegisterCompanyRequest struct {
	LegalName    string   `json:"legal_name"`
	TaxID        string   `json:"tax_id"`
	CountryCode  string   `json:"country_code"`
	ContactEmail string   `json:"contact_email"`
	Website      string   `json:"website"`
	DocumentRefs []string `json:"document_refs" binding:"max=20"`
}

type DocumentUploadURLRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"required"`
}

// companyStatusResponse what a partner may see about its own application
type companyStatusResponse struct {
	ID                 uint                     `json:"id"`
	LegalName          string                   `json:"legal_name"`
	VerificationStatus model.VerificationStatus `json:"verification_status"`
	VerificationNotes  string                   `json:"verification_notes,omitempty"`
}

// Register submits a company for verification
// POST /api/v1/companies/register
func (ctrl *CompanyController) Register(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req RegisterCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid company registration request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid registration payload")
		return
	}

	company, err := ctrl.verificationService.Submit(model.CompanySubmission{
		LegalName:    req.LegalName,
		TaxID:        req.TaxID,
		CountryCode:  req.CountryCode,
		ContactEmail: req.ContactEmail,
		Website:      req.Website,
		DocumentRefs: req.DocumentRefs,
	})
	if err != nil {
		respondServiceError(c, err, "register company")
		return
	}

	log.Info("Company registration accepted", map[string]interface{}{
		"company_id": company.ID,
		"status":     company.VerificationStatus,
	})

	c.JSON(http.StatusCreated, gin.H{
		"company": companyStatusResponse{
			ID:                 company.ID,
			LegalName:          company.LegalName,
			VerificationStatus: company.VerificationStatus,
			VerificationNotes:  company.VerificationNotes,
		},
	})
}

// DocumentUploadURL issues a presigned S3 PUT URL for a registration document
// POST /api/v1/companies/documents/presigned-url
func (ctrl *CompanyController) DocumentUploadURL(c *gin.Context) {
	var req DocumentUploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "filename, content_type and file_size are required")
		return
	}

	resp, err := ctrl.documentService.PresignUpload(c.Request.Context(), service.DocumentUploadRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.FileSize,
	})
	if err != nil {
		var validationErr *service.ValidationError
		if errors.As(err, &validationErr) {
			code := apperrors.UploadInvalidFileType
			if validationErr.Field == "file_size" {
				code = apperrors.UploadFileTooLarge
			}
			apperrors.BadRequest(c, code, validationErr.Error())
			return
		}
		middleware.GetLoggerFromContext(c).Error("Failed to issue upload URL", err)
		apperrors.RespondWithError(c, http.StatusInternalServerError, apperrors.UploadFailed, "Upload could not be prepared")
		return
	}

	c.JSON(http.StatusOK, resp)
}
