package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrConcurrentUpdate the company row changed between read and write
	ErrConcurrentUpdate = errors.New("company was modified concurrently")

	// ErrDuplicateTaxID another non-rejected company holds the same country and tax ID
	ErrDuplicateTaxID = errors.New("tax ID already held by an active company")
)

// activeTaxIDIndex partial unique index over (country_code, tax_id) of non-rejected companies
const activeTaxIDIndex = "idx_companies_active_tax_id"

// isActiveTaxIDViolation matches the unique violation of activeTaxIDIndex.
// postgres names the index, sqlite names the columns.
func isActiveTaxIDViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "duplicate key") && !strings.Contains(msg, "unique constraint failed") {
		return false
	}
	return strings.Contains(msg, activeTaxIDIndex) || strings.Contains(msg, "tax_id")
}

// TransitionFunc decides the next state of a locked company.
// It mutates the company in place and returns the events to append.
// Returning an error aborts the transaction without writing anything.
type TransitionFunc func(company *model.Company) ([]model.VerificationEvent, error)

type CompanyFilter struct {
	Status      model.VerificationStatus
	CountryCode string
	Search      string
}

type CompanyRepository interface {
	Create(company *model.Company) error
	FindByID(id uint) (*model.Company, error)
	FindByTaxID(countryCode, taxID string) (*model.Company, error)
	List(filter CompanyFilter, page, pageSize int) ([]model.Company, int64, error)
	ListByStatusSince(status model.VerificationStatus, before time.Time, limit int) ([]model.Company, error)
	ListDueForRecheck(before time.Time, limit int) ([]model.Company, error)
	MarkRechecked(id uint, at time.Time) error
	Transition(companyID uint, decide TransitionFunc) (*model.Company, []model.VerificationEvent, error)
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(company *model.Company) error {
	logger.Debug("Creating company in database", map[string]interface{}{
		"legal_name":   company.LegalName,
		"country_code": company.CountryCode,
	})

	if err := r.db.Create(company).Error; err != nil {
		if isActiveTaxIDViolation(err) {
			return ErrDuplicateTaxID
		}
		logger.Error("Failed to create company in database", err, map[string]interface{}{
			"legal_name":   company.LegalName,
			"country_code": company.CountryCode,
		})
		return err
	}

	logger.Debug("Company created in database", map[string]interface{}{
		"company_id": company.ID,
	})
	return nil
}

func (r *companyRepository) FindByID(id uint) (*model.Company, error) {
	var company model.Company
	if err := r.db.First(&company, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Error("Failed to find company by ID", err, map[string]interface{}{
				"company_id": id,
			})
		}
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindByTaxID(countryCode, taxID string) (*model.Company, error) {
	var company model.Company
	err := r.db.
		Where("country_code = ? AND tax_id = ?", countryCode, taxID).
		Order("id DESC").
		First(&company).Error
	if err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) List(filter CompanyFilter, page, pageSize int) ([]model.Company, int64, error) {
	logger.Debug("Listing companies", map[string]interface{}{
		"status":       filter.Status,
		"country_code": filter.CountryCode,
		"search":       filter.Search,
		"page":         page,
		"page_size":    pageSize,
	})

	query := r.db.Model(&model.Company{})
	if filter.Status != "" {
		query = query.Where("verification_status = ?", filter.Status)
	}
	if filter.CountryCode != "" {
		query = query.Where("country_code = ?", filter.CountryCode)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("legal_name LIKE ? OR tax_id LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count companies", err)
		return nil, 0, err
	}

	var companies []model.Company
	offset := (page - 1) * pageSize
	if err := query.Order("submitted_at DESC, id DESC").Offset(offset).Limit(pageSize).Find(&companies).Error; err != nil {
		logger.Error("Failed to list companies", err)
		return nil, 0, err
	}

	return companies, total, nil
}

// ListByStatusSince companies in status whose last change is older than before
func (r *companyRepository) ListByStatusSince(status model.VerificationStatus, before time.Time, limit int) ([]model.Company, error) {
	var companies []model.Company
	err := r.db.
		Where("verification_status = ? AND updated_at < ?", status, before).
		Order("updated_at ASC").
		Limit(limit).
		Find(&companies).Error
	if err != nil {
		logger.Error("Failed to list companies by status", err, map[string]interface{}{
			"status": status,
		})
		return nil, err
	}
	return companies, nil
}

// ListDueForRecheck approved companies never rechecked or rechecked before the cutoff
func (r *companyRepository) ListDueForRecheck(before time.Time, limit int) ([]model.Company, error) {
	var companies []model.Company
	err := r.db.
		Where("verification_status = ?", model.VerificationStatusApproved).
		Where("last_rechecked_at IS NULL OR last_rechecked_at < ?", before).
		Order("id ASC").
		Limit(limit).
		Find(&companies).Error
	if err != nil {
		logger.Error("Failed to list companies due for recheck", err)
		return nil, err
	}
	return companies, nil
}

// MarkRechecked stamps last_rechecked_at without touching status or version
func (r *companyRepository) MarkRechecked(id uint, at time.Time) error {
	err := r.db.Model(&model.Company{}).
		Where("id = ?", id).
		UpdateColumn("last_rechecked_at", at).Error
	if err != nil {
		logger.Error("Failed to mark company rechecked", err, map[string]interface{}{
			"company_id": id,
		})
	}
	return err
}

// Transition locks the company row, applies decide and persists the new state
// together with its events in one transaction. The write is guarded by the
// version read under the lock.
func (r *companyRepository) Transition(companyID uint, decide TransitionFunc) (*model.Company, []model.VerificationEvent, error) {
	var (
		company model.Company
		events  []model.VerificationEvent
	)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&company, companyID).Error; err != nil {
			return err
		}

		expectedVersion := company.Version
		decided, err := decide(&company)
		if err != nil {
			return err
		}
		if len(decided) == 0 {
			return nil
		}

		company.Version = expectedVersion + 1
		company.UpdatedAt = time.Now()
		result := tx.Model(&model.Company{}).
			Where("id = ? AND version = ?", company.ID, expectedVersion).
			Updates(map[string]interface{}{
				"verification_status": company.VerificationStatus,
				"verification_notes":  company.VerificationNotes,
				"decided_at":          company.DecidedAt,
				"version":             company.Version,
				"updated_at":          company.UpdatedAt,
			})
		if result.Error != nil {
			if isActiveTaxIDViolation(result.Error) {
				return ErrDuplicateTaxID
			}
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}

		for i := range decided {
			decided[i].CompanyID = company.ID
			if decided[i].CreatedAt.IsZero() {
				decided[i].CreatedAt = company.UpdatedAt
			}
		}
		if err := tx.Create(&decided).Error; err != nil {
			return err
		}

		events = decided
		return nil
	})
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Company transition aborted", map[string]interface{}{
				"company_id": companyID,
				"error":      err.Error(),
			})
		}
		return nil, nil, err
	}

	logger.Debug("Company transition committed", map[string]interface{}{
		"company_id": company.ID,
		"status":     company.VerificationStatus,
		"version":    company.Version,
		"events":     len(events),
	})
	return &company, events, nil
}
