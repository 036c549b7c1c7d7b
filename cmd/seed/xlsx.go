package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smartshop/smartshop-backend/internal/app/model"
	"github.com/smartshop/smartshop-backend/pkg/util"
	"github.com/xuri/excelize/v2"
)

// 컬럼 순서: legal_name, tax_id, country_code, contact_email, website, document_refs(;로 구분)
const minColumns = 4

var (
	numOnlyReg     = regexp.MustCompile(`^[0-9]+$`)
	specialOnlyReg = regexp.MustCompile(`^[\p{P}\p{S}\s]+$`)
)

type importResult struct {
	Submissions []model.CompanySubmission
	Rows        int
	Skipped     int
}

func readSubmissionsFromXLSX(filePath string) (*importResult, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX file: %w", err)
	}
	defer f.Close()

	// 첫 번째 시트 이름 가져오기
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("no sheets found in XLSX file")
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no data found in XLSX file")
	}

	return parseRows(rows[1:]), nil
}

// parseRows drops header-less junk and in-file duplicates (country + normalized tax id)
func parseRows(rows [][]string) *importResult {
	result := &importResult{Rows: len(rows)}
	seen := make(map[string]bool)

	for _, row := range rows {
		if len(row) < minColumns {
			result.Skipped++
			continue
		}

		submission := model.CompanySubmission{
			LegalName:    strings.TrimSpace(row[0]),
			TaxID:        strings.TrimSpace(row[1]),
			CountryCode:  strings.TrimSpace(row[2]),
			ContactEmail: strings.TrimSpace(row[3]),
		}
		if len(row) > 4 {
			submission.Website = strings.TrimSpace(row[4])
		}
		if len(row) > 5 {
			for _, ref := range strings.Split(row[5], ";") {
				if ref = strings.TrimSpace(ref); ref != "" {
					submission.DocumentRefs = append(submission.DocumentRefs, ref)
				}
			}
		}

		if submission.TaxID == "" || submission.CountryCode == "" || !isValidCompanyName(submission.LegalName) {
			result.Skipped++
			continue
		}

		key := util.NormalizeCountryCode(submission.CountryCode) + "|" + util.NormalizeTaxID(submission.TaxID)
		if seen[key] {
			result.Skipped++
			continue
		}
		seen[key] = true

		result.Submissions = append(result.Submissions, submission)
	}

	return result
}

// isValidCompanyName은 회사명이 유효한지 검증합니다
func isValidCompanyName(name string) bool {
	// 최소 길이 (2글자 미만 제외)
	if len([]rune(name)) < 2 {
		return false
	}
	// 숫자만 / 특수문자만 있는 경우 제외
	if numOnlyReg.MatchString(name) || specialOnlyReg.MatchString(name) {
		return false
	}
	return true
}
