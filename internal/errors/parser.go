package errors

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrorInfo 에러 정보 구조
type ErrorInfo struct {
	Code    string // 에러 코드 (codes.go 참조)
	Message string // 사용자에게 보여줄 메시지
}

// ParseError 저장소/외부 호출 에러를 코드와 메시지로 변환
// DB 내부 정보(테이블, 제약조건 이름)는 노출하지 않음
func ParseError(err error, context string) ErrorInfo {
	if err == nil {
		return ErrorInfo{
			Code:    InternalServerError,
			Message: "An internal error occurred",
		}
	}

	errLower := strings.ToLower(err.Error())

	// 1. GORM 기본 에러
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return getNotFoundInfo(context)
	}

	// 2. PostgreSQL 에러

	// 2-1. Unique constraint violation (23505)
	if strings.Contains(errLower, "duplicate key") || strings.Contains(errLower, "unique constraint") {
		return parseDuplicateKeyError(errLower)
	}

	// 2-2. Not null constraint violation (23502)
	if strings.Contains(errLower, "violates not-null constraint") || strings.Contains(errLower, "not null constraint failed") {
		return ErrorInfo{Code: ValidationRequired, Message: "A required field is missing"}
	}

	// 2-3. Serialization / lock failure (40001, 55P03)
	if strings.Contains(errLower, "could not serialize") || strings.Contains(errLower, "could not obtain lock") {
		return ErrorInfo{
			Code:    VerificationConcurrentDecision,
			Message: "The record was modified concurrently, please retry",
		}
	}

	// 3. 네트워크/연결 에러
	if strings.Contains(errLower, "connection refused") ||
		strings.Contains(errLower, "no such host") ||
		strings.Contains(errLower, "timeout") {
		return ErrorInfo{
			Code:    InternalExternalAPI,
			Message: "An upstream service is unavailable, please retry later",
		}
	}

	return ErrorInfo{
		Code:    InternalServerError,
		Message: getDefaultErrorMessage(context),
	}
}

func parseDuplicateKeyError(errLower string) ErrorInfo {
	if strings.Contains(errLower, "email") || strings.Contains(errLower, "idx_users_email") {
		return ErrorInfo{Code: ResourceAlreadyExists, Message: "This email is already in use"}
	}
	if strings.Contains(errLower, "recipient") {
		return ErrorInfo{Code: ResourceConflict, Message: "Delivery state was updated concurrently"}
	}
	return ErrorInfo{Code: ResourceAlreadyExists, Message: "The record already exists"}
}

// getNotFoundInfo context에 따른 Not Found 코드/메시지
func getNotFoundInfo(context string) ErrorInfo {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "company"):
		return ErrorInfo{Code: CompanyNotFound, Message: "Company not found"}
	case strings.Contains(contextLower, "alert"):
		return ErrorInfo{Code: AlertNotFound, Message: "Alert not found"}
	case strings.Contains(contextLower, "user"):
		return ErrorInfo{Code: ResourceNotFound, Message: "User not found"}
	}
	return ErrorInfo{Code: ResourceNotFound, Message: "The requested resource was not found"}
}

// getDefaultErrorMessage context에 따른 기본 에러 메시지
func getDefaultErrorMessage(context string) string {
	contextLower := strings.ToLower(context)

	switch {
	case strings.Contains(contextLower, "register") || strings.Contains(contextLower, "create"):
		return "Registration failed, please retry later"
	case strings.Contains(contextLower, "export"):
		return "Export failed, please retry later"
	case strings.Contains(contextLower, "upload"):
		return "Upload could not be prepared, please retry later"
	}
	return "An internal error occurred, please retry later"
}

// ParseAndRespond 에러를 파싱하여 응답 반환 (헬퍼 함수)
func ParseAndRespond(c interface{ JSON(int, interface{}) }, statusCode int, err error, context string) {
	errorInfo := ParseError(err, context)
	c.JSON(statusCode, ErrorResponse{
		Error:   errorInfo.Code,
		Message: errorInfo.Message,
	})
}
