package main

import (
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/smartshop/smartshop-backend/config"
	"github.com/smartshop/smartshop-backend/internal/app/repository"
	"github.com/smartshop/smartshop-backend/internal/app/service"
	"github.com/smartshop/smartshop-backend/internal/db"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

func main() {
	// 명령줄 인자 확인
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run cmd/seed/main.go <xlsx_file_path>")
	}

	filePath := os.Args[1]

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.Initialize(logger.Config{Level: "warn", Format: "console", EnableColor: true})

	// DB 연결
	if err := db.Initialize(&cfg.Database); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	if err := db.Migrate(&cfg.Admin); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	// XLSX 파일 읽기
	fmt.Printf("Reading XLSX file: %s\n", filePath)
	result, err := readSubmissionsFromXLSX(filePath)
	if err != nil {
		log.Fatal("Failed to read XLSX:", err)
	}

	fmt.Printf("\nSummary:\n")
	fmt.Printf("  Total rows: %d\n", result.Rows)
	fmt.Printf("  Valid companies: %d\n", len(result.Submissions))
	fmt.Printf("  Skipped rows: %d\n", result.Skipped)

	// 사용자 확인
	fmt.Print("Do you want to proceed with the import? (yes/no): ")
	var confirm string
	fmt.Scanln(&confirm)
	if confirm != "yes" && confirm != "y" {
		fmt.Println("Import cancelled.")
		return
	}

	// 일괄 등록은 알림 메일을 보내지 않는다 (dispatcher 없음). 거절 알림은 CRM에 남긴다
	alerts := service.NewCRMAlertService(repository.NewCRMAlertRepository(db.GetDB()), nil, nil)
	verification := service.NewVerificationService(
		repository.NewCompanyRepository(db.GetDB()),
		repository.NewVerificationEventRepository(db.GetDB()),
		service.NewVerificationEvaluator(service.NewVerificationRules(
			cfg.Verification.AllowedCountries,
			cfg.Verification.BlockedCountries,
			cfg.Verification.RequireDocuments,
		)),
		nil,
		alerts,
		nil,
	)

	counts := make(map[string]int)
	for i, submission := range result.Submissions {
		company, err := verification.Submit(submission)
		switch {
		case errors.Is(err, service.ErrDuplicateCompany):
			counts["duplicate"]++
			continue
		case err != nil:
			counts["failed"]++
			fmt.Printf("  row %q: %v\n", submission.LegalName, err)
			continue
		}
		counts[string(company.VerificationStatus)]++

		// 진행 상황 출력 (100개마다)
		if (i+1)%100 == 0 {
			fmt.Printf("Processed %d companies...\n", i+1)
		}
	}

	fmt.Println("Import completed successfully!")
	for status, n := range counts {
		fmt.Printf("  %s: %d\n", status, n)
	}
}
