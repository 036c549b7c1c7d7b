package service

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/smartshop/smartshop-backend/internal/storage"
	"github.com/smartshop/smartshop-backend/pkg/logger"
)

const (
	documentFolder      = "companies/documents"
	maxDocumentSize     = 10 << 20
	maxDocumentNameSize = 255
)

var allowedDocumentTypes = []string{
	"application/pdf",
	"image/jpeg",
	"image/png",
}

// DocumentUploadRequest metadata of a registration document about to be uploaded
type DocumentUploadRequest struct {
	Filename    string
	ContentType string
	Size        int64
}

// DocumentService hands out upload URLs whose keys end up in Company.DocumentRefs
type DocumentService interface {
	PresignUpload(ctx context.Context, req DocumentUploadRequest) (*storage.PresignedURLResponse, error)
}

type documentService struct {
	storage storage.DocumentStorage
}

func NewDocumentService(store storage.DocumentStorage) DocumentService {
	return &documentService{storage: store}
}

func (s *documentService) PresignUpload(ctx context.Context, req DocumentUploadRequest) (*storage.PresignedURLResponse, error) {
	req.Filename = strings.TrimSpace(filepath.Base(req.Filename))
	req.ContentType = strings.ToLower(strings.TrimSpace(req.ContentType))

	if req.Filename == "" || req.Filename == "." || len(req.Filename) > maxDocumentNameSize {
		return nil, &ValidationError{Field: "filename", Message: "is required"}
	}
	if err := storage.ValidateContentType(req.ContentType, allowedDocumentTypes); err != nil {
		return nil, &ValidationError{Field: "content_type", Message: "must be PDF, JPEG or PNG"}
	}
	if err := storage.ValidateFileSize(req.Size, maxDocumentSize); err != nil {
		return nil, &ValidationError{Field: "file_size", Message: err.Error()}
	}

	resp, err := s.storage.PresignUpload(ctx, documentFolder, req.Filename, req.ContentType)
	if err != nil {
		logger.Error("Failed to presign document upload", err, map[string]interface{}{
			"filename": req.Filename,
		})
		return nil, err
	}

	logger.Info("Document upload URL issued", map[string]interface{}{
		"key":  resp.Key,
		"size": req.Size,
	})
	return resp, nil
}
