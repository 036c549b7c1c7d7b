package service

import (
	"context"
	"errors"
	"testing"

	"github.com/smartshop/smartshop-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocumentStorage struct {
	folder      string
	filename    string
	contentType string
	err         error
}

func (s *stubDocumentStorage) PresignUpload(_ context.Context, folder, filename, contentType string) (*storage.PresignedURLResponse, error) {
	s.folder, s.filename, s.contentType = folder, filename, contentType
	if s.err != nil {
		return nil, s.err
	}
	key := storage.ObjectKey(folder, filename)
	return &storage.PresignedURLResponse{UploadURL: "https://s3.example.com/" + key, Key: key}, nil
}

func TestDocumentService_PresignUpload(t *testing.T) {
	store := &stubDocumentStorage{}
	svc := NewDocumentService(store)

	resp, err := svc.PresignUpload(context.Background(), DocumentUploadRequest{
		Filename:    "../../etc/registry.pdf",
		ContentType: "Application/PDF",
		Size:        2048,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Key)
	assert.Equal(t, "companies/documents", store.folder)
	assert.Equal(t, "registry.pdf", store.filename)
	assert.Equal(t, "application/pdf", store.contentType)
}

func TestDocumentService_PresignUploadValidation(t *testing.T) {
	svc := NewDocumentService(&stubDocumentStorage{})

	tests := []struct {
		name      string
		req       DocumentUploadRequest
		wantField string
	}{
		{"missing filename", DocumentUploadRequest{ContentType: "application/pdf", Size: 10}, "filename"},
		{"executable", DocumentUploadRequest{Filename: "a.exe", ContentType: "application/x-msdownload", Size: 10}, "content_type"},
		{"too large", DocumentUploadRequest{Filename: "a.pdf", ContentType: "application/pdf", Size: 11 << 20}, "file_size"},
		{"empty file", DocumentUploadRequest{Filename: "a.pdf", ContentType: "application/pdf"}, "file_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.PresignUpload(context.Background(), tt.req)
			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.wantField, validationErr.Field)
		})
	}
}

func TestDocumentService_StorageError(t *testing.T) {
	storageErr := errors.New("no credentials")
	svc := NewDocumentService(&stubDocumentStorage{err: storageErr})

	_, err := svc.PresignUpload(context.Background(), DocumentUploadRequest{
		Filename:    "a.png",
		ContentType: "image/png",
		Size:        10,
	})
	assert.ErrorIs(t, err, storageErr)
}
