package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"exmora-backend/internal/model"
	"exmora-backend/internal/pkg/pdfextract"
)

var (
	ErrTooManyFiles    = errors.New("too many files")
	ErrUnsupportedFile = errors.New("only PDF files are supported")
	ErrFileTooLarge    = errors.New("file too large")
	ErrExtractFailed   = errors.New("text extraction failed")
)

// BlobStore keeps the original PDF bytes. Strictly best-effort: a failed
// store never aborts the upload.
type BlobStore interface {
	Store(ctx context.Context, key string, data []byte) (string, error)
}

type UploadService struct {
	store        SessionStore
	blob         BlobStore
	publisher    UsagePublisher
	extract      func(raw []byte) (string, error)
	maxFiles     int
	maxFileBytes int64
}

type UploadFile struct {
	Filename string
	Data     []byte
}

type UploadResult struct {
	SessionID  uint     `json:"session_id"`
	Title      string   `json:"title"`
	TextLength int      `json:"text_length"`
	Filenames  []string `json:"filenames"`
}

func NewUploadService(
	store SessionStore,
	blob BlobStore,
	publisher UsagePublisher,
	maxFiles int,
	maxFileBytes int64,
) *UploadService {
	if maxFiles <= 0 {
		maxFiles = 3
	}
	if maxFileBytes <= 0 {
		maxFileBytes = 10 << 20
	}
	return &UploadService{
		store:        store,
		blob:         blob,
		publisher:    publisher,
		extract:      pdfextract.ExtractText,
		maxFiles:     maxFiles,
		maxFileBytes: maxFileBytes,
	}
}

// Upload validates the batch, extracts each file's text, stores the raw
// bytes remotely when possible, and creates the session with all documents
// in one atomic write. A single failed extraction aborts the whole batch
// before anything is persisted.
func (s *UploadService) Upload(ctx context.Context, userID string, files []UploadFile) (*UploadResult, error) {
	if userID == "" || len(files) == 0 {
		return nil, ErrInvalidInput
	}
	if len(files) > s.maxFiles {
		return nil, fmt.Errorf("%w: maximum %d PDF files allowed", ErrTooManyFiles, s.maxFiles)
	}

	for _, f := range files {
		if strings.ToLower(filepath.Ext(f.Filename)) != ".pdf" {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, f.Filename)
		}
		if int64(len(f.Data)) > s.maxFileBytes {
			return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, f.Filename)
		}
	}

	documents := make([]model.Document, 0, len(files))
	filenames := make([]string, 0, len(files))
	totalTextLength := 0

	for i, f := range files {
		text, err := s.extract(f.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtractFailed, f.Filename, err)
		}
		totalTextLength += len(text)

		pdfURL := ""
		if s.blob != nil {
			key := fmt.Sprintf("uploads/%s/%s_%s", userID, uuid.NewString(), f.Filename)
			url, err := s.blob.Store(ctx, key, f.Data)
			if err != nil {
				log.Printf("blob store failed for %s: %v", f.Filename, err)
			} else {
				pdfURL = url
			}
		}

		documents = append(documents, model.Document{
			Position: i,
			Filename: f.Filename,
			Text:     text,
			PDFURL:   pdfURL,
		})
		filenames = append(filenames, f.Filename)
	}

	title := files[0].Filename
	if len(files) > 1 {
		title += fmt.Sprintf(" + %d others", len(files)-1)
	}

	session := &model.Session{
		UserID:    userID,
		Title:     title,
		Shape:     model.ShapeMultiDocument,
		Documents: documents,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		event := model.UsageEvent{
			UserID:  userID,
			Date:    model.UsageDate(time.Now()),
			Uploads: len(files),
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			log.Printf("publish upload usage event failed: %v", err)
		}
	}

	return &UploadResult{
		SessionID:  session.ID,
		Title:      title,
		TextLength: totalTextLength,
		Filenames:  filenames,
	}, nil
}
