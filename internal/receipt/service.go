package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/burse-app/burse/internal/extraction"
)

// Extractor turns a captured image into validated expense fields.
type Extractor interface {
	Extract(ctx context.Context, data []byte, contentType string) (extraction.Result, error)
}

// IDGenerator generates unique IDs for receipts
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time
type TimeSource interface {
	Now() time.Time
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

type defaultTimeSource struct{}

func (defaultTimeSource) Now() time.Time {
	return time.Now()
}

// Service coordinates receipt capture, extraction, and persistence.
type Service struct {
	db          DB
	extractor   Extractor
	storage     Storage
	idGenerator IDGenerator
	timeSource  TimeSource
}

// NewService creates a new Service with default ID generator and time source
func NewService(db DB, extractor Extractor, storage Storage) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: uuidGenerator{},
		timeSource:  defaultTimeSource{},
	}
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(db DB, extractor Extractor, storage Storage, idGen IDGenerator, timeSrc TimeSource) *Service {
	return &Service{
		db:          db,
		extractor:   extractor,
		storage:     storage,
		idGenerator: idGen,
		timeSource:  timeSrc,
	}
}

// Capture stores the image and inserts a pending receipt row. Extraction
// happens in Process so a failed model call never loses the capture.
func (s *Service) Capture(filename string, data []byte, contentType string) (*Receipt, error) {
	now := s.timeSource.Now()

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".jpg"
	}
	path, err := s.storage.Save(ext, data)
	if err != nil {
		return nil, fmt.Errorf("saving image: %w", err)
	}

	receipt := &Receipt{
		ID:          s.idGenerator.Generate(),
		ImagePath:   path,
		ContentType: contentType,
		Confidence:  extraction.ConfidenceLow,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.db.SaveReceipt(receipt); err != nil {
		// Clean up the stored image since the row never existed
		s.storage.Delete(path)
		return nil, fmt.Errorf("saving receipt: %w", err)
	}

	return receipt, nil
}

// Process runs extraction for a captured receipt and records the outcome
// on its row. Extraction failures are recorded, not returned: the receipt
// moves to the error state with a user-facing message.
func (s *Service) Process(ctx context.Context, id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	receipt.Status = StatusProcessing
	receipt.ErrorMessage = nil
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("updating receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.ImagePath)
	if err != nil {
		slog.Error("Failed to read captured image", "id", receipt.ID, "path", receipt.ImagePath, "error", err)
		return s.recordFailure(receipt, "Could not load image")
	}

	result, err := s.extractor.Extract(ctx, data, receipt.ContentType)
	if err != nil {
		slog.Error("Extraction failed", "id", receipt.ID, "error", err)
		return s.recordFailure(receipt, userMessage(err))
	}

	receipt.TotalAmount = result.TotalAmount
	receipt.Currency = result.Currency
	receipt.Date = result.Date
	receipt.VendorName = result.VendorName
	receipt.Description = result.Description
	receipt.Category = result.Category
	receipt.Confidence = result.Confidence
	receipt.Status = StatusDone
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving extracted receipt: %w", err)
	}
	return receipt, nil
}

func (s *Service) recordFailure(receipt *Receipt, message string) (*Receipt, error) {
	receipt.Status = StatusError
	receipt.ErrorMessage = &message
	receipt.UpdatedAt = s.timeSource.Now()
	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("recording extraction failure: %w", err)
	}
	return receipt, nil
}

// userMessage maps extraction failures onto the strings shown during
// review.
func userMessage(err error) string {
	var extractionErr *extraction.Error
	if !errors.As(err, &extractionErr) {
		return "Request failed"
	}
	switch extractionErr.Kind {
	case extraction.KindMissingCredential:
		return "Missing API key"
	case extraction.KindImageLoad:
		return "Could not load image"
	case extraction.KindRateLimited:
		return "Rate limited. Try again later."
	case extraction.KindServer:
		return "Server error. Try again later."
	case extraction.KindNetwork:
		return "Network error"
	case extraction.KindInvalidResponse:
		return "Invalid response"
	}
	return "Request failed"
}

// Update applies review edits to a receipt's expense fields.
func (s *Service) Update(id string, fields EditableFields) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}

	receipt.TotalAmount = fields.TotalAmount
	receipt.Currency = fields.Currency
	receipt.Date = fields.Date
	receipt.VendorName = fields.VendorName
	receipt.Description = fields.Description
	receipt.Category = fields.Category
	receipt.UpdatedAt = s.timeSource.Now()

	if err := s.db.SaveReceipt(receipt); err != nil {
		return nil, fmt.Errorf("saving receipt: %w", err)
	}
	return receipt, nil
}

// GetReceipt retrieves a receipt by ID
func (s *Service) GetReceipt(id string) (*Receipt, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, fmt.Errorf("getting receipt: %w", err)
	}
	return receipt, nil
}

// ListReceipts returns all receipts, newest first
func (s *Service) ListReceipts() ([]*Receipt, error) {
	receipts, err := s.db.ListReceipts()
	if err != nil {
		return nil, fmt.Errorf("listing receipts: %w", err)
	}
	return receipts, nil
}

// DeleteReceipt removes a receipt and its image
func (s *Service) DeleteReceipt(id string) error {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return fmt.Errorf("getting receipt for deletion: %w", err)
	}

	if err := s.storage.Delete(receipt.ImagePath); err != nil {
		// Log but continue with database deletion
		slog.Warn("Failed to delete image", "path", receipt.ImagePath, "error", err)
	}

	if err := s.db.DeleteReceipt(id); err != nil {
		return fmt.Errorf("deleting receipt from database: %w", err)
	}
	return nil
}

// GetReceiptFile retrieves the stored image for a receipt
func (s *Service) GetReceiptFile(id string) ([]byte, string, error) {
	receipt, err := s.db.GetReceipt(id)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt: %w", err)
	}

	data, err := s.storage.Get(receipt.ImagePath)
	if err != nil {
		return nil, "", fmt.Errorf("getting receipt image: %w", err)
	}

	return data, receipt.ContentType, nil
}
