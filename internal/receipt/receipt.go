package receipt

import (
	"time"

	"github.com/burse-app/burse/internal/extraction"
)

// Status is the lifecycle state of a receipt record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Receipt represents a captured receipt and its extracted expense data.
// The extraction fields are nullable: a null means the model could not
// read that field from the photograph.
type Receipt struct {
	ID           string                `json:"id"`
	ImagePath    string                `json:"image_path"`
	ContentType  string                `json:"content_type"`
	TotalAmount  *float64              `json:"total_amount"`
	Currency     *string               `json:"currency"`
	Date         *string               `json:"date"`
	VendorName   *string               `json:"vendor_name"`
	Description  *string               `json:"description"`
	Category     *string               `json:"category"`
	Confidence   extraction.Confidence `json:"confidence"`
	Status       Status                `json:"status"`
	CreatedAt    time.Time             `json:"created_at"`
	UpdatedAt    time.Time             `json:"updated_at"`
	ErrorMessage *string               `json:"error_message,omitempty"`
}

// EditableFields are the extraction fields a user may correct during
// review.
type EditableFields struct {
	TotalAmount *float64 `json:"total_amount"`
	Currency    *string  `json:"currency"`
	Date        *string  `json:"date"`
	VendorName  *string  `json:"vendor_name"`
	Description *string  `json:"description"`
	Category    *string  `json:"category"`
}
