package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportDone       ExportStatus = "done"
	ExportFailed     ExportStatus = "failed"
)

const (
	PaperA4     = "A4"
	PaperLetter = "Letter"
)

// Export records one PDF rendering of a CV and where the file was stored.
type Export struct {
	ID        string       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string       `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	CVID      string       `gorm:"column:cv_id;type:uuid;index;not null" json:"cv_id"`
	Status    ExportStatus `gorm:"column:status;type:varchar(16);index" json:"status"`
	Format    string       `gorm:"column:format;type:varchar(8)" json:"format"`
	PaperSize string       `gorm:"column:paper_size;type:varchar(8)" json:"paper_size"`

	FileName  string `gorm:"column:file_name;type:text" json:"file_name"`
	ObjectKey string `gorm:"column:object_key;type:text" json:"-"`
	SizeBytes int64  `gorm:"column:size_bytes" json:"size_bytes"`
	Error     string `gorm:"column:error;type:text" json:"error,omitempty"`

	Options datatypes.JSON `gorm:"column:options;type:jsonb" json:"options,omitempty"`

	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
	CompletedAt *time.Time `gorm:"column:completed_at;type:timestamptz" json:"completed_at,omitempty"`

	// DownloadURL is filled on read for finished exports.
	DownloadURL string `gorm:"-" json:"download_url,omitempty"`
}

func (Export) TableName() string { return "cv_exports" }

func (e *Export) BeforeCreate(*gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

func (e *Export) Finished() bool {
	return e.Status == ExportDone || e.Status == ExportFailed
}

// ExportOptions are the user-selectable rendering options.
type ExportOptions struct {
	PaperSize string `json:"paper_size" validate:"omitempty,oneof=A4 Letter"`
	Template  string `json:"template,omitempty" validate:"omitempty,oneof=classic modern"`
}

func (o ExportOptions) Normalized() ExportOptions {
	if o.PaperSize == "" {
		o.PaperSize = PaperA4
	}
	return o
}
