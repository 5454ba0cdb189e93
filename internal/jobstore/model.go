package jobstore

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Status is the lifecycle state of an ImageJob.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Value implements driver.Valuer so Status can be written as a plain text column.
func (s Status) Value() (driver.Value, error) {
	return string(s), nil
}

// Scan implements sql.Scanner.
func (s *Status) Scan(value interface{}) error {
	switch v := value.(type) {
	case string:
		*s = Status(v)
	case []byte:
		*s = Status(v)
	default:
		return fmt.Errorf("jobstore: cannot scan %T into Status", value)
	}
	return nil
}

// ImageJob is the durable record of an accepted image generation request.
type ImageJob struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
	Status      Status         `db:"status" json:"status"`
	Prompt      string         `db:"prompt" json:"prompt"`
	Model       string         `db:"model" json:"model"`
	Size        string         `db:"size" json:"size"`
	URLs        pq.StringArray `db:"urls" json:"urls,omitempty"`
	IPFSURLs    pq.StringArray `db:"ipfs_urls" json:"ipfs_urls,omitempty"`
	UserID      *string        `db:"user_id" json:"user_id,omitempty"`
	CallbackURL *string        `db:"callback_url" json:"callback_url,omitempty"`
	Error       *string        `db:"error" json:"error,omitempty"`
}

// Update describes a partial mutation to an ImageJob. Nil fields are left unchanged.
type Update struct {
	Status   Status
	URLs     []string
	IPFSURLs []string
	Error    *string
}
