package models

import (
	"database/sql/driver"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// PhoneNumbers is stored as text[] on postgres and as a postgres array literal elsewhere
type PhoneNumbers []string

func (p PhoneNumbers) Value() (driver.Value, error) {
	return pq.StringArray(p).Value()
}

func (p *PhoneNumbers) Scan(src any) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return err
	}
	*p = PhoneNumbers(arr)
	return nil
}

func (PhoneNumbers) GormDataType() string { return "phone_numbers" }

func (PhoneNumbers) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "text[]"
	}
	return "text"
}

// FailedTask records a delivery that reached a terminal failure, for operator follow-up
type FailedTask struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	TaskID     string       `gorm:"size:64;not null;index:idx_failed_tasks_task_id" json:"task_id"`
	Kind       string       `gorm:"size:64;not null" json:"kind"`
	AccountID  uint         `gorm:"not null;index:idx_failed_tasks_account_id" json:"account_id"`
	MessageID  string       `gorm:"size:36;not null;index:idx_failed_tasks_message_id" json:"message_id"`
	Recipients PhoneNumbers `json:"recipients"`
	Attempts   int          `gorm:"not null;default:0" json:"attempts"`
	ErrorKind  string       `gorm:"size:64" json:"error_kind"`
	Error      string       `gorm:"type:text" json:"error"`
	Payload    string       `gorm:"type:text" json:"payload"`
	FailedAt   time.Time    `gorm:"not null;index:idx_failed_tasks_failed_at" json:"failed_at"`
}

func (FailedTask) TableName() string { return "failed_tasks" }

// FailedTaskFilter provides filter fields for repository queries
type FailedTaskFilter struct {
	AccountID *uint
	MessageID *string
	Kind      *string
}
