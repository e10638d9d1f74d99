package store

import (
	"time"

	"gorm.io/gorm"
)

// Per-step statuses recorded on a processing record.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Skip reasons.
const (
	SkipDuplicate     = "duplicate"
	SkipSystemAddress = "system-address"
	SkipMalformed     = "malformed"
	SkipError         = "error"
)

// ProcessingRecord is the single terminal audit row for a fully processed
// message. The thread ID carries a unique index: it is the cross-run
// duplicate suppression key.
type ProcessingRecord struct {
	ID        string `json:"id" gorm:"type:varchar(36);primaryKey"`
	MessageID string `json:"message_id" gorm:"type:varchar(255);not null;index"`
	ThreadID  string `json:"thread_id" gorm:"type:varchar(255);not null;uniqueIndex"`
	Account   string `json:"account" gorm:"type:varchar(255)"`

	From    string `json:"from" gorm:"column:eml_from;type:varchar(255)"`
	To      string `json:"to" gorm:"column:eml_to;type:varchar(512)"`
	CC      string `json:"cc" gorm:"column:eml_cc;type:varchar(512)"`
	Subject string `json:"subject" gorm:"type:varchar(512)"`
	Body    string `json:"body" gorm:"type:mediumtext"`

	ReceivedAt time.Time `json:"received_at"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	TATSeconds float64   `json:"tat_seconds"`

	Category       string  `json:"category" gorm:"type:varchar(64)"`
	Reason         string  `json:"reason" gorm:"type:text"`
	ActionRequired bool    `json:"action_required"`
	Sentiment      string  `json:"sentiment" gorm:"type:varchar(16)"`
	CostUSD        float64 `json:"cost_usd"`
	Region         string  `json:"region" gorm:"type:varchar(16)"`

	RoutedTo     string `json:"routed_to" gorm:"type:varchar(255)"`
	Intervention bool   `json:"intervention"`

	StsRead    string `json:"sts_read" gorm:"type:varchar(16)"`
	StsClass   string `json:"sts_class" gorm:"type:varchar(16)"`
	StsRouting string `json:"sts_routing" gorm:"type:varchar(16)"`

	AutoResponse string `json:"auto_response" gorm:"type:varchar(255)"`

	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for ProcessingRecord
func (ProcessingRecord) TableName() string {
	return "processing_records"
}

// SkipRecord is the terminal audit row for a message that was not
// processed. Duplicate encounters append one row each, so the thread ID
// index is not unique here.
type SkipRecord struct {
	ID        string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	MessageID string         `json:"message_id" gorm:"type:varchar(255);index"`
	ThreadID  string         `json:"thread_id" gorm:"type:varchar(255);index"`
	Account   string         `json:"account" gorm:"type:varchar(255)"`
	Reason    string         `json:"reason" gorm:"type:varchar(32);not null"`
	Detail    string         `json:"detail" gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName specifies the table name for SkipRecord
func (SkipRecord) TableName() string {
	return "skip_records"
}
