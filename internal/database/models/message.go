package models

import (
	"time"
)

// MessageRecord stores the durable per-message state for every mailbox
// message the scanner has ever classified. Records are mutated in place by
// action endpoints and the automation engine, and are never physically
// deleted; the Deleted flag records that the underlying mailbox message
// was removed.
type MessageRecord struct {
	ID                       string     `gorm:"primaryKey;size:128" json:"id"`
	ThreadID                 string     `gorm:"size:128;index" json:"thread_id"`
	Sender                   string     `gorm:"size:255;index" json:"sender"`
	Subject                  string     `gorm:"size:500" json:"subject"`
	BodySnippet              string     `gorm:"type:text" json:"body_snippet"`
	Category                 Category   `gorm:"size:20;index" json:"category"`
	Priority                 Priority   `gorm:"size:10;index" json:"priority"`
	AIReplyText              string     `gorm:"type:text" json:"ai_reply_text"`
	Reasoning                string     `gorm:"type:text" json:"reasoning,omitempty"`
	NeedsReply               bool       `gorm:"default:false" json:"needs_reply"`
	IsFallbackClassification bool       `gorm:"default:false" json:"is_fallback_classification"`
	ProcessedAt              time.Time  `gorm:"index" json:"processed_at"`
	Sent                     bool       `gorm:"default:false;index" json:"sent"`
	SentAt                   *time.Time `json:"sent_at,omitempty"`
	Archived                 bool       `gorm:"default:false" json:"archived"`
	Deleted                  bool       `gorm:"default:false" json:"deleted"`
}

// Category represents the classification category of a message
type Category string

const (
	CategoryImportant  Category = "Important"
	CategoryPersonal   Category = "Personal"
	CategoryNewsletter Category = "Newsletter"
	CategorySpam       Category = "Spam"
)

// IsValid checks if the category is valid
func (c Category) IsValid() bool {
	switch c {
	case CategoryImportant, CategoryPersonal, CategoryNewsletter, CategorySpam:
		return true
	}
	return false
}

// Priority represents the priority level of a message
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// IsValid checks if the priority level is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}
