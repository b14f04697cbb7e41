package models

// DailyAggregate holds per-day counters for classified and actioned
// messages. One row per calendar day, keyed by the ISO date string.
// Counters only ever grow and are updated by atomic SQL increments.
type DailyAggregate struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Date            string `gorm:"uniqueIndex;size:10;not null" json:"date"` // YYYY-MM-DD
	TotalEmails     int    `gorm:"default:0" json:"total_emails"`
	ImportantCount  int    `gorm:"default:0" json:"important_count"`
	PersonalCount   int    `gorm:"default:0" json:"personal_count"`
	NewsletterCount int    `gorm:"default:0" json:"newsletter_count"`
	SpamCount       int    `gorm:"default:0" json:"spam_count"`
	RepliesSent     int    `gorm:"default:0" json:"replies_sent"`
	EmailsArchived  int    `gorm:"default:0" json:"emails_archived"`
	EmailsDeleted   int    `gorm:"default:0" json:"emails_deleted"`
}
