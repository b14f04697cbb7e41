package models

import (
	"time"
)

// ActivityLog represents a persisted activity log entry for scan and
// automation runs
type ActivityLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"size:20;index" json:"level"` // DEBUG, INFO, WARN, ERROR
	Component string    `gorm:"size:50;index" json:"component"`
	Action    string    `gorm:"size:100" json:"action"`
	Message   string    `gorm:"type:text" json:"message"`
	Details   string    `gorm:"type:text" json:"details"` // JSON string for additional details
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// LogLevel represents the log level
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// LogComponent represents the component that generated the log
type LogComponent string

const (
	LogComponentScan       LogComponent = "scan"
	LogComponentAutomation LogComponent = "automation"
	LogComponentMailbox    LogComponent = "mailbox"
	LogComponentStore      LogComponent = "store"
	LogComponentAPI        LogComponent = "api"
	LogComponentCLI        LogComponent = "cli"
)
