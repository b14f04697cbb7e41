package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ActivityService records scan and automation run history in the store
type ActivityService struct {
	db       *gorm.DB
	logLevel models.LogLevel
	log      *zap.SugaredLogger
}

// NewActivityService creates a new ActivityService instance
func NewActivityService(db *gorm.DB, log *zap.SugaredLogger) *ActivityService {
	return &ActivityService{
		db:       db,
		logLevel: models.LogLevelInfo,
		log:      log,
	}
}

// NewActivityServiceWithLevel creates a new ActivityService with the
// specified minimum level
func NewActivityServiceWithLevel(db *gorm.DB, level string, log *zap.SugaredLogger) *ActivityService {
	return &ActivityService{
		db:       db,
		logLevel: parseLogLevel(level),
		log:      log,
	}
}

// parseLogLevel converts a string to LogLevel
func parseLogLevel(level string) models.LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return models.LogLevelDebug
	case "INFO":
		return models.LogLevelInfo
	case "WARN", "WARNING":
		return models.LogLevelWarn
	case "ERROR":
		return models.LogLevelError
	default:
		return models.LogLevelInfo
	}
}

// shouldLog checks if an entry should be recorded based on level
func (s *ActivityService) shouldLog(level models.LogLevel) bool {
	levelPriority := map[models.LogLevel]int{
		models.LogLevelDebug: 0,
		models.LogLevelInfo:  1,
		models.LogLevelWarn:  2,
		models.LogLevelError: 3,
	}
	return levelPriority[level] >= levelPriority[s.logLevel]
}

// Info records an informational activity entry
func (s *ActivityService) Info(component models.LogComponent, action, message string, details map[string]interface{}) {
	s.record(models.LogLevelInfo, component, action, message, details)
}

// Warn records a warning activity entry
func (s *ActivityService) Warn(component models.LogComponent, action, message string, details map[string]interface{}) {
	s.record(models.LogLevelWarn, component, action, message, details)
}

// Error records an error activity entry
func (s *ActivityService) Error(component models.LogComponent, action, message string, details map[string]interface{}) {
	s.record(models.LogLevelError, component, action, message, details)
}

// record persists the entry. Recording is best effort: a failed activity
// write must never fail the run it describes.
func (s *ActivityService) record(level models.LogLevel, component models.LogComponent, action, message string, details map[string]interface{}) {
	if s == nil || s.db == nil {
		return
	}
	if !s.shouldLog(level) {
		return
	}

	var detailsJSON string
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			detailsJSON = string(data)
		}
	}

	entry := models.ActivityLog{
		Level:     string(level),
		Component: string(component),
		Action:    action,
		Message:   message,
		Details:   detailsJSON,
		CreatedAt: time.Now(),
	}

	if err := s.db.Create(&entry).Error; err != nil {
		s.log.Warnf("[Activity] Failed to record entry: %v", err)
	}
}

// List returns recent activity entries, newest first, optionally
// filtered by level and component
func (s *ActivityService) List(limit int, level, component string) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = 100
	}

	query := s.db.Model(&models.ActivityLog{})
	if level != "" {
		query = query.Where("level = ?", strings.ToUpper(level))
	}
	if component != "" {
		query = query.Where("component = ?", component)
	}

	var entries []models.ActivityLog
	if err := query.Order("created_at DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
