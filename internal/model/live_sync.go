package model

import (
	"time"

	"gorm.io/datatypes"
)

type LogLevel string

const (
	LogError   LogLevel = "Error"
	LogWarning LogLevel = "Warning"
	LogInfo    LogLevel = "Info"
	LogDebug   LogLevel = "Debug"
)

// LiveSync is the persisted owner of one SyncConfiguration.
type LiveSync struct {
	Name          string         `json:"name" gorm:"primaryKey;size:140"`
	SourceType    string         `json:"source_type" gorm:"size:140;index"`
	TargetType    string         `json:"target_type" gorm:"size:140;index"`
	Enabled       bool           `json:"enabled"`
	Bidirectional bool           `json:"bidirectional"`
	EnableLogging bool           `json:"enable_logging"`
	LogLevel      LogLevel       `json:"log_level" gorm:"size:16"`
	Config        datatypes.JSON `json:"config"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (LiveSync) TableName() string {
	return "live_syncs"
}

// Configuration parses the stored JSON text.
func (l *LiveSync) Configuration() (*SyncConfiguration, error) {
	return ParseConfig(l.Config)
}

// Involves reports whether records of recordType are synced by l, and in
// which direction.
func (l *LiveSync) Involves(recordType string) (forward bool, ok bool) {
	if recordType == l.SourceType {
		return true, true
	}
	if l.Bidirectional && recordType == l.TargetType {
		return false, true
	}
	return false, false
}

// ShouldLog applies the configured log level to a sync status.
func (l *LiveSync) ShouldLog(status SyncStatus) bool {
	if !l.EnableLogging {
		return false
	}
	switch status {
	case StatusError:
		return l.LogLevel == LogError || l.LogLevel == LogWarning || l.LogLevel == LogInfo || l.LogLevel == LogDebug
	case StatusSkipped:
		return l.LogLevel == LogWarning || l.LogLevel == LogInfo || l.LogLevel == LogDebug
	case StatusSuccess:
		return l.LogLevel == LogInfo || l.LogLevel == LogDebug
	}
	return false
}

// SyncLink remembers which target a source record was last synced into.
type SyncLink struct {
	ID         uint      `gorm:"primaryKey"`
	ConfigName string    `gorm:"size:140;uniqueIndex:idx_sync_link_source"`
	SourceType string    `gorm:"size:140;uniqueIndex:idx_sync_link_source"`
	SourceName string    `gorm:"size:140;uniqueIndex:idx_sync_link_source"`
	TargetType string    `gorm:"size:140"`
	TargetName string    `gorm:"size:140"`
	UpdatedAt  time.Time
}

func (SyncLink) TableName() string {
	return "sync_links"
}

type SyncStatus string

const (
	StatusSuccess SyncStatus = "Success"
	StatusSkipped SyncStatus = "Skipped"
	StatusError   SyncStatus = "Error"
)

// SyncLog is an audit row written for each logged sync action.
type SyncLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ConfigName   string         `json:"sync_configuration" gorm:"size:140;index"`
	Timestamp    time.Time      `json:"timestamp"`
	SourceType   string         `json:"source_doctype" gorm:"size:140"`
	SourceName   string         `json:"source_doc" gorm:"size:140"`
	TargetType   string         `json:"target_doctype" gorm:"size:140"`
	TargetName   string         `json:"target_doc" gorm:"size:140"`
	Status       SyncStatus     `json:"status" gorm:"size:16"`
	Direction    string         `json:"direction" gorm:"size:16"`
	Event        string         `json:"event" gorm:"size:16"`
	ErrorType    string         `json:"error_type,omitempty" gorm:"size:32"`
	ErrorMessage string         `json:"error_message,omitempty" gorm:"type:text"`
	Details      datatypes.JSON `json:"details,omitempty"`
}

func (SyncLog) TableName() string {
	return "sync_logs"
}

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// RecordDetail is the per-record outcome of a bulk run.
type RecordDetail struct {
	Source  string `json:"source"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Target  string `json:"target,omitempty"`
}

// Job is a bulk run, either executed inline or delegated to the runner.
type Job struct {
	ID          string         `json:"id" gorm:"primaryKey;size:36"`
	ConfigName  string         `json:"config_name" gorm:"size:140;index"`
	Status      JobStatus      `json:"status" gorm:"size:16"`
	FilterField string         `json:"filter_field,omitempty" gorm:"size:140"`
	FilterValue string         `json:"filter_value,omitempty" gorm:"size:140"`
	Total       int            `json:"total"`
	Processed   int            `json:"processed"`
	Succeeded   int            `json:"succeeded"`
	Failed      int            `json:"failed"`
	Created     int            `json:"created"`
	Updated     int            `json:"updated"`
	Skipped     int            `json:"skipped"`
	Details     []RecordDetail `json:"details" gorm:"serializer:json"`
	Error       string         `json:"error,omitempty" gorm:"type:text"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
}

func (Job) TableName() string {
	return "sync_jobs"
}

// Percent is the share of records processed so far.
func (j *Job) Percent() float64 {
	if j.Total == 0 {
		if j.Status.Terminal() {
			return 100
		}
		return 0
	}
	return float64(j.Processed) * 100 / float64(j.Total)
}
