package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Member is one person in the meeting group. Referenced by check-ins,
// never owned by them.
type Member struct {
	BaseModel
	Name       string `json:"name" gorm:"size:255;not null"`
	Profession string `json:"profession" gorm:"size:255"`
}

// Session is one occurrence of the recurring weekly meeting.
// At most one session may exist per calendar date.
type Session struct {
	BaseModel
	Date   time.Time `json:"date" gorm:"type:date;not null;uniqueIndex"`
	Status string    `json:"status" gorm:"size:50;not null;default:'scheduled';type:enum('scheduled','completed','cancelled')"` // scheduled, completed, cancelled
}

// Checkin records one member's outcome for one session date.
// The (member_id, session_date) pair is the natural key; writes are upserts.
type Checkin struct {
	BaseModel
	MemberID    uint       `json:"member_id" gorm:"not null;uniqueIndex:idx_member_session_date"`
	SessionDate time.Time  `json:"session_date" gorm:"type:date;not null;uniqueIndex:idx_member_session_date"`
	CheckinTime *time.Time `json:"checkin_time"`
	Status      string     `json:"status" gorm:"size:50;not null;default:'present';type:enum('present','early','late','early_leave','absent')"` // present, early, late, early_leave, absent
	Kind        string     `json:"kind" gorm:"size:50;not null;default:'present';type:enum('present','late','early_leave','proxy','absent')"`   // first-class attendance kind; proxy is no longer inferred from the message
	Message     string     `json:"message" gorm:"size:500"`

	// Relationships
	Member Member `json:"member,omitempty" gorm:"foreignKey:MemberID"`
}

// ImportJob keeps the counters of one bulk reconciliation run for later inspection.
type ImportJob struct {
	BaseModel
	JobID            string     `json:"job_id" gorm:"size:64;not null;uniqueIndex"`
	StartDate        time.Time  `json:"start_date" gorm:"type:date;not null"`
	EndDate          time.Time  `json:"end_date" gorm:"type:date;not null"`
	SessionsCreated  int        `json:"sessions_created"`
	CheckinsCreated  int        `json:"checkins_created"`
	MembersProcessed int        `json:"members_processed"`
	ErrorCount       int        `json:"error_count"`
	WarningCount     int        `json:"warning_count"`
	Report           JSON       `json:"report" gorm:"type:json"`
	Status           string     `json:"status" gorm:"size:50;not null;default:'running';type:enum('running','completed','completed_with_warnings','failed')"` // running, completed, completed_with_warnings, failed
	ReportS3Key      string     `json:"report_s3_key" gorm:"size:500"`
	FinishedAt       *time.Time `json:"finished_at"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}
