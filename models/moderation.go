package models

import (
	"time"
)

// Case is one row per moderation action. Rows are append-style: a resolved
// ban produces a new Unban case rather than deleting the original, and only
// a narrow set of fields (reason, references, expiration bookkeeping) is
// mutable after creation.
type Case struct {
	ID               uint64     `gorm:"primaryKey"`
	GuildID          string     `gorm:"not null;index:idx_case_guild_case,unique"`
	CaseID           int64      `gorm:"not null;index:idx_case_guild_case,unique"`
	RefID            *int64
	TargetID         string `gorm:"not null;index"`
	TargetTag        string `gorm:"not null"`
	ModID            *string
	ModTag           *string
	Action           CaseAction `gorm:"not null"`
	Reason           *string
	ActionExpiration *time.Time
	ActionProcessed  bool `gorm:"not null;index"`
	ContextMessageID *string
	LogMessageID     *string
	Multi            bool      `gorm:"not null;default:false"`
	CreatedAt        time.Time `gorm:"not null"`
}

// Report is one row per user-submitted report. Status starts at pending and
// normally moves to exactly one terminal status.
type Report struct {
	ID            uint64 `gorm:"primaryKey"`
	GuildID       string `gorm:"not null;index:idx_report_guild_report,unique"`
	ReportID      int64  `gorm:"not null;index:idx_report_guild_report,unique"`
	Type          ReportType   `gorm:"not null"`
	Status        ReportStatus `gorm:"not null;index"`
	RefID         *int64
	TargetID      string `gorm:"not null;index"`
	TargetTag     string `gorm:"not null"`
	AuthorID      string `gorm:"not null;index"`
	AuthorTag     string `gorm:"not null"`
	ModID         *string
	ModTag        *string
	Reason        string `gorm:"not null"`
	AttachmentURL *string
	MessageID     *string
	ChannelID     *string
	LogPostID     *string `gorm:"index"`
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// GuildSettings holds the per-guild moderation configuration. The tag lists
// are ordered so that a tag's index equals the enum value it maps to.
type GuildSettings struct {
	GuildID           string   `gorm:"primaryKey"`
	ModLogChannelID   string
	ModRoleID         string
	GuildLogChannelID string
	ReportChannelID   string
	ReportStatusTags  []string `gorm:"serializer:json"`
	ReportTypeTags    []string `gorm:"serializer:json"`
	UpdatedAt         time.Time
}

// GuildSequence backs per-guild monotonic id allocation for cases and
// reports. Bumped with a single atomic upsert, never count(*)+1.
type GuildSequence struct {
	GuildID   string `gorm:"primaryKey"`
	Kind      string `gorm:"primaryKey"`
	Next      int64  `gorm:"not null;default:0"`
	UpdatedAt time.Time
}
