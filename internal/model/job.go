package model

import (
	"time"
)

// 任务状态（对前端可见的字符串枚举）
const (
	JobStatusPending    = "PENDING"
	JobStatusProcessing = "PROCESSING"
	JobStatusActive     = "ACTIVE"
	JobStatusError      = "ERROR"
)

// 任务类型
const (
	JobTypeText    = "TEXT"
	JobTypeVideo   = "VIDEO"
	JobTypeYouTube = "YOUTUBE"
)

// Job 一个对话线程，至多绑定一个媒体主体（上传视频或 YouTube 链接）
type Job struct {
	ID              string    `gorm:"primaryKey;size:36" json:"id"`
	UserID          int64     `gorm:"not null;index" json:"user_id"`
	Title           string    `gorm:"size:200;not null" json:"title"`
	Prompt          string    `gorm:"type:text;not null" json:"prompt"`
	Status          string    `gorm:"size:20;default:PENDING;index" json:"status"` // PENDING, PROCESSING, ACTIVE, ERROR
	JobType         string    `gorm:"size:20;not null" json:"job_type"`            // TEXT, VIDEO, YOUTUBE
	CurrentAgent    string    `gorm:"size:50;not null;default:planner_agent" json:"current_agent"`
	AgentFileID     *string   `gorm:"size:128" json:"agent_file_id,omitempty"`
	SourceURL       *string   `gorm:"size:500" json:"source_url,omitempty"`
	DisplayVideoURL *string   `gorm:"size:500" json:"display_video_url,omitempty"`
	ErrorMessage    *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	// 关联
	Messages []ChatMessage `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"messages,omitempty"`
}

func (Job) TableName() string {
	return "jobs"
}

// HasMediaSubject 任务是否已绑定媒体主体
func (j *Job) HasMediaSubject() bool {
	return (j.AgentFileID != nil && *j.AgentFileID != "") || (j.SourceURL != nil && *j.SourceURL != "")
}
