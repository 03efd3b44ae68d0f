package testutil

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/internal/model"
)

// TestUser 创建测试用户
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*model.User)) *model.User {
	t.Helper()

	passwordHash := "$2a$10$abcdefghijklmnopqrstuvwxyz123456" // bcrypt hash placeholder
	user := &model.User{
		Email:        fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		FirstName:    "Test",
		LastName:     "User",
		PasswordHash: &passwordHash,
		IsActive:     true,
	}

	for _, opt := range opts {
		opt(user)
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// WithEmail 设置邮箱
func WithEmail(email string) func(*model.User) {
	return func(u *model.User) {
		u.Email = email
	}
}

// WithGoogleID 设置 Google 账号 ID
func WithGoogleID(googleID string) func(*model.User) {
	return func(u *model.User) {
		u.GoogleID = &googleID
		u.PasswordHash = nil
	}
}

// WithInactive 设置为停用账号
func WithInactive() func(*model.User) {
	return func(u *model.User) {
		u.IsActive = false
	}
}

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, userID int64, status string, opts ...func(*model.Job)) *model.Job {
	t.Helper()

	job := &model.Job{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        fmt.Sprintf("Test Job %d", time.Now().UnixNano()%10000),
		Prompt:       "summarize this video",
		Status:       status,
		JobType:      model.JobTypeText,
		CurrentAgent: "planner_agent",
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithJobType 设置任务类型
func WithJobType(jobType string) func(*model.Job) {
	return func(j *model.Job) {
		j.JobType = jobType
	}
}

// WithSourceURL 设置来源链接
func WithSourceURL(url string) func(*model.Job) {
	return func(j *model.Job) {
		j.SourceURL = &url
		j.JobType = model.JobTypeYouTube
	}
}

// WithAgentFileID 设置运行时文件句柄
func WithAgentFileID(fileID string) func(*model.Job) {
	return func(j *model.Job) {
		j.AgentFileID = &fileID
		j.JobType = model.JobTypeVideo
	}
}

// WithAgent 设置当前负责的 agent
func WithAgent(agent string) func(*model.Job) {
	return func(j *model.Job) {
		j.CurrentAgent = agent
	}
}

// WithErrorMessage 设置错误信息
func WithErrorMessage(msg string) func(*model.Job) {
	return func(j *model.Job) {
		j.ErrorMessage = &msg
	}
}

// TestMessage 创建测试消息
func TestMessage(t *testing.T, db *gorm.DB, jobID, sender, content string) *model.ChatMessage {
	t.Helper()

	msg := &model.ChatMessage{
		ID:      uuid.NewString(),
		JobID:   jobID,
		Sender:  sender,
		Content: content,
	}

	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("Failed to create test message: %v", err)
	}

	return msg
}
