package model

import (
	"time"
)

// 消息发送方
const (
	SenderUser = "USER"
	SenderAI   = "AI"
)

// ChatMessage 一条已持久化的对话消息，只追加不修改
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	JobID     string    `gorm:"size:36;not null;index" json:"job_id"`
	Sender    string    `gorm:"size:10;not null" json:"sender"` // USER 或 AI
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
