package repository

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return r.db.Create(msg).Error
}

// CreateBatch 按切片顺序批量写入，保证落库顺序与缓冲区追加顺序一致
func (r *MessageRepository) CreateBatch(msgs []*model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	for _, m := range msgs {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
	}
	return r.db.Create(msgs).Error
}

// ListByJob 按创建时间正序（最早在前）返回任务的全部消息
func (r *MessageRepository) ListByJob(jobID string) ([]*model.ChatMessage, error) {
	var msgs []*model.ChatMessage
	err := r.db.Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&msgs).Error
	return msgs, err
}

// DeleteByJob 删除任务下的全部消息，任务删除时调用
func (r *MessageRepository) DeleteByJob(jobID string) error {
	return r.db.Where("job_id = ?", jobID).Delete(&model.ChatMessage{}).Error
}

func (r *MessageRepository) CountByJob(jobID string) (int64, error) {
	var count int64
	err := r.db.Model(&model.ChatMessage{}).Where("job_id = ?", jobID).Count(&count).Error
	return count, err
}
