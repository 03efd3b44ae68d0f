package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/internal/model"
	"github.com/qs3c/vidchat_go_server/internal/pkg/history"
	"github.com/qs3c/vidchat_go_server/internal/repository"
)

// HistoryService 负责把缓冲区里的对话轮次搬进持久存储。
// 语义是 at-least-once:先落库再清缓冲,两步之间崩溃会在下一轮
// 重复落库,比丢消息可接受。
type HistoryService struct {
	jobRepo *repository.JobRepository
	msgRepo *repository.MessageRepository
	buffer  *history.Store
}

func NewHistoryService(jobRepo *repository.JobRepository, msgRepo *repository.MessageRepository, buffer *history.Store) *HistoryService {
	return &HistoryService{
		jobRepo: jobRepo,
		msgRepo: msgRepo,
		buffer:  buffer,
	}
}

// Flush 把某个会话的缓冲记录按追加顺序写入 chat_messages,然后清空缓冲。
// 空缓冲直接返回。落库时赋予严格递增的时间戳,保证持久顺序与缓冲顺序一致。
func (s *HistoryService) Flush(ctx context.Context, conversationID string, userID int64) error {
	if _, err := s.jobRepo.GetByID(conversationID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	entries, err := s.buffer.ReadAll(ctx, conversationID)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	// 按毫秒步进:MySQL 的 DATETIME(3) 只保留毫秒,更细的偏移会被
	// 截断成同一时刻,读取时 ORDER BY created_at 就无法还原缓冲顺序
	base := time.Now()
	msgs := make([]*model.ChatMessage, 0, len(entries))
	for i, e := range entries {
		msgs = append(msgs, &model.ChatMessage{
			JobID:     conversationID,
			Sender:    e.Sender,
			Content:   e.Content,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}

	if err := s.msgRepo.CreateBatch(msgs); err != nil {
		return err
	}

	return s.buffer.Clear(ctx, conversationID)
}
