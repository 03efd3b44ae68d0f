package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const (
	ChannelJobStatus = "job_status"
)

// StatusMessage 任务状态消息
type StatusMessage struct {
	Type   string `json:"type"`
	UserID int64  `json:"user_id"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Agent  string `json:"agent,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Publisher Redis 发布者
type Publisher struct {
	client *redis.Client
}

// NewPublisher 创建发布者
func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishStatus 发布任务状态变更消息
func (p *Publisher) PublishStatus(ctx context.Context, msg *StatusMessage) error {
	msg.Type = "job_status"

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}

	return p.client.Publish(ctx, ChannelJobStatus, data).Err()
}

// Subscriber Redis 订阅者
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber 创建订阅者
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe 订阅任务状态消息
func (s *Subscriber) Subscribe(ctx context.Context, handler func(*StatusMessage)) error {
	pubsub := s.client.Subscribe(ctx, ChannelJobStatus)
	defer pubsub.Close()

	ch := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			var statusMsg StatusMessage
			if err := json.Unmarshal([]byte(msg.Payload), &statusMsg); err != nil {
				continue // 忽略解析错误
			}

			handler(&statusMsg)
		}
	}
}
