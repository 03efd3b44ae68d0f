package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "chat_history:"

// Entry 缓冲区里的一条对话记录（落库前的暂存形态）
type Entry struct {
	Sender  string `json:"sender"`
	Content string `json:"content"`
}

// Store 易失的对话历史缓冲区。按 conversation id 组织为 Redis
// 追加列表，不是系统的最终记录：flush 之前崩溃会丢掉未落库的
// 对话轮次，这是可接受的。
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func key(conversationID string) string {
	return keyPrefix + conversationID
}

// Append 追加一条记录，O(1)，返回时不保证持久化
func (s *Store) Append(ctx context.Context, conversationID, sender, content string) error {
	data, err := json.Marshal(&Entry{Sender: sender, Content: content})
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}
	return s.client.RPush(ctx, key(conversationID), data).Err()
}

// ReadAll 按追加顺序（最早在前）返回全部缓冲记录
func (s *Store) ReadAll(ctx context.Context, conversationID string) ([]Entry, error) {
	items, err := s.client.LRange(ctx, key(conversationID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			continue // 忽略解析错误
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Clear 删除某个会话的全部缓冲记录
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	return s.client.Del(ctx, key(conversationID)).Err()
}

// Len 缓冲记录条数
func (s *Store) Len(ctx context.Context, conversationID string) (int64, error) {
	return s.client.LLen(ctx, key(conversationID)).Result()
}

// Keys 返回所有会话缓冲 key 对应的 conversation id（cleanup 用）
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.client.Keys(ctx, keyPrefix+"*").Result()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		ids = append(ids, k[len(keyPrefix):])
	}
	return ids, nil
}
