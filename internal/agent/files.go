package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/pkg/retry"
)

// 运行时文件状态
const (
	FileStateProcessing = "PROCESSING"
	FileStateActive     = "ACTIVE"
	FileStateFailed     = "FAILED"
)

// RuntimeFileStore 托管在智能体运行时的媒体文件。
// 上传后文件先进入 PROCESSING,必须等到 ACTIVE 才能在调用中引用。
type RuntimeFileStore struct {
	client   *openai.Client
	waitSecs int
}

func NewRuntimeFileStore(cfg *config.AgentConfig) *RuntimeFileStore {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	waitSecs := cfg.FileWaitSecs
	if waitSecs <= 0 {
		waitSecs = 120
	}

	return &RuntimeFileStore{
		client:   openai.NewClientWithConfig(clientConfig),
		waitSecs: waitSecs,
	}
}

// Upload 上传媒体文件到运行时
func (s *RuntimeFileStore) Upload(ctx context.Context, filename string, data []byte) (*FileInfo, error) {
	file, err := s.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    filename,
		Bytes:   data,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return nil, wrapAPIError("file upload failed", err)
	}

	return &FileInfo{ID: file.ID, State: normalizeFileState(file.Status)}, nil
}

// WaitActive 轮询文件状态直到 ACTIVE。处理失败或等待超限返回错误。
func (s *RuntimeFileStore) WaitActive(ctx context.Context, fileID string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.waitSecs)*time.Second)
	defer cancel()

	policy := retry.Policy{
		MaxAttempts: 30,
		Interval:    2 * time.Second,
		MaxInterval: 10 * time.Second,
		Multiplier:  1.5,
	}

	err := retry.Do(ctx, policy, func(ctx context.Context) (bool, error) {
		file, err := s.client.GetFile(ctx, fileID)
		if err != nil {
			return false, wrapAPIError("file status check failed", err)
		}

		switch normalizeFileState(file.Status) {
		case FileStateActive:
			return true, nil
		case FileStateFailed:
			return false, fmt.Errorf("runtime failed to process file %s", fileID)
		default:
			return false, nil
		}
	})
	if err != nil {
		return fmt.Errorf("wait for file %s: %w", fileID, err)
	}
	return nil
}

func normalizeFileState(status string) string {
	switch strings.ToLower(status) {
	case "processed", "active", "uploaded":
		return FileStateActive
	case "error", "failed":
		return FileStateFailed
	default:
		return FileStateProcessing
	}
}
