package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/agent"
	"github.com/qs3c/vidchat_go_server/internal/model"
	"github.com/qs3c/vidchat_go_server/internal/model/dto"
	"github.com/qs3c/vidchat_go_server/internal/pkg/history"
	"github.com/qs3c/vidchat_go_server/internal/pkg/oss"
	"github.com/qs3c/vidchat_go_server/internal/pkg/queue"
	"github.com/qs3c/vidchat_go_server/internal/repository"
)

var (
	ErrJobNotFound        = errors.New("对话不存在")
	ErrEmptyMessage       = errors.New("消息内容不能为空")
	ErrScopeViolation     = errors.New("当前对话已绑定分析对象,请开启新对话")
	ErrFileTooLarge       = errors.New("文件超过大小限制")
	ErrFileTypeNotAllowed = errors.New("不支持的文件类型")
	ErrUploadUnavailable  = errors.New("文件上传服务暂不可用")
)

// youtubeURLRe 从自由文本中提取 YouTube 链接,source_url 取精确匹配的子串
var youtubeURLRe = regexp.MustCompile(`(?:https?://)?(?:www\.)?(?:youtube\.com/watch\?v=|youtu\.be/)[A-Za-z0-9_-]+`)

const titleMaxRunes = 50

// FileUpload 随消息上传的视频文件
type FileUpload struct {
	Filename string
	Data     []byte
}

type ChatService struct {
	jobRepo   *repository.JobRepository
	msgRepo   *repository.MessageRepository
	buffer    *history.Store
	jobQueue  *queue.Queue
	fileStore agent.FileStore
	ossClient *oss.Client // 可为 nil,只影响前端回放
	cfg       *config.Config
}

func NewChatService(
	jobRepo *repository.JobRepository,
	msgRepo *repository.MessageRepository,
	buffer *history.Store,
	jobQueue *queue.Queue,
	fileStore agent.FileStore,
	ossClient *oss.Client,
	cfg *config.Config,
) *ChatService {
	return &ChatService{
		jobRepo:   jobRepo,
		msgRepo:   msgRepo,
		buffer:    buffer,
		jobQueue:  jobQueue,
		fileStore: fileStore,
		ossClient: ossClient,
		cfg:       cfg,
	}
}

// StartChat 开启新对话:解析任务类型,建 PENDING 任务,写入缓冲,入队触发。
// 真正的回答由后台任务生成,调用方轮询历史获取。
func (s *ChatService) StartChat(ctx context.Context, userID int64, message string, file *FileUpload) (*dto.ChatResponse, error) {
	if strings.TrimSpace(message) == "" && file == nil {
		return nil, ErrEmptyMessage
	}

	job := &model.Job{
		UserID:       userID,
		Prompt:       message,
		Status:       model.JobStatusPending,
		JobType:      model.JobTypeText,
		CurrentAgent: agent.AgentPlanner,
		Title:        buildTitle(message),
	}

	if file != nil {
		if err := s.validateFile(file); err != nil {
			return nil, err
		}

		info, err := s.fileStore.Upload(ctx, file.Filename, file.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
		}
		if err := s.fileStore.WaitActive(ctx, info.ID); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
		}

		job.JobType = model.JobTypeVideo
		job.AgentFileID = &info.ID
		job.Title = file.Filename

		// 展示用 URL,失败不阻塞分析
		if s.ossClient != nil {
			if url, err := s.ossClient.UploadVideo(userID, file.Filename, file.Data); err == nil {
				job.DisplayVideoURL = &url
			}
		}
	} else if url := youtubeURLRe.FindString(message); url != "" {
		job.JobType = model.JobTypeYouTube
		job.SourceURL = &url
	}

	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	if err := s.buffer.Append(ctx, job.ID, model.SenderUser, message); err != nil {
		return nil, err
	}

	if err := s.jobQueue.Push(ctx, &queue.JobMessage{JobID: job.ID, UserID: userID}); err != nil {
		return nil, err
	}

	return &dto.ChatResponse{
		Response:       "accepted",
		ConversationID: job.ID,
	}, nil
}

// ContinueChat 在已有对话上追加一轮:所有权校验、范围校验、缓冲追加、
// 状态重置为 PENDING、入队重新触发。ERROR 态任务由此恢复。
func (s *ChatService) ContinueChat(ctx context.Context, userID int64, jobID, message string, file *FileUpload) (*dto.ChatResponse, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	job, err := s.jobRepo.GetByID(jobID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	// 已绑定分析对象的对话不接受新的媒体;续聊也不允许中途换绑
	if file != nil {
		return nil, ErrScopeViolation
	}
	if job.HasMediaSubject() && youtubeURLRe.MatchString(message) {
		return nil, ErrScopeViolation
	}

	if err := s.buffer.Append(ctx, job.ID, model.SenderUser, message); err != nil {
		return nil, err
	}

	if err := s.jobRepo.ResetPending(job.ID, userID); err != nil {
		return nil, err
	}

	if err := s.jobQueue.Push(ctx, &queue.JobMessage{JobID: job.ID, UserID: userID}); err != nil {
		return nil, err
	}

	return &dto.ChatResponse{
		Response:       "accepted",
		ConversationID: job.ID,
	}, nil
}

// ListJobs 当前用户的对话列表,新的在前
func (s *ChatService) ListJobs(userID int64) ([]*dto.JobListItem, error) {
	jobs, err := s.jobRepo.ListByUser(userID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.JobListItem, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, &dto.JobListItem{
			ID:              job.ID,
			Title:           job.Title,
			Status:          job.Status,
			JobType:         job.JobType,
			CurrentAgent:    job.CurrentAgent,
			SourceURL:       strPtrValue(job.SourceURL),
			DisplayVideoURL: strPtrValue(job.DisplayVideoURL),
			ErrorMessage:    strPtrValue(job.ErrorMessage),
			CreatedAt:       job.CreatedAt.Format(time.RFC3339),
			UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// GetMessages 某个对话的已持久化消息,按时间正序。
// 缓冲中未落库的轮次不保证出现在这里。
func (s *ChatService) GetMessages(userID int64, jobID string) ([]*dto.MessageItem, error) {
	if _, err := s.jobRepo.GetByID(jobID, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	messages, err := s.msgRepo.ListByJob(jobID)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.MessageItem, 0, len(messages))
	for _, m := range messages {
		items = append(items, &dto.MessageItem{
			ID:        m.ID,
			Sender:    m.Sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return items, nil
}

// GetJob 单个任务的完整记录,供前端轮询状态
func (s *ChatService) GetJob(userID int64, jobID string) (*dto.JobDetail, error) {
	job, err := s.jobRepo.GetByID(jobID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	return &dto.JobDetail{
		ID:              job.ID,
		Title:           job.Title,
		Prompt:          job.Prompt,
		Status:          job.Status,
		JobType:         job.JobType,
		CurrentAgent:    job.CurrentAgent,
		AgentFileID:     strPtrValue(job.AgentFileID),
		SourceURL:       strPtrValue(job.SourceURL),
		DisplayVideoURL: strPtrValue(job.DisplayVideoURL),
		ErrorMessage:    strPtrValue(job.ErrorMessage),
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       job.UpdatedAt.Format(time.RFC3339),
	}, nil
}

// DeleteJob 删除对话及其全部痕迹:持久化消息、缓冲、任务行,
// 以及展示视频对应的 OSS 对象。OSS 删除失败不阻塞,对象留给人工清理。
func (s *ChatService) DeleteJob(ctx context.Context, userID int64, jobID string) error {
	job, err := s.jobRepo.GetByID(jobID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrJobNotFound
		}
		return err
	}

	if err := s.msgRepo.DeleteByJob(job.ID); err != nil {
		return err
	}

	deleted, err := s.jobRepo.Delete(job.ID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrJobNotFound
	}

	if err := s.buffer.Clear(ctx, job.ID); err != nil {
		return err
	}

	if s.ossClient != nil && job.DisplayVideoURL != nil {
		key := s.ossClient.ExtractObjectKey(*job.DisplayVideoURL)
		if err := s.ossClient.Delete(key); err != nil {
			log.Printf("Job %s: failed to delete display video %s: %v", job.ID, key, err)
		}
	}

	return nil
}

func (s *ChatService) validateFile(file *FileUpload) error {
	if s.cfg.Upload.MaxSize > 0 && int64(len(file.Data)) > s.cfg.Upload.MaxSize {
		return ErrFileTooLarge
	}

	if len(s.cfg.Upload.AllowedExtensions) > 0 {
		ext := strings.ToLower(path.Ext(file.Filename))
		for _, allowed := range s.cfg.Upload.AllowedExtensions {
			if ext == strings.ToLower(allowed) {
				return nil
			}
		}
		return ErrFileTypeNotAllowed
	}
	return nil
}

// buildTitle 取消息的前 50 个字符作为标题
func buildTitle(message string) string {
	title := strings.TrimSpace(message)
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		title = string(runes[:titleMaxRunes])
	}
	return title
}

func strPtrValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
