package worker

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/agent"
	"github.com/qs3c/vidchat_go_server/internal/model"
	"github.com/qs3c/vidchat_go_server/internal/pkg/history"
	"github.com/qs3c/vidchat_go_server/internal/pkg/pubsub"
	"github.com/qs3c/vidchat_go_server/internal/pkg/queue"
	"github.com/qs3c/vidchat_go_server/internal/repository"
	"github.com/qs3c/vidchat_go_server/internal/service"
)

// Processor 对话后台处理器。一次 Process 对应一轮智能体调用:
// 认领任务、读缓冲、调运行时、写回结果、落库历史。
// 任何失败都终结为持久化的 ERROR 状态,绝不让任务停在 PROCESSING。
type Processor struct {
	jobRepo    *repository.JobRepository
	buffer     *history.Store
	historySvc *service.HistoryService
	runtime    agent.Runtime
	publisher  *pubsub.Publisher
	cfg        *config.Config
}

// NewProcessor 创建后台处理器
func NewProcessor(
	jobRepo *repository.JobRepository,
	buffer *history.Store,
	historySvc *service.HistoryService,
	runtime agent.Runtime,
	publisher *pubsub.Publisher,
	cfg *config.Config,
) *Processor {
	return &Processor{
		jobRepo:    jobRepo,
		buffer:     buffer,
		historySvc: historySvc,
		runtime:    runtime,
		publisher:  publisher,
		cfg:        cfg,
	}
}

// Process 处理一条触发消息
func (p *Processor) Process(ctx context.Context, msg *queue.JobMessage) error {
	// CAS 认领:任务不存在、不属于该用户、或已被并发触发占用时静默放弃。
	// 重复触发只会有一个赢家,消息本身只携带身份,任务内容以库里为准。
	claimed, err := p.jobRepo.ClaimProcessing(msg.JobID, msg.UserID)
	if err != nil {
		return fmt.Errorf("failed to claim job: %w", err)
	}
	if !claimed {
		log.Printf("Job %s: trigger skipped (already claimed or gone)", msg.JobID)
		return nil
	}

	job, err := p.jobRepo.GetByID(msg.JobID, msg.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		// 认领已经把任务置为 PROCESSING,这里失败也必须终结为 ERROR
		return p.fail(ctx, &model.Job{ID: msg.JobID, UserID: msg.UserID},
			fmt.Errorf("failed to load job: %w", err))
	}

	p.publishStatus(ctx, job, "")

	entries, err := p.buffer.ReadAll(ctx, job.ID)
	if err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to read history buffer: %w", err))
	}

	inv := buildInvocation(job, entries)

	log.Printf("Job %s: invoking %s (%d buffered turns)", job.ID, inv.Agent, len(entries))
	reply, err := p.runtime.Invoke(ctx, inv)
	if err != nil {
		return p.fail(ctx, job, err)
	}

	// AI 回复先进缓冲,和用户轮次一起落库
	if err := p.buffer.Append(ctx, job.ID, model.SenderAI, reply.Content); err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to buffer reply: %w", err))
	}

	if err := p.jobRepo.MarkActive(job.ID, msg.UserID); err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to mark active: %w", err))
	}

	if err := p.historySvc.Flush(ctx, job.ID, msg.UserID); err != nil {
		return p.fail(ctx, job, fmt.Errorf("failed to flush history: %w", err))
	}

	if reply.NextAgent != "" && reply.NextAgent != job.CurrentAgent {
		log.Printf("Job %s: handoff %s -> %s", job.ID, job.CurrentAgent, reply.NextAgent)
		if err := p.jobRepo.UpdateAgent(job.ID, msg.UserID, reply.NextAgent); err != nil {
			log.Printf("Job %s: failed to record handoff: %v", job.ID, err)
		}
		job.CurrentAgent = reply.NextAgent
	}

	job.Status = model.JobStatusActive
	job.ErrorMessage = nil
	p.publishStatus(ctx, job, "")

	log.Printf("Job %s: turn completed by %s", job.ID, job.CurrentAgent)
	return nil
}

// fail 把失败固化成 ERROR 状态。缓冲保持原样,用户重发消息即可恢复。
func (p *Processor) fail(ctx context.Context, job *model.Job, cause error) error {
	errMsg := cause.Error()
	if errors.Is(cause, agent.ErrUnavailable) {
		errMsg = "ADK service unavailable: " + errMsg
	}

	if err := p.jobRepo.MarkError(job.ID, job.UserID, errMsg); err != nil {
		log.Printf("Job %s: failed to persist error status: %v", job.ID, err)
	}

	job.Status = model.JobStatusError
	p.publishStatus(ctx, job, errMsg)

	log.Printf("Job %s: failed: %v", job.ID, cause)
	return cause
}

func (p *Processor) publishStatus(ctx context.Context, job *model.Job, errMsg string) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.PublishStatus(ctx, &pubsub.StatusMessage{
		UserID: job.UserID,
		JobID:  job.ID,
		Status: job.Status,
		Agent:  job.CurrentAgent,
		Error:  errMsg,
	}); err != nil {
		log.Printf("Job %s: status publish failed: %v", job.ID, err)
	}
}

// buildInvocation 把任务和缓冲历史组装成一次运行时调用。
// 缓冲里最后一条用户轮次作为本轮输入,其余作为上下文。
func buildInvocation(job *model.Job, entries []history.Entry) *agent.Invocation {
	prompt := job.Prompt
	histEnd := len(entries)
	if n := len(entries); n > 0 && entries[n-1].Sender == model.SenderUser {
		prompt = entries[n-1].Content
		histEnd = n - 1
	}

	turns := make([]agent.Turn, 0, histEnd)
	for _, e := range entries[:histEnd] {
		turns = append(turns, agent.Turn{Sender: e.Sender, Content: e.Content})
	}

	inv := &agent.Invocation{
		ConversationID: job.ID,
		Agent:          job.CurrentAgent,
		Prompt:         prompt,
		History:        turns,
	}
	if job.AgentFileID != nil {
		inv.FileID = *job.AgentFileID
	}
	if job.SourceURL != nil {
		inv.SourceURL = *job.SourceURL
	}
	return inv
}
