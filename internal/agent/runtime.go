package agent

import (
	"context"
	"errors"
)

// 可用的分析智能体
const (
	AgentPlanner = "planner_agent"
	AgentVideo   = "video_agent"
	AgentYouTube = "youtube_agent"
)

// ErrUnavailable 上游智能体服务不可用(网络错误、5xx 等)
var ErrUnavailable = errors.New("agent runtime unavailable")

// Turn 对话中的一轮
type Turn struct {
	Sender  string // USER / AI
	Content string
}

// Invocation 一次智能体调用的输入
type Invocation struct {
	ConversationID string
	Agent          string // 当前负责该对话的智能体
	Prompt         string // 本轮用户输入
	FileID         string // 运行时文件句柄(视频任务)
	SourceURL      string // YouTube 链接(链接任务)
	History        []Turn // 本轮之前的缓冲历史
}

// Reply 智能体调用的结果
type Reply struct {
	Content   string
	NextAgent string // 下一轮应当接手的智能体,可能与当前相同
}

// Runtime 外部智能体运行时。实现方负责路由与生成,调用方只关心结果。
type Runtime interface {
	Invoke(ctx context.Context, inv *Invocation) (*Reply, error)
}

// FileInfo 运行时托管文件的状态
type FileInfo struct {
	ID    string
	State string // PROCESSING / ACTIVE / FAILED
}

// FileStore 运行时文件接口:上传媒体并等待其就绪
type FileStore interface {
	Upload(ctx context.Context, filename string, data []byte) (*FileInfo, error)
	WaitActive(ctx context.Context, fileID string) error
}
