package dto

// ChatResponse 发起/继续对话的响应（真正的回答通过轮询历史获取）
type ChatResponse struct {
	Response       string `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// JobListItem 对话列表项
type JobListItem struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Status          string `json:"status"`
	JobType         string `json:"job_type"`
	CurrentAgent    string `json:"current_agent"`
	SourceURL       string `json:"source_url,omitempty"`
	DisplayVideoURL string `json:"display_video_url,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// JobDetail 单个任务的完整记录（供前端轮询状态）
type JobDetail struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Prompt          string `json:"prompt"`
	Status          string `json:"status"`
	JobType         string `json:"job_type"`
	CurrentAgent    string `json:"current_agent"`
	AgentFileID     string `json:"agent_file_id,omitempty"`
	SourceURL       string `json:"source_url,omitempty"`
	DisplayVideoURL string `json:"display_video_url,omitempty"`
	ErrorMessage    string `json:"error_message,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// MessageItem 一条已持久化的对话消息
type MessageItem struct {
	ID        string `json:"id"`
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}
