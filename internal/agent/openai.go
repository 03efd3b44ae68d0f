package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/qs3c/vidchat_go_server/config"
)

const (
	routeMaxTokens  = 30
	replyMaxTokens  = 2048
	routeTemp       = 0.1
	replyTemp       = 0.7
	defaultInvokeTO = 10 * time.Minute
)

// OpenAIRuntime 基于 OpenAI 兼容网关的智能体运行时。
// 每次调用分两步:planner 路由决策(严格 JSON),再由选中的智能体生成回复。
type OpenAIRuntime struct {
	client       *openai.Client
	plannerModel string
	agentModel   string
	timeout      time.Duration
}

func NewOpenAIRuntime(cfg *config.AgentConfig) *OpenAIRuntime {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	timeout := defaultInvokeTO
	if cfg.TimeoutMinutes > 0 {
		timeout = time.Duration(cfg.TimeoutMinutes) * time.Minute
	}

	return &OpenAIRuntime{
		client:       openai.NewClientWithConfig(clientConfig),
		plannerModel: cfg.PlannerModel,
		agentModel:   cfg.AgentModel,
		timeout:      timeout,
	}
}

// Invoke 执行一次完整的智能体调用
func (r *OpenAIRuntime) Invoke(ctx context.Context, inv *Invocation) (*Reply, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	next, err := r.route(ctx, inv)
	if err != nil {
		return nil, err
	}

	content, err := r.answer(ctx, inv, next)
	if err != nil {
		return nil, err
	}

	return &Reply{Content: content, NextAgent: next}, nil
}

// route 让 planner 决定本轮由哪个智能体接手
func (r *OpenAIRuntime) route(ctx context.Context, inv *Invocation) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       r.plannerModel,
		MaxTokens:   routeMaxTokens,
		Temperature: routeTemp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: routeSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRoutePrompt(inv)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "agent_routing",
				Strict: true,
				Schema: routeJSONSchema,
			},
		},
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapAPIError("routing request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty routing response")
	}

	agent, err := ParseRouteDecision(resp.Choices[0].Message.Content)
	if err != nil {
		// 路由解析失败时不中断对话,维持当前智能体
		log.Printf("route decision parse failed, keeping %s: %v", inv.Agent, err)
		return inv.Agent, nil
	}
	return agent, nil
}

// answer 由选中的智能体生成本轮回复
func (r *OpenAIRuntime) answer(ctx context.Context, inv *Invocation, agent string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(inv.History)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: BuildSystemPrompt(agent, inv),
	})

	for _, turn := range inv.History {
		role := openai.ChatMessageRoleUser
		if turn.Sender == "AI" {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: turn.Content,
		})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: inv.Prompt,
	})

	req := openai.ChatCompletionRequest{
		Model:       r.agentModel,
		MaxTokens:   replyMaxTokens,
		Temperature: replyTemp,
		Messages:    messages,
	}

	resp, err := r.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapAPIError("agent request failed", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty agent response")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("agent returned empty content")
	}
	return content, nil
}

// ParseRouteDecision 解析 planner 的路由 JSON,校验智能体名称合法
func ParseRouteDecision(content string) (string, error) {
	var decision struct {
		Agent string `json:"agent"`
	}
	if err := json.Unmarshal([]byte(content), &decision); err != nil {
		return "", fmt.Errorf("parse routing decision: %w", err)
	}

	switch decision.Agent {
	case AgentPlanner, AgentVideo, AgentYouTube:
		return decision.Agent, nil
	default:
		return "", fmt.Errorf("unknown agent %q in routing decision", decision.Agent)
	}
}

// BuildSystemPrompt 根据智能体和任务上下文构造系统提示
func BuildSystemPrompt(agent string, inv *Invocation) string {
	var b strings.Builder

	switch agent {
	case AgentVideo:
		b.WriteString("你是视频分析助手,负责围绕用户上传的视频回答问题。")
		if inv.FileID != "" {
			b.WriteString(fmt.Sprintf("当前视频文件句柄: %s。", inv.FileID))
		}
	case AgentYouTube:
		b.WriteString("你是 YouTube 视频分析助手,负责围绕指定链接的视频回答问题。")
		if inv.SourceURL != "" {
			b.WriteString(fmt.Sprintf("当前视频链接: %s。", inv.SourceURL))
		}
	default:
		b.WriteString("你是对话规划助手,负责回答一般性问题并在需要时引导用户提供视频素材。")
	}

	b.WriteString("回答保持简洁准确,不要脱离当前对话的分析对象。")
	return b.String()
}

func buildRoutePrompt(inv *Invocation) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("当前智能体: %s\n", inv.Agent))
	if inv.FileID != "" {
		b.WriteString("对话已绑定上传视频。\n")
	}
	if inv.SourceURL != "" {
		b.WriteString(fmt.Sprintf("对话已绑定 YouTube 链接: %s\n", inv.SourceURL))
	}
	b.WriteString(fmt.Sprintf("用户输入: %s", inv.Prompt))
	return b.String()
}

// wrapAPIError 将网络错误和 5xx 归为 ErrUnavailable
func wrapAPIError(prefix string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%s: %w: %v", prefix, ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", prefix, err)
	}
	// 非 API 错误视为网络层故障
	return fmt.Errorf("%s: %w: %v", prefix, ErrUnavailable, err)
}

const routeSystemPrompt = `你是对话路由器。根据对话绑定的素材和用户输入,决定本轮由哪个智能体接手:
- planner_agent: 一般性问题,或对话尚未绑定任何视频素材
- video_agent: 对话绑定了上传视频,问题围绕该视频
- youtube_agent: 对话绑定了 YouTube 链接,问题围绕该视频
只输出 JSON。`

var routeJSONSchema = &jsonSchema{
	Type:                 "object",
	AdditionalProperties: false,
	Required:             []string{"agent"},
	Properties: map[string]*jsonSchema{
		"agent": {
			Type:        "string",
			Description: "接手本轮的智能体",
			Enum:        []string{AgentPlanner, AgentVideo, AgentYouTube},
		},
	},
}

// jsonSchema implements json.Marshaler for OpenAI's JSON Schema format.
// The alias type prevents infinite recursion during marshaling.
type jsonSchema struct {
	Properties           map[string]*jsonSchema `json:"properties,omitempty"`
	Type                 string                 `json:"type"`
	Description          string                 `json:"description,omitempty"`
	Required             []string               `json:"required,omitempty"`
	Enum                 []string               `json:"enum,omitempty"`
	AdditionalProperties bool                   `json:"additionalProperties"`
}

func (s *jsonSchema) MarshalJSON() ([]byte, error) {
	type alias jsonSchema
	return json.Marshal((*alias)(s))
}
