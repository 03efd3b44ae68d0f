package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vidchat_go_server/internal/api/middleware"
	"github.com/qs3c/vidchat_go_server/internal/pkg/response"
	"github.com/qs3c/vidchat_go_server/internal/service"
)

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// Start 发起新对话（multipart 表单，message 必填，file 可选）
// POST /api/v1/chat/start
func (h *ChatHandler) Start(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	message := c.PostForm("message")
	file, err := h.readUpload(c)
	if err != nil {
		response.ParamError(c, "文件读取失败")
		return
	}

	resp, err := h.chatService.StartChat(c.Request.Context(), userID, message, file)
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	response.Success(c, resp)
}

// Continue 在已有对话中追问
// POST /api/v1/chat/:job_id
func (h *ChatHandler) Continue(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	jobID := c.Param("job_id")

	message := c.PostForm("message")
	file, err := h.readUpload(c)
	if err != nil {
		response.ParamError(c, "文件读取失败")
		return
	}

	resp, err := h.chatService.ContinueChat(c.Request.Context(), userID, jobID, message, file)
	if err != nil {
		h.writeChatError(c, err)
		return
	}

	response.Success(c, resp)
}

// ListJobs 对话列表
// GET /api/v1/chat/history
func (h *ChatHandler) ListJobs(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	items, err := h.chatService.ListJobs(userID)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// GetMessages 单个对话的已持久化消息
// GET /api/v1/chat/history/:job_id
func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	jobID := c.Param("job_id")

	items, err := h.chatService.GetMessages(userID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, items)
}

// GetJob 任务详情（前端轮询状态用）
// GET /api/v1/chat/job/:job_id
func (h *ChatHandler) GetJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	jobID := c.Param("job_id")

	detail, err := h.chatService.GetJob(userID, jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, detail)
}

// DeleteJob 删除对话及其历史
// DELETE /api/v1/chat/:job_id
func (h *ChatHandler) DeleteJob(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}
	jobID := c.Param("job_id")

	if err := h.chatService.DeleteJob(c.Request.Context(), userID, jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			response.NotFoundError(c, err.Error())
			return
		}
		response.ServerError(c, "")
		return
	}

	response.Success(c, nil)
}

// readUpload 读取可选的上传文件，未携带文件时返回 nil
func (h *ChatHandler) readUpload(c *gin.Context) (*service.FileUpload, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		// 表单里没有文件不算错误
		return nil, nil
	}

	f, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	return &service.FileUpload{
		Filename: fileHeader.Filename,
		Data:     data,
	}, nil
}

func (h *ChatHandler) writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmptyMessage),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrFileTypeNotAllowed):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrJobNotFound):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrScopeViolation):
		response.ScopeViolationError(c, err.Error())
	case errors.Is(err, service.ErrUploadUnavailable):
		response.UpstreamError(c, err.Error())
	default:
		response.ServerError(c, "")
	}
}
