package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/vidchat_go_server/internal/model/dto"
	"github.com/qs3c/vidchat_go_server/internal/pkg/oauth"
	"github.com/qs3c/vidchat_go_server/internal/pkg/response"
	"github.com/qs3c/vidchat_go_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	stateStore  *oauth.StateStore
}

func NewAuthHandler(authService *service.AuthService, stateStore *oauth.StateStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		stateStore:  stateStore,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmailExists):
			response.ParamError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "注册成功", resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			response.AuthError(c, err.Error())
		case errors.Is(err, service.ErrUserInactive):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// GoogleLogin 用 Google ID Token 登录（前端 One Tap / GIS 流程）
// POST /api/v1/auth/google-login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req dto.GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.GoogleLogin(c.Request.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidIDToken):
			response.AuthError(c, err.Error())
		case errors.Is(err, service.ErrUserInactive):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// GoogleAuth 跳转到 Google 授权页（服务端授权码流程）
// GET /api/v1/auth/google?redirect_uri=xxx
func (h *AuthHandler) GoogleAuth(c *gin.Context) {
	redirectURI := c.Query("redirect_uri")

	state, err := h.stateStore.GenerateState(c.Request.Context(), redirectURI)
	if err != nil {
		response.ServerError(c, "")
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, h.authService.GetGoogleAuthURL(state))
}

// GoogleCallback 处理 Google OAuth 回调
// GET /api/v1/auth/google/callback?code=xxx&state=xxx
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "缺少授权码")
		return
	}

	state := c.Query("state")
	if _, err := h.stateStore.ValidateState(c.Request.Context(), state); err != nil {
		response.AuthError(c, "state 校验失败")
		return
	}

	resp, err := h.authService.GoogleCallback(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserInactive):
			response.AuthError(c, err.Error())
		default:
			response.ServerError(c, "")
		}
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}
