package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/medelle/practice-api/internal/handler"
	"github.com/medelle/practice-api/internal/model"
	"github.com/medelle/practice-api/internal/service/auth"
)

type Handler struct {
	svc auth.AuthService
}

func NewHandler(svc auth.AuthService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public auth routes. guard protects the
// session refresh; limit wraps every route in the group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, guard, limit gin.HandlerFunc) {
	auth := r.Group("/auth", limit)
	{
		auth.POST("/sign-up", h.SignUp)
		auth.POST("/sign-in", h.SignIn)
		auth.GET("/verify-session", guard, h.VerifySession)
		auth.GET("/verify-email", h.VerifyEmail)
		auth.POST("/resend-verification", h.ResendVerification)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
	}
}

func (h *Handler) SignUp(c *gin.Context) {
	var req model.SignUpRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if _, err := h.svc.SignUp(c.Request.Context(), &req); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.Created(c, "User created successfully", nil)
}

func (h *Handler) SignIn(c *gin.Context) {
	var req model.SignInRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	session, err := h.svc.SignIn(c.Request.Context(), &req)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "User logged in successfully", session)
}

func (h *Handler) VerifySession(c *gin.Context) {
	userID, ok := handler.UserID(c)
	if !ok {
		return
	}

	session, err := h.svc.VerifySession(c.Request.Context(), userID)
	if err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Session verified successfully", session)
}

func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Email verified successfully", nil)
}

func (h *Handler) ResendVerification(c *gin.Context) {
	var req model.EmailRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Verification email sent", nil)
}

// ForgotPassword answers the same way whether or not the address is known
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req model.EmailRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "If the email is registered, a reset link has been sent", nil)
}

func (h *Handler) ResetPassword(c *gin.Context) {
	var req model.ResetPasswordRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	if err := h.svc.ResetPassword(c.Request.Context(), &req); err != nil {
		handler.Fail(c, err)
		return
	}

	handler.OK(c, "Password reset successfully", nil)
}
