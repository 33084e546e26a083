package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/services"
	"github.com/reelpost/reelpost-backend/internal/types"
)

type AuthHandler struct {
	authService services.AuthService
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func (ah *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	user := types.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     types.UserRole(req.Role),
	}
	if err := ah.authService.RegisterUser(c.Request.Context(), &user); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"id": user.ID, "email": user.Email, "role": user.Role})
}

func (ah *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	token, user, err := ah.authService.LoginUser(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"access_token": token,
		"user":         gin.H{"id": user.ID, "name": user.Name, "role": user.Role},
	})
}

// IdentifyGuest is the guest identity-capture step: name + email in, a
// guest-scoped token out. Must complete before a guest's first comment or
// reply.
func (ah *AuthHandler) IdentifyGuest(c *gin.Context) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, apierr.CodeInvalidState, err)
		return
	}
	token, identity, err := ah.authService.IssueGuestToken(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"access_token": token,
		"identity":     gin.H{"key": identity.Key(), "name": identity.GuestName},
	})
}
