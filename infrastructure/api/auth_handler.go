package api

import (
	"net/http"
	"time"

	"planning-poker/auth"
	"planning-poker/errors"
	"planning-poker/infrastructure/storage"
	"planning-poker/services"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth         services.IAuthService
	tokenTTL     time.Duration
	secureCookie bool
}

func NewAuthHandler(authService services.IAuthService, tokenTTL time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{auth: authService, tokenTTL: tokenTTL, secureCookie: secureCookie}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type userView struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func newUserView(u storage.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL}
}

func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup, authenticated gin.HandlerFunc) {
	group.POST("/register", h.register)
	group.POST("/login", h.login)
	group.POST("/logout", h.logout)
	group.GET("/me", authenticated, h.me)
}

func (h *AuthHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, errors.ErrInvalidRequest)
		return
	}
	token, user, err := h.auth.Register(c.Request.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		errorResponse(c, err)
		return
	}
	h.setSessionCookie(c, token.String(), h.tokenTTL)
	standardResponse(c, http.StatusCreated, statusCreated, gin.H{"user": newUserView(user), "token": token}, "")
}

func (h *AuthHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, errors.ErrInvalidRequest)
		return
	}
	token, user, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		errorResponse(c, err)
		return
	}
	h.setSessionCookie(c, token.String(), h.tokenTTL)
	standardResponse(c, http.StatusOK, statusOK, gin.H{"user": newUserView(user), "token": token}, "")
}

func (h *AuthHandler) logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	standardResponse(c, http.StatusOK, statusOK, gin.H{"message": "Logged out"}, "")
}

func (h *AuthHandler) me(c *gin.Context) {
	profile := currentProfile(c)
	standardResponse(c, http.StatusOK, statusOK, gin.H{"user": userView{
		ID:        profile.UserID,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
	}}, "")
}

// setSessionCookie writes the token as an http-only cookie; a negative
// ttl clears it.
func (h *AuthHandler) setSessionCookie(c *gin.Context, token string, ttl time.Duration) {
	maxAge := -1
	if ttl > 0 {
		maxAge = int(ttl / time.Second)
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, token, maxAge, "/", "", h.secureCookie, true)
}
