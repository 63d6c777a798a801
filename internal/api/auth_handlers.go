package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/parley/chat-app/internal/auth"
	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  chat.User `json:"user"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Nickname = strings.TrimSpace(req.Nickname)
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		failInvalid(c, "a valid email is required")
		return
	case req.Nickname == "":
		failInvalid(c, "a nickname is required")
		return
	case len(req.Password) < auth.MinPasswordLength:
		failInvalid(c, "password is too short")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Printf("[api] hash password: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeInvalidRequest, "registration failed")
		return
	}

	user, err := h.store.CreateUser(c.Request.Context(), req.Email, req.Nickname, hash)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			fail(c, http.StatusConflict, chat.CodeUserExists, "email is already registered")
			return
		}
		log.Printf("[api] create user: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeInvalidRequest, "registration failed")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Email)
	if err != nil {
		log.Printf("[api] issue token: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeInvalidRequest, "registration failed")
		return
	}

	c.JSON(http.StatusCreated, authResponse{Token: token, User: *user})
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}

	account, err := h.store.GetUserByEmail(c.Request.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fail(c, http.StatusUnauthorized, chat.CodeInvalidCredentials, "invalid email or password")
			return
		}
		log.Printf("[api] get user by email: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeInvalidCredentials, "login failed")
		return
	}

	if !auth.CheckPassword(account.PasswordHash, req.Password) {
		fail(c, http.StatusUnauthorized, chat.CodeInvalidCredentials, "invalid email or password")
		return
	}

	token, err := h.tokens.Issue(account.ID, account.Email)
	if err != nil {
		log.Printf("[api] issue token: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeInvalidCredentials, "login failed")
		return
	}

	c.JSON(http.StatusOK, authResponse{Token: token, User: account.User})
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.store.GetUserByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			failUnauthorized(c)
			return
		}
		log.Printf("[api] get user: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeUnauthorized, "lookup failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type nicknameRequest struct {
	Nickname string `json:"nickname"`
}

func (h *Handler) updateNickname(c *gin.Context) {
	var req nicknameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		failInvalid(c, "a nickname is required")
		return
	}

	if err := h.store.UpdateNickname(c.Request.Context(), currentUserID(c), req.Nickname); err != nil {
		log.Printf("[api] update nickname: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeProfileUpdateFailed, "could not update nickname")
		return
	}
	c.JSON(http.StatusOK, gin.H{"nickname": req.Nickname})
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) updatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failInvalid(c, "malformed request body")
		return
	}
	if len(req.NewPassword) < auth.MinPasswordLength {
		failInvalid(c, "new password is too short")
		return
	}

	account, err := h.store.GetAccountByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		log.Printf("[api] get account: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeProfileUpdateFailed, "could not update password")
		return
	}
	if !auth.CheckPassword(account.PasswordHash, req.CurrentPassword) {
		fail(c, http.StatusUnauthorized, chat.CodeInvalidCredentials, "current password is incorrect")
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		log.Printf("[api] hash password: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeProfileUpdateFailed, "could not update password")
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), currentUserID(c), hash); err != nil {
		log.Printf("[api] update password: %v", err)
		fail(c, http.StatusInternalServerError, chat.CodeProfileUpdateFailed, "could not update password")
		return
	}
	c.Status(http.StatusNoContent)
}
