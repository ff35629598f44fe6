package api

import (
	"fmt"
	"io"
	"net/http"

	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-gonic/gin"
)

const maxUploadBytes = 5 << 20

// login handles sign-in
func (h *Handler) login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	profile, err := current(c).Login(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := current(c).Auth.Register(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "verification code sent"})
}

func (h *Handler) verify(c *gin.Context) {
	var req service.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := current(c).Auth.Verify(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := current(c).Auth.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset code sent"})
}

func (h *Handler) resetPassword(c *gin.Context) {
	var req service.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	if err := current(c).Auth.ResetPassword(c.Request.Context(), &req); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "password reset"})
}

func (h *Handler) logout(c *gin.Context) {
	if err := current(c).Logout(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// me returns the cached profile without calling the identity service
func (h *Handler) me(c *gin.Context) {
	user, err := current(c).Auth.User(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"authenticated": user != nil,
		"user":          user,
	})
}

func (h *Handler) getProfile(c *gin.Context) {
	profile, err := current(c).Users.Profile(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	var req models.UserUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	profile, err := current(c).Users.UpdateProfile(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) uploadAvatar(c *gin.Context) {
	file, err := readUpload(c)
	if err != nil {
		badRequest(c, "Invalid upload", err)
		return
	}
	profile, err := current(c).Users.UploadAvatar(c.Request.Context(), file)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) contact(c *gin.Context) {
	var req models.ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	reply, err := current(c).Users.Contact(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply})
}

// paymentReturn verifies the gateway redirect. The raw query goes upstream
// untouched since the signature covers its exact encoding.
func (h *Handler) paymentReturn(c *gin.Context) {
	result, err := current(c).Payments.VerifyReturn(c.Request.Context(), c.Request.URL.RawQuery)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// readUpload reads the multipart "file" field.
func readUpload(c *gin.Context) (service.Upload, error) {
	header, err := c.FormFile("file")
	if err != nil {
		return service.Upload{}, err
	}
	if header.Size > maxUploadBytes {
		return service.Upload{}, fmt.Errorf("file exceeds %d bytes", maxUploadBytes)
	}
	f, err := header.Open()
	if err != nil {
		return service.Upload{}, err
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		return service.Upload{}, err
	}
	return service.Upload{FileName: header.Filename, Content: content}, nil
}
