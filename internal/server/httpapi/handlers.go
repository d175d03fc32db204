package httpapi

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/dmitrijs2005/securingai/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type registerRequest struct {
	Name            string `json:"name" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type logoutRequest struct {
	Everywhere bool `json:"everywhere"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

type deleteUserRequest struct {
	Password string `json:"password" binding:"required"`
}

type userResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func badRequest(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"message": "unknown input"})
}

func renderResult(c *gin.Context, res *services.Result) {
	c.JSON(res.Status, res)
}

func (s *HTTPServer) hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello, World!")
}

func (s *HTTPServer) bar(c *gin.Context) {
	c.String(http.StatusOK, "bar")
}

// echo returns the JSON body unchanged.
func (s *HTTPServer) echo(c *gin.Context) {
	if c.ContentType() != gin.MIMEJSON {
		badRequest(c)
		return
	}

	body, err := c.GetRawData()
	if err != nil || !json.Valid(body) {
		badRequest(c)
		return
	}
	c.Data(http.StatusOK, gin.MIMEJSON, body)
}

func (s *HTTPServer) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := s.services.User.Register(c.Request.Context(), req.Name, req.Password, req.ConfirmPassword)
	if err != nil {
		respondError(c, err, internalErrorCases)
		return
	}
	renderResult(c, res)
}

func (s *HTTPServer) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, token, err := s.services.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err, internalErrorCases)
		return
	}

	if res.OK() {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(SessionCookie, token, 0, "/", "", s.opts.SecureCookie, true)
	}
	renderResult(c, res)
}

func (s *HTTPServer) logout(c *gin.Context) {
	var req logoutRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c)
			return
		}
	}

	token, _ := c.Get(tokenKey)
	tokenString, _ := token.(string)

	res, err := s.services.Auth.Logout(c.Request.Context(), currentUser(c), tokenString, req.Everywhere)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", s.opts.SecureCookie, true)

	if err != nil {
		respondError(c, err, internalErrorCases)
		return
	}
	renderResult(c, res)
}

func (s *HTTPServer) world(c *gin.Context) {
	u := currentUser(c)
	c.JSON(http.StatusOK, userResponse{ID: u.ID, Name: u.Name})
}

func (s *HTTPServer) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := s.services.User.ChangePassword(c.Request.Context(), currentUser(c), req.CurrentPassword, req.NewPassword)
	if err != nil {
		respondError(c, err, internalErrorCases)
		return
	}
	renderResult(c, res)
}

func (s *HTTPServer) deleteUser(c *gin.Context) {
	var req deleteUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	res, err := s.services.User.DeleteCurrentUser(c.Request.Context(), currentUser(c), req.Password)
	if err != nil {
		respondError(c, err, internalErrorCases)
		return
	}
	if res.OK() {
		c.SetCookie(SessionCookie, "", -1, "/", "", s.opts.SecureCookie, true)
	}
	renderResult(c, res)
}

// upload stores the multipart "file" field under uploads/<uuid>/<name>.
func (s *HTTPServer) upload(c *gin.Context) {
	if s.services.Storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "storage unavailable"})
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		badRequest(c)
		return
	}

	f, err := fh.Open()
	if err != nil {
		respondError(c, err, nil)
		return
	}
	defer f.Close()

	key := path.Join("uploads", uuid.NewString(), safeFilename(fh.Filename))

	uri, ok := s.services.Storage.Upload(c.Request.Context(), f, s.opts.UploadBucket, key)
	if !ok {
		c.JSON(http.StatusBadGateway, gin.H{"message": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"uri": uri})
}

func safeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." || name == "" {
		return "file"
	}
	return name
}
