package api

import (
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/auth"
	"docuchat/internal/modelrouter"
	"docuchat/internal/models"
	"docuchat/internal/redis"
	"docuchat/internal/service/conversation"
	"docuchat/internal/worker"
)

// Handler wires HTTP routes to the conversation service, the routing engine,
// and the extraction pipeline.
type Handler struct {
	conversations *conversation.Service
	auth          *auth.Service
	router        *modelrouter.Router
	extraction    *worker.Dispatcher
	cache         *redis.Client
	fileBase      string
	fileTTL       time.Duration
	maxUploadMB   int
	startedAt     time.Time
}

func NewHandler(svc *conversation.Service, authService *auth.Service, extraction *worker.Dispatcher, cache *redis.Client, fileBase string, fileTTL time.Duration, maxUploadMB int) *Handler {
	return &Handler{
		conversations: svc,
		auth:          authService,
		router:        modelrouter.New(),
		extraction:    extraction,
		cache:         cache,
		fileBase:      fileBase,
		fileTTL:       fileTTL,
		maxUploadMB:   maxUploadMB,
		startedAt:     time.Now(),
	}
}

// check token userID is match with param userID
func (h *Handler) requirePathUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auth.RequireParamUser(c, "id"); !ok {
			return
		}
		c.Next()
	}
}

func (h *Handler) authorizedUserID(c *gin.Context) (int64, bool) {
	userID, ok := auth.UserIDFromContext(c)
	if !ok || userID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return 0, false
	}
	return userID, true
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	monitoring := api.Group("/monitoring")
	monitoring.GET("/health", h.health)
	monitoring.GET("/stats", h.stats)

	// The routing endpoints are stateless advisors; the enforcing check runs
	// again inside the upload handler.
	fr := api.Group("/file-router")
	fr.POST("/analyze", h.analyzeFile)
	fr.POST("/analyze-batch", h.analyzeBatch)
	fr.GET("/model-capabilities/*model", h.modelCapabilities)
	fr.GET("/upload-limits/*model", h.uploadLimits)

	api.POST("/users/register", h.registerUser)
	api.POST("/users/login", h.loginUser)
	authMW := h.auth.Middleware()
	userRoutes := api.Group("/users/:id")
	userRoutes.Use(authMW, h.requirePathUser(), h.auth.CSRFMiddleware())
	userRoutes.GET("/preferences", h.getPreferences)
	userRoutes.PUT("/preferences", h.setPreferences)
	userRoutes.POST("/conversation/sessions", h.createSession)
	userRoutes.GET("/conversation/sessions", h.listSessions)
	userRoutes.DELETE("/conversation/sessions/:session_id", h.deleteSession)
	userRoutes.GET("/conversation/sessions/:session_id/messages", h.getSessionMessages)
	userRoutes.POST("/conversation/msg", h.captureInput)
	userRoutes.POST("/uploads", h.filesUpload)
	userRoutes.GET("/uploads", h.listUploads)
	userRoutes.GET("/uploads/:upload_id/text", h.uploadText)
	userRoutes.DELETE("/uploads/:upload_id", h.deleteUpload)
	userRoutes.POST("/logout", h.logoutUser)
	userRoutes.DELETE("", h.deleteUser)
}

// User create&login interface
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) registerUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.conversations.RegisterUser(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
	})
}

func (h *Handler) loginUser(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	user, err := h.conversations.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	authToken, err := h.auth.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "issue token failed"})
		return
	}
	h.setAuthCookies(c, authToken, csrfToken)
	c.JSON(http.StatusOK, gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"created_at": user.CreatedAt,
		"auth_token": authToken,
	})
}

func (h *Handler) logoutUser(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	h.extraction.CancelUser(userID)
	if authToken, ok := auth.AuthTokenFromContext(c); ok {
		_ = h.auth.RevokeToken(c.Request.Context(), authToken)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	if err := h.auth.RevokeUserTokens(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.extraction.CancelUser(id)
	if err := h.conversations.DeleteUser(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	os.RemoveAll(filepath.Join(h.fileBase, strconv.FormatInt(id, 10)))
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

func (h *Handler) getPreferences(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	prefs, err := h.conversations.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) setPreferences(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		DefaultModel     string `json:"default_model"`
		PreferSpeed      bool   `json:"prefer_speed"`
		ResponseStyle    string `json:"response_style"`
		AutoSummarize    bool   `json:"auto_summarize"`
		SmartSuggestions bool   `json:"smart_suggestions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prefs := models.Preferences{
		UserID:           userID,
		DefaultModel:     strings.TrimSpace(req.DefaultModel),
		PreferSpeed:      req.PreferSpeed,
		ResponseStyle:    strings.TrimSpace(req.ResponseStyle),
		AutoSummarize:    req.AutoSummarize,
		SmartSuggestions: req.SmartSuggestions,
	}
	if err := h.conversations.SetPreferences(c.Request.Context(), prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *Handler) createSession(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
		Model string `json:"model"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New Conversation"
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		prefs, err := h.conversations.GetPreferences(c.Request.Context(), userID)
		if err == nil {
			model = prefs.DefaultModel
		}
	}
	session, err := h.conversations.CreateSession(c.Request.Context(), userID, title, model)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *Handler) listSessions(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	seList, err := h.conversations.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(seList) == 0 {
		seList = make([]models.Session, 0)
	}
	c.JSON(http.StatusOK, gin.H{"session_list": seList})
}

func (h *Handler) deleteSession(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	uploads, _ := h.conversations.UploadsForSession(c.Request.Context(), userID, sessionID)
	if err := h.conversations.DeleteSession(c.Request.Context(), userID, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for _, u := range uploads {
		if u.StoredPath != "" {
			os.Remove(u.StoredPath)
		}
		h.extraction.Manager.InvalidateUpload(userID, u.ID)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) getSessionMessages(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	sessionID, err := strconv.ParseInt(c.Param("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	session, messages, err := h.conversations.GetSessionWithMessages(c.Request.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":  session,
		"messages": messages,
	})
}

// User input interface: the message is persisted and routed; no inference
// happens server-side.
type inputRequest struct {
	SessionID   int64  `json:"session_id"`
	Content     string `json:"content"`
	Model       string `json:"model"`
	PreferSpeed bool   `json:"prefer_speed"`
}

func (h *Handler) captureInput(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	var req inputRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	if rl := h.router.CheckRateLimit(); !rl.Allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": rl.Message, "rate_limit": rl})
		return
	}

	session, err := h.conversations.SessionByID(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	selected := strings.TrimSpace(req.Model)
	preferSpeed := req.PreferSpeed
	if selected == "" {
		if prefs, err := h.conversations.GetPreferences(c.Request.Context(), userID); err == nil {
			selected = prefs.DefaultModel
			preferSpeed = preferSpeed || prefs.PreferSpeed
		}
	}

	counts, err := h.conversations.FileCounts(c.Request.Context(), userID, req.SessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	hasDocuments := false
	for _, n := range counts {
		if n > 0 {
			hasDocuments = true
			break
		}
	}

	model, routing := h.router.ModelForQuery(req.Content, selected, hasDocuments, preferSpeed, 0)

	message, err := h.conversations.AddMessage(c.Request.Context(), models.Message{
		UserID:    userID,
		SessionID: req.SessionID,
		Role:      models.RoleUser,
		Content:   req.Content,
		Model:     model,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if session.Model != model {
		if err := h.conversations.UpdateSessionModel(c.Request.Context(), userID, req.SessionID, model); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"routing": routing,
	})
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := gin.Mode() == gin.ReleaseMode
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   gin.Mode() == gin.ReleaseMode,
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
