package api

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"docuchat/internal/filerouter"
	"docuchat/internal/modelrouter"
	"docuchat/internal/models"
)

// Total on-disk storage allowed per user across all sessions.
const userStorageQuota = 500 << 20

func (h *Handler) health(c *gin.Context) {
	ctx := c.Request.Context()
	components := gin.H{}
	status := http.StatusOK

	if err := h.conversations.Ping(ctx); err != nil {
		components["database"] = "error"
		status = http.StatusServiceUnavailable
	} else {
		components["database"] = "ok"
	}

	if h.cache == nil {
		components["redis"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		components["redis"] = "error"
	} else {
		components["redis"] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "components": components})
}

func (h *Handler) stats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":     int64(time.Since(h.startedAt).Seconds()),
		"extraction_queue":   h.extraction.QueueDepth(),
		"rate_limit":         h.router.RateLimitStatus(),
		"routing_categories": modelrouter.Catalog(),
	})
}

type analyzeRequest struct {
	Filename     string         `json:"filename"`
	MimeType     string         `json:"mime_type"`
	FileSize     int64          `json:"file_size"`
	CurrentModel string         `json:"current_model"`
	CurrentFiles map[string]int `json:"current_files"`
}

func parseCounts(raw map[string]int) map[filerouter.FileType]int {
	counts := make(map[filerouter.FileType]int, len(raw))
	for k, v := range raw {
		if v > 0 {
			counts[filerouter.FileType(k)] = v
		}
	}
	return counts
}

// analyzeFile runs the full pipeline for a single candidate file: classify,
// check model compatibility, validate against session limits and build the
// user-facing suggestion. Malformed input rejects the upload rather than
// letting an unclassified file through.
func (h *Handler) analyzeFile(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejectAnalyze(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Filename) == "" {
		rejectAnalyze(c, "filename is required")
		return
	}

	counts := parseCounts(req.CurrentFiles)
	info := filerouter.Analyze(req.Filename, req.MimeType, req.FileSize)
	decision := filerouter.Check(req.CurrentModel, info.FileType, counts[info.FileType]+1)
	validation := filerouter.ValidateUpload(info.FileType, counts, filerouter.CategoryForModel(req.CurrentModel), info.FileSizeMB)
	suggestion := filerouter.BuildSuggestion(decision, validation, info)

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"analysis":      info,
		"compatibility": decision,
		"validation":    validation,
		"suggestion":    suggestion,
	})
}

// rejectAnalyze fails closed: a request the server cannot parse never gets an
// optimistic verdict, only an error suggestion.
func rejectAnalyze(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
		"suggestion": filerouter.Suggestion{
			Type:             filerouter.SuggestError,
			Title:            "Invalid Request",
			Message:          msg,
			Action:           filerouter.ActionNone,
			Severity:         filerouter.SeverityHigh,
			CompatibleModels: filerouter.NoModels(),
		},
	})
}

type batchFileEntry struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

type analyzeBatchRequest struct {
	Files        []batchFileEntry `json:"files"`
	CurrentModel string           `json:"current_model"`
	CurrentFiles map[string]int   `json:"current_files"`
}

func (h *Handler) analyzeBatch(c *gin.Context) {
	var req analyzeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		rejectAnalyze(c, "invalid request body")
		return
	}
	if len(req.Files) == 0 {
		rejectAnalyze(c, "files is required")
		return
	}

	counts := parseCounts(req.CurrentFiles)
	infos := make([]filerouter.FileInfo, 0, len(req.Files))
	for _, f := range req.Files {
		infos = append(infos, filerouter.Analyze(f.Filename, f.MimeType, f.FileSize))
	}
	batch := filerouter.ValidateBatch(infos, counts, filerouter.CategoryForModel(req.CurrentModel))

	// Compatibility is simulated in order: each accepted file raises the
	// count the next one is checked against.
	running := make(map[filerouter.FileType]int, len(counts))
	for k, v := range counts {
		running[k] = v
	}
	decisions := make([]filerouter.Decision, 0, len(infos))
	for _, info := range infos {
		dec := filerouter.Check(req.CurrentModel, info.FileType, running[info.FileType]+1)
		decisions = append(decisions, dec)
		if dec.IsCompatible {
			running[info.FileType]++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"files":         infos,
		"compatibility": decisions,
		"validation":    batch,
	})
}

// wildcardModel reads a model ID captured by a *model route param. Model IDs
// contain slashes, so a plain :model param cannot hold them.
func wildcardModel(c *gin.Context) string {
	return strings.TrimPrefix(c.Param("model"), "/")
}

func (h *Handler) modelCapabilities(c *gin.Context) {
	model := wildcardModel(c)
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":        model,
		"family":       filerouter.FamilyOf(model),
		"category":     filerouter.CategoryForModel(model),
		"capabilities": filerouter.ModelCapabilities(model),
	})
}

func (h *Handler) uploadLimits(c *gin.Context) {
	model := wildcardModel(c)
	if model == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	}
	category := filerouter.CategoryForModel(model)
	sizeLimits := make(map[filerouter.FileType]int)
	for t := range filerouter.UploadLimits(category) {
		sizeLimits[t] = filerouter.SizeLimitMB(t)
	}
	c.JSON(http.StatusOK, gin.H{
		"model":          model,
		"category":       category,
		"limits":         filerouter.UploadLimits(category),
		"total_limit":    filerouter.TotalLimit(category),
		"size_limits_mb": sizeLimits,
	})
}

// User file upload interface. The upload is re-validated server-side against
// the session's current model and stored counts; the client pre-check is
// advisory only.
func (h *Handler) filesUpload(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	maxBytes := int64(h.maxUploadMB) << 20
	if err := c.Request.ParseMultipartForm(maxBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	sessionID, err := strconv.ParseInt(c.Request.FormValue("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("file exceeds %dMB limit", h.maxUploadMB)})
		return
	}

	session, err := h.conversations.SessionByID(c.Request.Context(), userID, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	info := filerouter.Analyze(header.Filename, header.Header.Get("Content-Type"), header.Size)
	if !info.IsSupported {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "unsupported file type",
			"analysis":   info,
			"suggestion": filerouter.BuildSuggestion(filerouter.Decision{}, filerouter.Validation{}, info),
		})
		return
	}

	counts, err := h.conversations.FileCounts(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	decision := filerouter.Check(session.Model, info.FileType, counts[info.FileType]+1)
	validation := filerouter.ValidateUpload(info.FileType, counts, filerouter.CategoryForModel(session.Model), info.FileSizeMB)
	if !decision.IsCompatible || !validation.IsValid {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":         "upload rejected",
			"analysis":      info,
			"compatibility": decision,
			"validation":    validation,
			"suggestion":    filerouter.BuildSuggestion(decision, validation, info),
		})
		return
	}

	used, err := h.conversations.StorageUsage(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if used+header.Size > userStorageQuota {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "storage quota exceeded"})
		return
	}

	userDir := filepath.Join(h.fileBase, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(userDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store file failed"})
		return
	}
	storedPath, err := getUniqueFilePath(userDir, filepath.Base(header.Filename))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store file failed"})
		return
	}
	if err := saveStream(file, storedPath); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store file failed"})
		return
	}

	upload, err := h.conversations.RecordUpload(c.Request.Context(), models.Upload{
		UserID:     userID,
		SessionID:  sessionID,
		FileName:   header.Filename,
		StoredPath: storedPath,
		MimeType:   info.MimeType,
		Size:       header.Size,
		FileType:   info.FileType,
	}, h.fileTTL)
	if err != nil {
		os.Remove(storedPath)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	queued := h.extraction.ExtractAsync(userID, upload.ID)
	c.JSON(http.StatusCreated, gin.H{
		"upload":            upload,
		"analysis":          info,
		"compatibility":     decision,
		"validation":        validation,
		"extraction_queued": queued,
	})
}

func (h *Handler) listUploads(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	sessionID, err := strconv.ParseInt(c.Query("session_id"), 10, 64)
	if err != nil || sessionID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	uploads, err := h.conversations.UploadsForSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(uploads) == 0 {
		uploads = make([]models.Upload, 0)
	}
	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}

// uploadText returns the extracted text of an upload, running the extraction
// synchronously if it has not happened yet.
func (h *Handler) uploadText(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	uploadID, err := strconv.ParseInt(c.Param("upload_id"), 10, 64)
	if err != nil || uploadID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}
	upload, err := h.conversations.UploadByID(c.Request.Context(), userID, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if upload.Status != models.UploadExtracted && upload.Status != models.UploadNative {
		result, err := h.extraction.Extract(c.Request.Context(), userID, uploadID)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		if result.Err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": result.Err.Error(), "status": result.Status})
			return
		}
		upload, err = h.conversations.UploadByID(c.Request.Context(), userID, uploadID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"upload_id":  upload.ID,
		"status":     upload.Status,
		"page_count": upload.PageCount,
		"text":       upload.ExtractedText,
	})
}

func (h *Handler) deleteUpload(c *gin.Context) {
	userID, ok := h.authorizedUserID(c)
	if !ok {
		return
	}
	uploadID, err := strconv.ParseInt(c.Param("upload_id"), 10, 64)
	if err != nil || uploadID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid upload id"})
		return
	}
	upload, err := h.conversations.DeleteUpload(c.Request.Context(), userID, uploadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if upload.StoredPath != "" {
		os.Remove(upload.StoredPath)
	}
	h.extraction.Manager.InvalidateUpload(userID, uploadID)
	c.Status(http.StatusNoContent)
}

// getUniqueFilePath appends " (N)" before the extension until the name does
// not collide with an existing file.
func getUniqueFilePath(dir, name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
		if i > 1000 {
			return "", fmt.Errorf("too many duplicate names for %s", name)
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", base, i, ext))
	}
}

func saveStream(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return err
	}
	return dst.Close()
}
