package worker

import (
	"context"
	"log"

	"docuchat/internal/extract"
	"docuchat/internal/filerouter"
	"docuchat/internal/models"
	"docuchat/internal/redis"
)

// UploadStore is the slice of the conversation service the extraction
// pipeline needs.
type UploadStore interface {
	UploadByID(ctx context.Context, userID, uploadID int64) (*models.Upload, error)
	StoreExtraction(ctx context.Context, uploadID int64, text string, pages int, status string) error
}

// extractFile is swapped out in tests.
var extractFile = extract.FromFile

// Manager executes extraction jobs: load the upload record, extract text,
// persist it, and fan the result out to waiters. Results are cached in redis
// so restarts and other nodes skip re-extraction.
type Manager struct {
	store UploadStore
	cache *extractCache
	state *extractionState
}

func NewManager(store UploadStore, cacheClient *redis.Client) *Manager {
	m := &Manager{
		store: store,
		cache: newExtractCache(cacheClient),
		state: newExtractionState(),
	}
	m.cache.startListener(func(msg invalidateMessage) {
		m.state.purge(msg.UploadID)
	})
	return m
}

// InvalidateUpload drops cached extraction state everywhere, called when an
// upload is deleted or expires.
func (m *Manager) InvalidateUpload(userID, uploadID int64) {
	m.state.purge(uploadID)
	m.cache.invalidateUpload(uploadID)
	m.cache.publishInvalidation(invalidateMessage{UserID: userID, UploadID: uploadID})
}

func (m *Manager) memoized(uploadID int64) (ExtractResult, bool) {
	return m.state.memoized(uploadID)
}

func (m *Manager) handleExtract(task ExtractTask) {
	ctx := task.Ctx
	if ctx == nil {
		ctx = context.Background()
	}

	upload, err := m.store.UploadByID(ctx, task.UserID, task.UploadID)
	if err != nil {
		m.state.drainWaiters(task.UploadID, ExtractResult{UploadID: task.UploadID, Err: err})
		return
	}

	// Already extracted, nothing to do.
	if upload.Status == models.UploadExtracted {
		m.state.drainWaiters(task.UploadID, ExtractResult{
			UploadID: task.UploadID,
			Status:   upload.Status,
			Pages:    upload.PageCount,
		})
		return
	}

	// Native image uploads carry no text to extract.
	if upload.FileType == filerouter.TypeImage {
		m.finish(ctx, task.UploadID, "", 0, models.UploadNative)
		return
	}

	if text, pages, ok := m.cache.loadExtraction(upload.ID); ok {
		debugLog("[manager] extraction cache hit for upload %d", upload.ID)
		m.finish(ctx, task.UploadID, text, pages, models.UploadExtracted)
		return
	}

	res, err := extractFile(upload.StoredPath, upload.FileType)
	if err != nil {
		log.Printf("extract upload %d (%s) failed: %v", upload.ID, upload.FileName, err)
		if serr := m.store.StoreExtraction(ctx, task.UploadID, "", 0, models.UploadFailed); serr != nil {
			log.Printf("store failed status for upload %d: %v", upload.ID, serr)
		}
		m.state.drainWaiters(task.UploadID, ExtractResult{
			UploadID: task.UploadID,
			Status:   models.UploadFailed,
			Err:      err,
		})
		return
	}

	m.cache.cacheExtraction(upload.ID, res.Text, res.Pages)
	m.finish(ctx, task.UploadID, res.Text, res.Pages, models.UploadExtracted)
}

func (m *Manager) finish(ctx context.Context, uploadID int64, text string, pages int, status string) {
	if err := m.store.StoreExtraction(ctx, uploadID, text, pages, status); err != nil {
		m.state.drainWaiters(uploadID, ExtractResult{UploadID: uploadID, Err: err})
		return
	}
	m.state.drainWaiters(uploadID, ExtractResult{UploadID: uploadID, Status: status, Pages: pages})
}
