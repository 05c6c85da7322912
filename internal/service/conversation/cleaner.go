package conversation

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultUploadTTL             = 24 * time.Hour
	DefaultUploadCleanupInterval = time.Hour
)

// StartUploadCleaner periodically removes expired uploads and their stored
// files. onRemoved, when set, is called per deleted upload so callers can
// drop extraction caches.
func (s *Service) StartUploadCleaner(ctx context.Context, interval time.Duration, onRemoved func(userID, uploadID int64)) {
	if interval <= 0 {
		interval = DefaultUploadCleanupInterval
	}
	go s.cleanupLoop(ctx, interval, onRemoved)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration, onRemoved func(userID, uploadID int64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpiredUploads(onRemoved); err != nil {
				log.Printf("cleanup uploads error: %v", err)
			}
		}
	}
}

func (s *Service) cleanupExpiredUploads(onRemoved func(userID, uploadID int64)) error {
	rows, err := s.db.Query(`
		SELECT id, user_id, stored_path FROM uploads
		WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	type uploadRow struct {
		id     int64
		userID int64
		path   string
	}
	var uploads []uploadRow
	for rows.Next() {
		var ur uploadRow
		if err := rows.Scan(&ur.id, &ur.userID, &ur.path); err != nil {
			return err
		}
		uploads = append(uploads, ur)
	}

	for _, u := range uploads {
		if err := os.Remove(u.path); err != nil && !os.IsNotExist(err) {
			log.Printf("remove upload file %s failed: %v", u.path, err)
			continue
		}
		if _, err := s.db.Exec(`DELETE FROM uploads WHERE id = ?`, u.id); err != nil {
			log.Printf("delete upload record %d failed: %v", u.id, err)
			continue
		}
		if onRemoved != nil {
			onRemoved(u.userID, u.id)
		}

		// prune empty directories
		_ = os.Remove(filepath.Dir(u.path))
	}
	return nil
}
