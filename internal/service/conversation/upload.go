package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"docuchat/internal/filerouter"
	"docuchat/internal/models"
)

// RecordUpload inserts an upload row in pending state and returns it.
func (s *Service) RecordUpload(ctx context.Context, u models.Upload, ttl time.Duration) (*models.Upload, error) {
	if u.UserID <= 0 {
		return nil, errors.New("user_id is required")
	}
	if u.SessionID <= 0 {
		return nil, errors.New("session_id is required")
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ? AND user_id = ?)`,
		u.SessionID, u.UserID,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("verify session: %w", err)
	}
	if !exists {
		return nil, errors.New("session not found")
	}

	now := time.Now().UTC()
	u.Status = models.UploadPending
	u.CreatedAt = now
	u.ExpiresAt = now.Add(ttl)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (user_id, session_id, file_name, stored_path, mime_type, size, file_type, status, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UserID, u.SessionID, u.FileName, u.StoredPath, u.MimeType, u.Size, u.FileType, u.Status, u.CreatedAt, u.ExpiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert upload: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("upload id: %w", err)
	}
	u.ID = id
	return &u, nil
}

// UploadByID returns one upload owned by the user.
func (s *Service) UploadByID(ctx context.Context, userID, uploadID int64) (*models.Upload, error) {
	var u models.Upload
	var text sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, session_id, file_name, stored_path, mime_type, size, file_type, status, extracted_text, page_count, created_at, expires_at
		 FROM uploads WHERE id = ? AND user_id = ?`,
		uploadID, userID,
	).Scan(&u.ID, &u.UserID, &u.SessionID, &u.FileName, &u.StoredPath, &u.MimeType, &u.Size, &u.FileType, &u.Status, &text, &u.PageCount, &u.CreatedAt, &u.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	u.ExtractedText = text.String
	return &u, nil
}

// UploadsForSession lists the session's uploads, newest first.
func (s *Service) UploadsForSession(ctx context.Context, userID, sessionID int64) ([]models.Upload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, session_id, file_name, stored_path, mime_type, size, file_type, status, page_count, created_at, expires_at
		 FROM uploads WHERE session_id = ? AND user_id = ? ORDER BY created_at DESC`,
		sessionID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ID, &u.UserID, &u.SessionID, &u.FileName, &u.StoredPath, &u.MimeType, &u.Size, &u.FileType, &u.Status, &u.PageCount, &u.CreatedAt, &u.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scan upload: %w", err)
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// FileCounts returns the number of live uploads per file type in a session.
// This is the server-side count the upload limit check runs against.
func (s *Service) FileCounts(ctx context.Context, userID, sessionID int64) (map[filerouter.FileType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT file_type, COUNT(*) FROM uploads
		 WHERE session_id = ? AND user_id = ? AND status != ? AND expires_at > ?
		 GROUP BY file_type`,
		sessionID, userID, models.UploadFailed, time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("count uploads: %w", err)
	}
	defer rows.Close()

	counts := make(map[filerouter.FileType]int)
	for rows.Next() {
		var ft filerouter.FileType
		var n int
		if err := rows.Scan(&ft, &n); err != nil {
			return nil, fmt.Errorf("scan upload count: %w", err)
		}
		counts[ft] = n
	}
	return counts, rows.Err()
}

// StoreExtraction saves the extracted text and final status for an upload.
func (s *Service) StoreExtraction(ctx context.Context, uploadID int64, text string, pages int, status string) error {
	if uploadID <= 0 {
		return errors.New("invalid upload id")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE uploads SET extracted_text = ?, page_count = ?, status = ? WHERE id = ?`,
		text, pages, status, uploadID,
	)
	if err != nil {
		return fmt.Errorf("store extraction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upload rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteUpload removes the row; the caller owns removing the stored file.
func (s *Service) DeleteUpload(ctx context.Context, userID, uploadID int64) (*models.Upload, error) {
	u, err := s.UploadByID(ctx, userID, uploadID)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ? AND user_id = ?`, uploadID, userID); err != nil {
		return nil, fmt.Errorf("delete upload: %w", err)
	}
	return u, nil
}

// StorageUsage reports total bytes of live uploads for the user.
func (s *Service) StorageUsage(ctx context.Context, userID int64) (int64, error) {
	var total sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT SUM(size) FROM uploads WHERE user_id = ? AND expires_at > ?`,
		userID, time.Now().UTC(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("storage usage: %w", err)
	}
	return total.Int64, nil
}
