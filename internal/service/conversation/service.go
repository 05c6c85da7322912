// Package conversation persists users, chat sessions, and uploads behind the
// routing API.
package conversation

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"docuchat/internal/models"
)

// Service handles user lifecycle and conversation persistence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// Ping reports whether the backing database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RegisterUser creates a user with the supplied credentials.
func (s *Service) RegisterUser(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	hash := hashPassword(password)
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, hash, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("user id: %w", err)
	}
	return &models.User{ID: id, Username: username, PasswordHash: hash, CreatedAt: now}, nil
}

// Login validates credentials and returns the user profile.
func (s *Service) Login(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	password = strings.TrimSpace(password)
	if username == "" || password == "" {
		return nil, errors.New("username and password are required")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	)
	var user models.User
	if err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.New("invalid credentials")
		}
		return nil, fmt.Errorf("query user: %w", err)
	}

	if user.PasswordHash != hashPassword(password) {
		return nil, errors.New("invalid credentials")
	}
	return &user, nil
}

// DeleteUser removes a user and cascaded data.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id <= 0 {
		return errors.New("invalid user id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetPreferences returns the user's routing defaults, zero-valued when none
// are stored.
func (s *Service) GetPreferences(ctx context.Context, userID int64) (models.Preferences, error) {
	prefs := models.Preferences{UserID: userID}
	err := s.db.QueryRowContext(ctx,
		`SELECT default_model, prefer_speed, response_style, auto_summarize, smart_suggestions
		 FROM preferences WHERE user_id = ?`, userID,
	).Scan(&prefs.DefaultModel, &prefs.PreferSpeed, &prefs.ResponseStyle, &prefs.AutoSummarize, &prefs.SmartSuggestions)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return prefs, fmt.Errorf("query preferences: %w", err)
	}
	return prefs, nil
}

// SetPreferences upserts the user's routing defaults.
func (s *Service) SetPreferences(ctx context.Context, prefs models.Preferences) error {
	if prefs.UserID <= 0 {
		return errors.New("invalid user id")
	}
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)`, prefs.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("verify user: %w", err)
	}
	if !exists {
		return errors.New("user not found")
	}
	// Explicit exists-then-write keeps the upsert portable across sqlite
	// and mysql.
	var stored bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM preferences WHERE user_id = ?)`, prefs.UserID).Scan(&stored); err != nil {
		return fmt.Errorf("check preferences: %w", err)
	}
	if stored {
		_, err := s.db.ExecContext(ctx,
			`UPDATE preferences SET default_model = ?, prefer_speed = ?, response_style = ?, auto_summarize = ?, smart_suggestions = ?
			 WHERE user_id = ?`,
			prefs.DefaultModel, prefs.PreferSpeed, prefs.ResponseStyle, prefs.AutoSummarize, prefs.SmartSuggestions, prefs.UserID,
		)
		if err != nil {
			return fmt.Errorf("update preferences: %w", err)
		}
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (user_id, default_model, prefer_speed, response_style, auto_summarize, smart_suggestions)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		prefs.UserID, prefs.DefaultModel, prefs.PreferSpeed, prefs.ResponseStyle, prefs.AutoSummarize, prefs.SmartSuggestions,
	)
	if err != nil {
		return fmt.Errorf("store preferences: %w", err)
	}
	return nil
}

func hashPassword(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
