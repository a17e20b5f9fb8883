package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/contri/internal/id"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/storage"
)

const userColumns = "id, email, phone, display_name, password_hash, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var phone sql.NullString
	err := row.Scan(
		&user.ID,
		&user.Email,
		&phone,
		&user.DisplayName,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Phone = phone.String
	return user, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// CreateUser inserts a new user into the database.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = id.NewUserID()
	}
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	if user.UpdatedAt == 0 {
		user.UpdatedAt = now
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		user.ID,
		user.Email,
		nullable(user.Phone),
		user.DisplayName,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", user.Email, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by their email address.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ?", email))
	if err != nil {
		return nil, notFound(err, "user", email)
	}
	return user, nil
}

// GetUserByID retrieves a user by their ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ?", userID))
	if err != nil {
		return nil, notFound(err, "user", userID)
	}
	return user, nil
}

// GetUsersByIDs retrieves multiple users by their IDs.
// Returns a map of user ID to User object.
// Users that don't exist are omitted from the result.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(ids) == 0 {
		return users, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id IN ("+inClause(len(ids))+")",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get users by IDs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[user.ID] = user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// CreatePlaceholder inserts a placeholder member.
func (s *SQLiteStore) CreatePlaceholder(ctx context.Context, p *models.PlaceholderUser) error {
	if p.ID == "" {
		p.ID = id.NewPlaceholderID()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO placeholders (id, name, phone, created_by, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ID, p.Name, p.Phone, p.CreatedBy, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create placeholder: %w", err)
	}
	return nil
}

// ListPlaceholdersByPhone returns every placeholder created for a phone number.
func (s *SQLiteStore) ListPlaceholdersByPhone(ctx context.Context, phone string) ([]*models.PlaceholderUser, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, phone, created_by, created_at FROM placeholders WHERE phone = ? ORDER BY created_at, id",
		phone,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list placeholders: %w", err)
	}
	defer rows.Close()

	var out []*models.PlaceholderUser
	for rows.Next() {
		p := &models.PlaceholderUser{}
		if err := rows.Scan(&p.ID, &p.Name, &p.Phone, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan placeholder: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate placeholders: %w", err)
	}
	return out, nil
}

// DeletePlaceholder removes a placeholder by ID.
func (s *SQLiteStore) DeletePlaceholder(ctx context.Context, placeholderID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM placeholders WHERE id = ?", placeholderID)
	if err != nil {
		return fmt.Errorf("failed to delete placeholder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("placeholder %s: %w", placeholderID, storage.ErrNotFound)
	}
	return nil
}
