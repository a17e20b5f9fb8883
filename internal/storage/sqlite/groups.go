package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mmynk/contri/internal/id"
	"github.com/mmynk/contri/internal/ledger"
	"github.com/mmynk/contri/internal/models"
	"github.com/mmynk/contri/internal/storage"
)

// CreateGroup persists a new group with its members and debts.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	if group.ID == "" {
		group.ID = id.NewGroupID()
	}
	now := time.Now().Unix()
	if group.CreatedAt == 0 {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_by, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		group.ID, group.Name, group.CreatedBy, group.CreatedAt, group.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("group %s: %w", group.ID, storage.ErrAlreadyExists)
		}
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertMembersAndDebts(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetGroup retrieves a group by ID, including members and debts.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, created_by, created_at, updated_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.CreatedBy, &group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		return nil, notFound(err, "group", groupID)
	}

	group.Members, err = s.ListMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	group.Debts, err = s.listDebts(ctx, groupID)
	if err != nil {
		return nil, err
	}

	return group, nil
}

// UpdateGroup replaces the group's name, members and debts in one transaction.
func (s *SQLiteStore) UpdateGroup(ctx context.Context, group *models.Group) error {
	group.UpdatedAt = time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"UPDATE groups SET name = ?, updated_at = ? WHERE id = ?",
		group.Name, group.UpdatedAt, group.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("group %s: %w", group.ID, storage.ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM group_members WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to delete old members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM group_debts WHERE group_id = ?", group.ID); err != nil {
		return fmt.Errorf("failed to delete old debts: %w", err)
	}
	if err := insertMembersAndDebts(ctx, tx, group); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// DeleteGroup removes a group. Members, debts, expenses and settlements are
// removed by cascade.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM groups WHERE id = ?", groupID)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("group %s: %w", groupID, storage.ErrNotFound)
	}
	return nil
}

// ListGroupsByMember returns all groups that memberID belongs to.
func (s *SQLiteStore) ListGroupsByMember(ctx context.Context, memberID string) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT g.id FROM groups g
		 JOIN group_members m ON m.group_id = g.id
		 WHERE m.member_id = ?
		 ORDER BY g.created_at DESC, g.id DESC`,
		memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups by member: %w", err)
	}

	var ids []string
	for rows.Next() {
		var groupID string
		if err := rows.Scan(&groupID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan group id: %w", err)
		}
		ids = append(ids, groupID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}

	groups := make([]*models.Group, 0, len(ids))
	for _, groupID := range ids {
		group, err := s.GetGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// ListMembers returns the group's members in the order they were added.
func (s *SQLiteStore) ListMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT member_id, kind, display_name FROM group_members WHERE group_id = ? ORDER BY position",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ID, &m.Kind, &m.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if _, err := m.Ref(); err != nil {
			return nil, fmt.Errorf("group %s: %w", groupID, err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate members: %w", err)
	}
	return members, nil
}

// IsMember reports whether memberID belongs to the group.
func (s *SQLiteStore) IsMember(ctx context.Context, groupID, memberID string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM group_members WHERE group_id = ? AND member_id = ?",
		groupID, memberID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) listDebts(ctx context.Context, groupID string) ([]ledger.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user1, user2, net, state FROM group_debts WHERE group_id = ? ORDER BY user1, user2",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get debts: %w", err)
	}
	defer rows.Close()

	var debts []ledger.Entry
	for rows.Next() {
		var e ledger.Entry
		if err := rows.Scan(&e.User1, &e.User2, &e.Net, &e.State); err != nil {
			return nil, fmt.Errorf("failed to scan debt: %w", err)
		}
		debts = append(debts, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate debts: %w", err)
	}
	return debts, nil
}

func insertMembersAndDebts(ctx context.Context, tx *sql.Tx, group *models.Group) error {
	for i, m := range group.Members {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, member_id, kind, display_name, position) VALUES (?, ?, ?, ?, ?)",
			group.ID, m.ID, m.Kind, m.DisplayName, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
	}

	for _, e := range group.Debts {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO group_debts (group_id, user1, user2, net, state) VALUES (?, ?, ?, ?, ?)",
			group.ID, e.User1, e.User2, e.Net, e.State,
		)
		if err != nil {
			return fmt.Errorf("failed to insert debt: %w", err)
		}
	}
	return nil
}
