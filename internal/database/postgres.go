package database

import (
	"context"
	"errors"
	"fmt"

	"campus-chat/internal/models"
	"campus-chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")
	return &PostgresStore{pool: pool}, nil
}

func (db *PostgresStore) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (db *PostgresStore) CreateUser(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	query := `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, username, email, created_at`

	user := &models.User{PasswordHash: string(hash)}
	err = db.pool.QueryRow(ctx, query, req.Username, req.Email, string(hash)).Scan(
		&user.ID, &user.Username, &user.Email, &user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (db *PostgresStore) GetUserByID(ctx context.Context, id int) (*models.User, error) {
	query := `SELECT id, username, email, created_at FROM users WHERE id = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Username, &user.Email, &user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Group Repository Implementation
func (db *PostgresStore) CreateGroup(ctx context.Context, req *models.CreateGroupRequest, ownerID int) (*models.Group, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO groups (name, owner_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, name, owner_id, created_at`

	group := &models.Group{}
	err = tx.QueryRow(ctx, query, req.Name, ownerID).Scan(
		&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	// The creator is a member of their own group from the start.
	membership := `
		INSERT INTO memberships (user_id, group_id) VALUES ($1, $2)
		ON CONFLICT (user_id, group_id) DO NOTHING`
	if _, err := tx.Exec(ctx, membership, ownerID, group.ID); err != nil {
		return nil, fmt.Errorf("failed to add owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return group, nil
}

func (db *PostgresStore) GetGroupByID(ctx context.Context, id int) (*models.Group, error) {
	query := `SELECT id, name, owner_id, created_at FROM groups WHERE id = $1`

	group := &models.Group{}
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return group, nil
}

func (db *PostgresStore) ListUserGroups(ctx context.Context, userID int) ([]*models.Group, error) {
	query := `
		SELECT g.id, g.name, g.owner_id, g.created_at
		FROM groups g
		JOIN memberships m ON g.id = m.group_id
		WHERE m.user_id = $1
		ORDER BY g.name`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.OwnerID, &group.CreatedAt); err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	return groups, rows.Err()
}

// Membership Repository Implementation
func (db *PostgresStore) AddMembership(ctx context.Context, userID, groupID int) error {
	query := `
		INSERT INTO memberships (user_id, group_id) VALUES ($1, $2)
		ON CONFLICT (user_id, group_id) DO NOTHING`

	_, err := db.pool.Exec(ctx, query, userID, groupID)
	return err
}

func (db *PostgresStore) RemoveMembership(ctx context.Context, userID, groupID int) error {
	query := `DELETE FROM memberships WHERE user_id = $1 AND group_id = $2`
	_, err := db.pool.Exec(ctx, query, userID, groupID)
	return err
}

func (db *PostgresStore) IsMember(ctx context.Context, userID, groupID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM memberships WHERE user_id = $1 AND group_id = $2)`

	var exists bool
	err := db.pool.QueryRow(ctx, query, userID, groupID).Scan(&exists)
	return exists, err
}

func (db *PostgresStore) GetGroupMembers(ctx context.Context, groupID int) ([]*models.Member, error) {
	query := `
		SELECT u.id, u.username, u.email
		FROM memberships m
		JOIN users u ON m.user_id = u.id
		WHERE m.group_id = $1
		ORDER BY u.username`

	rows, err := db.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		member := &models.Member{}
		if err := rows.Scan(&member.ID, &member.Username, &member.Email); err != nil {
			return nil, err
		}
		members = append(members, member)
	}

	return members, rows.Err()
}

func (db *PostgresStore) ListMembershipGroupIDs(ctx context.Context, userID int) ([]int, error) {
	query := `SELECT group_id FROM memberships WHERE user_id = $1 ORDER BY group_id`

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groupIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		groupIDs = append(groupIDs, id)
	}

	return groupIDs, rows.Err()
}

// Message Repository Implementation
func (db *PostgresStore) InsertMessage(ctx context.Context, groupID, senderID int, text string, attachments []string) (*models.Message, error) {
	if attachments == nil {
		attachments = []string{}
	}

	query := `
		INSERT INTO messages (id, group_id, sender_id, text, attachments, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`

	msg := &models.Message{
		ID:          uuid.New(),
		GroupID:     groupID,
		SenderID:    senderID,
		Text:        text,
		Attachments: attachments,
	}
	err := db.pool.QueryRow(ctx, query, msg.ID, groupID, senderID, text, attachments).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return msg, nil
}

func (db *PostgresStore) ListMessages(ctx context.Context, groupID, page, limit int) ([]*models.Message, int, error) {
	var total int
	countQuery := `SELECT COUNT(*) FROM messages WHERE group_id = $1`
	if err := db.pool.QueryRow(ctx, countQuery, groupID).Scan(&total); err != nil {
		return nil, 0, err
	}

	// Ties on created_at fall back to insertion order via the serial column,
	// so page boundaries stay stable across requests.
	query := `
		SELECT id, group_id, sender_id, text, attachments, created_at
		FROM messages
		WHERE group_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2 OFFSET $3`

	offset := (page - 1) * limit
	rows, err := db.pool.Query(ctx, query, groupID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.GroupID, &msg.SenderID, &msg.Text, &msg.Attachments, &msg.CreatedAt); err != nil {
			return nil, 0, err
		}
		messages = append(messages, msg)
	}

	return messages, total, rows.Err()
}
