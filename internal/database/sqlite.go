package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"chat-rooms/internal/models"
	"chat-rooms/pkg/logger"

	_ "modernc.org/sqlite"
)

type SQLiteDB struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// One writer at a time; appends are serialized by the pool instead of SQLITE_BUSY retries.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	db := &SQLiteDB{db: sqlDB}
	if err := db.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("Connected to database successfully", "driver", "sqlite", "path", path)
	return db, nil
}

func (s *SQLiteDB) migrate(ctx context.Context) error {
	schema, err := loadSchema("sqlite")
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	user := &models.User{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM users WHERE name = ?`, name).Scan(&user.ID, &user.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *SQLiteDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	room := &models.Room{}
	err := s.db.QueryRowContext(ctx, `SELECT id, name FROM rooms WHERE id = ?`, id).Scan(&room.ID, &room.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (s *SQLiteDB) AppendMessage(ctx context.Context, roomID, userID int, content string) (*models.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var roomExists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id = ?)`, roomID).Scan(&roomExists); err != nil {
		return nil, err
	}
	if !roomExists {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}

	msg := &models.Message{RoomID: roomID, UserID: userID, Content: content}
	err = tx.QueryRowContext(ctx, `SELECT name FROM users WHERE id = ?`, userID).Scan(&msg.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	createdAt := time.Now()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (user_id, room_id, content, created_at) VALUES (?, ?, ?, ?)`,
		userID, roomID, content, toMillis(createdAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}

	msg.ID = int(id)
	msg.CreatedAt = fromMillis(toMillis(createdAt))
	return msg, nil
}

func (s *SQLiteDB) History(ctx context.Context, roomID int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.user_id, m.room_id, m.content, u.name, m.created_at
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = ?
		ORDER BY m.id ASC`

	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg := &models.Message{}
		var createdAt int64
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.RoomID, &msg.Content, &msg.Username, &createdAt); err != nil {
			return nil, err
		}
		msg.CreatedAt = fromMillis(createdAt)
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *SQLiteDB) EnsureUser(ctx context.Context, name string) (int, error) {
	return s.ensure(ctx, "users", name)
}

func (s *SQLiteDB) EnsureRoom(ctx context.Context, name string) (int, error) {
	return s.ensure(ctx, "rooms", name)
}

func (s *SQLiteDB) ensure(ctx context.Context, table, name string) (int, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (name) VALUES (?)
		ON CONFLICT (name) DO UPDATE SET name = excluded.name
		RETURNING id`, table)

	var id int
	err := s.db.QueryRowContext(ctx, query, name).Scan(&id)
	return id, err
}
