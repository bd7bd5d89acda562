package database

import (
	"context"
	"errors"
	"fmt"

	"chat-rooms/internal/models"
	"chat-rooms/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(ctx context.Context, databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &PostgresDB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to database successfully", "driver", "postgres")
	return db, nil
}

func (db *PostgresDB) migrate(ctx context.Context) error {
	schema, err := loadSchema("postgres")
	if err != nil {
		return err
	}
	for _, stmt := range splitStatements(schema) {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// User Repository Implementation
func (db *PostgresDB) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	query := `SELECT id, name FROM users WHERE name = $1`

	user := &models.User{}
	err := db.pool.QueryRow(ctx, query, name).Scan(&user.ID, &user.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Room Repository Implementation
func (db *PostgresDB) GetRoomByID(ctx context.Context, id int) (*models.Room, error) {
	query := `SELECT id, name FROM rooms WHERE id = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, id).Scan(&room.ID, &room.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	return room, nil
}

// Message Repository Implementation
func (db *PostgresDB) AppendMessage(ctx context.Context, roomID, userID int, content string) (*models.Message, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var roomExists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rooms WHERE id = $1)`, roomID).Scan(&roomExists); err != nil {
		return nil, err
	}
	if !roomExists {
		return nil, fmt.Errorf("room %d: %w", roomID, ErrNotFound)
	}

	msg := &models.Message{RoomID: roomID, UserID: userID, Content: content}
	err = tx.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, userID).Scan(&msg.Username)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// clock_timestamp keeps created_at moving within long transactions, unlike NOW()
	query := `
		INSERT INTO messages (user_id, room_id, content, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, query, userID, roomID, content).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

func (db *PostgresDB) History(ctx context.Context, roomID int) ([]*models.Message, error) {
	query := `
		SELECT m.id, m.user_id, m.room_id, m.content, u.name, m.created_at
		FROM messages m
		JOIN users u ON m.user_id = u.id
		WHERE m.room_id = $1
		ORDER BY m.id ASC`

	rows, err := db.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*models.Message{}
	for rows.Next() {
		msg := &models.Message{}
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.RoomID, &msg.Content, &msg.Username, &msg.CreatedAt); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// Seeder Implementation
func (db *PostgresDB) EnsureUser(ctx context.Context, name string) (int, error) {
	query := `
		INSERT INTO users (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	var id int
	err := db.pool.QueryRow(ctx, query, name).Scan(&id)
	return id, err
}

func (db *PostgresDB) EnsureRoom(ctx context.Context, name string) (int, error) {
	query := `
		INSERT INTO rooms (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`

	var id int
	err := db.pool.QueryRow(ctx, query, name).Scan(&id)
	return id, err
}
