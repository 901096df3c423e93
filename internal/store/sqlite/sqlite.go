package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arotu/chat-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &SQLiteStore{db: db}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema without migrations.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a new user with hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, avatar string) (*store.User, error) {
	id := newID()
	query := `
		INSERT INTO users (id, username, password_hash, avatar)
		VALUES (?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, id, username, passwordHash, avatar); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, COALESCE(avatar, ''), COALESCE(bio, ''), last_seen, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, password_hash, COALESCE(avatar, ''), COALESCE(bio, ''), last_seen, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	var lastSeen sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Avatar,
		&user.Bio,
		&lastSeen,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Time
	}

	return &user, nil
}

// GetUsersByIDs retrieves users for a set of IDs, keyed by ID.
func (s *SQLiteStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*store.User, error) {
	users := make(map[string]*store.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, COALESCE(avatar, ''), COALESCE(bio, ''), last_seen, created_at
		FROM users
		WHERE id IN (%s)
	`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var user store.User
		var lastSeen sql.NullTime
		if err := rows.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Avatar, &user.Bio, &lastSeen, &user.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		if lastSeen.Valid {
			user.LastSeen = &lastSeen.Time
		}
		users[user.ID] = &user
	}

	return users, rows.Err()
}

// SetLastSeen updates a user's last_seen timestamp.
func (s *SQLiteStore) SetLastSeen(ctx context.Context, userID string, at *time.Time) error {
	query := `UPDATE users SET last_seen = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user: %w", store.ErrNotFound)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a new room with the creator as first member and admin.
func (s *SQLiteStore) CreateRoom(ctx context.Context, room *store.Room) (*store.Room, error) {
	if room.ID == "" {
		room.ID = newID()
	}
	if room.Kind == "" {
		room.Kind = store.RoomKindMain
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `
		INSERT INTO rooms (id, name, is_private, creator_id, parent_id, kind)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	if _, err := tx.ExecContext(ctx, query, room.ID, room.Name, room.IsPrivate, room.CreatorID, room.ParentID, string(room.Kind)); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}

	memberQuery := `
		INSERT INTO room_members (room_id, user_id, is_admin)
		VALUES (?, ?, 1)
	`
	if _, err := tx.ExecContext(ctx, memberQuery, room.ID, room.CreatorID); err != nil {
		return nil, fmt.Errorf("add creator to members: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return s.GetRoomByID(ctx, room.ID)
}

// GetRoomByID retrieves a room by ID.
func (s *SQLiteStore) GetRoomByID(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, is_private, creator_id, parent_id, kind, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	var parentID sql.NullString
	var kind string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.Name,
		&room.IsPrivate,
		&room.CreatorID,
		&parentID,
		&kind,
		&room.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room: %w", store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}

	room.Kind = store.RoomKind(kind)
	if parentID.Valid {
		room.ParentID = &parentID.String
	}

	return &room, nil
}

// ListRooms lists all rooms visible to a user.
func (s *SQLiteStore) ListRooms(ctx context.Context, userID string) ([]*store.Room, error) {
	query := `
		SELECT DISTINCT r.id, r.name, r.is_private, r.creator_id, r.parent_id, r.kind, r.created_at
		FROM rooms r
		LEFT JOIN room_members rm ON r.id = rm.room_id
		WHERE r.is_private = 0
		   OR rm.user_id = ?
		ORDER BY r.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		var parentID sql.NullString
		var kind string
		if err := rows.Scan(&room.ID, &room.Name, &room.IsPrivate, &room.CreatorID, &parentID, &kind, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		room.Kind = store.RoomKind(kind)
		if parentID.Valid {
			room.ParentID = &parentID.String
		}
		rooms = append(rooms, &room)
	}

	return rooms, rows.Err()
}

// AddMember adds a user to a room. Idempotent.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID string) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// RemoveMember removes a user from a room.
func (s *SQLiteStore) RemoveMember(ctx context.Context, userID, roomID string) error {
	query := `
		DELETE FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("delete room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE room_id = ? AND user_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMembers lists all member IDs of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT user_id FROM room_members
		WHERE room_id = ?
		ORDER BY joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}

	return members, rows.Err()
}

// AddAdmin marks a room member as admin. Idempotent.
func (s *SQLiteStore) AddAdmin(ctx context.Context, userID, roomID string) error {
	query := `
		INSERT INTO room_members (room_id, user_id, is_admin)
		VALUES (?, ?, 1)
		ON CONFLICT(room_id, user_id) DO UPDATE SET is_admin = 1
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("insert room admin: %w", err)
	}
	return nil
}

// RemoveAdmin removes admin status from a user.
func (s *SQLiteStore) RemoveAdmin(ctx context.Context, userID, roomID string) error {
	query := `
		UPDATE room_members SET is_admin = 0
		WHERE room_id = ? AND user_id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID); err != nil {
		return fmt.Errorf("update room admin: %w", err)
	}
	return nil
}

// IsAdmin checks if user is an admin of the room.
func (s *SQLiteStore) IsAdmin(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE room_id = ? AND user_id = ? AND is_admin = 1
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, roomID, userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query admin: %w", err)
	}
	return true, nil
}

// ==== MessageStore implementation ====

// SaveMessage persists a message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (id, kind, sender_id, receiver_id, room_id, text, media, seen, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		string(msg.Kind),
		msg.SenderID,
		msg.ReceiverID,
		msg.RoomID,
		msg.Text,
		msg.Media,
		msg.Seen,
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListPrivateMessages returns all private messages between two users,
// ascending by creation time.
func (s *SQLiteStore) ListPrivateMessages(ctx context.Context, userA, userB string) ([]*store.Message, error) {
	query := `
		SELECT id, kind, sender_id, receiver_id, room_id, text, media, seen, created_at, updated_at
		FROM messages
		WHERE kind = 'private'
		  AND ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		ORDER BY created_at ASC, id ASC
	`
	return s.queryMessages(ctx, query, userA, userB, userB, userA)
}

// ListRoomMessages returns all messages for a room, ascending by creation time.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, roomID string) ([]*store.Message, error) {
	query := `
		SELECT id, kind, sender_id, receiver_id, room_id, text, media, seen, created_at, updated_at
		FROM messages
		WHERE kind = 'room' AND room_id = ?
		ORDER BY created_at ASC, id ASC
	`
	return s.queryMessages(ctx, query, roomID)
}

// ListConversationMessages returns all private messages touching the
// user, descending by creation time.
func (s *SQLiteStore) ListConversationMessages(ctx context.Context, userID string) ([]*store.Message, error) {
	query := `
		SELECT id, kind, sender_id, receiver_id, room_id, text, media, seen, created_at, updated_at
		FROM messages
		WHERE kind = 'private' AND (sender_id = ? OR receiver_id = ?)
		ORDER BY created_at DESC, id DESC
	`
	return s.queryMessages(ctx, query, userID, userID)
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		var kind string
		var receiverID, roomID, media sql.NullString
		if err := rows.Scan(
			&msg.ID,
			&kind,
			&msg.SenderID,
			&receiverID,
			&roomID,
			&msg.Text,
			&media,
			&msg.Seen,
			&msg.CreatedAt,
			&msg.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.Kind = store.MessageKind(kind)
		if receiverID.Valid {
			msg.ReceiverID = &receiverID.String
		}
		if roomID.Valid {
			msg.RoomID = &roomID.String
		}
		if media.Valid {
			msg.Media = &media.String
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// MarkSeen flags private messages sent from otherID to userID as seen.
func (s *SQLiteStore) MarkSeen(ctx context.Context, userID, otherID string) (int64, error) {
	query := `
		UPDATE messages
		SET seen = 1, updated_at = CURRENT_TIMESTAMP
		WHERE kind = 'private' AND receiver_id = ? AND sender_id = ? AND seen = 0
	`
	result, err := s.db.ExecContext(ctx, query, userID, otherID)
	if err != nil {
		return 0, fmt.Errorf("update seen: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return rows, nil
}

// CountMessages returns the total number of persisted messages.
func (s *SQLiteStore) CountMessages(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
