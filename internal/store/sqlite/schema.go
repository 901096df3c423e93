package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Schema is the full database schema. Statements are idempotent so the
// schema can be applied on every startup.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	avatar        TEXT NOT NULL DEFAULT '',
	bio           TEXT NOT NULL DEFAULT '',
	last_seen     DATETIME,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	is_private BOOLEAN NOT NULL DEFAULT 0,
	creator_id TEXT NOT NULL,
	parent_id  TEXT,
	kind       TEXT NOT NULL DEFAULT 'main' CHECK (kind IN ('main', 'sub')),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (creator_id) REFERENCES users(id),
	FOREIGN KEY (parent_id) REFERENCES rooms(id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	is_admin  BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL CHECK (kind IN ('private', 'room')),
	sender_id   TEXT NOT NULL,
	receiver_id TEXT,
	room_id     TEXT,
	text        TEXT NOT NULL DEFAULT '',
	media       TEXT,
	seen        BOOLEAN NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (sender_id) REFERENCES users(id),
	FOREIGN KEY (receiver_id) REFERENCES users(id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	CHECK (
		(kind = 'private' AND receiver_id IS NOT NULL AND room_id IS NULL) OR
		(kind = 'room' AND room_id IS NOT NULL AND receiver_id IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_messages_sender_receiver ON messages(sender_id, receiver_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_receiver_sender ON messages(receiver_id, sender_id, created_at);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at);
CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
`

// ApplySchema creates tables and indexes if they do not exist yet.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// ApplySchema applies the schema on an already opened store.
func (s *SQLiteStore) ApplySchema() error {
	return ApplySchema(s.db)
}

// newID returns a fresh opaque row identifier.
func newID() string {
	return uuid.NewString()
}
