package db

// SchemaSQL is the complete schema for the events database. Tests use it
// via GetSchemaSQL() so repository code and schema cannot drift apart.
const SchemaSQL = `
-- Events (append-only audit log of coordinator lifecycle transitions)
CREATE TABLE IF NOT EXISTS events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	queue TEXT NOT NULL,
	kind TEXT NOT NULL CHECK(kind IN ('triggered', 'completed', 'failed', 'timed_out', 'degraded')),
	detail TEXT,
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_queue ON events(queue);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
`

// InitSchema applies the schema to the open database.
func InitSchema() error {
	db, err := GetDB()
	if err != nil {
		return err
	}
	_, err = db.Exec(SchemaSQL)
	return err
}

// GetSchemaSQL returns the schema for tests.
func GetSchemaSQL() string {
	return SchemaSQL
}
