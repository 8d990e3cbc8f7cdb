package events

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Envelope is the published event shape.
type Envelope struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	CreatedAt string          `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

func NewEnvelope(kind string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return &Envelope{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Payload:   data,
	}, nil
}

// Outbox stages events in an embedded sqlite file. The central database is an
// opaque set of named routines, so durable staging lives locally.
type Outbox struct {
	db *sql.DB
}

const outboxSchema = `
CREATE TABLE IF NOT EXISTS outbox (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	topic TEXT NOT NULL,
	kind TEXT NOT NULL,
	payload BLOB NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);`

func OpenOutbox(path string) (*Outbox, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open outbox: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(outboxSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate outbox: %w", err)
	}
	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error { return o.db.Close() }

// Enqueue stages an envelope for the drainer. Errors are the caller's to log,
// never to propagate.
func (o *Outbox) Enqueue(topic string, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = o.db.Exec(`INSERT INTO outbox (topic, kind, payload) VALUES (?, ?, ?)`,
		topic, env.Kind, data)
	return err
}

type pendingEvent struct {
	id      int64
	topic   string
	payload []byte
}

func (o *Outbox) pending(limit int) ([]pendingEvent, error) {
	rows, err := o.db.Query(`SELECT id, topic, payload FROM outbox ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pendingEvent
	for rows.Next() {
		var e pendingEvent
		if err := rows.Scan(&e.id, &e.topic, &e.payload); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (o *Outbox) remove(id int64) error {
	_, err := o.db.Exec(`DELETE FROM outbox WHERE id = ?`, id)
	return err
}

// PendingCount reports the number of staged events. Used by diagnostics.
func (o *Outbox) PendingCount() (int, error) {
	var n int
	err := o.db.QueryRow(`SELECT COUNT(*) FROM outbox`).Scan(&n)
	return n, err
}
