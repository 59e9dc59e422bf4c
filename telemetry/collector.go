package telemetry

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Collector persists routing decisions in SQLite and exposes aggregate
// stats. It implements Sink, so it can be wired directly into the router or
// combined with other sinks through MultiSink.
type Collector struct {
	db *sql.DB
}

// Stats holds aggregate decision telemetry.
type Stats struct {
	TotalDecisions int
	FallbackCount  int
	ByIntent       map[string]int
	ByLanguage     map[string]int
}

// NewCollector opens (or creates) the SQLite database at dbPath and ensures
// the routing_decisions table exists.
func NewCollector(dbPath string) (*Collector, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS routing_decisions (
		id TEXT PRIMARY KEY,
		timestamp TEXT,
		intent TEXT,
		confidence REAL,
		language TEXT,
		fallback_used INTEGER,
		fallback_rule TEXT,
		request_id TEXT,
		router_version TEXT,
		metadata TEXT
	)`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Collector{db: db}, nil
}

// Close releases the database connection.
func (c *Collector) Close() error {
	return c.db.Close()
}

// Record inserts one decision event. Field extraction is tolerant: missing
// keys become zero values so a partially populated event still lands.
func (c *Collector) Record(event map[string]any) error {
	metadata, _ := event["metadata"].(map[string]any)
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshalling decision metadata: %w", err)
	}

	fallbackRule := ""
	if metadata != nil {
		fallbackRule, _ = metadata["fallback_rule"].(string)
	}

	_, err = c.db.Exec(
		`INSERT INTO routing_decisions
			(id, timestamp, intent, confidence, language, fallback_used, fallback_rule, request_id, router_version, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(),
		stringField(event, "timestamp"),
		stringField(event, "intent"),
		floatField(event, "confidence"),
		stringField(event, "language"),
		boolField(event, "fallback_used"),
		fallbackRule,
		stringField(event, "request_id"),
		stringField(event, "router_version"),
		string(metadataJSON),
	)
	return err
}

// GetStats returns aggregate stats. When intentFilter is non-empty,
// TotalDecisions is scoped to that intent only; the breakdowns and fallback
// count always cover all decisions.
func (c *Collector) GetStats(intentFilter string) (*Stats, error) {
	stats := &Stats{
		ByIntent:   make(map[string]int),
		ByLanguage: make(map[string]int),
	}

	query := `SELECT COUNT(*) FROM routing_decisions`
	args := []any{}
	if intentFilter != "" {
		query += ` WHERE intent = ?`
		args = append(args, intentFilter)
	}
	if err := c.db.QueryRow(query, args...).Scan(&stats.TotalDecisions); err != nil {
		return nil, err
	}

	rows, err := c.db.Query(`SELECT intent, COUNT(*) FROM routing_decisions GROUP BY intent`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var intent string
		var count int
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, err
		}
		stats.ByIntent[intent] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows2, err := c.db.Query(`SELECT language, COUNT(*) FROM routing_decisions GROUP BY language`)
	if err != nil {
		return nil, err
	}
	defer rows2.Close()
	for rows2.Next() {
		var lang string
		var count int
		if err := rows2.Scan(&lang, &count); err != nil {
			return nil, err
		}
		stats.ByLanguage[lang] = count
	}
	if err := rows2.Err(); err != nil {
		return nil, err
	}

	if err := c.db.QueryRow(
		`SELECT COUNT(*) FROM routing_decisions WHERE fallback_used = 1`,
	).Scan(&stats.FallbackCount); err != nil {
		return nil, err
	}

	return stats, nil
}

func stringField(event map[string]any, key string) string {
	v, _ := event[key].(string)
	return v
}

func floatField(event map[string]any, key string) float64 {
	switch v := event[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}

func boolField(event map[string]any, key string) bool {
	v, _ := event[key].(bool)
	return v
}
