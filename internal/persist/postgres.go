package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"webdeck/internal/deck"
)

var ErrNoConfig = errors.New("no configuration stored")

const schema = `
CREATE TABLE IF NOT EXISTS deck_config (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS deck_presets (
	name       TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Postgres stores the document and presets in PostgreSQL.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// OpenPostgres connects and creates the tables if needed.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	log.Println("[persist] connected to PostgreSQL")
	return &Postgres{pool: pool, timeout: 5 * time.Second}, nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}

func (p *Postgres) Load() (deck.Document, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	return p.queryDocument(ctx, `SELECT doc FROM deck_config WHERE id = 1`, ErrNoConfig)
}

func (p *Postgres) Save(doc deck.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO deck_config (id, doc, updated_at) VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, data)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

func (p *Postgres) SavePreset(name string, doc deck.Document) error {
	if err := deck.ValidatePresetName(name); err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	ctx, cancel := p.ctx()
	defer cancel()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO deck_presets (name, doc, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`, name, data)
	if err != nil {
		return fmt.Errorf("save preset %s: %w", name, err)
	}
	return nil
}

func (p *Postgres) LoadPreset(name string) (deck.Document, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	return p.queryDocument(ctx, `SELECT doc FROM deck_presets WHERE name = $1`,
		fmt.Errorf("%w: %s", deck.ErrPresetNotFound, name), name)
}

func (p *Postgres) ListPresets() ([]string, error) {
	ctx, cancel := p.ctx()
	defer cancel()
	rows, err := p.pool.Query(ctx, `SELECT name FROM deck_presets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (p *Postgres) queryDocument(ctx context.Context, query string, notFound error, args ...any) (deck.Document, error) {
	var data []byte
	if err := p.pool.QueryRow(ctx, query, args...).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return deck.Document{}, notFound
		}
		return deck.Document{}, err
	}
	var doc deck.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return deck.Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
