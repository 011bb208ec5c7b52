package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// PostgresStore は単一テーブルにオブジェクトを格納する Postgres 実装です。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はデータベースに接続し、スキーマを確認して
// PostgresStore を作成します。
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("データベースのPingに失敗しました: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.ensureSchema(); err != nil {
		return nil, err
	}
	log.Println("PostgresStore: データベースに正常に接続しました。")
	return store, nil
}

func (s *PostgresStore) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS benchmark_objects (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("benchmark_objectsテーブルの作成に失敗しました: %w", err)
	}
	return nil
}

// Close はデータベース接続を閉じます。
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Get はキーに対応するオブジェクトを返します。
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM benchmark_objects WHERE key = $1`, key).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("オブジェクトの取得に失敗しました: %w", err)
	}
	return data, nil
}

// Put はオブジェクトを書き込みます（UPSERT）。
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO benchmark_objects (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, data)
	if err != nil {
		return fmt.Errorf("オブジェクトの書き込みに失敗しました: %w", err)
	}
	return nil
}

// Delete はオブジェクトを削除します。
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM benchmark_objects WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("オブジェクトの削除に失敗しました: %w", err)
	}
	return nil
}

// List はプレフィックスにマッチするキーを辞書順で返します。
func (s *PostgresStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key FROM benchmark_objects
		WHERE key LIKE $1 || '%'
		ORDER BY key
	`, prefix)
	if err != nil {
		return nil, fmt.Errorf("キー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("キーのスキャンに失敗しました: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
