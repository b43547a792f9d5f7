// Package sqlite реализует хранилище аккаунтов и сессионных токенов
// поверх единственного файла SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage держит соединение с БД и реализует интерфейсы
// storage.UserStorage и storage.TokenStorage
type Storage struct {
	db *sql.DB
}

// startupPragmas применяются к каждому новому хранилищу.
// foreign_keys обязателен: каскадное удаление session_tokens при
// удалении пользователя объявлено на уровне схемы и без него молча
// перестает работать.
var startupPragmas = []string{
	"PRAGMA journal_mode = WAL;",
	"PRAGMA synchronous = NORMAL;",
	"PRAGMA foreign_keys = ON;",
	"PRAGMA busy_timeout = 5000;",
}

// New открывает (или создает) базу по пути dbPath, применяет pragmas
// и накатывает миграции. ":memory:" дает чистую БД для тестов.
func New(ctx context.Context, dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Один writer: проверка токена пишет last_used_at на каждый
	// запрос, и единственное соединение сериализует эти записи
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range startupPragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	storage := &Storage{db: db}

	if err := storage.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// runMigrations накатывает embedded миграции до актуальной версии
func (s *Storage) runMigrations() error {
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose set dialect failed: %w", err)
	}

	goose.SetBaseFS(embedMigrations)

	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}

	return nil
}

// DB возвращает низкоуровневое соединение (для тестов)
func (s *Storage) DB() *sql.DB {
	return s.db
}
