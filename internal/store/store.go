// Package store persists chats, rumours, rumour matches and message logs with gorm.
//
// Postgres is the production backend; sqlite serves local runs and tests.
// Counter and broadcast updates are single conditional statements so that
// concurrent sightings of the same rumour never double count or double broadcast.
package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/ppiankov/chainbreaker/internal/logger"
	"github.com/ppiankov/chainbreaker/internal/model"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("not found")

// Store is the repository for all persisted state
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to the configured database and migrates the schema
func Open(ctx context.Context, cfg model.DatabaseConfig, log *logger.Logger) (*Store, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.Driver, err)
	}

	if isSQLite(cfg.Driver) {
		// sqlite allows a single writer; shared in-memory databases also need one connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	s := New(db, log)
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func dialectorFor(cfg model.DatabaseConfig) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	switch {
	case strings.EqualFold(cfg.Driver, "postgres"), strings.EqualFold(cfg.Driver, "postgresql"):
		return postgres.Open(cfg.DSN), nil
	case isSQLite(cfg.Driver):
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func isSQLite(driver string) bool {
	return strings.EqualFold(driver, "sqlite") || strings.EqualFold(driver, "sqlite3")
}

func newGormLogger() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}

// New wraps an open gorm handle
func New(db *gorm.DB, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{db: db, log: log.With("repo", "Store")}
}

// Migrate creates or updates every table
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// DB exposes the underlying handle
func (s *Store) DB() *gorm.DB { return s.db }

// Close releases the connection pool
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks database connectivity
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// FindChat returns the chat with the given platform id
func (s *Store) FindChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	if err := s.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&chat).Error; err != nil {
		return nil, notFound(err)
	}
	return &chat, nil
}

// UpsertChat creates the chat on first contact. The display name is only
// overwritten when chatName is non-empty.
func (s *Store) UpsertChat(ctx context.Context, chatID, chatName, platform string) (*Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	if platform == "" {
		platform = DefaultPlatform
	}

	conflict := clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}},
		DoNothing: true,
	}
	if chatName != "" {
		conflict = clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"chat_name"}),
		}
	}

	row := &Chat{ChatID: chatID, ChatName: chatName, Platform: platform}
	if err := s.db.WithContext(ctx).Clauses(conflict).Create(row).Error; err != nil {
		return nil, fmt.Errorf("upsert chat %s: %w", chatID, err)
	}
	return s.FindChat(ctx, chatID)
}

// ListChats returns every chat in the order they first appeared
func (s *Store) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&chats).Error; err != nil {
		return nil, err
	}
	return chats, nil
}

// FindMatch returns the rumour match for a normalized claim
func (s *Store) FindMatch(ctx context.Context, normalized string) (*RumourMatch, error) {
	var match RumourMatch
	if err := s.db.WithContext(ctx).Where("normalized = ?", normalized).First(&match).Error; err != nil {
		return nil, notFound(err)
	}
	return &match, nil
}

// CreateMatch inserts a first sighting with count 1. When another request
// created the row first, the existing row is returned and created is false.
func (s *Store) CreateMatch(ctx context.Context, normalized string) (match *RumourMatch, created bool, err error) {
	row := &RumourMatch{
		Normalized: normalized,
		Similarity: 100,
		Count:      1,
	}
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "normalized"}}, DoNothing: true}).
		Create(row)
	if res.Error != nil {
		return nil, false, fmt.Errorf("create rumour match: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return row, true, nil
	}

	existing, err := s.FindMatch(ctx, normalized)
	if err != nil {
		return nil, false, fmt.Errorf("load concurrent rumour match: %w", err)
	}
	return existing, false, nil
}

// IncrementMatch adds one sighting and returns the row as updated
func (s *Store) IncrementMatch(ctx context.Context, id uuid.UUID) (*RumourMatch, error) {
	var rows []RumourMatch
	res := s.db.WithContext(ctx).
		Model(&rows).
		Clauses(clause.Returning{}).
		Where("id = ?", id).
		UpdateColumn("count", gorm.Expr("count + 1"))
	if res.Error != nil {
		return nil, fmt.Errorf("increment rumour match: %w", res.Error)
	}
	if res.RowsAffected == 0 || len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// MarkBroadcasted flips broadcasted from false to true. Only one caller ever
// gets true back for a given match.
func (s *Store) MarkBroadcasted(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&RumourMatch{}).
		Where("id = ? AND broadcasted = ?", id, false).
		UpdateColumn("broadcasted", true)
	if res.Error != nil {
		return false, fmt.Errorf("mark rumour broadcasted: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// LinkMatch attaches a rumour to a match that has none yet
func (s *Store) LinkMatch(ctx context.Context, matchID, rumourID uuid.UUID) error {
	err := s.db.WithContext(ctx).
		Model(&RumourMatch{}).
		Where("id = ? AND rumour_id IS NULL", matchID).
		UpdateColumn("rumour_id", rumourID).Error
	if err != nil {
		return fmt.Errorf("link rumour match: %w", err)
	}
	return nil
}

// CreateRumour inserts a rumour row
func (s *Store) CreateRumour(ctx context.Context, rumour *Rumour) error {
	if err := s.db.WithContext(ctx).Create(rumour).Error; err != nil {
		return fmt.Errorf("create rumour: %w", err)
	}
	return nil
}

// FindRumour returns a rumour by id
func (s *Store) FindRumour(ctx context.Context, id uuid.UUID) (*Rumour, error) {
	var rumour Rumour
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rumour).Error; err != nil {
		return nil, notFound(err)
	}
	return &rumour, nil
}

// CreateMessageLog appends a message log row
func (s *Store) CreateMessageLog(ctx context.Context, entry *MessageLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create message log: %w", err)
	}
	return nil
}

// LatestReply returns the newest log in chat for rumour that carries a reply
func (s *Store) LatestReply(ctx context.Context, chatTableID, rumourID uuid.UUID) (*MessageLog, error) {
	var entry MessageLog
	err := s.db.WithContext(ctx).
		Where("chat_table_id = ? AND rumour_id = ? AND ai_response <> ?", chatTableID, rumourID, "").
		Order("created_at DESC").
		First(&entry).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &entry, nil
}

// Snapshot is the dashboard view of recent activity
type Snapshot struct {
	Chats       []Chat       `json:"chats"`
	Rumours     []Rumour     `json:"rumours"`
	MessageLogs []MessageLog `json:"messageLogs"`
}

// Dashboard returns up to limit of the newest rows from each table
func (s *Store) Dashboard(ctx context.Context, limit int) (*Snapshot, error) {
	if limit <= 0 {
		limit = 100
	}
	snap := &Snapshot{Chats: []Chat{}, Rumours: []Rumour{}, MessageLogs: []MessageLog{}}
	db := s.db.WithContext(ctx)

	if err := db.Order("created_at DESC").Limit(limit).Find(&snap.Chats).Error; err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if err := db.Order("created_at DESC").Limit(limit).Find(&snap.Rumours).Error; err != nil {
		return nil, fmt.Errorf("list rumours: %w", err)
	}
	if err := db.Order("created_at DESC").Limit(limit).Find(&snap.MessageLogs).Error; err != nil {
		return nil, fmt.Errorf("list message logs: %w", err)
	}
	return snap, nil
}
