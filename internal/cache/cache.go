// Package cache keeps fetched remote text (rule lists) in a sqlite database so
// repeated conversions do not download the same lists again.
package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/John-Robertt/clashmerge/internal/logx"
	"github.com/John-Robertt/clashmerge/internal/model"
)

const DefaultExpire = 24 * time.Hour

// Entry is one cached document, keyed by its URL.
type Entry struct {
	URL       string `gorm:"primaryKey;size:2048"`
	Content   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Entry) TableName() string { return "cache_entries" }

type CacheError struct {
	AppError model.AppError
	Cause    error
}

func (e *CacheError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

type Store struct {
	db     *gorm.DB
	expire time.Duration
	now    func() time.Time
}

// Open opens (creating if needed) the database at path. A non-positive expire
// uses DefaultExpire.
func Open(path string, expire time.Duration) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storeError("打开缓存数据库失败", path, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logx.GormLogger(500 * time.Millisecond),
	})
	if err != nil {
		return nil, storeError("打开缓存数据库失败", path, err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, storeError("缓存表迁移失败", path, err)
	}
	if expire <= 0 {
		expire = DefaultExpire
	}
	return &Store{db: db, expire: expire, now: time.Now}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// GetOrPut returns the cached content for key when it is younger than the
// expiry, and otherwise calls supply and stores its result. Keys containing a
// query string are never cached: they usually carry per-user tokens.
func (s *Store) GetOrPut(ctx context.Context, key string, supply func(context.Context) (string, error)) (string, error) {
	log := logrus.WithField("url", key)
	if strings.Contains(key, "?") {
		return supply(ctx)
	}

	var e Entry
	err := s.db.WithContext(ctx).First(&e, "url = ?", key).Error
	switch {
	case err == nil:
		if e.UpdatedAt.After(s.now().Add(-s.expire)) {
			log.Debug("cache hit")
			return e.Content, nil
		}
		log.Debug("cache expired")
	case errors.Is(err, gorm.ErrRecordNotFound):
		log.Debug("cache miss")
	default:
		return "", storeError("读取缓存失败", key, err)
	}

	content, err := supply(ctx)
	if err != nil {
		return "", err
	}

	now := s.now()
	row := Entry{URL: key, Content: content, CreatedAt: now, UpdatedAt: now}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "url"}},
		DoUpdates: clause.Assignments(map[string]any{"content": content, "updated_at": now}),
	}).Create(&row).Error
	if err != nil {
		// The content is still good; a failed write only costs a refetch later.
		log.WithError(err).Warn("cache write failed")
	}
	return content, nil
}

// Purge deletes entries older than the expiry and reports how many went.
func (s *Store) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("updated_at < ?", s.now().Add(-s.expire)).Delete(&Entry{})
	if res.Error != nil {
		return 0, storeError("清理缓存失败", "", res.Error)
	}
	return res.RowsAffected, nil
}

// Clear deletes every entry.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Where("1 = 1").Delete(&Entry{})
	if res.Error != nil {
		return 0, storeError("清空缓存失败", "", res.Error)
	}
	return res.RowsAffected, nil
}

func storeError(msg, url string, cause error) error {
	return &CacheError{
		AppError: model.AppError{
			Code:    "CACHE_ERROR",
			Message: msg,
			Stage:   "cache",
			URL:     url,
		},
		Cause: cause,
	}
}
