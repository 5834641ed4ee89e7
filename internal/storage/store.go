package storage

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"packetlens/internal/logger"
)

// Setting 设置键值
type Setting struct {
	Key   string `gorm:"primaryKey;size:64"`
	Value string
}

// SessionRecord 一次抓包会话的历史记录
type SessionRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Port      int
	Browser   string `gorm:"size:32"`
	StartedAt time.Time
	StoppedAt *time.Time
	FlowCount int
}

// Store SQLite 持久化存储
type Store struct {
	db *gorm.DB
}

// Open 打开数据库并迁移表结构
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         NewGormLogger(l),
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	if err := db.AutoMigrate(&Setting{}, &SessionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// GetSetting 读取设置项，不存在时返回默认值
func (s *Store) GetSetting(key, fallback string) string {
	var setting Setting
	if err := s.db.First(&setting, "key = ?", key).Error; err != nil {
		return fallback
	}
	return setting.Value
}

// PutSetting 写入设置项
func (s *Store) PutSetting(key, value string) error {
	setting := Setting{Key: key, Value: value}
	return s.db.Save(&setting).Error
}

// BeginSession 记录一次会话启动，返回会话记录 ID
func (s *Store) BeginSession(port int, browserTarget string) (string, error) {
	rec := SessionRecord{
		ID:        uuid.NewString(),
		Port:      port,
		Browser:   browserTarget,
		StartedAt: time.Now(),
	}
	if err := s.db.Create(&rec).Error; err != nil {
		return "", err
	}
	return rec.ID, nil
}

// EndSession 补记会话结束时间与捕获数量
func (s *Store) EndSession(id string, flowCount int) error {
	now := time.Now()
	return s.db.Model(&SessionRecord{}).Where("id = ?", id).
		Updates(map[string]any{"stopped_at": &now, "flow_count": flowCount}).Error
}

// RecentSessions 最近的会话记录，按启动时间倒序
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []SessionRecord
	err := s.db.Order("started_at desc").Limit(limit).Find(&records).Error
	return records, err
}
