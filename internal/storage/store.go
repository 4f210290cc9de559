package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/equitymind-ai/equitymind/internal/profile"
	"github.com/equitymind-ai/equitymind/pkg/config"
)

const defaultHistoryLimit = 20

// Store 历史与画像存储
type Store struct {
	db         *gorm.DB
	maxHistory int
	defaults   config.ProfileConfig
	logger     *zap.Logger
	now        func() time.Time
}

// Open 打开 sqlite 数据库并自动迁移
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移全部表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// NewStore 创建存储，maxHistory <= 0 时保留 50 条
func NewStore(db *gorm.DB, maxHistory int, defaults config.ProfileConfig, logger *zap.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:         db,
		maxHistory: maxHistory,
		defaults:   defaults,
		logger:     logger.With(zap.String("component", "storage")),
		now:        time.Now,
	}
}

// Close 关闭底层连接
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连接
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SaveAnalysis 写入历史并只保留最新的 maxHistory 条；重复 ID 忽略
func (s *Store) SaveAnalysis(ctx context.Context, item HistoryItem) error {
	if item.ID == "" {
		return errors.New("history item id is required")
	}
	rec := historyRecord{
		ID:               item.ID,
		Ticker:           item.Ticker,
		CompanyName:      item.CompanyName,
		Mode:             string(item.Mode),
		AnalysisDate:     item.AnalysisDate,
		OverallSentiment: string(item.OverallSentiment),
		ConfidenceScore:  item.ConfidenceScore,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&rec).Error; err != nil {
			return err
		}

		var cutoff []uint
		if err := tx.Model(&historyRecord{}).
			Order("seq desc").
			Offset(s.maxHistory - 1).
			Limit(1).
			Pluck("seq", &cutoff).Error; err != nil {
			return err
		}
		if len(cutoff) == 0 {
			return nil
		}
		return tx.Where("seq < ?", cutoff[0]).Delete(&historyRecord{}).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save analysis %s: %w", item.ID, err)
	}

	s.logger.Debug("Analysis saved", zap.String("id", item.ID), zap.String("ticker", item.Ticker))
	return nil
}

// History 返回最新的 limit 条历史，limit <= 0 时取 20
func (s *Store) History(ctx context.Context, limit int) ([]HistoryItem, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > s.maxHistory {
		limit = s.maxHistory
	}

	var recs []historyRecord
	if err := s.db.WithContext(ctx).Order("seq desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	items := make([]HistoryItem, len(recs))
	for i, r := range recs {
		items[i] = r.item()
	}
	return items, nil
}

// StudiedTickers 历史中出现过的全部代码
func (s *Store) StudiedTickers(ctx context.Context) ([]string, error) {
	var tickers []string
	if err := s.db.WithContext(ctx).Model(&historyRecord{}).Distinct().Pluck("ticker", &tickers).Error; err != nil {
		return nil, fmt.Errorf("failed to load studied tickers: %w", err)
	}
	return tickers, nil
}

// Profile 读取用户画像，未保存过时返回默认画像
func (s *Store) Profile(ctx context.Context) (profile.UserProfile, error) {
	var rec profileRecord
	err := s.db.WithContext(ctx).First(&rec, profileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return profile.Default(s.defaults, s.now()), nil
	}
	if err != nil {
		return profile.UserProfile{}, fmt.Errorf("failed to load profile: %w", err)
	}
	return rec.profile(), nil
}

// UpdateProfile 合并 patch 后保存
func (s *Store) UpdateProfile(ctx context.Context, patch profile.Patch) (profile.UserProfile, error) {
	var updated profile.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec profileRecord
		current := profile.Default(s.defaults, s.now())
		err := tx.First(&rec, profileID).Error
		switch {
		case err == nil:
			current = rec.profile()
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		updated = profile.Apply(current, patch, s.now())
		next := newProfileRecord(updated)
		return tx.Save(&next).Error
	})
	if err != nil {
		return profile.UserProfile{}, fmt.Errorf("failed to update profile: %w", err)
	}

	s.logger.Info("Profile updated",
		zap.String("risk_tolerance", updated.RiskTolerance),
		zap.String("investment_horizon", updated.InvestmentHorizon),
		zap.Strings("preferred_kpis", updated.PreferredKPIs))
	return updated, nil
}
