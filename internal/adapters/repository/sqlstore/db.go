// Package sqlstore は GORM + SQLite によるユーザーストアです。
// PostgreSQL を用意せずにローカルで起動する場合に利用します。
package sqlstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open は SQLite を開き、users テーブルをマイグレーションします。
// SQLite は書き込みがデータベース単位で直列化されるため、接続は 1 本に制限します。
func Open(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dsn, err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: sql db handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(conn); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return conn, nil
}

// Migrate は users テーブルとインデックスを作成します。
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(&userModel{}); err != nil {
		return fmt.Errorf("sqlstore: migrate users: %w", err)
	}
	return nil
}

// Close は接続を閉じます。
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ReadinessCheck は readiness プローブ用の疎通確認関数を返します。
func ReadinessCheck(conn *gorm.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return fmt.Errorf("sqlstore: sql db handle: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return fmt.Errorf("sqlstore: ping: %w", err)
		}
		return nil
	}
}

type txContextKey struct{}

// TransactionManager は GORM のトランザクションをコンテキストで受け渡します。
type TransactionManager struct {
	db *gorm.DB
}

// NewTransactionManager は TransactionManager を生成します。
func NewTransactionManager(db *gorm.DB) *TransactionManager {
	return &TransactionManager{db: db}
}

// WithinReadOnly は fn をトランザクション内で実行します。SQLite では読み書きの区別はありません。
func (m *TransactionManager) WithinReadOnly(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, fn)
}

// WithinReadWrite は fn をトランザクション内で実行します。
func (m *TransactionManager) WithinReadWrite(ctx context.Context, fn func(context.Context) error) error {
	return m.run(ctx, fn)
}

func (m *TransactionManager) run(ctx context.Context, fn func(context.Context) error) error {
	if fn == nil {
		return fmt.Errorf("sqlstore: transaction function is required")
	}
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txContextKey{}, tx))
	})
}

func txFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*gorm.DB)
	return tx, ok
}

// dbFromContext はトランザクションがあればそれを、無ければ fallback を返します。
func dbFromContext(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := txFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}
