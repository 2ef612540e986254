package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // 注册pgx驱动
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // 注册sqlite3驱动
	"go.uber.org/zap"

	"salesql-go/internal/config"
)

// SalesRecord 销售记录
type SalesRecord struct {
	Date     string  `db:"Date" json:"date"`
	Product  string  `db:"Product" json:"product"`
	Quantity int     `db:"Quantity" json:"quantity"`
	Price    float64 `db:"Price" json:"price"`
}

// dialectStatements 不同驱动下的建表和写入语句
type dialectStatements struct {
	createTable string
	countRows   string
	insertRow   string
}

var statementsByDriver = map[string]dialectStatements{
	config.DriverSQLite: {
		createTable: `CREATE TABLE IF NOT EXISTS Sales (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			Date TEXT,
			Product TEXT,
			Quantity INTEGER,
			Price REAL
		)`,
		countRows: `SELECT COUNT(*) FROM Sales`,
		insertRow: `INSERT INTO Sales (Date, Product, Quantity, Price) VALUES (?, ?, ?, ?)`,
	},
	// PostgreSQL中使用带引号的标识符，保持与SQLite一致的大小写
	config.DriverPostgres: {
		createTable: `CREATE TABLE IF NOT EXISTS "Sales" (
			"id" SERIAL PRIMARY KEY,
			"Date" TEXT,
			"Product" TEXT,
			"Quantity" INTEGER,
			"Price" DOUBLE PRECISION
		)`,
		countRows: `SELECT COUNT(*) FROM "Sales"`,
		insertRow: `INSERT INTO "Sales" ("Date", "Product", "Quantity", "Price") VALUES (?, ?, ?, ?)`,
	},
}

// Store 销售数据存储
// 不持有长连接，每次操作打开并关闭独立的句柄
type Store struct {
	config     config.StoreConfig
	statements dialectStatements
	logger     *zap.Logger
}

// NewStore 创建存储
func NewStore(cfg config.StoreConfig, logger *zap.Logger) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("存储配置无效: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		config:     cfg,
		statements: statementsByDriver[cfg.Driver],
		logger:     logger,
	}, nil
}

// Driver 返回驱动名
func (s *Store) Driver() string {
	return s.config.Driver
}

// Open 打开一个新的数据库句柄，调用方负责关闭
func (s *Store) Open(ctx context.Context) (*sqlx.DB, error) {
	db, err := sqlx.Open(s.config.Driver, s.config.DSN)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}

	// 单次请求内只需要一个连接
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	return db, nil
}

// Bootstrap 创建销售表（已存在时跳过）
func (s *Store) Bootstrap(ctx context.Context) error {
	db, err := s.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, s.statements.createTable); err != nil {
		s.logger.Error("创建销售表失败", zap.Error(err))
		return fmt.Errorf("创建销售表失败: %w", err)
	}

	s.logger.Info("sales table ready", zap.String("driver", s.config.Driver))
	return nil
}

// Count 返回销售记录数
func (s *Store) Count(ctx context.Context) (int, error) {
	db, err := s.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var n int
	if err := db.GetContext(ctx, &n, s.statements.countRows); err != nil {
		return 0, fmt.Errorf("统计销售记录失败: %w", err)
	}
	return n, nil
}

// Insert 在一个事务中写入销售记录
func (s *Store) Insert(ctx context.Context, records []SalesRecord) error {
	if len(records) == 0 {
		return nil
	}

	db, err := s.Open(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	return s.insertTx(ctx, db, records)
}

func (s *Store) insertTx(ctx context.Context, db *sqlx.DB, records []SalesRecord) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(s.statements.insertRow))
	if err != nil {
		return fmt.Errorf("准备写入语句失败: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Date, r.Product, r.Quantity, r.Price); err != nil {
			return fmt.Errorf("写入第%d条记录失败: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("提交事务失败: %w", err)
	}
	return nil
}

// HealthCheck 检查存储是否可用
func (s *Store) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	db, err := s.Open(checkCtx)
	if err != nil {
		return err
	}
	defer db.Close()

	var result int
	if err := db.GetContext(checkCtx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("数据库健康检查失败: %w", err)
	}
	if result != 1 {
		return fmt.Errorf("数据库健康检查返回值异常: %d", result)
	}
	return nil
}
