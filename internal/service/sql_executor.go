package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"salesql-go/internal/config"
)

// 执行状态
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// DBOpener 打开一个新的数据库句柄
type DBOpener func(ctx context.Context) (*sqlx.DB, error)

// SQLExecutor SQL执行器
// 每次执行打开独立句柄，执行结束后无条件关闭，不做重试
type SQLExecutor struct {
	open         DBOpener
	queryTimeout time.Duration
	maxRows      int
	logger       *zap.Logger
}

// QueryResult SQL查询结果
// Error非空时表示执行失败，其余字段可能为空
type QueryResult struct {
	Columns       []string         `json:"columns"`            // 列名
	Rows          []map[string]any `json:"rows"`               // 数据行
	RowCount      int              `json:"row_count"`          // 行数
	ExecutionTime int64            `json:"execution_time"`     // 执行时间(毫秒)
	Status        string           `json:"status"`             // 执行状态
	Error         string           `json:"error,omitempty"`    // 错误信息
	Warnings      []string         `json:"warnings,omitempty"` // 警告信息
}

// Failed 是否执行失败
func (r *QueryResult) Failed() bool {
	return r.Status == StatusError
}

// NewSQLExecutor 创建SQL执行器
func NewSQLExecutor(open DBOpener, cfg config.StoreConfig, logger *zap.Logger) *SQLExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 30 * time.Second
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 1000
	}

	return &SQLExecutor{
		open:         open,
		queryTimeout: cfg.QueryTimeout,
		maxRows:      cfg.MaxRows,
		logger:       logger,
	}
}

// Execute 执行只读查询并物化全部结果
// 任何失败都转成带原始错误信息的结果，不会向上抛出
func (e *SQLExecutor) Execute(ctx context.Context, statement string) *QueryResult {
	start := time.Now()

	queryCtx, cancel := context.WithTimeout(ctx, e.queryTimeout)
	defer cancel()

	result, err := e.execute(queryCtx, statement)
	result.ExecutionTime = time.Since(start).Milliseconds()

	if err != nil {
		result.Status = StatusError
		result.Error = describeError(err)
		if errors.Is(queryCtx.Err(), context.DeadlineExceeded) {
			result.Error = fmt.Sprintf("query timed out after %v: %s", e.queryTimeout, result.Error)
		}
		e.logger.Warn("SQL查询执行失败",
			zap.String("sql", statement),
			zap.Int64("execution_time_ms", result.ExecutionTime),
			zap.Error(err))
		return result
	}

	e.logger.Info("SQL查询执行成功",
		zap.String("sql", statement),
		zap.Int("row_count", result.RowCount),
		zap.Int64("execution_time_ms", result.ExecutionTime))

	return result
}

func (e *SQLExecutor) execute(ctx context.Context, statement string) (result *QueryResult, err error) {
	result = &QueryResult{
		Columns: []string{},
		Rows:    []map[string]any{},
		Status:  StatusSuccess,
	}

	db, err := e.open(ctx)
	if err != nil {
		return result, err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			e.logger.Warn("failed to close database handle", zap.Error(closeErr))
		}
	}()

	rows, err := db.QueryxContext(ctx, statement)
	if err != nil {
		return result, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return result, err
	}
	result.Columns = columns

	for rows.Next() {
		if result.RowCount >= e.maxRows {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("查询结果超过最大行数限制(%d行)，已截断显示", e.maxRows))
			break
		}

		row := make(map[string]any, len(columns))
		if err := rows.MapScan(row); err != nil {
			return result, fmt.Errorf("读取查询结果失败: %w", err)
		}
		for k, v := range row {
			row[k] = convertValue(v)
		}

		result.Rows = append(result.Rows, row)
		result.RowCount++
	}

	if err := rows.Err(); err != nil {
		return result, err
	}

	return result, nil
}

// describeError 保留底层错误信息，PostgreSQL错误附带错误码
func describeError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Sprintf("[%s] %s", pgErr.Code, pgErr.Message)
	}
	return err.Error()
}

// convertValue 转换数据库值为JSON友好的格式
func convertValue(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return value
	}
}
