package config

import (
	"fmt"
	"time"
)

// 支持的存储驱动
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// StoreConfig 销售数据存储配置
type StoreConfig struct {
	Driver       string        `mapstructure:"driver"`        // sqlite3 或 pgx
	DSN          string        `mapstructure:"dsn"`           // SQLite文件路径或PostgreSQL连接串
	QueryTimeout time.Duration `mapstructure:"query_timeout"` // 单次查询超时
	MaxRows      int           `mapstructure:"max_rows"`      // 最大返回行数
	SeedFile     string        `mapstructure:"seed_file"`     // 可选的CSV种子文件
}

// DefaultStoreConfig 返回默认的存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Driver:       DriverSQLite,
		DSN:          "sales_data.db",
		QueryTimeout: 30 * time.Second,
		MaxRows:      1000,
	}
}

// Validate 验证存储配置的有效性
func (c *StoreConfig) Validate() error {
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return fmt.Errorf("不支持的存储驱动: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("存储连接串不能为空")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("查询超时必须大于0")
	}
	if c.MaxRows <= 0 {
		return fmt.Errorf("最大返回行数必须大于0")
	}
	return nil
}
