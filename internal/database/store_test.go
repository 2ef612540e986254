package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"salesql-go/internal/config"
)

const sampleCSV = `Date,Product,Quantity,Price
2025-01-01,Product A,5,100
2025-01-02,Product B,12,150.5
2025-02-10,Product A,3,200
`

// StoreTestSuite 基于临时SQLite文件的存储测试
type StoreTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *Store
}

func (s *StoreTestSuite) SetupTest() {
	s.ctx = context.Background()

	cfg := config.DefaultStoreConfig()
	cfg.DSN = filepath.Join(s.T().TempDir(), "sales_test.db")

	store, err := NewStore(cfg, zaptest.NewLogger(s.T()))
	s.Require().NoError(err)
	s.Require().NoError(store.Bootstrap(s.ctx))
	s.store = store
}

func (s *StoreTestSuite) TestBootstrapIsIdempotent() {
	s.NoError(s.store.Bootstrap(s.ctx))

	n, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(0, n)
}

func (s *StoreTestSuite) TestLoadSeedOnlyWhenEmpty() {
	n, err := s.store.LoadSeedCSV(s.ctx, strings.NewReader(sampleCSV))
	s.Require().NoError(err)
	s.Equal(3, n)

	// 第二次加载时表已非空
	n, err = s.store.LoadSeedCSV(s.ctx, strings.NewReader(sampleCSV))
	s.Require().NoError(err)
	s.Equal(0, n)

	total, err := s.store.Count(s.ctx)
	s.NoError(err)
	s.Equal(3, total)
}

func (s *StoreTestSuite) TestInsertAndRead() {
	err := s.store.Insert(s.ctx, []SalesRecord{
		{Date: "2025-03-01", Product: "Product C", Quantity: 7, Price: 250},
	})
	s.Require().NoError(err)

	db, err := s.store.Open(s.ctx)
	s.Require().NoError(err)
	defer db.Close()

	var records []SalesRecord
	s.Require().NoError(db.SelectContext(s.ctx, &records, "SELECT Date, Product, Quantity, Price FROM Sales"))
	s.Equal([]SalesRecord{{Date: "2025-03-01", Product: "Product C", Quantity: 7, Price: 250}}, records)
}

func (s *StoreTestSuite) TestLoadSeedFile() {
	_, err := s.store.LoadSeedFile(s.ctx, filepath.Join(s.T().TempDir(), "missing.csv"))
	s.Error(err)
}

func (s *StoreTestSuite) TestHealthCheck() {
	s.NoError(s.store.HealthCheck(s.ctx))
}

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

func TestNewStoreRejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultStoreConfig()
	cfg.Driver = "mysql"

	_, err := NewStore(cfg, nil)
	assert.Error(t, err)
}

func TestParseSeedCSV(t *testing.T) {
	records, err := ParseSeedCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, SalesRecord{Date: "2025-01-02", Product: "Product B", Quantity: 12, Price: 150.5}, records[1])
}

func TestParseSeedCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "空文件", input: ""},
		{name: "表头错误", input: "Day,Product,Quantity,Price\n"},
		{name: "列数不符", input: "Date,Product,Quantity,Price\n2025-01-01,Product A,5\n"},
		{name: "日期格式错误", input: "Date,Product,Quantity,Price\n01/02/2025,Product A,5,100\n"},
		{name: "数量不是整数", input: "Date,Product,Quantity,Price\n2025-01-01,Product A,five,100\n"},
		{name: "单价不是数字", input: "Date,Product,Quantity,Price\n2025-01-01,Product A,5,cheap\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeedCSV(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}
