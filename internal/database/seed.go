package database

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var seedHeader = []string{"Date", "Product", "Quantity", "Price"}

// ParseSeedCSV 解析种子CSV，首行必须是 Date,Product,Quantity,Price
func ParseSeedCSV(r io.Reader) ([]SalesRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(seedHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("种子文件为空")
		}
		return nil, fmt.Errorf("读取种子文件表头失败: %w", err)
	}
	for i, col := range seedHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), col) {
			return nil, fmt.Errorf("种子文件表头第%d列应为%s，实际为%s", i+1, col, header[i])
		}
	}

	var records []SalesRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取种子文件第%d行失败: %w", line, err)
		}

		record, err := parseSeedRow(row)
		if err != nil {
			return nil, fmt.Errorf("种子文件第%d行无效: %w", line, err)
		}
		records = append(records, record)
	}

	return records, nil
}

func parseSeedRow(row []string) (SalesRecord, error) {
	date := strings.TrimSpace(row[0])
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return SalesRecord{}, fmt.Errorf("日期格式应为YYYY-MM-DD: %q", date)
	}

	quantity, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return SalesRecord{}, fmt.Errorf("数量无效: %w", err)
	}

	price, err := strconv.ParseFloat(strings.TrimSpace(row[3]), 64)
	if err != nil {
		return SalesRecord{}, fmt.Errorf("单价无效: %w", err)
	}

	return SalesRecord{
		Date:     date,
		Product:  strings.TrimSpace(row[1]),
		Quantity: quantity,
		Price:    price,
	}, nil
}

// LoadSeedCSV 表为空时写入种子数据，返回写入条数
func (s *Store) LoadSeedCSV(ctx context.Context, r io.Reader) (int, error) {
	records, err := ParseSeedCSV(r)
	if err != nil {
		return 0, err
	}

	db, err := s.Open(ctx)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	var existing int
	if err := db.GetContext(ctx, &existing, s.statements.countRows); err != nil {
		return 0, fmt.Errorf("统计销售记录失败: %w", err)
	}
	if existing > 0 {
		s.logger.Info("sales table already populated, skipping seed",
			zap.Int("existing_rows", existing))
		return 0, nil
	}

	if err := s.insertTx(ctx, db, records); err != nil {
		return 0, err
	}

	s.logger.Info("sales seed data loaded", zap.Int("rows", len(records)))
	return len(records), nil
}

// LoadSeedFile 从文件加载种子数据
func (s *Store) LoadSeedFile(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开种子文件失败: %w", err)
	}
	defer f.Close()

	return s.LoadSeedCSV(ctx, f)
}
