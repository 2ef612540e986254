package ai

import (
	"encoding/json"
	"strings"
)

// ColumnDescriptor 列描述
type ColumnDescriptor struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// SchemaDescriptor 可查询表的只读描述
// 创建后不可修改，Columns返回副本
type SchemaDescriptor struct {
	table   string
	columns []ColumnDescriptor
}

// NewSchemaDescriptor 创建表描述
func NewSchemaDescriptor(table string, columns ...ColumnDescriptor) SchemaDescriptor {
	cols := make([]ColumnDescriptor, len(columns))
	copy(cols, columns)
	return SchemaDescriptor{table: table, columns: cols}
}

// SalesSchema 销售表描述
func SalesSchema() SchemaDescriptor {
	return NewSchemaDescriptor("Sales",
		ColumnDescriptor{Name: "Date", Type: "TEXT", Description: "Date of sale (YYYY-MM-DD)"},
		ColumnDescriptor{Name: "Product", Type: "TEXT", Description: "Name of the product sold"},
		ColumnDescriptor{Name: "Quantity", Type: "INTEGER", Description: "Number of units sold"},
		ColumnDescriptor{Name: "Price", Type: "REAL", Description: "Price per unit"},
	)
}

// Table 表名
func (s SchemaDescriptor) Table() string {
	return s.table
}

// Columns 列描述副本
func (s SchemaDescriptor) Columns() []ColumnDescriptor {
	cols := make([]ColumnDescriptor, len(s.columns))
	copy(cols, s.columns)
	return cols
}

// ColumnNames 按顺序返回列名
func (s SchemaDescriptor) ColumnNames() []string {
	names := make([]string, 0, len(s.columns))
	for _, c := range s.columns {
		names = append(names, c.Name)
	}
	return names
}

// Describe 生成嵌入提示词的表结构文本
func (s SchemaDescriptor) Describe() string {
	var b strings.Builder
	b.WriteString("Table: ")
	b.WriteString(s.table)
	b.WriteString("\nColumns:\n")
	for _, c := range s.columns {
		b.WriteString("  - ")
		b.WriteString(c.Name)
		b.WriteString(" (")
		b.WriteString(c.Type)
		b.WriteString("): ")
		b.WriteString(c.Description)
		b.WriteString("\n")
	}
	return b.String()
}

// MarshalJSON 用于 /api/v1/schema 输出
func (s SchemaDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Table   string             `json:"table"`
		Columns []ColumnDescriptor `json:"columns"`
	}{
		Table:   s.table,
		Columns: s.Columns(),
	})
}
