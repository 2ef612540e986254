// Package ai 提供自然语言转SQL流水线的核心功能
package ai

import (
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"
)

// Dialect 目标存储的SQL方言
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// YearMonthLayout 当前年月的格式
const YearMonthLayout = "2006-01"

// CurrentYearMonth 以 YYYY-MM 格式返回给定时间的年月
func CurrentYearMonth(now time.Time) string {
	return now.Format(YearMonthLayout)
}

// SQL生成提示词模板
const salesSQLPrompt = `You are an AI SQL Generator designed to create **{{.dialect_name}}-compatible SQL queries**.

{{.rules}}
Table Schema:
{{.schema}}
User Query: {{.question}}

SQL Query:
`

// PromptBuilder 提示词构建器
type PromptBuilder struct {
	template prompts.PromptTemplate
	dialect  Dialect
}

// NewPromptBuilder 创建提示词构建器，未知方言按SQLite处理
func NewPromptBuilder(dialect Dialect) *PromptBuilder {
	if dialect != DialectPostgres {
		dialect = DialectSQLite
	}
	return &PromptBuilder{
		template: prompts.NewPromptTemplate(
			salesSQLPrompt,
			[]string{"dialect_name", "rules", "schema", "question"},
		),
		dialect: dialect,
	}
}

// Dialect 返回构建器使用的方言
func (pb *PromptBuilder) Dialect() Dialect {
	return pb.dialect
}

// BuildPrompt 组装完整提示词
// 结果只依赖输入参数，任何问题文本（包括空串）都会得到完整的提示词
func (pb *PromptBuilder) BuildPrompt(question string, schema SchemaDescriptor, currentYearMonth string) string {
	values := map[string]any{
		"dialect_name": dialectName(pb.dialect),
		"rules":        dialectRules(pb.dialect, currentYearMonth),
		"schema":       schema.Describe(),
		"question":     question,
	}

	prompt, err := pb.template.Format(values)
	if err != nil {
		// 模板渲染失败时降级为直接拼接
		return fmt.Sprintf("You are an AI SQL Generator designed to create **%s-compatible SQL queries**.\n\n%s\nTable Schema:\n%s\nUser Query: %s\n\nSQL Query:\n",
			values["dialect_name"], values["rules"], values["schema"], question)
	}
	return prompt
}

// BuildPrompt 使用SQLite规则构建提示词
func BuildPrompt(question string, schema SchemaDescriptor, currentYearMonth string) string {
	return NewPromptBuilder(DialectSQLite).BuildPrompt(question, schema, currentYearMonth)
}

func dialectName(d Dialect) string {
	if d == DialectPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// dialectRules 方言相关的生成规则
func dialectRules(d Dialect, currentYearMonth string) string {
	var monthRule, yearRule, dayRule string
	switch d {
	case DialectPostgres:
		monthRule = "`to_char(\"Date\"::date, 'YYYY-MM') = '" + currentYearMonth + "'` for filtering by the current month"
		yearRule = "`to_char(\"Date\"::date, 'YYYY') = 'YYYY'` if filtering by year"
		dayRule = "`\"Date\" = 'YYYY-MM-DD'` if filtering by a specific day"
	default:
		monthRule = "`strftime('%Y-%m', DATE(Date)) = '" + currentYearMonth + "'` for filtering by the current month"
		yearRule = "`strftime('%Y', DATE(Date)) = 'YYYY'` if filtering by year"
		dayRule = "`Date = 'YYYY-MM-DD'` if filtering by a specific day"
	}

	lines := []string{
		"- Use **valid " + dialectName(d) + " SQL syntax**.",
		"- Apply **WHERE** conditions **only if required**.",
		"- If the user asks for a specific **month or year**, format it correctly:",
		"  - Use " + monthRule + ".",
		"  - Use " + yearRule + ".",
		"  - Use " + dayRule + ".",
		"- If no date filter is mentioned, do not include a WHERE clause.",
		"- Use `SUM(Quantity)`, `COUNT(*)`, `AVG(Price)`, or `DISTINCT` as needed.",
		"- Ensure column names match exactly with the schema.",
	}
	if d == DialectPostgres {
		lines = append(lines, "- Quote the table name and column names with double quotes, they are case-sensitive.")
	}
	lines = append(lines, "- **Return only the SQL query**, no explanations or additional text.")

	return strings.Join(lines, "\n") + "\n"
}
