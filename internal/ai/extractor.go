package ai

import (
	"regexp"
	"strings"
)

// NoValidQuery 未能提取到语句时的哨兵文本
const NoValidQuery = "No valid SQL query found."

// PlaceholderStatement 模型输出为空或不含SELECT时的占位语句，不会被执行
const PlaceholderStatement = "SELECT 'Error: No valid SQL query generated';"

// ExtractedQuery 提取结果
type ExtractedQuery struct {
	Statement string `json:"statement"`
	Strategy  string `json:"strategy,omitempty"`
	Found     bool   `json:"found"`
}

// String 未找到时返回哨兵文本
func (q ExtractedQuery) String() string {
	if !q.Found {
		return NoValidQuery
	}
	return q.Statement
}

// extractionStrategy 单一提取策略
type extractionStrategy interface {
	name() string
	extract(text string) (string, bool)
}

// fencedBlockStrategy 匹配代码块中以SELECT开头的语句，语言标记可选
type fencedBlockStrategy struct {
	pattern *regexp.Regexp
}

func (fencedBlockStrategy) name() string { return "fenced-block" }

func (s fencedBlockStrategy) extract(text string) (string, bool) {
	m := s.pattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// bareStatementStrategy 匹配第一个以SELECT开头、以分号结尾的最短片段
type bareStatementStrategy struct {
	pattern *regexp.Regexp
}

func (bareStatementStrategy) name() string { return "bare-statement" }

func (s bareStatementStrategy) extract(text string) (string, bool) {
	m := s.pattern.FindString(text)
	if m == "" {
		return "", false
	}
	return strings.TrimSpace(m), true
}

// 按顺序尝试，代码块优先
var extractionStrategies = []extractionStrategy{
	fencedBlockStrategy{pattern: regexp.MustCompile("(?is)```(?:[a-z]*sql[a-z]*)?\\s*(SELECT\\s.*?)\\s*```")},
	bareStatementStrategy{pattern: regexp.MustCompile(`(?is)SELECT\s.*?;`)},
}

// ExtractQuery 从模型原始输出中提取SQL语句
func ExtractQuery(raw string) ExtractedQuery {
	for _, s := range extractionStrategies {
		if stmt, ok := s.extract(raw); ok && stmt != "" {
			return ExtractedQuery{Statement: stmt, Strategy: s.name(), Found: true}
		}
	}
	return ExtractedQuery{}
}
