package ai

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"vitess.io/vitess/go/vt/sqlparser"
)

// 只读查询中不允许出现的关键字
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE",
	"REPLACE", "TRUNCATE", "ATTACH", "DETACH", "PRAGMA", "VACUUM",
}

var selectKeyword = regexp.MustCompile(`(?i)SELECT`)

// Guard 查询守卫
// 对模型输出做关键字预检，对提取结果做只读校验
type Guard struct {
	parser    *sqlparser.Parser
	forbidden map[string]struct{}
	logger    *zap.Logger
}

// NewGuard 创建查询守卫
func NewGuard(logger *zap.Logger) (*Guard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	parser, err := sqlparser.New(sqlparser.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sql parser: %w", err)
	}

	forbidden := make(map[string]struct{}, len(forbiddenKeywords))
	for _, kw := range forbiddenKeywords {
		forbidden[kw] = struct{}{}
	}

	return &Guard{
		parser:    parser,
		forbidden: forbidden,
		logger:    logger,
	}, nil
}

// PreCheck 在提取之前检查模型原始输出
// 输出为空或不含任何大小写形式的SELECT时返回 generation-empty-or-invalid
func PreCheck(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return NewRejection(KindGenerationEmptyOrInvalid, "model returned empty text", nil)
	}
	if !selectKeyword.MatchString(raw) {
		return NewRejection(KindGenerationEmptyOrInvalid, "model output contains no SELECT keyword", nil)
	}
	return nil
}

// Validate 校验提取结果，通过时返回去除首尾空白的原语句
func (g *Guard) Validate(q ExtractedQuery) (string, error) {
	if !q.Found || q.Statement == NoValidQuery {
		return "", NewRejection(KindExtractionFailed, NoValidQuery, nil)
	}

	stmt := strings.TrimSpace(q.Statement)
	if !strings.HasPrefix(strings.ToUpper(stmt), "SELECT") {
		return "", NewRejection(KindUnsafeStatement, "statement does not begin with SELECT", nil)
	}

	code, statements := scanStatement(stmt)
	if statements > 1 {
		return "", NewRejection(KindUnsafeStatement,
			fmt.Sprintf("only one statement is allowed, found %d", statements), nil)
	}

	if kw := g.findForbiddenKeyword(code); kw != "" {
		return "", NewRejection(KindUnsafeStatement,
			fmt.Sprintf("forbidden keyword %s", kw), nil)
	}

	if err := g.checkParsedType(stmt); err != nil {
		return "", err
	}

	return stmt, nil
}

// checkParsedType 用MySQL语法解析器确认语句类型
// 解析失败不拒绝，SQLite特有语法无法被解析
func (g *Guard) checkParsedType(stmt string) error {
	parsed, err := g.parser.Parse(stmt)
	if err != nil {
		g.logger.Debug("statement not parseable, relying on keyword checks",
			zap.String("sql", stmt),
			zap.Error(err))
		return nil
	}

	switch parsed.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return nil
	default:
		return NewRejection(KindUnsafeStatement,
			fmt.Sprintf("statement parsed as %T", parsed), nil)
	}
}

// findForbiddenKeyword 在去除字符串和注释后的文本中查找禁止关键字
func (g *Guard) findForbiddenKeyword(code string) string {
	upper := strings.ToUpper(code)
	i := 0
	for i < len(upper) {
		if !isWordChar(upper[i]) {
			i++
			continue
		}
		start := i
		for i < len(upper) && isWordChar(upper[i]) {
			i++
		}
		word := upper[start:i]
		if _, ok := g.forbidden[word]; !ok {
			continue
		}
		// REPLACE( 是字符串函数
		if word == "REPLACE" && nextNonSpace(upper, i) == '(' {
			continue
		}
		return word
	}
	return ""
}

// scanStatement 去除字符串字面量和注释，并统计以分号分隔的非空语句数
func scanStatement(sql string) (string, int) {
	var code strings.Builder
	statements := 0
	pending := false

	for i := 0; i < len(sql); i++ {
		c := sql[i]
		switch {
		case c == '\'' || c == '"' || c == '`':
			// 引号内容替换为空格，保留语句边界
			end := closingQuote(sql, i+1, c)
			code.WriteByte(' ')
			pending = true
			i = end
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			code.WriteByte(' ')
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				i = len(sql)
			} else {
				i += end + 3
			}
			code.WriteByte(' ')
		case c == ';':
			if pending {
				statements++
				pending = false
			}
			code.WriteByte(';')
		default:
			if !isSpace(c) {
				pending = true
			}
			code.WriteByte(c)
		}
	}
	if pending {
		statements++
	}
	return code.String(), statements
}

// closingQuote 返回匹配的结束引号位置，成对的引号视为转义
func closingQuote(sql string, from int, quote byte) int {
	for j := from; j < len(sql); j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == quote {
			j++
			continue
		}
		return j
	}
	return len(sql)
}

func nextNonSpace(s string, from int) byte {
	for j := from; j < len(s); j++ {
		if !isSpace(s[j]) {
			return s[j]
		}
	}
	return 0
}

func isWordChar(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}
