// 问答流水线：构建提示词 → 调用模型 → 预检 → 提取 → 校验 → 执行
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"salesql-go/internal/ai"
	"salesql-go/internal/metrics"
)

// QueryRunner 执行校验后的语句
type QueryRunner interface {
	Execute(ctx context.Context, statement string) *QueryResult
}

// GenerationCache 模型输出缓存
type GenerationCache interface {
	Get(ctx context.Context, prompt string) (string, bool, error)
	Set(ctx context.Context, prompt, raw string) error
}

// ChatServiceOptions 可选依赖
type ChatServiceOptions struct {
	Dialect      ai.Dialect
	ModelTimeout time.Duration
	Cache        GenerationCache            // 为空时不缓存
	Metrics      *metrics.PrometheusMetrics // 为空时不记录
	Now          func() time.Time           // 为空时使用time.Now
}

// ChatService 问答服务
// 单次请求同步跑完整条流水线，服务本身不持有可变状态
type ChatService struct {
	model        ai.ModelClient
	builder      *ai.PromptBuilder
	guard        *ai.Guard
	executor     QueryRunner
	schema       ai.SchemaDescriptor
	cache        GenerationCache
	metrics      *metrics.PrometheusMetrics
	modelTimeout time.Duration
	now          func() time.Time
	logger       *zap.Logger
}

// AskResult 一次问答的完整结果
// 所有错误都在这里转成可展示的信息
type AskResult struct {
	RequestID string           `json:"request_id,omitempty"`
	Question  string           `json:"question"`
	RawSQL    string           `json:"raw_sql"`
	SQL       string           `json:"sql"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Warnings  []string         `json:"warnings,omitempty"`
	ErrorKind ai.ErrorKind     `json:"error_kind,omitempty"`
	Error     string           `json:"error,omitempty"`
	Cached    bool             `json:"cached"`
	Duration  int64            `json:"duration_ms"`
}

// Succeeded 是否得到了表格结果
func (r *AskResult) Succeeded() bool {
	return r.ErrorKind == ai.KindNone
}

// NewChatService 创建问答服务
func NewChatService(model ai.ModelClient, guard *ai.Guard, executor QueryRunner, opts ChatServiceOptions, logger *zap.Logger) (*ChatService, error) {
	if model == nil {
		return nil, fmt.Errorf("model client cannot be nil")
	}
	if guard == nil {
		return nil, fmt.Errorf("guard cannot be nil")
	}
	if executor == nil {
		return nil, fmt.Errorf("executor cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &ChatService{
		model:        model,
		builder:      ai.NewPromptBuilder(opts.Dialect),
		guard:        guard,
		executor:     executor,
		schema:       ai.SalesSchema(),
		cache:        opts.Cache,
		metrics:      opts.Metrics,
		modelTimeout: opts.ModelTimeout,
		now:          opts.Now,
		logger:       logger,
	}, nil
}

// Schema 返回可查询表的描述
func (s *ChatService) Schema() ai.SchemaDescriptor {
	return s.schema
}

// Ask 处理一个自然语言问题
func (s *ChatService) Ask(ctx context.Context, question string) *AskResult {
	start := time.Now()
	result := &AskResult{
		Question: question,
		Columns:  []string{},
		Rows:     []map[string]any{},
	}
	defer func() {
		result.Duration = time.Since(start).Milliseconds()
		outcome := "success"
		if result.ErrorKind != ai.KindNone {
			outcome = string(result.ErrorKind)
		}
		s.metrics.RecordPipeline(outcome)
	}()

	prompt := s.builder.BuildPrompt(question, s.schema, ai.CurrentYearMonth(s.now()))

	raw, cached, err := s.generate(ctx, prompt)
	if err != nil {
		s.fail(result, err)
		return result
	}
	result.RawSQL = raw
	result.Cached = cached

	// 模型输出为空或没有SELECT时直接返回占位语句，不执行
	if err := ai.PreCheck(raw); err != nil {
		result.SQL = ai.PlaceholderStatement
		s.fail(result, err)
		return result
	}

	extractStart := time.Now()
	extracted := ai.ExtractQuery(raw)
	statement, err := s.guard.Validate(extracted)
	s.metrics.ObserveStage(metrics.StageExtract, time.Since(extractStart))
	if err != nil {
		result.SQL = extracted.String()
		s.fail(result, err)
		return result
	}
	result.SQL = statement

	execStart := time.Now()
	qr := s.executor.Execute(ctx, statement)
	s.metrics.ObserveStage(metrics.StageExecute, time.Since(execStart))
	s.metrics.RecordSQLExecution(qr.Status, qr.RowCount, time.Since(execStart))

	result.Warnings = qr.Warnings
	if qr.Failed() {
		s.fail(result, ai.NewRejection(ai.KindExecutionError, qr.Error, nil))
		return result
	}

	result.Columns = qr.Columns
	result.Rows = qr.Rows
	result.RowCount = qr.RowCount

	s.logger.Info("question answered",
		zap.String("sql", statement),
		zap.Int("row_count", qr.RowCount),
		zap.Bool("cached", cached))

	return result
}

// generate 调用模型，带超时和缓存
func (s *ChatService) generate(ctx context.Context, prompt string) (string, bool, error) {
	if s.cache != nil {
		raw, hit, err := s.cache.Get(ctx, prompt)
		switch {
		case err != nil:
			s.metrics.RecordCacheLookup("error")
			s.logger.Warn("generation cache lookup failed", zap.Error(err))
		case hit:
			s.metrics.RecordCacheLookup("hit")
			return raw, true, nil
		default:
			s.metrics.RecordCacheLookup("miss")
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	start := time.Now()
	raw, err := s.model.Invoke(callCtx, prompt)
	s.metrics.ObserveStage(metrics.StageGenerate, time.Since(start))
	if err != nil {
		if !ai.IsModelUnavailable(err) {
			err = ai.NewRejection(ai.KindModelUnavailable, "model invocation failed", err)
		}
		return "", false, err
	}

	raw = strings.TrimSpace(raw)

	// 只缓存可能含有查询的输出
	if s.cache != nil && ai.PreCheck(raw) == nil {
		if err := s.cache.Set(ctx, prompt, raw); err != nil {
			s.logger.Warn("generation cache write failed", zap.Error(err))
		}
	}

	return raw, false, nil
}

// fail 记录错误分类和展示信息
func (s *ChatService) fail(result *AskResult, err error) {
	result.ErrorKind = ai.KindOf(err)
	if result.ErrorKind == ai.KindNone {
		result.ErrorKind = ai.KindExecutionError
	}
	result.Error = DisplayMessage(err)

	s.logger.Warn("question not answered",
		zap.String("kind", string(result.ErrorKind)),
		zap.String("sql", result.SQL),
		zap.Error(err))
}

// DisplayMessage 把流水线错误转成面向用户的信息
func DisplayMessage(err error) string {
	var rej *ai.RejectionError
	if !errors.As(err, &rej) {
		return err.Error()
	}

	switch rej.Kind {
	case ai.KindModelUnavailable:
		if rej.Err != nil {
			return fmt.Sprintf("Language model unavailable: %v", rej.Err)
		}
		return "Language model unavailable"
	case ai.KindGenerationEmptyOrInvalid:
		return "Error: No valid SQL query generated"
	case ai.KindExtractionFailed:
		return ai.NoValidQuery
	case ai.KindUnsafeStatement:
		return fmt.Sprintf("Query rejected: %s", rej.Reason)
	case ai.KindExecutionError:
		return fmt.Sprintf("Error executing query: %s", rej.Reason)
	default:
		return rej.Error()
	}
}
