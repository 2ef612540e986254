package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"salesql-go/internal/ai"
	"salesql-go/internal/metrics"
	"salesql-go/internal/middleware"
	"salesql-go/internal/service"
)

// MockAskService 模拟问答服务
type MockAskService struct {
	mock.Mock
}

func (m *MockAskService) Ask(ctx context.Context, question string) *service.AskResult {
	args := m.Called(ctx, question)
	return args.Get(0).(*service.AskResult)
}

func (m *MockAskService) Schema() ai.SchemaDescriptor {
	return ai.SalesSchema()
}

// MockHealthService 模拟健康检查服务
type MockHealthService struct {
	mock.Mock
}

func (m *MockHealthService) CheckHealth(ctx context.Context) *service.HealthCheckResult {
	args := m.Called(ctx)
	return args.Get(0).(*service.HealthCheckResult)
}

func (m *MockHealthService) CheckReadiness(ctx context.Context) *service.ReadinessResult {
	args := m.Called(ctx)
	return args.Get(0).(*service.ReadinessResult)
}

func (m *MockHealthService) GetVersionInfo() map[string]any {
	args := m.Called()
	return args.Get(0).(map[string]any)
}

func successResult(question string) *service.AskResult {
	return &service.AskResult{
		Question: question,
		RawSQL:   "```sql\nSELECT Product, SUM(Quantity) AS total FROM Sales GROUP BY Product;\n```",
		SQL:      "SELECT Product, SUM(Quantity) AS total FROM Sales GROUP BY Product;",
		Columns:  []string{"Product", "total"},
		Rows: []map[string]any{
			{"Product": "Product A", "total": int64(8)},
			{"Product": "Product B", "total": int64(12)},
		},
		RowCount: 2,
	}
}

func failedResult(question string, kind ai.ErrorKind, sql, message string) *service.AskResult {
	return &service.AskResult{
		Question:  question,
		SQL:       sql,
		Columns:   []string{},
		Rows:      []map[string]any{},
		ErrorKind: kind,
		Error:     message,
	}
}

// HandlerTestSuite 路由和处理器测试套件
type HandlerTestSuite struct {
	suite.Suite
	askService    *MockAskService
	healthService *MockHealthService
	metrics       *metrics.PrometheusMetrics
	router        *gin.Engine
}

func (s *HandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *HandlerTestSuite) SetupTest() {
	logger := zaptest.NewLogger(s.T())
	s.askService = &MockAskService{}
	s.healthService = &MockHealthService{}
	s.metrics = metrics.NewPrometheusMetrics(metrics.DefaultMetricsConfig(), logger)

	s.router = gin.New()
	s.router.Use(middleware.RequestIDMiddleware())
	err := SetupRoutes(s.router, &RouterConfig{
		AskHandler:    NewAskHandler(s.askService, logger),
		PageHandler:   NewPageHandler(s.askService, "", logger),
		HealthService: s.healthService,
		Metrics:       s.metrics,
		RateLimiter: middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             100,
		}),
	})
	s.Require().NoError(err)
}

func (s *HandlerTestSuite) TearDownTest() {
	s.askService.AssertExpectations(s.T())
	s.healthService.AssertExpectations(s.T())
}

func (s *HandlerTestSuite) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerTestSuite) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *HandlerTestSuite) postForm(question string) *httptest.ResponseRecorder {
	form := url.Values{"question": {question}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *HandlerTestSuite) TestAskSuccess() {
	question := "Total quantity per product"
	s.askService.On("Ask", mock.Anything, question).Return(successResult(question)).Once()

	w := s.postJSON("/api/v1/ask", `{"question":"  Total quantity per product  "}`)

	s.Equal(http.StatusOK, w.Code)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal(question, body["question"])
	s.Equal("SELECT Product, SUM(Quantity) AS total FROM Sales GROUP BY Product;", body["sql"])
	s.EqualValues(2, body["row_count"])
	s.Equal(w.Header().Get("X-Request-ID"), body["request_id"])
	s.NotContains(body, "code")
	s.NotContains(body, "error")

	rows := body["rows"].([]any)
	s.Require().Len(rows, 2)
	s.Equal("Product A", rows[0].(map[string]any)["Product"])
}

func (s *HandlerTestSuite) TestAskInvalidRequests() {
	tests := []struct {
		name string
		body string
	}{
		{"empty question", `{"question":""}`},
		{"blank question", `{"question":"   "}`},
		{"missing question", `{}`},
		{"unknown field", `{"question":"hi","connection_id":1}`},
		{"malformed json", `{"question":`},
		{"too long", `{"question":"` + strings.Repeat("a", MaxQuestionLength+1) + `"}`},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			w := s.postJSON("/api/v1/ask", tt.body)

			s.Equal(http.StatusBadRequest, w.Code)
			var resp ErrorResponse
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
			s.Equal(CodeInvalidRequest, resp.Code)
			s.NotEmpty(resp.RequestID)
			s.NotEmpty(resp.Timestamp)
		})
	}
	s.askService.AssertNotCalled(s.T(), "Ask", mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestAskErrorKinds() {
	tests := []struct {
		kind   ai.ErrorKind
		sql    string
		status int
		code   string
	}{
		{ai.KindModelUnavailable, "", http.StatusBadGateway, CodeModelUnavailable},
		{ai.KindGenerationEmptyOrInvalid, ai.PlaceholderStatement, http.StatusUnprocessableEntity, CodeNoValidQuery},
		{ai.KindExtractionFailed, ai.NoValidQuery, http.StatusUnprocessableEntity, CodeExtractionFailed},
		{ai.KindUnsafeStatement, "SELECT 1; DROP TABLE Sales;", http.StatusUnprocessableEntity, CodeUnsafeStatement},
		{ai.KindExecutionError, "SELECT Revenue FROM Sales;", http.StatusUnprocessableEntity, CodeExecutionError},
	}

	for _, tt := range tests {
		s.Run(string(tt.kind), func() {
			question := "question for " + string(tt.kind)
			s.askService.On("Ask", mock.Anything, question).
				Return(failedResult(question, tt.kind, tt.sql, "display message")).Once()

			w := s.postJSON("/api/v1/ask", `{"question":"`+question+`"}`)

			s.Equal(tt.status, w.Code)
			var body map[string]any
			s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
			s.Equal(tt.code, body["code"])
			s.Equal(string(tt.kind), body["error_kind"])
			s.Equal("display message", body["error"])
			s.Equal(tt.sql, body["sql"])
		})
	}
}

func (s *HandlerTestSuite) TestSchema() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil))

	s.Equal(http.StatusOK, w.Code)
	var body struct {
		Table   string `json:"table"`
		Columns []struct {
			Name string `json:"name"`
		} `json:"columns"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	s.Equal("Sales", body.Table)
	s.Len(body.Columns, 4)
}

func (s *HandlerTestSuite) TestIndexPage() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Header().Get("Content-Type"), "text/html")
	s.Contains(w.Body.String(), `<form method="post" action="/">`)
	s.Contains(w.Body.String(), "Price")
	s.NotContains(w.Body.String(), "Generated SQL")
}

func (s *HandlerTestSuite) TestFormSubmitRendersTable() {
	question := "Total quantity per product"
	s.askService.On("Ask", mock.Anything, question).Return(successResult(question)).Once()

	w := s.postForm(question)

	s.Equal(http.StatusOK, w.Code)
	body := w.Body.String()
	s.Contains(body, "Generated SQL")
	s.Contains(body, "<th>Product</th><th>total</th>")
	s.Contains(body, "<td>Product A</td><td>8</td>")
	s.Contains(body, "2 row(s)")
}

func (s *HandlerTestSuite) TestFormSubmitShowsError() {
	question := "Which product has the best margin?"
	s.askService.On("Ask", mock.Anything, question).
		Return(failedResult(question, ai.KindExecutionError, "SELECT Margin FROM Sales;",
			"Error executing query: no such column: Margin")).Once()

	w := s.postForm(question)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Error executing query: no such column: Margin")
	s.NotContains(w.Body.String(), "<table>")
}

func (s *HandlerTestSuite) TestFormSubmitEscapesQuestion() {
	question := "<script>alert(1)</script>"
	s.askService.On("Ask", mock.Anything, question).
		Return(failedResult(question, ai.KindGenerationEmptyOrInvalid, ai.PlaceholderStatement,
			"Error: No valid SQL query generated")).Once()

	w := s.postForm(question)

	s.NotContains(w.Body.String(), "<script>alert(1)</script>")
	s.Contains(w.Body.String(), "&lt;script&gt;")
}

func (s *HandlerTestSuite) TestFormSubmitEmptyQuestion() {
	w := s.postForm("  ")

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "Please enter a question.")
	s.askService.AssertNotCalled(s.T(), "Ask", mock.Anything, mock.Anything)
}

func (s *HandlerTestSuite) TestQuestionLengthCountsCharacters() {
	question := strings.Repeat("销", 400)
	s.askService.On("Ask", mock.Anything, question).Return(successResult(question)).Twice()

	s.Equal(http.StatusOK, s.postForm(question).Code)
	s.Equal(http.StatusOK, s.postJSON("/api/v1/ask", `{"question":"`+question+`"}`).Code)

	tooLong := strings.Repeat("销", MaxQuestionLength+1)
	w := s.postForm(tooLong)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "The question is too long.")
}

func (s *HandlerTestSuite) TestHealthEndpoints() {
	now := time.Now()
	s.healthService.On("CheckHealth", mock.Anything).Return(&service.HealthCheckResult{
		Status:    service.HealthStatusDegraded,
		Timestamp: now,
		Service:   "salesql",
	}).Once()
	s.healthService.On("CheckReadiness", mock.Anything).Return(&service.ReadinessResult{
		Status:    service.HealthStatusUnhealthy,
		Timestamp: now,
	}).Once()
	s.healthService.On("GetVersionInfo").Return(map[string]any{"name": "salesql", "version": "test"}).Once()

	s.Equal(http.StatusOK, s.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
	s.Equal(http.StatusServiceUnavailable, s.do(httptest.NewRequest(http.MethodGet, "/ready", nil)).Code)

	w := s.do(httptest.NewRequest(http.MethodGet, "/version", nil))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"version":"test"`)
}

func (s *HandlerTestSuite) TestMetricsEndpoint() {
	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), "go_goroutines")
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestAskRateLimited(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &MockAskService{}
	svc.On("Ask", mock.Anything, "hello").Return(successResult("hello")).Once()

	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	require.NoError(t, SetupRoutes(r, &RouterConfig{
		AskHandler:  NewAskHandler(svc, nil),
		RateLimiter: middleware.NewRateLimiter(&middleware.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}),
	}))

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(`{"question":"hello"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send())
	assert.Equal(t, http.StatusTooManyRequests, send())

	// 限流只作用于模型调用路由
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/schema", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestStatusForKind(t *testing.T) {
	status, code := statusForKind(ai.KindNone)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, code)

	status, code = statusForKind(ai.ErrorKind("something-else"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, CodeInternalError, code)
}
