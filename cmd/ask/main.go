// 命令行问答工具
// 不启动HTTP服务，直接对销售数据提一个问题并打印生成的SQL和结果表

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"salesql-go/internal/ai"
	"salesql-go/internal/config"
	"salesql-go/internal/database"
	"salesql-go/internal/service"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to config.yaml")
		envFile    = flag.String("env", ".env", "path to .env file")
		configOnly = flag.Bool("config-only", false, "只检查配置，不调用模型")
		asJSON     = flag.Bool("json", false, "以JSON输出结果")
		verbose    = flag.Bool("v", false, "输出调试日志")
	)
	flag.Parse()

	if err := config.LoadEnv(*envFile); err != nil {
		log.Printf("环境变量加载警告: %v", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	logger := zap.NewNop()
	if *verbose {
		logger, err = config.NewLogger(config.LoggingConfig{Level: "debug", Format: "console"})
		if err != nil {
			log.Fatalf("日志初始化失败: %v", err)
		}
	}
	defer func() { _ = logger.Sync() }()

	if *configOnly {
		fmt.Printf("provider: %s\nmodel:    %s\nstore:    %s (%s)\n",
			cfg.LLM.Provider, cfg.LLM.Model, cfg.Store.DSN, cfg.Store.Driver)
		return
	}

	question := strings.TrimSpace(strings.Join(flag.Args(), " "))
	if question == "" {
		fmt.Fprintln(os.Stderr, "usage: ask [flags] <question>")
		os.Exit(2)
	}

	model, err := ai.NewLangChainClient(cfg.LLM, logger)
	if err != nil {
		log.Fatalf("模型客户端创建失败: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ok, err := runAsk(ctx, cfg, model, question, os.Stdout, *asJSON, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if !ok {
		os.Exit(1)
	}
}

// runAsk 初始化存储并回答一个问题，返回是否得到了结果表
func runAsk(ctx context.Context, cfg *config.Config, model ai.ModelClient, question string, out io.Writer, asJSON bool, logger *zap.Logger) (bool, error) {
	store, err := database.NewStore(cfg.Store, logger)
	if err != nil {
		return false, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Bootstrap(ctx); err != nil {
		return false, fmt.Errorf("failed to bootstrap store: %w", err)
	}
	if cfg.Store.SeedFile != "" {
		if _, err := store.LoadSeedFile(ctx, cfg.Store.SeedFile); err != nil {
			return false, fmt.Errorf("failed to load seed file: %w", err)
		}
	}

	guard, err := ai.NewGuard(logger)
	if err != nil {
		return false, fmt.Errorf("failed to initialize guard: %w", err)
	}

	dialect := ai.DialectSQLite
	if cfg.Store.Driver == config.DriverPostgres {
		dialect = ai.DialectPostgres
	}

	chat, err := service.NewChatService(model, guard, service.NewSQLExecutor(store.Open, cfg.Store, logger),
		service.ChatServiceOptions{Dialect: dialect, ModelTimeout: cfg.LLM.Timeout}, logger)
	if err != nil {
		return false, fmt.Errorf("failed to initialize chat service: %w", err)
	}

	result := chat.Ask(ctx, question)

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return result.Succeeded(), enc.Encode(result)
	}
	return result.Succeeded(), printResult(out, result)
}

// printResult 以对齐的表格打印结果
func printResult(out io.Writer, result *service.AskResult) error {
	fmt.Fprintf(out, "SQL: %s\n\n", result.SQL)

	if !result.Succeeded() {
		_, err := fmt.Fprintln(out, result.Error)
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(result.Columns, "\t"))
	for _, row := range result.Rows {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = fmt.Sprint(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, w := range result.Warnings {
		fmt.Fprintln(out, w)
	}
	_, err := fmt.Fprintf(out, "\n(%d rows)\n", result.RowCount)
	return err
}
