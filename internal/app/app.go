package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/hitoshi/newsboard/internal/config"
	"github.com/hitoshi/newsboard/internal/database"
	"github.com/hitoshi/newsboard/internal/logger"
	"github.com/hitoshi/newsboard/internal/model"
	"github.com/hitoshi/newsboard/internal/news"
	"github.com/hitoshi/newsboard/internal/repository"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ったJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にもログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		action, steps := ParseMigrateArgs(rest)
		return runMigrate(cfg, action, steps)
	case CommandSeed:
		return runSeed(cfg, ParseSeedCount(rest))
	default:
		return runServe(cfg)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction, steps int) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.RollbackMigrations(cfg.DatabaseURL, steps); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back", slog.Int("steps", steps))
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully")
	}
	return nil
}

// runSeed は動作確認用のニュースをcount件作成する。
// 日付は今日から1日ずつ過去に遡る。
func runSeed(cfg *config.Config, count int) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	homeCache, closeCache := openHomeCache(ctx, cfg)
	defer closeCache()

	svc := news.NewService(
		repository.NewPostgresNewsRepo(db),
		repository.NewPostgresCommentRepo(db),
		homeCache,
		cfg.NewsCountOnHomePage,
	)

	created, err := seedNews(ctx, svc, count, time.Now())
	if err != nil {
		return err
	}
	slog.Info("seed completed", slog.Int("news_created", created))
	return nil
}

// newsCreator はseedで使用するニュース作成のインターフェース。
type newsCreator interface {
	Create(ctx context.Context, title, text string, date time.Time) (*model.News, error)
}

// seedNews はcount件のニュースを日付の降順に作成し、作成件数を返す。
func seedNews(ctx context.Context, creator newsCreator, count int, today time.Time) (int, error) {
	for i := 0; i < count; i++ {
		date := today.AddDate(0, 0, -i)
		title := fmt.Sprintf("Demo news #%d", count-i)
		text := fmt.Sprintf("Demo news published on %s.", date.Format("2006-01-02"))
		if _, err := creator.Create(ctx, title, text, date); err != nil {
			return i, fmt.Errorf("failed to create demo news %d: %w", i+1, err)
		}
	}
	return count, nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
