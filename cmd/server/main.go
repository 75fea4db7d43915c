package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/wfunc/guess-game/internal/api"
	"github.com/wfunc/guess-game/internal/config"
	"github.com/wfunc/guess-game/internal/logger"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

type options struct {
	configPath string
	envFile    string
	port       int
	mode       string
}

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "guess-game-server",
		Short:         "猜角色派对游戏后端服务器",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts)
		},
	}
	cmd.SetVersionTemplate(versionString())

	fs := cmd.Flags()
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	fs.StringVarP(&opts.configPath, "config", "c", "", "配置文件路径 (env: GUESS_GAME_CONFIG)")
	fs.StringVar(&opts.envFile, "env-file", ".env", "启动前加载的 .env 文件")
	fs.IntVarP(&opts.port, "port", "p", 0, "监听端口，覆盖配置文件 (env: GUESS_GAME_SERVER_PORT)")
	fs.StringVar(&opts.mode, "mode", "", "运行模式 development/production/test")

	return cmd
}

func run(cmd *cobra.Command, opts *options) error {
	// .env 不存在时忽略
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("加载环境文件失败: %w", err)
		}
	}
	if opts.configPath == "" {
		opts.configPath = os.Getenv("GUESS_GAME_CONFIG")
	}

	if err := config.Init(opts.configPath); err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}
	if cmd.Flags().Changed("port") {
		if err := config.BindFlag("server.port", opts.port); err != nil {
			return fmt.Errorf("端口参数无效: %w", err)
		}
	}
	if opts.mode != "" {
		if err := config.BindFlag("server.mode", opts.mode); err != nil {
			return fmt.Errorf("运行模式参数无效: %w", err)
		}
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	defer logger.Sync()

	setupSystem(&cfg.System)
	api.SwaggerInfo.Version = Version
	printStartInfo(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	server := NewServer(cfg)
	if err := server.Start(ctx); err != nil {
		logger.LogError(err, "服务器启动失败")
		return err
	}

	<-server.Done()
	failed := ctx.Err() == nil
	if failed {
		logger.Warn("服务异常退出，正在关闭")
	} else {
		logger.Info("收到退出信号，正在关闭")
	}

	if err := server.Shutdown(); err != nil {
		logger.LogError(err, "服务器关闭失败")
		return err
	}
	if failed {
		return fmt.Errorf("HTTP服务异常退出")
	}
	logger.Info("服务器已安全关闭")
	return nil
}

// setupSystem 设置系统参数
func setupSystem(cfg *config.SystemConfig) {
	if cfg.Timezone != "" {
		if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
			time.Local = loc
		}
	}
	if cfg.MaxProcs > 0 {
		runtime.GOMAXPROCS(cfg.MaxProcs)
	}

	// 每个 WebSocket 连接占用一个文件描述符
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil {
		rLimit.Cur = rLimit.Max
		syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	}
}

func versionString() string {
	return fmt.Sprintf("猜角色游戏服务器\n版本: %s\n构建时间: %s\nGit提交: %s\nGo版本: %s\n操作系统: %s/%s\n",
		Version, BuildTime, GitCommit, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// printStartInfo 打印启动信息
func printStartInfo(cfg *config.Config) {
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("猜角色游戏服务器 %s | 模式: %s | PID: %d\n", Version, cfg.Server.Mode, os.Getpid())
	fmt.Printf("监听地址: %s | 配置文件: %s\n", cfg.Server.Addr(), config.ConfigFileUsed())
	fmt.Println("═══════════════════════════════════════════════════════════════")
}
