package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tile-hub/tile-hub/internal/config"
	"github.com/tile-hub/tile-hub/internal/logging"
	"github.com/tile-hub/tile-hub/internal/proxy"
	"github.com/tile-hub/tile-hub/internal/server"
	"github.com/tile-hub/tile-hub/internal/server/routes"
	"github.com/tile-hub/tile-hub/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	refreshOnly bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["upstream"] = cfg.Global.UpstreamURL
		fields["cache_root"] = cfg.Global.CacheRoot
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	// CLI 启动遵循“配置 → 瓦片组件装配 → Fiber server”顺序，
	// 保证所有请求与刷新批任务共享统一的缓存与队列实例。
	svc, err := server.BuildTileService(cfg, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "装配瓦片服务失败: %v\n", err)
		return 1
	}

	if opts.refreshOnly {
		return runRefreshBatch(cfg, svc)
	}

	proxyHandler := proxy.NewHandler(proxy.Options{
		Store:       svc.Store,
		Downloader:  svc.Downloader,
		Queue:       svc.Queue,
		Freshness:   svc.Freshness,
		Bounds:      svc.Bounds,
		UpstreamURL: cfg.Global.UpstreamURL,
		Logger:      logger,
	})

	fields := logging.BaseFields("startup", opts.configPath)
	fields["upstream"] = cfg.Global.UpstreamURL
	fields["cache_root"] = cfg.Global.CacheRoot
	fields["listen_port"] = cfg.Global.ListenPort
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	if err := startHTTPServer(cfg, svc, proxyHandler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// runRefreshBatch 以一次性进程身份执行刷新批任务，专供 cron 周期调用。
// 逐瓦片的失败已记入日志并汇总在 JSON 输出里，不影响退出码。
func runRefreshBatch(cfg *config.Config, svc *server.TileService) int {
	result := svc.Runner.Run(context.Background(), cfg.Global.RefreshBatchSize)
	encoded, err := json.Marshal(result)
	if err != nil {
		fmt.Fprintf(stdErr, "序列化刷新结果失败: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdOut, string(encoded))
	return 0
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("tile-hub", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag  string
		checkOnly   bool
		refreshOnly bool
		showVer     bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 TILE_HUB_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&refreshOnly, "refresh", false, "执行一次刷新批任务后退出，不启动 HTTP 服务")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("TILE_HUB_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		refreshOnly: refreshOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(cfg *config.Config, svc *server.TileService, proxyHandler server.ProxyHandler, logger *logrus.Logger) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Proxy:      proxyHandler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterAdminRoutes(app, routes.AdminOptions{
		Queue:     svc.Queue,
		Runner:    svc.Runner,
		Freshness: svc.Freshness,
		BatchSize: cfg.Global.RefreshBatchSize,
		CacheRoot: cfg.Global.CacheRoot,
		Logger:    logger,
	})

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
