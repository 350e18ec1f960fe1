package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/moneymaster/tradedash/internal/control"
	"github.com/moneymaster/tradedash/internal/dashboard"
	"github.com/moneymaster/tradedash/internal/domain"
	"github.com/moneymaster/tradedash/internal/poller"
	"github.com/moneymaster/tradedash/internal/stream"
	"github.com/moneymaster/tradedash/internal/view"
	"github.com/moneymaster/tradedash/pkg/api"
	"github.com/moneymaster/tradedash/pkg/cache"
	"github.com/moneymaster/tradedash/pkg/config"
	"github.com/moneymaster/tradedash/pkg/logger"
	"github.com/moneymaster/tradedash/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "配置文件路径")
	flag.Parse()

	// .env 可选，本地开发用
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logrus.Infof("tradedash 启动: symbol=%s interval=%s api=%s",
		cfg.Market.Symbol, cfg.Market.Interval, cfg.Server.APIBaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := api.NewClient(cfg.Server.APIBaseURL)
	store := view.NewStore(cfg.Market.WindowSize)
	streams := stream.NewManager(cfg.Server.WSBaseURL,
		cfg.Stream.ReconnectDelayDuration(), cfg.Stream.HandshakeTimeoutDuration(), store)
	controller := control.NewController(client, store, cfg.Market.StrategyType, cfg.Market.Symbol)

	shutdownMgr := shutdown.NewManager()
	shutdownMgr.OnShutdown(func(ctx context.Context) {
		streams.Close()
	})

	// K 线快照先落地再接 WS 增量（bootstrap 顺序约束）
	if bars, err := client.GetKlines(ctx, cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.KlineLimit); err != nil {
		logrus.Errorf("启动拉取 K 线快照失败: %v", err)
		store.Warn("K 线快照拉取失败，等待轮询兜底")
	} else {
		store.Dispatch(view.KlineSnapshotMessage{Bars: bars})
	}

	if err := streams.Subscribe(ctx, cfg.Market.Symbol, cfg.Market.Interval); err != nil {
		logrus.Errorf("行情连接失败: %v", err)
		store.Warn("行情连接失败: " + err.Error())
	}

	group := buildPollers(cfg, client, store, controller, streams)
	group.Start(ctx)

	dash := dashboard.New(store, controller, streams, client,
		cfg.Market.Symbol, cfg.Market.Interval, cfg.Market.KlineLimit)

	// TUI 退出键会补发 SIGINT，和外部信号走同一条退出链路
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logrus.Infof("收到信号 %s，开始退出", sig)
		cancel()
	}()

	if err := dash.Run(ctx); err != nil {
		logrus.Errorf("仪表盘异常退出: %v", err)
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	shutdownMgr.Shutdown(shutdownCtx)
	group.Wait()

	logrus.Info("tradedash 已退出")
}

// buildPollers 组装各数据源的固定周期轮询
func buildPollers(cfg *config.Config, client *api.Client, store *view.Store,
	controller *control.Controller, streams *stream.Manager) *poller.Group {
	secs := func(n int) time.Duration { return time.Duration(n) * time.Second }
	group := &poller.Group{}

	// 行情兜底轮询：WS 断开期间价格面板仍有数据
	group.Add(poller.New("price", secs(cfg.Poll.PriceInterval), func(ctx context.Context) error {
		tick, err := client.GetMarketPrice(ctx, cfg.Market.Symbol)
		if err != nil {
			return err
		}
		store.Dispatch(view.TickerMessage{Tick: tick})
		return nil
	}, store.Warn))

	group.Add(poller.New("balance", secs(cfg.Poll.BalanceInterval), func(ctx context.Context) error {
		balance, err := client.GetBalance(ctx)
		if err != nil {
			return err
		}
		store.Dispatch(view.BalanceMessage{Balance: balance})
		return nil
	}, store.Warn))

	group.Add(poller.New("trades", secs(cfg.Poll.TradesInterval), func(ctx context.Context) error {
		trades, err := client.GetTrades(ctx, cfg.Market.Symbol)
		if err != nil {
			return err
		}
		store.Dispatch(view.TradesMessage{Trades: trades})
		return nil
	}, store.Warn))

	group.Add(poller.New("strategy", secs(cfg.Poll.StrategyInterval), func(ctx context.Context) error {
		return controller.Refresh(ctx)
	}, store.Warn))

	// 分析结果带 TTL 缓存：相同结果在缓存期内不重复派发
	analysisCache := cache.NewInMemoryCache[string, domain.Analysis](secs(cfg.Poll.AnalysisInterval))
	group.Add(poller.New("analysis", secs(cfg.Poll.AnalysisInterval), func(ctx context.Context) error {
		analysis, err := client.GetAnalysis(ctx)
		if err != nil {
			return err
		}
		if prev, ok := analysisCache.Get("latest"); ok && prev == analysis {
			return nil
		}
		analysisCache.Set("latest", analysis, 0)
		store.Dispatch(view.AnalysisMessage{Analysis: analysis})
		return nil
	}, store.Warn))

	// K 线快照兜底：长断连后重建整段窗口（跟随 TUI 里切换后的周期）
	group.Add(poller.New("kline", secs(cfg.Poll.KlineInterval), func(ctx context.Context) error {
		interval := streams.Interval()
		if interval == "" {
			interval = cfg.Market.Interval
		}
		bars, err := client.GetKlines(ctx, cfg.Market.Symbol, interval, cfg.Market.KlineLimit)
		if err != nil {
			return err
		}
		store.Dispatch(view.KlineSnapshotMessage{Bars: bars})
		return nil
	}, store.Warn))

	return group
}
