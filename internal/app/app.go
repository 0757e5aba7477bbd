package app

import (
	"context"
	"os/signal"
	"syscall"

	"brokerd/internal/cache"
	"brokerd/internal/config"
	"brokerd/internal/histdata"
	"brokerd/internal/logger"
	"brokerd/internal/server"
	"brokerd/internal/store/gormstore"
	"brokerd/internal/store/model"
	"brokerd/internal/store/sqlite"
	"brokerd/internal/trading"
)

// App owns the wired components and their shutdown order.
type App struct {
	cfg          *config.Config
	cacheStore   *sqlite.Store
	tradingStore *gormstore.GormStore
	httpServer   *server.HTTPServer
}

func NewApp(cfg *config.Config) (*App, error) {
	cacheStore, err := sqlite.Open(cfg.Database.CachePath)
	if err != nil {
		return nil, err
	}
	tradingStore, err := gormstore.NewGormStore(cfg.Database.TradingPath)
	if err != nil {
		_ = cacheStore.Close()
		return nil, err
	}

	var sources []histdata.CandleSource
	if src, err := histdata.NewOandaSource(histdata.OandaConfig{
		APIKey:      cfg.Oanda.APIKey,
		AccountID:   cfg.Oanda.AccountID,
		Environment: cfg.Oanda.Environment,
		BaseURL:     cfg.Oanda.BaseURL,
	}); err != nil {
		logger.Warnf("oanda source disabled: %v", err)
	} else {
		sources = append(sources, src)
	}
	if src, err := histdata.NewBitunixSource(histdata.BitunixConfig{
		APIKey:    cfg.Bitunix.APIKey,
		SecretKey: cfg.Bitunix.SecretKey,
		BaseURL:   cfg.Bitunix.BaseURL,
	}); err != nil {
		logger.Warnf("bitunix source disabled: %v", err)
	} else {
		sources = append(sources, src)
	}

	fetcher := histdata.NewService(sources...)
	facade := cache.New(cacheStore, fetcher)
	tradingSvc := trading.NewService(tradingStore, cacheStore)

	httpServer, err := server.NewHTTPServer(server.HTTPConfig{
		Addr:    cfg.Server.Addr,
		Facade:  facade,
		Store:   cacheStore,
		Fetcher: fetcher,
		Trading: tradingSvc,
	})
	if err != nil {
		_ = tradingStore.Close()
		_ = cacheStore.Close()
		return nil, err
	}

	return &App{
		cfg:          cfg,
		cacheStore:   cacheStore,
		tradingStore: tradingStore,
		httpServer:   httpServer,
	}, nil
}

// Run seeds reference data and serves HTTP until the process receives
// SIGINT or SIGTERM.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.seedInstruments(ctx); err != nil {
		return err
	}
	err := a.httpServer.Run(ctx)

	if cerr := a.tradingStore.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if cerr := a.cacheStore.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

func (a *App) seedInstruments(ctx context.Context) error {
	seed := []model.InstrumentModel{
		{Symbol: "EUR_USD", Name: "Euro / US Dollar", Type: model.InstrumentTypeForex, BaseCurrency: "EUR", QuoteCurrency: "USD", MinQuantity: 0.01, TickSize: 0.00001, IsActive: true},
		{Symbol: "GBP_USD", Name: "British Pound / US Dollar", Type: model.InstrumentTypeForex, BaseCurrency: "GBP", QuoteCurrency: "USD", MinQuantity: 0.01, TickSize: 0.00001, IsActive: true},
		{Symbol: "USD_JPY", Name: "US Dollar / Japanese Yen", Type: model.InstrumentTypeForex, BaseCurrency: "USD", QuoteCurrency: "JPY", MinQuantity: 0.01, TickSize: 0.001, IsActive: true},
		{Symbol: "BTCUSDT", Name: "Bitcoin / Tether", Type: model.InstrumentTypeCrypto, BaseCurrency: "BTC", QuoteCurrency: "USDT", MinQuantity: 0.001, TickSize: 0.1, IsActive: true},
		{Symbol: "ETHUSDT", Name: "Ethereum / Tether", Type: model.InstrumentTypeCrypto, BaseCurrency: "ETH", QuoteCurrency: "USDT", MinQuantity: 0.01, TickSize: 0.01, IsActive: true},
	}
	return a.tradingStore.SeedInstruments(ctx, seed)
}
