package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"brokerd/internal/cache"
	"brokerd/internal/histdata"
	"brokerd/internal/logger"
	"brokerd/internal/market"
	"brokerd/internal/store/gormstore"
	"brokerd/internal/store/sqlite"
	"brokerd/internal/trading"
)

// HTTPServer exposes the historical cache and trading operations over REST.
type HTTPServer struct {
	addr    string
	facade  *cache.Service
	store   *sqlite.Store
	fetcher *histdata.Service
	trading *trading.Service
	router  *gin.Engine
}

type HTTPConfig struct {
	Addr    string
	Facade  *cache.Service
	Store   *sqlite.Store
	Fetcher *histdata.Service
	Trading *trading.Service
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Facade == nil || cfg.Store == nil || cfg.Fetcher == nil {
		return nil, errors.New("facade, store and fetcher are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &HTTPServer{
		addr:    cfg.Addr,
		facade:  cfg.Facade,
		store:   cfg.Store,
		fetcher: cfg.Fetcher,
		trading: cfg.Trading,
		router:  router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	hist := s.router.Group("/api/historical")
	hist.GET("/candles", s.handleCandles)
	hist.GET("/coverage", s.handleCoverage)
	hist.GET("/gaps", s.handleGaps)
	hist.POST("/gaps/:id/fill", s.handleFillGap)
	hist.GET("/stats", s.handleStats)
	hist.GET("/intervals", s.handleIntervals)
	hist.GET("/limits", s.handleLimits)

	if s.trading != nil {
		trade := s.router.Group("/api/trading")
		trade.POST("/accounts", s.handleCreateAccount)
		trade.GET("/accounts", s.handleListAccounts)
		trade.GET("/accounts/:id", s.handleGetAccount)
		trade.GET("/instruments", s.handleListInstruments)
		trade.POST("/orders", s.handlePlaceOrder)
		trade.GET("/orders", s.handleListOrders)
		trade.GET("/positions", s.handleListPositions)
		trade.GET("/trades", s.handleListTrades)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("http server listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// candleView renders a candle with an RFC3339 timestamp.
type candleView struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
	Source    string  `json:"source"`
}

func toViews(candles []market.Candle) []candleView {
	out := make([]candleView, 0, len(candles))
	for _, c := range candles {
		out = append(out, candleView{
			Timestamp: c.Time().Format(time.RFC3339),
			Open:      c.Open,
			High:      c.High,
			Low:       c.Low,
			Close:     c.Close,
			Volume:    c.Volume,
			Source:    c.Source,
		})
	}
	return out
}

func parseTimeParam(c *gin.Context, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid timestamp %q", name, raw)
	}
	return ts.UnixMilli(), nil
}

func parseBoolParam(c *gin.Context, name string, def bool) bool {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, market.ErrUnsupportedInterval):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, histdata.ErrSourceUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, gormstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func (s *HTTPServer) handleCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	interval, err := market.ParseInterval(c.Query("interval"))
	if err != nil {
		writeError(c, err)
		return
	}
	start, err := parseTimeParam(c, "start_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseTimeParam(c, "end_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	maxCandles, _ := strconv.Atoi(c.DefaultQuery("max_candles", "0"))

	result, err := s.facade.GetCandles(c.Request.Context(), cache.Query{
		Symbol:     symbol,
		Interval:   interval,
		Source:     c.DefaultQuery("source", histdata.SourceAuto),
		Start:      start,
		End:        end,
		MaxCandles: maxCandles,
		UseCache:   parseBoolParam(c, "use_cache", true),
		FillGaps:   parseBoolParam(c, "fill_gaps", true),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"candles": toViews(result.Candles),
		"source":  result.Source,
		"partial": result.Partial,
	})
}

func (s *HTTPServer) handleCoverage(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol is required"})
		return
	}
	interval, err := market.ParseInterval(c.Query("interval"))
	if err != nil {
		writeError(c, err)
		return
	}
	start, err := parseTimeParam(c, "start_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	end, err := parseTimeParam(c, "end_time")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	norm := s.fetcher.Normalize(histdata.Request{
		Symbol:   symbol,
		Interval: interval,
		Start:    start,
		End:      end,
		Source:   c.DefaultQuery("source", histdata.SourceAuto),
	})
	cov, err := s.store.Coverage(c.Request.Context(), symbol, interval, norm.Source, norm.Start, norm.End)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cov)
}

func (s *HTTPServer) handleGaps(c *gin.Context) {
	gaps, err := s.store.PendingGaps(c.Request.Context(),
		c.Query("symbol"), c.Query("interval"), c.Query("source"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gaps": gaps})
}

func (s *HTTPServer) handleFillGap(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gap id"})
		return
	}
	stored, err := s.facade.FillGap(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"gap_id": id, "candles_stored": stored})
}

func (s *HTTPServer) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *HTTPServer) handleIntervals(c *gin.Context) {
	c.JSON(http.StatusOK, histdata.AvailableIntervals())
}

func (s *HTTPServer) handleLimits(c *gin.Context) {
	c.JSON(http.StatusOK, histdata.BrokerLimits())
}

func (s *HTTPServer) handleCreateAccount(c *gin.Context) {
	var req struct {
		Name        string  `json:"name" binding:"required"`
		AccountType string  `json:"account_type"`
		Balance     float64 `json:"balance"`
		Currency    string  `json:"currency"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account, err := s.trading.CreateAccount(c.Request.Context(), req.Name, req.AccountType, req.Currency, req.Balance)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (s *HTTPServer) handleListAccounts(c *gin.Context) {
	accounts, err := s.trading.Accounts(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (s *HTTPServer) handleGetAccount(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}
	account, err := s.trading.Account(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *HTTPServer) handleListInstruments(c *gin.Context) {
	instruments, err := s.trading.Instruments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"instruments": instruments})
}

func (s *HTTPServer) handlePlaceOrder(c *gin.Context) {
	var req trading.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := s.trading.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, trading.ErrNoPrice) || errors.Is(err, trading.ErrInvalidQuantity) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "order": order})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func accountIDParam(c *gin.Context) int64 {
	id, _ := strconv.ParseInt(c.Query("account_id"), 10, 64)
	return id
}

func (s *HTTPServer) handleListOrders(c *gin.Context) {
	orders, err := s.trading.Orders(c.Request.Context(), accountIDParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *HTTPServer) handleListPositions(c *gin.Context) {
	positions, err := s.trading.Positions(c.Request.Context(), accountIDParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func (s *HTTPServer) handleListTrades(c *gin.Context) {
	trades, err := s.trading.Trades(c.Request.Context(), accountIDParam(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}
