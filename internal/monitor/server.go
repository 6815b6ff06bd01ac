package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/stockbot/gostock/internal/domain"
	"github.com/stockbot/gostock/internal/store"
	"github.com/stockbot/gostock/pkg/config"
)

// DepositProvider 预托金查询入口（由交易协调器实现）
type DepositProvider interface {
	DepositDetail(ctx context.Context) (domain.DepositDetail, error)
}

// Server 只读状态服务
//
// 只在回环地址监听，不做认证。所有端点都是只读视图：
// 交易状态来自状态文档，成交归档来自 SQLite。
type Server struct {
	cfg     config.MonitorConfig
	store   *store.Store
	deposit DepositProvider
	archive *Archive

	httpSrv *http.Server
	log     *logrus.Entry
}

// New 创建服务并打开成交归档库
func New(cfg config.MonitorConfig, st *store.Store, deposit DepositProvider) (*Server, error) {
	archive, err := OpenArchive(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "open execution archive")
	}
	return &Server{
		cfg:     cfg,
		store:   st,
		deposit: deposit,
		archive: archive,
		log:     logrus.WithField("component", "monitor"),
	}, nil
}

// Run 启动 HTTP 服务与归档同步循环，阻塞直到 ctx 取消
func (s *Server) Run(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("只读状态服务监听 %s", s.cfg.Listen)
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	go s.archive.SyncLoop(ctx, s.store)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return errors.Wrap(err, "monitor http server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(shutdownCtx)
	return s.archive.Close()
}

func (s *Server) router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := r.Group("/api")
	api.GET("/positions", s.handlePositions)
	api.GET("/positions/:code", s.handlePosition)
	api.GET("/pending_orders", s.handlePendingOrders)
	api.GET("/session", s.handleSession)
	api.GET("/watchlist", s.handleWatchlist)
	api.GET("/executions", s.handleExecutions)
	api.GET("/deposit", s.handleDeposit)
	return r
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Positions())
}

func (s *Server) handlePosition(c *gin.Context) {
	code := domain.CanonicalCode(c.Param("code"))
	pos := s.store.Position(code)
	if pos == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}
	c.JSON(http.StatusOK, pos)
}

func (s *Server) handlePendingOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.AllPending())
}

func (s *Server) handleSession(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Session())
}

func (s *Server) handleWatchlist(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"watchlist": s.store.Watchlist(),
		"max":       s.store.MaxWatchlist(),
	})
}

// handleExecutions 成交归档查询，?date=YYYYMMDD（必填）&code=（可选）
func (s *Server) handleExecutions(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date is required (YYYYMMDD)"})
		return
	}
	code := c.Query("code")
	if code != "" {
		code = domain.CanonicalCode(code)
	}

	rows, err := s.archive.Query(c.Request.Context(), date, code)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleDeposit(c *gin.Context) {
	if s.deposit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "deposit provider not available"})
		return
	}
	detail, err := s.deposit.DepositDetail(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, detail)
}
