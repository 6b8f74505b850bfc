package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"replaylab/internal/config"
	"replaylab/internal/config/loader"
	"replaylab/internal/content"
	"replaylab/internal/indicator"
	"replaylab/internal/market"
	"replaylab/internal/paper"
	"replaylab/internal/replay"
	"replaylab/internal/session"
	"replaylab/internal/store/gormstore"

	"github.com/gin-gonic/gin"
)

// HTTPServer 提供 Gin 接口，供前端驱动回放练习。
type HTTPServer struct {
	addr           string
	cfg            config.PracticeConfig
	indCfg         indicator.Settings
	profileBuckets int
	library        *content.Library
	sessions       *session.Manager
	courses        *loader.CourseLoader
	results        *gormstore.GormStore
	router         *gin.Engine
}

type HTTPConfig struct {
	Addr      string
	Practice  config.PracticeConfig
	Indicator indicator.Settings
	// ProfileBuckets 是量能分布的默认分桶数，请求可用 ?buckets= 覆盖。
	ProfileBuckets int
	Library        *content.Library
	Sessions       *session.Manager
	Courses        *loader.CourseLoader
	Results        *gormstore.GormStore
}

func NewHTTPServer(cfg HTTPConfig) (*HTTPServer, error) {
	if cfg.Library == nil {
		return nil, errors.New("scenario library 不能为空")
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session manager 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8087"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	if cfg.ProfileBuckets <= 0 {
		cfg.ProfileBuckets = 24
	}
	s := &HTTPServer{
		addr:           cfg.Addr,
		cfg:            cfg.Practice,
		indCfg:         cfg.Indicator,
		profileBuckets: cfg.ProfileBuckets,
		library:        cfg.Library,
		sessions:       cfg.Sessions,
		courses:        cfg.Courses,
		results:        cfg.Results,
		router:         router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	api := s.router.Group("/api/practice")
	api.GET("/scenarios", s.handleScenarioList)
	api.GET("/scenarios/:id", s.handleScenarioDetail)
	api.GET("/courses", s.handleCourseList)
	api.GET("/history", s.handleHistory)

	api.POST("/sessions", s.handleSessionCreate)
	api.GET("/sessions", s.handleSessionList)
	api.GET("/sessions/:id", s.handleSessionState)
	api.DELETE("/sessions/:id", s.handleSessionDelete)

	api.POST("/sessions/:id/play", s.handlePlay)
	api.POST("/sessions/:id/pause", s.handlePause)
	api.POST("/sessions/:id/step", s.handleStep)
	api.POST("/sessions/:id/stepback", s.handleStepBack)
	api.POST("/sessions/:id/reset", s.handleReset)
	api.POST("/sessions/:id/speed", s.handleSpeed)
	api.POST("/sessions/:id/decision", s.handleDecision)
	api.POST("/sessions/:id/reveal", s.handleReveal)

	api.GET("/sessions/:id/bars", s.handleBars)
	api.GET("/sessions/:id/indicators", s.handleIndicators)
	api.GET("/sessions/:id/report", s.handleReport)
	api.GET("/sessions/:id/profile", s.handleVolumeProfile)

	api.POST("/sessions/:id/orders", s.handleOrderOpen)
	api.GET("/sessions/:id/positions", s.handlePositions)
	api.POST("/sessions/:id/positions/:pid/close", s.handlePositionClose)
	api.GET("/sessions/:id/trades", s.handleTrades)
	api.GET("/sessions/:id/stats", s.handleStats)

	api.POST("/sizing", s.handleSizing)
}

func (s *HTTPServer) session(c *gin.Context) (*session.Session, bool) {
	sess, err := s.sessions.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func (s *HTTPServer) handleScenarioList(c *gin.Context) {
	list := s.library.List()
	out := make([]gin.H, 0, len(list))
	for _, sc := range list {
		out = append(out, gin.H{
			"id":              sc.ID,
			"symbol":          sc.Symbol,
			"chart_timeframe": sc.ChartTimeframe,
			"bar_count":       len(sc.Bars),
			"decision_index":  sc.DecisionPoint.Index,
		})
	}
	c.JSON(http.StatusOK, gin.H{"scenarios": out})
}

func (s *HTTPServer) handleScenarioDetail(c *gin.Context) {
	sc, ok := s.library.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}
	// 详情不泄露正确答案与决策点之后的 K 线
	cut := sc.DecisionPoint.Index + 1
	c.JSON(http.StatusOK, gin.H{
		"id":              sc.ID,
		"symbol":          sc.Symbol,
		"chart_timeframe": sc.ChartTimeframe,
		"bar_count":       len(sc.Bars),
		"decision_index":  sc.DecisionPoint.Index,
		"key_levels":      sc.KeyLevels,
		"preview_bars":    sc.Bars[:cut],
	})
}

func (s *HTTPServer) handleCourseList(c *gin.Context) {
	if s.courses == nil {
		c.JSON(http.StatusOK, gin.H{"courses": gin.H{}})
		return
	}
	snap := s.courses.Snapshot()
	c.JSON(http.StatusOK, gin.H{"courses": snap.Courses, "version": snap.Version})
}

func (s *HTTPServer) handleHistory(c *gin.Context) {
	if s.results == nil {
		c.JSON(http.StatusOK, gin.H{"sessions": []gin.H{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := s.results.ListRecentSessions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

func (s *HTTPServer) handleSessionCreate(c *gin.Context) {
	var req struct {
		ScenarioID string  `json:"scenario_id" binding:"required"`
		StartIndex *int    `json:"start_index"`
		Speed      float64 `json:"speed"`
		Balance    float64 `json:"balance"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sc, ok := s.library.Get(req.ScenarioID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "scenario not found"})
		return
	}
	start := defaultStartIndex(sc)
	if req.StartIndex != nil {
		start = *req.StartIndex
	}
	speed := req.Speed
	if speed <= 0 {
		speed = s.cfg.DefaultSpeed
	}
	balance := req.Balance
	if balance <= 0 {
		balance = s.cfg.InitialBalance
	}
	sess, err := session.New(session.Options{
		Scenario:       sc,
		InitialBalance: balance,
		BaseInterval:   time.Duration(s.cfg.BaseIntervalMs) * time.Millisecond,
		Speed:          speed,
		StartIndex:     start,
		Indicator:      s.indCfg,
		Results:        s.results,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.sessions.Add(sess)
	c.JSON(http.StatusCreated, gin.H{
		"session_id": sess.ID(),
		"replay":     sess.Controller().Snapshot(),
		"account":    sess.Account().Snapshot(),
	})
}

// defaultStartIndex 默认从决策点前约三分之一的历史开始，保证有图可读。
func defaultStartIndex(sc *market.Scenario) int {
	start := sc.DecisionPoint.Index / 3
	if start >= len(sc.Bars) {
		start = 0
	}
	return start
}

func (s *HTTPServer) handleSessionList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.IDs()})
}

func (s *HTTPServer) handleSessionState(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	resp := gin.H{
		"session_id": sess.ID(),
		"scenario":   sess.Scenario().ID,
		"replay":     sess.Controller().Snapshot(),
		"account":    sess.Account().Snapshot(),
	}
	if eval, ok := sess.Evaluation(); ok {
		resp["evaluation"] = eval
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleSessionDelete(c *gin.Context) {
	if err := s.sessions.Remove(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *HTTPServer) handlePlay(c *gin.Context) {
	s.transition(c, func(sess *session.Session) error { return sess.Controller().Play() })
}

func (s *HTTPServer) handlePause(c *gin.Context) {
	s.transition(c, func(sess *session.Session) error { return sess.Controller().Pause() })
}

func (s *HTTPServer) handleStep(c *gin.Context) {
	s.transition(c, func(sess *session.Session) error { return sess.Controller().StepForward() })
}

func (s *HTTPServer) handleStepBack(c *gin.Context) {
	s.transition(c, func(sess *session.Session) error { return sess.Controller().StepBack() })
}

func (s *HTTPServer) handleReset(c *gin.Context) {
	s.transition(c, func(sess *session.Session) error {
		sess.Controller().Reset()
		return nil
	})
}

// transition 统一处理回放状态迁移：非法迁移一律 409。
func (s *HTTPServer) transition(c *gin.Context, fn func(*session.Session) error) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, replay.ErrInvalidTransition) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "replay": sess.Controller().Snapshot()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"replay": sess.Controller().Snapshot()})
}

func (s *HTTPServer) handleSpeed(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Speed float64 `json:"speed" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess.Controller().SetSpeed(req.Speed)
	c.JSON(http.StatusOK, gin.H{"speed": sess.Controller().Speed()})
}

func (s *HTTPServer) handleDecision(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := sess.SubmitDecision(req.Action)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, session.ErrDecisionNotPending) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": res, "replay": sess.Controller().Snapshot()})
}

func (s *HTTPServer) handleReveal(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	action, err := sess.RevealAnswer()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"correct_action": action, "replay": sess.Controller().Snapshot()})
}

func (s *HTTPServer) handleBars(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	bars := sess.VisibleBars()
	if tf := c.Query("timeframe"); tf != "" {
		target, err := market.ParseTimeframe(tf)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		bars = market.Aggregate(bars, target)
	}
	c.JSON(http.StatusOK, gin.H{"bars": bars, "count": len(bars)})
}

func (s *HTTPServer) handleIndicators(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"indicators": sess.Indicators()})
}

func (s *HTTPServer) handleReport(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	rep, err := sess.ContextReport()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": rep})
}

func (s *HTTPServer) handleVolumeProfile(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	buckets := s.profileBuckets
	if raw := c.Query("buckets"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("非法的 buckets 参数: %q", raw)})
			return
		}
		buckets = n
	}
	profile := indicator.ComputeVolumeProfile(sess.VisibleBars(), buckets)
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (s *HTTPServer) handleOrderOpen(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req struct {
		Side       string  `json:"side" binding:"required"`
		Quantity   int64   `json:"quantity" binding:"required"`
		Price      float64 `json:"price" binding:"required"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pos, err := sess.OpenPosition(paper.OrderRequest{
		Symbol:     sess.Scenario().Symbol,
		Side:       paper.Side(req.Side),
		Quantity:   req.Quantity,
		Price:      req.Price,
		StopLoss:   req.StopLoss,
		TakeProfit: req.TakeProfit,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, paper.ErrInsufficientBuyingPower) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"position": pos, "account": sess.Account().Snapshot()})
}

func (s *HTTPServer) handlePositions(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"positions": sess.Account().OpenPositions(),
		"account":   sess.Account().Snapshot(),
	})
}

func (s *HTTPServer) handlePositionClose(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	trade, err := sess.ClosePosition(c.Param("pid"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trade": trade, "account": sess.Account().Snapshot()})
}

func (s *HTTPServer) handleTrades(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": sess.Account().Trades()})
}

func (s *HTTPServer) handleStats(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": sess.Account().Stats()})
}

func (s *HTTPServer) handleSizing(c *gin.Context) {
	var req struct {
		Balance     float64 `json:"balance"`
		RiskPercent float64 `json:"risk_percent"`
		EntryPrice  float64 `json:"entry_price" binding:"required"`
		StopLoss    float64 `json:"stop_loss"`
		TakeProfit  float64 `json:"take_profit"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Balance <= 0 {
		req.Balance = s.cfg.InitialBalance
	}
	if req.RiskPercent <= 0 {
		req.RiskPercent = s.cfg.DefaultRiskPct
	}
	size := paper.CalculatePositionSize(req.Balance, req.RiskPercent, req.EntryPrice, req.StopLoss)
	resp := gin.H{"size": size}
	if req.TakeProfit > 0 {
		resp["reward_risk"] = paper.RewardRiskRatio(req.EntryPrice, req.TakeProfit, req.StopLoss)
	}
	c.JSON(http.StatusOK, resp)
}

// Start 启动 HTTP 服务并在 ctx 取消时优雅退出。
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Router 暴露给测试使用。
func (s *HTTPServer) Router() http.Handler {
	return s.router
}
