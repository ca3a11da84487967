// Package api — административный REST API сервера механики пороха.
// Все обращения к миру и механике выполняются на потоке игровых часов
// через app.Host.Do.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"github.com/annel0/gunpowder/internal/app"
	"github.com/annel0/gunpowder/internal/eventbus"
	"github.com/annel0/gunpowder/internal/fuse"
	"github.com/annel0/gunpowder/internal/logging"
	"github.com/annel0/gunpowder/internal/middleware"
	"github.com/annel0/gunpowder/internal/scheduler"
	"github.com/annel0/gunpowder/internal/territory"
	"github.com/annel0/gunpowder/internal/vec"
	"github.com/annel0/gunpowder/internal/world"
	"github.com/annel0/gunpowder/internal/world/block"
)

// RestServer представляет REST API сервер
type RestServer struct {
	router     *gin.Engine
	host       *app.Host
	port       string
	service    string
	adminToken string
	metrics    *ServerMetrics
	log        *logging.Logger
	httpServer *http.Server
}

// Config содержит конфигурацию для REST сервера
type Config struct {
	Port        string    // порт для запуска сервера, например ":8088"
	Host        *app.Host // собранный сервер механики
	ServiceName string    // имя сервиса для трассировки и метрик
	AdminToken  string    // пусто — изменяющие запросы без авторизации
}

// NewRestServer создает новый REST API сервер
func NewRestServer(config Config) *RestServer {
	if config.Port == "" {
		config.Port = ":8088"
	}
	if config.ServiceName == "" {
		config.ServiceName = "gunpowder"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	rs := &RestServer{
		router:     router,
		host:       config.Host,
		port:       config.Port,
		service:    config.ServiceName,
		adminToken: config.AdminToken,
		metrics:    NewServerMetrics(),
		log:        logging.GetServerLogger(),
	}

	// === Observability middleware ===
	router.Use(otelgin.Middleware(config.ServiceName))
	router.Use(middleware.NewRequestLogger(rs.log).Handler())

	promMw := middleware.NewPrometheusMiddleware("rest_api", config.Host.Registry)
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router, config.Host.Registry)

	rs.setupRoutes()
	return rs
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	// Middleware для CORS
	rs.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	rs.router.GET("/health", rs.handleHealth)

	api := rs.router.Group("/api")
	{
		api.GET("/stats", rs.handleStats)
		api.GET("/fuses", rs.handleListFuses)
		api.GET("/claims", rs.handleListClaims)
		api.GET("/inventory/:actor", rs.handleGetInventory)
	}

	admin := api.Group("/")
	admin.Use(rs.adminMiddleware())
	{
		admin.POST("/fuses", rs.handlePlaceFuse)
		admin.DELETE("/fuses", rs.handleBreakFuse)
		admin.POST("/fuses/ignite", rs.handleIgnite)
		admin.PUT("/fuses/enabled", rs.handleSetEnabled)
		admin.POST("/explosions", rs.handleExplode)
		admin.POST("/claims", rs.handleAddClaim)
		admin.DELETE("/claims/:id", rs.handleRemoveClaim)
		admin.POST("/inventory", rs.handleGiveItems)
	}
}

// Handler возвращает http.Handler роутера (для тестов и встраивания).
func (rs *RestServer) Handler() http.Handler { return rs.router }

// Start запускает REST сервер в отдельной горутине
func (rs *RestServer) Start() {
	rs.httpServer = &http.Server{
		Addr:              rs.port,
		Handler:           rs.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := rs.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rs.log.Error("❌ Ошибка REST API сервера: %v", err)
		}
	}()

	rs.log.Info("✅ REST API сервер запущен на http://localhost%s", rs.port)
	rs.log.Info("📋 Доступные эндпоинты:")
	rs.log.Info("   GET  /health              - Проверка состояния")
	rs.log.Info("   GET  /api/fuses           - Узлы пороховой дорожки")
	rs.log.Info("   POST /api/fuses/ignite    - Поджечь дорожку")
	rs.log.Info("   PUT  /api/fuses/enabled   - Включить/выключить механику")
	rs.log.Info("   GET  /metrics             - Prometheus")
}

// Stop останавливает REST сервер с ожиданием активных запросов.
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	rs.log.Info("🛑 Остановка REST API сервера...")
	return rs.httpServer.Shutdown(ctx)
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Reason  string      `json:"reason,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// adminMiddleware проверяет токен администратора в заголовке Authorization
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rs.adminToken == "" {
			c.Next()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Message: "Отсутствует токен авторизации",
			})
			return
		}
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(rs.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Message: "Недостаточно прав доступа",
			})
			return
		}
		c.Next()
	}
}

// onClock выполняет fn на потоке часов. При недоступности цикла сам пишет
// ответ 503 и возвращает false.
func (rs *RestServer) onClock(c *gin.Context, fn func()) bool {
	if err := rs.host.Do(c.Request.Context(), fn); err != nil {
		c.JSON(http.StatusServiceUnavailable, GenericResponse{
			Message: "Игровой цикл недоступен: " + err.Error(),
		})
		return false
	}
	return true
}

// fail переводит ошибку механики в HTTP-ответ.
func (rs *RestServer) fail(c *gin.Context, err error) {
	if reason, ok := fuse.IsRejected(err); ok {
		c.JSON(http.StatusUnprocessableEntity, GenericResponse{
			Message: "Порох нельзя уложить",
			Reason:  string(reason),
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, fuse.ErrNotFuse):
		status = http.StatusNotFound
	case errors.Is(err, fuse.ErrAlreadyBurning), errors.Is(err, territory.ErrOverlap):
		status = http.StatusConflict
	case errors.Is(err, fuse.ErrDisabled), errors.Is(err, scheduler.ErrClosed):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		rs.log.Error("❌ %s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, GenericResponse{Message: err.Error()})
}

// CellRequest — координаты клетки. Пустой world — мир сервера.
type CellRequest struct {
	World string `json:"world"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
	Z     int    `json:"z"`
}

func (r CellRequest) cell(defaultWorld string) vec.Cell {
	if r.World == "" {
		r.World = defaultWorld
	}
	return vec.At(r.World, r.X, r.Y, r.Z)
}

// ActorRequest — действие игрока над клеткой.
type ActorRequest struct {
	CellRequest
	Actor    string `json:"actor" binding:"required"`
	Creative bool   `json:"creative"`
}

// handleHealth возвращает состояние сервера
func (rs *RestServer) handleHealth(c *gin.Context) {
	resp := gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
		"tick":   rs.host.Scheduler.CurrentTick(),
		"server": rs.metrics.Snapshot(),
	}
	c.JSON(http.StatusOK, resp)
}

// handleStats возвращает статистику механики и шины событий
func (rs *RestServer) handleStats(c *gin.Context) {
	var stats map[string]interface{}
	ok := rs.onClock(c, func() {
		stats = map[string]interface{}{
			"enabled":       rs.host.Trail.Enabled(),
			"fuses":         rs.host.Trail.Len(),
			"active_runs":   rs.host.Trail.ActiveRuns(),
			"charges":       len(rs.host.World.Charges()),
			"explosions":    rs.host.World.Explosions(),
			"loaded_chunks": rs.host.World.LoadedChunks(),
			"tick":          rs.host.Scheduler.CurrentTick(),
			"tasks":         rs.host.Scheduler.Pending(),
		}
	})
	if !ok {
		return
	}
	stats["eventbus"] = rs.host.Bus.Metrics()

	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Статистика получена",
		Data:    stats,
	})
}

func (rs *RestServer) handleListFuses(c *gin.Context) {
	var cells []vec.Cell
	if !rs.onClock(c, func() { cells = rs.host.Trail.Nodes() }) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список узлов получен",
		Data:    gin.H{"fuses": cells, "total": len(cells)},
	})
}

func (rs *RestServer) handlePlaceFuse(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	cell := req.cell(rs.host.World.ID())

	var err error
	if !rs.onClock(c, func() {
		_, err = rs.host.Trail.Place(fuse.Actor{ID: req.Actor, Creative: req.Creative}, cell)
	}) {
		return
	}
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Порох уложен", Data: cell})
}

func (rs *RestServer) handleBreakFuse(c *gin.Context) {
	var req ActorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	cell := req.cell(rs.host.World.ID())

	var (
		removed bool
		err     error
	)
	if !rs.onClock(c, func() {
		removed, err = rs.host.Trail.Break(fuse.Actor{ID: req.Actor, Creative: req.Creative}, cell)
	}) {
		return
	}
	if err != nil && !removed {
		rs.fail(c, err)
		return
	}
	if err != nil {
		rs.log.Warn("⚠️ Узел %s снят, но порох не возвращён: %v", cell, err)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Готово", Data: gin.H{"removed": removed}})
}

func (rs *RestServer) handleIgnite(c *gin.Context) {
	var req CellRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	cell := req.cell(rs.host.World.ID())
	// Горение переживает запрос: берём только родительский спан
	ctx := trace.ContextWithSpanContext(context.Background(), trace.SpanContextFromContext(c.Request.Context()))

	var (
		runID uint64
		err   error
	)
	if !rs.onClock(c, func() {
		var run *fuse.Run
		if run, err = rs.host.Trail.Ignite(ctx, cell); err == nil {
			runID = run.ID
		}
	}) {
		return
	}
	if err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{
		Success: true,
		Message: "Дорожка подожжена",
		Data:    gin.H{"run_id": runID, "start": cell},
	})
}

// EnabledRequest — переключатель механики.
type EnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (rs *RestServer) handleSetEnabled(c *gin.Context) {
	var req EnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	if !rs.onClock(c, func() { rs.host.Trail.SetEnabled(*req.Enabled) }) {
		return
	}

	payload, _ := json.Marshal(gin.H{"enabled": *req.Enabled})
	ev := &eventbus.Envelope{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Source:    rs.service,
		EventType: eventbus.EventFuseToggled,
		Version:   1,
		Tenant:    rs.host.World.ID(),
		Priority:  7,
		Payload:   payload,
	}
	if err := eventbus.Publish(c.Request.Context(), ev); err != nil {
		rs.log.Warn("⚠️ Событие %s не опубликовано: %v", ev.EventType, err)
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Готово", Data: gin.H{"enabled": *req.Enabled}})
}

// ExplosionRequest — взрыв в клетке.
type ExplosionRequest struct {
	CellRequest
	Radius float64 `json:"radius"`
}

func (rs *RestServer) handleExplode(c *gin.Context) {
	var req ExplosionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	if req.Radius < 0 || req.Radius > world.MaxExplosionRadius {
		c.JSON(http.StatusBadRequest, GenericResponse{
			Message: fmt.Sprintf("Радиус взрыва должен быть в пределах [0, %g]", world.MaxExplosionRadius),
		})
		return
	}
	center := req.cell(rs.host.World.ID())

	var destroyed []vec.Cell
	if !rs.onClock(c, func() {
		radius := req.Radius
		if radius == 0 {
			radius = rs.host.Config().Gunpowder.ExplosionRadius
		}
		destroyed = rs.host.World.Explode(center, radius)
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Взрыв произведён",
		Data:    gin.H{"destroyed": len(destroyed)},
	})
}

func (rs *RestServer) handleListClaims(c *gin.Context) {
	claims := rs.host.Claims.List()
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Список приватов получен",
		Data:    gin.H{"claims": claims, "total": len(claims)},
	})
}

func (rs *RestServer) handleAddClaim(c *gin.Context) {
	var claim territory.Claim
	if err := c.ShouldBindJSON(&claim); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат привата: " + err.Error()})
		return
	}
	if claim.World == "" {
		claim.World = rs.host.World.ID()
	}
	if err := rs.host.Claims.Add(claim); err != nil {
		if errors.Is(err, territory.ErrOverlap) {
			rs.fail(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, GenericResponse{Message: err.Error()})
		return
	}
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Приват добавлен", Data: claim})
}

func (rs *RestServer) handleRemoveClaim(c *gin.Context) {
	if !rs.host.Claims.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, GenericResponse{Message: "Приват не найден"})
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Приват удалён"})
}

// ItemsRequest — выдача пороха игроку.
type ItemsRequest struct {
	Actor string `json:"actor" binding:"required"`
	Count int    `json:"count" binding:"required,min=1"`
}

func (rs *RestServer) handleGiveItems(c *gin.Context) {
	var req ItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Message: "Неверный формат запроса: " + err.Error()})
		return
	}
	if err := rs.host.World.GiveItem(req.Actor, block.ItemGunpowder, req.Count); err != nil {
		rs.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Порох выдан",
		Data:    rs.host.World.Inventory(req.Actor),
	})
}

func (rs *RestServer) handleGetInventory(c *gin.Context) {
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: "Инвентарь получен",
		Data:    rs.host.World.Inventory(c.Param("actor")),
	})
}
