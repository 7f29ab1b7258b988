package router

import (
	"time"

	"alquicaja/internal/config"
	"alquicaja/internal/handler"
	"alquicaja/internal/infra"
	"alquicaja/internal/middleware"
	"alquicaja/internal/repository"
	"alquicaja/internal/service"
	"alquicaja/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, ticketsCB *infra.CircuitBreaker) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	tarifasClient := infra.NewTarifasClient(cfg.TarifasURL)

	// ── Repositories ─────────────────────────────────────────────────────────
	cajaRepo := repository.NewCajaRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	dispatcher := worker.NewDispatcher(rdb)
	cajaSvc := service.NewCajaService(cajaRepo, dispatcher, cfg.PuntoDeVenta)
	cierreSvc := service.NewCierreService(cajaRepo, dispatcher)
	cambioSvc := service.NewCambioService(tarifasClient, cajaSvc)

	// ── Handlers ─────────────────────────────────────────────────────────────
	cajaH := handler.NewCajaHandler(cajaSvc, cambioSvc)
	cierresH := handler.NewCierresHandler(cierreSvc)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, ticketsCB))

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		caja := v1.Group("/caja")
		{
			// Daily operation — any till role
			operativa := middleware.RequireRole("cajero", "supervisor", "administrador")
			caja.POST("/abrir", operativa, cajaH.Abrir)
			caja.GET("/activa", operativa, cajaH.GetActiva)
			caja.POST("/movimiento", operativa, cajaH.RegistrarMovimiento)
			caja.PATCH("/movimiento/:id/metodo-pago", operativa, cajaH.CambiarMetodoPago)
			caja.GET("/movimientos", operativa, cajaH.ListarMovimientos)
			caja.GET("/resumen", operativa, cajaH.Resumen)
			caja.POST("/cambio-item", operativa, cajaH.CambiarItem)
			caja.POST("/cerrar", operativa, cierresH.Cerrar)

			// History and reversal — supervision only
			supervisa := middleware.RequireRole("supervisor", "administrador")
			caja.GET("/cierres", supervisa, cierresH.Listar)
			caja.DELETE("/cierres/:id", supervisa, cierresH.Revertir)
			caja.GET("/buscar", supervisa, cajaH.Buscar)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
