package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/covidroom/internal/config"
	"github.com/stwalsh4118/covidroom/internal/database"
	"github.com/stwalsh4118/covidroom/internal/handlers"
	"github.com/stwalsh4118/covidroom/internal/logger"
	"github.com/stwalsh4118/covidroom/internal/metrics"
	"github.com/stwalsh4118/covidroom/internal/middleware"
	"github.com/stwalsh4118/covidroom/internal/models"
	"github.com/stwalsh4118/covidroom/internal/repository"
	"github.com/stwalsh4118/covidroom/internal/services"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from environment variables and CONFIG_FILE
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithLevel(cfg.Server.Env, cfg.Server.LogLevel)
	log.Info("Starting COVID room API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"engine":      cfg.Engine.Driver,
	})

	// Root context for background work; cancelled on shutdown
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	engine, err := database.Open(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to open query engine", err, map[string]interface{}{
			"driver": cfg.Engine.Driver,
		})
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Error("Failed to close query engine", err, nil)
		}
	}()

	log.Info("Query engine ready", map[string]interface{}{
		"driver":        engine.Dialect(),
		"query_timeout": cfg.Engine.QueryTimeout.String(),
		"max_rows":      cfg.Engine.MaxRows,
	})

	var m *metrics.Manager
	if cfg.Metrics.Enabled {
		m = metrics.NewManager(true)
	}

	// Initialize repository and service layers
	room := services.BuildRoomConfig(cfg)
	repo := repository.NewCovidRepository(engine, repository.DefaultRegistry(config.CovidYears))

	sourceService := services.NewDataSourceService(engine, room.DataSources, services.DataSourceOptions{
		Concurrency:  cfg.Data.LoadConcurrency,
		FetchTimeout: cfg.Data.FetchTimeout,
	}, log, m)
	featureService := services.NewFeatureService(cfg.Data.StatesGeoJSON, cfg.Data.FetchTimeout, log, m)
	statsService := services.NewStatsService(repo, log)
	chartService := services.NewChartService(repo, config.CovidYears, cfg.Engine.QueryTimeout, log, m)
	queryService := services.NewQueryService(engine, services.QueryOptions{
		Timeout: cfg.Engine.QueryTimeout,
		MaxRows: cfg.Engine.MaxRows,
	}, log, m)
	mapService := services.NewMapService(featureService, statsService, services.MapOptions{
		FillColor:  cfg.Map.FillColor,
		Radius:     cfg.Map.Radius,
		PickRadius: cfg.Map.PickRadius,
	}, log)

	mapLog := log.WithComponent("map")
	mapService.OnClick(func(in models.Interaction) {
		mapLog.Info("State clicked", map[string]interface{}{
			"name":      in.Name,
			"longitude": in.Longitude,
			"latitude":  in.Latitude,
		})
	})

	roomService, err := services.NewRoomService(room, sourceService, featureService, chartService, statsService, log)
	if err != nil {
		log.Fatal("Invalid room configuration", err, nil)
	}

	// Load data in the background; endpoints answer DATA_NOT_READY meanwhile
	go func() {
		if err := roomService.Start(ctx); err != nil {
			log.Error("Room started with load failures", err, nil)
			return
		}
		log.Info("All data sources loaded", nil)
	}()

	if cfg.Data.Watch {
		watcher, err := services.NewSourceWatcher(sourceService, log)
		if err != nil {
			log.Fatal("Failed to create data source watcher", err, nil)
		}
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Error("Data source watcher stopped", err, nil)
			}
		}()
	}

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Middleware order: RequestID -> Logger -> Recovery -> Metrics -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log, "/health", "/health/ready", cfg.Metrics.Path))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(engine, chartService, cfg.Server.Env, engine.Dialect())
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)

	if m != nil {
		router.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	// Initialize handlers
	roomHandler := handlers.NewRoomHandler(roomService)
	statesHandler := handlers.NewStatesHandler(featureService)
	mapHandler := handlers.NewMapHandler(mapService)
	chartHandler := handlers.NewChartHandler(chartService)
	queryHandler := handlers.NewQueryHandler(queryService)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/info", healthHandler.Info)

		v1.GET("/room", roomHandler.Get)
		v1.POST("/room/sources/:table/reload", roomHandler.Reload)

		v1.GET("/states", statesHandler.List)

		mapGroup := v1.Group("/map")
		{
			mapGroup.GET("/layer", mapHandler.Layer)
			mapGroup.POST("/hover", mapHandler.Hover)
			mapGroup.DELETE("/hover", mapHandler.Leave)
			mapGroup.POST("/select", mapHandler.Select)
			mapGroup.DELETE("/select", mapHandler.ClosePopup)
			mapGroup.GET("/interaction", mapHandler.Interaction)
		}

		charts := v1.Group("/charts")
		{
			charts.GET("", chartHandler.Charts)
			charts.GET("/:id", chartHandler.Query)
		}

		query := v1.Group("/query")
		{
			query.POST("", queryHandler.Execute)
			query.GET("/history", queryHandler.History)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
