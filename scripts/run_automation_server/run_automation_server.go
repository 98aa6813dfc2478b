package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"crmhub/automation"
	C "crmhub/config"
	H "crmhub/handler"
	"crmhub/ingest"
	storePostgres "crmhub/model/store/postgres"
	"crmhub/task"
)

const appName = "automation_server"

func main() {
	env := flag.String("env", "development", "")
	port := flag.Int("port", 8089, "")
	apiToken := flag.String("api_token", "", "Shared token for the automation API")

	storeType := flag.String("store_type", C.StoreTypePostgres, "postgres or memory")
	dbHost := flag.String("db_host", "localhost", "")
	dbPort := flag.Int("db_port", 5432, "")
	dbUser := flag.String("db_user", "crmhub", "")
	dbName := flag.String("db_name", "crmhub", "")
	dbPass := flag.String("db_pass", "", "")

	redisHost := flag.String("redis_host", "", "")
	redisPort := flag.Int("redis_port", 6379, "")

	engineShards := flag.Int("engine_shards", 8, "")
	engineQueueSize := flag.Int("engine_queue_size", 1024, "")
	maxActionAttempts := flag.Int("max_action_attempts", 3, "")
	actionTimeoutSecs := flag.Int("action_timeout_secs", 30, "")
	idleScanIntervalMin := flag.Int("idle_scan_interval_min", 60, "")

	emailServiceURL := flag.String("email_service_url", "", "")
	taggingServiceURL := flag.String("tagging_service_url", "", "")
	assignmentServiceURL := flag.String("assignment_service_url", "", "")
	taskServiceURL := flag.String("task_service_url", "", "")
	notificationServiceURL := flag.String("notification_service_url", "", "")
	webhookSecret := flag.String("webhook_secret", "", "")

	flag.Parse()

	config := &C.Configuration{
		AppName:   appName,
		Env:       *env,
		Port:      *port,
		APIToken:  *apiToken,
		StoreType: *storeType,
		DBInfo: C.DBConf{
			Host:     *dbHost,
			Port:     *dbPort,
			User:     *dbUser,
			Name:     *dbName,
			Password: *dbPass,
		},
		RedisHost:           *redisHost,
		RedisPort:           *redisPort,
		EngineShards:        *engineShards,
		EngineQueueSize:     *engineQueueSize,
		MaxActionAttempts:   *maxActionAttempts,
		ActionTimeoutSecs:   *actionTimeoutSecs,
		IdleScanIntervalMin: *idleScanIntervalMin,
		Collaborators: C.ActionCollaborators{
			EmailServiceURL:        *emailServiceURL,
			TaggingServiceURL:      *taggingServiceURL,
			AssignmentServiceURL:   *assignmentServiceURL,
			TaskServiceURL:         *taskServiceURL,
			NotificationServiceURL: *notificationServiceURL,
			WebhookSecret:          *webhookSecret,
		},
	}

	if err := C.Init(config); err != nil {
		log.WithError(err).Fatal("Failed to initialize config and services.")
	}

	if config.StoreType == C.StoreTypePostgres && C.IsDevelopment() {
		if err := storePostgres.Migrate(); err != nil {
			log.WithError(err).Fatal("Failed to migrate tables.")
		}
	}

	registry := automation.NewDefaultRegistry(config.Collaborators)
	dispatcher := automation.NewDispatcher(registry)
	matcher := automation.NewMatcher()
	engine := automation.NewEngine(matcher, dispatcher,
		config.EngineShards, config.EngineQueueSize)
	ingestor := ingest.NewIngestor(engine)

	scanner, err := task.NewIdleScanner(engine)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize idle scanner.")
	}

	ctx, cancel := context.WithCancel(context.Background())
	engine.Start(ctx)
	go scanner.Run(ctx, time.Duration(config.IdleScanIntervalMin)*time.Minute)

	if !C.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	H.InitRoutes(r, ingestor)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Port),
		Handler: r,
	}

	go func() {
		log.WithField("port", config.Port).Info("Starting automation server.")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Server failed.")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down automation server.")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed.")
	}

	cancel()
	engine.Stop()
}
