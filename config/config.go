package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jinzhu/gorm"
	_ "github.com/jinzhu/gorm/dialects/postgres"
	log "github.com/sirupsen/logrus"
)

const (
	DEVELOPMENT = "development"
	STAGING     = "staging"
	PRODUCTION  = "production"

	StoreTypePostgres = "postgres"
	StoreTypeMemory   = "memory"
)

type DBConf struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// ActionCollaborators - Endpoints of the external delivery services
// invoked by the action handlers. An empty URL puts the handler in
// dry run on development.
type ActionCollaborators struct {
	EmailServiceURL        string `json:"email_service_url"`
	TaggingServiceURL      string `json:"tagging_service_url"`
	AssignmentServiceURL   string `json:"assignment_service_url"`
	TaskServiceURL         string `json:"task_service_url"`
	NotificationServiceURL string `json:"notification_service_url"`
	WebhookSecret          string `json:"webhook_secret"`
}

type Configuration struct {
	AppName             string              `json:"app_name"`
	Env                 string              `json:"env"`
	Port                int                 `json:"port"`
	APIToken            string              `json:"api_token"`
	StoreType           string              `json:"store_type"`
	DBInfo              DBConf              `json:"db"`
	RedisHost           string              `json:"redis_host"`
	RedisPort           int                 `json:"redis_port"`
	EngineShards        int                 `json:"engine_shards"`
	EngineQueueSize     int                 `json:"engine_queue_size"`
	MaxActionAttempts   int                 `json:"max_action_attempts"`
	ActionTimeoutSecs   int                 `json:"action_timeout_secs"`
	IdleScanIntervalMin int                 `json:"idle_scan_interval_min"`
	Collaborators       ActionCollaborators `json:"collaborators"`
}

type Services struct {
	Db             *gorm.DB
	cacheRedisPool *redis.Pool
}

var configuration *Configuration = nil
var services *Services = nil
var initiated bool = false

func initLogging() {
	// Log as JSON instead of the default ASCII formatter.
	log.SetFormatter(&log.JSONFormatter{})

	if IsDevelopment() {
		log.SetLevel(log.DebugLevel)
	}
}

func initServices() error {
	services = &Services{}

	if configuration.StoreType != StoreTypeMemory {
		db, err := gorm.Open("postgres", fmt.Sprintf("host=%s port=%d user=%s dbname=%s password=%s sslmode=disable",
			configuration.DBInfo.Host,
			configuration.DBInfo.Port,
			configuration.DBInfo.User,
			configuration.DBInfo.Name,
			configuration.DBInfo.Password))
		if err != nil {
			log.WithFields(log.Fields{"err": err}).Error("Failed Db Initialization")
			return err
		}
		// Connection Pooling and Logging.
		db.DB().SetMaxIdleConns(10)
		db.DB().SetMaxOpenConns(100)
		db.LogMode(IsDevelopment())

		services.Db = db
		log.Info("Db Service initialized")
	}

	if configuration.RedisHost != "" {
		services.cacheRedisPool = &redis.Pool{
			MaxIdle:     10,
			MaxActive:   100,
			IdleTimeout: 240 * time.Second,
			Dial: func() (redis.Conn, error) {
				return redis.Dial("tcp", fmt.Sprintf("%s:%d",
					configuration.RedisHost, configuration.RedisPort))
			},
		}
		log.Info("Redis Service initialized")
	}

	return nil
}

func applyDefaults(config *Configuration) {
	if config.StoreType == "" {
		config.StoreType = StoreTypePostgres
	}
	if config.EngineShards <= 0 {
		config.EngineShards = 8
	}
	if config.EngineQueueSize <= 0 {
		config.EngineQueueSize = 1024
	}
	if config.MaxActionAttempts <= 0 {
		config.MaxActionAttempts = 3
	}
	if config.ActionTimeoutSecs <= 0 {
		config.ActionTimeoutSecs = 30
	}
	if config.IdleScanIntervalMin <= 0 {
		config.IdleScanIntervalMin = 60
	}
}

func Init(config *Configuration) error {
	if initiated {
		return fmt.Errorf("config already initialized")
	}
	if config == nil {
		return fmt.Errorf("nil configuration")
	}

	applyDefaults(config)
	configuration = config

	initLogging()

	if err := initServices(); err != nil {
		return err
	}

	initiated = true
	return nil
}

func GetConfig() *Configuration {
	return configuration
}

func GetServices() *Services {
	return services
}

func GetCacheRedisConnection() redis.Conn {
	return services.cacheRedisPool.Get()
}

// IsCacheRedisEnabled - Redis is optional on development and tests; callers
// must check before taking a connection.
func IsCacheRedisEnabled() bool {
	return services != nil && services.cacheRedisPool != nil
}

func IsDevelopment() bool {
	return strings.Compare(configuration.Env, DEVELOPMENT) == 0
}
