package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		AppName          string
		Env              string // DEV (local; default), TEST, QA, PROD
		Build            string
		Debug            bool
		TestMode         bool
		SecretKey        string
		WorkDir          string
		DefaultFromEmail string
		RollbarToken     string
		SendgridAPIKey   string

		Server    ServerConfig
		Database  DatabaseConfig
		Storage   StorageConfig
		Upload    UploadConfig
		Catalog   CatalogConfig
		Analytics AnalyticsConfig
		Scheduler SchedulerConfig
	}

	ServerConfig struct {
		Host               string
		Addr               string
		DebugHost          string
		ShutdownTimeout    time.Duration
		JWTExpirationDelta time.Duration
		DisableReqLogs     bool
	}

	DatabaseConfig struct {
		Engine        string // postgres | inmem
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	StorageConfig struct {
		Driver        string // s3 | memory
		Bucket        string
		Region        string
		Endpoint      string // S3 compatible endpoint (minio...), empty for AWS
		KeyPrefix     string
		PublicBaseURL string
	}

	UploadConfig struct {
		NotifyByEmail bool
		RetainFor     time.Duration // how long finished batches stay queryable
	}

	CatalogConfig struct {
		// FetchConcurrency bounds simultaneous per-collection fetches. 1 fetches sequentially.
		FetchConcurrency int
	}

	AnalyticsConfig struct {
		FallbackEnabled bool
		FallbackSeed    int64 // 0 seeds from the clock
	}

	SchedulerConfig struct {
		Enabled     bool
		PruneSpec   string
		RefreshSpec string
	}
)

func (c DatabaseConfig) Address() string {
	return c.Host + ":" + c.Port
}

// NewConfig reads the configuration from defaults, the `config/.env.<env>` file and the environment.
func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Orbit")
	v.SetDefault("build", "develop")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("secretKey", "9x$k2m@orbit-dev-secret-key!w7p#q0z&l1r8t4u6v3y5")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")

	v.SetDefault("serverHost", "localhost")
	v.SetDefault("serverAddr", ":8000")
	v.SetDefault("serverDebugHost", ":4000")
	v.SetDefault("serverShutdownTimeout", 5*time.Second)
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("disableReqLogs", false)

	v.SetDefault("dbEngine", "inmem")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbName", "orbit")
	v.SetDefault("dbUser", "orbit")
	v.SetDefault("dbPassword", "orbit")
	v.SetDefault("dbAdminUser", "postgres")
	v.SetDefault("dbAdminPassword", "postgres")
	v.SetDefault("dbDisableTLS", true)

	v.SetDefault("storageDriver", "memory")
	v.SetDefault("storageBucket", "orbit-materials")
	v.SetDefault("storageRegion", "us-east-1")
	v.SetDefault("storageEndpoint", "")
	v.SetDefault("storageKeyPrefix", "materials")
	v.SetDefault("storagePublicBaseURL", "")

	v.SetDefault("uploadNotifyByEmail", false)
	v.SetDefault("uploadRetainFor", time.Hour)
	v.SetDefault("catalogFetchConcurrency", 1)
	v.SetDefault("analyticsFallbackEnabled", true)
	v.SetDefault("analyticsFallbackSeed", int64(0))

	v.SetDefault("schedulerEnabled", true)
	v.SetDefault("schedulerPruneSpec", "@every 10m")
	v.SetDefault("schedulerRefreshSpec", "@every 5m")

	env := strings.ToUpper(os.Getenv("ENV"))
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	workDir := Getwd()
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:          v.GetString("appName"),
		Env:              env,
		Build:            v.GetString("build"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		SecretKey:        v.GetString("secretKey"),
		WorkDir:          workDir,
		DefaultFromEmail: v.GetString("defaultFromEmail"),
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridAPIKey:   v.GetString("sendgridApiKey"),
		Server: ServerConfig{
			Host:               v.GetString("serverHost"),
			Addr:               v.GetString("serverAddr"),
			DebugHost:          v.GetString("serverDebugHost"),
			ShutdownTimeout:    v.GetDuration("serverShutdownTimeout"),
			JWTExpirationDelta: v.GetDuration("jwtExpirationDelta"),
			DisableReqLogs:     v.GetBool("disableReqLogs"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		Storage: StorageConfig{
			Driver:        v.GetString("storageDriver"),
			Bucket:        v.GetString("storageBucket"),
			Region:        v.GetString("storageRegion"),
			Endpoint:      v.GetString("storageEndpoint"),
			KeyPrefix:     v.GetString("storageKeyPrefix"),
			PublicBaseURL: v.GetString("storagePublicBaseURL"),
		},
		Upload: UploadConfig{
			NotifyByEmail: v.GetBool("uploadNotifyByEmail"),
			RetainFor:     v.GetDuration("uploadRetainFor"),
		},
		Catalog: CatalogConfig{
			FetchConcurrency: v.GetInt("catalogFetchConcurrency"),
		},
		Analytics: AnalyticsConfig{
			FallbackEnabled: v.GetBool("analyticsFallbackEnabled"),
			FallbackSeed:    v.GetInt64("analyticsFallbackSeed"),
		},
		Scheduler: SchedulerConfig{
			Enabled:     v.GetBool("schedulerEnabled"),
			PruneSpec:   v.GetString("schedulerPruneSpec"),
			RefreshSpec: v.GetString("schedulerRefreshSpec"),
		},
	}
	if conf.Catalog.FetchConcurrency < 1 {
		conf.Catalog.FetchConcurrency = 1
	}
	return conf
}

// NewTestConfig returns the configuration used by tests: in-memory storage, no request logs.
func NewTestConfig() *Config {
	return &Config{
		AppName:          "Orbit",
		Env:              "TEST",
		Build:            "test",
		TestMode:         true,
		SecretKey:        "test-secret-key",
		DefaultFromEmail: "noreply@orbit.test",
		Server: ServerConfig{
			Addr:               ":0",
			ShutdownTimeout:    time.Second,
			JWTExpirationDelta: time.Hour,
			DisableReqLogs:     true,
		},
		Database:  DatabaseConfig{Engine: "inmem"},
		Storage:   StorageConfig{Driver: "memory", Bucket: "test", KeyPrefix: "materials"},
		Upload:    UploadConfig{RetainFor: time.Hour},
		Catalog:   CatalogConfig{FetchConcurrency: 1},
		Analytics: AnalyticsConfig{FallbackEnabled: true, FallbackSeed: 42},
	}
}

func (c *Config) String() string {
	return fmt.Sprintf("%s[%s] build=%s db=%s", c.AppName, c.Env, c.Build, c.Database.Engine)
}
