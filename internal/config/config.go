package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
	} `mapstructure:"database"`

	JWT struct {
		Secret          string `mapstructure:"secret"`
		ExpirationHours int    `mapstructure:"expiration_hours"`
		Issuer          string `mapstructure:"issuer"`
	} `mapstructure:"jwt"`

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
	} `mapstructure:"redis"`

	Dialer struct {
		APIKey string `mapstructure:"api_key"` // empty disables the check
	} `mapstructure:"dialer"`

	Calendar struct {
		Enabled      bool   `mapstructure:"enabled"`
		CalendarID   string `mapstructure:"calendar_id"`
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
		RefreshToken string `mapstructure:"refresh_token"`
	} `mapstructure:"calendar"`

	SMTP struct {
		Enabled  bool   `mapstructure:"enabled"`
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		From     string `mapstructure:"from"`
	} `mapstructure:"smtp"`

	Audit struct {
		Enabled         bool          `mapstructure:"enabled"`
		SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
		SheetName       string        `mapstructure:"sheet_name"`
		CredentialsFile string        `mapstructure:"credentials_file"`
		WritesPerMinute int           `mapstructure:"writes_per_minute"`
		MinInterval     time.Duration `mapstructure:"min_interval"`
		MaxAttempts     int           `mapstructure:"max_attempts"`
	} `mapstructure:"audit"`

	Callbacks struct {
		DueWindow time.Duration `mapstructure:"due_window"`
	} `mapstructure:"callbacks"`

	Outbox struct {
		PollInterval time.Duration `mapstructure:"poll_interval"`
		BatchSize    int           `mapstructure:"batch_size"`
		Lease        time.Duration `mapstructure:"lease"`
	} `mapstructure:"outbox"`

	Retention struct {
		SoftDeleteTTL time.Duration `mapstructure:"soft_delete_ttl"`
	} `mapstructure:"retention"`

	R2 struct {
		Endpoint  string `mapstructure:"endpoint"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
		Bucket    string `mapstructure:"bucket"`
		Region    string `mapstructure:"region"`
	} `mapstructure:"r2"`
}

func Load() *Config {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")

	// Auto bind environment variables
	v.AutomaticEnv()

	// Set sensible defaults (binary works without config file)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Authorization", "Content-Type", "X-API-Key", "X-Request-ID"})
	v.SetDefault("jwt.expiration_hours", 24)
	v.SetDefault("jwt.issuer", "leads-backend")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "leads_db")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("calendar.calendar_id", "primary")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("audit.sheet_name", "Leads")
	v.SetDefault("audit.writes_per_minute", 50)
	v.SetDefault("audit.min_interval", 1200*time.Millisecond)
	v.SetDefault("audit.max_attempts", 3)
	v.SetDefault("callbacks.due_window", 15*time.Minute)
	v.SetDefault("outbox.poll_interval", 10*time.Second)
	v.SetDefault("outbox.batch_size", 20)
	v.SetDefault("outbox.lease", 2*time.Minute)
	v.SetDefault("retention.soft_delete_ttl", 30*24*time.Hour)
	v.SetDefault("r2.region", "auto")

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Printf("[Config] No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.Fatalf("config unmarshal error: %v", err)
	}

	applyEnv(&cfg)

	if cfg.JWT.Secret == "" {
		log.Fatal("JWT_SECRET not set in environment or config")
	}

	return &cfg
}

// applyEnv lets plain environment variables override the file, the way the
// deployment manifests inject secrets.
func applyEnv(cfg *Config) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	if cfg.JWT.Secret == "" || cfg.JWT.Secret == "${JWT_SECRET}" {
		cfg.JWT.Secret = os.Getenv("JWT_SECRET")
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	if key := os.Getenv("DIALER_API_KEY"); key != "" {
		cfg.Dialer.APIKey = key
	}

	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.Calendar.ClientSecret = secret
	}
	if token := os.Getenv("GOOGLE_REFRESH_TOKEN"); token != "" {
		cfg.Calendar.RefreshToken = token
	}

	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		cfg.SMTP.Password = pass
	}

	if key := os.Getenv("R2_ACCESS_KEY"); key != "" {
		cfg.R2.AccessKey = key
	}
	if secret := os.Getenv("R2_SECRET_KEY"); secret != "" {
		cfg.R2.SecretKey = secret
	}
}

// DatabaseURL builds the pgx connection string
func (c *Config) DatabaseURL() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password + "@" +
		c.Database.Host + ":" + strconv.Itoa(c.Database.Port) + "/" + c.Database.Name + "?sslmode=disable"
}
