package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config agrupa la configuración del proceso de sincronización (lectura vía Viper desde env y opcionalmente archivo).
type Config struct {
	App         AppConfig
	DB          DBConfig
	HTTP        HTTPConfig
	Scheduler   SchedulerConfig
	Forecast    ForecastConfig
	Marketplace MarketplaceConfig
	OAuth       OAuthConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Auth        AuthConfig
}

// AppConfig configuración general de la aplicación.
type AppConfig struct {
	Env      string // development, staging, production
	Name     string
	LogLevel string
}

// DBConfig configuración de PostgreSQL.
// Si DatabaseURL no está vacío, se usa como connection string completo (ej. DATABASE_URL de Supabase).
type DBConfig struct {
	DatabaseURL string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int
	ApplySchema bool // aplica migrations/*.sql al arrancar (entornos locales)
}

// ConnectionString devuelve el DSN a usar: DATABASE_URL si está definido, si no el construido con DSN().
func (c DBConfig) ConnectionString() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return c.DSN()
}

// DSN devuelve el connection string para PostgreSQL con URL encoding para caracteres especiales.
func (c DBConfig) DSN() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.DBName,
		RawQuery: fmt.Sprintf("sslmode=%s", c.SSLMode),
	}
	return u.String()
}

// HTTPConfig configuración del servidor HTTP de administración.
type HTTPConfig struct {
	Host string
	Port int
}

// Addr devuelve la dirección de escucha (host:port).
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SchedulerConfig cadencia de los ciclos de sincronización.
type SchedulerConfig struct {
	Cron            string        // expresión cron de 5 campos; por defecto cada hora en punto
	BootstrapDelay  time.Duration // primer ciclo tras el arranque; negativo lo desactiva
	Concurrency     int           // sellers en paralelo dentro de un ciclo (1 = secuencial)
	ShutdownTimeout time.Duration
}

// ForecastConfig parámetros del motor de pronóstico y de las alertas.
type ForecastConfig struct {
	HistoryDays         int
	MinPoints           int
	ConfidenceThreshold int
	AlertWindowDays     int
}

// MarketplaceConfig endpoints y política de reintentos de los clientes de marketplaces.
type MarketplaceConfig struct {
	WBBaseURL         string
	OzonBaseURL       string
	Timeout           time.Duration
	MaxRetries        int
	RetryDelay        time.Duration
	RequestsPerSecond float64 // 0 = sin límite
	SalesLookbackDays int
}

// OAuthConfig credenciales de aplicación para refrescar tokens de los sellers.
type OAuthConfig struct {
	WBURL            string
	WBClientID       string
	WBClientSecret   string
	RefreshThreshold time.Duration
}

// RedisConfig lease distribuido del ciclo. Addr vacío lo desactiva.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LockTTL  time.Duration
}

// Enabled indica si hay Redis configurado.
func (c RedisConfig) Enabled() bool { return c.Addr != "" }

// KafkaConfig entrega de alertas. Sin brokers se usa el notificador por log.
type KafkaConfig struct {
	Brokers     []string
	AlertsTopic string
}

// Enabled indica si hay brokers configurados.
func (c KafkaConfig) Enabled() bool { return len(c.Brokers) > 0 }

// AuthConfig JWT de los operadores de la API de administración.
// Secret vacío deja las rutas /admin sin autenticación (solo desarrollo).
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// Load lee la configuración desde variables de entorno (y opcionalmente desde archivo).
// Las env vars tienen prioridad. Nombres esperados: APP_ENV, DB_HOST, SYNC_CRON, WB_BASE_URL, etc.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // ignoramos error si no existe

	v.SetConfigName("config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      getString(v, "APP_ENV", "development"),
			Name:     getString(v, "APP_NAME", "stockout-sync"),
			LogLevel: getString(v, "LOG_LEVEL", "info"),
		},
		DB: DBConfig{
			DatabaseURL: getString(v, "DATABASE_URL", ""),
			Host:        getString(v, "DB_HOST", "localhost"),
			Port:        getInt(v, "DB_PORT", 5432),
			User:        getString(v, "DB_USER", "postgres"),
			Password:    getString(v, "DB_PASSWORD", ""),
			DBName:      getString(v, "DB_NAME", "stockout"),
			SSLMode:     getString(v, "DB_SSLMODE", "disable"),
			MaxConns:    getInt(v, "DB_MAX_CONNS", 10),
			ApplySchema: getBool(v, "DB_APPLY_SCHEMA", false),
		},
		HTTP: HTTPConfig{
			Host: getString(v, "HTTP_HOST", "0.0.0.0"),
			Port: getInt(v, "HTTP_PORT", 8080),
		},
		Scheduler: SchedulerConfig{
			Cron:            getString(v, "SYNC_CRON", "0 * * * *"),
			BootstrapDelay:  getDuration(v, "SYNC_BOOTSTRAP_DELAY", 10*time.Second),
			Concurrency:     getInt(v, "SYNC_CONCURRENCY", 1),
			ShutdownTimeout: getDuration(v, "SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Forecast: ForecastConfig{
			HistoryDays:         getInt(v, "FORECAST_HISTORY_DAYS", 30),
			MinPoints:           getInt(v, "FORECAST_MIN_POINTS", 7),
			ConfidenceThreshold: getInt(v, "FORECAST_CONFIDENCE_THRESHOLD", 70),
			AlertWindowDays:     getInt(v, "ALERT_WINDOW_DAYS", 7),
		},
		Marketplace: MarketplaceConfig{
			WBBaseURL:         getString(v, "WB_BASE_URL", "https://api.wildberries.ru/api/v3"),
			OzonBaseURL:       getString(v, "OZON_BASE_URL", "https://api-seller.ozon.ru"),
			Timeout:           getDuration(v, "MARKETPLACE_TIMEOUT", 30*time.Second),
			MaxRetries:        getInt(v, "MARKETPLACE_MAX_RETRIES", 3),
			RetryDelay:        getDuration(v, "MARKETPLACE_RETRY_DELAY", time.Second),
			RequestsPerSecond: getFloat(v, "MARKETPLACE_RPS", 0),
			SalesLookbackDays: getInt(v, "SALES_LOOKBACK_DAYS", 7),
		},
		OAuth: OAuthConfig{
			WBURL:            getString(v, "WB_OAUTH_URL", "https://oauth.wildberries.ru"),
			WBClientID:       getString(v, "WB_CLIENT_ID", ""),
			WBClientSecret:   getString(v, "WB_CLIENT_SECRET", ""),
			RefreshThreshold: getDuration(v, "OAUTH_REFRESH_THRESHOLD", 5*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     getString(v, "REDIS_ADDR", ""),
			Password: getString(v, "REDIS_PASSWORD", ""),
			DB:       getInt(v, "REDIS_DB", 0),
			LockTTL:  getDuration(v, "CYCLE_LOCK_TTL", 55*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:     getStrings(v, "KAFKA_BROKERS"),
			AlertsTopic: getString(v, "KAFKA_ALERTS_TOPIC", "stockout.alerts"),
		},
		Auth: AuthConfig{
			JWTSecret: getString(v, "JWT_SECRET", ""),
			Issuer:    getString(v, "JWT_ISSUER", "stockout-sync"),
		},
	}

	if cfg.Scheduler.Concurrency < 1 {
		cfg.Scheduler.Concurrency = 1
	}
	if cfg.Marketplace.MaxRetries < 0 {
		return nil, fmt.Errorf("config: MARKETPLACE_MAX_RETRIES debe ser >= 0")
	}
	if cfg.Forecast.MinPoints < 1 {
		return nil, fmt.Errorf("config: FORECAST_MIN_POINTS debe ser >= 1")
	}
	if cfg.Auth.JWTSecret == "" && cfg.App.Env == "production" {
		return nil, fmt.Errorf("config: JWT_SECRET es obligatorio en production")
	}
	return cfg, nil
}

func getString(v *viper.Viper, key, def string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return def
}

func getInt(v *viper.Viper, key string, def int) int {
	if v.IsSet(key) {
		switch v.Get(key).(type) {
		case int:
			return v.GetInt(key)
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if err != nil {
				return def
			}
			return n
		default:
			return v.GetInt(key)
		}
	}
	return def
}

func getBool(v *viper.Viper, key string, def bool) bool {
	if !v.IsSet(key) {
		return def
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return def
	}
	return b
}

func getFloat(v *viper.Viper, key string, def float64) float64 {
	if v.IsSet(key) {
		f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
		if err != nil {
			return def
		}
		return f
	}
	return def
}

// getDuration acepta "30s", "5m" o un número de milisegundos.
func getDuration(v *viper.Viper, key string, def time.Duration) time.Duration {
	if !v.IsSet(key) {
		return def
	}
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

// getStrings separa listas por coma (ej. KAFKA_BROKERS=host1:9092,host2:9092).
func getStrings(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v.GetString(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
