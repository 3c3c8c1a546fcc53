package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	Media     MediaConfig
	WebSocket WebSocketConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Driver   string // couch or memory
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// URL is the CouchDB endpoint including credentials.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf("http://%s:%s@%s:%s", d.User, d.Password, d.Host, d.Port)
}

type JWTConfig struct {
	AccessSecret      string
	AccessExpiration  time.Duration
	RefreshSecret     string
	RefreshExpiration time.Duration
}

type CookieConfig struct {
	Secure   bool
	SameSite http.SameSite
	Domain   string
}

type MediaConfig struct {
	Driver         string // s3 or local
	S3Region       string
	S3Bucket       string
	S3Endpoint     string
	S3AccessKey    string
	S3SecretKey    string
	PublicBaseURL  string
	LocalDir       string
	TempDir        string
	MaxUploadBytes int64
	MaxImageWidth  int
	MaxImageHeight int
}

type WebSocketConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	PingPeriod      time.Duration
	MaxConnPerUser  int
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
	Enabled           bool
	TrustProxy        bool
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	godotenv.Load()

	accessExp, err := getEnvAsDuration("ACCESS_TOKEN_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	refreshExp, err := getEnvAsDuration("REFRESH_TOKEN_EXPIRY", 240*time.Hour)
	if err != nil {
		return nil, err
	}

	pongWait, err := getEnvAsDuration("WS_PONG_WAIT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8000"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("DB_DRIVER", "couch"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "vidtube"),
		},
		JWT: JWTConfig{
			AccessSecret:      getEnv("ACCESS_TOKEN_SECRET", ""),
			AccessExpiration:  accessExp,
			RefreshSecret:     getEnv("REFRESH_TOKEN_SECRET", ""),
			RefreshExpiration: refreshExp,
		},
		Cookie: CookieConfig{
			Secure:   getEnvAsBool("COOKIE_SECURE", true),
			SameSite: parseSameSite(getEnv("COOKIE_SAMESITE", "lax")),
			Domain:   getEnv("COOKIE_DOMAIN", ""),
		},
		Media: MediaConfig{
			Driver:         getEnv("MEDIA_DRIVER", "local"),
			S3Region:       getEnv("S3_REGION", "us-east-1"),
			S3Bucket:       getEnv("S3_BUCKET", "vidtube"),
			S3Endpoint:     getEnv("S3_ENDPOINT", ""),
			S3AccessKey:    getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:    getEnv("S3_SECRET_KEY", ""),
			PublicBaseURL:  getEnv("MEDIA_PUBLIC_BASE_URL", ""),
			LocalDir:       getEnv("MEDIA_LOCAL_DIR", "./public/media"),
			TempDir:        getEnv("MEDIA_TEMP_DIR", os.TempDir()),
			MaxUploadBytes: int64(getEnvAsInt("MEDIA_MAX_UPLOAD_BYTES", 5<<20)),
			MaxImageWidth:  getEnvAsInt("MEDIA_MAX_IMAGE_WIDTH", 1920),
			MaxImageHeight: getEnvAsInt("MEDIA_MAX_IMAGE_HEIGHT", 1080),
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  getEnvAsInt("WS_READ_BUFFER_SIZE", 1024),
			WriteBufferSize: getEnvAsInt("WS_WRITE_BUFFER_SIZE", 1024),
			MaxMessageSize:  int64(getEnvAsInt("WS_MAX_MESSAGE_SIZE", 4096)),
			WriteWait:       10 * time.Second,
			PongWait:        pongWait,
			PingPeriod:      pongWait * 9 / 10,
			MaxConnPerUser:  getEnvAsInt("WS_MAX_CONN_PER_USER", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 10),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 5),
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			TrustProxy:        getEnvAsBool("RATE_LIMIT_TRUST_PROXY", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ORIGIN", "http://localhost:3000"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,PATCH,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization,X-Request-ID"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot run safely with.
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessSecret == "" {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET is required"))
	}
	if c.JWT.RefreshSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.JWT.AccessSecret != "" && c.JWT.AccessSecret == c.JWT.RefreshSecret {
		errs = append(errs, errors.New("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ"))
	}
	if c.JWT.AccessExpiration <= 0 || c.JWT.RefreshExpiration <= 0 {
		errs = append(errs, errors.New("token expiries must be positive"))
	}

	switch c.Database.Driver {
	case "couch", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Media.Driver {
	case "s3", "local":
	default:
		errs = append(errs, fmt.Errorf("unknown MEDIA_DRIVER %q", c.Media.Driver))
	}

	if c.Media.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MEDIA_MAX_UPLOAD_BYTES must be positive"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("15m") and the day suffix used for token expiries ("10d").
func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue, nil
	}

	if days, ok := strings.CutSuffix(valueStr, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}

	d, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
