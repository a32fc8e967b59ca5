package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env        string
	Server     ServerConfig
	Database   DatabaseConfig
	Auth       AuthConfig
	Extraction ExtractionConfig
	Email      EmailConfig
	AMQP       AMQPConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret          string
	JWTIssuer          string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

// ExtractionConfig описывает внешний inference-эндпоинт для распознавания чеков.
// EndpointURL и APIKey не проверяются на старте: их отсутствие должно ломать
// только сам вызов извлечения, а не весь сервис.
type ExtractionConfig struct {
	EndpointURL        string
	APIKey             string
	Timeout            time.Duration
	RateLimitPerMinute int
	RateLimitBurst     int
}

type EmailConfig struct {
	Enabled       bool
	Provider      string
	From          string
	SenderName    string
	SiteBaseURL   string
	MailgunDomain string
	MailgunAPIKey string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
}

// AMQPConfig настраивает необязательную публикацию событий в брокер.
// Пустой URL отключает публикацию.
type AMQPConfig struct {
	URL      string
	Exchange string
	Queue    string
}

// Load загружает конфигурацию приложения из окружения и .env.
func Load() (Config, error) {
	cfg := Config{}

	if err := loadEnv(); err != nil {
		return cfg, err
	}

	cfg.Env = getEnv("APP_ENV", "local")

	serverPort, err := parseIntEnv("SERVER_PORT", 8080)
	if err != nil {
		return cfg, err
	}

	readTimeout, err := parseDurationEnv("SERVER_READ_TIMEOUT", 5*time.Second)
	if err != nil {
		return cfg, err
	}

	writeTimeout, err := parseDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return cfg, err
	}

	idleTimeout, err := parseDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second)
	if err != nil {
		return cfg, err
	}

	cfg.Server = ServerConfig{
		Host:         getEnv("SERVER_HOST", "0.0.0.0"),
		Port:         serverPort,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	dbPort, err := parseIntEnv("DB_PORT", 5432)
	if err != nil {
		return cfg, err
	}

	maxOpenConns, err := parseIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return cfg, err
	}

	maxIdleConns, err := parseIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return cfg, err
	}

	connMaxIdleTime, err := parseDurationEnv("DB_CONN_MAX_IDLE_TIME", 5*time.Minute)
	if err != nil {
		return cfg, err
	}

	connMaxLifetime, err := parseDurationEnv("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return cfg, err
	}

	cfg.Database = DatabaseConfig{
		Host:            getEnv("DB_HOST", "localhost"),
		Port:            dbPort,
		User:            getEnv("DB_USER", "smartwealth"),
		Password:        getEnv("DB_PASSWORD", "smartwealth"),
		Name:            getEnv("DB_NAME", "smartwealth"),
		SSLMode:         getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxIdleTime: connMaxIdleTime,
		ConnMaxLifetime: connMaxLifetime,
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return cfg, err
	}

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return cfg, err
	}

	authRatePerMinute, err := parseIntEnv("AUTH_RATE_LIMIT_PER_MINUTE", 60)
	if err != nil {
		return cfg, err
	}

	authRateBurst, err := parseIntEnv("AUTH_RATE_LIMIT_BURST", 10)
	if err != nil {
		return cfg, err
	}

	cfg.Auth = AuthConfig{
		JWTSecret:          getEnv("JWT_SECRET", ""),
		JWTIssuer:          getEnv("JWT_ISSUER", "smartwealth"),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		RateLimitPerMinute: authRatePerMinute,
		RateLimitBurst:     authRateBurst,
	}

	extractionTimeout, err := parseDurationEnv("OCR_TIMEOUT", 30*time.Second)
	if err != nil {
		return cfg, err
	}

	extractionRatePerMinute, err := parseIntEnv("OCR_RATE_LIMIT_PER_MINUTE", 15)
	if err != nil {
		return cfg, err
	}

	extractionRateBurst, err := parseIntEnv("OCR_RATE_LIMIT_BURST", 5)
	if err != nil {
		return cfg, err
	}

	cfg.Extraction = ExtractionConfig{
		EndpointURL:        getEnv("OCR_API_URL", ""),
		APIKey:             getEnv("GEMINI_API_KEY", ""),
		Timeout:            extractionTimeout,
		RateLimitPerMinute: extractionRatePerMinute,
		RateLimitBurst:     extractionRateBurst,
	}

	smtpPort, err := parseIntEnv("SMTP_PORT", 587)
	if err != nil {
		return cfg, err
	}

	cfg.Email = EmailConfig{
		Enabled:       parseBoolEnv("EMAIL_ENABLED", false),
		Provider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "mock")),
		From:          getEnv("EMAIL_FROM", ""),
		SenderName:    getEnv("EMAIL_SENDER_NAME", "SmartWealth Finance"),
		SiteBaseURL:   getEnv("SITE_BASE_URL", "http://localhost:3000"),
		MailgunDomain: getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey: getEnv("MAILGUN_API_KEY", ""),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      smtpPort,
		SMTPUser:      getEnv("SMTP_USER", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
	}

	cfg.AMQP = AMQPConfig{
		URL:      getEnv("AMQP_URL", ""),
		Exchange: getEnv("AMQP_EXCHANGE", "smartwealth"),
		Queue:    getEnv("AMQP_QUEUE", "alerts"),
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// DSN возвращает строку подключения к базе данных.
func (c DatabaseConfig) DSN() string {
	user := url.UserPassword(c.User, c.Password)
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:   c.Name,
	}

	query := url.Values{}
	query.Set("sslmode", c.SSLMode)
	return dsn.String() + "?" + query.Encode()
}

func (c Config) validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be greater than 0")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}

	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}

	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS cannot exceed DB_MAX_OPEN_CONNS")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("JWT_ACCESS_TTL must be greater than 0")
	}

	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("JWT_REFRESH_TTL must be greater than 0")
	}

	if c.Email.Enabled {
		if c.Email.From == "" {
			return fmt.Errorf("EMAIL_FROM is required when EMAIL_ENABLED is true")
		}

		switch c.Email.Provider {
		case "mailgun":
			if c.Email.MailgunDomain == "" || c.Email.MailgunAPIKey == "" {
				return fmt.Errorf("MAILGUN_DOMAIN and MAILGUN_API_KEY are required for the mailgun provider")
			}
		case "smtp":
			if c.Email.SMTPHost == "" || c.Email.SMTPUser == "" {
				return fmt.Errorf("SMTP_HOST and SMTP_USER are required for the smtp provider")
			}
		case "mock":
		default:
			return fmt.Errorf("EMAIL_PROVIDER must be one of mailgun, smtp, mock")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

func parseIntEnv(key string, fallback int) (int, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseDurationEnv(key string, fallback time.Duration) (time.Duration, error) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}

	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}

	if parsed <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", key)
	}

	return parsed, nil
}

func parseBoolEnv(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}

	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func loadEnv() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}
