package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type JWTConfig struct {
	Secret string
	Expiry time.Duration
}

type Argon2Config struct {
	Time       uint32
	Memory     uint32
	Threads    uint8
	KeyLength  uint32
	SaltLength uint32
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Sender   string
}

type SMSConfig struct {
	APIURL   string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

type Config struct {
	Env           string
	Port          string
	PublicBaseURL string
	AutoMigrate   bool
	UploadDir     string
	CORSOrigins   []string
	// ConfigFile is empty when no .env file was read.
	ConfigFile string

	JWT    JWTConfig
	Argon2 Argon2Config
	SMTP   SMTPConfig
	SMS    SMSConfig
	OTP    *OTPConfig
}

var envBindings = map[string]string{
	"app.env":             "APP_ENV",
	"app.port":            "PORT",
	"app.public_base_url": "PUBLIC_BASE_URL",
	"app.auto_migrate":    "AUTO_MIGRATE",
	"app.upload_dir":      "UPLOAD_DIR",
	"app.cors_origins":    "CORS_ALLOWED_ORIGINS",

	"database.host":     "DATABASE_HOST",
	"database.port":     "DATABASE_PORT",
	"database.user":     "DATABASE_USER",
	"database.password": "DATABASE_PASSWORD",
	"database.name":     "DATABASE_NAME",
	"database.ssl_mode": "DATABASE_SSL_MODE",

	"redis.host":     "REDIS_HOST",
	"redis.port":     "REDIS_PORT",
	"redis.password": "REDIS_PASSWORD",
	"redis.db":       "REDIS_DB",
	"redis.url":      "REDIS_URL",

	"jwt.secret_key":   "JWT_SECRET_KEY",
	"jwt.expiry_hours": "JWT_EXPIRY_HOURS",

	"argon2.time":        "ARGON2_TIME",
	"argon2.memory":      "ARGON2_MEMORY",
	"argon2.threads":     "ARGON2_THREADS",
	"argon2.key_length":  "ARGON2_KEY_LENGTH",
	"argon2.salt_length": "ARGON2_SALT_LENGTH",

	"smtp.host":     "SMTP_HOST",
	"smtp.port":     "SMTP_PORT",
	"smtp.user":     "SMTP_USER",
	"smtp.password": "SMTP_PASS",
	"smtp.sender":   "SMTP_SENDER",

	"sms.api_url":   "SMS_API_URL",
	"sms.api_key":   "SMS_API_KEY",
	"sms.sender_id": "SMS_SENDER_ID",
	"sms.timeout":   "SMS_TIMEOUT",
}

// Load reads .env (when present) and the process environment into a Config.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	for key, env := range envBindings {
		viper.BindEnv(key, env)
	}

	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.port", "8080")
	viper.SetDefault("app.public_base_url", "http://localhost:3000")
	viper.SetDefault("app.auto_migrate", false)
	viper.SetDefault("app.upload_dir", "./uploads/offers")
	viper.SetDefault("app.cors_origins", "https://*,http://*")
	viper.SetDefault("jwt.expiry_hours", 24*7)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)
	viper.SetDefault("smtp.port", 465)
	viper.SetDefault("sms.sender_id", "CMPWLA")
	viper.SetDefault("sms.timeout", 5*time.Second)

	cfg := &Config{}
	if err := viper.ReadInConfig(); err == nil {
		cfg.ConfigFile = viper.ConfigFileUsed()
	}

	cfg.Env = strings.ToLower(viper.GetString("app.env"))
	cfg.Port = viper.GetString("app.port")
	cfg.PublicBaseURL = strings.TrimRight(viper.GetString("app.public_base_url"), "/")
	cfg.AutoMigrate = viper.GetBool("app.auto_migrate")
	cfg.UploadDir = viper.GetString("app.upload_dir")
	for _, origin := range strings.Split(viper.GetString("app.cors_origins"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	cfg.JWT = JWTConfig{
		Secret: viper.GetString("jwt.secret_key"),
		Expiry: time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour,
	}
	cfg.Argon2 = Argon2Config{
		Time:       viper.GetUint32("argon2.time"),
		Memory:     viper.GetUint32("argon2.memory"),
		Threads:    uint8(viper.GetUint("argon2.threads")),
		KeyLength:  viper.GetUint32("argon2.key_length"),
		SaltLength: viper.GetUint32("argon2.salt_length"),
	}
	cfg.SMTP = SMTPConfig{
		Host:     viper.GetString("smtp.host"),
		Port:     viper.GetInt("smtp.port"),
		User:     viper.GetString("smtp.user"),
		Password: viper.GetString("smtp.password"),
		Sender:   viper.GetString("smtp.sender"),
	}
	cfg.SMS = SMSConfig{
		APIURL:   viper.GetString("sms.api_url"),
		APIKey:   viper.GetString("sms.api_key"),
		SenderID: viper.GetString("sms.sender_id"),
		Timeout:  viper.GetDuration("sms.timeout"),
	}

	cfg.OTP = LoadOTPConfig()
	if cfg.IsProduction() {
		cfg.OTP.AllowStaticFallback = false
	}

	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET_KEY must be set")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}
