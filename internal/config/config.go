package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                 string
	AppEnv                  string
	AppPort                 string
	DatabaseURL             string
	RedisURL                string
	NATSURL                 string
	JWTSecret               string
	DirectoryBaseURL        string
	DirectoryToken          string
	DirectoryTimeout        time.Duration
	CloudinaryCloudName     string
	CloudinaryAPIKey        string
	CloudinaryAPISecret     string
	CloudinaryUploadFolder  string
	VAPIDPublicKey          string
	VAPIDPrivateKey         string
	VAPIDSubscriber         string
	PushTTL                 int
	PushTimeout             time.Duration
	NotificationDedupWindow time.Duration
	EventChannelBase        string
	StreamKeepAlive         time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MODU")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Modu Messaging API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "modu/attachments")
	v.SetDefault("directory.timeout", "5s")
	v.SetDefault("push.ttl", 60)
	v.SetDefault("push.timeout", "10s")
	v.SetDefault("notification.dedup_window", "5s")
	v.SetDefault("event.channel_base", "modu")
	v.SetDefault("stream.keep_alive", "30s")

	directoryTimeout, err := parseDuration(v, "directory.timeout")
	if err != nil {
		return Config{}, fmt.Errorf("invalid directory timeout: %w", err)
	}
	pushTimeout, err := parseDuration(v, "push.timeout")
	if err != nil {
		return Config{}, fmt.Errorf("invalid push timeout: %w", err)
	}
	dedupWindow, err := parseDuration(v, "notification.dedup_window")
	if err != nil {
		return Config{}, fmt.Errorf("invalid notification dedup window: %w", err)
	}
	keepAlive, err := parseDuration(v, "stream.keep_alive")
	if err != nil {
		return Config{}, fmt.Errorf("invalid stream keep alive: %w", err)
	}

	cfg := Config{
		AppName:                 v.GetString("app.name"),
		AppEnv:                  v.GetString("app.env"),
		AppPort:                 v.GetString("app.port"),
		DatabaseURL:             v.GetString("database.url"),
		RedisURL:                v.GetString("redis.url"),
		NATSURL:                 v.GetString("nats.url"),
		JWTSecret:               v.GetString("jwt.secret"),
		DirectoryBaseURL:        v.GetString("directory.base_url"),
		DirectoryToken:          v.GetString("directory.token"),
		DirectoryTimeout:        directoryTimeout,
		CloudinaryCloudName:     v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:        v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:     v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder:  v.GetString("cloudinary.folder"),
		VAPIDPublicKey:          v.GetString("vapid.public_key"),
		VAPIDPrivateKey:         v.GetString("vapid.private_key"),
		VAPIDSubscriber:         v.GetString("vapid.subscriber"),
		PushTTL:                 v.GetInt("push.ttl"),
		PushTimeout:             pushTimeout,
		NotificationDedupWindow: dedupWindow,
		EventChannelBase:        v.GetString("event.channel_base"),
		StreamKeepAlive:         keepAlive,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if cfg.PushTTL <= 0 {
		cfg.PushTTL = 60
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}
