package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Auth      AuthConfig      `yaml:"auth"`
	Webrtc    WebrtcConfig    `yaml:"webrtc"`
	Recording RecordingConfig `yaml:"recording"`
	AWS       AWSConfig       `yaml:"aws"`
	Log       LogConfig       `yaml:"log"`
}

type HTTPConfig struct {
	Address         string `yaml:"address"`
	SwaggerDir      string `yaml:"swagger_dir"`
	ShutdownSeconds int    `yaml:"shutdown_seconds"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	Migrate  bool   `yaml:"migrate"`
}

// DSN returns URL when set, otherwise a keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	ReservationTopic   string   `yaml:"reservation_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type WebrtcConfig struct {
	// Provider is "openvidu" or "local".
	Provider              string `yaml:"provider"`
	OpenViduURL           string `yaml:"openvidu_url"`
	OpenViduSecret        string `yaml:"openvidu_secret"`
	TokenSecret           string `yaml:"token_secret"`
	TokenTTLMinutes       int    `yaml:"token_ttl_minutes"`
	SessionLockTTLSeconds int    `yaml:"session_lock_ttl_seconds"`
	ConfirmedOnRevoke     bool   `yaml:"confirmed_on_revoke"`
}

type RecordingConfig struct {
	WorkerCount int    `yaml:"worker_count"`
}

type AWSConfig struct {
	Region           string `yaml:"region"`
	AccessKeyID      string `yaml:"access_key_id"`
	SecretAccessKey  string `yaml:"secret_access_key"`
	RecordingsBucket string `yaml:"recordings_bucket"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv lets secrets and endpoints come from the environment instead of the file.
func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.Webrtc.OpenViduURL, "OPENVIDU_URL")
	setString(&c.Webrtc.OpenViduSecret, "OPENVIDU_SECRET")
	setString(&c.Webrtc.TokenSecret, "WEBRTC_TOKEN_SECRET")
	setString(&c.AWS.Region, "AWS_REGION")
	setString(&c.AWS.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&c.AWS.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&c.AWS.RecordingsBucket, "AWS_S3_RECORDINGS_BUCKET")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitTrim(v, ",")
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownSeconds <= 0 {
		c.HTTP.ShutdownSeconds = 5
	}
	if c.Webrtc.Provider == "" {
		c.Webrtc.Provider = "local"
	}
	if c.Webrtc.TokenTTLMinutes <= 0 {
		c.Webrtc.TokenTTLMinutes = 120
	}
	if c.Webrtc.SessionLockTTLSeconds <= 0 {
		c.Webrtc.SessionLockTTLSeconds = 30
	}
	if c.Recording.WorkerCount <= 0 {
		c.Recording.WorkerCount = 1
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
