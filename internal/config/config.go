package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	Forward ForwardConfig
	Users   UsersConfig
	DB      DBConfig
	Broker  BrokerConfig
	Loadgen LoadgenConfig
	Tweets  TweetsConfig
}

// ForwardConfig points the relay at the downstream service. Observations are
// posted to BaseURL + "/clima".
type ForwardConfig struct {
	BaseURL string        `validate:"required,url"`
	Timeout time.Duration `validate:"gte=0"`
}

type UsersConfig struct {
	Store string `validate:"oneof=memory sqlite"`
	// PersistCreates=false keeps the old copy-on-create behaviour where a
	// created user is only visible in the create response.
	PersistCreates bool
}

type DBConfig struct {
	Driver          string `validate:"required"`
	DSN             string
	Path            string
	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

type BrokerConfig struct {
	Kind string `validate:"oneof=log mqtt kafka grpc"`

	MQTTBroker   string `validate:"required"`
	MQTTPort     int    `validate:"min=1,max=65535"`
	MQTTClientID string `validate:"required"`
	MQTTTopic    string `validate:"required"`

	KafkaBrokers []string `validate:"min=1,dive,required"`
	KafkaTopic   string   `validate:"required"`
	KafkaGroupID string   `validate:"required"`

	GRPCServerAddr string        `validate:"required,hostname_port"`
	GRPCTimeout    time.Duration `validate:"gte=0"`
}

type LoadgenConfig struct {
	TargetURL string  `validate:"required,url"`
	Rate      float64 `validate:"gt=0"`
	Burst     int     `validate:"gte=1"`
	Count     int     `validate:"gte=0"`
}

// TweetsConfig is the listening side of the gRPC tweet service.
type TweetsConfig struct {
	Port int `validate:"min=1,max=65535"`
}

// Section names one sub-config. A binary only loads, and so only fails on,
// the sections it asks for; the rest stay zero.
type Section string

const (
	SectionForward Section = "forward"
	SectionUsers   Section = "users"
	SectionDB      Section = "db"
	SectionBroker  Section = "broker"
	SectionLoadgen Section = "loadgen"
	SectionTweets  Section = "tweets"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoadFromEnv reads the process environment (plus a .env file when present).
// appName seeds the MQTT client id; defaultHTTPAddr is used when HTTP_ADDR is
// unset and is empty for binaries that do not listen.
func LoadFromEnv(appName string, defaultHTTPAddr string, sections ...Section) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	appEnv := str(k, "app_env", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(str(k, "log_level", "info"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:   appEnv,
		LogLevel: level,
		HTTPAddr: str(k, "http_addr", defaultHTTPAddr),
	}

	for _, s := range sections {
		var err error
		switch s {
		case SectionForward:
			cfg.Forward, err = loadForward(k)
		case SectionUsers:
			cfg.Users, err = loadUsers(k)
		case SectionDB:
			cfg.DB, err = loadDB(k)
		case SectionBroker:
			cfg.Broker, err = loadBroker(k, appName)
		case SectionLoadgen:
			cfg.Loadgen, err = loadLoadgen(k)
		case SectionTweets:
			cfg.Tweets, err = loadTweets(k)
		default:
			err = fmt.Errorf("unknown config section %q", s)
		}
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func check(section Section, v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid %s config: %w", section, err)
	}
	return nil
}

func loadForward(k *koanf.Koanf) (ForwardConfig, error) {
	timeout, err := duration(k, "forward_timeout", "10s")
	if err != nil {
		return ForwardConfig{}, err
	}
	c := ForwardConfig{
		BaseURL: strings.TrimRight(str(k, "go_service_url", "http://localhost:8080"), "/"),
		Timeout: timeout,
	}
	return c, check(SectionForward, c)
}

func loadUsers(k *koanf.Koanf) (UsersConfig, error) {
	persistCreates, err := boolean(k, "users_persist_creates", true)
	if err != nil {
		return UsersConfig{}, err
	}
	c := UsersConfig{
		Store:          strings.ToLower(str(k, "users_store", "memory")),
		PersistCreates: persistCreates,
	}
	return c, check(SectionUsers, c)
}

func loadDB(k *koanf.Koanf) (DBConfig, error) {
	maxOpenConns, err := integer(k, "db_max_open_conns", 1)
	if err != nil {
		return DBConfig{}, err
	}
	maxIdleConns, err := integer(k, "db_max_idle_conns", 1)
	if err != nil {
		return DBConfig{}, err
	}
	connMaxLifetime, err := duration(k, "db_conn_max_lifetime", "0s")
	if err != nil {
		return DBConfig{}, err
	}
	logSQL, err := boolean(k, "db_log_sql", false)
	if err != nil {
		return DBConfig{}, err
	}
	c := DBConfig{
		Driver:          str(k, "db_driver", "sqlite3"),
		DSN:             str(k, "db_dsn", ""),
		Path:            str(k, "sqlite_path", ":memory:"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		LogSQL:          logSQL,
	}
	return c, check(SectionDB, c)
}

func loadBroker(k *koanf.Koanf, appName string) (BrokerConfig, error) {
	mqttPort, err := integer(k, "mqtt_port", 1883)
	if err != nil {
		return BrokerConfig{}, err
	}
	grpcTimeout, err := duration(k, "grpc_timeout", "5s")
	if err != nil {
		return BrokerConfig{}, err
	}
	c := BrokerConfig{
		Kind:           strings.ToLower(str(k, "broker", "log")),
		MQTTBroker:     str(k, "mqtt_broker", "localhost"),
		MQTTPort:       mqttPort,
		MQTTClientID:   str(k, "mqtt_client_id", appName),
		MQTTTopic:      str(k, "mqtt_topic", "clima"),
		KafkaBrokers:   list(k, "kafka_brokers", "localhost:9092"),
		KafkaTopic:     str(k, "kafka_topic", "clima"),
		KafkaGroupID:   str(k, "kafka_group_id", "clima-consumer-group"),
		GRPCServerAddr: str(k, "grpc_server_addr", "localhost:50051"),
		GRPCTimeout:    grpcTimeout,
	}
	return c, check(SectionBroker, c)
}

func loadLoadgen(k *koanf.Koanf) (LoadgenConfig, error) {
	rate, err := float(k, "loadgen_rate", 1)
	if err != nil {
		return LoadgenConfig{}, err
	}
	burst, err := integer(k, "loadgen_burst", 1)
	if err != nil {
		return LoadgenConfig{}, err
	}
	count, err := integer(k, "loadgen_count", 0)
	if err != nil {
		return LoadgenConfig{}, err
	}
	c := LoadgenConfig{
		TargetURL: strings.TrimRight(str(k, "loadgen_target_url", "http://localhost:3000"), "/"),
		Rate:      rate,
		Burst:     burst,
		Count:     count,
	}
	return c, check(SectionLoadgen, c)
}

func loadTweets(k *koanf.Koanf) (TweetsConfig, error) {
	port, err := integer(k, "grpc_port", 50051)
	if err != nil {
		return TweetsConfig{}, err
	}
	c := TweetsConfig{Port: port}
	return c, check(SectionTweets, c)
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func str(k *koanf.Koanf, key string, def string) string {
	v := strings.TrimSpace(k.String(key))
	if v == "" {
		return def
	}
	return v
}

func integer(k *koanf.Koanf, key string, def int) (int, error) {
	s := str(k, key, "")
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), s, err)
	}
	return n, nil
}

func float(k *koanf.Koanf, key string, def float64) (float64, error) {
	s := str(k, key, "")
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), s, err)
	}
	return f, nil
}

func boolean(k *koanf.Koanf, key string, def bool) (bool, error) {
	s := str(k, key, "")
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), s, err)
	}
	return b, nil
}

func duration(k *koanf.Koanf, key string, def string) (time.Duration, error) {
	s := str(k, key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", strings.ToUpper(key), s, err)
	}
	return d, nil
}

func list(k *koanf.Koanf, key string, def string) []string {
	var out []string
	for _, part := range strings.Split(str(k, key, def), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
