package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	API        APIConfig        `mapstructure:"api"`
	Transport  TransportConfig  `mapstructure:"transport"`
	Dictionary DictionaryConfig `mapstructure:"dictionary"`
	Monitor    MonitorConfig    `mapstructure:"monitor"`
	RPC        RPCConfig        `mapstructure:"rpc"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Debug      bool             `mapstructure:"debug"`
}

type BotConfig struct {
	Nickname string `mapstructure:"nickname" validate:"required"`
	Language string `mapstructure:"language" validate:"required"`
	Picture  string `mapstructure:"picture"`
	// Token is the user token sent on join. A random one is generated when empty.
	Token string `mapstructure:"token"`
	// SuperuserID is the authenticated id that overrides every role check.
	SuperuserID  string   `mapstructure:"superuser_id"`
	ModeratorIDs []string `mapstructure:"moderator_ids"`
	RoomName     string   `mapstructure:"room_name" validate:"required"`
	Public       bool     `mapstructure:"public"`
	// Rooms lists existing room codes to join at startup. When empty the bot
	// starts a room of its own.
	Rooms []string `mapstructure:"rooms"`
	// MailboxSize is the request queue length of each room actor.
	MailboxSize int `mapstructure:"mailbox_size" validate:"gte=0"`
}

type APIConfig struct {
	StartRoomURL string        `mapstructure:"start_room_url" validate:"required,url"`
	JoinRoomURL  string        `mapstructure:"join_room_url" validate:"required,url"`
	Timeout      time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type TransportConfig struct {
	ChatRate     float64       `mapstructure:"chat_rate" validate:"gt=0"`
	ChatBurst    int           `mapstructure:"chat_burst" validate:"gte=1"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	SendBuffer   int           `mapstructure:"send_buffer" validate:"gte=1"`
}

type DictionaryConfig struct {
	// Path to a word list. The embedded list is used when empty.
	Path string `mapstructure:"path"`
}

type MonitorConfig struct {
	Address   string `mapstructure:"address"`
	Namespace string `mapstructure:"namespace" validate:"required"`
}

type RPCConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver" validate:"oneof=gorm sql"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("bot.nickname", "wordbot")
	v.SetDefault("bot.language", "en-US")
	v.SetDefault("bot.room_name", "wordbot")
	v.SetDefault("bot.mailbox_size", 512)
	v.SetDefault("api.start_room_url", "https://jklm.fun/api/startRoom")
	v.SetDefault("api.join_room_url", "https://jklm.fun/api/joinRoom")
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("transport.chat_rate", 2.0)
	v.SetDefault("transport.chat_burst", 4)
	v.SetDefault("transport.write_timeout", "5s")
	v.SetDefault("transport.send_buffer", 64)
	v.SetDefault("monitor.address", ":9090")
	v.SetDefault("monitor.namespace", "wordbot")
	v.SetDefault("rpc.address", "127.0.0.1:9091")
	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.dbname", "wordbot")
}

// LoadConfig reads config.yaml from path. A missing file is not an error:
// defaults and WORDBOT_* environment variables still apply.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	setDefaults(v)

	v.SetEnvPrefix("WORDBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of the whole configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// DSN returns the postgres connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.User, p.Password, p.DBName)
}
