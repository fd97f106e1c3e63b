package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	ModeLocal    = "local"
	ModeComputer = "computer"
	ModeServer   = "server"
	ModeClient   = "client"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel string  `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort string  `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	Mode     string  `yaml:"mode" env:"GOMOKU_MODE" env-default:"local"`
	Game     Game    `yaml:"game"`
	Network  Network `yaml:"network"`
	Redis    Redis   `yaml:"redis"`
	Kafka    Kafka   `yaml:"kafka"`
	UI       UI      `yaml:"ui"`
}

type Game struct {
	BoardSize     int    `yaml:"board-size" env:"GOMOKU_BOARD_SIZE" env-default:"15"`
	WinLength     int    `yaml:"win-length" env:"GOMOKU_WIN_LENGTH" env-default:"5"`
	ExactLength   bool   `yaml:"exact-length" env:"GOMOKU_EXACT_LENGTH" env-default:"false"`
	PlayerName    string `yaml:"player-name" env:"GOMOKU_PLAYER_NAME" env-default:"player"`
	ComputerColor string `yaml:"computer-color" env:"GOMOKU_COMPUTER_COLOR" env-default:"white"`
}

type Network struct {
	ListenAddr        string        `yaml:"listen-addr" env:"GOMOKU_LISTEN_ADDR" env-default:":4040"`
	ServerAddr        string        `yaml:"server-addr" env:"GOMOKU_SERVER_ADDR" env-default:"localhost:4040"`
	HandshakeTimeout  time.Duration `yaml:"handshake-timeout" env:"GOMOKU_HANDSHAKE_TIMEOUT" env-default:"10s"`
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval" env:"GOMOKU_HEARTBEAT_INTERVAL" env-default:"5s"`
	Welcome           []string      `yaml:"welcome" env:"GOMOKU_WELCOME" env-separator:"|"`
}

type Redis struct {
	Enabled       bool          `yaml:"enabled" env:"REDIS_ENABLED" env-default:"false"`
	Host          string        `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port          string        `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	TTL           time.Duration `yaml:"ttl" env:"REDIS_TTL" env-default:"24h"`
	ResumeSession string        `yaml:"resume-session" env:"GOMOKU_RESUME_SESSION"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled" env:"KAFKA_ENABLED" env-default:"false"`
	Brokers []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	Topic   string   `yaml:"topic" env:"KAFKA_TOPIC" env-default:"gomoku-events"`
}

type UI struct {
	WebSocketPort string `yaml:"websocket-port" env:"WEBSOCKET_PORT" env-default:"8080"`
	Console       bool   `yaml:"console" env:"GOMOKU_CONSOLE" env-default:"true"`
}

// MustLoad - load all configurations from the config file, or from the environment when the file is missing.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("unable to load config: %w", err))
	}

	return config
}

func Load(path string) (*Config, error) {
	config := &Config{}

	if _, err := os.Stat(path); err == nil {
		if err = cleanenv.ReadConfig(path, config); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if err = cleanenv.ReadEnv(config); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (that *Config) Validate() error {
	switch that.Mode {
	case ModeLocal, ModeComputer, ModeServer, ModeClient:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, that.Mode)
	}

	if that.Game.BoardSize < 5 || that.Game.BoardSize > 20 {
		return fmt.Errorf("%w: board-size %d is outside 5..20", ErrInvalidConfig, that.Game.BoardSize)
	}

	if that.Game.WinLength < 3 || that.Game.WinLength > that.Game.BoardSize {
		return fmt.Errorf("%w: win-length %d is outside 3..%d", ErrInvalidConfig, that.Game.WinLength, that.Game.BoardSize)
	}

	switch strings.ToLower(that.Game.ComputerColor) {
	case "black", "white":
	default:
		return fmt.Errorf("%w: computer-color %q", ErrInvalidConfig, that.Game.ComputerColor)
	}

	if that.Network.HeartbeatInterval < 0 || that.Network.HandshakeTimeout < 0 {
		return fmt.Errorf("%w: negative network timeout", ErrInvalidConfig)
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return net.JoinHostPort(that.Host, that.Port)
}
