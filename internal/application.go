package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rocketscienceinc/gomoku/internal/analytics"
	"github.com/rocketscienceinc/gomoku/internal/config"
	"github.com/rocketscienceinc/gomoku/internal/entity"
	"github.com/rocketscienceinc/gomoku/internal/gomoku"
	"github.com/rocketscienceinc/gomoku/internal/metrics"
	"github.com/rocketscienceinc/gomoku/internal/repository"
	"github.com/rocketscienceinc/gomoku/internal/repository/storage"
	"github.com/rocketscienceinc/gomoku/internal/session"
	"github.com/rocketscienceinc/gomoku/internal/usecase"
	"github.com/rocketscienceinc/gomoku/transport/console"
	"github.com/rocketscienceinc/gomoku/transport/rest"
	"github.com/rocketscienceinc/gomoku/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Info("Received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	rules := gomoku.Rules{WinLength: conf.Game.WinLength, ExactLength: conf.Game.ExactLength}
	gameController := gomoku.NewGameController(logger, rules)
	defer gameController.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	gameMetrics := metrics.New(registry)
	gameController.Subscribe(gameMetrics)

	matchConfig := usecase.MatchConfig{
		BoardSize:        conf.Game.BoardSize,
		Rules:            rules,
		PlayerName:       conf.Game.PlayerName,
		ComputerColor:    parseColor(conf.Game.ComputerColor),
		HandshakeTimeout: conf.Network.HandshakeTimeout,
		Metrics:          gameMetrics,
	}

	if conf.Redis.Enabled {
		redisStorage, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr())
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		matchConfig.Sessions = repository.NewSessionRepository(redisStorage.Connection, conf.Redis.TTL)
	}

	if conf.Kafka.Enabled {
		publisher, err := analytics.NewPublisher(logger, conf.Kafka.Brokers, conf.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("could not create kafka publisher: %w", err)
		}

		defer func() {
			if err = publisher.Close(); err != nil {
				log.Error("could not close kafka publisher", "error", err)
			}
		}()

		matchConfig.Publisher = publisher
	}

	match := usecase.NewMatch(logger, gameController, matchConfig)
	defer match.Close()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.New(logger, conf.HTTPPort, registry).Start(ctx); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	if conf.UI.WebSocketPort != "" {
		wsServer := websocket.New(logger, match)
		gameController.Subscribe(wsServer)

		go func() {
			log.Info("Starting WebSocket server", "port", conf.UI.WebSocketPort)
			if wsErr := wsServer.Start(ctx, conf.UI.WebSocketPort); wsErr != nil {
				log.Error("WebSocket server error", "error", wsErr)
				wsErrCh <- wsErr
			}
		}()
	}

	if conf.UI.Console {
		renderer := console.NewRenderer(os.Stdout)
		gameController.Subscribe(renderer)

		go func() {
			if inputErr := console.NewInput(logger, match, renderer).Run(ctx, os.Stdin); inputErr != nil {
				log.Error("console input error", "error", inputErr)
			}
			cancel()
		}()
	}

	gameErrCh := make(chan error, 1)
	if err := startMode(ctx, logger, conf, match, gameErrCh); err != nil {
		return err
	}

	select {
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case err := <-gameErrCh:
		return fmt.Errorf("game server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func startMode(ctx context.Context, logger *slog.Logger, conf *config.Config, match *usecase.Match, errCh chan<- error) error {
	log := logger.With("component", "app", "method", "startMode")

	switch conf.Mode {
	case config.ModeComputer:
		return match.StartComputer()
	case config.ModeServer:
		srv, err := session.Listen(logger, session.ServerConfig{
			Addr:             conf.Network.ListenAddr,
			Welcome:          conf.Network.Welcome,
			HandshakeTimeout: conf.Network.HandshakeTimeout,
			Heartbeat:        conf.Network.HeartbeatInterval,
		})
		if err != nil {
			return fmt.Errorf("could not start game server: %w", err)
		}

		go func() {
			defer srv.Close()

			log.Info("Starting game server", "addr", srv.Addr())
			if serveErr := match.Serve(ctx, srv); serveErr != nil {
				errCh <- serveErr
			}
		}()

		return nil
	case config.ModeClient:
		return match.Join(ctx, conf.Network.ServerAddr)
	default:
		if conf.Redis.Enabled && conf.Redis.ResumeSession != "" {
			if err := match.Resume(ctx, conf.Redis.ResumeSession); err != nil {
				log.Warn("could not resume session, starting a new game", "id", conf.Redis.ResumeSession, "error", err)
			} else {
				return nil
			}
		}

		return match.StartLocal()
	}
}

func parseColor(color string) entity.FieldState {
	if strings.EqualFold(color, entity.Black.String()) {
		return entity.Black
	}

	return entity.White
}
