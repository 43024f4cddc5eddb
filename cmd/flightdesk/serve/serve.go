// Package servecmder provides the serve command that runs the assistant
// HTTP server.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/flightdeskco/flightdesk/api"
	"github.com/flightdeskco/flightdesk/pkg/assistant"
	"github.com/flightdeskco/flightdesk/pkg/config"
	"github.com/flightdeskco/flightdesk/pkg/conversation"
	"github.com/flightdeskco/flightdesk/pkg/conversation/inmemory"
	"github.com/flightdeskco/flightdesk/pkg/conversation/postgres"
	"github.com/flightdeskco/flightdesk/pkg/conversation/sqlite"
	"github.com/flightdeskco/flightdesk/pkg/eventstream"
	"github.com/flightdeskco/flightdesk/pkg/eventstream/kafka"
	"github.com/flightdeskco/flightdesk/pkg/eventstream/nop"
	"github.com/flightdeskco/flightdesk/pkg/fares"
	"github.com/flightdeskco/flightdesk/pkg/llm/completion/openai"
	"github.com/flightdeskco/flightdesk/pkg/logger"
	"github.com/flightdeskco/flightdesk/pkg/tools"
	"github.com/flightdeskco/flightdesk/pkg/tools/flights"
	"github.com/flightdeskco/flightdesk/pkg/travelapi"
	"github.com/flightdeskco/flightdesk/pkg/worker"
)

type ServeCommander struct {
	listen        string
	model         string
	storageDriver string
	sqlitePath    string
	postgresDSN   string
	travelURL     string
	eventsProv    string
	brokers       string
	topic         string
	numWorkers    uint

	debug  bool
	cfg    *config.Config
	logger *zap.Logger
}

const serveLongDesc string = `Run the FlightDesk assistant server.

The server exposes the conversational assistant over HTTP, backed by a
conversation store, the travel API, and a completion provider. All
settings come from config.toml, FLIGHTDESK_* environment variables, and
the flags below, in ascending precedence.`

const serveShortDesc string = "Run the FlightDesk assistant server"

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagModel,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagTravelURL,
	config.FlagEventsProv,
	config.FlagBrokers,
	config.FlagTopic,
	config.FlagNumWorkers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.DefaultFlagSet()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, err := cmd.Flags().GetString("config-dir")
			if err != nil {
				configDir = ""
			}

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, serveFlagKeys)
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, fs, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, fs, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, fs, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, fs, config.FlagTravelURL, &cmder.travelURL)
	config.AddStringFlag(cmd, fs, config.FlagEventsProv, &cmder.eventsProv)
	config.AddStringFlag(cmd, fs, config.FlagBrokers, &cmder.brokers)
	config.AddStringFlag(cmd, fs, config.FlagTopic, &cmder.topic)
	config.AddUintFlag(cmd, fs, config.FlagNumWorkers, &cmder.numWorkers)

	return cmd
}

func (c *ServeCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	cfg := c.cfg

	store, err := c.newConversationStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	travelClient := travelapi.NewClient(travelapi.Config{
		BaseURL: cfg.Travel.BaseURL,
		APIKey:  cfg.Travel.APIKey,
		Tenant:  cfg.Travel.Tenant,
	}, c.logger)

	registry := tools.NewRegistry(c.logger)
	registry.Register(flights.NewSearchHandler(travelClient, c.logger), flights.Domain)
	registry.Register(flights.NewViewBookingHandler(travelClient, c.logger), flights.Domain)
	registry.Register(flights.NewCancelBookingHandler(travelClient, c.logger), flights.Domain)
	registry.Register(flights.NewTravelHistoryHandler(travelClient, c.logger), flights.Domain)

	shapers := tools.NewShaperRegistry()
	shapers.Register(flights.NewSearchResultShaper(fares.NewParser(c.logger), c.logger))

	instructions := tools.NewInstructionRegistry()
	flights.RegisterInstructions(instructions)

	completionClient := openai.New(openai.Config{
		BaseURL: cfg.Completion.BaseURL,
		APIKey:  cfg.Completion.APIKey,
	})

	publisher, err := c.newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	orchestrator := assistant.NewOrchestrator(
		completionClient,
		store,
		registry,
		shapers,
		instructions,
		publisher,
		assistant.Config{
			Model:        cfg.Assistant.Model,
			SystemPrompt: cfg.Assistant.SystemPrompt,
			Domain:       tools.DomainAll,
			MaxRounds:    cfg.Assistant.MaxRounds,
			HistoryTTL:   time.Duration(cfg.Assistant.HistoryTTLMinutes) * time.Minute,
			ArgumentDedupTools: []string{
				flights.SearchToolName,
			},
		},
		c.logger,
	)

	pool, err := worker.NewPool(&worker.Config{
		Processor:  orchestrator,
		NumWorkers: cfg.Worker.NumWorkers,
		QueueSize:  cfg.Worker.QueueSize,
		Logger:     c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating worker pool: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr: cfg.Server.Listen,
	}, pool, store, c.logger)

	c.logger.Info("starting flightdesk server",
		zap.String("listen", cfg.Server.Listen),
		zap.String("model", cfg.Assistant.Model),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("events", cfg.Events.Provider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		pool.Close()
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		if err := server.Shutdown(); err != nil {
			c.logger.Warn("server shutdown failed", zap.Error(err))
		}
		// Drain queued exchanges before releasing the store and publisher.
		pool.Close()
		return nil
	}
}

func (c *ServeCommander) newConversationStore(cfg *config.Config) (conversation.Store, error) {
	switch cfg.Storage.Driver {
	case "sqlite":
		if cfg.Storage.SQLitePath == "" {
			return nil, fmt.Errorf("storage.sqlite_path is required for the sqlite driver")
		}
		store, err := sqlite.NewDriver(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite store: %w", err)
		}
		c.logger.Info("using SQLite conversation store", zap.String("path", cfg.Storage.SQLitePath))
		return store, nil

	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
		store, err := postgres.NewDriver(context.Background(), cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("creating postgres store: %w", err)
		}
		c.logger.Info("using PostgreSQL conversation store")
		return store, nil

	case "", "memory":
		c.logger.Info("using in-memory conversation store")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q (available: memory, sqlite, postgres)", cfg.Storage.Driver)
	}
}

func (c *ServeCommander) newPublisher(cfg *config.Config) (eventstream.Publisher, error) {
	switch cfg.Events.Provider {
	case "kafka":
		if cfg.Events.Brokers == "" {
			return nil, fmt.Errorf("events.brokers is required for the kafka provider")
		}
		brokers := strings.Split(cfg.Events.Brokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		c.logger.Info("publishing events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", cfg.Events.Topic),
		)
		return kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   cfg.Events.Topic,
		}, c.logger), nil

	case "", "nop":
		return nop.NewPublisher(), nil

	default:
		return nil, fmt.Errorf("unknown events provider %q (available: nop, kafka)", cfg.Events.Provider)
	}
}
