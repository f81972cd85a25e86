package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/townyadvanced/townylog/internal/api"
	"github.com/townyadvanced/townylog/internal/audit"
	"github.com/townyadvanced/townylog/internal/infrastructure/config"
	"github.com/townyadvanced/townylog/internal/infrastructure/database"
	"github.com/townyadvanced/townylog/internal/infrastructure/influxdb"
	"github.com/townyadvanced/townylog/internal/infrastructure/logging"
	"github.com/townyadvanced/townylog/internal/infrastructure/metrics"
	"github.com/townyadvanced/townylog/internal/infrastructure/mqtt"
	"github.com/townyadvanced/townylog/internal/layout"
	"github.com/townyadvanced/townylog/internal/sink"
	"github.com/townyadvanced/townylog/internal/townylog"
	"github.com/townyadvanced/townylog/migrations"
)

// run loads the configuration, brings up the optional backends, initialises
// the log channels and blocks until ctx is cancelled. Deferred closes run
// in reverse order, so the channels flush before their backends go away.
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting townylog",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	var opts []townylog.Option
	opts = append(opts, townylog.WithLogger(log.With("component", "townylog")))

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Runtime)
		opts = append(opts, townylog.WithMetrics(m))
	}

	// Money index
	var repo *audit.SQLiteRepository
	if cfg.Database.Enabled {
		db, err := database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if err := db.Migrate(ctx, migrations.FS); err != nil {
			return fmt.Errorf("running migrations: %w", err)
		}
		repo = audit.NewSQLiteRepository(db.DB)
		opts = append(opts, townylog.WithSinks(townylog.ChannelMoney, sink.NewAudit("money.db", repo)))
		log.Info("money index ready", "path", db.Path())
	}

	// MQTT forwarding
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })

		// One sink serves all three channels; the registry refcounts it.
		pub := sink.NewMQTT("mqtt", mqttClient, recordTopic)
		opts = append(opts,
			townylog.WithSinks(townylog.ChannelMain, pub),
			townylog.WithSinks(townylog.ChannelMoney, pub),
			townylog.WithSinks(townylog.ChannelDebug, pub),
		)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Time-series export of money transactions
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		opts = append(opts, townylog.WithSinks(townylog.ChannelMoney, sink.NewInflux("influxdb", influxClient)))
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	// Live tail
	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log)
		hubCtx, stopHub := context.WithCancel(ctx)
		defer stopHub()
		go hub.Run(hubCtx)

		tail := sink.NewBroadcast("tail", hub)
		opts = append(opts,
			townylog.WithSinks(townylog.ChannelMain, tail),
			townylog.WithSinks(townylog.ChannelMoney, tail),
			townylog.WithSinks(townylog.ChannelDebug, tail),
		)
	}

	logs := townylog.New(townylog.SettingsFrom(cfg), opts...)
	if err := logs.Initialize(); err != nil {
		return fmt.Errorf("initialising log channels: %w", err)
	}
	defer func() {
		log.Info("closing log channels")
		if closeErr := logs.Close(); closeErr != nil {
			log.Error("error closing log channels", "error", closeErr)
		}
	}()
	if err := logs.SetDebug(cfg.Logging.Debug); err != nil {
		return fmt.Errorf("applying debug setting: %w", err)
	}

	if mqttClient != nil {
		topic := mqtt.Topics{}.DebugControl()
		if err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), debugControlHandler(logs, log)); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
	}

	watcher, err := config.NewWatcher(configPath, cfg, configChangeHandler(logs, log), 0)
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	watcher.SetOnError(func(err error) {
		log.Warn("configuration reload rejected, keeping previous settings", "error", err)
	})
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("starting config watcher: %w", err)
	}
	defer watcher.Stop() //nolint:errcheck // shutdown path

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Security: cfg.Security,
			Logger:   log,
			Logs:     logs,
			Hub:      hub,
			Version:  version,
		}
		if repo != nil {
			deps.Money = repo
		}
		if m != nil {
			deps.Metrics = m.Handler()
		}
		srv, err := api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := srv.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if err := healthCheck(ctx, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	logs.Main().Info("TownyLog " + version + " started")
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// recordTopic routes money records to the transaction topic and every
// other record to its channel topic.
func recordTopic(rec layout.Record) string {
	t := mqtt.Topics{}
	if rec.Channel == townylog.ChannelMoney {
		return t.MoneyTransaction()
	}
	return t.LogChannel(rec.Channel)
}

// healthCheck verifies the optional backends are reachable.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// debugSetter is the part of the facade that runtime controls toggle.
type debugSetter interface {
	SetDebug(enabled bool) error
}

type debugCommand struct {
	Enabled *bool `json:"enabled"`
}

var errMissingEnabled = errors.New(`debug command requires "enabled"`)

// debugControlHandler applies {"enabled": bool} commands received on the
// debug control topic.
func debugControlHandler(logs debugSetter, log *logging.Logger) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		var cmd debugCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return fmt.Errorf("parsing debug command on %s: %w", topic, err)
		}
		if cmd.Enabled == nil {
			return errMissingEnabled
		}
		if err := logs.SetDebug(*cmd.Enabled); err != nil {
			return fmt.Errorf("applying debug command: %w", err)
		}
		log.Info("debug channel toggled via MQTT", "enabled", *cmd.Enabled)
		return nil
	}
}

// configChangeHandler applies settings that can change at runtime.
// append_to_log is read when the file sinks are built, so a change only
// takes effect on the next start.
func configChangeHandler(logs debugSetter, log *logging.Logger) config.ChangeHandler {
	return func(prev, next *config.Config) {
		if prev.Logging.Debug != next.Logging.Debug {
			if err := logs.SetDebug(next.Logging.Debug); err != nil {
				log.Error("applying reloaded debug setting", "error", err)
			} else {
				log.Info("debug channel toggled by configuration reload", "enabled", next.Logging.Debug)
			}
		}
		if prev.Logging.AppendToLog != next.Logging.AppendToLog {
			log.Info("logging.append_to_log changed; applies on next start",
				"append_to_log", next.Logging.AppendToLog)
		}
	}
}
