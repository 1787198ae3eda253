package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nerrad567/scanctl/internal/api"
	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/infrastructure/database"
	"github.com/nerrad567/scanctl/internal/infrastructure/influxdb"
	"github.com/nerrad567/scanctl/internal/infrastructure/mqtt"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the console API server",
		Long: `Run scanctl as a long-lived console.

Serves the REST and WebSocket API, publishes dispatch progress and registry
changes over MQTT when enabled, accepts cancel requests on the MQTT cancel
topic, and writes run metrics to InfluxDB when enabled.

On first start with an empty operator table an admin account is created
and its password logged once.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

// runServe wires every component and blocks until ctx is cancelled.
// Deferred closes run in reverse order: API, InfluxDB, MQTT, registry
// sockets, database.
func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := openApp(ctx, opts, false)
	if err != nil {
		return err
	}
	defer a.close()

	log := a.log
	cfg := a.cfg
	log.Info("starting scanctl",
		"version", version,
		"commit", commit,
		"build_date", date,
		"console_id", cfg.Console.ID,
	)

	if err := cfg.ValidateAPI(); err != nil {
		return fmt.Errorf("validating api config: %w", err)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(ctx, cfg.MQTT)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
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
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// The hub is shared: the console broadcasts on it and the API server
	// upgrades clients onto it.
	hub := api.NewHub(cfg.WebSocket, log)
	go hub.Run(ctx)

	svcOpts := console.Options{Hub: hub}
	if mqttClient != nil {
		svcOpts.MQTT = mqttClient
	}
	if influxClient != nil {
		svcOpts.Metrics = influxClient
	}
	a.startConsole(svcOpts)

	if mqttClient != nil {
		topic := mqttClient.Topics().DispatchCancel()
		if err := mqttClient.Subscribe(topic, byte(cfg.MQTT.QoS), a.svc.HandleCancelMessage); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		log.Info("listening for cancel requests", "topic", topic)
	}

	operators := auth.NewOperatorRepository(a.db.DB)
	if _, err := auth.SeedAdmin(ctx, operators, log.Logger); err != nil {
		return fmt.Errorf("seeding admin operator: %w", err)
	}

	deps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Security:    cfg.Security,
		Logger:      log,
		Console:     a.svc,
		Operators:   operators,
		DB:          a.db.DB,
		Adapters:    a.adapterFilter().Adapters,
		ExternalHub: hub,
		Version:     version,
	}
	if mqttClient != nil {
		deps.MQTT = mqttClient
	}
	if influxClient != nil {
		deps.InfluxDB = influxClient
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

	if err := healthCheck(ctx, a.db, mqttClient, influxClient, srv); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal",
		"controllers", len(a.reg.Controllers()),
		"enabled_units", len(a.reg.EnabledUnits()),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// API runs are detached from request contexts; stop any still in
	// flight before the sockets close.
	if run := a.svc.Engine().Active(); run != nil {
		log.Warn("cancelling active run", "run_id", run.ID)
		run.Cancel()
		<-run.Done()
	}

	log.Info("scanctl stopped")
	return nil
}

// healthCheck verifies all infrastructure connections are healthy.
// mqttClient and influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, srv *api.Server) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
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
	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
