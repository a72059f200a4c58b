// Azimuth Device Core - Azure IoT Hub device agent
//
// This is the main entry point for the Azimuth device agent. The agent
// maintains a single MQTT connection to an Azure IoT Hub and provides:
//   - Periodic device-to-cloud telemetry with offline spooling
//   - Cloud-to-device message handling
//   - Device twin synchronisation (full GET plus desired-property pushes)
//   - SAS-token authentication anchored to NTP time
package main

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azimuth-iot/azimuth-device-core/internal/history"
	"github.com/azimuth-iot/azimuth-device-core/internal/infrastructure/clock"
	"github.com/azimuth-iot/azimuth-device-core/internal/infrastructure/config"
	"github.com/azimuth-iot/azimuth-device-core/internal/infrastructure/logging"
	"github.com/azimuth-iot/azimuth-device-core/internal/iothub"
	"github.com/azimuth-iot/azimuth-device-core/internal/spool"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Azimuth device core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Parse device credentials
	creds, err := iothub.ParseConnectionString(cfg.Hub.ConnectionString)
	if err != nil {
		log.Error("invalid connection string",
			"value", logging.RedactConnectionString(cfg.Hub.ConnectionString),
		)
		return fmt.Errorf("parsing connection string: %w", err)
	}
	log.Info("device credentials loaded",
		"host", creds.HostName(),
		"device_id", creds.DeviceID(),
	)

	// Open telemetry spool (optional)
	var sp *spool.Spool
	if cfg.Spool.Enabled {
		sp, err = spool.Open(spool.Config{
			Path:       cfg.Spool.Path,
			MaxEntries: cfg.Spool.MaxEntries,
		})
		if err != nil {
			return fmt.Errorf("opening telemetry spool: %w", err)
		}
		defer func() {
			log.Info("closing telemetry spool")
			if closeErr := sp.Close(); closeErr != nil {
				log.Error("error closing spool", "error", closeErr)
			}
		}()
		log.Info("telemetry spool opened", "path", cfg.Spool.Path)
	} else {
		log.Info("telemetry spool disabled")
	}

	// Connect local history mirror (optional)
	var hist *history.Client
	if cfg.InfluxDB.Enabled {
		hist, err = history.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting history mirror: %w", err)
		}
		defer func() {
			log.Info("closing history mirror")
			if closeErr := hist.Close(); closeErr != nil {
				log.Error("error closing history mirror", "error", closeErr)
			}
		}()
		hist.SetOnError(func(err error) {
			log.Error("history write error", "error", err)
		})
		log.Info("history mirror connected", "url", cfg.InfluxDB.URL)
	} else {
		log.Info("history mirror disabled")
	}

	// Time source for SAS token expiry
	var src clock.Source
	if cfg.NTP.Enabled {
		src = clock.NewNTPSource(cfg.NTP.Server, cfg.NTPTimeout())
		log.Info("using NTP time source", "server", cfg.NTP.Server)
	} else {
		src = clock.SystemSource{}
		log.Info("using system time source")
	}

	// Hub client
	sessionCfg, err := sessionConfig(cfg)
	if err != nil {
		return err
	}
	client := iothub.New(creds, iothub.Options{
		Session: sessionCfg,
		Now:     src.Now,
		Logger:  log.Component("iothub"),
	})

	agent := &agent{
		cfg:    cfg,
		log:    log,
		client: client,
		spool:  sp,
		hist:   hist,

		interval: cfg.TelemetryInterval(),
		started:  time.Now(),
	}
	agent.registerHandlers()

	if err := client.Init(); err != nil {
		return fmt.Errorf("initialising hub session: %w", err)
	}
	if err := client.Connect(); err != nil {
		return fmt.Errorf("connecting to hub: %w", err)
	}
	agent.wasConnected = true
	if hist != nil {
		hist.WriteConnectionEvent(client.DeviceID(), "connected")
	}

	// Replay telemetry spooled before the previous shutdown; the
	// in-loop drain only fires on reconnect transitions.
	agent.drainSpool(ctx)

	// Startup twin flow: fetch the full twin and report initial state.
	if err := client.RequestTwin(); err != nil {
		log.Warn("startup twin request failed", "error", err)
	}
	agent.reportState()

	log.Info("initialisation complete, entering main loop",
		"telemetry_interval", agent.interval,
		"loop_tick", cfg.LoopTick(),
	)

	agent.loop(ctx)

	log.Info("shutdown signal received, cleaning up")
	client.Close()

	log.Info("Azimuth device core stopped")
	return nil
}

// agent ties the hub client to the spool, the history mirror, and the
// telemetry cadence. Everything runs on the main goroutine.
type agent struct {
	cfg    *config.Config
	log    *logging.Logger
	client *iothub.Client
	spool  *spool.Spool
	hist   *history.Client

	interval     time.Duration
	started      time.Time
	messageID    uint64
	wasConnected bool
}

// telemetryEvent is the D2C payload shape.
type telemetryEvent struct {
	DeviceID      string `json:"deviceId"`
	MessageID     uint64 `json:"messageId"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
}

// desiredProperties is the subset of the twin desired document the
// agent acts on.
type desiredProperties struct {
	TelemetryInterval int `json:"telemetryInterval"`
}

// twinDocument is the full-twin shape returned by a twin GET.
type twinDocument struct {
	Desired desiredProperties `json:"desired"`
}

func (a *agent) registerHandlers() {
	a.client.OnC2DMessage(func(topic string, payload []byte) {
		a.log.Info("cloud-to-device message",
			"topic", topic,
			"bytes", len(payload),
		)
	})

	a.client.OnDesiredProperties(func(payload []byte, version int) {
		a.log.Info("desired properties update", "version", version)
		var desired desiredProperties
		if err := json.Unmarshal(payload, &desired); err != nil {
			a.log.Warn("unparseable desired properties", "error", err)
			return
		}
		a.applyDesired(desired)
	})

	a.client.OnTwinReceived(func(payload []byte) {
		a.log.Info("full twin received", "bytes", len(payload))
		var twin twinDocument
		if err := json.Unmarshal(payload, &twin); err != nil {
			a.log.Warn("unparseable twin document", "error", err)
			return
		}
		a.applyDesired(twin.Desired)
	})
}

// applyDesired applies a desired-property document and reports the
// resulting state back to the hub.
func (a *agent) applyDesired(desired desiredProperties) {
	if desired.TelemetryInterval <= 0 {
		return
	}
	next := time.Duration(desired.TelemetryInterval) * time.Second
	if next == a.interval {
		return
	}
	a.log.Info("telemetry interval changed",
		"from", a.interval,
		"to", next,
	)
	a.interval = next
	a.reportState()
}

// reportState publishes the agent's current state as reported
// properties. Failures are logged; the next state change retries.
func (a *agent) reportState() {
	state := map[string]interface{}{
		"firmwareVersion":   version,
		"telemetryInterval": int(a.interval.Seconds()),
		"deviceStarted":     a.started.UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(state)
	if err != nil {
		a.log.Error("marshalling reported state", "error", err)
		return
	}
	if err := a.client.UpdateReportedProperties(payload); err != nil {
		a.log.Warn("reporting state failed", "error", err)
	}
}

// loop is the cooperative main loop: service the protocol on every
// tick, publish telemetry on the configured interval, and drain the
// spool after reconnects.
func (a *agent) loop(ctx context.Context) {
	tick := time.NewTicker(a.cfg.LoopTick())
	defer tick.Stop()

	lastTelemetry := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}

		a.client.Loop()
		a.observeConnection(ctx)

		if time.Since(lastTelemetry) >= a.interval {
			lastTelemetry = time.Now()
			a.publishTelemetry(ctx)
		}
	}
}

// observeConnection logs connectivity transitions and drains the spool
// when the link comes back.
func (a *agent) observeConnection(ctx context.Context) {
	connected := a.client.IsConnected()
	if connected == a.wasConnected {
		return
	}
	a.wasConnected = connected

	if !connected {
		a.log.Warn("hub connection lost")
		if a.hist != nil {
			a.hist.WriteConnectionEvent(a.client.DeviceID(), "disconnected")
		}
		return
	}

	a.log.Info("hub connection restored")
	if a.hist != nil {
		a.hist.WriteConnectionEvent(a.client.DeviceID(), "reconnected")
	}
	a.drainSpool(ctx)
}

// publishTelemetry sends one telemetry event, spooling it when the hub
// is unreachable.
func (a *agent) publishTelemetry(ctx context.Context) {
	a.messageID++
	event := telemetryEvent{
		DeviceID:      a.client.DeviceID(),
		MessageID:     a.messageID,
		UptimeSeconds: int64(time.Since(a.started).Seconds()),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		a.log.Error("marshalling telemetry", "error", err)
		return
	}

	if err := a.client.SendTelemetry(payload, ""); err != nil {
		a.log.Warn("telemetry publish failed, spooling", "error", err)
		a.enqueue(ctx, payload, "")
		return
	}

	a.log.Debug("telemetry sent", "message_id", event.MessageID)
	if a.hist != nil {
		a.hist.WriteTelemetry(a.client.DeviceID(), map[string]interface{}{
			"uptime_seconds": float64(event.UptimeSeconds),
		})
	}
}

// enqueue spools one unsent event, best-effort.
func (a *agent) enqueue(ctx context.Context, payload []byte, properties string) {
	if a.spool == nil {
		return
	}
	if err := a.spool.Enqueue(ctx, payload, properties); err != nil {
		a.log.Error("spooling telemetry failed", "error", err)
		return
	}
	if a.hist != nil {
		if depth, err := a.spool.Len(ctx); err == nil {
			a.hist.WriteSpoolDepth(a.client.DeviceID(), depth)
		}
	}
}

// drainSpool replays spooled telemetry oldest-first in batches until
// the spool is empty or a publish fails.
func (a *agent) drainSpool(ctx context.Context) {
	if a.spool == nil {
		return
	}

	batch := a.cfg.Spool.DrainBatch
	drained := 0
	for {
		entries, err := a.spool.Peek(ctx, batch)
		if err != nil {
			a.log.Error("reading spool failed", "error", err)
			return
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			if err := a.client.SendTelemetry(e.Payload, e.Properties); err != nil {
				a.log.Warn("spool drain interrupted", "error", err, "drained", drained)
				return
			}
			if err := a.spool.Remove(ctx, e.ID); err != nil {
				a.log.Error("removing drained entry failed", "error", err)
				return
			}
			drained++
		}
	}

	if drained > 0 {
		a.log.Info("spool drained", "events", drained)
		if a.hist != nil {
			a.hist.WriteSpoolDepth(a.client.DeviceID(), 0)
		}
	}
}

// sessionConfig maps file configuration onto the hub session settings.
func sessionConfig(cfg *config.Config) (iothub.SessionConfig, error) {
	sc := iothub.SessionConfig{
		APIVersion:             cfg.Hub.APIVersion,
		Port:                   cfg.Hub.Port,
		TokenTTL:               cfg.TokenTTL(),
		RenewalMargin:          cfg.RenewalMargin(),
		ConnectAttempts:        cfg.Hub.ConnectAttempts,
		ConnectRetryDelay:      cfg.ConnectRetryDelay(),
		KeepAlive:              cfg.KeepAlive(),
		AllowInsecureFallback:  cfg.TLS.AllowInsecureFallback,
		DisableReconnectInLoop: !cfg.Hub.ReconnectInLoop,
	}

	if cfg.TLS.CAFile != "" {
		pem, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return sc, fmt.Errorf("reading CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return sc, fmt.Errorf("no certificates found in %s", cfg.TLS.CAFile)
		}
		sc.RootCAs = pool
	}

	return sc, nil
}

// getConfigPath returns the configuration file path.
// Uses AZIMUTH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("AZIMUTH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
