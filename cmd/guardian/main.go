// Command guardian watches on-chain wallet balances and fires the panic
// trigger over HTTP when it sees a critical drain.
//
// It runs apart from the API server on purpose: if the machine holding the
// server is seized, a guardian running elsewhere still screams.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minitoshi/scream/internal/chain"
	"github.com/minitoshi/scream/internal/config"
	"github.com/minitoshi/scream/internal/guardian"
	"github.com/minitoshi/scream/internal/logging"
)

func main() {
	logger := logging.New(envOrDefault("LOG_LEVEL", "info"), "text")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.RPCURL == "" {
		logger.Error("RPC_URL is required for the standalone guardian")
		os.Exit(1)
	}
	if len(cfg.GuardianWatch) == 0 {
		logger.Error("GUARDIAN_WATCH_ADDRESSES is required")
		os.Exit(1)
	}

	apiURL := envOrDefault("SCREAM_API_URL", "http://localhost:8080")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source, err := chain.Dial(ctx, cfg.RPCURL, cfg.ChainDecimals, logger)
	if err != nil {
		logger.Error("failed to connect to chain RPC", "error", err)
		os.Exit(1)
	}
	defer source.Close()

	mgr := guardian.NewManager(
		source,
		&logAlerter{logger: logger},
		&httpTriggerer{apiURL: apiURL, client: &http.Client{Timeout: 15 * time.Second}},
		logger,
	)

	for _, addr := range cfg.GuardianWatch {
		mgr.Watch(ctx, guardian.Config{
			Address:       addr,
			DropThreshold: cfg.GuardianDropThreshold,
			RapidWindow:   cfg.GuardianRapidWindow,
			RapidLimit:    cfg.GuardianRapidLimit,
			PollInterval:  cfg.GuardianPollInterval,
			AutoTrigger:   cfg.GuardianAutoTrigger,
			Aggressor:     cfg.GuardianAggressor,
			Secret:        cfg.GuardianSecret,
		})
	}

	// Prefer push observations over polling when the RPC endpoint supports
	// head subscriptions (ws://); the poll loop still runs as a backstop.
	if err := source.SubscribeHeads(ctx, cfg.GuardianWatch, mgr.Observe); err != nil {
		logger.Info("head subscription unavailable, polling only", "error", err)
	}

	logger.Info("guardian watching",
		"wallets", len(cfg.GuardianWatch),
		"rpc", cfg.RPCURL,
		"api", apiURL,
		"auto_trigger", cfg.GuardianAutoTrigger,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("shutdown signal received", "signal", sig.String())

	cancel()
	mgr.Wait()
	logger.Info("guardian stopped")
}

// logAlerter writes threat alerts to the log. The API server handles webhook
// and WebSocket fan-out; the daemon's record is its own log stream.
type logAlerter struct {
	logger *slog.Logger
}

func (a *logAlerter) ThreatAlert(_ context.Context, alert guardian.Alert) {
	log := a.logger.Warn
	if alert.Severity == guardian.SeverityCritical {
		log = a.logger.Error
	}
	log("threat detected",
		"address", alert.Address,
		"severity", alert.Severity,
		"score", alert.Score,
		"delta", alert.Delta,
		"new_balance", alert.NewBalance,
		"drop_percent", fmt.Sprintf("%.1f", alert.DropPercent),
		"outflows", alert.Outflows,
	)
}

// httpTriggerer fires the panic cascade through the API server.
type httpTriggerer struct {
	apiURL string
	client *http.Client
}

func (t *httpTriggerer) Trigger(ctx context.Context, owner string, secret []byte, aggressor string) error {
	body, err := json.Marshal(map[string]string{
		"owner":     owner,
		"secret":    string(secret),
		"aggressor": aggressor,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/v1/panic", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("trigger rejected with status %d", resp.StatusCode)
	}
	return nil
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
