// Padmond is the monitoring daemon for the drum pad controller.
//
// It loads configuration, starts the HTTP/WebSocket server, and ingests the
// controller's serial sample stream. Shutdown is handled gracefully on
// SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/strikeline/padmon/internal/app"
	"github.com/strikeline/padmon/internal/config"
	"github.com/strikeline/padmon/internal/mqtt"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "/etc/padmon/padmond.toml", "Path to config TOML")
		bind       = pflag.String("bind", "", "HTTP bind address (overrides config)")
		serialPort = pflag.StringP("port", "p", "", "Serial port to auto-connect (overrides config)")
	)
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}

	logger := log.New(os.Stdout, "padmond ", log.LstdFlags|log.Lmicroseconds)

	var publisher mqtt.Publisher
	if cfg.MQTT.Enabled {
		p, err := mqtt.Connect(cfg.MQTT.Broker, cfg.MQTT.ClientID, cfg.MQTT.Topic, logger)
		if err != nil {
			// The broker is optional infrastructure; monitoring works
			// without it.
			logger.Printf("mqtt disabled: %v", err)
		} else {
			publisher = p
		}
	}

	a, err := app.New(app.Options{
		Logger:     logger,
		Cfg:        cfg,
		ConfigPath: *configPath,
		Bind:       *bind,
		Publisher:  publisher,
	})
	if err != nil {
		log.Fatalf("init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("padmond failed: %v", err)
	}

	// Brief pause so in-flight log writes can flush before exit.
	time.Sleep(50 * time.Millisecond)
}
