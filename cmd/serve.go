// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The Openbeamline Authors

package cmd

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openbeamline/motord/internal/config"
	"github.com/openbeamline/motord/internal/driver"
	"github.com/openbeamline/motord/internal/ioc"
	"github.com/openbeamline/motord/pkg/motorrec"
	"github.com/spf13/cobra"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the soft IOC server",
	Long: `Run the positioner record engine and expose it over pvwire.

Each configured motor becomes one record, reachable under its pvwire
address through the WebSocket endpoint /pv. Motion is dispatched to the
motor's driver (in-memory simulator or serial hardware), and the raw
position is polled back into the readback chain at the configured
interval.

Example:
  motord serve --config motord.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "motord.yaml", "Configuration file")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.New(os.Stderr, "motord: ", log.LstdFlags)

	srv := ioc.NewServer(ioc.Options{
		Username:     cfg.Server.Username,
		Password:     cfg.Server.Password,
		PollInterval: cfg.PollInterval(),
		Logger:       logger,
	})

	for i := range cfg.Motors {
		m := &cfg.Motors[i]

		mover, err := buildDriver(m)
		if err != nil {
			return fmt.Errorf("motor %q: %w", m.Name, err)
		}

		rc := m.RecordConfig()
		rc.Mover = mover
		rec, err := motorrec.New(rc)
		if err != nil {
			return fmt.Errorf("motor %q: %w", m.Name, err)
		}

		srv.Add(m.Address, rec, mover)
		logger.Printf("record %s at 0x%X (%s driver)", m.Name, m.Address, m.Driver.Type)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Printf("listening on %s", cfg.Server.Listen)
	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}

func buildDriver(m *config.MotorConfig) (motorrec.Mover, error) {
	switch m.Driver.Type {
	case "sim":
		return driver.NewSim(0), nil
	case "serial":
		return driver.OpenSerial(m.Driver.Port, m.Driver.Baud)
	}
	return nil, fmt.Errorf("unknown driver type %q", m.Driver.Type)
}
