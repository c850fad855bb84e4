// Command hsmsim-server runs the HSM simulator's TCP listener: it loads
// configuration (flags, environment, optional config file, in that order of
// override via viper), constructs the immutable LMK and policy, and serves
// one internal/session.Serve loop per accepted connection. Structured around
// the teacher's obfs4-server accept loop and signal-driven shutdown, with
// pluggable-transport setup replaced by direct TCP listen/accept.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/paysimlabs/hsmsim/internal/hsm"
	"github.com/paysimlabs/hsmsim/internal/session"
)

// loadConfigFile reads an optional YAML config file (port, lmk, header,
// debug, skip_parity, approve_all) and merges it into viper below flag/env
// precedence. A missing path is not an error — flags/env/defaults still
// apply.
func loadConfigFile(path string) error {
	if path == "" {
		return nil
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("hsmsim-server: reading config file: %w", err)
	}

	var values map[string]any
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return fmt.Errorf("hsmsim-server: parsing config file %s: %w", path, err)
	}

	return viper.MergeConfigMap(values)
}

// handlerChan mirrors the teacher's connection-counting channel: +1 when a
// connection's goroutine starts, -1 when it ends, so shutdown can wait for
// in-flight connections to drain.
var handlerChan = make(chan int)

func acceptLoop(ln net.Listener, h *hsm.HSM, header []byte, log zerolog.Logger) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}

		connLog := log.With().Str("conn_id", uuid.NewString()).Str("remote", conn.RemoteAddr().String()).Logger()

		handlerChan <- 1
		go func() {
			defer func() { handlerChan <- -1 }()
			connLog.Info().Msg("connection accepted")
			session.Serve(conn, h, header, connLog)
			connLog.Info().Msg("connection closed")
		}()
	}
}

func run(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	if err := loadConfigFile(configPath); err != nil {
		return err
	}

	port := viper.GetInt("port")
	lmkHex := viper.GetString("lmk")
	header := []byte(viper.GetString("header"))
	debug := viper.GetBool("debug")
	skipParity := viper.GetBool("skip_parity")
	approveAll := viper.GetBool("approve_all")

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	lmk, err := hsm.NewLMK(lmkHex)
	if err != nil {
		return fmt.Errorf("hsmsim-server: invalid LMK: %w", err)
	}

	h := hsm.New(lmk, hsm.Policy{SkipParity: skipParity, ApproveAll: approveAll})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("hsmsim-server: listen: %w", err)
	}
	log.Info().Int("port", port).Bool("skip_parity", skipParity).Bool("approve_all", approveAll).Msg("listening")

	go acceptLoop(ln, h, header, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Mirrors the teacher's obfs4-server shutdown: wait for the first
	// signal, stop accepting, then either return immediately (SIGTERM) or
	// wait for in-flight connections to drain or a second signal (SIGINT).
	var numHandlers int
	var sig os.Signal
	for sig == nil {
		select {
		case n := <-handlerChan:
			numHandlers += n
		case sig = <-sigChan:
		}
	}
	log.Info().Str("signal", sig.String()).Msg("shutting down")
	ln.Close()

	if sig == syscall.SIGTERM {
		return nil
	}

	sig = nil
	for sig == nil && numHandlers != 0 {
		select {
		case n := <-handlerChan:
			numHandlers += n
		case sig = <-sigChan:
		}
	}
	return nil
}

func main() {
	root := &cobra.Command{
		Use:   "hsmsim-server",
		Short: "Run the payment HSM protocol simulator",
		RunE:  run,
	}

	flags := root.Flags()
	flags.Int("port", 1500, "TCP port to listen on")
	flags.String("lmk", "deafbeedeafbeedeafbeedeafbeedeaf", "Local Master Key, as 32 hex characters")
	flags.String("header", "", "fixed per-deployment frame header")
	flags.Bool("debug", false, "enable debug logging")
	flags.Bool("skip_parity", false, "skip odd-parity checks on terminal keys and PVK pairs")
	flags.Bool("approve_all", false, "override recoverable validation errors to success")
	flags.String("config", "", "optional path to a YAML config file")

	viper.SetEnvPrefix("HSMSIM")
	viper.AutomaticEnv()
	_ = viper.BindPFlags(flags)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "hsmsim-server:", err)
		os.Exit(1)
	}
}
