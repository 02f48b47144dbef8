// Copyright 2026 The Originserver Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command originserver runs the configuration-driven HTTP/1.1 origin
// server: it parses a single originfile argument and, unless -t/--test
// is given, starts every configured virtual server until SIGINT/SIGTERM.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"
	"github.com/klauspost/cpuid/v2"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"

	"github.com/originserver/originserver/config"
	"github.com/originserver/originserver/config/originfile"
	"github.com/originserver/originserver/httpserver"
	"github.com/originserver/originserver/internal/applog"
	"github.com/originserver/originserver/internal/signals"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var testOnly bool
	var debug bool

	cmd := &cobra.Command{
		Use:   "originserver <config-file>",
		Short: "Run the configuration-driven HTTP/1.1 origin server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], testOnly, debug)
		},
		SilenceUsage: true,
	}

	cmd.Flags().BoolVarP(&testOnly, "test", "t", false, "parse and validate the config, print it, and exit without serving")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug-level logging")
	return cmd
}

func run(configPath string, testOnly, debug bool) error {
	logger := applog.New(debug)
	defer logger.Sync() //nolint:errcheck

	cfg, err := originfile.Parse(configPath)
	if err != nil {
		return fmt.Errorf("originserver: parsing config: %w", err)
	}

	if testOnly {
		return printConfig(cfg)
	}

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Infof))
	defer undo()
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	logger.Info("cpu",
		zap.String("brand", cpuid.CPU.BrandName),
		zap.Int("logical_cores", cpuid.CPU.LogicalCores),
		zap.Bool("aes_ni", cpuid.CPU.Supports(cpuid.AESNI)),
	)

	ctx, stop := signals.WatchContext(context.Background())
	defer stop()

	manager := httpserver.NewServerManager(cfg, logger)
	return manager.Run(ctx)
}

// printConfig serializes cfg back to TOML for operator inspection, the
// -t counterpart to `caddy adapt`. Config is first reshaped into a
// TOML-friendly mirror (string-keyed error pages, duration fields spelled
// out) since TOML tables require string keys and github.com/BurntSushi/toml
// has no notion of time.Duration.
func printConfig(cfg *config.Config) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(printableConfig(cfg)); err != nil {
		return fmt.Errorf("originserver: encoding config: %w", err)
	}
	_, err := os.Stdout.Write(buf.Bytes())
	return err
}

type printableServer struct {
	Host              string
	Listen            []int
	ServerName        string
	ErrorPages        map[string]string
	ClientMaxBodySize int64
	Timeouts          map[string]string
	Locations         []printableLocation
}

type printableLocation struct {
	Prefix         string
	Root           string
	Index          string
	Autoindex      bool
	Methods        []string
	CGIExtensions  []string
	RedirectStatus int    `toml:",omitempty"`
	RedirectTarget string `toml:",omitempty"`
}

func printableConfig(cfg *config.Config) map[string][]printableServer {
	servers := make([]printableServer, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		errorPages := make(map[string]string, len(sc.ErrorPages))
		for code, page := range sc.ErrorPages {
			errorPages[fmt.Sprintf("%d", code)] = page
		}

		locations := make([]printableLocation, 0, len(sc.Locations))
		for _, loc := range sc.Locations {
			locations = append(locations, printableLocation{
				Prefix:         loc.Prefix,
				Root:           loc.Root,
				Index:          loc.Index,
				Autoindex:      loc.Autoindex,
				Methods:        sortedKeys(loc.Methods),
				CGIExtensions:  sortedKeys(loc.CGIExtensions),
				RedirectStatus: loc.RedirectStatus,
				RedirectTarget: loc.RedirectTarget,
			})
		}

		servers = append(servers, printableServer{
			Host:              sc.Host,
			Listen:            sc.Listen,
			ServerName:        sc.ServerName,
			ErrorPages:        errorPages,
			ClientMaxBodySize: sc.ClientMaxBodySize,
			Timeouts: map[string]string{
				"request":           sc.Timeouts.Request.String(),
				"response_handling": sc.Timeouts.ResponseHandling.String(),
				"response_delivery": sc.Timeouts.ResponseDelivery.String(),
				"idle":              sc.Timeouts.Idle.String(),
			},
			Locations: locations,
		})
	}
	return map[string][]printableServer{"server": servers}
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
