// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/agentlang-ai/agentlang/internal/log"
	_ "github.com/agentlang-ai/agentlang/internal/sqlitedriver"
	"github.com/agentlang-ai/agentlang/pkg/config"
	"github.com/agentlang-ai/agentlang/pkg/execgraph"
	"github.com/agentlang-ai/agentlang/pkg/modloader"
	"github.com/agentlang-ai/agentlang/pkg/resolver"
	"github.com/agentlang-ai/agentlang/pkg/resolver/sqlstore"
	"github.com/agentlang-ai/agentlang/pkg/runtime"
	"github.com/agentlang-ai/agentlang/pkg/schema"
)

var (
	eventName string
	attrsJSON string
	resumeVal string
)

var runCmd = &cobra.Command{
	Use:   "run <manifest>...",
	Short: "Load module manifests and fire one event",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), args)
		if err != nil {
			return err
		}
		var attrs map[string]any
		if attrsJSON != "" {
			if err := json.Unmarshal([]byte(attrsJSON), &attrs); err != nil {
				return fmt.Errorf("parse --attrs: %w", err)
			}
		}
		result, err := rt.RunEvent(cmd.Context(), userID, eventName, attrs)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate <manifest>...",
	Short: "Validate module manifests without loading them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		for _, path := range args {
			if _, err := modloader.LoadFile(path); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			fmt.Printf("%s: ok\n", path)
		}
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <suspension-id> <manifest>...",
	Short: "Resume a suspended workflow",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := buildRuntime(cmd.Context(), args[1:])
		if err != nil {
			return err
		}
		var value any
		if resumeVal != "" {
			if err := json.Unmarshal([]byte(resumeVal), &value); err != nil {
				return fmt.Errorf("parse --value: %w", err)
			}
		}
		result, err := rt.Resume(cmd.Context(), args[0], value)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

func init() {
	runCmd.Flags().StringVarP(&eventName, "event", "e", "", "fully-qualified event to fire (Module/Event)")
	runCmd.Flags().StringVarP(&attrsJSON, "attrs", "a", "", "event attributes as JSON")
	_ = runCmd.MarkFlagRequired("event")
	resumeCmd.Flags().StringVar(&resumeVal, "value", "", "resume value as JSON")
}

func buildRuntime(ctx context.Context, manifests []string) (*runtime.Runtime, error) {
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.DSN = dbPath
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}

	schemas := schema.NewRegistry()
	resolvers := resolver.NewRegistry()
	store, err := sqlstore.New(schemas, sqlstore.Config{
		DSN:     cfg.DefaultDSN(),
		Dialect: &sqlstore.SQLiteDialect{},
		Logger:  log.Logger(),
	})
	if err != nil {
		return nil, err
	}
	resolvers.RegisterFactory(resolver.DefaultName, func() (resolver.Resolver, error) {
		return store, nil
	})

	// The suspension store gets its own database file. The sqlite resolver
	// pool is capped at a single connection, and a suspension is saved while
	// the invocation transaction still holds it.
	suspensions, err := execgraph.NewStore(filepath.Join(cfg.DataDir, "suspensions.db"), log.Logger())
	if err != nil {
		return nil, err
	}

	rt := runtime.New(schemas, resolvers, runtime.Options{
		Config:      cfg,
		Logger:      log.Logger(),
		Suspensions: suspensions,
	})
	for _, path := range manifests {
		m, err := modloader.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := rt.LoadModule(ctx, m); err != nil {
			return nil, fmt.Errorf("load %s: %w", m.Name, err)
		}
	}
	return rt, nil
}

func printJSON(result any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(runtime.Plain(result))
}
