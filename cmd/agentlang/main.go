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
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentlang-ai/agentlang/internal/log"
)

var (
	configDir string
	userID    string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:   "agentlang",
	Short: "Agentlang - evaluate pattern-oriented workflow modules",
	Long: `Agentlang loads module manifests and evaluates events against them:
entities persist through resolvers, workflows run transactionally, and
suspended executions can be resumed later.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory containing agentlang.yaml")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "acting user id")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (overrides configuration)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(resumeCmd)
}

func main() {
	defer func() { _ = log.Sync() }()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
