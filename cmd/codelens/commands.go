// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/AleutianAI/codelens/services/intel"
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	configPath    string
	workspaceRoot string
	port          int
	debug         bool

	rootCmd = &cobra.Command{
		Use:   "codelens",
		Short: "LSP-backed code intelligence service",
		Long: `Codelens drives language servers over LSP to answer navigation,
find-usages, call hierarchy, documentation, and dependency queries
for any workspace with a configured language server.`,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the code intelligence API server",
		RunE:  runServe, // Defined in serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the service version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(intel.ServiceVersion)
		},
	}
)

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")
	serveCmd.Flags().StringVarP(&workspaceRoot, "workspace", "w", "", "Default workspace root (absolute path)")
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging and Gin debug mode")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}
