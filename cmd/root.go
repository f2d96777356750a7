// Copyright (C) 2024 The Dagu Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	quiet   bool
)

// rootCmd builds the "rove" command tree: a cooperative scheduling
// engine for quality-control tests over weather observations, served
// over a streaming RPC surface and a plain HTTP ops surface.
func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rove",
		Short: "Quality-control scheduling engine for weather observations",
		Long:  "rove serves the QC test catalog over a streaming RPC surface, scheduling each request's test sub-DAG with bounded I/O and compute concurrency.",
	}

	cmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default searches $HOME/.config/rove and .)")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "run in quiet mode")

	cmd.AddCommand(serveCmd())
	cmd.AddCommand(versionCmd())
	return cmd
}
