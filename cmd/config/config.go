// Package config is a subcommand of the root command. It lists and
// validates the built-in cache hierarchy configuration presets.
package config

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"fmt"
	"sort"
	"strings"

	simconfig "cachexplorer/internal/config"

	"github.com/spf13/cobra"
)

const cmdName = "config"
const appName = "cachexplorer"

var examples = []string{
	fmt.Sprintf("  List every built-in preset:     $ %s %s list", appName, cmdName),
	fmt.Sprintf("  Show one preset's geometry:      $ %s %s show intel", appName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "List and inspect the built-in cache configuration presets",
	Long:          "",
	Example:       strings.Join(examples, "\n"),
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(showCmd)
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every built-in configuration preset name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := simconfig.PresetNames()
		if err != nil {
			return err
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Println(name)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <preset>",
	Short: "Print one preset's resolved cache hierarchy geometry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := simconfig.Load(args[0])
		if err != nil {
			return err
		}
		cmd.Printf("L1D: %d sets x %d ways, %d-byte lines, %s eviction, %s\n", cfg.L1D.NumSets, cfg.L1D.Associativity, cfg.L1D.LineSize, cfg.L1D.Eviction, cfg.L1D.WritePolicy)
		cmd.Printf("L1I: %d sets x %d ways, %d-byte lines, %s eviction, %s\n", cfg.L1I.NumSets, cfg.L1I.Associativity, cfg.L1I.LineSize, cfg.L1I.Eviction, cfg.L1I.WritePolicy)
		cmd.Printf("L2:  %d sets x %d ways, %d-byte lines, %s eviction, %s\n", cfg.L2.NumSets, cfg.L2.Associativity, cfg.L2.LineSize, cfg.L2.Eviction, cfg.L2.WritePolicy)
		if cfg.L3 != nil {
			cmd.Printf("L3:  %d sets x %d ways, %d-byte lines, %s eviction, %s\n", cfg.L3.NumSets, cfg.L3.Associativity, cfg.L3.LineSize, cfg.L3.Eviction, cfg.L3.WritePolicy)
		}
		cmd.Printf("Inclusion: %s\n", cfg.Inclusion)
		cmd.Printf("DTLB: %d entries, ITLB: %d entries, page shift: %d\n", cfg.DTLBEntries, cfg.ITLBEntries, cfg.PageShift)
		return nil
	},
}
