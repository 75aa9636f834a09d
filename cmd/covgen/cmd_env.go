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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/covgen/services/covgen/sandbox"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// envCmd manages target container environments.
//
// # Description
//
// Thin wrappers over the container runtime for the environments the
// pipeline runs against: pulling images, starting and removing
// containers, and copying artifacts out.
//
// # Examples
//
//	covgen env pull python:3.12-slim
//	covgen env start target-app python:3.12-slim
//	covgen env status target-app
//	covgen env copy target-app /app/coverage.json ./coverage.json
//	covgen env remove target-app
var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Manage target container environments",
}

var envPullCmd = &cobra.Command{
	Use:   "pull [image]",
	Short: "Pull a target image",
	Args:  cobra.ExactArgs(1),
	Run:   runEnvPull,
}

var envStartCmd = &cobra.Command{
	Use:   "start [name] [image]",
	Short: "Start a detached container from an image, pulling it if needed",
	Args:  cobra.ExactArgs(2),
	Run:   runEnvStart,
}

var envStatusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Show whether a container exists and is running",
	Args:  cobra.ExactArgs(1),
	Run:   runEnvStatus,
}

var envCopyCmd = &cobra.Command{
	Use:   "copy [name] [src] [dst]",
	Short: "Copy a file out of a container",
	Args:  cobra.ExactArgs(3),
	Run:   runEnvCopy,
}

var envRemoveCmd = &cobra.Command{
	Use:   "remove [name]",
	Short: "Force-remove a container",
	Args:  cobra.ExactArgs(1),
	Run:   runEnvRemove,
}

// =============================================================================
// COMMAND INITIALIZATION
// =============================================================================

func init() {
	envCmd.AddCommand(envPullCmd)
	envCmd.AddCommand(envStartCmd)
	envCmd.AddCommand(envStatusCmd)
	envCmd.AddCommand(envCopyCmd)
	envCmd.AddCommand(envRemoveCmd)
}

// =============================================================================
// COMMAND IMPLEMENTATION
// =============================================================================

// envManager builds the container lifecycle manager for env subcommands.
func envManager() *sandbox.DockerManager {
	return sandbox.NewDockerManager(sandboxConfig(), newLogger("cli"))
}

func runEnvPull(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	image := args[0]
	fmt.Printf("Pulling %s...\n", image)
	if err := envManager().Pull(ctx, image); err != nil {
		fmt.Fprintf(os.Stderr, "Pull failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Done.")
}

func runEnvStart(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	name, image := args[0], args[1]
	if err := envManager().EnsureRunning(ctx, name, image); err != nil {
		fmt.Fprintf(os.Stderr, "Start failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Container %s is running.\n", name)
}

func runEnvStatus(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	name := args[0]
	manager := envManager()
	exists, err := manager.ContainerExists(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
		os.Exit(1)
	}
	if !exists {
		fmt.Printf("Container %s does not exist.\n", name)
		return
	}
	running, err := manager.ContainerRunning(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status check failed: %v\n", err)
		os.Exit(1)
	}
	if running {
		fmt.Printf("Container %s is running.\n", name)
	} else {
		fmt.Printf("Container %s exists but is stopped.\n", name)
	}
}

func runEnvCopy(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	name, src, dst := args[0], args[1], args[2]
	if err := envManager().CopyFrom(ctx, name, src, dst); err != nil {
		fmt.Fprintf(os.Stderr, "Copy failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Copied %s:%s to %s\n", name, src, dst)
}

func runEnvRemove(cmd *cobra.Command, args []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	name := args[0]
	if err := envManager().Remove(ctx, name); err != nil {
		fmt.Fprintf(os.Stderr, "Remove failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %s.\n", name)
}
