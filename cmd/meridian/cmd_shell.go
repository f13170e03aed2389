// Copyright (C) 2026 Meridian AI (mbridger@meridianai.dev)
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
	"bufio"
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/datatypes"
)

// queryFunc is the seam between the shell loop and the gateway, so the
// loop can be driven in tests without a server.
type queryFunc func(question, sessionID, workflow string, variant int) (datatypes.QueryResponse, error)

func runShellCommand(cmd *cobra.Command, args []string) {
	// One session id for the whole shell: the gateway holds the
	// conversation memory, so every ask under this id sees the turns
	// before it.
	sessionID := resumeID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	workflow := resolveWorkflow()

	// Set up graceful shutdown with signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	p := ux.NewPrinter(os.Stdout)
	p.Title("Meridian analysis shell")
	p.Mutedf("session %s | workflow %s | gateway %s", sessionID, workflow, getGatewayBaseURL())
	p.Mutedf("Type 'exit' or 'quit' to leave.")
	p.Println()

	if err := shellLoop(ctx, os.Stdin, p, sessionID, workflow, sendQuery); err != nil && err != context.Canceled {
		log.Fatalf("Shell error: %v", err)
	}
}

// shellLoop reads questions line by line and prints each answer. It
// returns nil on exit/quit or EOF, and the context error on shutdown.
func shellLoop(ctx context.Context, in io.Reader, p *ux.Printer, sessionID, workflow string, send queryFunc) error {
	reader := bufio.NewReader(in)
	for {
		// Check for context cancellation before blocking on input
		select {
		case <-ctx.Done():
			p.Println()
			p.Mutedf("Session %s ended.", sessionID)
			return ctx.Err()
		default:
		}

		p.Printf("%s", p.Prompt("meridian"))
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			p.Println()
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if isExitCommand(input) {
			p.Mutedf("Session %s ended. Resume it with: meridian shell --resume %s", sessionID, sessionID)
			return nil
		}

		resp, err := send(input, sessionID, workflow, 0)
		if err != nil {
			p.Errorf("%v", err)
			continue
		}
		printAnswer(p, resp)
		p.Println()
	}
}

// isExitCommand checks if the input is an exit command.
func isExitCommand(input string) bool {
	return input == "exit" || input == "quit"
}
