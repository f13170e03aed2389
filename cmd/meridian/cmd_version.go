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
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/MeridianAI/MeridianFOSS/pkg/ux"
	"github.com/MeridianAI/MeridianFOSS/services/gateway/handlers"
)

// CLIVersion tracks the gateway service version; a skew between the
// two surfaces here before it surfaces as a wire mismatch.
const CLIVersion = handlers.ServiceVersion

func runVersionCommand(cmd *cobra.Command, args []string) {
	p := ux.NewPrinter(os.Stdout)
	p.KeyValue("cli version", CLIVersion)

	bodyBytes, err := gatewayGet("/healthz", 5*time.Second)
	if err != nil {
		p.Mutedf("gateway not reachable at %s", getGatewayBaseURL())
		return
	}

	var health struct {
		Service string `json:"service"`
		Version string `json:"version"`
	}
	if err := json.Unmarshal(bodyBytes, &health); err != nil {
		p.Warnf("Gateway answered with an unexpected body: %v", err)
		return
	}
	p.KeyValue("gateway", health.Service)
	p.KeyValue("gateway version", health.Version)

	switch semver.Compare("v"+CLIVersion, "v"+health.Version) {
	case 0:
		p.Successf("CLI and gateway versions match")
	case -1:
		p.Warnf("CLI %s is older than gateway %s; upgrade the CLI", CLIVersion, health.Version)
	default:
		p.Warnf("CLI %s is newer than gateway %s; restart the gateway from this build", CLIVersion, health.Version)
	}
}
