// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	mgrpc "github.com/mentorlik/mentorlik/internal/grpc"
)

// CheckStatus holds the result of one health check.
type CheckStatus struct {
	Check   string `json:"check"`
	Target  string `json:"target"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	MetricsAddr string        `koanf:"metrics-addr"`
	GRPCAddr    string        `koanf:"grpc-addr"`
	Timeout     time.Duration `koanf:"check-timeout"`
	JSONOutput  bool          `koanf:"json"`
}

const defaultCheckTimeout = 2 * time.Second

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show health of a running Mentorlik server",
		Long: `Query the liveness and readiness probes of the observability server and
the gRPC health service of a running server.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &statusConfig{}
			if err := loadConfig(cmd.Flags(), cfg); err != nil {
				return err
			}
			return runStatus(cmd, cfg)
		},
	}

	cmd.Flags().String("metrics-addr", defaultMetricsAddr, "metrics/health HTTP address of the server")
	cmd.Flags().String("grpc-addr", defaultGRPCAddr, "gRPC address of the server")
	cmd.Flags().Duration("check-timeout", defaultCheckTimeout, "timeout for each health check")
	cmd.Flags().Bool("json", false, "output status as JSON")

	return cmd
}

// runStatus executes the status command. An unhealthy check is reported,
// not returned as an error.
func runStatus(cmd *cobra.Command, cfg *statusConfig) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client := &http.Client{Timeout: cfg.Timeout}
	base := "http://" + strings.TrimPrefix(cfg.MetricsAddr, "http://")
	statuses := []CheckStatus{
		checkHTTP(ctx, client, "liveness", base+"/healthz/liveness"),
		checkHTTP(ctx, client, "readiness", base+"/healthz/readiness"),
		checkGRPC(ctx, cfg.GRPCAddr, cfg.Timeout),
	}

	if cfg.JSONOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Print(formatStatusTable(statuses))
	return nil
}

func checkHTTP(ctx context.Context, client *http.Client, name, url string) CheckStatus {
	st := CheckStatus{Check: name, Target: url}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		st.Error = err.Error()
		return st
	}
	resp, err := client.Do(req)
	if err != nil {
		st.Error = fmt.Sprintf("failed to connect: %v", err)
		return st
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err == nil {
		st.Detail = strings.TrimSpace(string(body))
	}
	st.Healthy = resp.StatusCode == http.StatusOK
	if !st.Healthy && st.Detail == "" {
		st.Detail = resp.Status
	}
	return st
}

func checkGRPC(ctx context.Context, addr string, timeout time.Duration) CheckStatus {
	st := CheckStatus{Check: "grpc-health", Target: addr}
	client, err := mgrpc.NewClient(mgrpc.ClientConfig{Address: addr})
	if err != nil {
		st.Error = err.Error()
		return st
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	serving, err := client.Check(ctx)
	if err != nil {
		st.Error = fmt.Sprintf("health check failed: %v", err)
		return st
	}
	st.Detail = serving.String()
	st.Healthy = serving == healthpb.HealthCheckResponse_SERVING
	return st
}

// formatStatusTable formats the status as a human-readable table.
func formatStatusTable(statuses []CheckStatus) string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL\tTARGET")
	_, _ = fmt.Fprintln(w, "-----\t------\t------\t------")
	for _, st := range statuses {
		state := "healthy"
		detail := st.Detail
		if !st.Healthy {
			state = "unhealthy"
			if st.Error != "" {
				detail = st.Error
			}
		}
		if detail == "" {
			detail = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", st.Check, state, detail, st.Target)
	}

	_ = w.Flush()
	return sb.String()
}
