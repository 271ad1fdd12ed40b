package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type healthResponse struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Categories struct {
		Loaded     bool   `json:"loaded"`
		Generation uint64 `json:"generation"`
		Count      int    `json:"count"`
		Model      string `json:"model"`
	} `json:"categories"`
	Build map[string]string `json:"build"`
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check a running catmatch server",
		Long: `Check the health endpoint of a running server.

Example:
  matchctl health --server http://localhost:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := strings.TrimRight(root.serverURL, "/") + "/health"
			client := &http.Client{Timeout: 5 * time.Second}

			resp, err := client.Get(url)
			if err != nil {
				return fmt.Errorf("failed to connect to %s: %w", url, err)
			}
			defer func() { _ = resp.Body.Close() }()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("read response: %w", err)
			}

			var h healthResponse
			if err := json.Unmarshal(body, &h); err != nil {
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Server Status: %s\n", h.Status)
			fmt.Fprintf(out, "Database: %s\n", h.Database)
			fmt.Fprintf(out, "Categories: %d (generation %d, model %s)\n",
				h.Categories.Count, h.Categories.Generation, h.Categories.Model)
			if v := h.Build["version"]; v != "" {
				fmt.Fprintf(out, "Version: %s\n", v)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server unhealthy (status %d)", resp.StatusCode)
			}
			return nil
		},
	}
}
