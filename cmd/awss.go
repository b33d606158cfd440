package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smazurov/smartlight/internal/version"
	"github.com/spf13/cobra"
)

const requestTimeout = 5 * time.Second

// CreateActiveAWSSCmd creates the active_awss command. It asks the running
// daemon to start provisioning, the same as a button click.
func CreateActiveAWSSCmd() *cobra.Command {
	var (
		addr     string
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "active_awss [start]",
		Short: "Start Wi-Fi provisioning",
		Long: `Asks the running daemon to start Wi-Fi provisioning. ` +
			`Arguments are accepted but do not change the behavior.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			start := len(args) > 0 && args[0] == "start"

			ctx, cancel := context.WithTimeout(c.Context(), requestTimeout)
			defer cancel()

			msg, err := postActive(ctx, http.DefaultClient, addr, username, password, start)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8090", "Daemon control API address")
	cmd.Flags().StringVar(&username, "user", "admin", "Basic auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic auth password")

	return cmd
}

func postActive(ctx context.Context, client *http.Client, addr, username, password string, start bool) (string, error) {
	body, err := json.Marshal(map[string]bool{"start": start})
	if err != nil {
		return "", err
	}

	url := strings.TrimRight(addr, "/") + "/api/awss/active"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if password != "" {
		req.SetBasicAuth(username, password)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("contact daemon at %s: %w", addr, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("daemon returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}

	var accepted struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &accepted); err != nil || accepted.Message == "" {
		return "provisioning queued", nil
	}
	return accepted.Message, nil
}
