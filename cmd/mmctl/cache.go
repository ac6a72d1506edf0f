package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	xhttp "MarketMinute/pkg/http"
)

type adminFlags struct {
	addr    string
	token   string
	timeout time.Duration
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newCacheCmd() *cobra.Command {
	f := &adminFlags{}
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the snapshot cache of a running server",
	}
	cmd.PersistentFlags().StringVar(&f.addr, "addr", "http://localhost:8080", "server base URL")
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv("ADMIN_TOKEN"), "admin token (defaults to $ADMIN_TOKEN)")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 10*time.Second, "request timeout")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := f.call(cmd.Context(), xhttp.MethodGet, "/admin/cache/stats")
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove every cached snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := f.call(cmd.Context(), xhttp.MethodPost, "/admin/cache/clear")
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), data)
		},
	})
	return cmd
}

func (f *adminFlags) call(ctx context.Context, method, path string) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	headers := map[string]string{"Accept": "application/json"}
	if f.token != "" {
		headers["X-Admin-Token"] = f.token
	}
	var env envelope
	client := xhttp.NewClient(xhttp.WithTimeout(f.timeout), xhttp.WithUserAgent("mmctl"))
	err := client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  method,
		URL:     strings.TrimRight(f.addr, "/") + path,
		Headers: headers,
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return env.Data, nil
}
