package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"MarketMinute/internal/service/marketclock"
	"MarketMinute/pkg/util"
)

type rootFlags struct {
	tz string
	at string
}

func newRootCmd() *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:          "mmctl",
		Short:        "MarketMinute operator tool",
		Long:         "mmctl reports the trading session, adaptive cache lifetimes and signal scores, and manages the snapshot cache of a running server.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&f.tz, "tz", "America/New_York", "exchange timezone")
	root.PersistentFlags().StringVar(&f.at, "at", "", "evaluate at this instant (RFC3339 or unix seconds) instead of now")

	root.AddCommand(newSessionCmd(f))
	root.AddCommand(newTTLCmd(f))
	root.AddCommand(newScoreCmd())
	root.AddCommand(newCacheCmd())
	return root
}

func (f *rootFlags) policy() (*marketclock.Policy, error) {
	clock, err := marketclock.New(f.tz)
	if err != nil {
		return nil, err
	}
	return marketclock.NewPolicy(clock), nil
}

func (f *rootFlags) now() (time.Time, error) {
	if f.at == "" {
		return time.Now(), nil
	}
	t, ok := util.ParseTime(f.at)
	if !ok {
		return time.Time{}, fmt.Errorf("invalid --at %q", f.at)
	}
	return t, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
