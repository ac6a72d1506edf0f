package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"MarketMinute/internal/service/marketclock"
)

var defaultLifetimes = map[marketclock.DataClass]time.Duration{
	marketclock.Quote:       60 * time.Second,
	marketclock.Chart:       300 * time.Second,
	marketclock.Summary:     marketclock.MinTTL(marketclock.Summary),
	marketclock.Explanation: marketclock.MinTTL(marketclock.Explanation),
}

func newSessionCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Print the trading session and the cache lifetime of each data class",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := f.policy()
			if err != nil {
				return err
			}
			now, err := f.now()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), policy.Report(now, defaultLifetimes))
		},
	}
}

func newTTLCmd(f *rootFlags) *cobra.Command {
	var def time.Duration
	cmd := &cobra.Command{
		Use:       "ttl <quote|chart|summary|explanation>",
		Short:     "Print the adaptive lifetime for one data class",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"quote", "chart", "summary", "explanation"},
		RunE: func(cmd *cobra.Command, args []string) error {
			class := marketclock.DataClass(args[0])
			if _, ok := defaultLifetimes[class]; !ok {
				return fmt.Errorf("unknown data class %q", args[0])
			}
			policy, err := f.policy()
			if err != nil {
				return err
			}
			now, err := f.now()
			if err != nil {
				return err
			}
			if def <= 0 {
				def = defaultLifetimes[class]
			}
			ttl := policy.TTLFor(class, def, now)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %ds (%s)\n", class, int64(ttl/time.Second), policy.Clock().Phase(now))
			return nil
		},
	}
	cmd.Flags().DurationVar(&def, "default", 0, "default lifetime while the market is open")
	return cmd
}
