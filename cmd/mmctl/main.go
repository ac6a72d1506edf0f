// Command mmctl inspects market session state, scores predictions offline and
// performs cache housekeeping against a running MarketMinute instance.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
