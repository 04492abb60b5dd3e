// Command quasar-collector runs the Subscription Scheduler and the
// Historical and Live collectors it drives, and serves the
// Registry<->Collector inter-service HTTP contract.
package main

import (
	"fmt"
	"os"

	"github.com/quasarhq/quasar/cmd/quasar-collector/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
