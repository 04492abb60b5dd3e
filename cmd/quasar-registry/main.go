// Command quasar-registry serves the Registry Control Plane: provider
// upload/delete, asset sync, the CONFIGURABLE preference schema, the
// secrets sub-resource, and asset-mapping CRUD.
package main

import (
	"fmt"
	"os"

	"github.com/quasarhq/quasar/cmd/quasar-registry/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
