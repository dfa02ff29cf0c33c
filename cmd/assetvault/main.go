// Command assetvault runs the asset vault server and offers local
// maintenance commands against the same configuration.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
