// Command gcodesim drives the motion core end to end against a
// software-simulated stepper backend, for exercising the public API
// outside of unit tests. It is explicitly not part of the core (spec
// §1 places CLI/host tooling out of scope); it exists to prove the
// planner/executor/dispatcher pipeline against real G-code text.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
