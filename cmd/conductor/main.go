// conductor runs end-to-end test scenarios on demand under a global
// concurrency cap and streams their output to a browser.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
