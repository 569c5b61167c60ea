// Command specsel runs wavelength selection and selector benchmarks on
// spectra stored as CSV.
//
//	specsel select --input spectra.csv --target protein --method cars
//	specsel benchmark --config run.yaml --methods vip,cars,irf --runs 20
package main

import (
	"fmt"
	"os"
)

// version is overwritten at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "specsel: %v\n", err)
		os.Exit(1)
	}
}
