// sdlfile is a command-line frontend for the SDL file transfer protocol.
//
// It drives one side of a transfer: `sdlfile send` dials a receiver and
// transmits one file; `sdlfile recv` accepts a connection and stores the
// incoming file, or keeps serving transfers with --serve.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
