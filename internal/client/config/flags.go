package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/soundcircle/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend server (default from Config)
//	-f string   path of the local session cache file
//	-w int      auth settle timeout in seconds
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-f", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the backend server")
	fs.StringVar(&cfg.LocalStorePath, "f", cfg.LocalStorePath, "path of the local session cache file")
	settleTimeout := fs.Int("w", int(cfg.AuthSettleTimeout.Seconds()), "auth settle timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.AuthSettleTimeout = time.Duration(*settleTimeout) * time.Second
}
