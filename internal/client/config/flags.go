package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   address and port of the train server
//	-x string   transport: tcp or ws
//	-d string   path of the local train cache database
//	-r int      profile update attempts, 0 for unbounded
//	-i int      delay between profile update attempts (in milliseconds)
//	-l string   log level
//
// An unknown transport panics like any other invalid flag value.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-x", "-d", "-r", "-i", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "address and port to access server")
	fs.StringVar(&cfg.Transport, "x", cfg.Transport, "transport (tcp or ws)")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "local train cache database")
	fs.IntVar(&cfg.UpdateMaxAttempts, "r", cfg.UpdateMaxAttempts, "profile update attempts (0 = until acknowledged)")
	retryInterval := fs.Int("i", int(cfg.UpdateRetryInterval.Milliseconds()), "profile update retry interval (in milliseconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	switch cfg.Transport {
	case TransportTCP, TransportWS:
	default:
		panic(fmt.Sprintf("unknown transport %q", cfg.Transport))
	}

	cfg.UpdateRetryInterval = time.Duration(*retryInterval) * time.Millisecond
}
