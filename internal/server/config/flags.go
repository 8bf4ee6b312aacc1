package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   protocol listen address (e.g., ":8800")
//	-w string   WebSocket listen address
//	-m string   admin gRPC address
//	-f string   users JSON file
//	-d string   PostgreSQL DSN
//	-t string   trains JSON file
//	-W          reload the trains file when it changes
//	-b string   S3 bucket holding the train list
//	-k string   S3 object key of the train list
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000")
//	-u string   S3 root user
//	-p string   S3 root password
//	-s string   admin JWT secret key
//	-v int      admin token validity, minutes
//	-l string   log level
//
// Unknown arguments are dropped by flagx.FilterArgs first, so the JSON
// config flags can share os.Args. Invalid values panic.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-w", "-m", "-f", "-d", "-t", "-W", "-b", "-k", "-g", "-e", "-u", "-p", "-s", "-v", "-l",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.WSAddr, "w", config.WSAddr, "websocket address (empty disables)")
	fs.StringVar(&config.AdminAddr, "m", config.AdminAddr, "admin gRPC address (empty disables)")
	fs.StringVar(&config.UsersFile, "f", config.UsersFile, "users file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.TrainsFile, "t", config.TrainsFile, "trains file")
	fs.BoolVar(&config.WatchTrains, "W", config.WatchTrains, "reload trains file on change")

	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Key, "k", config.S3Key, "S3 object key")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")

	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	adminTokenValidity := fs.Int("v", int(config.AdminTokenValidity.Minutes()), "admin token validity (in minutes)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AdminTokenValidity = time.Duration(*adminTokenValidity) * time.Minute
}
