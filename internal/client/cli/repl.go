package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Trains(ctx context.Context, offline bool) error
	Profile(ctx context.Context) error
	Set(ctx context.Context, key, value string) error
	Logout(ctx context.Context) error
}

// runREPL starts a simple read-eval-print loop for the trainbook CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. Unknown commands are reported back to the
// user. The loop exits on EOF or when the user types "exit" or "quit",
// logging out first either way.
//
// Prompt & Commands
//
//	Not logged in:
//	  - help                - show available commands
//	  - register            - create an account
//	  - login               - authenticate
//	  - exit | quit         - leave the program
//
//	Logged in:
//	  - help                - show available commands
//	  - trains [--offline]  - list trains (cached copy with --offline)
//	  - profile             - show the profile
//	  - set <key> <value>   - change a profile field
//	  - logout              - log out
//	  - exit | quit         - log out and leave the program
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("tb%s> ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			leave(ctx, a)
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				printlnFn("Available commands: register, login, exit")
			case "register":
				_ = a.Register(ctx)
			case "login":
				_ = a.Login(ctx)
			case "exit", "quit":
				leave(ctx, a)
				return
			default:
				printlnFn("Unknown command:", cmd)
			}
			continue
		}

		switch cmd {
		case "help":
			printlnFn("Available commands: trains [--offline], profile, set <key> <value>, logout, exit")

		case "trains":
			offline := len(args) > 0 && args[0] == "--offline"
			_ = a.Trains(ctx, offline)

		case "profile":
			_ = a.Profile(ctx)

		case "set":
			if len(args) < 2 {
				printlnFn("Usage: set <key> <value>")
				continue
			}
			_ = a.Set(ctx, args[0], strings.Join(args[1:], " "))

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			leave(ctx, a)
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

// leave always logs out, so an open but unauthenticated connection is
// closed with a Logout too.
func leave(ctx context.Context, a execIface) {
	_ = a.Logout(ctx)
	printlnFn("Bye!")
}
