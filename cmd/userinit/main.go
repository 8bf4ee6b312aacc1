// Command userinit seeds the user store with the default accounts. It writes
// the users file, or the PostgreSQL database when a DSN is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/models"
	"github.com/dmitrijs2005/trainbook/internal/server/directory"
	"github.com/dmitrijs2005/trainbook/internal/server/repositories/users"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func defaultUsers() []*models.User {
	return []*models.User{
		{Username: "admin", Password: "admin"},
		{Username: "bob", Password: "halibut"},
	}
}

func run(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("userinit", flag.ContinueOnError)
	fs.SetOutput(w)

	file := fs.String("f", "users.json", "users file")
	dsn := fs.String("d", "", "PostgreSQL DSN (overrides -f)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	// New assigns ids and rejects duplicates.
	dir, err := directory.New(defaultUsers())
	if err != nil {
		return err
	}

	var repo users.Repository = users.NewFileRepository(*file)
	target := *file
	if *dsn != "" {
		db, err := users.OpenPostgres(ctx, *dsn)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = users.NewPostgresRepository(db)
		target = "database"
	}

	if err := repo.SaveAll(ctx, dir.Users()); err != nil {
		return fmt.Errorf("save users: %w", err)
	}

	fmt.Fprintf(w, "wrote %d users to %s\n", dir.Len(), target)
	return nil
}
