// Command admin inspects a running trainbook server through its admin gRPC
// endpoint: health, liveness and the list of connected sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/netx"
	"github.com/dmitrijs2005/trainbook/internal/server/auth"
	admingrpc "github.com/dmitrijs2005/trainbook/internal/server/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		log.Fatalf("%v", err)
	}
}

func run(ctx context.Context, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(w)

	addr := fs.String("m", "127.0.0.1:50051", "admin gRPC address")
	secret := fs.String("s", "secretKey", "secret key shared with the server")
	operator := fs.String("o", "admin", "operator name put into the token")
	validity := fs.Int("v", 5, "token validity (in minutes)")
	wsAddr := fs.String("w", "", "websocket endpoint address to check (optional)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cc, err := admingrpc.Dial(*addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", *addr, err)
	}
	defer cc.Close()

	hc, err := healthpb.NewHealthClient(cc).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	fmt.Fprintf(w, "health: %s\n", hc.GetStatus())

	diag := admingrpc.NewDiagnosticsClient(cc)

	pong, err := diag.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	fmt.Fprintf(w, "ping: %s\n", pong.Status)

	if *wsAddr != "" {
		if err := netx.CheckHealth(ctx, "http://"+*wsAddr+"/healthz"); err != nil {
			fmt.Fprintf(w, "websocket: %v\n", err)
		} else {
			fmt.Fprintln(w, "websocket: ok")
		}
	}

	token, err := auth.GenerateToken(*operator, []byte(*secret), time.Duration(*validity)*time.Minute)
	if err != nil {
		return fmt.Errorf("mint token: %w", err)
	}

	resp, err := diag.ListSessions(ctx, token)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	if resp == nil {
		return errors.New("list sessions: empty response")
	}

	fmt.Fprintf(w, "sessions: %d\n", resp.Total)
	if len(resp.Sessions) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREMOTE\tUSER\tCONNECTED")
	for _, s := range resp.Sessions {
		user := "-"
		if s.Authenticated {
			user = s.Username
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", s.ID, s.Remote, user, s.ConnectedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}
