package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/trainbook/internal/client/client"
	"github.com/dmitrijs2005/trainbook/internal/common"
	"github.com/dmitrijs2005/trainbook/internal/models"
)

// Trains prints the server's train list. When offline is set, or the server
// cannot be reached, the locally cached copy is printed instead.
func (a *App) Trains(ctx context.Context, offline bool) error {
	if !offline {
		trains, err := a.client.FetchTrains(ctx)
		if err == nil {
			a.printTrains(trains)
			return nil
		}
		if !errors.Is(err, client.ErrUnavailable) {
			fmt.Fprintln(a.out, err.Error())
			return err
		}
		fmt.Fprintln(a.out, "Server unavailable, showing cached trains")
	}

	trains, fetchedAt, err := a.cache.Load(ctx)
	if errors.Is(err, common.ErrNotFound) {
		fmt.Fprintln(a.out, "No cached trains")
		return err
	}
	if err != nil {
		a.logger.Error(ctx, "load cached trains", "error", err)
		return err
	}

	fmt.Fprintf(a.out, "Cached at %s\n", fetchedAt.Local().Format(time.DateTime))
	a.printTrains(trains)
	return nil
}

func (a *App) printTrains(trains []models.Train) {
	if len(trains) == 0 {
		fmt.Fprintln(a.out, "No trains")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NUMBER\tFROM\tTO\tDEPARTURE\tSEATS")
	for _, t := range trains {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", t.Number, t.From, t.To, t.Departure.Local().Format(time.DateTime), t.SeatsFree)
	}
	_ = tw.Flush()
}
