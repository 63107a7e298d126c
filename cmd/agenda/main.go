// Command agenda books store appointments against a running agenda API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/asperus/agenda/internal/apiclient"
	"github.com/asperus/agenda/internal/booking"
	appconfig "github.com/asperus/agenda/internal/config"
	"github.com/asperus/agenda/pkg/logging"
)

type globalOptions struct {
	apiURL   string
	timeout  time.Duration
	logLevel string
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "agenda",
		Short:         "Browse store availability and book a slot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.apiURL, "api", cfg.APIBaseURL, "agenda API base URL")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", cfg.HTTPTimeout, "per request timeout")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(newStoresCmd(opts))
	root.AddCommand(newSlotsCmd(opts))
	root.AddCommand(newBookCmd(opts))
	root.AddCommand(newWatchCmd(opts))
	return root
}

// openSession loads the directory and switches to storeID (or the first
// store) with the given professional filter and window start.
func openSession(ctx context.Context, opts *globalOptions, storeID, professional, from string) (*booking.Session, error) {
	logger := logging.New(opts.logLevel)
	session := booking.NewSession(apiclient.New(opts.apiURL, opts.timeout, logger), logger)

	if err := session.LoadStores(ctx); err != nil {
		session.Close()
		return nil, fmt.Errorf("%s: %w", booking.Notice(err), err)
	}
	if storeID != "" {
		if err := session.SelectStore(ctx, storeID); err != nil {
			session.Close()
			return nil, err
		}
	}
	if !session.Snapshot().HasStore() {
		session.Close()
		return nil, booking.ErrNoStore
	}
	if from != "" {
		anchor, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", from)
		}
		if err := session.SetAnchor(ctx, &anchor); err != nil {
			session.Close()
			return nil, err
		}
	}
	if professional != "" {
		if err := session.SetProfessional(ctx, professional); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
