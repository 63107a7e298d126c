package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/asperus/agenda/internal/apiclient"
	"github.com/asperus/agenda/internal/booking"
	"github.com/asperus/agenda/pkg/logging"
)

func newStoresCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List stores with their professionals and services",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(opts.apiURL, opts.timeout, logging.New(opts.logLevel))
			list, err := client.ListStores(cmd.Context())
			if err != nil {
				return fmt.Errorf("%s: %w", booking.Notice(booking.ErrDirectoryUnavailable), err)
			}
			renderStores(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newSlotsCmd(opts *globalOptions) *cobra.Command {
	var storeID, professional, from string
	c := &cobra.Command{
		Use:   "slots",
		Short: "Show open slots over the six day window",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := openSession(cmd.Context(), opts, storeID, professional, from)
			if err != nil {
				return err
			}
			defer session.Close()
			renderWindow(cmd.OutOrStdout(), session.Snapshot())
			return nil
		},
	}
	c.Flags().StringVar(&storeID, "store", "", "store id (default: first store)")
	c.Flags().StringVar(&professional, "professional", "", "only this professional's free times")
	c.Flags().StringVar(&from, "date", "", "window start YYYY-MM-DD (default: today)")
	return c
}

func newBookCmd(opts *globalOptions) *cobra.Command {
	var storeID, professional, day, clock string
	var details booking.Details
	c := &cobra.Command{
		Use:   "book",
		Short: "Reserve one slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			session, err := openSession(ctx, opts, storeID, professional, day)
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			if err := session.Select(day, clock); err != nil {
				renderWindow(out, session.Snapshot())
				return errors.New(booking.Notice(err))
			}
			res, err := session.Commit(ctx, details)
			if err != nil {
				if errors.Is(err, booking.ErrSlotConflict) {
					renderWindow(out, session.Snapshot())
				}
				return errors.New(booking.Notice(err))
			}
			renderReservation(out, res)
			return nil
		},
	}
	c.Flags().StringVar(&storeID, "store", "", "store id (default: first store)")
	c.Flags().StringVar(&professional, "professional", "", "professional to book with")
	c.Flags().StringVar(&day, "date", "", "day YYYY-MM-DD")
	c.Flags().StringVar(&clock, "time", "", "time HH:MM")
	c.Flags().StringVar(&details.Name, "name", "", "customer name")
	c.Flags().StringVar(&details.Contact, "contact", "", "customer e-mail or phone")
	c.Flags().StringVar(&details.Service, "service", "", "service to book")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}

func newWatchCmd(opts *globalOptions) *cobra.Command {
	var storeID, professional, from string
	c := &cobra.Command{
		Use:   "watch",
		Short: "Follow availability live until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			session, err := openSession(ctx, opts, storeID, professional, from)
			if err != nil {
				return err
			}
			defer session.Close()

			out := cmd.OutOrStdout()
			renderWindow(out, session.Snapshot())
			session.OnUpdate(func(snap booking.Snapshot) {
				fmt.Fprintln(out, "--- availability changed ---")
				renderWindow(out, snap)
			})
			if err := session.Live(ctx); err != nil {
				return fmt.Errorf("follow changes: %w", err)
			}
			<-ctx.Done()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		},
	}
	c.Flags().StringVar(&storeID, "store", "", "store id (default: first store)")
	c.Flags().StringVar(&professional, "professional", "", "only this professional's free times")
	c.Flags().StringVar(&from, "date", "", "window start YYYY-MM-DD (default: today)")
	return c
}
