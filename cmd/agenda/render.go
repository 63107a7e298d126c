package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/asperus/agenda/internal/booking"
	"github.com/asperus/agenda/internal/reservations"
	"github.com/asperus/agenda/internal/stores"
)

func renderStores(w io.Writer, list []stores.Store) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tHOURS\tPROFESSIONALS\tSERVICES")
	for _, s := range list {
		roster := s.Roster()
		opening, closing := s.OpeningTime, s.ClosingTime
		if opening == "" {
			opening = stores.DefaultOpeningTime
		}
		if closing == "" {
			closing = stores.DefaultClosingTime
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\n",
			s.ID, s.Name, opening, closing,
			strings.Join(roster.Professionals, ", "),
			strings.Join(roster.Services, ", "),
		)
	}
	_ = tw.Flush()
}

func renderWindow(w io.Writer, snap booking.Snapshot) {
	store, _ := snap.Store()
	who := snap.Professional
	if who == "" {
		who = "any professional"
	}
	fmt.Fprintf(w, "%s (%s), %s\n", store.Name, snap.StoreID, who)
	for _, day := range snap.Window {
		slots := snap.Slots[day]
		line := "-"
		if len(slots) > 0 {
			line = strings.Join(slots, " ")
		}
		marker := " "
		if snap.Selection != nil && snap.Selection.Day == day {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s  %s\n", marker, day, line)
	}
}

func renderReservation(w io.Writer, res *reservations.Reservation) {
	fmt.Fprintf(w, "Booked %s at %s", res.Day, res.Time)
	if res.Professional != "" {
		fmt.Fprintf(w, " with %s", res.Professional)
	}
	fmt.Fprintf(w, " (%s) for %s\n", res.Service, res.Name)
}
