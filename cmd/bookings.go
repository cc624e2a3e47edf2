package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Saijash84/CalMate/internal/assistant"
	"github.com/Saijash84/CalMate/internal/booking"
	"github.com/Saijash84/CalMate/internal/tools/batch"
)

// Output formats for bookings list.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

func newBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Inspect and cancel stored bookings",
	}
	cmd.AddCommand(newBookingsListCmd())
	cmd.AddCommand(newBookingsCancelCmd())
	return cmd
}

func newBookingsListCmd() *cobra.Command {
	var (
		output     string
		activeOnly bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookings in the order they were made",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch output {
			case outputText, outputJSON, outputYAML:
			default:
				return fmt.Errorf("unsupported output format: %s (supported: text, json, yaml)", output)
			}

			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			store, err := openStore(cmd.Context(), cfg.Store, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			bookings, err := store.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list bookings: %w", err)
			}
			if activeOnly {
				bookings = booking.ActiveOnly(bookings)
			}
			return writeBookings(cmd.OutOrStdout(), bookings, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputText, "Output format: text, json or yaml")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "Hide cancelled bookings")

	return cmd
}

func newBookingsCancelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cancel <id>...",
		Short: "Cancel bookings by id",
		Long: `Cancel one or more bookings by id. Ids may be given as separate arguments or
as a comma separated list. The calendar event is removed as well when a
calendar provider is configured.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			var ids []string
			for _, arg := range args {
				ids = append(ids, parseCommaSeparatedList(arg)...)
			}
			return cancelBookings(cmd.Context(), cmd.OutOrStdout(), a.sc.Assistant(), ids)
		},
	}
	return cmd
}

// cancelBookings cancels each id in order and fails when any of them could
// not be cancelled.
func cancelBookings(ctx context.Context, out io.Writer, asst *assistant.Assistant, ids []string) error {
	if len(ids) == 0 {
		return errors.New("no booking ids given")
	}
	results := batch.ProcessBatch(ctx, ids, func(ctx context.Context, id string) (batch.Outcome, error) {
		resp, err := asst.CancelBooking(ctx, id, "")
		if err != nil {
			return batch.Outcome{Operation: assistant.OpError}, err
		}
		if resp.Operation == assistant.OpNotFound {
			return batch.Outcome{Operation: resp.Operation}, errors.New(resp.Response)
		}
		msg := resp.Response
		if resp.Details != "" {
			msg += "\n" + resp.Details
		}
		return batch.Outcome{Operation: resp.Operation, Message: msg}, nil
	})

	for _, r := range results {
		if r.Status == batch.StatusSuccess {
			fmt.Fprintln(out, r.Result)
		} else {
			fmt.Fprintf(out, "%s: %s\n", r.ID, r.Error)
		}
	}
	if summary := batch.Summarize(results); summary.Failed > 0 {
		return fmt.Errorf("%d of %d bookings could not be cancelled", summary.Failed, summary.Total)
	}
	return nil
}

// bookingView is the serialized form of a booking.
type bookingView struct {
	ID        string   `json:"id" yaml:"id"`
	Summary   string   `json:"summary" yaml:"summary"`
	Start     string   `json:"start" yaml:"start"`
	End       string   `json:"end" yaml:"end"`
	Timezone  string   `json:"timezone" yaml:"timezone"`
	Attendees []string `json:"attendees,omitempty" yaml:"attendees,omitempty"`
	Status    string   `json:"status" yaml:"status"`
	EventID   string   `json:"external_event_id,omitempty" yaml:"external_event_id,omitempty"`
}

func toBookingViews(bookings []booking.Booking) []bookingView {
	views := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, bookingView{
			ID:        b.ID,
			Summary:   b.Summary,
			Start:     b.StartString(),
			End:       b.EndString(),
			Timezone:  b.Timezone,
			Attendees: b.Attendees,
			Status:    string(b.Status),
			EventID:   b.ExternalEventID,
		})
	}
	return views
}

func writeBookings(out io.Writer, bookings []booking.Booking, format string) error {
	views := toBookingViews(bookings)

	switch format {
	case outputJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	case outputYAML:
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(views); err != nil {
			return err
		}
		return enc.Close()
	}

	if len(views) == 0 {
		_, err := fmt.Fprintln(out, "No bookings.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTART\tEND\tSUMMARY\tATTENDEES")
	for _, b := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Status, b.Start, b.End, b.Summary, strings.Join(b.Attendees, ", "))
	}
	return tw.Flush()
}

// parseCommaSeparatedList splits a comma separated value, dropping blanks.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
