package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/spf13/cobra"
)

func newCardCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Manage cards",
	}
	cmd.AddCommand(newCardAddCmd(opts), newCardDueCmd(opts), newCardHistoryCmd(opts))
	return cmd
}

func newCardAddCmd(opts *rootOptions) *cobra.Command {
	var (
		userFlag string
		content  string
		front    string
		back     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a card, due immediately",
		Long: `add stores a card for --user. Pass the content as JSON with --content,
or use --front and --back for a plain front/back card.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := parseUser(userFlag)
			if err != nil {
				return err
			}

			raw := json.RawMessage(content)
			switch {
			case content != "" && (front != "" || back != ""):
				return fmt.Errorf("use either --content or --front/--back")
			case content == "":
				if front == "" {
					return fmt.Errorf("--content or --front is required")
				}
				if raw, err = json.Marshal(domain.CardContent{Front: front, Back: back}); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			cfg, backend, log, err := opts.openBackend(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			svc, err := newReviewService(cfg, backend, log)
			if err != nil {
				return err
			}
			dc, err := svc.AddCard(ctx, userID, raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), dc.Card.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner of the card")
	cmd.Flags().StringVar(&content, "content", "", "card content as JSON")
	cmd.Flags().StringVar(&front, "front", "", "front of a front/back card")
	cmd.Flags().StringVar(&back, "back", "", "back of a front/back card")
	return cmd
}

func newCardDueCmd(opts *rootOptions) *cobra.Command {
	var (
		userFlag string
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List due cards in review order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := parseUser(userFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			cfg, backend, log, err := opts.openBackend(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			svc, err := newReviewService(cfg, backend, log)
			if err != nil {
				return err
			}
			due, err := svc.ListDueCards(ctx, userID, limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CARD\tSTATE\tDUE\tREVIEWS\tFRONT")
			for _, dc := range due {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					dc.Card.ID, dc.State.State, dc.State.Due.Format("2006-01-02 15:04"),
					dc.State.ReviewCount, cardFront(dc.Card))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner of the cards")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of cards (0 = all)")
	return cmd
}

func newCardHistoryCmd(opts *rootOptions) *cobra.Command {
	var userFlag, cardFlag string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a card's review log and the state it replays to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			userID, err := parseUser(userFlag)
			if err != nil {
				return err
			}
			cardID, err := uuid.Parse(cardFlag)
			if err != nil {
				return fmt.Errorf("invalid --card: %w", err)
			}

			ctx := cmd.Context()
			cfg, backend, log, err := opts.openBackend(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			svc, err := newReviewService(cfg, backend, log)
			if err != nil {
				return err
			}
			history, err := svc.GetCardHistory(ctx, userID, cardID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tREVIEWED\tRATING\tBEFORE\tAFTER\tINTERVAL")
			for i, l := range history.Logs {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					i+1, l.ReviewedAt.Format(time.RFC3339), l.Rating, l.StateBefore, l.StateAfter,
					srs.FormatInterval(l.Interval))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Fprintf(out, "stored:   %s\n", describeState(history.State))
			fmt.Fprintf(out, "replayed: %s\n", describeState(history.Replayed))
			if !sameSchedule(history.State, history.Replayed) {
				fmt.Fprintln(out, "! stored state does not match the review log")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&userFlag, "user", "", "owner of the card")
	cmd.Flags().StringVar(&cardFlag, "card", "", "card ID")
	return cmd
}

func describeState(s domain.ReviewState) string {
	return fmt.Sprintf("%s step %d, %d reviews, due %s",
		s.State, s.Step, s.ReviewCount, s.Due.Format(time.RFC3339))
}

// sameSchedule ignores Due, which postponing changes without a log entry.
func sameSchedule(a, b domain.ReviewState) bool {
	return a.State == b.State && a.Step == b.Step && a.ReviewCount == b.ReviewCount
}

func cardFront(card domain.Card) string {
	front, _ := cardSides(card)
	return front
}

// ratingLabels renders previews as "again 1m | hard 1m | good 10m | easy 2d".
func ratingLabels(previews []srs.Preview) string {
	out := ""
	for i, p := range previews {
		if i > 0 {
			out += " | "
		}
		out += p.Rating.String() + " " + srs.FormatInterval(p.Interval)
	}
	return out
}
