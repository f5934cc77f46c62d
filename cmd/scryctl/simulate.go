package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/spf13/cobra"
)

type simulateOptions struct {
	ratings         []string
	start           string
	learningSteps   []time.Duration
	relearningSteps []time.Duration
	maxIntervalDays float64
	sameTime        bool
}

func newSimulateCmd() *cobra.Command {
	opts := &simulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Print the schedule a sequence of ratings produces",
		Long: `simulate runs a new card through the scheduling engine, one rating at a
time, and prints every intermediate state. Each rating is applied when the
card falls due unless --same-time is set. No database is used.`,
		Example: `  scryctl simulate --ratings good,good,again,good
  scryctl simulate --ratings 3,3,1 --learning-steps 1m,10m,1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&opts.ratings, "ratings", nil, "ratings to apply, by name or 1-4")
	f.StringVar(&opts.start, "start", "", "RFC 3339 time of the first review (default now)")
	f.DurationSliceVar(&opts.learningSteps, "learning-steps", []time.Duration{time.Minute, 10 * time.Minute}, "learning steps")
	f.DurationSliceVar(&opts.relearningSteps, "relearning-steps", []time.Duration{10 * time.Minute}, "relearning steps")
	f.Float64Var(&opts.maxIntervalDays, "max-interval-days", srs.DefaultMaxIntervalDays, "longest interval in days")
	f.BoolVar(&opts.sameTime, "same-time", false, "apply every rating at the start time")
	_ = cmd.MarkFlagRequired("ratings")
	return cmd
}

func runSimulate(cmd *cobra.Command, opts *simulateOptions) error {
	ratings := make([]domain.Rating, 0, len(opts.ratings))
	for _, raw := range opts.ratings {
		r, err := domain.ParseRating(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return err
		}
		ratings = append(ratings, r)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if opts.start != "" {
		t, err := time.Parse(time.RFC3339, opts.start)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		now = t.UTC()
	}

	cfg := srs.NewSchedulerConfig(opts.learningSteps, opts.relearningSteps, opts.maxIntervalDays)
	state, err := domain.NewReviewState(uuid.New(), uuid.New(), now)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tREVIEWED\tRATING\tSTATE\tSTEP\tSTABILITY\tDIFFICULTY\tINTERVAL\tDUE")

	current := *state
	for i, r := range ratings {
		at := now
		if !opts.sameTime {
			at = current.Due
		}

		next, interval, err := srs.ComputeNext(current, r, at, cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%.2f\t%.2f\t%s\t%s\n",
			i+1, at.Format(time.RFC3339), r, next.State, next.Step,
			next.Stability, next.Difficulty, srs.FormatInterval(interval),
			next.Due.Format(time.RFC3339))
		current = next
	}
	return w.Flush()
}
