package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/phrazzld/scry-scheduler/internal/domain"
	"github.com/phrazzld/scry-scheduler/internal/domain/srs"
	"github.com/phrazzld/scry-scheduler/internal/events"
	"github.com/phrazzld/scry-scheduler/internal/service/card_review"
	"github.com/phrazzld/scry-scheduler/internal/session"
	"github.com/phrazzld/scry-scheduler/internal/task"
	"github.com/spf13/cobra"
)

// drainTimeout bounds the wait for queued writes once a session ends.
const drainTimeout = 30 * time.Second

type reviewOptions struct {
	user        string
	limit       int
	retryFailed bool
}

func newReviewCmd(root *rootOptions) *cobra.Command {
	opts := &reviewOptions{}

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review due cards in the terminal",
		Long: `review loads the user's due cards and presents them one at a time.
Ratings are scheduled immediately and saved in the background; a save that
fails is reported before the next card and retried once when the session
ends. Enter q at any prompt to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReview(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "user whose cards are reviewed")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "maximum number of cards (0 = all due)")
	cmd.Flags().BoolVar(&opts.retryFailed, "retry-failed", true, "retry failed saves once at the end of the session")
	return cmd
}

// reviewTally counts review events emitted by the service.
type reviewTally struct {
	recorded atomic.Int64
	failed   atomic.Int64
}

func (t *reviewTally) handle(_ context.Context, e *events.ReviewEvent) error {
	if e.Failed() {
		t.failed.Add(1)
	} else {
		t.recorded.Add(1)
	}
	return nil
}

func runReview(cmd *cobra.Command, root *rootOptions, opts *reviewOptions) error {
	userID, err := parseUser(opts.user)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, backend, log, err := root.openBackend(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = backend.Close() }()

	tally := &reviewTally{}
	emitter := events.NewInMemoryEventEmitter(log)
	emitter.RegisterHandler(events.HandlerFunc(tally.handle))

	svc, err := newReviewService(cfg, backend, log, card_review.WithEventEmitter(emitter))
	if err != nil {
		return err
	}

	due, err := svc.ListDueCards(ctx, userID, opts.limit)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		fmt.Fprintln(out, "No cards due.")
		return nil
	}

	pool := task.NewWorkerPool(task.WorkerPoolConfig{
		WorkerCount: cfg.Recorder.WorkerCount,
		QueueSize:   cfg.Recorder.QueueSize,
	}, log)
	pool.Start()
	defer pool.Stop()

	recorder := session.NewAsyncRecorder(pool, svc, cfg.Recorder.QueueSize, log)
	sess := session.New(userID, due, cfg.Scheduler.NewScheduler(), recorder, log)

	t := &terminal{in: bufio.NewScanner(cmd.InOrStdin()), out: out}
	var failures []session.Failure

	total := len(due)
	for ctx.Err() == nil {
		failures = append(failures, reportFailures(out, recorder)...)

		dc, ok := sess.Current()
		if !ok {
			break
		}
		if !presentCard(ctx, t, sess, dc, sess.Reviewed()+1, total) {
			sess.Cancel()
			break
		}
	}

	// Writes the pool cannot finish in time are discarded by Shutdown and
	// come back as failures, so Wait never outlives it by much.
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := pool.Shutdown(drainCtx); err != nil {
		log.Warn("worker pool did not drain", slog.String("error", err.Error()))
	}
	if err := recorder.Wait(drainCtx); err != nil {
		log.Warn("gave up waiting for pending saves", slog.String("error", err.Error()))
	}
	failures = append(failures, reportFailures(out, recorder)...)

	retried := 0
	if opts.retryFailed && ctx.Err() == nil {
		retryCtx, cancelRetry := context.WithTimeout(ctx, drainTimeout)
		defer cancelRetry()
		for _, f := range failures {
			r := f.Review
			if err := svc.RecordReview(retryCtx, r.Before, r.After, r.Rating, r.Interval); err != nil {
				fmt.Fprintf(out, "! retry failed for card %s: %v\n", r.After.CardID, err)
				continue
			}
			retried++
		}
	}

	// failed also counts failures the recorder had no room to buffer.
	_, failed := recorder.Stats()
	fmt.Fprintf(out, "Reviewed %d of %d cards. Saved %d, unsaved %d.\n",
		sess.Reviewed(), total, tally.recorded.Load(), failed-int64(retried))
	return nil
}

// terminal reads answers line by line.
type terminal struct {
	in  *bufio.Scanner
	out io.Writer
}

// ask prints prompt and returns the trimmed answer. ok is false on EOF or q.
func (t *terminal) ask(prompt string) (string, bool) {
	fmt.Fprint(t.out, prompt)
	if !t.in.Scan() {
		fmt.Fprintln(t.out)
		return "", false
	}
	answer := strings.ToLower(strings.TrimSpace(t.in.Text()))
	if answer == "q" || answer == "quit" {
		return "", false
	}
	return answer, true
}

// presentCard shows one card and rates it. It returns false when the user
// quits.
func presentCard(ctx context.Context, t *terminal, sess *session.Session, dc domain.DueCard, n, total int) bool {
	front, back := cardSides(dc.Card)
	fmt.Fprintf(t.out, "\n[%d/%d] %s\n", n, total, front)
	if _, ok := t.ask("Press enter to show the answer: "); !ok {
		return false
	}
	if back != "" {
		fmt.Fprintf(t.out, "      %s\n", back)
	}

	previews, err := sess.Preview(time.Now())
	if err != nil {
		fmt.Fprintf(t.out, "! %v\n", err)
		return false
	}

	for {
		answer, ok := t.ask(fmt.Sprintf("Rate [%s]: ", ratingLabels(previews)))
		if !ok {
			return false
		}
		rating, err := domain.ParseRating(answer)
		if err != nil {
			fmt.Fprintln(t.out, "  enter again, hard, good, easy or 1-4")
			continue
		}

		outcome, err := sess.Rate(ctx, rating, time.Now())
		if err != nil {
			fmt.Fprintf(t.out, "! %v\n", err)
			return false
		}
		fmt.Fprintf(t.out, "  next review in %s (%s)\n", srs.FormatInterval(outcome.Interval), outcome.State.State)
		return true
	}
}

// reportFailures prints every failure waiting on the recorder and returns
// them.
func reportFailures(out io.Writer, recorder *session.AsyncRecorder) []session.Failure {
	var got []session.Failure
	for {
		select {
		case f := <-recorder.Failures():
			fmt.Fprintf(out, "! could not save %s rating for card %s: %v\n",
				f.Review.Rating, f.Review.After.CardID, f.Err)
			got = append(got, f)
		default:
			return got
		}
	}
}

// cardSides splits front/back content. Other shapes are shown as raw JSON.
func cardSides(card domain.Card) (string, string) {
	var c domain.CardContent
	if err := json.Unmarshal(card.Content, &c); err == nil && c.Front != "" {
		return c.Front, c.Back
	}
	return string(card.Content), ""
}
