package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ErrInterrupted reports that the run was cancelled by the operator
// before all messages were sent.
var ErrInterrupted = errors.New("interrupted")

// Publisher is the one operation the run loop needs from a producer.
type Publisher interface {
	Send(ctx context.Context, text string) (DeliveryResult, error)
}

// Runner drives a producer run: banner, strictly sequential sends,
// fail-fast on the first error, summary on full completion.
type Runner struct {
	config    Config
	publisher Publisher
	runID     uuid.UUID
	out       io.Writer
	errOut    io.Writer
	logger    *slog.Logger
}

func NewRunner(config Config, publisher Publisher) Runner {
	return Runner{
		config:    config,
		publisher: publisher,
		runID:     uuid.New(),
		out:       os.Stdout,
		errOut:    os.Stderr,
		logger:    slog.Default(),
	}
}

// WithOutput redirects the human-readable status lines and the error
// detail lines.
func (r Runner) WithOutput(out, errOut io.Writer) Runner {
	r.out = out
	r.errOut = errOut
	return r
}

func (r Runner) WithLogger(logger *slog.Logger) Runner {
	r.logger = logger
	return r
}

// messageText is the payload for the 1-based message index. A single
// message uses the template verbatim; multiple messages get a
// " (i/count)" suffix.
func (r Runner) messageText(index int) string {
	if r.config.Count == 1 {
		return r.config.Message
	}
	return fmt.Sprintf("%s (%d/%d)", r.config.Message, index, r.config.Count)
}

// Run sends every configured message in order. It stops at the first
// failure and returns ErrInterrupted if the context is cancelled
// mid-run. A count of zero or less sends nothing and still reports
// success; that matches the tool this replaces and is kept on purpose.
func (r Runner) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, "🚀 Producing messages via REST API...")
	fmt.Fprintf(r.out, "   Topic: %s\n", r.config.Topic)
	fmt.Fprintf(r.out, "   REST API: %s\n", r.config.RestAPIURL)
	fmt.Fprintf(r.out, "   Username: %s\n", r.config.Username)
	fmt.Fprintln(r.out, "")

	r.logger.Info("run starting",
		slog.String("run_id", r.runID.String()),
		slog.String("topic", r.config.Topic),
		slog.Int("count", r.config.Count))

	for i := 1; i <= r.config.Count; i++ {
		select {
		case <-ctx.Done():
			return ErrInterrupted
		default:
		}

		result, err := r.publisher.Send(ctx, r.messageText(i))
		if err != nil {
			if ctx.Err() != nil {
				return ErrInterrupted
			}
			r.reportSendFailure(err)
			return err
		}

		r.reportDelivery(i, result)
		r.logger.Debug("message delivered",
			slog.String("run_id", r.runID.String()),
			slog.Int("message", i))
	}

	fmt.Fprintln(r.out, "✅ All messages sent and delivered")
	r.logger.Info("run finished", slog.String("run_id", r.runID.String()))
	return nil
}

func (r Runner) reportDelivery(index int, result DeliveryResult) {
	switch result.Kind {
	case ResultMetadata, ResultOffsets:
		fmt.Fprintf(r.out, "✅ Message %d delivered to %s [partition %s] at offset %s\n",
			index, r.config.Topic, result.PartitionText(), result.OffsetText())
	default:
		fmt.Fprintf(r.out, "✅ Message %d sent (response: %s)\n", index, result.Raw)
	}
}

func (r Runner) reportSendFailure(err error) {
	fmt.Fprintf(r.errOut, "❌ REST API error: %v\n", err)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		fmt.Fprintf(r.errOut, "   Status: %d\n", httpErr.StatusCode)
		fmt.Fprintf(r.errOut, "   Response: %s\n", httpErr.Body)
	}
}
