package core

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPublisher records every text it is asked to send and fails
// on a chosen 1-based send index.
type scriptedPublisher struct {
	sent    []string
	result  DeliveryResult
	failOn  int
	failErr error
}

func (p *scriptedPublisher) Send(ctx context.Context, text string) (DeliveryResult, error) {
	p.sent = append(p.sent, text)
	if p.failOn > 0 && len(p.sent) == p.failOn {
		return DeliveryResult{}, p.failErr
	}
	return p.result, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func metadataResult(partition, offset int64) DeliveryResult {
	return DeliveryResult{Kind: ResultMetadata, Partition: &partition, Offset: &offset}
}

func newTestRunner(cfg Config, pub Publisher, out, errOut *bytes.Buffer) Runner {
	return NewRunner(cfg, pub).WithOutput(out, errOut).WithLogger(quietLogger())
}

func TestRunSingleMessageUsesTemplateVerbatim(t *testing.T) {
	cfg := validConfig()
	pub := &scriptedPublisher{result: metadataResult(2, 17)}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"Hello from REST API"}, pub.sent)
	assert.Contains(t, out.String(), "✅ Message 1 delivered to topic-1 [partition 2] at offset 17")
	assert.Contains(t, out.String(), "✅ All messages sent and delivered")
}

func TestRunMultipleMessagesAppendsSuffix(t *testing.T) {
	cfg := validConfig()
	cfg.Count = 3
	pub := &scriptedPublisher{result: metadataResult(0, 0)}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Hello from REST API (1/3)",
		"Hello from REST API (2/3)",
		"Hello from REST API (3/3)",
	}, pub.sent)
	assert.Contains(t, out.String(), "✅ Message 3 delivered")
}

func TestRunBannerNeverShowsPassword(t *testing.T) {
	cfg := validConfig()
	pub := &scriptedPublisher{result: metadataResult(0, 0)}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "🚀 Producing messages via REST API...")
	assert.Contains(t, out.String(), "Topic: topic-1")
	assert.Contains(t, out.String(), "REST API: https://gateway.example.com")
	assert.Contains(t, out.String(), "Username: pp")
	assert.NotContains(t, out.String(), "hunter2")
	assert.NotContains(t, errOut.String(), "hunter2")
}

func TestRunFailFastStopsRemainingMessages(t *testing.T) {
	cfg := validConfig()
	cfg.Count = 5
	pub := &scriptedPublisher{
		result: metadataResult(0, 0),
		failOn: 2,
		failErr: &HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Status:     "503 Service Unavailable",
			Body:       `{"message":"broker unavailable"}`,
		},
	}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.Error(t, err)

	// Exactly 2 attempts: the failing send aborts messages 3..5
	assert.Len(t, pub.sent, 2)
	assert.Contains(t, out.String(), "✅ Message 1 delivered")
	assert.NotContains(t, out.String(), "All messages sent")
	assert.Contains(t, errOut.String(), "❌ REST API error")
	assert.Contains(t, errOut.String(), "Status: 503")
	assert.Contains(t, errOut.String(), "broker unavailable")
}

func TestRunUnknownResponseStillSucceeds(t *testing.T) {
	cfg := validConfig()
	pub := &scriptedPublisher{result: DeliveryResult{Kind: ResultUnknown, Raw: `{}`}}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "✅ Message 1 sent (response: {})")
}

func TestRunOffsetsResponseSurfacesPartitionAndOffset(t *testing.T) {
	cfg := validConfig()
	pub := &scriptedPublisher{result: ParseDeliveryResult([]byte(`{"offsets":[{"partition":1,"offset":5}]}`))}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[partition 1] at offset 5")
}

func TestRunZeroCountIsVacuousSuccess(t *testing.T) {
	cfg := validConfig()
	cfg.Count = 0
	pub := &scriptedPublisher{result: metadataResult(0, 0)}
	var out, errOut bytes.Buffer

	err := newTestRunner(cfg, pub, &out, &errOut).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pub.sent)
	assert.Contains(t, out.String(), "✅ All messages sent and delivered")
}

func TestRunCancelledContextReportsInterrupt(t *testing.T) {
	cfg := validConfig()
	cfg.Count = 3
	pub := &scriptedPublisher{result: metadataResult(0, 0)}
	var out, errOut bytes.Buffer

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestRunner(cfg, pub, &out, &errOut).Run(ctx)
	require.ErrorIs(t, err, ErrInterrupted)
	assert.Empty(t, pub.sent)
}
