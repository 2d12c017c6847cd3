package core

import (
	"encoding/json"
	"strconv"
)

// ResultKind discriminates the response shapes the gateway is known to
// return for a produce request.
type ResultKind int

const (
	// ResultMetadata is the {"metadata":{"partition":N,"offset":N}} shape.
	ResultMetadata ResultKind = iota
	// ResultOffsets is the {"offsets":[{"partition":N,"offset":N},...]} shape.
	ResultOffsets
	// ResultUnknown is anything else, including an empty body. Not an
	// error; the raw body is kept for display.
	ResultUnknown
)

// DeliveryResult is the parsed outcome of one accepted produce request.
type DeliveryResult struct {
	Kind      ResultKind
	Partition *int64
	Offset    *int64
	Raw       string
}

// responseBody covers both recognized gateway shapes at once.
type responseBody struct {
	Metadata *struct {
		Partition *int64 `json:"partition"`
		Offset    *int64 `json:"offset"`
	} `json:"metadata"`
	Offsets []struct {
		Partition *int64 `json:"partition"`
		Offset    *int64 `json:"offset"`
	} `json:"offsets"`
}

// ParseDeliveryResult interprets a 2xx response body. A body that
// matches neither shape, or does not parse as JSON at all, degrades to
// ResultUnknown rather than failing the message.
func ParseDeliveryResult(body []byte) DeliveryResult {
	res := DeliveryResult{Kind: ResultUnknown, Raw: string(body)}

	var parsed responseBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return res
	}

	switch {
	case parsed.Metadata != nil:
		res.Kind = ResultMetadata
		res.Partition = parsed.Metadata.Partition
		res.Offset = parsed.Metadata.Offset
	case len(parsed.Offsets) > 0:
		res.Kind = ResultOffsets
		res.Partition = parsed.Offsets[0].Partition
		res.Offset = parsed.Offsets[0].Offset
	}
	return res
}

// PartitionText renders the partition for display, "?" when the
// gateway omitted it.
func (r DeliveryResult) PartitionText() string {
	return int64Text(r.Partition)
}

// OffsetText renders the offset for display, "?" when the gateway
// omitted it.
func (r DeliveryResult) OffsetText() string {
	return int64Text(r.Offset)
}

func int64Text(v *int64) string {
	if v == nil {
		return "?"
	}
	return strconv.FormatInt(*v, 10)
}
