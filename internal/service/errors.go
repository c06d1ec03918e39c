package service

import (
	"errors"
	"fmt"
	"strings"

	"farewatch/internal/fraud"
)

// ErrLookupUnsupported is returned when the configured store cannot serve
// reads beyond the recent listing.
var ErrLookupUnsupported = errors.New("service: store does not support lookups")

// ValidationError reports required input fields that were missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Missing required fields: %s", strings.Join(e.Fields, ", "))
}

// RecordError means the transaction was scored but the result was not durably
// stored. Result carries the computed score so the caller may retry the write.
type RecordError struct {
	Result fraud.Result
	Err    error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record transaction %s (score %.3f): %v", e.Result.TicketID, e.Result.FraudScore, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
