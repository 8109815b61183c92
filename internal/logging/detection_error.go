package logging

import "fmt"

// DetectionError annotates a detection failure with the request context the
// server logs: the failed operation, the request id, and the inputs that
// drove the detection (upsample count and image payload size).
type DetectionError struct {
	Operation string
	RequestID string
	Upsample  int
	DataLen   int
	Err       error
}

// Error implements the error interface.
func (e *DetectionError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("%s (request_id=%s upsample=%d data_length=%d): %v",
		e.Operation, e.RequestID, e.Upsample, e.DataLen, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *DetectionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewDetectionError wraps an error with the context of the detection request
// it failed in.
func NewDetectionError(operation, requestID string, upsample, dataLen int, err error) error {
	if err == nil {
		return nil
	}
	return &DetectionError{
		Operation: operation,
		RequestID: requestID,
		Upsample:  upsample,
		DataLen:   dataLen,
		Err:       err,
	}
}
