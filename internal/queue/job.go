package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CompileJob asks a worker to compile one report.
type CompileJob struct {
	ID             string    `json:"id"`
	Input          string    `json:"input"`            // local path, file://, http(s):// or s3://
	Output         string    `json:"output,omitempty"` // object key or file name; derived from the input when empty
	Encrypt        bool      `json:"encrypt,omitempty"`
	Attempt        int       `json:"attempt"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	EnqueuedAt     time.Time `json:"enqueued_at"`
}

// ErrInvalidJob is returned for payloads that do not describe a job.
var ErrInvalidJob = errors.New("invalid compile job")

// Encode serializes the job for the stream.
func (j CompileJob) Encode() ([]byte, error) {
	if err := j.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(j)
}

// DecodeJob parses a stream payload.
func DecodeJob(data []byte) (CompileJob, error) {
	var j CompileJob
	if err := json.Unmarshal(data, &j); err != nil {
		return j, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	return j, j.validate()
}

func (j CompileJob) validate() error {
	if j.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidJob)
	}
	if j.Input == "" {
		return fmt.Errorf("%w: missing input", ErrInvalidJob)
	}
	return nil
}
