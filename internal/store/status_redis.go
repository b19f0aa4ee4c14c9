// Package store keeps compile job status in Redis hashes.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Job states.
const (
	StateQueued   = "queued"
	StateRunning  = "running"
	StateRetrying = "retrying"
	StateDone     = "done"
	StateFailed   = "failed"
	StateCanceled = "canceled"
)

// statusTTL bounds how long finished job status is kept.
const statusTTL = 7 * 24 * time.Hour

type Status struct {
	Status   string         `json:"status"`
	Progress int            `json:"progress"`
	Message  string         `json:"message"`
	Kind     string         `json:"error_kind,omitempty"`
	Output   string         `json:"output,omitempty"`
	Start    *time.Time     `json:"start_time,omitempty"`
	End      *time.Time     `json:"end_time,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Final reports whether the job will not change state again.
func (s Status) Final() bool {
	return s.Status == StateDone || s.Status == StateFailed || s.Status == StateCanceled
}

type RedisStatus struct {
	client *redis.Client
	keyNS  string
}

func NewRedisStatus(client *redis.Client) *RedisStatus {
	return &RedisStatus{client: client, keyNS: "report"}
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key(jobID), fields(st))
	pipe.Expire(ctx, s.key(jobID), statusTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(res) == 0 {
		return Status{}, false, nil
	}
	return parse(res), true, nil
}

func fields(st Status) map[string]any {
	m := map[string]any{
		"status":   st.Status,
		"progress": st.Progress,
		"message":  st.Message,
		"kind":     st.Kind,
		"output":   st.Output,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	if st.Metadata != nil {
		b, _ := json.Marshal(st.Metadata)
		m["metadata"] = string(b)
	}
	return m
}

func parse(res map[string]string) Status {
	st := Status{
		Status:  res["status"],
		Message: res["message"],
		Kind:    res["kind"],
		Output:  res["output"],
	}
	// ignore parse error; default 0
	st.Progress, _ = strconv.Atoi(res["progress"])
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	if v := res["metadata"]; v != "" {
		_ = json.Unmarshal([]byte(v), &st.Metadata)
	}
	return st
}
