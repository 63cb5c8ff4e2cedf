package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrNoRunRecorded = errors.New("no run recorded for job")

const defaultHistorySize = 20

// JobRunRecorder keeps the latest run of each job in redis, plus a capped
// list of recent runs.
type JobRunRecorder struct {
	client      redis.Cmdable
	historySize int64
}

// NewJobRunRecorder keeps historySize runs per job; zero means the default.
func NewJobRunRecorder(client redis.Cmdable, historySize int) *JobRunRecorder {
	if historySize <= 0 {
		historySize = defaultHistorySize
	}
	return &JobRunRecorder{client: client, historySize: int64(historySize)}
}

func lastRunKey(job string) string    { return fmt.Sprintf("attendance:jobs:%s:last", job) }
func runHistoryKey(job string) string { return fmt.Sprintf("attendance:jobs:%s:history", job) }

// RecordRun implements RunSink.
func (r *JobRunRecorder) RecordRun(ctx context.Context, run Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	body := string(payload)

	if err := r.client.Set(ctx, lastRunKey(run.Job), body, 0).Err(); err != nil {
		return fmt.Errorf("failed to store last run of %s: %w", run.Job, err)
	}
	if err := r.client.LPush(ctx, runHistoryKey(run.Job), body).Err(); err != nil {
		return fmt.Errorf("failed to append run history of %s: %w", run.Job, err)
	}
	if err := r.client.LTrim(ctx, runHistoryKey(run.Job), 0, r.historySize-1).Err(); err != nil {
		return fmt.Errorf("failed to trim run history of %s: %w", run.Job, err)
	}
	return nil
}

// LastRun returns the latest recorded run of job. Result is decoded as
// generic JSON.
func (r *JobRunRecorder) LastRun(ctx context.Context, job string) (Run, error) {
	body, err := r.client.Get(ctx, lastRunKey(job)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Run{}, ErrNoRunRecorded
		}
		return Run{}, fmt.Errorf("failed to read last run of %s: %w", job, err)
	}

	var run Run
	if err := json.Unmarshal([]byte(body), &run); err != nil {
		return Run{}, fmt.Errorf("failed to decode last run of %s: %w", job, err)
	}
	return run, nil
}

// History returns up to n recent runs of job, newest first.
func (r *JobRunRecorder) History(ctx context.Context, job string, n int) ([]Run, error) {
	if n <= 0 || int64(n) > r.historySize {
		n = int(r.historySize)
	}
	bodies, err := r.client.LRange(ctx, runHistoryKey(job), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run history of %s: %w", job, err)
	}

	runs := make([]Run, 0, len(bodies))
	for _, body := range bodies {
		var run Run
		if err := json.Unmarshal([]byte(body), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run history of %s: %w", job, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}
