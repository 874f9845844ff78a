package workerpool

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	chartgen "github.com/basswave/chartgen"
	"github.com/basswave/chartgen/internal/model"
)

func TestPool_CompletesAllJobs(t *testing.T) {
	var mu sync.Mutex
	var results []Result

	pool, err := New(Config{
		MaxWorkers: 3,
		OnResult: func(r Result) {
			mu.Lock()
			defer mu.Unlock()
			results = append(results, r)
		},
		GenerateFunc: func(context.Context, chartgen.AudioBuffer, chartgen.GenerateOptions) (model.Chart, error) {
			return model.Chart{}, nil
		},
	})
	assert.NoError(t, err)

	var jobs []Job
	for i := 0; i < 10; i++ {
		jobs = append(jobs, Job{ID: fmt.Sprintf("job-%d", i)})
	}

	assert.NoError(t, pool.Start(context.Background(), jobs))

	deadline := time.Now().Add(2 * time.Second)
	for pool.GetStatus().State == "running" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	status := pool.GetStatus()
	assert.Equal(t, "complete", status.State)
	assert.Equal(t, 10, status.Completed)
	assert.Equal(t, 0, status.Failed)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, results, 10)
}

func TestPool_CountsFailures(t *testing.T) {
	pool, err := New(Config{
		MaxWorkers: 2,
		GenerateFunc: func(context.Context, chartgen.AudioBuffer, chartgen.GenerateOptions) (model.Chart, error) {
			return model.Chart{}, chartgen.ErrMissingAudio
		},
	})
	assert.NoError(t, err)

	assert.NoError(t, pool.Start(context.Background(), []Job{{ID: "a"}, {ID: "b"}}))

	deadline := time.Now().Add(2 * time.Second)
	for pool.GetStatus().State == "running" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	status := pool.GetStatus()
	assert.Equal(t, 2, status.Failed)
	assert.Equal(t, 0, status.Completed)
}

func TestPool_RejectsDoubleStart(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	pool, err := New(Config{
		MaxWorkers: 1,
		GenerateFunc: func(context.Context, chartgen.AudioBuffer, chartgen.GenerateOptions) (model.Chart, error) {
			close(started)
			<-release
			return model.Chart{}, nil
		},
	})
	assert.NoError(t, err)

	assert.NoError(t, pool.Start(context.Background(), []Job{{ID: "a"}, {ID: "b"}}))
	<-started

	err = pool.Start(context.Background(), []Job{{ID: "c"}})
	assert.Error(t, err)

	close(release)
}

func TestNew_RequiresGenerateFunc(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
