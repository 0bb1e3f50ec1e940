package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonkenneth/RNB-coeur/internal/area"
)

func TestForArea(t *testing.T) {
	nat, err := ForArea("nat")
	require.NoError(t, err)
	assert.Equal(t, PublishNational, nat.Name)
	assert.Empty(t, nat.Args)
	assert.True(t, nat.Immutable)
	assert.NotEmpty(t, nat.ID)

	dpt, err := ForArea("75")
	require.NoError(t, err)
	assert.Equal(t, PublishDepartment, dpt.Name)
	assert.Equal(t, []string{"75"}, dpt.Args)
	assert.True(t, dpt.Immutable)

	corsica, err := ForArea("2A")
	require.NoError(t, err)
	assert.Equal(t, []string{"2A"}, corsica.Args)
}

func TestForArea_Unknown(t *testing.T) {
	for _, s := range []string{"XX", "", "NAT", "20", "977"} {
		_, err := ForArea(s)
		require.Error(t, err, "area %q", s)
		assert.ErrorIs(t, err, area.ErrUnknownArea)
		assert.Contains(t, err.Error(), "'"+s+"' given")
	}
}

func TestTaskAreas(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		want    []area.Area
		wantErr bool
	}{
		{"national", Task{Name: PublishNational}, []area.Area{area.National}, false},
		{"department", Task{Name: PublishDepartment, Args: []string{"33"}}, []area.Area{"33"}, false},
		{"department without args", Task{Name: PublishDepartment}, nil, true},
		{"department given nat", Task{Name: PublishDepartment, Args: []string{"nat"}}, nil, true},
		{"department unknown", Task{Name: PublishDepartment, Args: []string{"XX"}}, nil, true},
		{"unknown task", Task{Name: "reindex"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.task.Areas()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// memQueue is an in-memory Queue for worker tests.
type memQueue struct {
	mu     sync.Mutex
	tasks  []Task
	acked  []string
	nacked []string
	onIdle func()
}

func (q *memQueue) Enqueue(_ context.Context, t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *memQueue) Dequeue(ctx context.Context) (*Delivery, error) {
	q.mu.Lock()
	if len(q.tasks) == 0 {
		q.mu.Unlock()
		if q.onIdle != nil {
			q.onIdle()
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.mu.Unlock()

	return &Delivery{
		Task: t,
		ack: func() error {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.acked = append(q.acked, t.ID)
			return nil
		},
		nack: func() error {
			q.mu.Lock()
			defer q.mu.Unlock()
			q.nacked = append(q.nacked, t.ID)
			return nil
		},
	}, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls [][]area.Area
	fail  area.Area
}

func (p *recordingPublisher) Publish(_ context.Context, areas []area.Area) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, areas)
	if len(areas) == 1 && areas[0] == p.fail {
		return errors.New("upload failed")
	}
	return nil
}

func TestEnqueueAreas(t *testing.T) {
	q := &memQueue{}
	got, err := EnqueueAreas(context.Background(), q, []string{"nat", "75", "XX", "33"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XX")
	require.Len(t, got, 2)
	assert.Len(t, q.tasks, 2, "tasks after the invalid area are not enqueued")
	assert.False(t, q.tasks[0].EnqueuedAt.IsZero())
}

func TestWorkerRun(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	q := &memQueue{onIdle: cancel}
	_, err := EnqueueAreas(ctx, q, []string{"nat", "75", "13"})
	require.NoError(t, err)
	ids := []string{q.tasks[0].ID, q.tasks[1].ID, q.tasks[2].ID}

	pub := &recordingPublisher{fail: "75"}
	require.NoError(t, NewWorker(q, pub).Run(ctx))

	assert.Equal(t, [][]area.Area{{area.National}, {"75"}, {"13"}}, pub.calls)
	assert.Equal(t, []string{ids[0], ids[2]}, q.acked)
	assert.Equal(t, []string{ids[1]}, q.nacked)
}

func TestWorkerHandle_BadTaskIsNacked(t *testing.T) {
	q := &memQueue{}
	require.NoError(t, q.Enqueue(context.Background(), Task{ID: "t1", Name: "reindex"}))
	d, err := q.Dequeue(context.Background())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	NewWorker(q, pub).Handle(context.Background(), d)

	assert.Empty(t, pub.calls)
	assert.Equal(t, []string{"t1"}, q.nacked)
}

func TestStartScheduler(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	q := &memQueue{}

	done := make(chan struct{})
	go func() {
		StartScheduler(ctx, q, ScheduleConfig{Interval: time.Hour, RunOnStart: true})
		close(done)
	}()

	require.Eventually(t, func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return len(q.tasks) == len(area.All())
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, PublishNational, q.tasks[0].Name)
	assert.Equal(t, PublishDepartment, q.tasks[1].Name)
}

func TestStartScheduler_Disabled(t *testing.T) {
	q := &memQueue{}
	StartScheduler(context.Background(), q, ScheduleConfig{})
	assert.Empty(t, q.tasks)
}
