package batch

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fnuworsu/gqldb/pkg/query"
	"github.com/fnuworsu/gqldb/pkg/storage"
	"github.com/fnuworsu/gqldb/pkg/value"
)

func newEngine(t *testing.T) *query.Engine {
	t.Helper()
	s := storage.NewMemoryStore()
	for i, dept := range []string{"eng", "ops", "eng"} {
		_, err := s.Put(fmt.Sprintf("e%d", i), value.ObjectOf("dept", dept, "salary", 10*(i+1)))
		require.NoError(t, err)
	}
	return query.NewEngine(s)
}

func TestRun_OrderAndIsolation(t *testing.T) {
	engine := newEngine(t)
	jobs := []Job{
		{Name: "all", Query: query.Query{}},
		{Name: "bad", Query: query.Query{Select: "sum(salary", GroupBy: "dept"}},
		{Name: "by-dept", Query: query.Query{Select: "dept, sum(salary)", GroupBy: "dept"}},
		{Name: "where", Query: query.Query{Where: "salary > 15"}},
	}

	outcomes := Run(context.Background(), engine, jobs, 2, nil)
	require.Len(t, outcomes, 4)

	for i, o := range outcomes {
		assert.Equal(t, jobs[i].Name, o.Name)
	}

	require.NoError(t, outcomes[0].Err)
	assert.Len(t, outcomes[0].Result.Rows, 3)

	assert.ErrorIs(t, outcomes[1].Err, query.ErrParsing)
	assert.Nil(t, outcomes[1].Result)

	require.NoError(t, outcomes[2].Err)
	require.Len(t, outcomes[2].Result.Rows, 2)
	assert.Equal(t, "eng", outcomes[2].Result.Rows[0].Value("dept"))
	assert.Equal(t, 40.0, outcomes[2].Result.Rows[0].Value("sum(salary)"))

	require.NoError(t, outcomes[3].Err)
	assert.Len(t, outcomes[3].Result.Rows, 2)

	assert.Equal(t, 1, Failed(outcomes))
}

func TestRun_Empty(t *testing.T) {
	outcomes := Run(context.Background(), newEngine(t), nil, 4, nil)
	assert.Empty(t, outcomes)
}

type querierFunc func(ctx context.Context, q query.Query) (*query.Result, error)

func (f querierFunc) Query(ctx context.Context, q query.Query) (*query.Result, error) {
	return f(ctx, q)
}

func TestRun_BoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	engine := querierFunc(func(context.Context, query.Query) (*query.Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		running.Add(-1)
		return &query.Result{}, nil
	})

	jobs := make([]Job, 12)
	for i := range jobs {
		jobs[i].Name = fmt.Sprintf("j%d", i)
	}

	outcomes := Run(context.Background(), engine, jobs, 3, nil)
	assert.Equal(t, 0, Failed(outcomes))
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestRun_Panic(t *testing.T) {
	engine := querierFunc(func(_ context.Context, q query.Query) (*query.Result, error) {
		if q.Select == "boom" {
			panic("boom")
		}
		return &query.Result{}, nil
	})

	outcomes := Run(context.Background(), engine, []Job{
		{Name: "ok"},
		{Name: "panics", Query: query.Query{Select: "boom"}},
	}, 2, nil)

	assert.NoError(t, outcomes[0].Err)
	assert.ErrorContains(t, outcomes[1].Err, "panicked")
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	engine := querierFunc(func(context.Context, query.Query) (*query.Result, error) {
		calls.Add(1)
		return nil, errors.New("unreachable")
	})

	outcomes := Run(ctx, engine, []Job{{Name: "a"}, {Name: "b"}}, 2, nil)
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
	}
	assert.Zero(t, calls.Load())
}
