package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seo-optimizer/siteanalyzer/report"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func drain(sub *Subscription) []report.ProgressUpdate {
	var out []report.ProgressUpdate
	for {
		select {
		case u := <-sub.C:
			out = append(out, u)
		default:
			return out
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	assert.Equal(t, "example.com", NormalizeDomain("https://www.Example.com/path?q=1"))
	assert.Equal(t, "example.com", NormalizeDomain(" example.com "))
	assert.Equal(t, "shop.example.com", NormalizeDomain("http://shop.example.com"))
}

func TestCancelAbortsRegisteredRun(t *testing.T) {
	tr := NewTracker(quietLogger())
	ctx, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	require.NoError(t, Check(ctx))
	assert.True(t, tr.Cancel("www.example.com"))

	err := Check(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestCancelUnknownDomain(t *testing.T) {
	tr := NewTracker(quietLogger())
	assert.False(t, tr.Cancel("nothing.test"))
}

func TestParentCancellationIsReportedAsCancelled(t *testing.T) {
	tr := NewTracker(quietLogger())
	parent, cancel := context.WithCancel(context.Background())
	ctx, run := tr.Register(parent, "example.com", "run-1")
	defer run.Deregister()

	cancel()
	assert.ErrorIs(t, Check(ctx), ErrCancelled)
}

func TestDeregisterKeepsNewerRegistration(t *testing.T) {
	tr := NewTracker(quietLogger())
	_, first := tr.Register(context.Background(), "example.com", "run-1")
	secondCtx, second := tr.Register(context.Background(), "example.com", "run-2")

	first.Deregister()
	assert.True(t, tr.Active("example.com"), "older run must not remove the newer entry")

	assert.True(t, tr.Cancel("example.com"))
	assert.ErrorIs(t, Check(secondCtx), ErrCancelled)

	second.Deregister()
	assert.False(t, tr.Active("example.com"))
}

func TestPercentageIsMonotonic(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 16)
	defer sub.Unsubscribe()

	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	run.Stage("discovery", 20, "")
	run.Stage("analysis", 10, "")
	run.PageAnalyzed("https://example.com/a", 45)
	run.Stage("insights", 250, "")

	updates := drain(sub)
	require.Len(t, updates, 4)
	assert.Equal(t, []int{20, 20, 45, 100}, []int{
		updates[0].Percentage, updates[1].Percentage, updates[2].Percentage, updates[3].Percentage,
	})
	assert.Equal(t, 1, updates[2].PagesAnalyzed)
	assert.Equal(t, []string{"https://example.com/a"}, updates[2].AnalyzedPages)
	assert.Equal(t, "run-1", updates[0].RunID)
}

func TestConcurrentStagesDeliverInOrder(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 512)
	defer sub.Unsubscribe()

	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(percent int) {
			defer wg.Done()
			run.Stage("discovery", percent%100, "")
		}(i)
	}
	wg.Wait()
	run.Complete(nil)

	updates := drain(sub)
	require.Len(t, updates, 201)
	for i := 1; i < len(updates); i++ {
		assert.GreaterOrEqual(t, updates[i].Percentage, updates[i-1].Percentage, "update %d", i)
	}
	assert.Equal(t, report.StatusCompleted, updates[len(updates)-1].Status)
}

func TestSingleTerminalEvent(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 16)
	defer sub.Unsubscribe()

	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	run.Fail(ErrCancelled)
	run.Complete(&report.AnalysisResult{})
	run.Stage("late", 99, "")

	updates := drain(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, report.StatusCancelled, updates[0].Status)
}

func TestFailReportsError(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 4)
	defer sub.Unsubscribe()

	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()
	run.Fail(errors.New("boom"))

	updates := drain(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, report.StatusError, updates[0].Status)
	assert.Equal(t, "boom", updates[0].Error)
}

func TestSlowSubscriberStillGetsTerminalEvent(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 2)
	defer sub.Unsubscribe()

	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	for i := 1; i <= 10; i++ {
		run.Stage("analysis", i*5, "")
	}
	run.Complete(&report.AnalysisResult{Domain: "example.com"})

	updates := drain(sub)
	require.NotEmpty(t, updates)
	last := updates[len(updates)-1]
	assert.Equal(t, report.StatusCompleted, last.Status)
	assert.Equal(t, 100, last.Percentage)
	require.NotNil(t, last.Result)
}

func TestLateSubscriberReceivesLatest(t *testing.T) {
	tr := NewTracker(quietLogger())
	_, run := tr.Register(context.Background(), "example.com", "run-1")
	defer run.Deregister()

	run.Stage("discovery", 15, "Discovering pages")

	sub := tr.Subscribe("example.com", 4)
	defer sub.Unsubscribe()
	updates := drain(sub)
	require.Len(t, updates, 1)
	assert.Equal(t, 15, updates[0].Percentage)
	assert.Equal(t, "Discovering pages", updates[0].Message)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	tr := NewTracker(quietLogger())
	sub := tr.Subscribe("example.com", 1)
	assert.Equal(t, 1, tr.Subscribers("example.com"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	assert.Equal(t, 0, tr.Subscribers("example.com"))

	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestSleepHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Less(t, time.Since(start), time.Second)
}
