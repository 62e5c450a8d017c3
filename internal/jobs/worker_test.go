package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/pipeline"
	"videoflix.systems/videoflix/pkg/ffmpeg"
)

type fakeStore struct {
	mu         sync.Mutex
	pending    []*db.ConversionJob
	notBefore  map[int64]time.Time
	claimed    map[int64]*db.ConversionJob
	dequeued   map[int64]int
	succeeded  []int64
	failed     map[int64]string
	released   []int64
	delays     []time.Duration
	dequeueErr error
}

func newFakeStore(jobs ...*db.ConversionJob) *fakeStore {
	return &fakeStore{
		pending:   jobs,
		notBefore: map[int64]time.Time{},
		claimed:   map[int64]*db.ConversionJob{},
		dequeued:  map[int64]int{},
		failed:    map[int64]string{},
	}
}

// Dequeue hands out the first pending job that is due, like the SQL query.
func (s *fakeStore) Dequeue(ctx context.Context, workerID string) (*db.ConversionJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dequeueErr != nil {
		return nil, s.dequeueErr
	}
	now := time.Now()
	for i, job := range s.pending {
		if now.Before(s.notBefore[job.ID]) {
			continue
		}
		s.pending = append(s.pending[:i:i], s.pending[i+1:]...)
		s.dequeued[job.ID]++
		s.claimed[job.ID] = job
		job.Attempts++
		job.LockedBy = &workerID
		job.Status = db.ConversionJobStatusProcessing
		return job, nil
	}
	return nil, ErrNoJob
}

func (s *fakeStore) Succeed(ctx context.Context, jobID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.succeeded = append(s.succeeded, jobID)
	return nil
}

func (s *fakeStore) Fail(ctx context.Context, jobID int64, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed[jobID] = reason
	return nil
}

// Release puts the job back at the head of the queue, not due before delay.
func (s *fakeStore) Release(ctx context.Context, jobID int64, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, jobID)
	s.delays = append(s.delays, delay)
	j := s.claimed[jobID]
	j.Attempts--
	j.Status = db.ConversionJobStatusPending
	s.notBefore[jobID] = time.Now().Add(delay)
	s.pending = append([]*db.ConversionJob{j}, s.pending...)
	return nil
}

func (s *fakeStore) dequeueCount(jobID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeued[jobID]
}

type fakeLocker struct {
	mu       sync.Mutex
	held     map[int64]bool
	unlocked []int64
}

func newFakeLocker() *fakeLocker { return &fakeLocker{held: map[int64]bool{}} }

func (l *fakeLocker) TryLock(ctx context.Context, videoID int64) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[videoID] {
		return nil, false, nil
	}
	l.held[videoID] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, videoID)
		l.unlocked = append(l.unlocked, videoID)
	}, true, nil
}

type fakeConverter struct {
	mu    sync.Mutex
	calls []int64
	errs  map[int64]error
}

func (c *fakeConverter) Convert(ctx context.Context, videoID int64, sourceFile string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, videoID)
	return c.errs[videoID]
}

func job(id, videoID int64) *db.ConversionJob {
	return &db.ConversionJob{ID: id, VideoID: videoID, JobName: JobConvertVideoToHLS, SourceFile: "videos/a.mp4", Status: db.ConversionJobStatusPending}
}

func TestProcessNext_Success(t *testing.T) {
	store := newFakeStore(job(1, 10))
	locker := newFakeLocker()
	conv := &fakeConverter{}
	w := NewWorker("w1", store, locker, conv)

	worked, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Equal(t, []int64{10}, conv.calls)
	assert.Equal(t, []int64{1}, store.succeeded)
	assert.Equal(t, []int64{10}, locker.unlocked)

	worked, err = w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, worked)
}

func TestProcessNext_TranscodeFailureRecorded(t *testing.T) {
	store := newFakeStore(job(2, 20))
	failure := &pipeline.TranscodeFailure{
		VideoID: 20,
		Stage:   "rendition:720p",
		Stderr:  "moov atom not found\n",
		Err:     &ffmpeg.Error{Err: errors.New("exit status 1")},
	}
	conv := &fakeConverter{errs: map[int64]error{20: failure}}
	w := NewWorker("w1", store, newFakeLocker(), conv)

	worked, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Empty(t, store.succeeded)
	require.Contains(t, store.failed, int64(2))
	assert.Contains(t, store.failed[2], "rendition:720p")
	assert.Contains(t, store.failed[2], "moov atom not found")
}

func TestProcessNext_SourceMissingFails(t *testing.T) {
	store := newFakeStore(job(3, 30))
	conv := &fakeConverter{errs: map[int64]error{30: pipeline.ErrSourceMissing}}
	w := NewWorker("w1", store, newFakeLocker(), conv)

	_, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pipeline.ErrSourceMissing.Error(), store.failed[3])
}

func TestProcessNext_LeaseBusyReleasesJob(t *testing.T) {
	store := newFakeStore(job(4, 40))
	locker := newFakeLocker()
	locker.held[40] = true
	conv := &fakeConverter{}
	w := NewWorker("w1", store, locker, conv)

	worked, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Empty(t, conv.calls)
	assert.Equal(t, []int64{4}, store.released)
	assert.Equal(t, []time.Duration{w.LeaseRetryDelay}, store.delays)
	assert.Empty(t, store.succeeded)
	assert.Empty(t, store.failed)

	// The released job is not due yet.
	worked, err = w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.False(t, worked)
	assert.Equal(t, 1, store.dequeueCount(4))
}

type erroringLocker struct{ err error }

func (l erroringLocker) TryLock(ctx context.Context, videoID int64) (func(), bool, error) {
	return nil, false, l.err
}

func TestProcessNext_LeaseErrorReleasesAndReports(t *testing.T) {
	store := newFakeStore(job(8, 80))
	lockErr := errors.New("pool exhausted")
	conv := &fakeConverter{}
	w := NewWorker("w1", store, erroringLocker{err: lockErr}, conv)

	worked, err := w.ProcessNext(context.Background())
	assert.False(t, worked)
	assert.ErrorIs(t, err, lockErr)
	assert.Empty(t, conv.calls)
	assert.Equal(t, []int64{8}, store.released)
}

func TestRun_BusyLeaseDoesNotBlockOtherJobs(t *testing.T) {
	store := newFakeStore(job(1, 10), job(2, 20))
	locker := newFakeLocker()
	locker.held[10] = true
	conv := &fakeConverter{}
	w := NewWorker("w1", store, locker, conv)
	w.PollInterval = 5 * time.Millisecond
	w.LeaseRetryDelay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, make(chan struct{})) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop at its deadline")
	}

	conv.mu.Lock()
	assert.Equal(t, []int64{20}, conv.calls)
	conv.mu.Unlock()
	store.mu.Lock()
	assert.Equal(t, []int64{2}, store.succeeded)
	store.mu.Unlock()
	assert.Equal(t, 1, store.dequeueCount(1))
}

func TestProcessNext_UnknownJobKind(t *testing.T) {
	j := job(5, 50)
	j.JobName = "something_else"
	store := newFakeStore(j)
	conv := &fakeConverter{}
	w := NewWorker("w1", store, newFakeLocker(), conv)

	_, err := w.ProcessNext(context.Background())
	require.NoError(t, err)
	assert.Empty(t, conv.calls)
	assert.Contains(t, store.failed[5], "unknown job kind")
}

func TestProcessNext_DequeueError(t *testing.T) {
	store := newFakeStore()
	store.dequeueErr = errors.New("conn refused")
	w := NewWorker("w1", store, newFakeLocker(), &fakeConverter{})

	worked, err := w.ProcessNext(context.Background())
	assert.False(t, worked)
	assert.ErrorIs(t, err, store.dequeueErr)
}

type cancellingConverter struct {
	cancel context.CancelFunc
}

func (c cancellingConverter) Convert(ctx context.Context, videoID int64, sourceFile string) error {
	c.cancel()
	return context.Canceled
}

func TestProcessNext_ShutdownLeavesJobProcessing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := newFakeStore(job(6, 60))
	locker := newFakeLocker()
	w := NewWorker("w1", store, locker, cancellingConverter{cancel: cancel})

	worked, err := w.ProcessNext(ctx)
	require.NoError(t, err)
	assert.True(t, worked)
	assert.Empty(t, store.failed)
	assert.Empty(t, store.succeeded)
	assert.Equal(t, []int64{60}, locker.unlocked)
}

func TestRun_DrainsQueueAndStops(t *testing.T) {
	store := newFakeStore(job(1, 1), job(2, 2), job(3, 3))
	conv := &fakeConverter{}
	w := NewWorker("w1", store, newFakeLocker(), conv)
	w.PollInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, make(chan struct{})) }()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.succeeded) == 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Equal(t, []int64{1, 2, 3}, conv.calls)
}

func TestRun_WakeSignalPicksUpNewJob(t *testing.T) {
	store := newFakeStore()
	conv := &fakeConverter{}
	w := NewWorker("w1", store, newFakeLocker(), conv)
	w.PollInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wake := make(chan struct{}, 1)
	go func() { _ = w.Run(ctx, wake) }()

	time.Sleep(20 * time.Millisecond)
	store.mu.Lock()
	store.pending = append(store.pending, job(9, 90))
	store.mu.Unlock()
	wake <- struct{}{}

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.succeeded) == 1
	}, 2*time.Second, 5*time.Millisecond)
}

type fakeSweeper struct {
	stale       []*db.ConversionJob
	staleAfter  time.Duration
	maxAttempts int
	recovered   []int64
	exhausted   int64
	calls       int
}

func (s *fakeSweeper) StaleJobs(ctx context.Context, staleAfter time.Duration) ([]*db.ConversionJob, error) {
	s.calls++
	s.staleAfter = staleAfter
	return s.stale, nil
}

func (s *fakeSweeper) Recover(ctx context.Context, jobID int64) (bool, error) {
	s.recovered = append(s.recovered, jobID)
	return true, nil
}

func (s *fakeSweeper) FailExhausted(ctx context.Context, maxAttempts int) (int64, error) {
	s.maxAttempts = maxAttempts
	return s.exhausted, nil
}

func TestSweep(t *testing.T) {
	s := &fakeSweeper{stale: []*db.ConversionJob{job(1, 10)}, exhausted: 1}
	locker := newFakeLocker()
	Sweep(context.Background(), s, locker, MaintenanceOptions{StaleAfter: time.Hour, MaxAttempts: 3})
	assert.Equal(t, time.Hour, s.staleAfter)
	assert.Equal(t, 3, s.maxAttempts)
	assert.Equal(t, []int64{1}, s.recovered)
	assert.Equal(t, []int64{10}, locker.unlocked)
	assert.Empty(t, locker.held)

	s = &fakeSweeper{}
	Sweep(context.Background(), s, newFakeLocker(), MaintenanceOptions{StaleAfter: time.Hour})
	assert.Equal(t, 0, s.maxAttempts)
}

func TestSweep_LeasedJobIsNotRecovered(t *testing.T) {
	s := &fakeSweeper{stale: []*db.ConversionJob{job(1, 10), job(2, 20)}}
	locker := newFakeLocker()
	locker.held[10] = true

	Sweep(context.Background(), s, locker, MaintenanceOptions{StaleAfter: time.Hour, MaxAttempts: 3})
	assert.Equal(t, []int64{2}, s.recovered)
	assert.True(t, locker.held[10])
	assert.Equal(t, []int64{20}, locker.unlocked)
}

func TestSweep_LeaseProbeErrorSkipsJob(t *testing.T) {
	s := &fakeSweeper{stale: []*db.ConversionJob{job(1, 10)}}
	Sweep(context.Background(), s, erroringLocker{err: errors.New("conn reset")}, MaintenanceOptions{StaleAfter: time.Hour})
	assert.Empty(t, s.recovered)
}

func TestRunMaintenance_SweepsAtStartup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := &fakeSweeper{}
	require.NoError(t, RunMaintenance(ctx, s, newFakeLocker(), MaintenanceOptions{StaleAfter: time.Minute, MaxAttempts: 3}))
	assert.Equal(t, 1, s.calls)
}

func TestVideoLockID_StablePerVideo(t *testing.T) {
	assert.Equal(t, VideoLockID(42), VideoLockID(42))
	assert.NotEqual(t, VideoLockID(42), VideoLockID(43))
	assert.Equal(t, advisoryLockID("conversion", "42"), VideoLockID(42))
}

type fakeQuerier struct {
	db.Querier
	enqueued *db.EnqueueConversionJobParams
	retried  int64
}

func (f *fakeQuerier) EnqueueConversionJob(ctx context.Context, arg *db.EnqueueConversionJobParams) (*db.ConversionJob, error) {
	f.enqueued = arg
	return &db.ConversionJob{ID: 77, VideoID: arg.VideoID, JobName: arg.JobName, SourceFile: arg.SourceFile}, nil
}

func (f *fakeQuerier) RetryConversionJob(ctx context.Context, id int64) (int64, error) {
	return f.retried, nil
}

func TestTxEnqueuer(t *testing.T) {
	q := &fakeQuerier{}
	id, err := NewTxEnqueuer(q).Enqueue(context.Background(), 5, "videos/a.mp4")
	require.NoError(t, err)
	assert.Equal(t, int64(77), id)
	assert.Equal(t, &db.EnqueueConversionJobParams{VideoID: 5, JobName: "convert_video_to_hls", SourceFile: "videos/a.mp4"}, q.enqueued)
}

func TestQueueRetry(t *testing.T) {
	q := &fakeQuerier{retried: 1}
	ok, err := NewQueue(q).Retry(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, ok)

	q.retried = 0
	ok, err = NewQueue(q).Retry(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
