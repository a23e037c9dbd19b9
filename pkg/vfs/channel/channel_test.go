package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marmos91/memvfs/pkg/vfs/attrs"
	"github.com/marmos91/memvfs/pkg/vfs/file"
	"github.com/marmos91/memvfs/pkg/vfs/verrors"
)

func newTestFile() *file.RegularFile {
	return file.New(8, nil, attrs.NewRecord(0, 0, 0o644))
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)
	ctx := context.Background()

	n, err := c.Write(ctx, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)

	pos, err := c.Position()
	require.NoError(t, err)
	require.Equal(t, uint64(5), pos, "position must advance by the number of bytes written")

	require.NoError(t, c.SetPosition(0))
	got := make([]byte, 5)
	n, err = c.Read(ctx, got)
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
	require.Equal(t, "hello", string(got))
}

func TestNonReadableChannelRejectsRead(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeWrite)
	_, err := c.Read(context.Background(), make([]byte, 1))
	require.ErrorIs(t, err, verrors.ErrNonReadableChannel)
}

func TestNonWritableChannelRejectsWrite(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead)
	_, err := c.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, verrors.ErrNonWritableChannel)
}

func TestCloseIsIdempotent(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	require.False(t, c.IsOpen())
}

func TestOperationAfterCloseFails(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)
	require.NoError(t, c.Close())

	_, err := c.Write(context.Background(), []byte("x"))
	require.ErrorIs(t, err, verrors.ErrClosedChannel)
}

func TestAppendIsAtomicAcrossChannels(t *testing.T) {
	f := newTestFile()
	ctx := context.Background()
	const writers = 8
	const payload = "AB"

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := Open(f, ModeWrite|ModeAppend)
			defer c.Close()
			_, err := c.Write(ctx, []byte(payload))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	if got := f.Store().Size(); got != uint64(writers*len(payload)) {
		t.Fatalf("Size() = %d, want %d (each append must claim a disjoint region)", got, writers*len(payload))
	}
}

func TestWriteAtInAppendModeRedirectsToEnd(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeWrite|ModeAppend)
	ctx := context.Background()

	_, err := c.Write(ctx, []byte("hello"))
	require.NoError(t, err)

	n, err := c.WriteAt(ctx, []byte("!!"), 0)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	require.Equal(t, uint64(7), f.Store().Size(), "an append-mode WriteAt must land at the file's end, not at the requested position")

	pos, err := c.Position()
	require.NoError(t, err)
	require.Equal(t, uint64(7), pos, "an append-mode WriteAt must update the channel position to the post-write size")
}

func TestCloseInterruptsBlockedReader(t *testing.T) {
	f := newTestFile()
	ctx := context.Background()

	// Hold the write lock so a concurrent read blocks.
	lockHeld := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = f.WriteLocked(ctx, func() error {
			close(lockHeld)
			<-unblock
			return nil
		})
	}()
	<-lockHeld

	reader := Open(f, ModeRead)

	readErrCh := make(chan error, 1)
	go func() {
		_, readErr := reader.Read(ctx, make([]byte, 1))
		readErrCh <- readErr
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, reader.Close())
	close(unblock)

	readErr := <-readErrCh
	require.Error(t, readErr)
	require.True(t, errors.Is(readErr, verrors.ErrAsynchronousClose), "expected ErrAsynchronousClose, got %v", readErr)
}

func TestContextCancelDuringBlockClosesChannel(t *testing.T) {
	f := newTestFile()
	bgCtx := context.Background()

	lockHeld := make(chan struct{})
	unblock := make(chan struct{})
	go func() {
		_ = f.WriteLocked(bgCtx, func() error {
			close(lockHeld)
			<-unblock
			return nil
		})
	}()
	<-lockHeld
	defer close(unblock)

	reader := Open(f, ModeRead)
	readCtx, cancel := context.WithCancel(context.Background())

	readErrCh := make(chan error, 1)
	go func() {
		_, readErr := reader.Read(readCtx, make([]byte, 1))
		readErrCh <- readErr
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	readErr := <-readErrCh
	require.Error(t, readErr)
	require.True(t, errors.Is(readErr, verrors.ErrClosedByInterrupt), "expected ErrClosedByInterrupt, got %v", readErr)
	require.False(t, reader.IsOpen(), "an interrupted blocking operation must close its channel")
}

func TestLockAndReleaseAreAdvisoryOnly(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)

	l, err := c.Lock(0, 10, false)
	require.NoError(t, err)
	require.True(t, l.IsValid())

	// Advisory locks are never enforced: a write inside the locked region
	// from the same channel must still succeed.
	_, err = c.Write(context.Background(), []byte("hi"))
	require.NoError(t, err)

	l.Release()
	require.False(t, l.IsValid())
	l.Release() // idempotent
}

func TestCloseReleasesOutstandingLocks(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)
	l, err := c.Lock(0, 0, false)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.False(t, l.IsValid(), "closing a channel must release its advisory locks")
}

func TestGatherWriteWithNilBufferFailsIllegalArgumentWithoutLocking(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeWrite)

	// Hold the file's write lock on a separate goroutine for the whole
	// test so that, if WriteSrcs ever tried to acquire it, the call below
	// would block instead of returning immediately.
	lockHeld := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = f.WriteLocked(context.Background(), func() error {
			close(lockHeld)
			<-release
			return nil
		})
	}()
	<-lockHeld
	defer close(release)

	done := make(chan error, 1)
	go func() {
		_, err := c.WriteSrcs(context.Background(), [][]byte{[]byte("ok"), nil})
		done <- err
	}()

	select {
	case err := <-done:
		require.ErrorIs(t, err, verrors.ErrIllegalArgument)
	case <-time.After(50 * time.Millisecond):
		t.Fatal("WriteSrcs with a nil buffer must fail fast without acquiring the file lock")
	}
}

func TestScatterReadWithEmptyBufferListFailsIllegalArgument(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead|ModeWrite)
	ctx := context.Background()
	_, err := c.Write(ctx, []byte("hello"))
	require.NoError(t, err)

	require.NoError(t, c.SetPosition(0))
	_, err = c.ReadDsts(ctx, nil)
	require.ErrorIs(t, err, verrors.ErrIllegalArgument)
}

func TestMapUnsupported(t *testing.T) {
	f := newTestFile()
	c := Open(f, ModeRead)
	err := c.Map()
	require.ErrorIs(t, err, verrors.ErrUnsupported)
}
