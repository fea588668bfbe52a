package upload

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
)

type transferFunc func(ctx context.Context, t models.DocumentType, f File) (Result, error)

func (fn transferFunc) UploadDocument(ctx context.Context, t models.DocumentType, f File) (Result, error) {
	return fn(ctx, t, f)
}

func succeed(ctx context.Context, t models.DocumentType, f File) (Result, error) {
	return Result{FileURL: "https://files.example/" + string(t), FileName: f.Name}, nil
}

func pdf(name string, size int64) File {
	return File{Name: name, ContentType: "application/pdf", Size: size, Body: bytes.NewReader(nil)}
}

func newManager(t *testing.T, transfer Transferer, opts ...Option) (*Manager, *fields.Store) {
	t.Helper()
	store := fields.NewStore(models.NewDefaultDraft(models.CategoryHospital))
	m := New(store, transfer, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m, store
}

func TestStartUpload_Succeeds(t *testing.T) {
	release := make(chan struct{})
	m, store := newManager(t, transferFunc(func(ctx context.Context, dt models.DocumentType, f File) (Result, error) {
		<-release
		return succeed(ctx, dt, f)
	}))
	before := m.UploadedCount()

	task, err := m.StartUpload(context.Background(), "license", pdf("license.pdf", 5<<20))
	require.NoError(t, err)

	slot, _ := store.Slot("license")
	assert.Equal(t, models.UploadUploading, slot.Status)
	assert.True(t, m.IsUploading("license"))
	assert.Equal(t, []models.DocumentType{"license"}, m.InFlight())

	close(release)
	res, err := task.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://files.example/license", res.FileURL)

	slot, _ = store.Slot("license")
	assert.Equal(t, models.UploadCompleted, slot.Status)
	assert.Equal(t, "https://files.example/license", slot.RemoteURL)
	assert.Equal(t, "license.pdf", slot.FileName)
	assert.Equal(t, before+1, m.UploadedCount())
	assert.False(t, m.IsUploading("license"))
	assert.Empty(t, m.InFlight())
	assert.Equal(t, 21, m.TotalCount())
}

func TestStartUpload_RejectsFileWithoutTransition(t *testing.T) {
	var calls atomic.Int32
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, store := newManager(t, transferFunc(func(ctx context.Context, dt models.DocumentType, f File) (Result, error) {
		calls.Add(1)
		return succeed(ctx, dt, f)
	}), WithMetrics(metrics))

	cases := []struct {
		name   string
		file   File
		reason models.RejectReason
	}{
		{"too large", pdf("scan.pdf", 15<<20), models.RejectTooLarge},
		{"unsupported", File{Name: "notes.txt", ContentType: "text/plain", Size: 10}, models.RejectUnsupportedType},
		{"empty", pdf("empty.pdf", 0), models.RejectEmpty},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := m.StartUpload(context.Background(), "license", tc.file)
			assert.Nil(t, task)
			var rejected *models.FileRejected
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tc.reason, rejected.Reason)

			slot, _ := store.Slot("license")
			assert.Equal(t, models.UploadPending, slot.Status)
		})
	}
	assert.Zero(t, calls.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Rejected.WithLabelValues(string(models.RejectTooLarge))))
}

func TestAllowedContentType(t *testing.T) {
	for _, ct := range []string{
		"application/pdf",
		"application/msword",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/jpeg",
		"image/jpg",
		"IMAGE/PNG",
		"application/pdf; name=scan.pdf",
	} {
		assert.True(t, AllowedContentType(ct), ct)
	}
	for _, ct := range []string{"", "text/plain", "image/gif", "application/zip"} {
		assert.False(t, AllowedContentType(ct), ct)
	}
	assert.NoError(t, CheckFile("max.pdf", "application/pdf", MaxFileSize))
}

func TestStartUpload_FailureMovesToError(t *testing.T) {
	m, store := newManager(t, transferFunc(func(context.Context, models.DocumentType, File) (Result, error) {
		return Result{}, errors.New("connection reset")
	}))

	task, err := m.StartUpload(context.Background(), "fire", pdf("fire.pdf", 1024))
	require.NoError(t, err)
	_, err = task.Wait(context.Background())

	var failure *models.UploadFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.DocumentType("fire"), failure.Type)

	slot, _ := store.Slot("fire")
	assert.Equal(t, models.UploadError, slot.Status)
	assert.Empty(t, slot.RemoteURL)
	assert.False(t, m.IsUploading("fire"))

	require.NoError(t, m.Retry("fire"))
	slot, _ = store.Slot("fire")
	assert.Equal(t, models.UploadPending, slot.Status)
}

func TestStartUpload_EmptyURLIsFailure(t *testing.T) {
	m, store := newManager(t, transferFunc(func(context.Context, models.DocumentType, File) (Result, error) {
		return Result{FileName: "x.pdf"}, nil
	}))
	task, err := m.StartUpload(context.Background(), "fire", pdf("fire.pdf", 1024))
	require.NoError(t, err)
	_, err = task.Wait(context.Background())
	require.Error(t, err)
	slot, _ := store.Slot("fire")
	assert.Equal(t, models.UploadError, slot.Status)
}

func TestStartUpload_Timeout(t *testing.T) {
	m, store := newManager(t, transferFunc(func(ctx context.Context, _ models.DocumentType, _ File) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}), WithTimeout(20*time.Millisecond))

	task, err := m.StartUpload(context.Background(), "cyber", pdf("cyber.pdf", 1024))
	require.NoError(t, err)
	_, err = task.Wait(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	slot, _ := store.Slot("cyber")
	assert.Equal(t, models.UploadError, slot.Status)
}

func TestCancel(t *testing.T) {
	m, store := newManager(t, transferFunc(func(ctx context.Context, _ models.DocumentType, _ File) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}))

	task, err := m.StartUpload(context.Background(), "privacy", pdf("privacy.pdf", 1024))
	require.NoError(t, err)
	assert.True(t, m.Cancel("privacy"))

	_, err = task.Wait(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
	slot, _ := store.Slot("privacy")
	assert.Equal(t, models.UploadError, slot.Status)
	assert.False(t, m.Cancel("privacy"))
}

func TestSlotTransitions(t *testing.T) {
	m, store := newManager(t, transferFunc(succeed))

	_, err := m.StartUpload(context.Background(), "nope", pdf("a.pdf", 1))
	assert.ErrorIs(t, err, ErrUnknownDocument)

	assert.ErrorIs(t, m.Replace("license"), ErrInvalidTransition)
	assert.ErrorIs(t, m.Retry("license"), ErrInvalidTransition)

	task, err := m.StartUpload(context.Background(), "license", pdf("a.pdf", 1))
	require.NoError(t, err)
	_, err = task.Wait(context.Background())
	require.NoError(t, err)

	_, err = m.StartUpload(context.Background(), "license", pdf("b.pdf", 1))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, m.Replace("license"))
	slot, _ := store.Slot("license")
	assert.Equal(t, models.UploadPending, slot.Status)
	assert.Empty(t, slot.RemoteURL)

	task, err = m.StartUpload(context.Background(), "license", pdf("b.pdf", 1))
	require.NoError(t, err)
	_, err = task.Wait(context.Background())
	require.NoError(t, err)
	slot, _ = store.Slot("license")
	assert.Equal(t, "b.pdf", slot.FileName)
}

func TestStartUpload_SameSlotTwice(t *testing.T) {
	release := make(chan struct{})
	m, _ := newManager(t, transferFunc(func(ctx context.Context, dt models.DocumentType, f File) (Result, error) {
		<-release
		return succeed(ctx, dt, f)
	}))
	task, err := m.StartUpload(context.Background(), "license", pdf("a.pdf", 1))
	require.NoError(t, err)

	_, err = m.StartUpload(context.Background(), "license", pdf("a.pdf", 1))
	assert.ErrorIs(t, err, ErrInvalidTransition)

	close(release)
	_, err = task.Wait(context.Background())
	require.NoError(t, err)
}

func TestConcurrencyCap(t *testing.T) {
	var running, peak atomic.Int32
	release := make(chan struct{})
	m, store := newManager(t, transferFunc(func(ctx context.Context, dt models.DocumentType, f File) (Result, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		running.Add(-1)
		return succeed(ctx, dt, f)
	}), WithMaxConcurrent(2))

	types := []models.DocumentType{"license", "registration", "accreditation", "insurance", "fire"}
	tasks := make([]*Task, 0, len(types))
	for _, dt := range types {
		task, err := m.StartUpload(context.Background(), dt, pdf(string(dt)+".pdf", 1))
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	assert.Len(t, m.InFlight(), len(types))

	require.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
	close(release)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := task.Wait(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, len(types), store.Snapshot().UploadedCount())
	assert.Empty(t, m.InFlight())
}

func TestClose(t *testing.T) {
	m, store := newManager(t, transferFunc(func(ctx context.Context, _ models.DocumentType, _ File) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}))
	_, err := m.StartUpload(context.Background(), "license", pdf("a.pdf", 1))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	slot, _ := store.Slot("license")
	assert.Equal(t, models.UploadError, slot.Status)

	_, err = m.StartUpload(context.Background(), "registration", pdf("b.pdf", 1))
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Retry("license"), ErrClosed)
	assert.ErrorIs(t, m.Replace("license"), ErrClosed)

	slot, _ = store.Slot("license")
	assert.Equal(t, models.UploadError, slot.Status, "closed manager leaves slots alone")
}

func TestTaskWait_ContextEnds(t *testing.T) {
	release := make(chan struct{})
	m, _ := newManager(t, transferFunc(func(ctx context.Context, dt models.DocumentType, f File) (Result, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return succeed(ctx, dt, f)
	}))
	task, err := m.StartUpload(context.Background(), "license", pdf("a.pdf", 1))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = task.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	close(release)
	<-task.Done()
}
