package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/gutsdata/explorer_backend/store"
)

type fakeLocker struct {
	err      error
	keys     []string
	released int
}

func (f *fakeLocker) Obtain(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return func(context.Context) error {
		f.released++
		return nil
	}, nil
}

func TestRunner_RunOnce(t *testing.T) {
	src := endToEndSource()
	locker := &fakeLocker{}
	r := NewRunner(newTestPipeline(src, store.NewMemoryStore()), locker)

	res, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if len(res.Ingested) != 2 {
		t.Fatalf("expected 2 ingested sessions, got %d", len(res.Ingested))
	}
	if len(locker.keys) != 1 || locker.keys[0] != LockKey || locker.released != 1 {
		t.Fatalf("lock not obtained and released once: %+v", locker)
	}
}

func TestRunner_SkipsWhenLockHeld(t *testing.T) {
	src := endToEndSource()
	r := NewRunner(newTestPipeline(src, store.NewMemoryStore()), &fakeLocker{err: ErrRunInProgress})

	if _, err := r.RunOnce(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if src.calls != 0 {
		t.Fatalf("pipeline must not run without the lock")
	}
}

func TestRunner_Unlocked(t *testing.T) {
	src := endToEndSource()
	r := NewRunner(newTestPipeline(src, store.NewMemoryStore()), nil)
	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if src.calls != 1 {
		t.Fatalf("expected one run, got %d", src.calls)
	}
}

func TestRunner_LoopStopsOnCancel(t *testing.T) {
	src := endToEndSource()
	r := NewRunner(newTestPipeline(src, store.NewMemoryStore()), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r.Loop(ctx, time.Hour)
	if src.calls != 1 {
		t.Fatalf("loop must run once before observing cancellation, got %d", src.calls)
	}
}

func TestPubSubPushHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("ENABLE_INGEST_PUSH_ENDPOINT", "true")

	src := endToEndSource()
	router := gin.New()
	router.POST("/pubsub/update-metadata", PubSubPushHandler(NewRunner(newTestPipeline(src, store.NewMemoryStore()), nil)))

	body := `{"message":{"data":"e30=","messageId":"m-1"},"subscription":"sub"}`
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pubsub/update-metadata", strings.NewReader(body)))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ingested":["s-eur","s-lei"]`) {
		t.Fatalf("unexpected summary %s", w.Body.String())
	}

	busy := gin.New()
	busy.POST("/pubsub/update-metadata", PubSubPushHandler(NewRunner(newTestPipeline(src, store.NewMemoryStore()), &fakeLocker{err: ErrRunInProgress})))
	w = httptest.NewRecorder()
	busy.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/pubsub/update-metadata", strings.NewReader(body)))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 while a run is in progress, got %d", w.Code)
	}
}

func TestRedisLocker_NotConnected(t *testing.T) {
	l := NewRedisLocker(func() *redislock.Client { return nil })
	if _, err := l.Obtain(context.Background(), LockKey, time.Second); !errors.Is(err, ErrLockUnavailable) {
		t.Fatalf("expected ErrLockUnavailable, got %v", err)
	}
}

func TestRunner_OnPersisted(t *testing.T) {
	r := NewRunner(newTestPipeline(endToEndSource(), store.NewMemoryStore()), nil)
	var got []string
	r.OnPersisted(func(_ context.Context, datasets []string) { got = datasets })

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	want := map[string]bool{store.DatasetFileLevel: true, store.DatasetLedger: true, store.DatasetProviders: true}
	for _, ds := range got {
		delete(want, ds)
	}
	if len(want) != 0 {
		t.Fatalf("missing persisted datasets %v in %v", want, got)
	}
}
