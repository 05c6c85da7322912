package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"docuchat/internal/extract"
	"docuchat/internal/filerouter"
	"docuchat/internal/models"
)

func TestExtractionStateWaitersAndMemo(t *testing.T) {
	state := newExtractionState()

	ch1 := make(chan ExtractResult, 1)
	ch2 := make(chan ExtractResult, 1)
	if !state.addWaiter(7, ch1) {
		t.Fatalf("first waiter should own the job")
	}
	if state.addWaiter(7, ch2) {
		t.Fatalf("second waiter should join, not own")
	}

	state.drainWaiters(7, ExtractResult{UploadID: 7, Status: models.UploadExtracted, Pages: 3})
	for _, ch := range []chan ExtractResult{ch1, ch2} {
		select {
		case res := <-ch:
			if res.Pages != 3 {
				t.Fatalf("unexpected result: %+v", res)
			}
		default:
			t.Fatalf("waiter not drained")
		}
	}

	if res, ok := state.memoized(7); !ok || res.Pages != 3 {
		t.Fatalf("result not memoized: %+v ok=%v", res, ok)
	}
	state.purge(7)
	if _, ok := state.memoized(7); ok {
		t.Fatalf("purge did not clear memo")
	}

	// Errors are delivered but never memoized.
	ch3 := make(chan ExtractResult, 1)
	state.addWaiter(8, ch3)
	state.drainWaiters(8, ExtractResult{UploadID: 8, Err: errors.New("boom")})
	if _, ok := state.memoized(8); ok {
		t.Fatalf("error result should not be memoized")
	}

	state.reset()
}

func TestDispatcherExtractSuccess(t *testing.T) {
	store := newMockStore()
	store.add(&models.Upload{
		ID: 1, UserID: 5, FileName: "report.pdf",
		StoredPath: "/tmp/report.pdf", FileType: filerouter.TypePDF,
		Status: models.UploadPending,
	})

	restore := stubExtract(func(path string, t filerouter.FileType) (extract.Result, error) {
		return extract.Result{Text: "--- Page 1 ---\nhello", Pages: 1}, nil
	})
	defer restore()

	d := newTestDispatcher(store)
	res, err := d.Extract(context.Background(), 5, 1)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Status != models.UploadExtracted || res.Pages != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got := store.get(1); got.Status != models.UploadExtracted || got.ExtractedText == "" {
		t.Fatalf("extraction not persisted: %+v", got)
	}

	// Second call resolves from the memo without re-running extraction.
	calls := store.extractionCalls()
	if _, err := d.Extract(context.Background(), 5, 1); err != nil {
		t.Fatalf("Extract (memoized) error: %v", err)
	}
	if store.extractionCalls() != calls {
		t.Fatalf("memoized extract hit the store again")
	}
}

func TestDispatcherExtractFailureMarksUpload(t *testing.T) {
	store := newMockStore()
	store.add(&models.Upload{
		ID: 2, UserID: 5, FileName: "broken.docx",
		StoredPath: "/tmp/broken.docx", FileType: filerouter.TypeDOCX,
		Status: models.UploadPending,
	})

	restore := stubExtract(func(path string, t filerouter.FileType) (extract.Result, error) {
		return extract.Result{}, errors.New("corrupt container")
	})
	defer restore()

	d := newTestDispatcher(store)
	if _, err := d.Extract(context.Background(), 5, 2); err == nil {
		t.Fatalf("expected extraction error")
	}
	if got := store.get(2); got.Status != models.UploadFailed {
		t.Fatalf("upload not marked failed: %+v", got)
	}
}

func TestDispatcherImageUploadSkipsExtraction(t *testing.T) {
	store := newMockStore()
	store.add(&models.Upload{
		ID: 3, UserID: 6, FileName: "chart.png",
		StoredPath: "/tmp/chart.png", FileType: filerouter.TypeImage,
		Status: models.UploadPending,
	})

	restore := stubExtract(func(path string, t filerouter.FileType) (extract.Result, error) {
		panic("extraction should not run for images")
	})
	defer restore()

	d := newTestDispatcher(store)
	res, err := d.Extract(context.Background(), 6, 3)
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if res.Status != models.UploadNative {
		t.Fatalf("expected native status, got %+v", res)
	}
}

func TestDispatcherFairnessAcrossUsers(t *testing.T) {
	store := newMockStore()
	store.add(&models.Upload{ID: 10, UserID: 1, StoredPath: "/tmp/a.pdf", FileType: filerouter.TypePDF, Status: models.UploadPending})
	store.add(&models.Upload{ID: 11, UserID: 2, StoredPath: "/tmp/b.pdf", FileType: filerouter.TypePDF, Status: models.UploadPending})

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	restore := stubExtract(func(path string, ft filerouter.FileType) (extract.Result, error) {
		if path == "/tmp/a.pdf" {
			once.Do(func() { close(started) })
			<-block
		}
		return extract.Result{Text: "text", Pages: 1}, nil
	})
	defer restore()

	manager := NewManager(store, nil)
	d := NewDispatcher(1, 3, 10, manager, time.Minute)

	slowDone := make(chan error, 1)
	go func() {
		_, err := d.Extract(context.Background(), 1, 10)
		slowDone <- err
	}()

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("slow extraction did not start")
	}

	// Another user's job completes while user 1 blocks a worker.
	fastDone := make(chan error, 1)
	go func() {
		_, err := d.Extract(context.Background(), 2, 11)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		if err != nil {
			t.Fatalf("fast extraction error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("fast extraction blocked behind slow user")
	}

	close(block)
	if err := <-slowDone; err != nil {
		t.Fatalf("slow extraction error: %v", err)
	}
}

func TestDispatcherDuplicateRequestsShareOneJob(t *testing.T) {
	store := newMockStore()
	store.add(&models.Upload{ID: 20, UserID: 9, StoredPath: "/tmp/x.pdf", FileType: filerouter.TypePDF, Status: models.UploadPending})

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	var runs int64
	var mu sync.Mutex
	restore := stubExtract(func(path string, ft filerouter.FileType) (extract.Result, error) {
		mu.Lock()
		runs++
		mu.Unlock()
		once.Do(func() { close(started) })
		<-block
		return extract.Result{Text: "text", Pages: 2}, nil
	})
	defer restore()

	d := newTestDispatcher(store)

	results := make(chan ExtractResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			res, _ := d.Extract(context.Background(), 9, 20)
			results <- res
		}()
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("extraction did not start")
	}
	close(block)

	for i := 0; i < 2; i++ {
		select {
		case res := <-results:
			if res.Pages != 2 {
				t.Fatalf("unexpected result: %+v", res)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("waiter %d did not finish", i)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if runs != 1 {
		t.Fatalf("expected a single extraction run, got %d", runs)
	}
}

// --- helpers ---

func newTestDispatcher(store *mockStore) *Dispatcher {
	manager := NewManager(store, nil)
	return NewDispatcher(2, 2, 10, manager, time.Minute)
}

func stubExtract(fn func(string, filerouter.FileType) (extract.Result, error)) func() {
	orig := extractFile
	extractFile = fn
	return func() { extractFile = orig }
}

type mockStore struct {
	mu      sync.Mutex
	uploads map[int64]*models.Upload
	stores  int
}

func newMockStore() *mockStore {
	return &mockStore{uploads: make(map[int64]*models.Upload)}
}

func (m *mockStore) add(u *models.Upload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[u.ID] = u
}

func (m *mockStore) get(id int64) models.Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.uploads[id]
}

func (m *mockStore) extractionCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stores
}

func (m *mockStore) UploadByID(ctx context.Context, userID, uploadID int64) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[uploadID]
	if !ok || u.UserID != userID {
		return nil, errors.New("upload not found")
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) StoreExtraction(ctx context.Context, uploadID int64, text string, pages int, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[uploadID]
	if !ok {
		return errors.New("upload not found")
	}
	u.ExtractedText = text
	u.PageCount = pages
	u.Status = status
	m.stores++
	return nil
}
