package worker

import "sync"

// extractionState tracks in-flight extractions and memoizes finished ones so
// repeated requests for the same upload never run the extraction twice.
type extractionState struct {
	mu      sync.Mutex
	waiters map[int64][]chan ExtractResult
	memo    map[int64]ExtractResult
}

func newExtractionState() *extractionState {
	return &extractionState{
		waiters: make(map[int64][]chan ExtractResult),
		memo:    make(map[int64]ExtractResult),
	}
}

// addWaiter registers interest in an upload's result. The first waiter owns
// queuing the job.
func (s *extractionState) addWaiter(uploadID int64, ch chan ExtractResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waiters[uploadID] = append(s.waiters[uploadID], ch)
	return len(s.waiters[uploadID]) == 1
}

// drainWaiters delivers the result to everyone waiting on the upload.
// Successful results are memoized.
func (s *extractionState) drainWaiters(uploadID int64, res ExtractResult) {
	s.mu.Lock()
	chans := s.waiters[uploadID]
	delete(s.waiters, uploadID)
	if res.Err == nil {
		s.memo[uploadID] = res
	}
	s.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *extractionState) memoized(uploadID int64) (ExtractResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.memo[uploadID]
	return res, ok
}

func (s *extractionState) purge(uploadID int64) {
	s.mu.Lock()
	delete(s.memo, uploadID)
	s.mu.Unlock()
}

func (s *extractionState) reset() {
	s.mu.Lock()
	s.waiters = make(map[int64][]chan ExtractResult)
	s.memo = make(map[int64]ExtractResult)
	s.mu.Unlock()
}
