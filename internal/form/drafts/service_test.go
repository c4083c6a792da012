package drafts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"admissions-portal/internal/common/logger"
	"admissions-portal/internal/form/formdata"
	"admissions-portal/internal/form/gateway"
	"admissions-portal/internal/form/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeSaver struct {
	mu      sync.Mutex
	calls   []gateway.DraftRequest
	fail    int // number of upcoming calls that fail
	block   chan struct{}
	started chan struct{}
	nextID  int
}

func (f *fakeSaver) SaveDraft(ctx context.Context, req gateway.DraftRequest) (*gateway.DraftResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, gateway.DraftRequest{DraftID: req.DraftID, Data: req.Data.Clone()})
	block, started := f.block, f.started
	fail := f.fail > 0
	if fail {
		f.fail--
	}
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if fail {
		return nil, errors.New("connection refused")
	}
	id := req.DraftID
	if id == "" {
		f.mu.Lock()
		f.nextID++
		id = fmt.Sprintf("draft-%d", f.nextID)
		f.mu.Unlock()
	}
	return &gateway.DraftResponse{Success: true, DraftID: id}, nil
}

func (f *fakeSaver) Calls() []gateway.DraftRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.DraftRequest(nil), f.calls...)
}

func testConfig() Config {
	return Config{
		Debounce:    20 * time.Millisecond,
		AckDuration: 60 * time.Millisecond,
		MaxRetries:  2,
		SaveTimeout: time.Second,
	}
}

func setup(t *testing.T, saver *fakeSaver) (*Service, *store.Store) {
	t.Helper()
	st := store.New(store.Options{Key: "drafts-test", StepCount: 5})
	svc := NewService(testConfig(), st, saver, nil, logger.NewTestLogger(t))
	t.Cleanup(svc.Close)
	return svc, st
}

func edit(st *store.Store, svc *Service, path, value string) {
	st.SetField(path, value)
	svc.Touch()
}

// ==========================
// Tests
// ==========================

func TestDebounceCollapsesBurst(t *testing.T) {
	saver := &fakeSaver{}
	svc, st := setup(t, saver)

	for _, v := range []string{"D", "Do", "Doe"} {
		edit(st, svc, "personalInfo.surname", v)
	}

	assert.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)

	calls := saver.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Doe", calls[0].Data.String("personalInfo.surname"))
}

func TestDraftIDReusedAfterFirstSave(t *testing.T) {
	saver := &fakeSaver{}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	assert.Eventually(t, func() bool { return st.Snapshot().DraftID == "draft-1" }, time.Second, 5*time.Millisecond)

	edit(st, svc, "personalInfo.firstName", "John")
	assert.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, time.Second, 5*time.Millisecond)

	calls := saver.Calls()
	assert.Empty(t, calls[0].DraftID)
	assert.Equal(t, "draft-1", calls[1].DraftID)
	assert.Equal(t, "draft-1", st.Snapshot().DraftID)
}

func TestContentReadAtSendTime(t *testing.T) {
	saver := &fakeSaver{}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	// changed without a Touch; the save must still carry it
	st.SetField("personalInfo.firstName", "John")

	assert.Eventually(t, func() bool { return len(saver.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "John", saver.Calls()[0].Data.String("personalInfo.firstName"))
}

func TestFailureRetriedOnNextCycleUpToCap(t *testing.T) {
	saver := &fakeSaver{fail: 10}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")

	// first attempt plus MaxRetries automatic retries
	assert.Eventually(t, func() bool { return len(saver.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, saver.Calls(), 3)
	assert.Equal(t, 3, svc.Status().ConsecutiveFailures)
	assert.Empty(t, st.Snapshot().DraftID)
	assert.Empty(t, st.Snapshot().SubmitError, "draft failures never reach the banner")

	// a new edit refills the budget
	saver.mu.Lock()
	saver.fail = 0
	saver.mu.Unlock()
	edit(st, svc, "personalInfo.firstName", "John")
	assert.Eventually(t, func() bool { return st.Snapshot().DraftID != "" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, svc.Status().ConsecutiveFailures)
}

func TestTransientFailureRecovers(t *testing.T) {
	saver := &fakeSaver{fail: 1}
	svc, st := setup(t, saver)

	edit(st, svc, "referee.name", "Mary")
	assert.Eventually(t, func() bool { return st.Snapshot().DraftID == "draft-1" }, time.Second, 5*time.Millisecond)
	assert.Len(t, saver.Calls(), 2)
}

func TestResultDiscardedAfterReset(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	<-saver.started

	st.ResetForm()
	close(saver.block)

	assert.Eventually(t, func() bool { return !svc.Status().Saving }, time.Second, 5*time.Millisecond)
	assert.Empty(t, st.Snapshot().DraftID)
	assert.Empty(t, st.Snapshot().FormData)
}

func TestResultDiscardedAfterClose(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), started: make(chan struct{}, 1)}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	<-saver.started
	svc.Close()
	close(saver.block)

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, st.Snapshot().DraftID)
	assert.False(t, svc.Acknowledged())
}

func TestEditDuringInFlightSaveRunsAgain(t *testing.T) {
	saver := &fakeSaver{block: make(chan struct{}), started: make(chan struct{}, 2)}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	<-saver.started

	edit(st, svc, "personalInfo.firstName", "John")
	time.Sleep(40 * time.Millisecond) // timer fires while first save is blocked

	saver.mu.Lock()
	block := saver.block
	saver.block = nil
	saver.mu.Unlock()
	close(block)

	assert.Eventually(t, func() bool { return len(saver.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	second := saver.Calls()[1]
	assert.Equal(t, "John", second.Data.String("personalInfo.firstName"))
	assert.Eventually(t, func() bool { return st.Snapshot().DraftID == "draft-1" }, time.Second, 5*time.Millisecond)
}

func TestAcknowledgementAutoDismisses(t *testing.T) {
	saver := &fakeSaver{}
	svc, st := setup(t, saver)

	edit(st, svc, "personalInfo.surname", "Doe")
	assert.Eventually(t, svc.Acknowledged, time.Second, 2*time.Millisecond)
	assert.False(t, svc.Status().LastSavedAt.IsZero())
	assert.Eventually(t, func() bool { return !svc.Acknowledged() }, time.Second, 5*time.Millisecond)
}

func TestSaveNow(t *testing.T) {
	saver := &fakeSaver{}
	svc, st := setup(t, saver)

	st.UpdateFormData(formdata.Data{"referee": map[string]interface{}{"name": "Mary"}})
	require.NoError(t, svc.SaveNow(context.Background()))
	assert.Equal(t, "draft-1", st.Snapshot().DraftID)
	assert.True(t, svc.Acknowledged())

	saver.mu.Lock()
	saver.fail = 1
	saver.mu.Unlock()
	assert.Error(t, svc.SaveNow(context.Background()))
	assert.Equal(t, "draft-1", st.Snapshot().DraftID)
}

func TestEmptyDraftIsNotSent(t *testing.T) {
	saver := &fakeSaver{}
	svc, _ := setup(t, saver)

	require.NoError(t, svc.SaveNow(context.Background()))
	svc.Touch()
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, saver.Calls())
}

func TestBackendReportedFailure(t *testing.T) {
	st := store.New(store.Options{Key: "k", StepCount: 5})
	svc := NewService(testConfig(), st, saverFunc(func(ctx context.Context, req gateway.DraftRequest) (*gateway.DraftResponse, error) {
		return &gateway.DraftResponse{Success: false, Message: "storage unavailable"}, nil
	}), nil, nil)
	defer svc.Close()

	st.SetField("referee.name", "Mary")
	err := svc.SaveNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Draft save failed")
	assert.Empty(t, st.Snapshot().DraftID)
}

type saverFunc func(ctx context.Context, req gateway.DraftRequest) (*gateway.DraftResponse, error)

func (f saverFunc) SaveDraft(ctx context.Context, req gateway.DraftRequest) (*gateway.DraftResponse, error) {
	return f(ctx, req)
}
