package hunter

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"DipHunter/internal/cache"
	"DipHunter/internal/collector"
	"DipHunter/internal/model"
	"DipHunter/internal/recorder"
	"DipHunter/internal/store"
)

type fakeDispatcher struct {
	subjects []string
	users    []int64
}

func (f *fakeDispatcher) Dispatch(_ context.Context, u *model.User, subject, _ string) (bool, error) {
	f.subjects = append(f.subjects, subject)
	f.users = append(f.users, u.ID)
	return true, nil
}

// flatKlines never classifies as a downtrend: the latest range is zero.
func flatKlines(n int) []model.RawKline {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	out := make([]model.RawKline, n)
	for i := range out {
		open := start.Add(time.Duration(i) * time.Hour)
		out[i] = model.RawKline{
			OpenTime: open.UnixMilli(), Open: "100", High: "100", Low: "100", Close: "100", Volume: "10",
			CloseTime: open.Add(time.Hour).UnixMilli() - 1,
		}
	}
	return out
}

type env struct {
	runner   *Runner
	store    *store.SQLiteStore
	rec      *recorder.SQLiteRecorder
	fetcher  *collector.MockFetcher
	dispatch *fakeDispatcher
	cache    *cache.MemoryCache
	hunter   *model.Hunter
}

func newEnv(t *testing.T, running bool) *env {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	st, err := store.NewSQLiteStore(filepath.Join(dir, "hunters.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(dir, "history.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rec.Close() })

	uid, err := st.CreateUser(ctx, &model.User{Username: "bob", Email: "bob@example.com", EmailSignalsReceiver: true})
	if err != nil {
		t.Fatal(err)
	}
	h := model.NewHunter(uid)
	h.Running = running
	h.Toggles = model.Toggles{}
	if h.ID, err = st.CreateHunter(ctx, h); err != nil {
		t.Fatal(err)
	}

	f := &collector.MockFetcher{Klines: flatKlines(60)}
	d := &fakeDispatcher{}
	mc := cache.NewMemoryCache()
	r := NewRunner(collector.NewCollector(f, nil, nil, 0, time.Millisecond, 0), st, mc, d, rec, nil, nil)
	return &env{runner: r, store: st, rec: rec, fetcher: f, dispatch: d, cache: mc, hunter: h}
}

func TestRunOne_RunningDispatchesSignal(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	outcome, err := e.runner.RunOne(ctx, e.hunter)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if outcome != model.OutcomeBuy {
		t.Errorf("outcome = %s, want buy", outcome)
	}
	if len(e.dispatch.subjects) != 1 {
		t.Fatalf("dispatches = %d, want 1", len(e.dispatch.subjects))
	}
	if want := "Hunter 1 BTCUSDC BUY signal"; e.dispatch.subjects[0] != want {
		t.Errorf("subject = %q, want %q", e.dispatch.subjects[0], want)
	}
	if e.dispatch.users[0] != e.hunter.UserID {
		t.Errorf("dispatched to user %d", e.dispatch.users[0])
	}
	n, err := e.rec.CountCycles(e.hunter.ID)
	if err != nil || n != 1 {
		t.Errorf("recorded cycles = %d (%v)", n, err)
	}
}

func TestRunOne_StoppedPersistsWithoutDispatch(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	if _, err := e.runner.RunOne(ctx, e.hunter); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(e.dispatch.subjects) != 0 {
		t.Error("a stopped hunter must not notify")
	}
	got, err := e.store.Hunter(ctx, e.hunter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Klines) != 60 || got.KlinesFetched.IsZero() {
		t.Errorf("klines not persisted: %d rows, fetched %v", len(got.Klines), got.KlinesFetched)
	}

	var in model.DecisionInputs
	if err := e.cache.Get(ctx, inputsKey(e.hunter.ID), &in); err != nil {
		t.Fatalf("inputs not published: %v", err)
	}
	if in.Outcome != model.OutcomeNone || in.Rows != 60 {
		t.Errorf("unexpected inputs %+v", in)
	}
}

func TestRunOne_FetchErrorSkipsPersist(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)
	e.fetcher.Errs = []error{errors.New("timeout")}

	_, err := e.runner.RunOne(ctx, e.hunter)
	var fe *model.FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("want FetchError, got %v", err)
	}
	got, err := e.store.Hunter(ctx, e.hunter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Klines) != 0 {
		t.Error("nothing should be persisted on fetch failure")
	}
	if len(e.dispatch.subjects) != 0 {
		t.Error("no dispatch on fetch failure")
	}
	n, _ := e.rec.CountCycles(e.hunter.ID)
	if n != 1 {
		t.Errorf("failed cycle should still be recorded, got %d", n)
	}
}

func TestRunOne_EmptyKlines(t *testing.T) {
	e := newEnv(t, true)
	e.fetcher.Klines = []model.RawKline{}

	_, err := e.runner.RunOne(context.Background(), e.hunter)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestInputs_RecomputedFromStore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)
	if _, err := e.runner.RunOne(ctx, e.hunter); err != nil {
		t.Fatal(err)
	}
	if err := e.cache.Delete(ctx, inputsKey(e.hunter.ID)); err != nil {
		t.Fatal(err)
	}

	in, err := e.runner.Inputs(ctx, e.hunter.ID)
	if err != nil {
		t.Fatalf("inputs: %v", err)
	}
	if in.HunterID != e.hunter.ID || in.Latest["close"] != 100 {
		t.Errorf("unexpected inputs %+v", in)
	}
	if e.fetcher.Calls != 1 {
		t.Errorf("recompute must not fetch, calls = %d", e.fetcher.Calls)
	}
}

func TestInputs_NoKlines(t *testing.T) {
	e := newEnv(t, false)
	_, err := e.runner.Inputs(context.Background(), e.hunter.ID)
	var ve *model.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("want ValidationError, got %v", err)
	}
}

func TestTrigger_Manual(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, true)

	in, err := e.runner.Trigger(ctx, e.hunter.ID)
	if err != nil {
		t.Fatal(err)
	}
	if in.Outcome != model.OutcomeBuy {
		t.Errorf("outcome = %s, want buy", in.Outcome)
	}
	if _, err := e.runner.Trigger(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestCycleResult(t *testing.T) {
	tests := []struct {
		outcome model.Outcome
		err     error
		want    string
	}{
		{model.OutcomeNone, nil, "ok"},
		{model.OutcomeSell, nil, "signal"},
		{model.OutcomeNone, &model.FetchError{Err: errors.New("x")}, "fetch_error"},
		{model.OutcomeNone, &model.ValidationError{Reason: "x"}, "validation_error"},
		{model.OutcomeNone, errors.New("x"), "error"},
	}
	for _, tt := range tests {
		if got := cycleResult(tt.outcome, tt.err); got != tt.want {
			t.Errorf("cycleResult(%s, %v) = %s, want %s", tt.outcome, tt.err, got, tt.want)
		}
	}
}

func TestForget_DeletedHunterHasNoInputs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, false)

	if _, err := e.runner.RunOne(ctx, e.hunter); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := e.runner.Inputs(ctx, e.hunter.ID); err != nil {
		t.Fatalf("inputs before delete: %v", err)
	}
	if err := e.store.DeleteHunter(ctx, e.hunter.ID); err != nil {
		t.Fatal(err)
	}
	if err := e.runner.Forget(ctx, e.hunter.ID); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := e.runner.Inputs(ctx, e.hunter.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("inputs after delete: err = %v, want not found", err)
	}
	var in model.DecisionInputs
	if err := e.cache.Get(ctx, inputsKey(e.hunter.ID), &in); !errors.Is(err, cache.ErrCacheMiss) {
		t.Errorf("cache still holds inputs: %v", err)
	}
}
