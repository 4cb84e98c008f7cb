package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"DipHunter/internal/metrics"
	"DipHunter/internal/model"
	"DipHunter/internal/store"
)

type fakeRunner struct {
	triggered []int64
	forgotten []int64
}

func (f *fakeRunner) Forget(_ context.Context, id int64) error {
	f.forgotten = append(f.forgotten, id)
	return nil
}

func (f *fakeRunner) Inputs(_ context.Context, id int64) (*model.DecisionInputs, error) {
	if id == 404 {
		return nil, store.ErrNotFound
	}
	if id == 422 {
		return nil, &model.ValidationError{Reason: "no klines yet"}
	}
	return &model.DecisionInputs{HunterID: id, Latest: map[string]float64{"close": 101}, Trend: model.TrendUp}, nil
}

func (f *fakeRunner) Trigger(_ context.Context, id int64) (*model.DecisionInputs, error) {
	f.triggered = append(f.triggered, id)
	return &model.DecisionInputs{HunterID: id, Outcome: model.OutcomeBuy}, nil
}

var scheduled = []string{"1m", "5m", "15m", "30m", "1h", "2h", "4h", "1d"}

func newTestServer(t *testing.T) (*Server, *store.SQLiteStore, *fakeRunner, int64) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	uid, err := st.CreateUser(context.Background(), &model.User{Username: "dana"})
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	metrics.New(reg).RecordSignal("BTCUSDC", "buy")
	r := &fakeRunner{}
	return NewServer(":0", NewHandler(r, st, scheduled, nil), reg, nil), st, r, uid
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthAndMetrics(t *testing.T) {
	s, _, _, _ := newTestServer(t)
	if rec := do(s, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz = %d", rec.Code)
	}
	rec := do(s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "diphunter_signals_total") {
		t.Errorf("metrics = %d\n%s", rec.Code, rec.Body.String())
	}
}

func TestCreateAndListHunters(t *testing.T) {
	s, _, _, uid := newTestServer(t)

	body := `{"user_id": ` + itoa(uid) + `, "symbol": "ETHUSDC", "interval": "4h", "running": true,
		"toggles": {"price_signals": false, "trend_signals": true}, "profile": {"rsi_buy": 25}}`
	rec := do(s, http.MethodPost, "/api/hunters", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	data := decode(t, rec)["data"].(map[string]any)
	toggles := data["toggles"].(map[string]any)
	profile := data["profile"].(map[string]any)
	if toggles["price_signals"] != false || toggles["trend_signals"] != true || toggles["rsi_signals"] != true {
		t.Errorf("toggles not merged onto defaults: %v", toggles)
	}
	if profile["rsi_buy"] != 25.0 || profile["rsi_sell"] != 70.0 {
		t.Errorf("profile not merged onto defaults: %v", profile)
	}

	rec = do(s, http.MethodGet, "/api/hunters?user_id="+itoa(uid), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	list := decode(t, rec)["data"].(map[string]any)
	if list["total"] != 1.0 {
		t.Errorf("total = %v", list["total"])
	}
}

func TestCreateHunter_Rejected(t *testing.T) {
	s, _, _, uid := newTestServer(t)
	tests := []struct {
		name, body string
		want       int
	}{
		{"missing user", `{"symbol": "BTCUSDC"}`, http.StatusBadRequest},
		{"lowercase symbol", `{"user_id": ` + itoa(uid) + `, "symbol": "btcusdc"}`, http.StatusBadRequest},
		{"bad interval", `{"user_id": ` + itoa(uid) + `, "interval": "7x"}`, http.StatusBadRequest},
		{"bad profile", `{"user_id": ` + itoa(uid) + `, "profile": {"rsi_timeperiod": 1}}`, http.StatusBadRequest},
		{"unknown user", `{"user_id": 999}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(s, http.MethodPost, "/api/hunters", tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestInputsAndRun(t *testing.T) {
	s, _, r, _ := newTestServer(t)

	if rec := do(s, http.MethodGet, "/api/hunters/7/inputs", ""); rec.Code != http.StatusOK {
		t.Errorf("inputs = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/hunters/404/inputs", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing inputs = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/hunters/422/inputs", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("no klines = %d", rec.Code)
	}
	if rec := do(s, http.MethodGet, "/api/hunters/abc/inputs", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id = %d", rec.Code)
	}

	rec := do(s, http.MethodPost, "/api/hunters/7/run", "")
	if rec.Code != http.StatusOK || len(r.triggered) != 1 || r.triggered[0] != 7 {
		t.Errorf("run = %d triggered %v", rec.Code, r.triggered)
	}
}

func TestAnalysisAndDelete(t *testing.T) {
	s, st, r, uid := newTestServer(t)

	rec := do(s, http.MethodGet, "/api/users/"+itoa(uid)+"/analysis", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("analysis = %d", rec.Code)
	}
	data := decode(t, rec)["data"].(map[string]any)
	if data["symbol"] != "BTCUSDC" || data["kline_count"] != 0.0 {
		t.Errorf("unexpected analysis %v", data)
	}

	id, err := st.CreateHunter(context.Background(), model.NewHunter(uid))
	if err != nil {
		t.Fatal(err)
	}
	if rec := do(s, http.MethodDelete, "/api/hunters/"+itoa(id), ""); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d", rec.Code)
	}
	if len(r.forgotten) != 1 || r.forgotten[0] != id {
		t.Errorf("cached inputs not dropped on delete: %v", r.forgotten)
	}
	if rec := do(s, http.MethodDelete, "/api/hunters/"+itoa(id), ""); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d", rec.Code)
	}
}

func TestCreateHunter_UnscheduledInterval(t *testing.T) {
	s, st, _, uid := newTestServer(t)
	for _, iv := range []string{"6h", "12h", "45m", "1w", "3d"} {
		body := `{"user_id": ` + itoa(uid) + `, "interval": "` + iv + `"}`
		if rec := do(s, http.MethodPost, "/api/hunters", body); rec.Code != http.StatusBadRequest {
			t.Errorf("interval %s: status = %d, want 400", iv, rec.Code)
		}
	}
	hunters, err := st.HuntersByUser(context.Background(), uid)
	if err != nil {
		t.Fatal(err)
	}
	if len(hunters) != 0 {
		t.Errorf("stored %d hunters with unscheduled intervals", len(hunters))
	}
}

func TestUpdateHunter(t *testing.T) {
	s, st, r, uid := newTestServer(t)
	ctx := context.Background()
	h := model.NewHunter(uid)
	h.Running = true
	id, err := st.CreateHunter(ctx, h)
	if err != nil {
		t.Fatal(err)
	}

	body := `{"interval": "15m", "running": false, "comment": "quiet", "toggles": {"rsi_signals": false}, "profile": {"rsi_buy": 20}}`
	rec := do(s, http.MethodPut, "/api/hunters/"+itoa(id), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d %s", rec.Code, rec.Body.String())
	}
	got, err := st.Hunter(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Running || got.Interval != "15m" || got.Comment != "quiet" || got.Symbol != "BTCUSDC" {
		t.Errorf("update not applied: %+v", got)
	}
	if got.Toggles.RSI || !got.Toggles.Price {
		t.Errorf("toggles not merged: %+v", got.Toggles)
	}
	if got.Profile.RSIBuy != 20 || got.Profile.RSISell != 70 {
		t.Errorf("profile not merged: %+v", got.Profile)
	}
	if len(r.forgotten) != 1 || r.forgotten[0] != id {
		t.Errorf("cached inputs not dropped on update: %v", r.forgotten)
	}

	if rec := do(s, http.MethodPatch, "/api/hunters/"+itoa(id), `{"running": true}`); rec.Code != http.StatusOK {
		t.Errorf("patch = %d", rec.Code)
	}
	if got, _ := st.Hunter(ctx, id); !got.Running || got.Interval != "15m" {
		t.Errorf("patch changed more than running: %+v", got)
	}

	tests := []struct {
		name, target, body string
		want               int
	}{
		{"unscheduled interval", "/api/hunters/" + itoa(id), `{"interval": "6h"}`, http.StatusBadRequest},
		{"lowercase symbol", "/api/hunters/" + itoa(id), `{"symbol": "ethusdc"}`, http.StatusBadRequest},
		{"bad profile", "/api/hunters/" + itoa(id), `{"profile": {"rsi_timeperiod": 1}}`, http.StatusBadRequest},
		{"unknown hunter", "/api/hunters/999", `{"running": true}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(s, http.MethodPut, tt.target, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
	if got, _ := st.Hunter(ctx, id); got.Interval != "15m" || got.Symbol != "BTCUSDC" {
		t.Errorf("rejected update was stored: %+v", got)
	}
}

func TestCreateUser(t *testing.T) {
	s, st, _, _ := newTestServer(t)

	body := `{"username": "erin", "email": "erin@example.com", "telegram_chat_id": "42", "telegram_signals_receiver": true}`
	rec := do(s, http.MethodPost, "/api/users", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create user = %d %s", rec.Code, rec.Body.String())
	}
	data := decode(t, rec)["data"].(map[string]any)
	id := int64(data["id"].(float64))
	if data["username"] != "erin" || data["telegram_signals_receiver"] != true {
		t.Errorf("unexpected user %v", data)
	}
	a, err := st.AnalysisSettings(context.Background(), id)
	if err != nil {
		t.Fatalf("analysis settings not created with the user: %v", err)
	}
	if a.Symbol != "BTCUSDC" {
		t.Errorf("analysis symbol = %s", a.Symbol)
	}

	for _, bad := range []string{`{}`, `{"username": "x", "email": "nope"}`, `{"username": "y", "telegram_chat_id": "abc"}`} {
		if rec := do(s, http.MethodPost, "/api/users", bad); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", bad, rec.Code)
		}
	}
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
