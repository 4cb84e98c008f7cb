package notifier

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"DipHunter/internal/calculator"
	"DipHunter/internal/model"
)

func signalTable(t *testing.T) *calculator.Table {
	t.Helper()
	open := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	table := calculator.NewTable([]model.Bar{
		{OpenTime: open, CloseTime: open.Add(time.Hour - time.Millisecond), Close: 100, Volume: 10},
		{OpenTime: open.Add(time.Hour), CloseTime: open.Add(2*time.Hour - time.Millisecond), Close: 102.5, Volume: 12},
	})
	if err := table.Set(calculator.ColRSI, []float64{28, 31}); err != nil {
		t.Fatal(err)
	}
	return table
}

func TestSubject(t *testing.T) {
	h := model.NewHunter(1)
	h.ID = 7
	if got := Subject(h, model.OutcomeBuy); got != "Hunter 7 BTCUSDC BUY signal" {
		t.Errorf("subject = %q", got)
	}
}

func TestFormatSignal_OnlyEnabledSections(t *testing.T) {
	h := model.NewHunter(1)
	h.ID = 3
	h.Comment = "weekly dip"
	h.Toggles = model.Toggles{Price: true, RSI: true}

	body := FormatSignal(h, model.OutcomeBuy, model.TrendHorizontal, signalTable(t), model.Averages{"avg_close": 101.25}, time.Unix(0, 0))

	for _, want := range []string{
		"Current BUY signal.",
		"Hunter 3 BTCUSDC",
		"comment: weekly dip",
		"trend: horizontal",
		"close 102.50 (prev 100.00, avg 101.25 over 3)",
		"RSI (Relative Strength Index):",
		"rsi 31.00 (prev 28.00)",
		"avg_rsi n/a",
		"Conditions:",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q\n%s", want, body)
		}
	}
	for _, absent := range []string{"Volume:", "MACD", "Bollinger", "note:"} {
		if strings.Contains(body, absent) {
			t.Errorf("body should not contain %q", absent)
		}
	}
}

func TestFormatSignal_PriceToggleOff(t *testing.T) {
	h := model.NewHunter(1)
	h.Toggles = model.Toggles{}
	body := FormatSignal(h, model.OutcomeSell, model.TrendNone, signalTable(t), model.Averages{}, time.Now())
	if strings.Contains(body, "Price:") {
		t.Error("price block should be omitted when the price toggle is off")
	}
	if !strings.Contains(body, "Current SELL signal.") {
		t.Error("missing header")
	}
}

func TestFormatInputs(t *testing.T) {
	in := &model.DecisionInputs{
		HunterID: 2, Symbol: "ETHUSDC", Interval: "4h", Rows: 250,
		Latest:   map[string]float64{"rsi": 44.123, "close": 2000},
		Averages: model.Averages{"avg_rsi": 40},
		Trend:    model.TrendUp, Outcome: model.OutcomeNone,
	}
	out := FormatInputs(in)
	if !strings.Contains(out, "rsi: 44.12 (avg 40.00)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Index(out, "close:") > strings.Index(out, "rsi:") {
		t.Error("keys should be sorted")
	}
}

func TestFormatHunters(t *testing.T) {
	if got := FormatHunters(nil); got != "No hunters configured." {
		t.Errorf("got %q", got)
	}
	h := model.NewHunter(1)
	h.ID = 9
	h.Running = true
	if got := FormatHunters([]*model.Hunter{h}); !strings.Contains(got, "#9 BTCUSDC 1h running") {
		t.Errorf("got %q", got)
	}
}

type fakeEmail struct {
	sent []string
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, to, subject, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to+"|"+subject)
	return nil
}

type fakeChat struct {
	sent []string
	err  error
}

func (f *fakeChat) SendChatMessage(_ context.Context, chatID, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func TestDispatch_OptIns(t *testing.T) {
	tests := []struct {
		name               string
		user               *model.User
		wantEmail, wantTel int
		wantNotified       bool
	}{
		{"both", &model.User{Email: "a@b.io", TelegramChatID: "42", EmailSignalsReceiver: true, TelegramSignalsReceiver: true}, 1, 1, true},
		{"email only", &model.User{Email: "a@b.io", TelegramChatID: "42", EmailSignalsReceiver: true}, 1, 0, true},
		{"telegram without chat id", &model.User{TelegramSignalsReceiver: true}, 0, 0, false},
		{"opted out", &model.User{Email: "a@b.io", TelegramChatID: "42"}, 0, 0, false},
		{"nil user", nil, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email, chat := &fakeEmail{}, &fakeChat{}
			d := NewDispatcher(email, chat, nil)
			notified, err := d.Dispatch(context.Background(), tt.user, "s", "b")
			if err != nil {
				t.Fatal(err)
			}
			if notified != tt.wantNotified || len(email.sent) != tt.wantEmail || len(chat.sent) != tt.wantTel {
				t.Errorf("notified=%v email=%d telegram=%d", notified, len(email.sent), len(chat.sent))
			}
		})
	}
}

func TestDispatch_FailureIsolated(t *testing.T) {
	email := &fakeEmail{err: errors.New("smtp down")}
	chat := &fakeChat{}
	d := NewDispatcher(email, chat, nil)
	var failed []string
	d.OnFailure = func(channel string, _ error) { failed = append(failed, channel) }

	u := &model.User{Email: "a@b.io", TelegramChatID: "42", EmailSignalsReceiver: true, TelegramSignalsReceiver: true}
	notified, err := d.Dispatch(context.Background(), u, "s", "b")

	if !notified {
		t.Error("telegram delivery should still count")
	}
	var de *model.DispatchError
	if !errors.As(err, &de) || de.Channel != ChannelEmail {
		t.Fatalf("want email DispatchError, got %v", err)
	}
	if len(failed) != 1 || failed[0] != ChannelEmail {
		t.Errorf("failure hook calls = %v", failed)
	}
}

func TestChunk(t *testing.T) {
	parts := chunk(strings.Repeat("x", 10), 4)
	if len(parts) != 3 || parts[2] != "xx" {
		t.Errorf("chunk = %v", parts)
	}
	if got := chunk("short", 10); len(got) != 1 {
		t.Errorf("chunk = %v", got)
	}
}

func TestWithRetry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), zapNop(), 2, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err=%v calls=%d", err, calls)
	}

	calls = 0
	err = withRetry(context.Background(), zapNop(), 1, time.Millisecond, func() error {
		calls++
		return errors.New("down")
	})
	if err == nil || calls != 2 {
		t.Errorf("err=%v calls=%d", err, calls)
	}
}

func zapNop() *zap.Logger { return zap.NewNop() }

// flakyChat fails its first n sends, n being failures.
type flakyChat struct {
	failures int
	calls    int
}

func (f *flakyChat) SendChatMessage(context.Context, string, string) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("telegram 502")
	}
	return nil
}

func TestDispatch_Retries(t *testing.T) {
	u := &model.User{ID: 1, TelegramChatID: "100", TelegramSignalsReceiver: true}

	chat := &flakyChat{failures: 2}
	d := NewDispatcher(nil, chat, nil)
	d.Retries, d.Backoff = 2, time.Millisecond
	notified, err := d.Dispatch(context.Background(), u, "s", "b")
	if err != nil || !notified || chat.calls != 3 {
		t.Errorf("notified=%v err=%v calls=%d", notified, err, chat.calls)
	}

	chat = &flakyChat{failures: 5}
	d = NewDispatcher(nil, chat, nil)
	d.Retries, d.Backoff = 1, time.Millisecond
	var failed []string
	d.OnFailure = func(channel string, _ error) { failed = append(failed, channel) }
	notified, err = d.Dispatch(context.Background(), u, "s", "b")
	var de *model.DispatchError
	if notified || !errors.As(err, &de) || chat.calls != 2 {
		t.Errorf("notified=%v err=%v calls=%d", notified, err, chat.calls)
	}
	if len(failed) != 1 || failed[0] != ChannelTelegram {
		t.Errorf("failure hook calls = %v", failed)
	}
}
