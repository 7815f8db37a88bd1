// internal/writer/writer_test.go
package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dyp-sonar/internal/frame"
	"github.com/tamzrod/dyp-sonar/internal/transport"
)

// ---- fakes ----

// scriptedBus echoes writes unless fail says otherwise.
type scriptedBus struct {
	calls [][]byte
	fail  func(call int, req []byte) error
}

func (b *scriptedBus) Execute(req []byte, want int, timeout time.Duration) ([]byte, error) {
	n := len(b.calls)
	b.calls = append(b.calls, append([]byte(nil), req...))

	if b.fail != nil {
		if err := b.fail(n, req); err != nil {
			return nil, err
		}
	}
	return append([]byte(nil), req...), nil
}

type fakePauser struct {
	pauses  int
	resumes int
	err     error
}

func (p *fakePauser) Pause(ctx context.Context) (func(), error) {
	if p.err != nil {
		return nil, p.err
	}
	p.pauses++
	return func() { p.resumes++ }, nil
}

type recordingSink struct {
	seen map[uint8][]State
}

func (s *recordingSink) SetState(addr uint8, st State) {
	if s.seen == nil {
		s.seen = map[uint8][]State{}
	}
	s.seen[addr] = append(s.seen[addr], st)
}

func timeout() error {
	return &transport.TimeoutError{Want: frame.WriteResponseSize, After: time.Millisecond}
}

func newConfigurator(t *testing.T, tx Transactor, p Pauser, sink StatusSink) *Configurator {
	t.Helper()
	c, err := New(Config{MaxRetries: 3, WriteTimeout: 10 * time.Millisecond}, tx, p, sink, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}
	return c
}

var settings = Settings{Angle: 2, Denoise: 3}

// ---- tests ----

func TestApplySettings_AllSucceed(t *testing.T) {
	bus := &scriptedBus{}
	p := &fakePauser{}
	c := newConfigurator(t, bus, p, nil)

	report, err := c.ApplySettings(context.Background(), []uint8{1, 2}, settings)
	if err != nil {
		t.Fatalf("ApplySettings err=%v", err)
	}
	if !report.OK() {
		t.Fatalf("report not ok: %+v", report)
	}
	if len(bus.calls) != 4 {
		t.Fatalf("writes got=%d want=4", len(bus.calls))
	}

	want := frame.BuildWriteRequest(1, frame.RegAngle, 2)
	if string(bus.calls[0]) != string(want) {
		t.Fatalf("first write got=% X want=% X", bus.calls[0], want)
	}
	want = frame.BuildWriteRequest(1, frame.RegDenoise, 3)
	if string(bus.calls[1]) != string(want) {
		t.Fatalf("second write got=% X want=% X", bus.calls[1], want)
	}
	if bus.calls[2][0] != 2 {
		t.Fatalf("third write addr got=%d want=2", bus.calls[2][0])
	}

	if p.pauses != 1 || p.resumes != 1 {
		t.Fatalf("pause/resume got=%d/%d want=1/1", p.pauses, p.resumes)
	}
}

func TestApplySettings_SucceedsOnThirdCycle(t *testing.T) {
	// two writes per cycle; fail the first two cycles
	bus := &scriptedBus{fail: func(call int, _ []byte) error {
		if call < 4 {
			return timeout()
		}
		return nil
	}}
	sink := &recordingSink{}
	c := newConfigurator(t, bus, nil, sink)

	report, err := c.ApplySettings(context.Background(), []uint8{1}, settings)
	if err != nil {
		t.Fatalf("ApplySettings err=%v", err)
	}
	res := report.Results[0]
	if res.State != StateSuccess || res.Cycles != 3 {
		t.Fatalf("result got=%v/%d want=Success/3", res.State, res.Cycles)
	}
	if len(bus.calls) != 6 {
		t.Fatalf("writes got=%d want=6", len(bus.calls))
	}

	want := []State{StatePending, StateWriting, StateRetrying, StateWriting, StateRetrying, StateWriting, StateSuccess}
	got := sink.seen[1]
	if len(got) != len(want) {
		t.Fatalf("states got=%v want=%v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states got=%v want=%v", got, want)
		}
	}
}

func TestApplySettings_FailsAfterMaxRetries(t *testing.T) {
	bus := &scriptedBus{fail: func(int, []byte) error { return timeout() }}
	c := newConfigurator(t, bus, nil, nil)

	report, err := c.ApplySettings(context.Background(), []uint8{1}, settings)
	if err != nil {
		t.Fatalf("ApplySettings err=%v", err)
	}
	res := report.Results[0]
	if res.State != StateFailed || res.Cycles != 3 {
		t.Fatalf("result got=%v/%d want=Failed/3", res.State, res.Cycles)
	}
	if len(bus.calls) != 6 {
		t.Fatalf("writes got=%d want=6 (no fourth cycle)", len(bus.calls))
	}
	if !transport.IsTimeout(res.Err) {
		t.Fatalf("last err got=%v want timeout", res.Err)
	}
}

func TestApplySettings_OneFailedWriteFailsCycle(t *testing.T) {
	// denoise write always answers with a wrong value
	bus := &scriptedBus{fail: func(_ int, req []byte) error {
		if frame.Frame(req).Register() == frame.RegDenoise {
			return errors.New("garbled")
		}
		return nil
	}}
	c := newConfigurator(t, bus, nil, nil)

	report, _ := c.ApplySettings(context.Background(), []uint8{1}, settings)
	if report.Results[0].State != StateFailed {
		t.Fatalf("state got=%v want=Failed", report.Results[0].State)
	}
	// angle is still written every cycle
	if len(bus.calls) != 6 {
		t.Fatalf("writes got=%d want=6", len(bus.calls))
	}
}

func TestApplySettings_PartialFailureContinues(t *testing.T) {
	bus := &scriptedBus{fail: func(_ int, req []byte) error {
		if req[0] == 2 {
			return timeout()
		}
		return nil
	}}
	c := newConfigurator(t, bus, nil, nil)

	report, err := c.ApplySettings(context.Background(), []uint8{1, 2, 3}, settings)
	if err != nil {
		t.Fatalf("ApplySettings err=%v", err)
	}

	got := report.Outcomes()
	if !got[1] || got[2] || !got[3] {
		t.Fatalf("outcomes got=%v want 1:true 2:false 3:true", got)
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0] != 2 {
		t.Fatalf("failed got=%v want=[2]", failed)
	}
}

func TestApplySettings_IOErrorAbortsRun(t *testing.T) {
	ioErr := &transport.IOError{Op: "write", Err: errors.New("unplugged")}
	bus := &scriptedBus{fail: func(_ int, req []byte) error {
		if req[0] == 2 {
			return ioErr
		}
		return nil
	}}
	p := &fakePauser{}
	c := newConfigurator(t, bus, p, nil)

	report, err := c.ApplySettings(context.Background(), []uint8{1, 2, 3}, settings)
	if !transport.IsIOError(err) {
		t.Fatalf("err got=%v want IOError", err)
	}
	got := report.Outcomes()
	if len(got) != 3 || !got[1] || got[2] || got[3] {
		t.Fatalf("outcomes got=%v", got)
	}
	// address 2 got one write, address 3 none
	if len(bus.calls) != 3 {
		t.Fatalf("writes got=%d want=3", len(bus.calls))
	}
	if p.resumes != 1 {
		t.Fatalf("resumes got=%d want=1", p.resumes)
	}
}

func TestApplySettings_ConfigModeWrittenFirst(t *testing.T) {
	bus := &scriptedBus{}
	c := newConfigurator(t, bus, nil, nil)

	s := settings
	s.EnableConfigMode = true
	if _, err := c.ApplySettings(context.Background(), []uint8{1}, s); err != nil {
		t.Fatalf("ApplySettings err=%v", err)
	}
	if len(bus.calls) != 3 {
		t.Fatalf("writes got=%d want=3", len(bus.calls))
	}
	if r := frame.Frame(bus.calls[0]).Register(); r != frame.RegConfigMode {
		t.Fatalf("first reg got=0x%04X want=0x%04X", r, frame.RegConfigMode)
	}
}

func TestApplySettings_RejectsBadInput(t *testing.T) {
	bus := &scriptedBus{}
	p := &fakePauser{}
	c := newConfigurator(t, bus, p, nil)

	cases := []struct {
		name  string
		addrs []uint8
		s     Settings
	}{
		{"angle zero", []uint8{1}, Settings{Angle: 0, Denoise: 1}},
		{"angle high", []uint8{1}, Settings{Angle: 5, Denoise: 1}},
		{"denoise high", []uint8{1}, Settings{Angle: 1, Denoise: 6}},
		{"address zero", []uint8{0}, settings},
		{"address high", []uint8{248}, settings},
	}
	for _, tc := range cases {
		if _, err := c.ApplySettings(context.Background(), tc.addrs, tc.s); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if len(bus.calls) != 0 || p.pauses != 0 {
		t.Fatalf("bad input touched the bus: writes=%d pauses=%d", len(bus.calls), p.pauses)
	}
}

func TestApplySettings_PauseFailure(t *testing.T) {
	bus := &scriptedBus{}
	c := newConfigurator(t, bus, &fakePauser{err: errors.New("busy")}, nil)

	if _, err := c.ApplySettings(context.Background(), []uint8{1}, settings); err == nil {
		t.Fatalf("expected error")
	}
	if len(bus.calls) != 0 {
		t.Fatalf("writes got=%d want=0", len(bus.calls))
	}
}

func TestApplySettings_ContextCancelled(t *testing.T) {
	bus := &scriptedBus{}
	c, err := New(Config{
		MaxRetries:   3,
		WriteTimeout: 10 * time.Millisecond,
		AngleDelay:   time.Hour,
	}, bus, nil, nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New() err=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := c.ApplySettings(ctx, []uint8{1, 2}, settings)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err got=%v want context.Canceled", err)
	}
	if report.OK() || len(report.Results) != 2 {
		t.Fatalf("report got=%+v", report)
	}
}

func TestWriteRegister_EchoChecks(t *testing.T) {
	cases := []struct {
		name string
		resp func(req []byte) ([]byte, error)
		ok   bool
	}{
		{"full echo", func(req []byte) ([]byte, error) { return req, nil }, true},
		{"six bytes then timeout", func(req []byte) ([]byte, error) { return req[:6], timeout() }, true},
		{"five bytes", func(req []byte) ([]byte, error) { return req[:5], timeout() }, false},
		{"wrong value", func(req []byte) ([]byte, error) {
			b := append([]byte(nil), req...)
			b[5] ^= 0xFF
			return b, nil
		}, false},
		{"silence", func([]byte) ([]byte, error) { return nil, timeout() }, false},
	}

	for _, tc := range cases {
		tx := txFunc(tc.resp)
		c := newConfigurator(t, tx, nil, nil)
		err := c.WriteRegister(1, frame.RegAngle, 2)
		if (err == nil) != tc.ok {
			t.Fatalf("%s: err=%v ok want=%v", tc.name, err, tc.ok)
		}
	}
}

type txFunc func(req []byte) ([]byte, error)

func (f txFunc) Execute(req []byte, want int, timeout time.Duration) ([]byte, error) {
	return f(req)
}

func TestSetAddress_Retries(t *testing.T) {
	bus := &scriptedBus{fail: func(call int, _ []byte) error {
		if call == 0 {
			return timeout()
		}
		return nil
	}}
	p := &fakePauser{}
	c := newConfigurator(t, bus, p, nil)

	res, err := c.SetAddress(context.Background(), 1, 9)
	if err != nil {
		t.Fatalf("SetAddress err=%v", err)
	}
	if res.State != StateSuccess || res.Cycles != 2 {
		t.Fatalf("result got=%v/%d want=Success/2", res.State, res.Cycles)
	}
	want := frame.BuildWriteRequest(1, frame.RegAddress, 9)
	if string(bus.calls[1]) != string(want) {
		t.Fatalf("write got=% X want=% X", bus.calls[1], want)
	}
	if p.resumes != 1 {
		t.Fatalf("resumes got=%d want=1", p.resumes)
	}
}

func TestResetAddresses_OneAttemptEach(t *testing.T) {
	// only sensor 3 is present
	bus := &scriptedBus{fail: func(_ int, req []byte) error {
		if req[0] != 3 {
			return timeout()
		}
		return nil
	}}
	c := newConfigurator(t, bus, nil, nil)

	report, err := c.ResetAddresses(context.Background(), []uint8{1, 2, 3, 4}, 1)
	if err != nil {
		t.Fatalf("ResetAddresses err=%v", err)
	}
	if len(bus.calls) != 4 {
		t.Fatalf("writes got=%d want=4", len(bus.calls))
	}
	got := report.Outcomes()
	if got[1] || got[2] || !got[3] || got[4] {
		t.Fatalf("outcomes got=%v", got)
	}
}

func TestBoard_Text(t *testing.T) {
	b := NewBoard()
	if got := b.Text(7); got != "Pending" {
		t.Fatalf("unknown addr got=%q want=Pending", got)
	}
	b.SetState(7, StateRetrying)
	b.SetState(2, StateFailed)
	if got := b.Text(7); got != "Retrying" {
		t.Fatalf("got=%q want=Retrying", got)
	}
	addrs := b.Addresses()
	if len(addrs) != 2 || addrs[0] != 2 || addrs[1] != 7 {
		t.Fatalf("addresses got=%v", addrs)
	}
	b.Reset()
	if len(b.Addresses()) != 0 {
		t.Fatalf("reset left states")
	}
}
