// internal/monitor/monitor_test.go
package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/dyp-sonar/internal/config"
	"github.com/tamzrod/dyp-sonar/internal/frame"
	"github.com/tamzrod/dyp-sonar/internal/poller"
	"github.com/tamzrod/dyp-sonar/internal/status"
	"github.com/tamzrod/dyp-sonar/internal/transport"
	"github.com/tamzrod/dyp-sonar/internal/transport/transporttest"
	"github.com/tamzrod/dyp-sonar/internal/writer"
)

type silentBus struct{}

func (silentBus) Execute(req []byte, want int, timeout time.Duration) ([]byte, error) {
	return nil, &transport.TimeoutError{Want: want, After: timeout}
}

func newMonitor(t *testing.T, c *config.Config) *Monitor {
	t.Helper()
	m, err := Build(c, silentBus{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	return m
}

func ok(d ...uint16) poller.PollResult {
	res := poller.PollResult{At: time.Now(), OK: true}
	copy(res.Distances[:], d)
	return res
}

func TestIngest_ReadingsAndTexts(t *testing.T) {
	m := newMonitor(t, config.Default())

	m.Ingest(ok(100, 0, 1500, 7))

	if got := m.ReadingText(0); got != "100 mm" {
		t.Fatalf("ch0 got=%q want=%q", got, "100 mm")
	}
	if got := m.ReadingText(1); got != status.TextNoReading {
		t.Fatalf("ch1 got=%q want=%q", got, status.TextNoReading)
	}
	if got := m.StdDevText(0); got != status.TextNoStdDev {
		t.Fatalf("std with one sample got=%q", got)
	}

	m.Ingest(ok(110))
	m.Ingest(ok(120))
	if got := m.StdDevText(0); got != "Std: 10.0" {
		t.Fatalf("std got=%q want=%q", got, "Std: 10.0")
	}

	s, err := m.Snapshot(0)
	if err != nil {
		t.Fatalf("Snapshot err=%v", err)
	}
	if s.Health != status.HealthOK || s.Label != "Channel 1" || s.Distance != 120 {
		t.Fatalf("snapshot got=%+v", s)
	}
}

func TestIngest_MissRecordsZero(t *testing.T) {
	m := newMonitor(t, config.Default())

	m.Ingest(ok(300, 300, 300, 300))
	m.Ingest(poller.PollResult{Miss: &transport.TimeoutError{Want: 13}})

	raw := m.proc.Raw(2)
	if len(raw) != 2 || raw[1] != 0 {
		t.Fatalf("raw got=%v want=[300 0]", raw)
	}

	s, _ := m.Snapshot(2)
	if s.Health != status.HealthStale || s.Misses != 1 || s.LastErrorCode != transport.CodeTimeout {
		t.Fatalf("snapshot got=%+v", s)
	}
	if got := m.ReadingText(2); got != status.TextNoReading {
		t.Fatalf("reading got=%q", got)
	}

	m.Ingest(ok(10, 10, 10, 10))
	s, _ = m.Snapshot(2)
	if s.Misses != 0 || s.LastErrorCode != 0 {
		t.Fatalf("recovery not reflected: %+v", s)
	}
}

func TestIngest_FaultRecordsNothing(t *testing.T) {
	m := newMonitor(t, config.Default())

	m.Ingest(poller.PollResult{Err: &transport.IOError{Op: "read", Err: errors.New("gone")}})

	if n := m.proc.Len(0); n != 0 {
		t.Fatalf("recorded %d samples on fault", n)
	}
	s, _ := m.Snapshot(0)
	if s.Health != status.HealthError || s.LastErrorCode != transport.CodeIO {
		t.Fatalf("snapshot got=%+v", s)
	}
}

func TestIngest_InactiveChannel(t *testing.T) {
	c := config.Default()
	off := false
	c.Channels[1].Active = &off
	m := newMonitor(t, c)

	m.Ingest(ok(100, 200, 300, 400))

	if n := m.proc.Len(1); n != 0 {
		t.Fatalf("inactive channel recorded %d samples", n)
	}
	if got := m.ReadingText(1); got != status.TextInactive {
		t.Fatalf("reading got=%q want=%q", got, status.TextInactive)
	}
	if got := m.StdDevText(1); got != status.TextNoStdDev {
		t.Fatalf("std got=%q", got)
	}

	if err := m.SetActive(1, true); err != nil {
		t.Fatalf("SetActive err=%v", err)
	}
	m.Ingest(ok(100, 200, 300, 400))
	if got := m.ReadingText(1); got != "200 mm" {
		t.Fatalf("reactivated reading got=%q", got)
	}
	if err := m.SetActive(9, true); err == nil {
		t.Fatalf("SetActive accepted channel 9")
	}
}

func TestSeries_SmoothingGate(t *testing.T) {
	c := config.Default()
	c.Display.Smoothing = true
	c.Display.Window = 3
	m := newMonitor(t, c)

	m.Ingest(ok(10))
	m.Ingest(ok(20))
	got := m.Series(0)
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("short history should be raw, got=%v", got)
	}

	m.Ingest(ok(30))
	got = m.Series(0)
	want := []int{10, 15, 20}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("smoothed got=%v want=%v", got, want)
		}
	}

	m.SetSmoothing(false)
	got = m.Series(0)
	if got[2] != 30 {
		t.Fatalf("raw got=%v", got)
	}

	if err := m.SetWindow(0); err == nil {
		t.Fatalf("SetWindow accepted 0")
	}
}

func TestStore_WritesPreferencesBack(t *testing.T) {
	c := config.Default()
	m := newMonitor(t, c)

	m.SetSmoothing(true)
	_ = m.SetWindow(7)
	_ = m.SetActive(3, false)
	m.SetSettings(writer.Settings{Angle: 4, Denoise: 1})

	Store(m, c)

	if !c.Display.Smoothing || c.Display.Window != 7 {
		t.Fatalf("display got=%+v", c.Display)
	}
	if c.Sensors.AngleLevel != 4 || c.Sensors.DenoiseLevel != 1 {
		t.Fatalf("sensors got=%+v", c.Sensors)
	}
	if c.Channels[3].IsActive() || !c.Channels[0].IsActive() {
		t.Fatalf("active flags not stored")
	}
}

func TestIngest_ChannelsBeyondReadCount(t *testing.T) {
	c := config.Default()
	c.Bus.Count = 2
	m := newMonitor(t, c)

	m.Ingest(ok(100, 200, 300, 400))
	m.Ingest(poller.PollResult{Miss: &transport.TimeoutError{Want: 9}})

	for _, ch := range []int{2, 3} {
		if n := m.proc.Len(ch); n != 0 {
			t.Fatalf("ch%d recorded %d samples", ch, n)
		}
		s, _ := m.Snapshot(ch)
		if s.Health != status.HealthDisabled {
			t.Fatalf("ch%d health got=%d want=%d", ch, s.Health, status.HealthDisabled)
		}
		if got := m.ReadingText(ch); got != status.TextInactive {
			t.Fatalf("ch%d reading got=%q want=%q", ch, got, status.TextInactive)
		}
		if m.Active(ch) {
			t.Fatalf("ch%d reported active", ch)
		}
	}
	if err := m.SetActive(2, true); err == nil {
		t.Fatalf("SetActive accepted a channel outside the read")
	}

	if n := m.proc.Len(1); n != 2 {
		t.Fatalf("ch1 samples got=%d want=2", n)
	}
}

func TestChanged_OnlyAfterPreferenceEdit(t *testing.T) {
	m := newMonitor(t, config.Default())

	m.Ingest(ok(100, 200, 300, 400))
	_ = m.SetActive(0, true)
	m.SetSmoothing(false)
	_ = m.SetWindow(config.DefaultWindow)
	m.SetSettings(m.Settings())
	if m.Changed() {
		t.Fatalf("Changed without any edit")
	}

	_ = m.SetWindow(9)
	if !m.Changed() {
		t.Fatalf("window edit not noticed")
	}
}

// ---- bus exclusion ----

// sensorBus answers distance reads from the bus address and echoes writes.
func sensorBus(busAddr uint8) transporttest.Responder {
	return func(req []byte) []byte {
		f := frame.Frame(req)
		switch f.Function() {
		case frame.FuncReadHoldingRegisters:
			if f.Address() != busAddr {
				return nil
			}
			return frame.AppendCRC([]byte{busAddr, 0x03, 0x08, 0x00, 0x64, 0x00, 0xC8, 0x00, 0x00, 0x03, 0xE8})
		case frame.FuncWriteSingleRegister:
			return append([]byte(nil), req...)
		}
		return nil
	}
}

func countReads(log []transporttest.Event) int {
	n := 0
	for _, e := range log {
		if e.Dir == "tx" && e.Bytes[1] == frame.FuncReadHoldingRegisters {
			n++
		}
	}
	return n
}

func TestApply_NoReadsDuringWrites(t *testing.T) {
	c := config.Default()
	c.Bus.PollIntervalMs = 1
	c.Bus.ReadTimeoutMs = 20
	c.Sensors.Addresses = []uint8{1, 3}
	c.Sensors.WriteTimeoutMs = 20
	c.Sensors.AngleDelayMs = 1
	c.Sensors.DenoiseDelayMs = 1

	port := transporttest.New(sensorBus(c.Bus.Address))
	sess := transport.NewSession("test", port)

	m, err := Build(c, sess, zerolog.Nop())
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, func() bool { return countReads(port.Log()) >= 3 })

	report, err := m.Apply(context.Background())
	if err != nil || !report.OK() {
		t.Fatalf("Apply report=%+v err=%v", report, err)
	}
	if got := m.SensorStatus(3); got != "Success" {
		t.Fatalf("sensor 3 status got=%q", got)
	}

	after := len(port.Log())
	waitFor(t, func() bool { return countReads(port.Log()[after:]) >= 1 })

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run err=%v want context.Canceled", err)
	}

	log := port.Log()
	first, last := -1, -1
	for i, e := range log {
		if e.Dir == "tx" && e.Bytes[1] == frame.FuncWriteSingleRegister {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 {
		t.Fatalf("no writes in log")
	}
	// include the final echo
	for last+1 < len(log) && log[last+1].Dir == "rx" {
		last++
	}

	for i := first; i <= last; i++ {
		if log[i].Dir == "tx" && log[i].Bytes[1] == frame.FuncReadHoldingRegisters {
			t.Fatalf("read request at log[%d] between writes [%d..%d]", i, first, last)
		}
	}
	if countReads(log[last:]) == 0 {
		t.Fatalf("polling did not resume")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met in time")
}
