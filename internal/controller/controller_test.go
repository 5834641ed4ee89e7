package controller

import (
	"errors"
	"testing"

	"packetlens/internal/flowstore"
	"packetlens/pkg/model"
)

func newTestController(d *mockDispatcher, o *mockOpener, n *mockNotifier) *Controller {
	return New(Config{
		Dispatcher:  d,
		Opener:      o,
		Notifier:    n,
		Store:       flowstore.New(10),
		DefaultPort: 8080,
		Browser:     "edge",
	})
}

func intp(v int) *int { return &v }

func statusEvent(state model.SessionState, message string, port *int) model.Event {
	return model.Event{Type: model.EventStatus, Status: state, Message: message, Port: port}
}

func TestStartCapture_OptimisticStarting(t *testing.T) {
	d := &mockDispatcher{}
	c := newTestController(d, &mockOpener{}, &mockNotifier{})

	if err := c.StartCapture(8080); err != nil {
		t.Fatalf("StartCapture() error: %v", err)
	}
	if got := c.State(); got != model.StateStarting {
		t.Errorf("state = %q, want starting", got)
	}
	if starts := d.starts(); len(starts) != 1 || starts[0] != 8080 {
		t.Errorf("dispatched starts = %v, want [8080]", starts)
	}
}

func TestStartCapture_NoopUnlessStopped(t *testing.T) {
	for _, state := range []model.SessionState{model.StateStarting, model.StateRunning, model.StatePaused} {
		d := &mockDispatcher{}
		c := newTestController(d, &mockOpener{}, &mockNotifier{})
		if state != model.StateStarting {
			c.HandleEvent(statusEvent(state, "", intp(8080)))
		} else {
			c.StartCapture(8080)
			d.mu.Lock()
			d.startPorts = nil
			d.mu.Unlock()
		}

		if err := c.StartCapture(9090); err != nil {
			t.Fatalf("state %s: StartCapture() error: %v", state, err)
		}
		if got := c.State(); got != state {
			t.Errorf("state changed from %q to %q on rejected start", state, got)
		}
		if starts := d.starts(); len(starts) != 0 {
			t.Errorf("state %s: unexpected dispatch %v", state, starts)
		}
	}
}

func TestStopCapture_NoopWhenStopped(t *testing.T) {
	d := &mockDispatcher{}
	c := newTestController(d, &mockOpener{}, &mockNotifier{})
	if err := c.StopCapture(); err != nil {
		t.Fatalf("StopCapture() error: %v", err)
	}
	if d.stops != 0 {
		t.Errorf("stop dispatched %d times, want 0", d.stops)
	}
}

func TestPauseResume_Guards(t *testing.T) {
	d := &mockDispatcher{}
	c := newTestController(d, &mockOpener{}, &mockNotifier{})

	// stopped 状态下 pause/resume 均为空操作
	c.PauseCapture()
	c.ResumeCapture()
	if d.pauses != 0 || d.resumes != 0 {
		t.Fatalf("pauses=%d resumes=%d while stopped, want 0/0", d.pauses, d.resumes)
	}

	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running", intp(8080)))
	c.ResumeCapture() // running 状态下 resume 为空操作
	if d.resumes != 0 {
		t.Fatalf("resume dispatched while running")
	}
	c.PauseCapture()
	if d.pauses != 1 {
		t.Fatalf("pauses = %d, want 1", d.pauses)
	}

	c.HandleEvent(statusEvent(model.StatePaused, "Paused", nil))
	c.PauseCapture() // paused 状态下 pause 为空操作
	if d.pauses != 1 {
		t.Fatalf("pause dispatched while paused")
	}
	c.ResumeCapture()
	if d.resumes != 1 {
		t.Fatalf("resumes = %d, want 1", d.resumes)
	}
}

func TestStatusDrivesStateAndPort(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.StartCapture(8080)
	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running on 127.0.0.1:8081", intp(8081)))

	if got := c.State(); got != model.StateRunning {
		t.Errorf("state = %q, want running", got)
	}
	if got := c.ActivePort(); got != 8081 {
		t.Errorf("activePort = %d, want 8081", got)
	}
}

func TestReadyMarkerSuppressedWhileStarting(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.StartCapture(8080)

	for _, marker := range []string{"Ready", "ready", "READY"} {
		c.HandleEvent(statusEvent(model.StateStopped, marker, nil))
		if got := c.State(); got != model.StateStarting {
			t.Fatalf("state = %q after stopped/%q while starting, want starting", got, marker)
		}
	}
}

func TestReadyMarkerSuppressedWhilePendingOpen(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.OpenBrowser("chrome")
	if !c.PendingOpen() {
		t.Fatal("pending auto-open not set")
	}

	c.HandleEvent(statusEvent(model.StateStopped, "Ready", nil))
	if !c.PendingOpen() {
		t.Error("pending auto-open cancelled by ready marker")
	}
	if got := c.State(); got == model.StateStopped {
		t.Error("ready marker drove a transition to stopped")
	}
}

func TestStoppedWithoutMarkerApplies(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.StartCapture(8080)
	c.HandleEvent(statusEvent(model.StateStopped, "Stopped", nil))
	if got := c.State(); got != model.StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
}

func TestAutoOpenFiresExactlyOnce(t *testing.T) {
	d := &mockDispatcher{}
	o := &mockOpener{}
	c := newTestController(d, o, &mockNotifier{})

	if err := c.OpenBrowser("chrome"); err != nil {
		t.Fatalf("OpenBrowser() error: %v", err)
	}
	if starts := d.starts(); len(starts) != 1 || starts[0] != 8080 {
		t.Fatalf("dispatched starts = %v, want [8080]", starts)
	}

	// 引擎实际落在别的端口：点火必须用最近观测到的端口
	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running", intp(8083)))

	calls := o.opened()
	if len(calls) != 1 {
		t.Fatalf("opened %d times, want 1", len(calls))
	}
	if calls[0].port != 8083 || calls[0].browser != "chrome" {
		t.Errorf("opened %+v, want port 8083 browser chrome", calls[0])
	}
	if c.PendingOpen() {
		t.Error("pending flag still set after firing")
	}

	// 再次 running 不应重复点火
	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running", intp(8083)))
	if len(o.opened()) != 1 {
		t.Error("auto-open fired more than once")
	}
}

func TestAutoOpenCancelledOnError(t *testing.T) {
	o := &mockOpener{}
	n := &mockNotifier{}
	c := newTestController(&mockDispatcher{}, o, n)

	c.OpenBrowser("edge")
	c.HandleEvent(model.Event{Type: model.EventError, Message: "proxy failed to start"})

	if len(o.opened()) != 0 {
		t.Error("browser opened despite engine error")
	}
	if c.PendingOpen() {
		t.Error("pending flag still set after error")
	}
	if got := c.State(); got != model.StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
	if n.errorCount() == 0 {
		t.Error("engine error not surfaced")
	}
}

func TestAutoOpenCancelledOnStopped(t *testing.T) {
	o := &mockOpener{}
	c := newTestController(&mockDispatcher{}, o, &mockNotifier{})

	c.OpenBrowser("edge")
	c.HandleEvent(statusEvent(model.StateStopped, "Stopped", nil))

	if len(o.opened()) != 0 {
		t.Error("browser opened despite stop")
	}
	if c.PendingOpen() {
		t.Error("pending flag still set after stopped status")
	}
}

func TestOpenAnotherBrowser_PortIncrement(t *testing.T) {
	d := &mockDispatcher{}
	o := &mockOpener{}
	c := newTestController(d, o, &mockNotifier{})

	c.StartCapture(8080)
	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running", intp(8080)))

	if err := c.OpenBrowser("brave"); err != nil {
		t.Fatalf("OpenBrowser() error: %v", err)
	}
	starts := d.starts()
	if len(starts) != 2 || starts[1] != 8081 {
		t.Fatalf("dispatched starts = %v, want second start on 8081", starts)
	}

	c.HandleEvent(statusEvent(model.StateRunning, "Proxy Running", intp(8081)))
	calls := o.opened()
	if len(calls) != 1 || calls[0].port != 8081 || calls[0].browser != "brave" {
		t.Errorf("opened %+v, want one open on 8081/brave", calls)
	}
}

func TestOpenBrowser_NoopWhilePending(t *testing.T) {
	d := &mockDispatcher{}
	c := newTestController(d, &mockOpener{}, &mockNotifier{})

	c.OpenBrowser("edge")
	c.OpenBrowser("chrome")
	if starts := d.starts(); len(starts) != 1 {
		t.Errorf("dispatched starts = %v, want single start", starts)
	}
}

func TestDispatchFailureForcesStopped(t *testing.T) {
	d := &mockDispatcher{startErr: errors.New("connect refused")}
	n := &mockNotifier{}
	c := newTestController(d, &mockOpener{}, n)

	if err := c.OpenBrowser("edge"); err == nil {
		t.Fatal("OpenBrowser() returned nil, want dispatch error")
	}
	if got := c.State(); got != model.StateStopped {
		t.Errorf("state = %q, want stopped", got)
	}
	if c.PendingOpen() {
		t.Error("pending flag still set after dispatch failure")
	}
	if n.errorCount() == 0 {
		t.Error("dispatch failure not surfaced")
	}
}

func TestFlowAppendsAndSelectsFirst(t *testing.T) {
	n := &mockNotifier{}
	c := newTestController(&mockDispatcher{}, &mockOpener{}, n)

	c.HandleEvent(model.Event{Type: model.EventFlow, Record: &model.FlowRecord{ID: "f1", URL: "https://a"}})
	c.HandleEvent(model.Event{Type: model.EventFlow, Record: &model.FlowRecord{ID: "f2", URL: "https://b"}})

	if got := c.Selected(); got != "f1" {
		t.Errorf("selected = %q, want f1 (first arrival)", got)
	}
	if c.store.Len() != 2 {
		t.Errorf("store len = %d, want 2", c.store.Len())
	}
}

func TestFlowWithoutRecordDropped(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.HandleEvent(model.Event{Type: model.EventFlow})
	if c.store.Len() != 0 {
		t.Error("flow event without record was stored")
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	c := newTestController(&mockDispatcher{}, &mockOpener{}, &mockNotifier{})
	c.StartCapture(8080)
	c.HandleEvent(model.Event{Type: "metrics"})
	if got := c.State(); got != model.StateStarting {
		t.Errorf("unknown event changed state to %q", got)
	}
}
