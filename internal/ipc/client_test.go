package ipc

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"packetlens/internal/logger"
	"packetlens/pkg/model"
)

// fakeEngine 本地回环上的引擎替身：接受连接、推送事件行、接收命令行
type fakeEngine struct {
	t  *testing.T
	ln net.Listener
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return &fakeEngine{t: t, ln: ln}
}

func (f *fakeEngine) port() int {
	return f.ln.Addr().(*net.TCPAddr).Port
}

func TestListen_DeliversKnownEventsInOrder(t *testing.T) {
	engine := newFakeEngine(t)
	go func() {
		conn, err := engine.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		lines := []string{
			`{"type":"status","status":"running","message":"Proxy Running","port":8080}`,
			`{"type":"heartbeat","seq":1}`, // 未知类型，必须被跳过
			`not even json`,
			`{"type":"flow","record":{"id":"f1","method":"GET","url":"https://example.com/","status_code":200}}`,
			`{"type":"error","message":"boom"}`,
		}
		for _, l := range lines {
			conn.Write([]byte(l + "\n"))
		}
	}()

	c := New(engine.port(), logger.NewNop())
	defer c.Close()
	c.Listen()

	want := []string{model.EventStatus, model.EventFlow, model.EventError}
	for i, typ := range want {
		select {
		case ev := <-c.Events():
			if ev.Type != typ {
				t.Fatalf("event[%d].Type = %q, want %q", i, ev.Type, typ)
			}
			switch typ {
			case model.EventStatus:
				if ev.Status != model.StateRunning || ev.Port == nil || *ev.Port != 8080 {
					t.Errorf("status event = %+v", ev)
				}
			case model.EventFlow:
				if ev.Record == nil || ev.Record.ID != "f1" || ev.Record.StatusCode != 200 {
					t.Errorf("flow event = %+v", ev)
				}
			case model.EventError:
				if ev.Message != "boom" {
					t.Errorf("error event = %+v", ev)
				}
			}
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out waiting for event %d (%s)", i, typ)
		}
	}
}

func TestSend_WritesCommandLine(t *testing.T) {
	engine := newFakeEngine(t)
	received := make(chan string, 1)
	go func() {
		conn, err := engine.ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		if sc.Scan() {
			received <- sc.Text()
		}
	}()

	c := New(engine.port(), logger.NewNop())
	if err := c.Send(StartCommand(8080)); err != nil {
		t.Fatalf("Send() error: %v", err)
	}

	select {
	case line := <-received:
		if strings.Contains(line, "\n") {
			t.Errorf("command not a single line: %q", line)
		}
		if gjson.Get(line, "type").String() != "start" {
			t.Errorf("type = %q, want start", gjson.Get(line, "type").String())
		}
		if gjson.Get(line, "port").Int() != 8080 {
			t.Errorf("port = %d, want 8080", gjson.Get(line, "port").Int())
		}
	case <-time.After(3 * time.Second):
		t.Fatal("engine never received the command")
	}
}

func TestCommands_WireShape(t *testing.T) {
	cases := []struct {
		cmd  []byte
		typ  string
		port int64
	}{
		{StartCommand(9090), "start", 9090},
		{StopCommand(), "stop", 0},
		{PauseCommand(), "pause", 0},
		{ResumeCommand(), "resume", 0},
	}
	for _, tc := range cases {
		if !gjson.ValidBytes(tc.cmd) {
			t.Fatalf("command %s is not valid json", tc.cmd)
		}
		if got := gjson.GetBytes(tc.cmd, "type").String(); got != tc.typ {
			t.Errorf("type = %q, want %q", got, tc.typ)
		}
		if got := gjson.GetBytes(tc.cmd, "port").Int(); got != tc.port {
			t.Errorf("%s port = %d, want %d", tc.typ, got, tc.port)
		}
	}
}

func TestSend_FailsWhenEngineAbsent(t *testing.T) {
	// 占住一个端口再关掉，保证无人监听
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	c := New(port, logger.NewNop())
	start := time.Now()
	if err := c.Send(StopCommand()); err == nil {
		t.Fatal("Send() to absent engine returned nil error")
	}
	if elapsed := time.Since(start); elapsed < 2*time.Second {
		t.Logf("send failed after %s", elapsed)
	}
}
