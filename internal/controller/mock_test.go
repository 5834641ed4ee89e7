package controller

import (
	"sync"

	"packetlens/pkg/model"
)

// mockDispatcher 记录下发的命令并返回预设错误
type mockDispatcher struct {
	mu         sync.Mutex
	startErr   error
	stopErr    error
	startPorts []int
	stops      int
	pauses     int
	resumes    int
}

func (m *mockDispatcher) Start(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startErr != nil {
		return m.startErr
	}
	m.startPorts = append(m.startPorts, port)
	return nil
}

func (m *mockDispatcher) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopErr != nil {
		return m.stopErr
	}
	m.stops++
	return nil
}

func (m *mockDispatcher) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauses++
	return nil
}

func (m *mockDispatcher) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes++
	return nil
}

func (m *mockDispatcher) starts() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.startPorts))
	copy(out, m.startPorts)
	return out
}

type openCall struct {
	port    int
	browser string
}

// mockOpener 记录浏览器打开动作
type mockOpener struct {
	mu    sync.Mutex
	err   error
	calls []openCall
}

func (m *mockOpener) Open(port int, browser string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, openCall{port: port, browser: browser})
	return m.err
}

func (m *mockOpener) opened() []openCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]openCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// mockNotifier 记录回调给界面层的通知
type mockNotifier struct {
	mu       sync.Mutex
	statuses []model.SessionState
	flows    []model.FlowRecord
	errors   []string
}

func (m *mockNotifier) StatusChanged(state model.SessionState, message string, port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, state)
}

func (m *mockNotifier) FlowArrived(rec model.FlowRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows = append(m.flows, rec)
}

func (m *mockNotifier) ErrorOccurred(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, message)
}

func (m *mockNotifier) errorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.errors)
}
