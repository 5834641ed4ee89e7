package sidecar

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"packetlens/internal/logger"
)

const (
	startupProbeDelay = 600 * time.Millisecond
	readyTimeout      = 10 * time.Second
	readyPollInterval = 80 * time.Millisecond
)

// Supervisor 管理引擎子进程的生命周期
// 引擎是打包好的 packetlens-sidecar 可执行文件，开发环境回退到 python 脚本
type Supervisor struct {
	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error
	log  logger.Logger
}

// New 创建引擎进程管理器
func New(log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Supervisor{log: log}
}

// Start 启动引擎进程并等待其 IPC 端口就绪。进程已存活时为空操作
func (s *Supervisor) Start(ipcPort int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return nil
	}

	path, args, err := locate(ipcPort)
	if err != nil {
		return err
	}
	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start sidecar: %w", err)
	}
	s.log.Info("引擎进程已启动", "path", path, "ipcPort", ipcPort, "pid", cmd.Process.Pid)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	// 快速失败检测：启动即退出说明依赖缺失或安装损坏
	select {
	case err := <-done:
		return fmt.Errorf("sidecar exited during startup: %v", err)
	case <-time.After(startupProbeDelay):
	}

	if !waitForReady(ipcPort, readyTimeout) {
		_ = cmd.Process.Kill()
		<-done
		return fmt.Errorf("sidecar ipc not ready on 127.0.0.1:%d within %s", ipcPort, readyTimeout)
	}

	s.cmd = cmd
	s.done = done
	return nil
}

// Stop 结束引擎进程。未启动时为空操作
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd == nil {
		return
	}
	_ = s.cmd.Process.Kill()
	<-s.done
	s.log.Info("引擎进程已停止", "pid", s.cmd.Process.Pid)
	s.cmd = nil
	s.done = nil
}

// locate 查找引擎可执行文件，找不到时回退到 python 脚本
func locate(ipcPort int) (string, []string, error) {
	name := "packetlens-sidecar"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	args := []string{"--ipc-port", fmt.Sprint(ipcPort)}

	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		dirs = append(dirs, dir, filepath.Join(dir, "sidecar"), filepath.Join(dir, "dist"))
	}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, filepath.Join(wd, "sidecar", "dist"))
	}
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if fileExists(candidate) {
			return candidate, args, nil
		}
	}

	// 开发环境：直接跑 sidecar 脚本
	for _, dir := range dirs {
		script := filepath.Join(filepath.Dir(dir), "sidecar", "proxy_service.py")
		if fileExists(script) {
			return pythonName(), append([]string{script}, args...), nil
		}
	}
	if wd, err := os.Getwd(); err == nil {
		script := filepath.Join(wd, "sidecar", "proxy_service.py")
		if fileExists(script) {
			return pythonName(), append([]string{script}, args...), nil
		}
	}
	return "", nil, fmt.Errorf("%s not found; rebuild and reinstall PacketLens", name)
}

func pythonName() string {
	if runtime.GOOS == "windows" {
		return "python"
	}
	return "python3"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func waitForReady(ipcPort int, timeout time.Duration) bool {
	addr := fmt.Sprintf("127.0.0.1:%d", ipcPort)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, readyPollInterval)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(readyPollInterval)
	}
	return false
}
