package system

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"

	"packetlens/internal/logger"
)

const proxyReadyTimeout = 12 * time.Second

// Launcher 以代理模式启动隔离的浏览器实例
// 每次启动使用一次性的用户数据目录，互不共享会话
type Launcher struct {
	log logger.Logger
}

// NewLauncher 创建浏览器启动器
func NewLauncher(log logger.Logger) *Launcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Launcher{log: log}
}

// Open 等待代理端口就绪后拉起浏览器，流量经 127.0.0.1:port 代理
func (l *Launcher) Open(port int, browser string) error {
	exe, err := resolveBrowserExe(browser)
	if err != nil {
		return err
	}
	if !waitForPort(port, proxyReadyTimeout) {
		return fmt.Errorf("proxy is not ready on 127.0.0.1:%d; start capture and wait for running status", port)
	}

	profileDir := filepath.Join(os.TempDir(), "packetlens-browser-profile-"+uuid.NewString())
	args := []string{
		fmt.Sprintf("--proxy-server=127.0.0.1:%d", port),
		"--proxy-bypass-list=localhost;127.0.0.1;::1",
		"--disable-quic",
		"--user-data-dir=" + profileDir,
		"--no-first-run",
		"--new-window",
		"about:blank",
	}
	cmd := exec.Command(exe, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open browser with proxy: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	l.log.Info("浏览器已启动", "browser", browser, "port", port, "profile", profileDir)
	return nil
}

// resolveBrowserExe 查找浏览器可执行文件
func resolveBrowserExe(browser string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(browser))
	switch normalized {
	case "edge", "chrome", "brave", "firefox":
	default:
		return "", fmt.Errorf("unsupported browser %q; choose one of: edge, chrome, firefox, brave", browser)
	}

	for _, candidate := range browserCandidates(normalized) {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	for _, name := range browserCommands(normalized) {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("requested browser %q was not found on this machine", normalized)
}

func browserCandidates(browser string) []string {
	if runtime.GOOS != "windows" {
		return nil
	}
	localAppData := os.Getenv("LOCALAPPDATA")
	switch browser {
	case "edge":
		return []string{
			`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
			`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
		}
	case "chrome":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			filepath.Join(localAppData, "Google", "Chrome", "Application", "chrome.exe"),
		}
	case "brave":
		return []string{
			`C:\Program Files\BraveSoftware\Brave-Browser\Application\brave.exe`,
			`C:\Program Files (x86)\BraveSoftware\Brave-Browser\Application\brave.exe`,
			filepath.Join(localAppData, "BraveSoftware", "Brave-Browser", "Application", "brave.exe"),
		}
	case "firefox":
		return []string{
			`C:\Program Files\Mozilla Firefox\firefox.exe`,
			`C:\Program Files (x86)\Mozilla Firefox\firefox.exe`,
		}
	}
	return nil
}

func browserCommands(browser string) []string {
	switch browser {
	case "edge":
		return []string{"msedge", "microsoft-edge"}
	case "chrome":
		return []string{"chrome", "google-chrome", "chromium", "chromium-browser"}
	case "brave":
		return []string{"brave", "brave-browser"}
	case "firefox":
		return []string{"firefox"}
	}
	return nil
}

func waitForPort(port int, timeout time.Duration) bool {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return true
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}
