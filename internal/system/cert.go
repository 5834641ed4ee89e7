package system

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/browser"
)

// 引擎 CA 证书由 mitmproxy 生成，位于用户目录的 .mitmproxy 下

// CertDir 证书目录
func CertDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home directory not found: %w", err)
	}
	return filepath.Join(home, ".mitmproxy"), nil
}

// CertPath CA 证书文件路径
func CertPath() (string, error) {
	dir, err := CertDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mitmproxy-ca-cert.cer"), nil
}

// OpenCertFolder 在文件管理器中打开证书目录
func OpenCertFolder() error {
	dir, err := CertDir()
	if err != nil {
		return err
	}
	if err := browser.OpenFile(dir); err != nil {
		return fmt.Errorf("open cert folder: %w", err)
	}
	return nil
}

// InstallCert 把 CA 证书装入当前用户的受信任根证书存储
func InstallCert() error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("certificate install via certutil is supported on Windows only")
	}
	cert, err := CertPath()
	if err != nil {
		return err
	}
	out, err := exec.Command("certutil", "-user", "-addstore", "Root", cert).CombinedOutput()
	if err != nil {
		return fmt.Errorf("certutil addstore: %s", strings.TrimSpace(string(out)))
	}
	return nil
}

// UninstallCert 从当前用户的受信任根证书存储移除 CA 证书
func UninstallCert() error {
	if runtime.GOOS != "windows" {
		return fmt.Errorf("certificate uninstall via certutil is supported on Windows only")
	}
	out, err := exec.Command("certutil", "-user", "-delstore", "Root", "mitmproxy").CombinedOutput()
	if err != nil {
		return fmt.Errorf("certutil delstore: %s", strings.TrimSpace(string(out)))
	}
	return nil
}
