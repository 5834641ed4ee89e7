package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"packetlens/internal/config"
	"packetlens/internal/controller"
	"packetlens/internal/export"
	"packetlens/internal/flowstore"
	"packetlens/internal/ipc"
	"packetlens/internal/logger"
	"packetlens/internal/match"
	"packetlens/internal/sidecar"
	"packetlens/internal/storage"
	"packetlens/internal/system"
	"packetlens/pkg/model"
)

const appVersion = "0.3.0"

// App 是 GUI 应用的核心状态与业务逻辑封装
// 同时实现 controller.Notifier，把控制器的状态变化转成界面刷新回调
type App struct {
	mu sync.RWMutex

	cfg        *config.Config
	log        logger.Logger
	ctl        *controller.Controller
	store      *flowstore.Store
	client     *ipc.Client
	supervisor *sidecar.Supervisor
	db         *storage.Store

	state      model.SessionState
	statusText string
	activePort int

	filter       string
	sessionRecID string

	onUpdate func()
	onError  func(message string)

	cancel context.CancelFunc
}

// NewApp 创建应用实例并组装各组件
func NewApp(cfg *config.Config, log logger.Logger, db *storage.Store) *App {
	a := &App{
		cfg:        cfg,
		log:        log,
		db:         db,
		store:      flowstore.New(cfg.FlowCapacity),
		client:     ipc.New(cfg.Proxy.IpcPort, log),
		supervisor: sidecar.New(log),
		state:      model.StateStopped,
		statusText: "Ready",
	}
	browserTarget := cfg.Browser
	if db != nil {
		browserTarget = db.GetSetting("browser", cfg.Browser)
	}
	a.ctl = controller.New(controller.Config{
		Dispatcher:  a.client,
		Opener:      system.NewLauncher(log),
		Notifier:    a,
		Store:       a.store,
		Logger:      log,
		DefaultPort: cfg.Proxy.Port,
		Browser:     browserTarget,
	})
	return a
}

// SetCallbacks 注册界面刷新与错误提示回调
func (a *App) SetCallbacks(onUpdate func(), onError func(message string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onUpdate = onUpdate
	a.onError = onError
}

// Startup 启动引擎进程、事件监听与控制器循环
func (a *App) Startup() error {
	if err := a.supervisor.Start(a.cfg.Proxy.IpcPort); err != nil {
		return fmt.Errorf("start capture engine: %w", err)
	}
	a.client.Listen()
	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()
	go a.ctl.Run(ctx, a.client.Events())
	return nil
}

// Shutdown 停止控制器循环、事件监听与引擎进程
func (a *App) Shutdown() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	a.client.Close()
	a.supervisor.Stop()
}

// StartCapture 解析端口文本并发起抓包，空文本使用配置端口
func (a *App) StartCapture(portText string) error {
	port := a.cfg.Proxy.Port
	if s := strings.TrimSpace(portText); s != "" {
		p, err := strconv.Atoi(s)
		if err != nil || p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port %q", portText)
		}
		port = p
	}
	if err := a.ctl.StartCapture(port); err != nil {
		return err
	}
	a.recordSessionStart(port)
	return nil
}

// StopCapture 停止抓包
func (a *App) StopCapture() error { return a.ctl.StopCapture() }

// PauseCapture 暂停抓包
func (a *App) PauseCapture() error { return a.ctl.PauseCapture() }

// ResumeCapture 恢复抓包
func (a *App) ResumeCapture() error { return a.ctl.ResumeCapture() }

// OpenBrowser 以当前浏览器目标发起自动打开
func (a *App) OpenBrowser() error {
	if err := a.ctl.OpenBrowser(a.ctl.Browser()); err != nil {
		return err
	}
	a.recordSessionStart(0)
	return nil
}

// SetBrowser 更新浏览器目标并持久化
func (a *App) SetBrowser(browserTarget string) {
	a.ctl.SetBrowser(browserTarget)
	if a.db != nil {
		if err := a.db.PutSetting("browser", browserTarget); err != nil {
			a.log.Warn("保存浏览器设置失败", "error", err)
		}
	}
}

// Browser 当前浏览器目标
func (a *App) Browser() string { return a.ctl.Browser() }

// Status 当前状态、状态文本与活跃端口
func (a *App) Status() (model.SessionState, string, int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state, a.statusText, a.activePort
}

// SetFilter 更新流量过滤表达式
func (a *App) SetFilter(pattern string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = pattern
}

// VisibleFlows 过滤后的记录快照
func (a *App) VisibleFlows() []model.FlowRecord {
	a.mu.RLock()
	pattern := a.filter
	a.mu.RUnlock()

	all := a.store.All()
	if pattern == "" {
		return all
	}
	out := make([]model.FlowRecord, 0, len(all))
	for _, r := range all {
		if match.Matches(r.URL, pattern) || match.Matches(r.Method, pattern) || match.Matches(r.Host, pattern) {
			out = append(out, r)
		}
	}
	return out
}

// SelectFlow 选中指定记录
func (a *App) SelectFlow(id string) { a.ctl.Select(id) }

// SelectedFlow 当前选中的记录
func (a *App) SelectedFlow() (model.FlowRecord, bool) {
	id := a.ctl.Selected()
	if id == "" {
		return model.FlowRecord{}, false
	}
	return a.store.Get(id)
}

// ClearFlows 清空记录
func (a *App) ClearFlows() { a.ctl.ClearFlows() }

// FlowCount 当前记录数
func (a *App) FlowCount() int { return a.store.Len() }

// ExportNative 无损导出当前记录
func (a *App) ExportNative(w io.Writer) error {
	data, err := export.ExportNative(a.store.All())
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ImportNative 导入原生格式，整体替换当前记录，返回导入数量
func (a *App) ImportNative(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	records, err := export.ImportNative(data)
	if err != nil {
		return 0, err
	}
	a.store.Load(records)
	a.ctl.Select("")
	return len(records), nil
}

// ExportHAR 导出 HAR 1.2 文档
func (a *App) ExportHAR(w io.Writer) error {
	data, err := export.ExportHAR(a.store.All(), appVersion)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// ImportHAR 尽力导入 HAR 文档，返回导入数量
func (a *App) ImportHAR(r io.Reader) (int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	records, err := export.ImportHAR(data)
	if err != nil {
		return 0, err
	}
	a.store.Load(records)
	a.ctl.Select("")
	return len(records), nil
}

// OpenCertFolder 打开 CA 证书目录
func (a *App) OpenCertFolder() error { return system.OpenCertFolder() }

// InstallCert 安装 CA 证书
func (a *App) InstallCert() error { return system.InstallCert() }

// UninstallCert 卸载 CA 证书
func (a *App) UninstallCert() error { return system.UninstallCert() }

// RecentSessions 历史会话记录
func (a *App) RecentSessions() []storage.SessionRecord {
	if a.db == nil {
		return nil
	}
	records, err := a.db.RecentSessions(20)
	if err != nil {
		a.log.Warn("读取历史会话失败", "error", err)
		return nil
	}
	return records
}

// StatusChanged 实现 controller.Notifier
func (a *App) StatusChanged(state model.SessionState, message string, port int) {
	a.mu.Lock()
	prev := a.state
	a.state = state
	a.statusText = message
	a.activePort = port
	update := a.onUpdate
	a.mu.Unlock()

	if state == model.StateStopped && prev != model.StateStopped {
		a.recordSessionEnd()
	}
	if update != nil {
		update()
	}
}

// FlowArrived 实现 controller.Notifier
func (a *App) FlowArrived(model.FlowRecord) {
	a.mu.RLock()
	update := a.onUpdate
	a.mu.RUnlock()
	if update != nil {
		update()
	}
}

// ErrorOccurred 实现 controller.Notifier
func (a *App) ErrorOccurred(message string) {
	a.mu.RLock()
	notify := a.onError
	a.mu.RUnlock()
	if notify != nil {
		notify(message)
	}
}

// recordSessionStart 记录会话启动；port 为 0 时用控制器的默认端口占位
// 命令被守卫吞掉（非 stopped 状态下 start）时不产生历史记录
func (a *App) recordSessionStart(port int) {
	if a.db == nil || a.ctl.State() != model.StateStarting {
		return
	}
	if port <= 0 {
		port = a.cfg.Proxy.Port
	}
	id, err := a.db.BeginSession(port, a.ctl.Browser())
	if err != nil {
		a.log.Warn("记录会话启动失败", "error", err)
		return
	}
	a.mu.Lock()
	a.sessionRecID = id
	a.mu.Unlock()
}

func (a *App) recordSessionEnd() {
	if a.db == nil {
		return
	}
	a.mu.Lock()
	id := a.sessionRecID
	a.sessionRecID = ""
	a.mu.Unlock()
	if id == "" {
		return
	}
	if err := a.db.EndSession(id, a.store.Len()); err != nil {
		a.log.Warn("记录会话结束失败", "error", err)
	}
}
