package controller

import (
	"context"
	"strings"
	"sync"

	"packetlens/internal/flowstore"
	"packetlens/internal/logger"
	"packetlens/pkg/model"
)

// readyMarker 引擎就绪探测回送的 stopped 状态附带的消息标记
// 处于 starting 或存在待执行自动打开时收到它不代表真正停止
const readyMarker = "ready"

// Dispatcher 向引擎下发控制命令，失败不自动重试
type Dispatcher interface {
	Start(port int) error
	Stop() error
	Pause() error
	Resume() error
}

// BrowserOpener 打开一个绑定到指定监听端口的浏览器实例
type BrowserOpener interface {
	Open(port int, browser string) error
}

// Notifier 把控制器状态变化回调给界面层
type Notifier interface {
	StatusChanged(state model.SessionState, message string, port int)
	FlowArrived(rec model.FlowRecord)
	ErrorOccurred(message string)
}

// Config 控制器构造参数
type Config struct {
	Dispatcher  Dispatcher
	Opener      BrowserOpener
	Notifier    Notifier
	Store       *flowstore.Store
	Logger      logger.Logger
	DefaultPort int
	Browser     string
}

// Controller 抓包会话控制器：生命周期状态机、事件摄取与自动打开编排
// 所有可变状态由内部互斥锁保护，端口/浏览器等活跃值在点火时读取
type Controller struct {
	mu sync.Mutex

	dispatcher Dispatcher
	opener     BrowserOpener
	notifier   Notifier
	store      *flowstore.Store
	log        logger.Logger

	state      model.SessionState
	statusText string
	activePort int
	browser    string
	selected   string

	pendingOpen    bool
	pendingBrowser string

	defaultPort int
}

// New 创建控制器，初始状态为 stopped
func New(cfg Config) *Controller {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	port := cfg.DefaultPort
	if port <= 0 {
		port = 8080
	}
	return &Controller{
		dispatcher:  cfg.Dispatcher,
		opener:      cfg.Opener,
		notifier:    cfg.Notifier,
		store:       cfg.Store,
		log:         log,
		state:       model.StateStopped,
		statusText:  "Ready",
		browser:     cfg.Browser,
		defaultPort: port,
	}
}

// Run 消费引擎事件流直到 ctx 结束或通道关闭
func (c *Controller) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.HandleEvent(ev)
		}
	}
}

// HandleEvent 处理单个引擎事件，未知类型忽略
func (c *Controller) HandleEvent(ev model.Event) {
	switch ev.Type {
	case model.EventFlow:
		c.handleFlow(ev)
	case model.EventStatus:
		c.handleStatus(ev)
	case model.EventError:
		c.handleError(ev)
	default:
		c.log.Debug("忽略未知事件", "type", ev.Type)
	}
}

// StartCapture 发起抓包。仅在 stopped 状态生效，其余状态为空操作
func (c *Controller) StartCapture(port int) error {
	c.mu.Lock()
	if c.state != model.StateStopped {
		c.mu.Unlock()
		return nil
	}
	err := c.issueStartLocked(port)
	c.mu.Unlock()
	return err
}

// OpenBrowser 标记一次待执行的自动打开并启动抓包
// running 状态下以 activePort+1 重新启动，每个浏览器实例独占监听端口
func (c *Controller) OpenBrowser(browser string) error {
	c.mu.Lock()
	if browser == "" {
		browser = c.browser
	}
	if c.pendingOpen || c.state == model.StateStarting {
		// 同一时刻至多一个待执行的自动打开
		c.mu.Unlock()
		return nil
	}
	c.browser = browser
	port := c.defaultPort
	if c.state == model.StateRunning || c.state == model.StatePaused {
		port = c.activePort + 1
	}
	c.pendingOpen = true
	c.pendingBrowser = browser
	err := c.issueStartLocked(port)
	c.mu.Unlock()
	return err
}

// issueStartLocked 乐观迁移到 starting 并下发 start 命令，调用方持锁
func (c *Controller) issueStartLocked(port int) error {
	if port <= 0 {
		port = c.defaultPort
	}
	c.state = model.StateStarting
	c.statusText = "Starting..."
	if err := c.dispatcher.Start(port); err != nil {
		c.commandFailedLocked(err)
		return err
	}
	c.log.Info("已下发 start 命令", "port", port)
	c.notifyStatusLocked()
	return nil
}

// StopCapture 停止抓包。stopped 状态下为空操作
func (c *Controller) StopCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == model.StateStopped {
		return nil
	}
	if err := c.dispatcher.Stop(); err != nil {
		c.commandFailedLocked(err)
		return err
	}
	// 状态迁移等待引擎回送 stopped 事件
	return nil
}

// PauseCapture 暂停抓包。仅 running 状态生效
func (c *Controller) PauseCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StateRunning {
		return nil
	}
	if err := c.dispatcher.Pause(); err != nil {
		c.commandFailedLocked(err)
		return err
	}
	return nil
}

// ResumeCapture 恢复抓包。仅 paused 状态生效
func (c *Controller) ResumeCapture() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != model.StatePaused {
		return nil
	}
	if err := c.dispatcher.Resume(); err != nil {
		c.commandFailedLocked(err)
		return err
	}
	return nil
}

func (c *Controller) handleFlow(ev model.Event) {
	if ev.Record == nil {
		// flow 事件必然携带完整记录，缺失则丢弃
		return
	}
	c.store.Append(*ev.Record)
	c.mu.Lock()
	if c.selected == "" {
		c.selected = ev.Record.ID
	}
	c.mu.Unlock()
	if c.notifier != nil {
		c.notifier.FlowArrived(*ev.Record)
	}
}

func (c *Controller) handleStatus(ev model.Event) {
	c.mu.Lock()
	if ev.Status == model.StateStopped && strings.EqualFold(ev.Message, readyMarker) &&
		(c.state == model.StateStarting || c.pendingOpen) {
		state := c.state
		c.mu.Unlock()
		c.log.Debug("忽略引擎就绪探测状态", "state", string(state))
		return
	}

	c.state = ev.Status
	if ev.Message != "" {
		c.statusText = ev.Message
	}
	if ev.Port != nil && *ev.Port > 0 {
		c.activePort = *ev.Port
	}

	var firePort int
	var fireBrowser string
	fire := false
	switch {
	case ev.Status == model.StateRunning && c.pendingOpen:
		// 消费待执行的自动打开：端口与浏览器在点火时读取最新值
		fire = true
		firePort = c.activePort
		fireBrowser = c.pendingBrowser
		c.pendingOpen = false
		c.pendingBrowser = ""
	case ev.Status == model.StateStopped:
		c.pendingOpen = false
		c.pendingBrowser = ""
	}
	c.notifyStatusLocked()
	c.mu.Unlock()

	if fire {
		c.log.Info("自动打开浏览器", "port", firePort, "browser", fireBrowser)
		if err := c.opener.Open(firePort, fireBrowser); err != nil {
			c.log.Warn("打开浏览器失败", "error", err)
			if c.notifier != nil {
				c.notifier.ErrorOccurred(err.Error())
			}
		}
	}
}

func (c *Controller) handleError(ev model.Event) {
	c.mu.Lock()
	c.state = model.StateStopped
	c.statusText = ev.Message
	c.pendingOpen = false
	c.pendingBrowser = ""
	c.notifyStatusLocked()
	c.mu.Unlock()
	c.log.Warn("引擎错误", "message", ev.Message)
	if c.notifier != nil {
		c.notifier.ErrorOccurred(ev.Message)
	}
}

// commandFailedLocked 命令下发失败：强制 stopped 并取消待执行的自动打开
func (c *Controller) commandFailedLocked(err error) {
	c.state = model.StateStopped
	c.statusText = err.Error()
	c.pendingOpen = false
	c.pendingBrowser = ""
	c.log.Warn("命令下发失败", "error", err)
	c.notifyStatusLocked()
	if c.notifier != nil {
		c.notifier.ErrorOccurred(err.Error())
	}
}

func (c *Controller) notifyStatusLocked() {
	if c.notifier == nil {
		return
	}
	c.notifier.StatusChanged(c.state, c.statusText, c.activePort)
}

// State 当前会话状态
func (c *Controller) State() model.SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StatusText 最近一次展示用状态文本
func (c *Controller) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusText
}

// ActivePort 最近观测到的引擎监听端口
func (c *Controller) ActivePort() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activePort
}

// PendingOpen 是否存在待执行的自动打开
func (c *Controller) PendingOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingOpen
}

// Browser 当前浏览器目标
func (c *Controller) Browser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.browser
}

// SetBrowser 更新浏览器目标
func (c *Controller) SetBrowser(browser string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if browser != "" {
		c.browser = browser
	}
}

// Selected 当前选中的记录 ID
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Select 选中指定记录
func (c *Controller) Select(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = id
}

// ClearFlows 清空存储并取消选中
func (c *Controller) ClearFlows() {
	c.store.Clear()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = ""
}
