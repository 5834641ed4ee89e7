package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"packetlens/internal/logger"
	"packetlens/pkg/model"
)

const (
	reconnectDelay = 800 * time.Millisecond
	sendAttempts   = 15
	sendRetryWait  = 200 * time.Millisecond
	dialTimeout    = time.Second

	// flow 事件携带截断后的请求/响应体，单行可达数百 KB
	maxLineSize = 4 * 1024 * 1024
)

// Client 负责与引擎 IPC 端口的全部通信：
// 一条长连接持续读取事件流，命令走独立短连接发送
type Client struct {
	addr   string
	events chan model.Event
	log    logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// New 创建 IPC 客户端
func New(ipcPort int, log logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		addr:   fmt.Sprintf("127.0.0.1:%d", ipcPort),
		events: make(chan model.Event, 256),
		log:    log,
		done:   make(chan struct{}),
	}
}

// Events 引擎事件流，单消费者
func (c *Client) Events() <-chan model.Event { return c.events }

// Listen 启动事件读取循环，断线后自动重连
func (c *Client) Listen() {
	go c.loop()
}

// Close 停止读取循环
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		default:
		}
		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}
		c.log.Debug("已连接引擎事件流", "addr", c.addr)
		c.read(conn)
	}
}

func (c *Client) read(conn net.Conn) {
	defer conn.Close()
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		select {
		case <-c.done:
			return
		default:
		}
		line := sc.Bytes()
		switch gjson.GetBytes(line, "type").String() {
		case model.EventStatus, model.EventError, model.EventFlow:
			var ev model.Event
			if err := json.Unmarshal(line, &ev); err != nil {
				c.log.Debug("丢弃无法解析的事件", "error", err)
				continue
			}
			select {
			case c.events <- ev:
			case <-c.done:
				return
			}
		default:
			// 未知事件类型：忽略，保持向前兼容
		}
	}
}

// Send 发送一条命令。连接失败时重试，发送本身不重试
func (c *Client) Send(command []byte) error {
	var lastErr error
	for attempt := 0; attempt < sendAttempts; attempt++ {
		conn, err := net.DialTimeout("tcp", c.addr, dialTimeout)
		if err != nil {
			lastErr = err
			if attempt < sendAttempts-1 {
				time.Sleep(sendRetryWait)
			}
			continue
		}
		_, err = conn.Write(append(command, '\n'))
		conn.Close()
		if err != nil {
			return fmt.Errorf("send command to %s: %w", c.addr, err)
		}
		return nil
	}
	return fmt.Errorf("connect %s after %d attempts: %w", c.addr, sendAttempts, lastErr)
}

// Start 下发 start 命令
func (c *Client) Start(port int) error { return c.Send(StartCommand(port)) }

// Stop 下发 stop 命令
func (c *Client) Stop() error { return c.Send(StopCommand()) }

// Pause 下发 pause 命令
func (c *Client) Pause() error { return c.Send(PauseCommand()) }

// Resume 下发 resume 命令
func (c *Client) Resume() error { return c.Send(ResumeCommand()) }
