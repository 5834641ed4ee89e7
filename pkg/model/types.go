package model

// SessionState 抓包会话状态，由控制器持有唯一权威实例
type SessionState string

const (
	StateStopped  SessionState = "stopped"
	StateStarting SessionState = "starting"
	StateRunning  SessionState = "running"
	StatePaused   SessionState = "paused"
)

// 引擎事件类型
const (
	EventStatus = "status"
	EventError  = "error"
	EventFlow   = "flow"
)

// HeaderEntry 单个请求/响应头
type HeaderEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FlowRecord 一次被拦截的请求/响应（或 WebSocket）交换
// 创建后不可变，字段名与引擎 IPC 线上格式保持一致
type FlowRecord struct {
	ID                    string        `json:"id"`
	Started               float64       `json:"started"`
	Ended                 float64       `json:"ended"`
	DurationMS            int64         `json:"duration_ms"`
	Method                string        `json:"method"`
	URL                   string        `json:"url"`
	Host                  string        `json:"host"`
	Path                  string        `json:"path"`
	Scheme                string        `json:"scheme"`
	StatusCode            int           `json:"status_code"`
	RequestHeaders        []HeaderEntry `json:"request_headers"`
	ResponseHeaders       []HeaderEntry `json:"response_headers"`
	RequestBodySize       int64         `json:"request_body_size"`
	ResponseBodySize      int64         `json:"response_body_size"`
	RequestBody           string        `json:"request_body"`
	ResponseBody          string        `json:"response_body"`
	RequestBodyTruncated  bool          `json:"request_body_truncated"`
	ResponseBodyTruncated bool          `json:"response_body_truncated"`
	Error                 string        `json:"error"`
}

// Event 引擎上报的事件，按 Type 区分的 tagged union
// status 事件可能不携带 port，因此用指针表达缺省
type Event struct {
	Type    string       `json:"type"`
	Status  SessionState `json:"status,omitempty"`
	Message string       `json:"message,omitempty"`
	Port    *int         `json:"port,omitempty"`
	Record  *FlowRecord  `json:"record,omitempty"`
}
