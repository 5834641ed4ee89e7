package export

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"packetlens/pkg/model"
)

// HAR 1.2 导出。已知有损：error 与截断标记不保留，导入只做尽力还原

// HAR HAR 文件根对象
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog 日志对象，包含全部条目
type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

// HARCreator 生成方标识
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HAREntry 单次 HTTP 交换
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            float64     `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         HARTimings  `json:"timings"`
}

// HARRequest 请求部分
type HARRequest struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []HARNameValue `json:"headers"`
	QueryString []HARNameValue `json:"queryString"`
	PostData    *HARPostData   `json:"postData,omitempty"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int64          `json:"bodySize"`
}

// HARResponse 响应部分
type HARResponse struct {
	Status      int            `json:"status"`
	StatusText  string         `json:"statusText"`
	HTTPVersion string         `json:"httpVersion"`
	Headers     []HARNameValue `json:"headers"`
	Content     HARContent     `json:"content"`
	RedirectURL string         `json:"redirectURL"`
	HeadersSize int            `json:"headersSize"`
	BodySize    int64          `json:"bodySize"`
}

// HARContent 响应体内容
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
	Text     string `json:"text,omitempty"`
}

// HARPostData 请求体
type HARPostData struct {
	MimeType string `json:"mimeType"`
	Text     string `json:"text"`
}

// HARTimings 计时信息，细分数据不可得时填入总时长
type HARTimings struct {
	Send    float64 `json:"send"`
	Wait    float64 `json:"wait"`
	Receive float64 `json:"receive"`
}

// HARNameValue 名值对
type HARNameValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ExportHAR 把记录列表导出为 HAR 1.2 文档
func ExportHAR(records []model.FlowRecord, version string) ([]byte, error) {
	har := HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: HARCreator{Name: "PacketLens", Version: version},
			Entries: make([]HAREntry, 0, len(records)),
		},
	}
	for i := range records {
		har.Log.Entries = append(har.Log.Entries, toEntry(&records[i]))
	}
	data, err := json.MarshalIndent(har, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal har: %w", err)
	}
	return data, nil
}

func toEntry(r *model.FlowRecord) HAREntry {
	entry := HAREntry{
		StartedDateTime: epochToISO(r.Started),
		Time:            float64(r.DurationMS),
		Request: HARRequest{
			Method:      r.Method,
			URL:         r.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValues(r.RequestHeaders),
			QueryString: queryPairs(r.URL),
			HeadersSize: -1,
			BodySize:    r.RequestBodySize,
		},
		Response: HARResponse{
			Status:      r.StatusCode,
			StatusText:  http.StatusText(r.StatusCode),
			HTTPVersion: "HTTP/1.1",
			Headers:     toNameValues(r.ResponseHeaders),
			Content: HARContent{
				Size:     r.ResponseBodySize,
				MimeType: headerValue(r.ResponseHeaders, "content-type"),
				Text:     r.ResponseBody,
			},
			HeadersSize: -1,
			BodySize:    r.ResponseBodySize,
		},
		Timings: HARTimings{Send: 0, Wait: float64(r.DurationMS), Receive: 0},
	}
	if r.RequestBody != "" || r.RequestBodySize > 0 {
		entry.Request.PostData = &HARPostData{
			MimeType: headerValue(r.RequestHeaders, "content-type"),
			Text:     r.RequestBody,
		}
	}
	return entry
}

// ImportHAR 尽力从 HAR 文档还原记录：ID 重新生成，截断标记清零
func ImportHAR(data []byte) ([]model.FlowRecord, error) {
	var har HAR
	if err := json.Unmarshal(data, &har); err != nil {
		return nil, fmt.Errorf("parse har: %w", err)
	}
	records := make([]model.FlowRecord, 0, len(har.Log.Entries))
	for i := range har.Log.Entries {
		records = append(records, fromEntry(&har.Log.Entries[i]))
	}
	return records, nil
}

func fromEntry(e *HAREntry) model.FlowRecord {
	started := isoToEpoch(e.StartedDateTime)
	duration := int64(e.Time)
	if duration < 0 {
		duration = 0
	}
	rec := model.FlowRecord{
		ID:               uuid.NewString(),
		Started:          started,
		Ended:            started + float64(duration)/1000,
		DurationMS:       duration,
		Method:           e.Request.Method,
		URL:              e.Request.URL,
		StatusCode:       e.Response.Status,
		RequestHeaders:   fromNameValues(e.Request.Headers),
		RequestBodySize:  e.Request.BodySize,
		ResponseBodySize: e.Response.BodySize,
		ResponseBody:     e.Response.Content.Text,
	}
	if e.Request.PostData != nil {
		rec.RequestBody = e.Request.PostData.Text
	}
	if e.Response.Headers != nil {
		headers := fromNameValues(e.Response.Headers)
		rec.ResponseHeaders = headers
	}
	if u, err := url.Parse(e.Request.URL); err == nil {
		rec.Host = u.Host
		rec.Path = u.Path
		rec.Scheme = u.Scheme
	}
	return rec
}

func toNameValues(headers []model.HeaderEntry) []HARNameValue {
	out := make([]HARNameValue, 0, len(headers))
	for _, h := range headers {
		out = append(out, HARNameValue{Name: h.Name, Value: h.Value})
	}
	return out
}

func fromNameValues(pairs []HARNameValue) []model.HeaderEntry {
	out := make([]model.HeaderEntry, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, model.HeaderEntry{Name: p.Name, Value: p.Value})
	}
	return out
}

func headerValue(headers []model.HeaderEntry, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func queryPairs(raw string) []HARNameValue {
	u, err := url.Parse(raw)
	if err != nil {
		return []HARNameValue{}
	}
	out := []HARNameValue{}
	for key, vals := range u.Query() {
		for _, v := range vals {
			out = append(out, HARNameValue{Name: key, Value: v})
		}
	}
	return out
}

func epochToISO(sec float64) string {
	return time.UnixMilli(int64(sec * 1000)).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func isoToEpoch(iso string) float64 {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return 0
	}
	return float64(t.UnixMilli()) / 1000
}
