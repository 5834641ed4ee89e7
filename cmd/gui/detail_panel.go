package main

import (
	"fmt"
	"strings"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"

	"packetlens/pkg/model"
)

// NewDetailPanel 创建底部详情面板，展示当前选中的记录
func NewDetailPanel(app *App) (fyne.CanvasObject, func()) {
	summary := widget.NewLabel("未选中记录")
	summary.Wrapping = fyne.TextWrapWord

	requestText := widget.NewLabel("")
	requestText.Wrapping = fyne.TextWrapWord
	requestText.TextStyle = fyne.TextStyle{Monospace: true}

	responseText := widget.NewLabel("")
	responseText.Wrapping = fyne.TextWrapWord
	responseText.TextStyle = fyne.TextStyle{Monospace: true}

	tabs := container.NewAppTabs(
		container.NewTabItem("请求", container.NewScroll(requestText)),
		container.NewTabItem("响应", container.NewScroll(responseText)),
	)

	refresh := func() {
		rec, ok := app.SelectedFlow()
		if !ok {
			summary.SetText("未选中记录")
			requestText.SetText("")
			responseText.SetText("")
			return
		}
		summary.SetText(flowSummary(rec))
		requestText.SetText(requestDetail(rec))
		responseText.SetText(responseDetail(rec))
	}

	panel := container.NewBorder(summary, nil, nil, nil, tabs)
	return panel, refresh
}

func flowSummary(rec model.FlowRecord) string {
	status := "进行中"
	switch {
	case rec.Error != "":
		status = "错误: " + rec.Error
	case rec.StatusCode > 0:
		status = fmt.Sprintf("%d", rec.StatusCode)
	}
	return fmt.Sprintf("%s %s | %s | %d ms", rec.Method, rec.URL, status, rec.DurationMS)
}

func requestDetail(rec model.FlowRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", rec.Method, rec.Path)
	fmt.Fprintf(&b, "Host: %s (%s)\n\n", rec.Host, rec.Scheme)
	writeHeaders(&b, rec.RequestHeaders)
	writeBody(&b, rec.RequestBody, rec.RequestBodySize, rec.RequestBodyTruncated)
	return b.String()
}

func responseDetail(rec model.FlowRecord) string {
	var b strings.Builder
	if rec.Error != "" {
		fmt.Fprintf(&b, "错误: %s\n\n", rec.Error)
	}
	if rec.StatusCode > 0 {
		fmt.Fprintf(&b, "状态码: %d\n\n", rec.StatusCode)
	}
	writeHeaders(&b, rec.ResponseHeaders)
	writeBody(&b, rec.ResponseBody, rec.ResponseBodySize, rec.ResponseBodyTruncated)
	return b.String()
}

func writeHeaders(b *strings.Builder, headers []model.HeaderEntry) {
	for _, h := range headers {
		fmt.Fprintf(b, "%s: %s\n", h.Name, h.Value)
	}
	if len(headers) > 0 {
		b.WriteString("\n")
	}
}

func writeBody(b *strings.Builder, body string, size int64, truncated bool) {
	if body == "" {
		if size > 0 {
			fmt.Fprintf(b, "(正文 %d 字节，未捕获)\n", size)
		}
		return
	}
	b.WriteString(body)
	b.WriteString("\n")
	if truncated {
		fmt.Fprintf(b, "\n(正文已截断，原始大小 %d 字节)\n", size)
	}
}
