package main

import (
	"fmt"
	"os"

	fyne "fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"packetlens/internal/config"
	"packetlens/internal/logger"
	"packetlens/internal/storage"
)

// main 是 GUI 应用入口
func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Options{
		Level:  cfg.Log.Level,
		Writer: cfg.Log.Writer,
		File:   cfg.Log.File,
	})

	db, err := storage.Open(cfg.Sqlite.Dsn, cfg.Sqlite.Prefix, log)
	if err != nil {
		// 数据库不可用不阻塞抓包，仅失去设置与历史会话
		log.Warn("打开数据库失败", "error", err)
		db = nil
	}

	application := NewApp(cfg, log, db)

	a := fyneapp.New()
	w := a.NewWindow("PacketLens")

	portEntry := widget.NewEntry()
	portEntry.SetPlaceHolder(fmt.Sprintf("%d", cfg.Proxy.Port))

	statusLabel := widget.NewLabel(stateLabel(application.state))

	detailPanel, refreshDetail := NewDetailPanel(application)
	flowsView, refreshFlows := NewFlowsView(application, w, refreshDetail)
	capturePanel, refreshSessions := NewCapturePanel(application, w, portEntry)

	refreshStatus := func() {
		state, message, port := application.Status()
		text := stateLabel(state)
		if port > 0 {
			text = fmt.Sprintf("%s | 端口 %d", text, port)
		}
		if message != "" {
			text = fmt.Sprintf("%s | %s", text, message)
		}
		statusLabel.SetText(text)
	}

	refreshAll := func() {
		refreshStatus()
		refreshFlows()
		refreshDetail()
		refreshSessions()
	}

	application.SetCallbacks(refreshAll, func(message string) {
		log.Warn("引擎错误", "message", message)
		dialog.ShowError(fmt.Errorf("%s", message), w)
	})

	toolbar := NewToolbar(application, w, portEntry, refreshStatus)

	center := container.NewVSplit(flowsView, detailPanel)
	center.SetOffset(0.65)

	root := container.NewBorder(toolbar, statusLabel, capturePanel, nil, center)
	w.SetContent(root)
	w.Resize(fyne.NewSize(1200, 800))

	if err := application.Startup(); err != nil {
		log.Error("启动抓包引擎失败", "error", err)
		dialog.ShowError(err, w)
	}
	refreshStatus()

	w.SetCloseIntercept(func() {
		application.Shutdown()
		w.Close()
	})
	w.ShowAndRun()
}
