package main

import (
	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// NewToolbar 创建顶部工具条：抓包生命周期控制与自动打开浏览器
func NewToolbar(app *App, win fyne.Window, portEntry *widget.Entry, onRefresh func()) fyne.CanvasObject {
	startBtn := widget.NewButton("开始抓包", func() {
		if err := app.StartCapture(portEntry.Text); err != nil {
			dialog.ShowError(err, win)
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})

	stopBtn := widget.NewButton("停止", func() {
		if err := app.StopCapture(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})

	pauseBtn := widget.NewButton("暂停", func() {
		if err := app.PauseCapture(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})

	resumeBtn := widget.NewButton("恢复", func() {
		if err := app.ResumeCapture(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})

	openBtn := widget.NewButton("打开浏览器", func() {
		if err := app.OpenBrowser(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		if onRefresh != nil {
			onRefresh()
		}
	})

	return container.NewHBox(startBtn, stopBtn, pauseBtn, resumeBtn, openBtn)
}
