package main

import (
	"fmt"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

// NewCapturePanel 创建左侧抓包设置面板：端口、浏览器目标、证书操作与历史会话
func NewCapturePanel(app *App, win fyne.Window, portEntry *widget.Entry) (fyne.CanvasObject, func()) {
	browserSelect := widget.NewSelect(getBrowserOptions(), func(selected string) {
		app.SetBrowser(extractValue(selected))
	})
	browserSelect.SetSelected(findLabeledOption(app.Browser(), browserLabels))

	openCertBtn := widget.NewButton("打开证书目录", func() {
		if err := app.OpenCertFolder(); err != nil {
			dialog.ShowError(err, win)
		}
	})
	installCertBtn := widget.NewButton("安装证书", func() {
		if err := app.InstallCert(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		dialog.ShowInformation("证书", "CA 证书已安装", win)
	})
	uninstallCertBtn := widget.NewButton("卸载证书", func() {
		if err := app.UninstallCert(); err != nil {
			dialog.ShowError(err, win)
			return
		}
		dialog.ShowInformation("证书", "CA 证书已卸载", win)
	})

	sessionList := widget.NewList(
		func() int {
			return len(app.RecentSessions())
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			sessions := app.RecentSessions()
			if int(i) < 0 || int(i) >= len(sessions) {
				return
			}
			s := sessions[i]
			status := "进行中"
			if s.StoppedAt != nil {
				status = fmt.Sprintf("%d 条", s.FlowCount)
			}
			label := o.(*widget.Label)
			label.SetText(fmt.Sprintf("[%s] :%d %s %s",
				status, s.Port, s.Browser, s.StartedAt.Format("01-02 15:04")))
		},
	)

	settings := container.NewVBox(
		widget.NewLabel("监听端口"),
		portEntry,
		widget.NewLabel("浏览器"),
		browserSelect,
		widget.NewSeparator(),
		openCertBtn,
		installCertBtn,
		uninstallCertBtn,
		widget.NewSeparator(),
		widget.NewLabel("历史会话"),
	)

	panel := container.NewBorder(settings, nil, nil, nil, sessionList)
	panel.Resize(fyne.NewSize(300, 0))

	refresh := func() {
		sessionList.Refresh()
	}
	return panel, refresh
}
