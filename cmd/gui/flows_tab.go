package main

import (
	"fmt"

	fyne "fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
)

// NewFlowsView 创建流量列表视图：过滤、导入导出与清空
func NewFlowsView(app *App, win fyne.Window, onSelectionChanged func()) (fyne.CanvasObject, func()) {
	filterEntry := widget.NewEntry()
	filterEntry.SetPlaceHolder("过滤 URL / 方法 / 主机，% 为通配符")

	flowList := widget.NewList(
		func() int {
			return len(app.VisibleFlows())
		},
		func() fyne.CanvasObject {
			return widget.NewLabel("")
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			flows := app.VisibleFlows()
			if int(i) < 0 || int(i) >= len(flows) {
				return
			}
			f := flows[i]
			status := "-"
			if f.Error != "" {
				status = "ERR"
			} else if f.StatusCode > 0 {
				status = fmt.Sprintf("%d", f.StatusCode)
			}
			label := o.(*widget.Label)
			label.SetText(fmt.Sprintf("%s %-7s %s", status, f.Method, f.URL))
		},
	)

	flowList.OnSelected = func(id widget.ListItemID) {
		flows := app.VisibleFlows()
		if int(id) < 0 || int(id) >= len(flows) {
			return
		}
		app.SelectFlow(flows[id].ID)
		if onSelectionChanged != nil {
			onSelectionChanged()
		}
	}

	filterEntry.OnChanged = func(text string) {
		app.SetFilter(text)
		flowList.Refresh()
	}

	exportJSONBtn := widget.NewButton("导出 JSON", func() {
		saveDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			defer writer.Close()
			if err := app.ExportNative(writer); err != nil {
				dialog.ShowError(err, win)
				return
			}
			dialog.ShowInformation("导出", fmt.Sprintf("已导出 %d 条记录", app.FlowCount()), win)
		}, win)
		saveDialog.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
		saveDialog.SetFileName("flows.json")
		saveDialog.Show()
	})

	importJSONBtn := widget.NewButton("导入 JSON", func() {
		openDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil || reader == nil {
				return
			}
			defer reader.Close()
			n, err := app.ImportNative(reader)
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			flowList.UnselectAll()
			flowList.Refresh()
			dialog.ShowInformation("导入", fmt.Sprintf("已导入 %d 条记录", n), win)
		}, win)
		openDialog.SetFilter(storage.NewExtensionFileFilter([]string{".json"}))
		openDialog.Show()
	})

	exportHARBtn := widget.NewButton("导出 HAR", func() {
		saveDialog := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
			if err != nil || writer == nil {
				return
			}
			defer writer.Close()
			if err := app.ExportHAR(writer); err != nil {
				dialog.ShowError(err, win)
				return
			}
			dialog.ShowInformation("导出", fmt.Sprintf("已导出 %d 条记录", app.FlowCount()), win)
		}, win)
		saveDialog.SetFilter(storage.NewExtensionFileFilter([]string{".har"}))
		saveDialog.SetFileName("flows.har")
		saveDialog.Show()
	})

	importHARBtn := widget.NewButton("导入 HAR", func() {
		openDialog := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err != nil || reader == nil {
				return
			}
			defer reader.Close()
			n, err := app.ImportHAR(reader)
			if err != nil {
				dialog.ShowError(err, win)
				return
			}
			flowList.UnselectAll()
			flowList.Refresh()
			dialog.ShowInformation("导入", fmt.Sprintf("已导入 %d 条记录", n), win)
		}, win)
		openDialog.SetFilter(storage.NewExtensionFileFilter([]string{".har"}))
		openDialog.Show()
	})

	clearBtn := widget.NewButton("清空", func() {
		app.ClearFlows()
		flowList.UnselectAll()
		flowList.Refresh()
		if onSelectionChanged != nil {
			onSelectionChanged()
		}
	})

	toolbar := container.NewHBox(exportJSONBtn, importJSONBtn, exportHARBtn, importHARBtn, clearBtn)
	top := container.NewVBox(filterEntry, toolbar)
	view := container.NewBorder(top, nil, nil, nil, flowList)

	refresh := func() {
		flowList.Refresh()
	}
	return view, refresh
}
