package main

import "packetlens/pkg/model"

// 中文标签映射
var (
	stateLabels = map[model.SessionState]string{
		model.StateStopped:  "已停止 (stopped)",
		model.StateStarting: "启动中 (starting)",
		model.StateRunning:  "抓包中 (running)",
		model.StatePaused:   "已暂停 (paused)",
	}

	browserLabels = map[string]string{
		"edge":    "Edge (edge)",
		"chrome":  "Chrome (chrome)",
		"brave":   "Brave (brave)",
		"firefox": "Firefox (firefox)",
	}
)

// getBrowserOptions 获取浏览器选项列表
func getBrowserOptions() []string {
	keys := []string{"edge", "chrome", "brave", "firefox"}
	result := make([]string, len(keys))
	for i, k := range keys {
		result[i] = browserLabels[k]
	}
	return result
}

// stateLabel 会话状态的展示文本
func stateLabel(state model.SessionState) string {
	if label, ok := stateLabels[state]; ok {
		return label
	}
	return string(state)
}

// extractValue 从带标签的选项中提取原始值
func extractValue(labeledOption string) string {
	// 格式: "中文 (value)"，提取括号中的值
	for i := len(labeledOption) - 1; i >= 0; i-- {
		if labeledOption[i] == '(' {
			if i+1 < len(labeledOption)-1 {
				return labeledOption[i+1 : len(labeledOption)-1]
			}
		}
	}
	return labeledOption
}

// findLabeledOption 根据原始值查找带标签的选项
func findLabeledOption(value string, labels map[string]string) string {
	if label, ok := labels[value]; ok {
		return label
	}
	return value
}
