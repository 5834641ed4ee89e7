package export

import (
	"encoding/json"
	"fmt"

	"packetlens/pkg/model"
)

// ExportNative 无损导出全部记录，格式为 FlowRecord 数组
func ExportNative(records []model.FlowRecord) ([]byte, error) {
	if records == nil {
		records = []model.FlowRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal flows: %w", err)
	}
	return data, nil
}

// ImportNative 解析原生导出文件，失败时返回解析错误且不产生部分结果
func ImportNative(data []byte) ([]model.FlowRecord, error) {
	var records []model.FlowRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse flow export: %w", err)
	}
	return records, nil
}
