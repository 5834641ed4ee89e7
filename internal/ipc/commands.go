package ipc

import "github.com/tidwall/sjson"

// 控制命令构造，线上格式为单行 JSON
// {"type":"start","port":8080} / {"type":"stop"} / {"type":"pause"} / {"type":"resume"}

func StartCommand(port int) []byte {
	b, _ := sjson.SetBytes([]byte(`{}`), "type", "start")
	b, _ = sjson.SetBytes(b, "port", port)
	return b
}

func StopCommand() []byte {
	b, _ := sjson.SetBytes([]byte(`{}`), "type", "stop")
	return b
}

func PauseCommand() []byte {
	b, _ := sjson.SetBytes([]byte(`{}`), "type", "pause")
	return b
}

func ResumeCommand() []byte {
	b, _ := sjson.SetBytes([]byte(`{}`), "type", "resume")
	return b
}
