package types

// StatusExtra is the auxiliary payload of a status event.
type StatusExtra struct {
	Progress int    `json:"progress"`
	TextData string `json:"textData"`
}

// StatusEvent is the payload of a "statuschanged" stream event.
// Extra and PageCode are optional on the wire.
type StatusEvent struct {
	EventCode EventCode    `json:"eventCode"`
	Extra     *StatusExtra `json:"extra,omitempty"`
	PageCode  *PageCode    `json:"pageCode,omitempty"`
}

// NotifyEvent is the payload of a "notify" stream event.
type NotifyEvent struct {
	InfoCode InfoCode `json:"infoCode"`
	IsError  bool     `json:"isError"`
}

// SysstatEvent is the payload of a "sysstat" stream event.
type SysstatEvent struct {
	CPUUsage float64 `json:"cpuUsage"`
	Time     int64   `json:"time"` // epoch millis
}
