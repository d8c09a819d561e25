package speech

import "time"

// ASRConfig 火山引擎大模型语音识别配置
type ASRConfig struct {
	AppID       string
	AccessToken string
	// ResourceID 计费资源，小时版或并发版
	ResourceID string
	Endpoint   string
	Language   string
	Format     string
	SampleRate int
	Timeout    time.Duration
}

// Enabled reports whether credentials are present.
func (c ASRConfig) Enabled() bool {
	return c.AppID != "" && c.AccessToken != ""
}
