package speech

// ASRRequest 一次单句识别请求，音频已完整缓冲
type ASRRequest struct {
	SessionID string
	Audio     []byte
	Format    string // wav, pcm, ogg
	Language  string // zh-CN, en-US
}
