package speech

import (
	"errors"
	"strings"

	speechmodel "github.com/zhouzirui/botrix/backend/internal/model/speech"
)

// ErrNotConfigured 表示缺少语音识别凭证
var ErrNotConfigured = errors.New("火山引擎语音配置缺少 AppID 或 AccessToken")

func resolveCredentials(cfg speechmodel.ASRConfig) (string, string, error) {
	appID := strings.TrimSpace(cfg.AppID)
	token := strings.TrimSpace(cfg.AccessToken)
	if appID == "" || token == "" {
		return "", "", ErrNotConfigured
	}
	return appID, token, nil
}
