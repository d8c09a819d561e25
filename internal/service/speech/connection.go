package speech

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// dialOptions 识别连接的建立参数
type dialOptions struct {
	MaxRetries int
	RetryDelay time.Duration
}

func defaultDialOptions() dialOptions {
	return dialOptions{MaxRetries: 3, RetryDelay: 500 * time.Millisecond}
}

// dialWithRetry 带重试的连接建立，鉴权等 4xx 拒绝不重试
func dialWithRetry(ctx context.Context, dialer *websocket.Dialer, url string, header http.Header, opts dialOptions) (*websocket.Conn, *http.Response, error) {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 1
	}

	var lastErr error
	for i := 0; i < opts.MaxRetries; i++ {
		conn, resp, err := dialer.DialContext(ctx, url, header)
		if err == nil {
			return conn, resp, nil
		}
		lastErr = err

		// 如果是上下文取消，直接返回
		if ctx.Err() != nil {
			return nil, resp, ctx.Err()
		}
		if !isRetryableDial(resp) {
			return nil, resp, fmt.Errorf("websocket dial rejected: %w", err)
		}

		zap.S().Debugw("[asr] dial failed, retrying", "attempt", i+1, "error", err)
		// 等待一段时间后重试
		select {
		case <-ctx.Done():
			return nil, resp, ctx.Err()
		case <-time.After(time.Duration(i+1) * opts.RetryDelay):
		}
	}

	return nil, nil, fmt.Errorf("failed to connect after %d retries, last error: %w", opts.MaxRetries, lastErr)
}

// isRetryableDial 网络错误与服务端 5xx 可重试
func isRetryableDial(resp *http.Response) bool {
	if resp == nil {
		return true
	}
	return resp.StatusCode >= http.StatusInternalServerError
}
