// Package speech is a Volcengine big-model ASR client used for widget voice
// input.
package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	speechmodel "github.com/zhouzirui/botrix/backend/internal/model/speech"
	"go.uber.org/zap"
)

const (
	DefaultEndpoint   = "wss://openspeech.bytedance.com/api/v3/sauc/bigmodel_nostream"
	DefaultResourceID = "volc.bigasr.sauc.duration"

	// 16kHz 16bit 单声道 200ms
	chunkSize = 6400
)

// ASRClient 一次连接识别一段完整缓冲的语音
type ASRClient struct {
	cfg    speechmodel.ASRConfig
	dialer *websocket.Dialer
	dial   dialOptions
}

type asrRequest struct {
	User struct {
		UID string `json:"uid,omitempty"`
	} `json:"user"`
	Audio struct {
		Language string `json:"language,omitempty"`
		Format   string `json:"format"`
		Codec    string `json:"codec,omitempty"`
		Rate     int    `json:"rate,omitempty"`
		Bits     int    `json:"bits,omitempty"`
		Channel  int    `json:"channel,omitempty"`
	} `json:"audio"`
	Request struct {
		ModelName      string `json:"model_name"`
		EnableITN      bool   `json:"enable_itn,omitempty"`
		EnablePunc     bool   `json:"enable_punc,omitempty"`
		ShowUtterances bool   `json:"show_utterances,omitempty"`
		ResultType     string `json:"result_type,omitempty"`
		EndWindowSize  int    `json:"end_window_size,omitempty"`
	} `json:"request"`
}

type asrServerMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Result  struct {
		Text       string `json:"text"`
		Utterances []struct {
			Text string `json:"text"`
		} `json:"utterances,omitempty"`
	} `json:"result"`
	AudioInfo struct {
		Duration int64 `json:"duration"`
	} `json:"audio_info"`
}

// NewASRClient 创建识别客户端
func NewASRClient(cfg speechmodel.ASRConfig) *ASRClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = DefaultResourceID
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &ASRClient{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		dial:   defaultDialOptions(),
	}
}

// Transcribe sends buffered audio and returns the final transcript.
func (c *ASRClient) Transcribe(ctx context.Context, sessionID string, audio []byte) (string, error) {
	resp, err := c.Recognize(ctx, &speechmodel.ASRRequest{
		SessionID: sessionID,
		Audio:     audio,
		Format:    c.cfg.Format,
		Language:  c.cfg.Language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Recognize 建立连接、发送参数与音频并等待最终结果
func (c *ASRClient) Recognize(ctx context.Context, req *speechmodel.ASRRequest) (*speechmodel.ASRResponse, error) {
	if len(req.Audio) == 0 {
		return nil, errors.New("no audio data to send")
	}
	appID, token, err := resolveCredentials(c.cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	header := http.Header{}
	header.Set("X-Api-App-Key", appID)
	header.Set("X-Api-Access-Key", token)
	header.Set("X-Api-Resource-Id", c.cfg.ResourceID)
	header.Set("X-Api-Connect-Id", req.SessionID)

	conn, httpResp, err := dialWithRetry(ctx, c.dialer, c.cfg.Endpoint, header, c.dial)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ASR WebSocket: %w", err)
	}
	defer conn.Close()

	logID := ""
	if httpResp != nil {
		logID = httpResp.Header.Get("X-Tt-Logid")
	}
	zap.S().Debugw("[asr] connected", "session_id", req.SessionID, "logid", logID)

	// 连接随 ctx 结束而关闭，阻塞读写随之返回
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.sendRequest(conn, req); err != nil {
		return nil, err
	}
	if err := c.sendAudio(conn, req.Audio); err != nil {
		return nil, err
	}

	resp, err := c.receive(conn, req.SessionID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	resp.LogID = logID
	return resp, nil
}

func (c *ASRClient) sendRequest(conn *websocket.Conn, req *speechmodel.ASRRequest) error {
	body := asrRequest{}
	body.User.UID = req.SessionID
	body.Audio.Format = req.Format
	if body.Audio.Format == "" {
		body.Audio.Format = "wav"
	}
	body.Audio.Language = req.Language
	body.Audio.Codec = "raw"
	body.Audio.Rate = c.cfg.SampleRate
	body.Audio.Bits = 16
	body.Audio.Channel = 1
	body.Request.ModelName = "bigmodel"
	body.Request.EnableITN = true
	body.Request.EnablePunc = true
	body.Request.ShowUtterances = true
	body.Request.ResultType = "full"
	body.Request.EndWindowSize = 800

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal ASR request: %w", err)
	}
	frame, err := clientRequest(payload)
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
		return fmt.Errorf("failed to send ASR request: %w", err)
	}
	return nil
}

func (c *ASRClient) sendAudio(conn *websocket.Conn, audio []byte) error {
	// 首帧占用序号1
	seq := int32(2)
	for i := 0; i < len(audio); i += chunkSize {
		end := min(i+chunkSize, len(audio))
		frame, err := audioRequest(audio[i:end], seq, end == len(audio))
		if err != nil {
			return fmt.Errorf("failed to compress audio chunk: %w", err)
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Encode()); err != nil {
			return fmt.Errorf("failed to send audio chunk: %w", err)
		}
		seq++
	}
	return nil
}

func (c *ASRClient) receive(conn *websocket.Conn, sessionID string) (*speechmodel.ASRResponse, error) {
	var (
		text     string
		duration int64
	)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("failed to read ASR response: %w", err)
		}
		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode ASR message: %w", err)
		}

		switch frame.Type {
		case ErrorMessage:
			payload, _ := frame.payload()
			return nil, fmt.Errorf("ASR error %d: %s", frame.ErrorCode, string(payload))

		case FullServerResponse:
			payload, err := frame.payload()
			if err != nil {
				return nil, fmt.Errorf("failed to decompress ASR payload: %w", err)
			}
			var msg asrServerMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				zap.S().Warnw("[asr] unmarshal response failed", "error", err)
				continue
			}
			if msg.Code != 0 && msg.Code != 20000000 {
				return nil, fmt.Errorf("ASR API error %d: %s", msg.Code, msg.Message)
			}
			if candidate := resultText(msg); candidate != "" {
				text = candidate
			}
			if msg.AudioInfo.Duration > 0 {
				duration = msg.AudioInfo.Duration
			}
			if frame.Last() {
				return &speechmodel.ASRResponse{
					SessionID: sessionID,
					Text:      strings.TrimSpace(text),
					Duration:  duration,
					CreatedAt: time.Now().UTC(),
				}, nil
			}
		}
	}
}

func resultText(msg asrServerMessage) string {
	if msg.Result.Text != "" {
		return msg.Result.Text
	}
	parts := make([]string, 0, len(msg.Result.Utterances))
	for _, u := range msg.Result.Utterances {
		if u.Text != "" {
			parts = append(parts, u.Text)
		}
	}
	return strings.Join(parts, " ")
}
