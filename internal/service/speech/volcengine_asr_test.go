package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	speechmodel "github.com/zhouzirui/botrix/backend/internal/model/speech"
)

// fakeASRServer 读取首帧与全部音频帧后返回一条最终结果
func fakeASRServer(t *testing.T, transcript string, gotAudio chan<- []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api-App-Key") != "app" || r.Header.Get("X-Api-Access-Key") != "token" {
			t.Errorf("missing credential headers: %v", r.Header)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var audio bytes.Buffer
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			frame, err := DecodeFrame(bytes.NewReader(data))
			if err != nil {
				t.Errorf("decode client frame: %v", err)
				return
			}
			if frame.Type == FullClientRequest {
				continue
			}
			chunk, err := frame.payload()
			if err != nil {
				t.Errorf("decompress chunk: %v", err)
				return
			}
			audio.Write(chunk)
			if !frame.Last() {
				continue
			}
			gotAudio <- audio.Bytes()

			body, _ := json.Marshal(map[string]any{
				"result":     map[string]any{"text": transcript},
				"audio_info": map[string]any{"duration": 1200},
			})
			compressed, _ := gzipBytes(body)
			resp := &Frame{
				Type:          FullServerResponse,
				Flags:         NegativeSequence,
				Serialization: JSONSerialization,
				Compression:   GzipCompression,
				Sequence:      -3,
				Payload:       compressed,
			}
			_ = conn.WriteMessage(websocket.BinaryMessage, resp.Encode())
			return
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestASRClientTranscribe(t *testing.T) {
	received := make(chan []byte, 1)
	srv := fakeASRServer(t, " 你好，世界 ", received)

	client := NewASRClient(speechmodel.ASRConfig{
		AppID:       "app",
		AccessToken: "token",
		Endpoint:    "ws" + strings.TrimPrefix(srv.URL, "http"),
	})

	audio := bytes.Repeat([]byte{0x01, 0x02}, chunkSize) // two chunks
	text, err := client.Transcribe(context.Background(), "widget_abc_1", audio)
	if err != nil {
		t.Fatalf("Transcribe err: %v", err)
	}
	if text != "你好，世界" {
		t.Fatalf("unexpected transcript: %q", text)
	}
	if got := <-received; !bytes.Equal(got, audio) {
		t.Fatalf("server received %d bytes, want %d", len(got), len(audio))
	}
}

func TestASRClientRequiresCredentials(t *testing.T) {
	client := NewASRClient(speechmodel.ASRConfig{})
	if _, err := client.Transcribe(context.Background(), "s", []byte{1}); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestDecodeErrorFrame(t *testing.T) {
	raw := (&Frame{Type: ErrorMessage, ErrorCode: 45000001, Payload: []byte("bad request")}).Encode()
	frame, err := DecodeFrame(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodeFrame err: %v", err)
	}
	if frame.ErrorCode != 45000001 || string(frame.Payload) != "bad request" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
