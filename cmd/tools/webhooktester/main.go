package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/botrix/backend/internal/analysis/format"
	"github.com/zhouzirui/botrix/backend/internal/config"
	speechmodel "github.com/zhouzirui/botrix/backend/internal/model/speech"
	"github.com/zhouzirui/botrix/backend/internal/service/dispatch"
	"github.com/zhouzirui/botrix/backend/internal/service/speech"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	mode := flag.String("mode", "", "测试模式: send, format 或 asr")
	webhook := flag.String("webhook", "", "webhook 地址，默认使用演示机器人的地址")
	text := flag.String("text", "", "send 模式发送的文本；format 模式下为待格式化文本，留空则读取标准输入")
	keywords := flag.String("keywords", "", "逗号分隔的分类关键词，覆盖默认词表")
	audioPath := flag.String("audio", "", "ASR 输入音频文件路径")
	audioFormat := flag.String("format", "", "ASR 输入音频格式，默认按扩展名推断")
	language := flag.String("lang", "", "语言代码，默认使用配置中的语言")
	session := flag.String("session", "", "自定义 sessionID，留空则自动生成")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")

	flag.Parse()

	sessionID := *session
	if sessionID == "" {
		sessionID = fmt.Sprintf("manual-%d", time.Now().UnixNano())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "send":
		url := *webhook
		if url == "" {
			url = cfg.Widget.DemoWebhookURL
		}
		runSend(ctx, url, sessionID, *text, splitKeywords(*keywords))
	case "format":
		runFormat(*text, splitKeywords(*keywords))
	case "asr":
		if !cfg.Speech.Enabled() {
			log.Fatal("语音识别未启用，请先在环境变量中配置 SPEECH_APP_ID 与 SPEECH_ACCESS_TOKEN")
		}
		runASR(ctx, cfg, sessionID, *audioPath, *audioFormat, *language)
	default:
		flag.Usage()
		log.Fatal("请通过 -mode=send、-mode=format 或 -mode=asr 指定测试模式")
	}
}

func splitKeywords(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func runSend(ctx context.Context, url, sessionID, text string, keywords []string) {
	if strings.TrimSpace(text) == "" {
		log.Fatal("send 模式需要通过 -text 提供消息文本")
	}

	log.Printf("发送消息: webhook=%s session=%s", url, sessionID)
	res := dispatch.NewClient().Send(ctx, url, sessionID, text)
	log.Printf("收到回复: outcome=%s status=%d", res.Outcome, res.StatusCode)
	printBlocks(format.New(format.WithKeywords(keywords)).Format(res.Reply))
}

func runFormat(text string, keywords []string) {
	if text == "" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("读取标准输入失败: %v", err)
		}
		text = string(raw)
	}
	printBlocks(format.New(format.WithKeywords(keywords)).Format(text))
}

func printBlocks(blocks []format.Block) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(blocks); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}

func runASR(ctx context.Context, cfg *config.Config, sessionID, audioPath, audioFormat, language string) {
	if audioPath == "" {
		log.Fatal("ASR 模式需要通过 -audio 指定音频文件路径")
	}

	audio, err := os.ReadFile(audioPath)
	if err != nil {
		log.Fatalf("读取音频文件失败: %v", err)
	}

	if audioFormat == "" {
		audioFormat = strings.TrimPrefix(strings.ToLower(filepath.Ext(audioPath)), ".")
		if audioFormat == "" {
			audioFormat = "wav"
		}
	}

	if language == "" {
		language = cfg.Speech.Language
	}

	req := &speechmodel.ASRRequest{
		SessionID: sessionID,
		Audio:     audio,
		Format:    audioFormat,
		Language:  language,
	}

	log.Printf("开始进行 ASR 测试: session=%s format=%s language=%s", sessionID, audioFormat, language)

	resp, err := speech.NewASRClient(cfg.Speech).Recognize(ctx, req)
	if err != nil {
		log.Fatalf("ASR 调用失败: %v", err)
	}

	log.Printf("ASR 识别成功: text=%q duration=%dms", resp.Text, resp.Duration)
}
