package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rangdl/FN-AQ/internal/captcha"
	"github.com/rangdl/FN-AQ/internal/config"
	"github.com/rangdl/FN-AQ/internal/logbus"
	"github.com/rangdl/FN-AQ/internal/logger"
	"github.com/rangdl/FN-AQ/internal/retry"
)

// 手动验证 OCR 配置：读取一张验证码图片并打印识别结果。
func main() {
	configPath := flag.String("config", "./config.yaml", "path to config.yaml")
	image := flag.String("image", "", "captcha image file (png/jpg/gif)")
	flag.Parse()

	if *image == "" {
		fmt.Fprintln(os.Stderr, "用法: test_ocr -image seccode.png [-config config.yaml]")
		os.Exit(2)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(2)
	}
	l, closer, err := logger.New(logger.Config{Dir: cfg.Log.Dir, Debug: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(2)
	}
	defer closer.Close()
	bus := logbus.New(50, l)

	rec, err := captcha.New(cfg.Captcha, retry.FromConfig(cfg.Retry.Token), bus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "创建识别器失败: %v\n", err)
		os.Exit(2)
	}
	if rec == nil {
		fmt.Fprintln(os.Stderr, "未配置 OCR：请设置 FN_OCR_API_KEY / FN_OCR_SECRET_KEY 或 captcha.jfbymToken")
		os.Exit(2)
	}

	b, err := os.ReadFile(*image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取图片失败: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	start := time.Now()
	text, err := rec.Recognize(ctx, b)
	if err != nil {
		fmt.Printf("识别失败 (%s): %v\n", rec.Name(), err)
		os.Exit(1)
	}
	fmt.Printf("识别结果 (%s, %s): %s\n", rec.Name(), time.Since(start).Round(time.Millisecond), text)
}
