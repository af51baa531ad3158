package main

import (
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/rangdl/FN-AQ/internal/mockforum"
)

// 本地联调用：启动一个模拟论坛，配合
//
//	FN_BASE_URL=http://127.0.0.1:8080/ FN_USERNAME=alice FN_PASSWORD=secret signer run
//
// 验证码识别与推送接口也挂在同一地址下（/oauth/2.0/token、/rest/2.0/ocr/v1/general_basic、/push/<key>.send）。
func main() {
	addr := flag.String("addr", ":8080", "listen address")
	username := flag.String("username", "alice", "accepted username")
	password := flag.String("password", "secret", "accepted password")
	withCaptcha := flag.Bool("captcha", false, "require an image captcha on login")
	answer := flag.String("captcha-answer", "k7p2", "expected captcha answer")
	done := flag.Bool("done", false, "start with today's check-in already done")
	sticky := flag.Bool("sticky", false, "ignore check-in requests")
	flag.Parse()

	forum := mockforum.New(mockforum.Options{
		Username:      *username,
		Password:      *password,
		Captcha:       *withCaptcha,
		CaptchaAnswer: *answer,
		AlreadyDone:   *done,
		StickyNotDone: *sticky,
	})

	server := &http.Server{
		Addr:              *addr,
		Handler:           forum.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Printf("mock forum listening on %s (user=%s captcha=%v)", *addr, *username, *withCaptcha)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("listen: %v", err)
	}
}
