// Command pulsecheck signs in against a running backend and exercises the
// mood, chat and history endpoints once.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/pulse-ai/pulse/internal/client/app"
	"github.com/pulse-ai/pulse/internal/client/config"
	"github.com/pulse-ai/pulse/internal/client/failure"
	"github.com/pulse-ai/pulse/internal/client/moodflow"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] no .env file, using process environment: %v", err)
	}

	configPath := flag.String("config", "", "path to a config.yaml (optional)")
	email := flag.String("email", "", "account email")
	password := flag.String("password", "", "account password")
	text := flag.String("text", "I feel calm today", "mood text to submit")
	message := flag.String("chat", "Hello there", "chat message to send")
	attach := flag.String("file", "", "audio or image to attach to the mood")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	if *email == "" || *password == "" {
		flag.Usage()
		log.Fatal("-email and -password are required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	// Keep the real client session untouched.
	cfg.SessionPath = filepath.Join(os.TempDir(), fmt.Sprintf("pulsecheck-%d.json", time.Now().UnixNano()))
	defer os.Remove(cfg.SessionPath)

	logger, err := app.NewLogger(cfg)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	client, err := app.New(cfg, nil, logger)
	if err != nil {
		log.Fatalf("init client: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	session, err := client.Identity.SignInWithPassword(ctx, *email, *password)
	if err != nil {
		log.Fatalf("sign in: %s", failure.Message(err))
	}
	log.Printf("signed in as %s (%s) in %s", session.User.Email, session.User.ID, time.Since(start))

	client.Mood.SetText(*text)
	if *attach != "" {
		a, err := moodflow.LoadAttachment(*attach)
		if err == nil {
			err = client.Mood.SetAttachment(a)
		}
		if err != nil {
			log.Fatalf("attachment: %s", failure.Message(err))
		}
	}
	start = time.Now()
	display, err := client.Mood.Submit(ctx)
	if err != nil {
		log.Fatalf("mood: %s", failure.Message(err))
	}
	log.Printf("mood submitted in %s", time.Since(start))
	fmt.Println(display.Text())

	start = time.Now()
	if err := client.Chat.Send(ctx, *message); err != nil {
		log.Fatalf("chat: %s", failure.Message(err))
	}
	log.Printf("chat round trip in %s", time.Since(start))
	for _, e := range client.Chat.Entries() {
		fmt.Printf("[%s] %s\n", e.Role, e.Content)
	}

	if err := client.Insight.Load(ctx); err != nil {
		log.Fatalf("history: %s", failure.Message(err))
	}
	log.Printf("history holds %d snapshots", len(client.Insight.Moods()))
}
