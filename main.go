package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"daily-updates-bot/bot"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err.Error())
	}
	config, err := bot.ConfigFromEnv()
	if err != nil {
		log.Fatalf("unable to build config: %v", err.Error())
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	confirm := make(chan struct{})
	go func() {
		if err := bot.Start(ctx, config, confirm); err != nil {
			log.Fatalf("unable to start the bot: %v", err.Error())
		}
	}()
	s := make(chan os.Signal, 1)
	signal.Notify(s, os.Interrupt, syscall.SIGTERM)
	<-s
	cancel()
	<-confirm
}
