package main

import (
	"os"

	_ "taskboard/docs"
	"taskboard/internal/config"
	"taskboard/internal/server"
)

// @title           Taskboard API
// @version         1.0
// @description     Task store behind the Kanban board client.

// @contact.name   octaview
// @contact.url    t.me/octaview
// @contact.email  octaviewes@gmail.com

// @host      localhost:4000
// @BasePath  /

// @schemes http
func main() {
	cfg := config.Load()
	log := cfg.NewLogger(os.Stderr)

	s, err := server.Init(cfg, log)
	if err != nil {
		log.Fatalf("❌ Server initialization failed: %v", err)
	}

	s.Run()
}
