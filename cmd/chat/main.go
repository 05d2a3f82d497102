package main

import (
	"context"
	"fmt"
	"io"
	"livesync/internal/client"
	"livesync/internal/config"
	"livesync/internal/platform/logger"
	redisPlugin "livesync/internal/plugins/redis"
	"livesync/internal/tui"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chat",
		Short: "Join a room directly through Redis",
		RunE:  runChat,
	}
	rootCmd.Flags().String("room", "general", "Room to join")
	rootCmd.Flags().String("user", os.Getenv("USER"), "User id to post as")
	rootCmd.Flags().String("redis", "", "Redis URL (defaults to REDIS_URL)")
	rootCmd.Flags().String("log-file", "", "Write logs to this file instead of discarding them")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	room, _ := cmd.Flags().GetString("room")
	user, _ := cmd.Flags().GetString("user")
	redisURL, _ := cmd.Flags().GetString("redis")
	logFile, _ := cmd.Flags().GetString("log-file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	if redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	// The terminal belongs to the UI, so logs only go to a file.
	var w io.Writer = io.Discard
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		w = f
	}
	log := logger.NewLogger(*cfg, w)

	rdb, err := redisPlugin.NewRedisClient(ctx, *cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()

	bridge := tui.NewBridge()
	c, err := client.New(client.Config{
		RoomID:   room,
		UserID:   user,
		Realtime: *cfg.Realtime,
		Presence: *cfg.Presence,
	}, rdb, log, bridge)
	if err != nil {
		return err
	}

	p := tea.NewProgram(tui.New(ctx, c, c.Session()), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)
	if err := c.Start(ctx); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	_, runErr := p.Run()

	leaveCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Close(leaveCtx); err != nil {
		log.Error("leave failed", "err", err)
	}
	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("run tui: %w", runErr)
	}
	return nil
}
