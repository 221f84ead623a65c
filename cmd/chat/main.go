package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"marketchat/auth"
	"marketchat/domain/chat"
	"marketchat/internal/logs"
	"marketchat/moderation"
	"marketchat/observability"
	"marketchat/repositories"
	"marketchat/runtime"
	"marketchat/runtime/workers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, drives the interactive session, and
// centralizes error reporting so deferred cleanup always executes.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Viewer identity
	viewer, err := auth.ResolveViewer(config.SessionToken, []byte(config.SessionSecret))
	if err != nil {
		return fmt.Errorf("session token rejected: %w", err)
	}

	// 3. Storage (BadgerDB) & search index (Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	repo, err := repositories.NewMessageRepository(db, log)
	if err != nil {
		return fmt.Errorf("message repository failed: %w", err)
	}
	defer repo.Close()

	blugeConfig := bluge.InMemoryOnlyConfig()
	if config.BlugeFilepath != "" {
		blugeConfig = bluge.DefaultConfig(config.BlugeFilepath)
	}
	index, err := repositories.NewMessageIndex(blugeConfig, log)
	if err != nil {
		return fmt.Errorf("search index failed: %w", err)
	}
	defer index.Close()

	// 4. Live feed & moderation
	feed := runtime.NewFeed(repo, log)
	repo.SetCommitSink(feed)
	defer feed.Close()

	mask := config.ModerationCharReplacement
	if mask == 0 {
		mask = '*'
	}
	screener, err := moderation.NewScreener(config.CensoredWords, mask)
	if err != nil {
		return fmt.Errorf("moderation setup failed: %w", err)
	}

	// 5. Session controller
	stats := observability.NewSessionStats(log)
	ctrl := runtime.NewController(viewer, repo, feed, log).
		WithScreener(screener).
		WithIndex(index).
		WithStats(stats).
		WithConversationLimit(config.ConversationLimit)
	defer ctrl.Close()

	// 6. Context, signals & supervision
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup := workers.NewSupervisor(log)
	sup.Add(workers.NewHeartbeatWorker(log, stats, config.HeartbeatInterval))
	go sup.Run(ctx)
	defer sup.Stop()

	if err = ctrl.OpenInbox(); err != nil {
		return fmt.Errorf("inbox failed to open: %w", err)
	}

	log.Info("Session open", "viewer", viewer.ID, "name", viewer.FullName)
	repl(ctx, ctrl, stats)

	stats.LogSummary()
	log.Info("Program stopped cleanly")
	return nil
}

// repl reads commands from stdin until EOF, /quit, or a signal. Any line
// that is not a command is sent to the selected counterpart.
func repl(ctx context.Context, ctrl *runtime.Controller, stats *observability.SessionStats) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	printHelp()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if done := dispatch(ctx, ctrl, stats, line); done {
				return
			}
		}
	}
}

func dispatch(ctx context.Context, ctrl *runtime.Controller, stats *observability.SessionStats, line string) bool {
	command, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	switch command {
	case "":
	case "/quit":
		return true
	case "/help":
		printHelp()
	case "/inbox":
		renderInbox(ctrl)
	case "/open":
		id, name, _ := strings.Cut(rest, " ")
		if err := ctrl.SelectCounterpart(id, name); err != nil {
			color.Red.Println(err)
			break
		}
		renderThread(ctrl)
	case "/thread":
		renderThread(ctrl)
	case "/search":
		matches, err := ctrl.SearchThread(ctx, rest)
		if err != nil {
			color.Red.Println(err)
			break
		}
		renderMessages(ctrl, matches)
	case "/stats":
		snap := stats.Snapshot()
		fmt.Printf("sent=%d snapshots=%d patches=%d failures=%d since=%s\n",
			snap.MessagesSent, snap.SnapshotsDelivered, snap.PatchesApplied,
			snap.SyncFailures, snap.StartedAt)
	default:
		if err := ctrl.Send(line); err != nil {
			color.Red.Println(err)
			break
		}
		renderThread(ctrl)
	}
	return false
}

func printHelp() {
	fmt.Println("Commands: /inbox, /open <id> [name], /thread, /search <terms>, /stats, /quit")
	fmt.Println("Anything else is sent to the selected counterpart.")
}

func renderInbox(ctrl *runtime.Controller) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Counterpart", "ID", "Last Message", "Unread"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	for _, summary := range ctrl.Counterparts() {
		unread := ""
		if summary.Unread > 0 {
			unread = color.New(color.FgGreen).Render(fmt.Sprintf("%d", summary.Unread))
		}
		table.Append([]string{
			summary.CounterpartName,
			summary.CounterpartID,
			summary.LastMessage.Body,
			unread,
		})
	}
	table.Render()
}

func renderThread(ctrl *runtime.Controller) {
	renderMessages(ctrl, ctrl.Thread())
}

func renderMessages(ctrl *runtime.Controller, messages []chat.Message) {
	viewer := ctrl.Viewer()
	for _, m := range messages {
		prefix := m.SenderName
		if m.SenderID == viewer.ID {
			prefix = "me"
		}
		fmt.Printf("%s [%s] %s %s\n",
			m.CreatedAt.Local().Format("15:04:05"), prefix, m.Body, statusTick(m, viewer.ID))
	}
}

// statusTick renders delivery state for the viewer's own messages: one grey
// tick when sent, two green ticks once the counterpart has seen it.
func statusTick(m chat.Message, viewerID string) string {
	if m.SenderID != viewerID {
		return ""
	}
	if m.Status == chat.StatusSeen {
		return color.New(color.FgGreen).Render("✓✓")
	}
	return color.New(color.FgGray).Render("✓")
}
