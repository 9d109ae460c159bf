package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/worklinkhq/worklink/client/internal/api"
	"github.com/worklinkhq/worklink/client/internal/auth"
	"github.com/worklinkhq/worklink/client/internal/cache"
	"github.com/worklinkhq/worklink/client/internal/config"
	"github.com/worklinkhq/worklink/client/internal/model"
	"github.com/worklinkhq/worklink/client/internal/state"
	"github.com/worklinkhq/worklink/client/internal/transport"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if cfg.Token == "" {
		log.Fatal("WORKLINK_TOKEN is required")
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("zap.NewDevelopment: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	session, err := auth.ParseSession(cfg.Token)
	if err != nil {
		sugar.Fatalf("invalid session token: %v", err)
	}

	store, err := cache.Open(cfg.CacheDSN)
	if err != nil {
		sugar.Fatalf("opening cache: %v", err)
	}
	defer store.Close()

	rest := api.New(cfg.APIBaseURL, cfg.Token, cfg.HTTPTimeout, sugar)

	ctx := context.Background()
	conn, err := transport.Dial(ctx, cfg.SocketURL, cfg.Token, sugar)
	if err != nil {
		sugar.Fatalf("connecting push channel: %v", err)
	}
	defer conn.Close()

	app := state.NewApp(session.UserID, rest, conn, store, sugar)
	// connect bookkeeping first: it resets presence, and the server's
	// register-time snapshot must land after that, not before
	app.HandleConnect(ctx)
	go app.Run(ctx, conn.Events())

	fmt.Printf("signed in as %s (%s)\n", session.Name, session.UserID)
	repl(ctx, app, cfg.AssetOrigin)
}

func repl(ctx context.Context, app *state.App, assetOrigin string) {
	fmt.Println("commands: ls, open <n>, send <text>, older, read, notifs, nread, back, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		cmd, arg, _ := strings.Cut(line, " ")

		switch cmd {
		case "ls":
			printConversations(app, assetOrigin)

		case "open":
			n, err := strconv.Atoi(arg)
			convs := app.Conversations()
			if err != nil || n < 1 || n > len(convs) {
				fmt.Println("usage: open <n> (see ls)")
				continue
			}
			conv := convs[n-1]
			if err := app.OpenConversation(ctx, conv.ID); err != nil {
				fmt.Println("open failed:", err)
				continue
			}
			printMessages(app)

		case "send":
			if _, err := app.SendMessage(ctx, arg); err != nil {
				// the compose text stays with the user for a retry
				fmt.Println("send failed:", err)
				continue
			}
			printMessages(app)

		case "older":
			if err := app.LoadOlderMessages(ctx); err != nil {
				fmt.Println("fetch failed:", err)
				continue
			}
			printMessages(app)

		case "read":
			id := app.ActiveConversationID()
			if id == "" {
				fmt.Println("no open conversation")
				continue
			}
			if err := app.MarkConversationRead(ctx, id); err != nil {
				fmt.Println("mark read failed:", err)
			}

		case "notifs":
			for _, n := range app.RealtimeNotifications() {
				printNotification(n, "live")
			}
			for _, n := range app.Notifications() {
				printNotification(n, "")
			}
			fmt.Printf("unread: %d\n", app.UnreadNotifications())

		case "nread":
			if err := app.MarkAllNotificationsRead(ctx); err != nil {
				fmt.Println("mark read failed:", err)
			}

		case "back":
			app.CloseConversation()

		case "quit", "exit":
			return

		case "":
		default:
			fmt.Println("unknown command:", cmd)
		}

		if errs := app.Errors(); errs != (state.Errors{}) {
			app.ClearErrors()
		}
	}
}

func printConversations(app *state.App, assetOrigin string) {
	convs := app.Conversations()
	if len(convs) == 0 {
		fmt.Println("no conversations")
		return
	}
	for i, c := range convs {
		marker := " "
		if app.IsOnline(c.OtherParticipant.ID) {
			marker = "*"
		}
		preview := ""
		if c.LastMessage != nil {
			preview = c.LastMessage.Content
		}
		fmt.Printf("%2d. %s%-20s unread=%-3d %s\n", i+1, marker, c.OtherParticipant.Name, c.UnreadCount, preview)
		if c.OtherParticipant.Avatar != "" {
			fmt.Printf("      avatar: %s\n", model.ResolveAssetURL(assetOrigin, c.OtherParticipant.Avatar))
		}
	}
	fmt.Printf("total unread: %d\n", app.TotalUnread())
}

func printMessages(app *state.App) {
	for _, m := range app.Messages() {
		who := m.Sender.Name
		if m.Sender.ID == app.UserID() {
			who = "me"
		}
		fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Content)
	}
	if typing := app.TypingIn(app.ActiveConversationID()); len(typing) > 0 {
		fmt.Printf("(%s typing...)\n", strings.Join(typing, ", "))
	}
}

func printNotification(n model.Notification, tag string) {
	read := " "
	if !n.Read {
		read = "!"
	}
	if tag != "" {
		tag = " [" + tag + "]"
	}
	fmt.Printf("%s %s: %s%s\n", read, n.Title, n.Message, tag)
}
