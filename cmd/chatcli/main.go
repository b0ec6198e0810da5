// Package main is a terminal chat client: it logs in, joins a room's live
// channel and drives the full sync engine from stdin.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bloomcircle/backend/internal/chatsync"
)

func main() {
	var (
		serverURL = flag.String("server", envOr("CHAT_SERVER_URL", "http://localhost:8080"), "server base URL")
		wsURL     = flag.String("ws", envOr("CHAT_WS_URL", "ws://localhost:8080/ws"), "websocket endpoint")
		email     = flag.String("email", os.Getenv("CHAT_EMAIL"), "login email")
		password  = flag.String("password", os.Getenv("CHAT_PASSWORD"), "login password")
		roomStr   = flag.String("room", os.Getenv("CHAT_ROOM_ID"), "room UUID")
	)
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *email == "" || *password == "" || *roomStr == "" {
		fmt.Fprintln(os.Stderr, "usage: chatcli -email ... -password ... -room <uuid>")
		os.Exit(2)
	}
	roomID, err := uuid.Parse(*roomStr)
	if err != nil {
		logger.Fatal("invalid room id", zap.Error(err))
	}

	token, selfID, selfName, err := login(*serverURL, *email, *password)
	if err != nil {
		logger.Fatal("login", zap.Error(err))
	}

	transport, err := chatsync.DialRoom(*wsURL, roomID, token)
	if err != nil {
		logger.Fatal("dial", zap.Error(err))
	}

	api := chatsync.NewClient(*serverURL, token)
	session := chatsync.NewSession(api, transport, chatsync.Config{
		RoomID:   roomID,
		SelfID:   selfID,
		SelfName: selfName,
		OnTypingChange: func(names []string) {
			if len(names) > 0 {
				fmt.Printf("· %s typing...\n", strings.Join(names, ", "))
			}
		},
		OnSendFailed: func(tempID string, err error) {
			fmt.Printf("! send failed (%s): %v\n", tempID, err)
		},
	})

	ctx := context.Background()
	if err := session.Start(ctx); err != nil {
		logger.Fatal("start session", zap.Error(err))
	}
	defer session.Close()

	for _, m := range session.Messages() {
		printMessage(m)
	}
	go follow(session)

	fmt.Println("commands: /react <msg-id> <emoji>, /poll <question> | <opt> | <opt>..., /vote <option-id>, /members, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if !runCommand(ctx, session, line) {
				return
			}
			continue
		}
		_ = session.Keystroke()
		session.Send(ctx, line, nil)
	}
}

// follow polls the view and prints messages as they arrive.
func follow(session *chatsync.Session) {
	seen := 0
	for {
		time.Sleep(300 * time.Millisecond)
		msgs := session.Messages()
		for ; seen < len(msgs); seen++ {
			printMessage(msgs[seen])
		}
		if n := session.Scroll().Unseen(); n > 0 {
			session.Scroll().SetPosition(true)
		}
	}
}

func runCommand(ctx context.Context, session *chatsync.Session, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit":
		return false
	case "/members":
		for _, m := range session.Roster() {
			fmt.Printf("  %s (%s)\n", m.DisplayName, m.ID)
		}
	case "/react":
		if len(fields) != 3 {
			fmt.Println("usage: /react <msg-id> <emoji>")
			return true
		}
		id, err := uuid.Parse(fields[1])
		if err != nil {
			fmt.Println("bad message id")
			return true
		}
		if err := session.ToggleReaction(ctx, id, fields[2]); err != nil {
			fmt.Printf("! %v\n", err)
		}
	case "/vote":
		if len(fields) != 2 {
			fmt.Println("usage: /vote <option-id>")
			return true
		}
		id, err := uuid.Parse(fields[1])
		if err != nil {
			fmt.Println("bad option id")
			return true
		}
		if err := session.ToggleVote(ctx, id); err != nil {
			fmt.Printf("! %v\n", err)
		}
	case "/poll":
		parts := strings.Split(strings.TrimPrefix(line, "/poll "), "|")
		if len(parts) < 3 {
			fmt.Println("usage: /poll <question> | <opt> | <opt> [| <opt>...]")
			return true
		}
		question := strings.TrimSpace(parts[0])
		var options []string
		for _, p := range parts[1:] {
			options = append(options, strings.TrimSpace(p))
		}
		if err := session.CreatePoll(ctx, question, options, false); err != nil {
			fmt.Printf("! %v\n", err)
		}
	default:
		fmt.Println("unknown command")
	}
	return true
}

func printMessage(m chatsync.Message) {
	prefix := m.AuthorName
	if prefix == "" {
		prefix = "system"
	}
	suffix := ""
	if m.Pending {
		suffix = " (sending...)"
	}
	if m.ReplyTo != nil {
		fmt.Printf("[%s] %s ↩ %s: %s%s\n", m.ID, prefix, m.ReplyTo.AuthorName, m.Body, suffix)
		return
	}
	if m.Poll != nil {
		fmt.Printf("[%s] %s asks: %s\n", m.ID, prefix, m.Poll.Question)
		for _, o := range m.Poll.Options {
			fmt.Printf("    [%s] %s (%d)\n", o.ID, o.Label, len(o.Votes))
		}
		return
	}
	fmt.Printf("[%s] %s: %s%s\n", m.ID, prefix, m.Body, suffix)
}

func login(serverURL, email, password string) (token string, userID uuid.UUID, displayName string, err error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	resp, err := http.Post(serverURL+"/auth/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", uuid.Nil, "", err
	}
	defer resp.Body.Close()

	var env struct {
		Success bool `json:"success"`
		Data    struct {
			Token string `json:"token"`
			User  struct {
				ID          uuid.UUID `json:"id"`
				DisplayName string    `json:"display_name"`
			} `json:"user"`
		} `json:"data"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return "", uuid.Nil, "", err
	}
	if !env.Success {
		return "", uuid.Nil, "", fmt.Errorf("login: %s", env.Error)
	}
	return env.Data.Token, env.Data.User.ID, env.Data.User.DisplayName, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
