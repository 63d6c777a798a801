// chatcli is a terminal chat client. It authenticates against the API
// server, mounts a room session, and mirrors the room in the terminal:
// optimistic sends, live broadcasts, replies, reactions, and paging.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/parley/chat-app/internal/channel"
	"github.com/parley/chat-app/internal/chat"
	"github.com/parley/chat-app/internal/client"
	"github.com/parley/chat-app/internal/config"
	"github.com/parley/chat-app/internal/session"
)

func main() {
	config.Load()

	var (
		apiURL   = flag.String("api", config.String("API_URL", "http://localhost:8080"), "REST API base URL")
		natsURL  = flag.String("nats", config.String("NATS_URL", "nats://localhost:4222"), "NATS URL")
		email    = flag.String("email", "", "account email")
		password = flag.String("password", "", "account password")
		nickname = flag.String("nickname", "", "nickname (registers a new account when set)")
		roomID   = flag.String("room", "", "room id to join (lists rooms when empty)")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("usage: chatcli -email ... -password ... [-nickname ...] [-room ...]")
	}

	ctx := context.Background()
	rest := client.New(*apiURL, "")

	var user chat.User
	if *nickname != "" {
		result, err := rest.Register(ctx, *email, *nickname, *password)
		if err != nil {
			log.Fatalf("register: %v", err)
		}
		user = result.User
	} else {
		result, err := rest.Login(ctx, *email, *password)
		if err != nil {
			log.Fatalf("login: %v", err)
		}
		user = result.User
	}
	fmt.Printf("signed in as %s <%s>\n", user.Nickname, user.Email)

	if *roomID == "" {
		rooms, err := rest.ListRooms(ctx)
		if err != nil {
			log.Fatalf("list rooms: %v", err)
		}
		if len(rooms) == 0 {
			fmt.Println("no rooms yet; create one with /create after picking -room")
			return
		}
		fmt.Println("rooms (rerun with -room <id>):")
		for _, r := range rooms {
			fmt.Printf("  %s  %s (%d participants)\n", r.ID, r.Name, r.ParticipantCount)
		}
		return
	}

	natsConfig := channel.DefaultConfig()
	natsConfig.URL = *natsURL
	natsConfig.Name = "parley-cli"
	ch, err := channel.NewClient(natsConfig)
	if err != nil {
		log.Fatalf("connect to NATS: %v", err)
	}
	defer ch.Close()

	ui := &terminalUI{out: os.Stdout, selfID: user.ID}

	controller, err := session.New(session.Config{
		RoomID:  *roomID,
		User:    user,
		API:     rest,
		Channel: ch,
		Navigate: func() {
			fmt.Println("room not found, leaving")
			os.Exit(1)
		},
		Notify: func(err error) {
			fmt.Printf("! %v\n", err)
		},
		OnChange: ui.render,
	})
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	defer controller.Close()

	if err := controller.Initialize(ctx); err != nil {
		log.Fatalf("initialize room: %v", err)
	}

	fmt.Println("commands: /reply <id> <text>, /delete <id>, /like <id>, /more, /who, /quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			controller.UpdateInput(line)
			controller.SendMessage(ctx, line, chat.MessageTypeText)
			continue
		}

		cmd, arg := splitCommand(line)
		switch cmd {
		case "/quit":
			return
		case "/more":
			controller.LoadMoreMessages(ctx)
		case "/delete":
			controller.DeleteMessage(ctx, arg)
		case "/like":
			controller.ToggleReaction(ctx, arg)
		case "/reply":
			id, text := splitCommand(arg)
			target := findByID(controller.State(), id)
			if target == nil {
				fmt.Printf("! no message %s\n", id)
				continue
			}
			controller.SetReplyTarget(target)
			controller.SendMessage(ctx, text, chat.MessageTypeText)
		case "/who":
			state := controller.State()
			for _, p := range state.Participants.List {
				name := p.User.Nickname
				if name == "" {
					name = p.UserID
				}
				fmt.Printf("  %s\n", name)
			}
		default:
			fmt.Printf("! unknown command %s\n", cmd)
		}
	}
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(line, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

func findByID(state session.State, id string) *chat.Message {
	for i := range state.Messages.Items {
		if state.Messages.Items[i].ID == id {
			return &state.Messages.Items[i]
		}
	}
	return nil
}

// terminalUI prints newly arrived messages and connection transitions.
// It tracks what was already shown so each OnChange prints only deltas.
type terminalUI struct {
	out        *os.File
	selfID     string
	seen       map[string]bool
	lastStatus session.ConnectionStatus
}

func (u *terminalUI) render(state session.State) {
	if u.seen == nil {
		u.seen = make(map[string]bool)
	}

	if state.Connection.Status != u.lastStatus {
		u.lastStatus = state.Connection.Status
		fmt.Fprintf(u.out, "-- connection: %s\n", state.Connection.Status)
	}

	// Walk oldest-to-newest so backlog prints in reading order.
	for i := len(state.Messages.Items) - 1; i >= 0; i-- {
		m := state.Messages.Items[i]
		if u.seen[m.ID] {
			continue
		}
		u.seen[m.ID] = true

		name := m.UserID
		if m.User != nil {
			name = m.User.Nickname
		}
		if m.UserID == u.selfID {
			name = "you"
		}

		switch {
		case m.Type == chat.MessageTypeSystem:
			fmt.Fprintf(u.out, "-- %s\n", m.Content)
		case m.ParentMessage != nil:
			fmt.Fprintf(u.out, "[%s] %s (re %s): %s\n", m.ID, name, m.ParentMessage.Nickname, m.Content)
		default:
			fmt.Fprintf(u.out, "[%s] %s: %s\n", m.ID, name, m.Content)
		}
	}
}
