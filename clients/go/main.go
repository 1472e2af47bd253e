// chatctl - command line client for the local chat daemon
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/manyajain27/dating-app-sub000/clients/go/chatd"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	client := chatd.NewClient(os.Getenv("CHATD_URL"))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := os.Args[1]

	switch cmd {
	case "health":
		resp, err := client.Health(ctx)
		exitOnError(err)
		printJSON(resp)

	case "matches":
		matches, err := client.Matches(ctx)
		exitOnError(err)
		for _, m := range matches {
			fmt.Printf("  %s  with %s\n", m.ID, m.OtherUser)
		}

	case "conversations", "ls":
		resp, err := client.Conversations(ctx, hasFlag("--refresh"))
		exitOnError(err)
		printConversations(resp)

	case "create":
		requireArgs(3, "chatctl create <match_id>")
		id, err := client.CreateConversation(ctx, os.Args[2])
		exitOnError(err)
		fmt.Printf("Conversation: %s\n", id)

	case "messages":
		requireArgs(3, "chatctl messages <conversation_id> [--refresh]")
		resp, err := client.Messages(ctx, os.Args[2], hasFlag("--refresh"))
		exitOnError(err)
		printMessages(resp.Messages)

	case "open":
		requireArgs(3, "chatctl open <conversation_id>")
		resp, err := client.Open(ctx, os.Args[2])
		exitOnError(err)
		printMessages(resp.Messages)

	case "close":
		requireArgs(3, "chatctl close <conversation_id>")
		exitOnError(client.Close(ctx, os.Args[2]))

	case "send":
		requireArgs(4, "chatctl send <conversation_id> <message>")
		resp, err := client.Send(ctx, os.Args[2], chatd.SendRequest{Content: strings.Join(os.Args[3:], " ")})
		exitOnError(err)
		fmt.Printf("Sent: %s\n", resp.ID)

	case "read":
		requireArgs(3, "chatctl read <conversation_id>")
		unread, err := client.MarkRead(ctx, os.Args[2])
		exitOnError(err)
		fmt.Printf("Unread: %d\n", unread)

	case "watch":
		err := client.Watch(ctx, func(snap chatd.ConversationsResponse) {
			fmt.Printf("--- %s\n", time.Now().Format("15:04:05"))
			printConversations(&snap)
		})
		exitOnError(err)

	case "help", "--help", "-h":
		usage()

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println(`chatctl - chat daemon client

Usage: chatctl <command> [options]

Commands:
  conversations [--refresh]        List conversations, newest first
  create <match_id>                Start (or find) the conversation for a match
  messages <id> [--refresh]        Show a conversation's messages
  open <id>                        Open a conversation and mark it read
  close <id>                       Close the open conversation
  send <id> <message>              Send a text message
  read <id>                        Mark a conversation read
  matches                          List matches
  watch                            Stream conversation list changes
  health                           Check daemon health

Environment:
  CHATD_URL     Daemon URL (default: http://localhost:8080)
  CHATD_TOKEN   Bearer token, if the daemon requires one`)
}

func printConversations(resp *chatd.ConversationsResponse) {
	for _, conv := range resp.Conversations {
		marker := " "
		if conv.ID == resp.Active {
			marker = "*"
		}
		preview := ""
		if conv.LastMessage != nil {
			preview = conv.LastMessage.Content
			if len(preview) > 40 {
				preview = preview[:40] + "..."
			}
		}
		fmt.Printf("%s %s  (%d unread)  %s\n", marker, conv.ID, conv.UnreadCount, preview)
	}
}

func printMessages(msgs []chatd.Message) {
	for _, msg := range msgs {
		from := msg.SenderID
		if len(from) > 8 {
			from = from[:8]
		}
		body := msg.Content
		if msg.ImageURL != "" {
			body += " [" + msg.ImageURL + "]"
		}
		read := ""
		if msg.IsRead {
			read = " ✓"
		}
		fmt.Printf("[%s] %s: %s%s\n", msg.CreatedAt.Local().Format("2006-01-02 15:04:05"), from, body, read)
	}
}

func hasFlag(flag string) bool {
	for _, arg := range os.Args[2:] {
		if arg == flag {
			return true
		}
	}
	return false
}

func requireArgs(n int, usageLine string) {
	if len(os.Args) < n {
		fmt.Fprintln(os.Stderr, "Usage:", usageLine)
		os.Exit(1)
	}
}

func exitOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}
