// ABOUTME: Command-line client for a running parley broker
// ABOUTME: Lists conversations, sends prompts, and watches the live stream

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
)

func addr() string {
	if env := os.Getenv("PARLEY_ADDR"); env != "" {
		return env
	}
	return "localhost:8080"
}

func usage() {
	fmt.Println("Usage: parleyctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  list                 List conversations")
	fmt.Println("  new [title]          Create a conversation")
	fmt.Println("  send <id> <message>  Send a prompt")
	fmt.Println("  watch <id>           Stream a conversation's events")
	fmt.Println("  models               List available models")
	fmt.Println("  export <id>          Print a transcript as Markdown")
	fmt.Println()
	fmt.Println("Set PARLEY_ADDR to point at a broker (default localhost:8080).")
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "list":
		err = runList(ctx)
	case "new":
		err = runNew(ctx, os.Args[2:])
	case "send":
		err = runSend(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "models":
		err = runModels(ctx)
	case "export":
		err = runExport(ctx, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getJSON(ctx context.Context, path string, out any) error {
	url := fmt.Sprintf("http://%s%s", addr(), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func postJSON(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("http://%s%s", addr(), path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

type conversation struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	UpdatedAt string `json:"updatedAt"`
}

func runList(ctx context.Context) error {
	var convs []conversation
	if err := getJSON(ctx, "/api/conversations", &convs); err != nil {
		return err
	}

	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	gray := color.New(color.FgHiBlack)
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%s  %s", c.ID, title)
		gray.Printf("  %s  %s\n", c.Model, c.UpdatedAt)
	}
	return nil
}

func runNew(ctx context.Context, args []string) error {
	title := strings.Join(args, " ")

	var conv conversation
	if err := postJSON(ctx, "/api/conversations", map[string]string{"title": title}, &conv); err != nil {
		return err
	}

	fmt.Printf("%s\n", conv.ID)
	return nil
}

func runSend(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: parleyctl send <id> <message>")
	}
	id := args[0]
	content := strings.Join(args[1:], " ")

	var accepted map[string]string
	path := fmt.Sprintf("/api/conversations/%s/messages", id)
	if err := postJSON(ctx, path, map[string]string{"content": content}, &accepted); err != nil {
		return err
	}

	fmt.Printf("accepted (message %s); run 'parleyctl watch %s' to follow the reply\n",
		accepted["userMessageId"], id)
	return nil
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func runWatch(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parleyctl watch <id>")
	}
	id := args[0]

	url := fmt.Sprintf("ws://%s/ws/%s", addr(), id)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("connect failed: %s", strings.TrimSpace(string(body)))
		}
		return fmt.Errorf("connect failed: %w", err)
	}
	defer conn.Close()

	gray := color.New(color.FgHiBlack)
	red := color.New(color.FgRed)
	gray.Printf("watching %s (ctrl-c to stop)\n", id)

	// Close the socket when the signal context fires so ReadJSON
	// returns instead of blocking forever.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("stream closed: %w", err)
		}

		switch f.Event {
		case "session:idle":
			gray.Println("[idle]")
		case "message:start":
			fmt.Println()
		case "message:delta":
			var d struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(f.Data, &d); err == nil {
				fmt.Print(d.Content)
			}
		case "message:complete":
			fmt.Println()
			gray.Printf("[complete %s]\n", time.Now().Format("15:04:05"))
		case "message:error":
			var d struct {
				Error string `json:"error"`
			}
			_ = json.Unmarshal(f.Data, &d)
			fmt.Println()
			red.Printf("[error] %s\n", d.Error)
		}
	}
}

func runModels(ctx context.Context) error {
	var models []struct {
		ID          string `json:"id"`
		Alias       string `json:"alias"`
		DisplayName string `json:"displayName"`
	}
	if err := getJSON(ctx, "/api/models", &models); err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack)
	for _, m := range models {
		fmt.Print(m.ID)
		if m.Alias != "" {
			gray.Printf("  (%s)", m.Alias)
		}
		if m.DisplayName != "" {
			gray.Printf("  %s", m.DisplayName)
		}
		fmt.Println()
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: parleyctl export <id>")
	}

	url := fmt.Sprintf("http://%s/api/conversations/%s/export?format=markdown", addr(), args[0])
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	_, err = io.Copy(os.Stdout, resp.Body)
	return err
}
