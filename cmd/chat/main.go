package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"medchat/internal/chatui"
	"medchat/internal/chatview"
	"medchat/internal/client"
	"medchat/internal/config"
	"medchat/internal/logging"
	"medchat/internal/metrics"
	"medchat/internal/notify"
	"medchat/internal/session"
)

const usage = `commands:
  /login <username> <password>
  /open <user id> <name>     open a conversation and start polling it
  /close                     close the conversation
  /refresh                   fetch the open conversation now
  /convs                     list conversations
  /logs                      admin chat log
  /delivered <message id>    acknowledge a received message
  /logout
  /quit
anything else is sent to the open conversation`

func main() {
	envFile := flag.String("env", ".env", "path of the env file")
	dev := flag.Bool("dev", false, "console logging")
	flag.Parse()

	boot := logging.MustNew("warn", *dev)
	cfg := config.LoadClient(boot, *envFile)
	logger := logging.MustNew(cfg.LogLevel, *dev)
	defer func() { _ = logger.Sync() }()

	sess, err := session.Open(cfg.SessionPath, logger)
	if err != nil {
		logger.Fatal("opening session", zap.Error(err))
	}
	defer sess.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewClient(reg)
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, reg, logger)
	}

	out := &console{w: bufio.NewWriter(os.Stdout)}
	toasts := notify.NewToastManager(notify.WithLogger(logger), notify.OnChange(out.toasts))
	defer toasts.Close()

	var view *chatview.View
	view = chatview.New(chatview.OnChange(func() { out.messages(view.Snapshot()) }))

	transport := client.New(cfg.APIBaseURL, sess, client.WithLogger(logger), client.WithTimeout(cfg.RequestTimeout))
	chat := chatui.New(chatui.Config{
		Transport:     transport,
		Session:       sess,
		View:          view,
		Notifier:      toasts,
		Logger:        logger,
		Metrics:       m,
		PollInterval:  cfg.PollInterval,
		TypingTimeout: cfg.TypingTimeout,
	})
	defer chat.CloseConversation()

	if sess.IsAuthenticated() {
		out.printf("signed in as %s (%s)\n", sess.Username(), sess.Role().Label())
	} else {
		out.printf("not signed in; use /login\n")
	}
	out.printf("%s\n", usage)

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			chat.InputChanged(line)
			if err := chat.SendCurrentInput(ctx, line); err != nil && !errors.Is(err, chatui.ErrNoRecipient) {
				logger.Debug("send failed", zap.Error(err))
			}
			continue
		}
		if quit := run(ctx, line, transport, chat, out); quit {
			return
		}
	}
}

// run executes one slash command and reports whether to exit.
func run(ctx context.Context, line string, tr *client.Transport, chat *chatui.Chat, out *console) bool {
	args := strings.Fields(line)
	switch args[0] {
	case "/quit":
		return true
	case "/login":
		if len(args) != 3 {
			out.printf("usage: /login <username> <password>\n")
			return false
		}
		u, err := tr.Login(ctx, args[1], args[2])
		if err != nil {
			out.printf("login failed: %s\n", client.UserMessage(err))
			return false
		}
		out.printf("signed in as %s (%s)\n", u.Username, u.Role.Label())
	case "/logout":
		chat.CloseConversation()
		_ = tr.Logout(ctx)
		out.printf("signed out\n")
	case "/open":
		if len(args) < 2 {
			out.printf("usage: /open <user id> [name]\n")
			return false
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id <= 0 {
			out.printf("invalid user id %q\n", args[1])
			return false
		}
		name := args[1]
		if len(args) > 2 {
			name = strings.Join(args[2:], " ")
		}
		chat.OpenConversation(id, name)
		out.printf("%s\n", chat.Title())
	case "/close":
		chat.CloseConversation()
	case "/refresh":
		if err := chat.Refresh(ctx); err != nil {
			out.printf("refresh failed: %s\n", client.UserMessage(err))
		}
	case "/convs":
		convs, err := tr.Conversations(ctx)
		if err != nil {
			out.printf("%s\n", client.UserMessage(err))
			return false
		}
		if len(convs) == 0 {
			out.printf("no conversations\n")
		}
		for _, c := range convs {
			out.printf("%5d  %-16s %-13s %s\n", c.OtherUserID, c.OtherUsername, c.OtherRole.Label(), c.LastMessage)
		}
	case "/logs":
		logs, err := tr.ChatLogs(ctx)
		if err != nil {
			out.printf("%s\n", client.UserMessage(err))
			return false
		}
		for _, l := range logs {
			out.printf("%s  %s -> %s: %s\n", l.CreatedAt.Time().Format(time.DateTime), l.SenderName, l.ReceiverName, l.Body)
		}
	case "/delivered":
		if len(args) != 2 {
			out.printf("usage: /delivered <message id>\n")
			return false
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			out.printf("invalid message id %q\n", args[1])
			return false
		}
		if _, err := tr.MarkDelivered(ctx, id); err != nil {
			out.printf("%s\n", client.UserMessage(err))
		}
	default:
		out.printf("%s\n", usage)
	}
	return false
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics listener stopped", zap.Error(err))
	}
}

// console serializes terminal output from the input loop, the poller and
// toast timers.
type console struct {
	mu       sync.Mutex
	w        *bufio.Writer
	lastView string
	shown    map[string]bool
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
	c.w.Flush()
}

// messages redraws the list, skipping polls that changed nothing.
func (c *console) messages(entries []chatview.Entry) {
	var b strings.Builder
	if len(entries) == 0 {
		b.WriteString("  " + chatview.EmptyText + "\n")
	}
	for _, e := range entries {
		who := e.Sender
		if e.Own {
			who = "you"
		}
		fmt.Fprintf(&b, "  [%s] %s: %s", e.Meta, who, e.Body)
		if e.State == chatview.StateFailed || e.State == chatview.StatePending {
			fmt.Fprintf(&b, " (%s)", e.State)
		}
		b.WriteString("\n")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if b.String() == c.lastView {
		return
	}
	c.lastView = b.String()
	fmt.Fprintf(c.w, "----\n%s", c.lastView)
	c.w.Flush()
}

// toasts prints toasts the first time they become visible.
func (c *console) toasts(active []notify.Toast) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shown == nil {
		c.shown = map[string]bool{}
	}
	visible := make(map[string]bool, len(active))
	for _, t := range active {
		visible[t.ID] = true
		if !c.shown[t.ID] {
			fmt.Fprintf(c.w, "(%s) %s\n", t.Kind, t.Text)
		}
	}
	c.shown = visible
	c.w.Flush()
}
