package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"blogbot/internal/chat"
	"blogbot/pkg/logx"
)

// Config configures the Telegram transport.
type Config struct {
	Token       string
	PollTimeout time.Duration
}

// Telegram owns the telebot instance. Constructing it performs the
// identity handshake with Telegram (getMe); failure there is a startup
// error. The bot's own username makes addressed commands like
// /start@thisbot match automatically.
type Telegram struct {
	bot *tele.Bot
	log logx.Logger

	mu     sync.Mutex
	runCtx context.Context
}

func NewTelegram(cfg Config, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	t := &Telegram{log: log}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		OnError: func(err error, c tele.Context) {
			fields := []logx.Field{logx.Err(err)}
			if c != nil && c.Chat() != nil {
				fields = append(fields, logx.Int64("chat_id", c.Chat().ID))
			}
			t.log.Warn("command failed", fields...)
		},
	})
	if err != nil {
		return nil, err
	}
	t.bot = b
	log.Info("telegram identity resolved", logx.String("username", b.Me.Username))
	return t, nil
}

// Register installs the command handlers. Each handler is independent;
// an error in one command is logged by telebot's OnError hook and never
// affects other updates.
func (t *Telegram) Register(r *Router) {
	targeted := func(h func(ctx context.Context, caller Caller, targetArg string) error) tele.HandlerFunc {
		return func(c tele.Context) error {
			return h(t.context(), callerOf(c), firstArg(c))
		}
	}
	plain := func(h func(ctx context.Context, caller Caller) error) tele.HandlerFunc {
		return func(c tele.Context) error {
			return h(t.context(), callerOf(c))
		}
	}

	t.bot.Handle("/start", targeted(r.Start))
	t.bot.Handle("/stop", targeted(r.Stop))
	t.bot.Handle("/check", targeted(r.Check))
	t.bot.Handle("/latest", plain(r.Latest))
	t.bot.Handle("/about", plain(r.About))
	t.bot.Handle("/help", plain(r.Help))
}

// context returns the run context set by Start. Handlers registered
// before Start fall back to Background; they only fire once polling runs.
func (t *Telegram) context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.runCtx != nil {
		return t.runCtx
	}
	return context.Background()
}

// Start runs the long-poll loop until ctx is cancelled. It blocks. The
// given context also bounds command handling, so in-flight store and
// fetch calls observe process shutdown.
func (t *Telegram) Start(ctx context.Context) {
	t.mu.Lock()
	t.runCtx = ctx
	t.mu.Unlock()
	go func() {
		<-ctx.Done()
		t.bot.Stop()
	}()
	t.log.Info("polling started")
	t.bot.Start()
	t.log.Info("polling stopped")
}

// Send implements the Sender interface used by the router and the
// broadcast loop.
func (t *Telegram) Send(ctx context.Context, id chat.ID, text string, html bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if html {
		_, err := t.bot.Send(recipientOf(id), text, &tele.SendOptions{ParseMode: tele.ModeHTML})
		return err
	}
	_, err := t.bot.Send(recipientOf(id), text)
	return err
}

// recipient is a raw chat_id value for the Telegram API: a numeric ID or
// an "@channel" username.
type recipient string

func (r recipient) Recipient() string { return string(r) }

func recipientOf(id chat.ID) tele.Recipient {
	if id.Kind() == chat.KindChannel {
		return recipient("@" + id.Username())
	}
	return recipient(strconv.FormatInt(id.ChatID(), 10))
}

func callerOf(c tele.Context) Caller {
	caller := Caller{}
	if ch := c.Chat(); ch != nil {
		caller.Chat = chat.Chat(ch.ID)
	}
	if u := c.Sender(); u != nil {
		caller.Username = u.Username
	}
	return caller
}

func firstArg(c tele.Context) string {
	args := c.Args()
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
