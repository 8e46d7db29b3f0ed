package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"blogbot/internal/chat"
	"blogbot/internal/feed"
	"blogbot/pkg/logx"
)

// Gateway fetches the newest feed entry.
type Gateway interface {
	Latest(ctx context.Context) (feed.Item, error)
}

// Lister produces a snapshot of current subscribers.
type Lister interface {
	List(ctx context.Context) ([]chat.ID, error)
}

// Sender delivers one message to one chat.
type Sender interface {
	Send(ctx context.Context, id chat.ID, text string, html bool) error
}

// Config tunes the loop.
type Config struct {
	// Interval between cycles.
	Interval time.Duration
	// SendRatePerSec caps fan-out sends; 0 disables limiting.
	SendRatePerSec int
}

// Loop is the recurring broadcast task. One instance runs per process;
// cycles never overlap (an overrunning cycle causes the next tick to be
// skipped).
type Loop struct {
	cfg     Config
	gateway Gateway
	det     *Detector
	store   Lister
	sender  Sender
	log     logx.Logger

	limiter *rate.Limiter
	cron    *cron.Cron
	primeWG sync.WaitGroup
}

func NewLoop(cfg Config, gw Gateway, det *Detector, store Lister, sender Sender, log logx.Logger) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	var lim *rate.Limiter
	if cfg.SendRatePerSec > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.SendRatePerSec), cfg.SendRatePerSec)
	}
	return &Loop{
		cfg:     cfg,
		gateway: gw,
		det:     det,
		store:   store,
		sender:  sender,
		log:     log,
		limiter: lim,
	}
}

// Start schedules the loop and returns. Stop halts scheduling; an
// in-flight cycle runs to completion.
func (l *Loop) Start(ctx context.Context) {
	clog := cronLogger{l.log.With(logx.String("comp", "broadcast.cron"))}
	c := cron.New(cron.WithChain(
		cron.Recover(clog),
		cron.SkipIfStillRunning(clog),
	))
	id := c.Schedule(cron.Every(l.cfg.Interval), cron.FuncJob(func() {
		l.RunCycle(ctx)
	}))
	l.cron = c
	c.Start()
	// Prime the latch right away instead of waiting a full interval. Going
	// through the wrapped job keeps the no-overlap guarantee; cron's wait
	// group does not know this goroutine, so Stop waits on primeWG too.
	l.primeWG.Add(1)
	go func() {
		defer l.primeWG.Done()
		c.Entry(id).WrappedJob.Run()
	}()
	l.log.Info("broadcast loop started", logx.Duration("interval", l.cfg.Interval))
}

// Stop halts scheduling and waits for any in-flight cycle, including the
// startup prime cycle.
func (l *Loop) Stop() {
	if l.cron != nil {
		<-l.cron.Stop().Done()
	}
	l.primeWG.Wait()
}

// RunCycle executes one fetch→detect→fan-out pass. All failures are
// terminal for this cycle only.
func (l *Loop) RunCycle(ctx context.Context) {
	item, err := l.gateway.Latest(ctx)
	if err != nil {
		l.log.Error("feed fetch failed, skipping cycle", logx.Err(err))
		return
	}

	if !l.det.Observe(item) {
		l.log.Debug("no new post", logx.String("title", item.Title))
		return
	}

	text := feed.FormatPost(item)
	targets, err := l.store.List(ctx)
	if err != nil {
		l.log.Error("subscriber snapshot failed, skipping fan-out", logx.Err(err))
		return
	}

	start := time.Now()
	sent, failed := 0, 0
	for _, id := range targets {
		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				l.log.Warn("fan-out aborted", logx.Err(err))
				break
			}
		}
		if err := l.sender.Send(ctx, id, text, true); err != nil {
			failed++
			l.log.Warn("delivery failed", logx.String("chat", id.String()), logx.Err(err))
			continue
		}
		sent++
		l.log.Info("post delivered", logx.String("chat", id.String()))
	}

	fields := []logx.Field{
		logx.String("title", item.Title),
		logx.Int("sent", sent),
		logx.Int("failed", failed),
		logx.Duration("dur", time.Since(start)),
	}
	if failed > 0 {
		l.log.Warn("broadcast cycle finished with failures", fields...)
	} else {
		l.log.Info("broadcast cycle finished", fields...)
	}
}

// cronLogger adapts logx to cron.Logger.
type cronLogger struct{ log logx.Logger }

func (c cronLogger) Info(msg string, kv ...any) {
	c.log.Debug(msg, logx.Any("kv", kv))
}

func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.log.Error(msg, logx.Err(err), logx.Any("kv", kv))
}
