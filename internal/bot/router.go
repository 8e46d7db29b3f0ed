// Package bot wires the Telegram command surface: self-service
// subscription management plus admin-only actions on behalf of named
// chats and channels.
package bot

import (
	"context"
	"errors"
	"fmt"

	"blogbot/internal/admins"
	"blogbot/internal/chat"
	"blogbot/internal/feed"
	"blogbot/pkg/logx"
)

// ErrNotAuthorized reports a caller missing from the admin allow-list.
var ErrNotAuthorized = errors.New("not authorized")

const (
	helpText = `Commands:
/start [target] — subscribe to blog updates
/stop [target] — unsubscribe
/check [target] — show whether you're subscribed
/latest — fetch the latest blog post
/about — about this bot
/help — this message

[target] names another chat (@channel or numeric ID) and requires admin rights.`

	aboutText = "Hi, I relay new posts from the department blog to subscribed chats and channels.\n" +
		"Subscribe with /start, leave with /stop."

	rejectionText = "You don't have admin privileges, so you can't manage subscriptions for other chats."
)

// Store is the subscriber set as the router sees it.
type Store interface {
	Add(ctx context.Context, id chat.ID) error
	Remove(ctx context.Context, id chat.ID) error
	Contains(ctx context.Context, id chat.ID) bool
}

// Gateway fetches the newest feed entry for on-demand commands.
type Gateway interface {
	Latest(ctx context.Context) (feed.Item, error)
}

// Sender delivers messages; replies and admin actions may address a chat
// other than the caller's.
type Sender interface {
	Send(ctx context.Context, id chat.ID, text string, html bool) error
}

// Caller identifies who issued a command and from where.
type Caller struct {
	Chat     chat.ID
	Username string
}

// Router implements the command semantics. Transport glue (telebot
// handlers) stays in telegram.go; everything here is plain and testable.
type Router struct {
	store   Store
	gateway Gateway
	sender  Sender
	admins  *admins.List
	log     logx.Logger
}

func NewRouter(store Store, gw Gateway, sender Sender, adm *admins.List, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{store: store, gateway: gw, sender: sender, admins: adm, log: log}
}

// resolveTarget picks the chat a command acts on. An explicit target is an
// administrative action and must pass the allow-list; failing the check
// sends the rejection to the caller and returns ErrNotAuthorized before
// any mutation.
func (r *Router) resolveTarget(ctx context.Context, caller Caller, targetArg string) (chat.ID, error) {
	if targetArg == "" {
		return caller.Chat, nil
	}
	target, err := chat.Parse(targetArg)
	if err != nil {
		_ = r.sender.Send(ctx, caller.Chat, err.Error(), false)
		return chat.ID{}, err
	}
	if !r.admins.Allowed(caller.Username) {
		_ = r.sender.Send(ctx, caller.Chat, rejectionText, false)
		r.log.Warn("admin command rejected",
			logx.String("user", caller.Username),
			logx.String("target", target.String()))
		return chat.ID{}, fmt.Errorf("%w: %s", ErrNotAuthorized, caller.Username)
	}
	return target, nil
}

// Start subscribes the target chat and sends it the current latest post.
func (r *Router) Start(ctx context.Context, caller Caller, targetArg string) error {
	target, err := r.resolveTarget(ctx, caller, targetArg)
	if err != nil {
		return err
	}
	if err := r.store.Add(ctx, target); err != nil {
		_ = r.sender.Send(ctx, caller.Chat, "Unable to subscribe right now, please try again later.", false)
		return err
	}
	if err := r.sender.Send(ctx, target, "You are now subscribed to the blog. The latest post is:", false); err != nil {
		return err
	}
	item, err := r.gateway.Latest(ctx)
	if err != nil {
		return r.sender.Send(ctx, target, "Fetching the latest post failed: "+err.Error(), false)
	}
	return r.sender.Send(ctx, target, feed.FormatPost(item), true)
}

// Stop unsubscribes the target chat.
func (r *Router) Stop(ctx context.Context, caller Caller, targetArg string) error {
	target, err := r.resolveTarget(ctx, caller, targetArg)
	if err != nil {
		return err
	}
	if err := r.store.Remove(ctx, target); err != nil {
		_ = r.sender.Send(ctx, caller.Chat, "Unable to unsubscribe right now, please try again later.", false)
		return err
	}
	return r.sender.Send(ctx, target, "You are now unsubscribed from the blog.", false)
}

// Check reports the target's subscription status to the caller.
func (r *Router) Check(ctx context.Context, caller Caller, targetArg string) error {
	target, err := r.resolveTarget(ctx, caller, targetArg)
	if err != nil {
		return err
	}
	subject := "You're"
	if target != caller.Chat {
		subject = target.String() + " is"
	}
	var reply string
	if r.store.Contains(ctx, target) {
		reply = subject + " currently subscribed to the blog. Enter /stop to unsubscribe."
	} else {
		reply = subject + " currently not subscribed to the blog. Enter /start to subscribe."
	}
	return r.sender.Send(ctx, caller.Chat, reply, false)
}

// Latest fetches the newest post on demand and replies to the caller.
// Fetch errors are user-visible.
func (r *Router) Latest(ctx context.Context, caller Caller) error {
	item, err := r.gateway.Latest(ctx)
	if err != nil {
		return r.sender.Send(ctx, caller.Chat, "Fetching the latest post failed: "+err.Error(), false)
	}
	return r.sender.Send(ctx, caller.Chat, feed.FormatPost(item), true)
}

// About replies with the static about text.
func (r *Router) About(ctx context.Context, caller Caller) error {
	return r.sender.Send(ctx, caller.Chat, aboutText, false)
}

// Help replies with the command overview.
func (r *Router) Help(ctx context.Context, caller Caller) error {
	return r.sender.Send(ctx, caller.Chat, helpText, false)
}
