package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/hive-corporation/nightwatch/internal/core/ports"
)

// Hub fans one batch of findings out to every configured channel. Batches of
// GroupThreshold or more items for one parent collapse into the app's group
// variant on chat, room and mail; ticketing and the case manager always work
// per item.
type Hub struct {
	watcherURL string

	chat        ports.ChatNotifier
	room        ports.RoomNotifier
	mail        ports.MailNotifier
	subscribers ports.SubscriberRepository
	ticketing   *Ticketing

	logger *zap.SugaredLogger
}

func NewHub(
	watcherURL string,
	chat ports.ChatNotifier,
	room ports.RoomNotifier,
	mail ports.MailNotifier,
	subscribers ports.SubscriberRepository,
	ticketing *Ticketing,
	logger *zap.SugaredLogger,
) *Hub {
	return &Hub{
		watcherURL:  watcherURL,
		chat:        chat,
		room:        room,
		mail:        mail,
		subscribers: subscribers,
		ticketing:   ticketing,
		logger:      logger.Named("hub"),
	}
}

// Notify dispatches the batch. parent labels the shared origin (keyword or
// watched domain) used by the grouped variant; it may be empty for apps
// without one. Notify never returns an error: each channel failure is logged
// and counted, and the remaining channels still run.
func (h *Hub) Notify(ctx context.Context, app App, parent string, items []Item) {
	if len(items) == 0 {
		return
	}

	groupApp, hasGroup := GroupVariant(app)
	grouped := hasGroup && len(items) >= GroupThreshold
	if grouped {
		recordGrouped(app)
		h.logger.Infow("grouping notification batch",
			"app", app, "parent", parent, "items", len(items))
	}

	opts := h.subscriberOptIns(ctx, app)
	if opts.chat {
		h.dispatchChat(ctx, app, groupApp, parent, items, grouped)
	}
	if opts.room {
		h.dispatchRoom(ctx, app, groupApp, parent, items, grouped)
	}
	if len(opts.mailTo) > 0 {
		h.dispatchMail(ctx, app, groupApp, parent, items, grouped, opts.mailTo)
	}

	if h.ticketing != nil && opts.ticket {
		for _, item := range items {
			h.ticketing.ProcessTicket(ctx, app, item)
			h.ticketing.ProcessCase(ctx, app, item)
		}
	}
}

// channelOptIns summarises the subscriber preferences of one source: a
// channel only dispatches when at least one subscriber opted in.
type channelOptIns struct {
	chat   bool
	room   bool
	ticket bool
	mailTo []string
}

// subscriberOptIns reads the subscriber set for the app's base source. A hub
// wired without a subscriber store keeps every channel open.
func (h *Hub) subscriberOptIns(ctx context.Context, app App) channelOptIns {
	if h.subscribers == nil {
		return channelOptIns{chat: true, room: true, ticket: true}
	}
	subs, err := h.subscribers.ListSubscribers(ctx, SubscriberSource(app))
	if err != nil {
		h.logger.Errorw("subscriber lookup failed", "app", app, "error", err)
		return channelOptIns{}
	}
	var opts channelOptIns
	for _, s := range subs {
		opts.chat = opts.chat || s.Slack
		opts.room = opts.room || s.Citadel
		opts.ticket = opts.ticket || s.TheHive
		if s.EmailOn && s.Email != "" {
			opts.mailTo = append(opts.mailTo, s.Email)
		}
	}
	return opts
}

func (h *Hub) dispatchChat(ctx context.Context, app, groupApp App, parent string, items []Item, grouped bool) {
	if h.chat == nil || !h.chat.Enabled() {
		return
	}
	if grouped {
		h.postChat(ctx, groupApp, RenderGroup(groupApp, parent, len(items), h.watcherURL))
		return
	}
	for _, item := range items {
		h.postChat(ctx, app, Render(app, item, h.watcherURL))
	}
}

func (h *Hub) postChat(ctx context.Context, app App, text string) {
	if err := h.chat.PostMessage(ctx, string(app), text); err != nil {
		recordError(app, "chat")
		h.logger.Errorw("chat dispatch failed", "app", app, "error", err)
		return
	}
	recordSent(app, "chat")
}

func (h *Hub) dispatchRoom(ctx context.Context, app, groupApp App, parent string, items []Item, grouped bool) {
	if h.room == nil || !h.room.Enabled() {
		return
	}
	if grouped {
		plain := RenderGroup(groupApp, parent, len(items), h.watcherURL)
		html := RenderGroupHTML(groupApp, parent, len(items), h.watcherURL)
		h.postRoom(ctx, groupApp, plain, html)
		return
	}
	for _, item := range items {
		h.postRoom(ctx, app, Render(app, item, h.watcherURL), RenderHTML(app, item, h.watcherURL))
	}
}

func (h *Hub) postRoom(ctx context.Context, app App, plain, html string) {
	if err := h.room.PostHTML(ctx, string(app), plain, html); err != nil {
		recordError(app, "room")
		h.logger.Errorw("room dispatch failed", "app", app, "error", err)
		return
	}
	recordSent(app, "room")
}

func (h *Hub) dispatchMail(ctx context.Context, app, groupApp App, parent string, items []Item, grouped bool, to []string) {
	if h.mail == nil || !h.mail.Enabled() {
		return
	}

	if grouped {
		body := RenderGroupHTML(groupApp, parent, len(items), h.watcherURL)
		h.sendMail(ctx, groupApp, Subject(groupApp), body, to)
		return
	}
	for _, item := range items {
		h.sendMail(ctx, app, Subject(app), RenderHTML(app, item, h.watcherURL), to)
	}
}

func (h *Hub) sendMail(ctx context.Context, app App, subject, body string, to []string) {
	if err := h.mail.SendHTML(ctx, string(app), subject, body, to); err != nil {
		recordError(app, "email")
		h.logger.Errorw("mail dispatch failed", "app", app, "error", err)
		return
	}
	recordSent(app, "email")
}
