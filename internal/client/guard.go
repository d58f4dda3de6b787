package client

import (
	"context"
	"errors"

	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// ProfileFetcher loads the profile of the current token holder.
type ProfileFetcher interface {
	WhoAmI(ctx context.Context) (model.Profile, error)
}

// Routes describes the views known to the guard. Every view other than
// LoginView and the Public ones requires a session.
type Routes struct {
	LoginView   string
	DefaultView string
	Public      []string
}

// Decision is the outcome of a navigation check. When Allow is false the
// caller goes to Redirect instead, or stays put if Redirect is empty.
type Decision struct {
	Allow    bool
	Redirect string
}

func allow() Decision { return Decision{Allow: true} }

func redirect(view string) Decision { return Decision{Redirect: view} }

// Guard decides whether navigation into a view may proceed.
type Guard struct {
	session  *Session
	profiles ProfileFetcher
	notifier Notifier
	routes   Routes
	public   map[string]struct{}
	logger   *logger.Logger
}

// NewGuard creates a Guard. notifier may be nil.
func NewGuard(session *Session, profiles ProfileFetcher, notifier Notifier, routes Routes, logger *logger.Logger) *Guard {
	public := make(map[string]struct{}, len(routes.Public))
	for _, view := range routes.Public {
		public[view] = struct{}{}
	}
	return &Guard{
		session:  session,
		profiles: profiles,
		notifier: notifier,
		routes:   routes,
		public:   public,
		logger:   logger,
	}
}

// RequiresAuth reports whether view needs a session.
func (g *Guard) RequiresAuth(view string) bool {
	if view == g.routes.LoginView {
		return false
	}
	_, ok := g.public[view]
	return !ok
}

// BeforeNavigate checks a navigation to view.
func (g *Guard) BeforeNavigate(ctx context.Context, view string) Decision {
	if view == g.routes.LoginView {
		if g.session.IsLoggedIn() {
			return redirect(g.routes.DefaultView)
		}
		return allow()
	}

	if !g.RequiresAuth(view) {
		return allow()
	}

	if !g.session.IsLoggedIn() {
		g.notify(NoticeLoginRequired)
		return redirect(g.routes.LoginView)
	}

	if _, ok := g.session.Profile(); ok {
		return allow()
	}

	generation := g.session.Generation()
	if _, err := g.profiles.WhoAmI(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return Decision{}
		}

		g.logger.Info("Guard: profile fetch failed, session reset",
			"view", view,
			"error", err.Error())
		if g.session.ResetIf(generation) {
			g.notify(NoticeSessionExpired)
		}
		return redirect(g.routes.LoginView)
	}

	return allow()
}

func (g *Guard) notify(message string) {
	if g.notifier != nil {
		g.notifier.Notify(message)
	}
}
