package client

import (
	"context"
	"net/url"
)

// Route declares the access rules of a navigation target.
type Route struct {
	// RequiresAuth admits only signed-in users.
	RequiresAuth bool
	// RequiresVerified additionally demands a verified account. It implies
	// RequiresAuth.
	RequiresVerified bool
	// GuestOnly turns signed-in users away, e.g. from the login form.
	GuestOnly bool
}

// Decision is the outcome of a guard check. When Allow is false, Redirect
// names where to send the visitor instead and Message optionally explains
// why.
type Decision struct {
	Allow    bool
	Redirect string
	Message  string
}

// Guard gates route entry on session state. It never returns an error: a
// session that failed to restore is treated as signed out rather than
// blocking navigation.
type Guard struct {
	// LoginPath receives unauthenticated visitors, with the attempted path
	// preserved in a redirect query parameter.
	LoginPath string
	// DashboardPath receives visitors turned away from verified-only or
	// guest-only routes.
	DashboardPath string

	session *Session
}

// NewGuard builds a guard over the session with the default paths.
func NewGuard(session *Session) *Guard {
	return &Guard{
		LoginPath:     "/login",
		DashboardPath: "/dashboard",
		session:       session,
	}
}

// Check evaluates whether the visitor may enter the route at path. The
// session is initialized first if that has not happened yet, then the rules
// run in a fixed order: authentication, verification, guest-only.
func (g *Guard) Check(ctx context.Context, path string, route Route) Decision {
	g.session.Initialize(ctx)

	authed := g.session.Authenticated()

	if (route.RequiresAuth || route.RequiresVerified) && !authed {
		return Decision{Redirect: g.loginRedirect(path)}
	}
	if route.RequiresVerified && !g.session.CanSubmit() {
		return Decision{
			Redirect: g.DashboardPath,
			Message:  "Verify your email or link your ORCID iD before submitting.",
		}
	}
	if route.GuestOnly && authed {
		return Decision{Redirect: g.DashboardPath}
	}
	return Decision{Allow: true}
}

func (g *Guard) loginRedirect(path string) string {
	if path == "" {
		return g.LoginPath
	}
	return g.LoginPath + "?redirect=" + url.QueryEscape(path)
}
