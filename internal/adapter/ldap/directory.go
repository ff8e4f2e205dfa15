// Package ldap implements the directory port against the institutional
// LDAP server.
package ldap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/ethicsdesk/ethicsdesk/internal/config"
	"github.com/ethicsdesk/ethicsdesk/internal/port/directory"
	"github.com/ethicsdesk/ethicsdesk/internal/resilience"
)

const (
	breakerMaxFailures = 5
	breakerTimeout     = 30 * time.Second
)

// Directory resolves portal users against LDAP. Connections are opened per
// call; the institutional server drops idle binds aggressively. A circuit
// breaker fails directory calls fast while the server is unreachable, so an
// LDAP outage does not stack up blocked portal requests.
type Directory struct {
	cfg     config.LDAP
	breaker *resilience.Breaker
}

// New creates an LDAP-backed directory.
func New(cfg config.LDAP) *Directory {
	return &Directory{
		cfg:     cfg,
		breaker: resilience.NewBreaker(breakerMaxFailures, breakerTimeout),
	}
}

func (d *Directory) dial(ctx context.Context) (*ldap.Conn, error) {
	conn, err := ldap.DialURL(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ldap dial %s: %w", d.cfg.URL, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	if d.cfg.BindDN != "" {
		if err := conn.Bind(d.cfg.BindDN, d.cfg.BindPassword); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ldap bind: %w", err)
		}
	}
	return conn, nil
}

// Lookup resolves a directory id (uid attribute) to an entry.
func (d *Directory) Lookup(ctx context.Context, id string) (*directory.Entry, error) {
	var entry *directory.Entry

	// An empty result is a successful round trip; only transport and bind
	// failures count against the breaker.
	err := d.breaker.Execute(func() error {
		conn, err := d.dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		req := ldap.NewSearchRequest(
			d.cfg.BaseDN,
			ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
			fmt.Sprintf("(uid=%s)", ldap.EscapeFilter(id)),
			[]string{"uid", "mail", "cn"},
			nil,
		)

		res, err := conn.Search(req)
		if err != nil {
			return fmt.Errorf("ldap search uid=%s: %w", id, err)
		}
		if len(res.Entries) > 0 {
			e := toEntry(res.Entries[0])
			entry = &e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("lookup %s: %w", id, directory.ErrUserNotFound)
	}
	return entry, nil
}

// Search finds entries whose name or mail contains the query.
func (d *Directory) Search(ctx context.Context, query string, limit int) ([]directory.Entry, error) {
	var entries []directory.Entry

	err := d.breaker.Execute(func() error {
		conn, err := d.dial(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		q := ldap.EscapeFilter(query)
		req := ldap.NewSearchRequest(
			d.cfg.BaseDN,
			ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, limit, 0, false,
			fmt.Sprintf("(|(cn=*%s*)(mail=*%s*))", q, q),
			[]string{"uid", "mail", "cn"},
			nil,
		)

		res, err := conn.Search(req)
		if err != nil {
			return fmt.Errorf("ldap search %q: %w", query, err)
		}

		entries = make([]directory.Entry, 0, len(res.Entries))
		for _, e := range res.Entries {
			entries = append(entries, toEntry(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func toEntry(e *ldap.Entry) directory.Entry {
	return directory.Entry{
		ID:    e.GetAttributeValue("uid"),
		Email: e.GetAttributeValue("mail"),
		Name:  e.GetAttributeValue("cn"),
	}
}
