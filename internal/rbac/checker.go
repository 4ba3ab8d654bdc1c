package rbac

import (
	"context"
	"sort"
	"strings"
)

// Checker answers permission questions for a role table. Patterns are exact
// names, "*" or a prefix ending in "*".
type Checker struct {
	exact    map[string]map[string]bool
	prefixes map[string][]string
	all      map[string]bool
	table    map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{
		exact:    map[string]map[string]bool{},
		prefixes: map[string][]string{},
		all:      map[string]bool{},
		table:    rp,
	}
	for role, perms := range rp {
		c.exact[role] = map[string]bool{}
		for _, p := range perms {
			switch {
			case p == "*":
				c.all[role] = true
			case strings.HasSuffix(p, "*"):
				c.prefixes[role] = append(c.prefixes[role], strings.TrimSuffix(p, "*"))
			default:
				c.exact[role][p] = true
			}
		}
	}
	return c
}

func (c *Checker) Has(role, perm string) bool {
	if c.all[role] || c.exact[role][perm] {
		return true
	}
	for _, pre := range c.prefixes[role] {
		if strings.HasPrefix(perm, pre) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return true
}

// Permissions lists the role's patterns, sorted.
func (c *Checker) Permissions(role string) []string {
	out := append([]string{}, c.table[role]...)
	sort.Strings(out)
	return out
}

type ctxKey struct{}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, role)
}

func RoleFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKey{}).(string)
	return s
}
