package server

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/koustreak/hydrahub/internal/errs"
)

// dateLayouts are tried in order for date query parameters.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// params reads query parameters and collects every problem as an issue
// so a request is rejected once, with all of them.
type params struct {
	values url.Values
	issues []errs.Issue
}

// queryParams starts parsing r's query string. Parameters not in allowed
// are reported as issues.
func queryParams(r *http.Request, allowed ...string) *params {
	p := &params{values: r.URL.Query()}

	known := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		known[name] = true
	}
	var unknown []string
	for name := range p.values {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	for _, name := range unknown {
		p.add(name, "unrecognized parameter")
	}
	return p
}

func (p *params) add(field, msg string) {
	p.issues = append(p.issues, errs.Issue{Field: field, Message: msg})
}

func (p *params) str(name string) string {
	return p.values.Get(name)
}

// boolean treats 1, true, yes and on as true and any other value as
// false. An absent parameter is def.
func (p *params) boolean(name string, def bool) bool {
	v, ok := p.values[name]
	if !ok || len(v) == 0 {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v[0])) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// list splits a comma separated parameter, dropping blank items.
func (p *params) list(name string) []string {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// nonNegative parses an optional integer >= 0.
func (p *params) nonNegative(name string) *int64 {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		p.add(name, "must be an integer")
		return nil
	}
	if n < 0 {
		p.add(name, "must be >= 0")
		return nil
	}
	return &n
}

// positive parses an optional integer in [1, max]. Absent is zero.
func (p *params) positive(name string, max int) int {
	raw := p.str(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.add(name, "must be an integer")
		return 0
	}
	if n <= 0 {
		p.add(name, "must be a positive integer")
		return 0
	}
	if n > max {
		p.add(name, fmt.Sprintf("must be <= %d", max))
		return 0
	}
	return n
}

func (p *params) date(name string) *time.Time {
	raw := p.str(name)
	if raw == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	p.add(name, "must be a date")
	return nil
}

// oneOf checks an optional parameter against a fixed set of values.
func (p *params) oneOf(name string, allowed ...string) string {
	v := p.str(name)
	if v == "" {
		return ""
	}
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.add(name, "must be one of "+strings.Join(allowed, ", "))
	return ""
}

func (p *params) err() error {
	if len(p.issues) == 0 {
		return nil
	}
	return &errs.Error{Kind: errs.ErrKindInvalidInput, Message: "invalid query", Issues: p.issues}
}
