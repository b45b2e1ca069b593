// Package urlresolver joins possibly-relative URLs against a base URL.
//
// The parser is deliberately permissive: nothing is validated, and inputs
// without some of the components simply reassemble from whatever is present.
package urlresolver

import (
	"regexp"
	"strings"
)

// component indexes, in precedence order
const (
	scheme = iota
	user
	password
	host
	port
	path
	query
	fragment
	numComponents
)

var schemeRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*:`)

type parts struct {
	values [numComponents]string
	has    [numComponents]bool
	// opaque is set for URLs like "data:..." or "mailto:..." which have a
	// scheme but no authority. They are never joined.
	opaque bool
}

func (p *parts) set(c int, v string) {
	p.values[c] = v
	p.has[c] = true
}

func (p *parts) unset(c int) {
	p.values[c] = ""
	p.has[c] = false
}

func parse(raw string) parts {
	var p parts
	rest := raw
	if before, after, found := strings.Cut(rest, "#"); found {
		p.set(fragment, after)
		rest = before
	}
	if before, after, found := strings.Cut(rest, "?"); found {
		p.set(query, after)
		rest = before
	}
	if m := schemeRe.FindString(rest); m != "" {
		p.set(scheme, m[:len(m)-1])
		rest = rest[len(m):]
		if !strings.HasPrefix(rest, "//") {
			p.opaque = true
			p.set(path, rest)
			return p
		}
	}
	if strings.HasPrefix(rest, "//") {
		rest = rest[2:]
		authority := rest
		if i := strings.Index(rest, "/"); i >= 0 {
			authority = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}
		if userinfo, hostport, found := strings.Cut(authority, "@"); found {
			if u, pw, hasPassword := strings.Cut(userinfo, ":"); hasPassword {
				p.set(user, u)
				p.set(password, pw)
			} else {
				p.set(user, userinfo)
			}
			authority = hostport
		}
		// keep IPv6 literals intact: the port separator is the last colon after "]"
		if i := strings.LastIndex(authority, ":"); i >= 0 && i > strings.LastIndex(authority, "]") {
			p.set(port, authority[i+1:])
			authority = authority[:i]
		}
		p.set(host, authority)
	}
	if rest != "" {
		p.set(path, rest)
	}
	return p
}

func (p parts) String() string {
	var b strings.Builder
	if p.has[scheme] {
		b.WriteString(p.values[scheme])
		if p.opaque {
			b.WriteString(":")
		} else {
			b.WriteString("://")
		}
	} else if p.has[host] {
		b.WriteString("//")
	}
	if p.has[user] {
		b.WriteString(p.values[user])
		if p.has[password] {
			b.WriteString(":")
			b.WriteString(p.values[password])
		}
		b.WriteString("@")
	}
	if p.has[host] {
		b.WriteString(p.values[host])
	}
	if p.has[port] {
		b.WriteString(":")
		b.WriteString(p.values[port])
	}
	if p.has[path] {
		b.WriteString(p.values[path])
	}
	if p.has[query] {
		b.WriteString("?")
		b.WriteString(p.values[query])
	}
	if p.has[fragment] {
		b.WriteString("#")
		b.WriteString(p.values[fragment])
	}
	return b.String()
}

// Join resolves reference against base.
//
// Components are walked in the order scheme, user, password, host, port,
// path, query, fragment. Base components are kept until the first component
// supplied by the reference; from then on, base components the reference
// does not supply are dropped. A relative reference path replaces the last
// segment of the base path and the result is simplified with SimplifyPath.
//
// References with a scheme but no authority (data:, mailto:, ...) are
// returned as they are.
func Join(reference, base string) string {
	ref := parse(reference)
	if ref.opaque {
		return reference
	}
	out := parse(base)
	out.opaque = false

	found := false
	for c := 0; c < numComponents; c++ {
		switch {
		case ref.has[c]:
			v := ref.values[c]
			if c == path && !found && !strings.HasPrefix(v, "/") {
				v = SimplifyPath(dir(out.values[path]) + v)
			}
			out.set(c, v)
			found = true
		case found:
			out.unset(c)
		}
	}
	return out.String()
}

// dir returns p up to and including its last separator.
func dir(p string) string {
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[:i+1]
	}
	return ""
}

// Origin returns the scheme and authority of u, e.g. "https://example.com:8080".
// It returns an empty string if u has no host.
func Origin(u string) string {
	p := parse(u)
	if !p.has[host] || p.opaque {
		return ""
	}
	for _, c := range []int{path, query, fragment} {
		p.unset(c)
	}
	return p.String()
}

// SimplifyPath removes "/./" and "/segment/../" sequences from p until none
// remain. Leading and trailing separators are left as they are.
func SimplifyPath(p string) string {
	for {
		prev := p
		p = strings.ReplaceAll(p, "/./", "/")
		p = removeParentSegment(p)
		if p == prev {
			return p
		}
	}
}

// removeParentSegment removes the first "/segment/../" from p, where segment
// is neither "." nor "..".
func removeParentSegment(p string) string {
	for from := 0; from < len(p); {
		i := strings.Index(p[from:], "/../")
		if i < 0 {
			return p
		}
		j := from + i
		k := strings.LastIndex(p[:j], "/")
		if k >= 0 {
			if seg := p[k+1 : j]; seg != "" && seg != "." && seg != ".." {
				return p[:k] + p[j+3:]
			}
		}
		from = j + 1
	}
	return p
}
