package mux

import "strings"

// segmentKind classifies a single segment of a path template.
type segmentKind uint8

const (
	segmentLiteral segmentKind = iota
	segmentParam
	segmentWildcard
)

// segment is one "/"-delimited element of a compiled template.
type segment struct {
	kind segmentKind
	// value is the literal text for literal segments and the parameter
	// name (without the leading colon) for parameter segments.
	value string
}

// pathPattern is a path template split into segments once at compile time.
//
// Templates support three segment forms:
//
//	literal   matched byte-for-byte, case-sensitive
//	:name     matches any single segment and binds it under name
//	*         matches any single segment; as the last segment of a mount
//	          point or middleware filter it also matches every deeper
//	          segment
type pathPattern struct {
	template string
	segments []segment
	// catchAll is set when the last segment is "*".
	catchAll bool
	// hasParams avoids the bind loop for templates without parameters.
	hasParams bool
}

// compilePattern splits tpl on "/" and classifies every segment.
func compilePattern(tpl string) pathPattern {
	parts := strings.Split(tpl, "/")
	p := pathPattern{
		template: tpl,
		segments: make([]segment, len(parts)),
	}

	for i, part := range parts {
		switch {
		case part == "*":
			p.segments[i] = segment{kind: segmentWildcard}
		case len(part) > 1 && part[0] == ':':
			p.segments[i] = segment{kind: segmentParam, value: part[1:]}
			p.hasParams = true
		default:
			p.segments[i] = segment{kind: segmentLiteral, value: part}
		}
	}

	p.catchAll = len(parts) > 1 && p.segments[len(parts)-1].kind == segmentWildcard

	return p
}

// splitPath splits a request path into the segment form used by match.
func splitPath(path string) []string {
	return strings.Split(path, "/")
}

// match reports whether the request segments satisfy the template. With
// prefix set, the template only has to match the leading segments of the
// request (mount points, middleware filters and "/*" handlers); otherwise
// the segment counts must agree.
//
// match never mutates anything, so a failed attempt cannot leave partial
// parameter bindings behind.
func (p *pathPattern) match(req []string, prefix bool) bool {
	n := len(p.segments)

	switch {
	case prefix && p.catchAll:
		// "/static/*" as a mount point also covers "/static" itself.
		n = p.literalDepth()
		if len(req) < n {
			return false
		}
	case prefix:
		if len(req) < n {
			return false
		}
	case len(req) != n:
		return false
	}

	for i := range p.segments[:n] {
		if s := &p.segments[i]; s.kind == segmentLiteral && s.value != req[i] {
			return false
		}
	}

	return true
}

// bind copies the values of parameter segments into params. Existing
// bindings with the same name are overwritten. bind must only be called
// after a successful match.
func (p *pathPattern) bind(req []string, params map[string]string) {
	if !p.hasParams {
		return
	}

	for i := range p.segments {
		if s := &p.segments[i]; s.kind == segmentParam {
			params[s.value] = req[i]
		}
	}
}

// paramNames returns the parameter names declared by the template in order.
func (p *pathPattern) paramNames() []string {
	var names []string
	for _, s := range p.segments {
		if s.kind == segmentParam {
			names = append(names, s.value)
		}
	}
	return names
}

// literalDepth returns the number of leading segments that a mount point
// consumes from a request path: every segment except a trailing catch-all.
func (p *pathPattern) literalDepth() int {
	if p.catchAll {
		return len(p.segments) - 1
	}
	return len(p.segments)
}
