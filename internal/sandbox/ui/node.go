package ui

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Node is a resolved UI tree. A node with a Tag is an element; a node with
// neither Tag nor children is text; a node with only children is a fragment.
type Node struct {
	Tag      string `json:"tag,omitempty"`
	Attrs    []Attr `json:"attrs,omitempty"`
	Children []Node `json:"children,omitempty"`
	Text     string `json:"text,omitempty"`
	// InnerHTML is sanitized markup that replaces Children when set.
	InnerHTML string `json:"innerHTML,omitempty"`
}

type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
	// Bare renders the attribute without a value (disabled, checked).
	Bare bool `json:"bare,omitempty"`
}

func Text(s string) Node { return Node{Text: s} }

func Fragment(children ...Node) Node { return Node{Children: children} }

func (n Node) IsElement() bool { return n.Tag != "" }

// Attr returns the value of the named attribute.
func (n Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// TextContent concatenates all text below n.
func (n Node) TextContent() string {
	var b strings.Builder
	var walk func(Node)
	walk = func(n Node) {
		b.WriteString(n.Text)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

var (
	tagRe  = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	attrRe = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_.:-]*$`)
)

var droppedTags = map[string]bool{
	"script": true, "style": true, "iframe": true, "object": true,
	"embed": true, "frame": true, "frameset": true, "base": true,
	"link": true, "meta": true,
}

var renamedProps = map[string]string{
	"className": "class",
	"htmlFor":   "for",
	"tabIndex":  "tabindex",
	"readOnly":  "readonly",
	"maxLength": "maxlength",
	"colSpan":   "colspan",
	"rowSpan":   "rowspan",
	"srcSet":    "srcset",
	"autoFocus": "autofocus",
}

var skippedProps = map[string]bool{
	"children": true, "key": true, "ref": true,
	"dangerouslySetInnerHTML": true, "suppressHydrationWarning": true,
}

var urlAttrs = map[string]bool{"href": true, "src": true, "action": true, "formaction": true, "xlink:href": true, "poster": true}

// Element builds an intrinsic element from component props. Event handlers,
// unsafe tags and script URLs are dropped; dangerouslySetInnerHTML is
// sanitized. ok is false when the tag itself is not renderable.
func Element(tag string, props map[string]any, children []Node) (Node, bool) {
	if !tagRe.MatchString(tag) || droppedTags[tag] {
		return Node{}, false
	}
	n := Node{Tag: tag, Children: children}

	names := make([]string, 0, len(props))
	for k := range props {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := props[k]
		if skippedProps[k] || strings.HasPrefix(k, "on") && len(k) > 2 && k[2] >= 'A' && k[2] <= 'Z' {
			continue
		}
		name := k
		if r, ok := renamedProps[k]; ok {
			name = r
		}
		if !attrRe.MatchString(name) || strings.HasPrefix(strings.ToLower(name), "on") {
			continue
		}
		if name == "style" {
			if css := StyleString(v); css != "" {
				n.Attrs = append(n.Attrs, Attr{Name: "style", Value: css})
			}
			continue
		}
		switch t := v.(type) {
		case nil:
			continue
		case bool:
			if strings.HasPrefix(name, "aria-") || strings.HasPrefix(name, "data-") {
				n.Attrs = append(n.Attrs, Attr{Name: name, Value: strconv.FormatBool(t)})
			} else if t {
				n.Attrs = append(n.Attrs, Attr{Name: strings.ToLower(name), Bare: true})
			}
			continue
		case string, float64, float32, int, int64, int32:
			val := scalar(t)
			if urlAttrs[strings.ToLower(name)] && unsafeURL(val) {
				continue
			}
			n.Attrs = append(n.Attrs, Attr{Name: name, Value: val})
		default:
			// objects, arrays and functions have no attribute form
			continue
		}
	}

	if raw, ok := props["dangerouslySetInnerHTML"].(map[string]any); ok {
		if s, ok := raw["__html"].(string); ok {
			n.InnerHTML = SanitizeHTML(s)
			n.Children = nil
		}
	}
	return n, true
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}

func unsafeURL(v string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(v), ""))
	return strings.HasPrefix(s, "javascript:") || strings.HasPrefix(s, "vbscript:") ||
		(strings.HasPrefix(s, "data:") && !strings.HasPrefix(s, "data:image/"))
}

var unitless = map[string]bool{
	"opacity": true, "z-index": true, "font-weight": true, "line-height": true,
	"flex": true, "flex-grow": true, "flex-shrink": true, "order": true,
	"zoom": true, "grid-row": true, "grid-column": true,
}

// StyleString renders a React style object as inline CSS with sorted keys.
func StyleString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			prop := kebab(k)
			var val string
			switch x := t[k].(type) {
			case string:
				val = x
			case float64:
				val = scalar(x)
				if x != 0 && !unitless[prop] {
					val += "px"
				}
			case int64:
				val = scalar(x)
				if x != 0 && !unitless[prop] {
					val += "px"
				}
			default:
				continue
			}
			if strings.ContainsAny(val, ";{}<>") || strings.Contains(strings.ToLower(val), "expression(") {
				continue
			}
			parts = append(parts, prop+":"+val)
		}
		return strings.Join(parts, ";")
	default:
		return ""
	}
}

func kebab(s string) string {
	if strings.HasPrefix(s, "--") {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if strings.HasPrefix(out, "ms-") {
		out = "-" + out
	}
	return out
}
