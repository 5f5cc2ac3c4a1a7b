package ingest

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dshills/patentsearch/pkg/types"
)

// ErrWrongRecord is returned when a record's root element is not the expected tag
var ErrWrongRecord = errors.New("unexpected root element")

// SplitRecords scans r line by line and calls fn with the text of every
// <tag ...> ... </tag> record. USPTO bulk files concatenate many XML documents,
// so they cannot be decoded as one document. Invalid UTF-8 is dropped.
func SplitRecords(r io.Reader, tag string, fn func(record string) error) error {
	startPat := "<" + tag
	endPat := "</" + tag + ">"

	br := bufio.NewReaderSize(r, 1<<20)
	var buf strings.Builder
	inside := false

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return fmt.Errorf("failed to read records: %w", readErr)
		}
		if line != "" {
			line = strings.ToValidUTF8(line, "")

			if startsRecord(line, startPat) {
				inside = true
				buf.Reset()
				buf.WriteString(line)
			} else if inside {
				buf.WriteString(line)
			}

			if inside && strings.Contains(line, endPat) {
				inside = false
				if err := fn(buf.String()); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
	}
}

// startsRecord reports whether line opens the record element. "<tag" must not
// match a longer element name such as "<tag-extra".
func startsRecord(line, startPat string) bool {
	for rest := line; ; {
		i := strings.Index(rest, startPat)
		if i < 0 {
			return false
		}
		after := rest[i+len(startPat):]
		if after == "" || strings.ContainsRune(" \t\r\n>/", rune(after[0])) {
			return true
		}
		rest = after
	}
}

// node is a minimal element tree: text and child elements in document order
type node struct {
	name  string
	items []item
}

type item struct {
	text  string
	child *node
}

func parseTree(record string) (*node, error) {
	dec := xml.NewDecoder(strings.NewReader(record))
	dec.Entity = xml.HTMLEntity

	var root *node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.items = append(parent.items, item{child: n})
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.items = append(parent.items, item{text: string(t)})
			}
		}
	}
	if root == nil {
		return nil, errors.New("no root element")
	}
	return root, nil
}

// find returns the first descendant (preorder) matching the slash separated
// path, where the first segment may be at any depth and later segments are
// direct children.
func (n *node) find(path string) *node {
	segments := strings.Split(path, "/")
	var walk func(cur *node) *node
	walk = func(cur *node) *node {
		for _, it := range cur.items {
			if it.child == nil {
				continue
			}
			if it.child.name == segments[0] {
				if m := it.child.childPath(segments[1:]); m != nil {
					return m
				}
			}
			if m := walk(it.child); m != nil {
				return m
			}
		}
		return nil
	}
	return walk(n)
}

func (n *node) childPath(segments []string) *node {
	cur := n
	for _, seg := range segments {
		var next *node
		for _, it := range cur.items {
			if it.child != nil && it.child.name == seg {
				next = it.child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// texts appends every descendant text node in document order
func (n *node) texts(out []string) []string {
	for _, it := range n.items {
		if it.child != nil {
			out = it.child.texts(out)
			continue
		}
		out = append(out, it.text)
	}
	return out
}

// joinedText trims every text node and joins the non-empty ones with a space
func (n *node) joinedText() string {
	if n == nil {
		return ""
	}
	parts := n.texts(nil)
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}

// innerText concatenates every descendant text node and trims the result
func (n *node) innerText() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(strings.Join(n.texts(nil), ""))
}

// ParseRecord decodes one record and extracts the patent metadata
func ParseRecord(record, tag string) (*types.Patent, error) {
	root, err := parseTree(record)
	if err != nil {
		return nil, fmt.Errorf("malformed record: %w", err)
	}
	if root.name != tag {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongRecord, root.name, tag)
	}

	p := &types.Patent{DocType: types.DocTypeForTag(tag)}

	if ref := root.find("publication-reference/document-id"); ref != nil {
		country := ref.childPath([]string{"country"}).innerText()
		number := ref.childPath([]string{"doc-number"}).innerText()
		kind := ref.childPath([]string{"kind"}).innerText()
		p.DocID = strings.TrimSpace(country + number + kind)
	}

	p.Title = root.find("invention-title").innerText()
	p.Abstract = root.find("abstract").joinedText()
	p.Claims = root.find("claims").joinedText()
	p.Description = root.find("description").joinedText()

	return p, nil
}
