package doctags

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultTableTag = "otsl"
	DefaultTextTag  = "text"
)

// Parser converts DocTags markup into a Document. The zero value uses the
// default element names.
type Parser struct {
	TableTag string
	TextTag  string
}

// Parse parses markup with the default element names.
func Parse(markup string) (*Document, error) {
	return (&Parser{}).Parse(markup)
}

func (p *Parser) Parse(markup string) (*Document, error) {
	root, err := buildTree(markup)
	if err != nil {
		return nil, err
	}

	tableTag, textTag := p.TableTag, p.TextTag
	if tableTag == "" {
		tableTag = DefaultTableTag
	}
	if textTag == "" {
		textTag = DefaultTextTag
	}

	doc := &Document{
		Tables: []Table{},
		Texts:  []TextBlock{},
	}
	readMeta(root, doc)

	for _, el := range root.findAll(tableTag) {
		tbl, err := parseTable(el)
		if err != nil {
			return nil, err
		}
		doc.DroppedRows += tbl.DroppedRows
		if len(tbl.Rows) == 0 {
			doc.DroppedTables++
			continue
		}
		doc.Tables = append(doc.Tables, tbl)
	}

	for _, el := range root.findAll(textTag) {
		content := strings.TrimSpace(el.text.String())
		if content == "" {
			continue
		}
		box, err := parseBBoxAttr(el, true)
		if err != nil {
			return nil, err
		}
		doc.Texts = append(doc.Texts, TextBlock{BBox: *box, Content: content})
	}

	return doc, nil
}

func parseTable(el *element) (Table, error) {
	box, err := parseBBoxAttr(el, true)
	if err != nil {
		return Table{}, err
	}
	tbl := Table{BBox: *box, Headers: []string{}, Rows: []Row{}}

	if header := el.find("header"); header != nil {
		for _, c := range header.findAll("cell") {
			tbl.Headers = append(tbl.Headers, strings.TrimSpace(c.text.String()))
		}
		tbl.Headers = uniqueHeaders(tbl.Headers)
	}

	for _, rowEl := range el.findAll("row") {
		cellEls := rowEl.findAll("cell")
		if len(cellEls) != len(tbl.Headers) || len(cellEls) == 0 {
			tbl.DroppedRows++
			continue
		}
		row := Row{Cells: make([]string, 0, len(cellEls))}
		var union *BBox
		complete := true
		for _, c := range cellEls {
			row.Cells = append(row.Cells, strings.TrimSpace(c.text.String()))
			cb, err := parseBBoxAttr(c, false)
			if err != nil {
				return Table{}, err
			}
			switch {
			case cb == nil:
				complete = false
			case union == nil:
				union = cb
			default:
				u := union.Union(*cb)
				union = &u
			}
		}
		if complete {
			row.BBox = union
		}
		tbl.Rows = append(tbl.Rows, row)
	}
	return tbl, nil
}

// uniqueHeaders renames repeated header names to name_2, name_3, ... so
// every column keeps its own key in Records. A generated name never
// collides with a header that appears verbatim elsewhere in the row.
func uniqueHeaders(headers []string) []string {
	taken := make(map[string]bool, len(headers))
	for _, h := range headers {
		taken[h] = true
	}
	seen := make(map[string]bool, len(headers))
	out := make([]string, len(headers))
	for i, h := range headers {
		if !seen[h] {
			seen[h] = true
			out[i] = h
			continue
		}
		for n := 2; ; n++ {
			name := h + "_" + strconv.Itoa(n)
			if !taken[name] {
				taken[name] = true
				out[i] = name
				break
			}
		}
	}
	return out
}

func readMeta(root *element, doc *Document) {
	meta := root.find("document_meta")
	if meta == nil {
		return
	}
	if t := meta.find("title"); t != nil {
		doc.Title = strings.TrimSpace(t.text.String())
	}
	if pn := meta.find("page_num"); pn != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(pn.text.String())); err == nil && n > 0 {
			doc.Page = n
		}
	}
}

// parseBBoxAttr reads the bbox attribute of el. A missing attribute is an
// error when required and (nil, nil) otherwise.
func parseBBoxAttr(el *element, required bool) (*BBox, error) {
	v, ok := el.attr("bbox")
	if !ok && !required {
		return nil, nil
	}
	b, err := ParseBBox(v)
	if err != nil {
		var bErr *MalformedBoundingBoxError
		if errors.As(err, &bErr) {
			bErr.Element = el.name
		}
		return nil, err
	}
	return &b, nil
}

// ParseBBox parses "x1 y1 x2 y2". Inverted pairs are swapped so the result
// always satisfies X1 <= X2 and Y1 <= Y2.
func ParseBBox(s string) (BBox, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return BBox{}, &MalformedBoundingBoxError{
			Value:  s,
			Reason: fmt.Sprintf("expected 4 numbers, got %d", len(fields)),
		}
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return BBox{}, &MalformedBoundingBoxError{
				Value:  s,
				Reason: fmt.Sprintf("token %q is not a finite number", f),
			}
		}
		v[i] = n
	}
	b := BBox{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
	if b.X1 > b.X2 {
		b.X1, b.X2 = b.X2, b.X1
	}
	if b.Y1 > b.Y2 {
		b.Y1, b.Y2 = b.Y2, b.Y1
	}
	return b, nil
}

// element is a minimal DOM node. text accumulates all descendant character
// data in document order.
type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

func (e *element) attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// findAll returns every descendant named name in document order.
func (e *element) findAll(name string) []*element {
	var out []*element
	var walk func(*element)
	walk = func(n *element) {
		for _, c := range n.children {
			if c.name == name {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(e)
	return out
}

// find returns the first descendant named name, or nil.
func (e *element) find(name string) *element {
	for _, c := range e.children {
		if c.name == name {
			return c
		}
		if f := c.find(name); f != nil {
			return f
		}
	}
	return nil
}

// buildTree decodes markup into a synthetic root whose children are the
// top-level elements.
func buildTree(markup string) (*element, error) {
	dec := xml.NewDecoder(strings.NewReader(markup))
	root := &element{}
	stack := []*element{root}

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedMarkupError{Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: t.Copy().Attr}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, el)
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			for _, open := range stack[1:] {
				open.text.Write(t)
			}
		}
	}

	if len(stack) != 1 {
		return nil, &MalformedMarkupError{Err: fmt.Errorf("unclosed element <%s>", stack[len(stack)-1].name)}
	}
	if len(root.children) == 0 {
		return nil, &MalformedMarkupError{Err: errors.New("no root element")}
	}
	return root, nil
}
