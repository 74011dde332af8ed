package render

import (
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type align int

const (
	alignLeft align = iota
	alignCenter
)

type run struct {
	text string
	bold bool
}

// block is one paragraph of styled text, or a horizontal rule.
type block struct {
	runs      []run
	size      float64
	align     align
	marginTop int
	rule      bool
}

const (
	bodySize   = 11
	lineHeight = 1.4
)

// compose lays out the whole letter: header, date, recipient, body, signature.
func compose(lh Letterhead, to Recipient, markup string, date time.Time) []block {
	var doc []block
	doc = append(doc,
		block{runs: []run{{lh.Name, true}}, size: 14, align: alignCenter},
		block{runs: []run{{lh.Qualifications, false}}, size: 10, align: alignCenter},
		block{runs: []run{{lh.Contact, false}}, size: 9, align: alignCenter},
		block{rule: true, marginTop: 8},
		block{runs: []run{{date.Format("2 January 2006"), false}}, size: bodySize, marginTop: 10},
	)

	name := to.Name
	if name == "" {
		name = "Patient"
	}
	address := to.Address
	if strings.TrimSpace(address) == "" {
		address = DefaultAddress
	}
	doc = append(doc, block{runs: []run{{"Ms " + name, false}}, size: bodySize, marginTop: 10})
	doc = append(doc, block{runs: []run{{to.Email, false}}, size: bodySize})
	for _, l := range strings.Split(address, "\n") {
		doc = append(doc, block{runs: []run{{l, false}}, size: bodySize})
	}

	body := parseMarkup(markup)
	if len(body) > 0 {
		body[0].marginTop = 10
	}
	doc = append(doc, body...)

	doc = append(doc, block{runs: []run{{lh.Closing, false}}, size: bodySize, marginTop: 20})
	for i, l := range lh.Signature {
		b := block{runs: []run{{l, i == 0}}, size: bodySize}
		if i == 0 {
			b.marginTop = bodySize * 2
		}
		doc = append(doc, b)
	}
	return doc
}

var breakAtoms = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.Ul: true, atom.Ol: true, atom.Blockquote: true, atom.Tr: true,
}

var boldAtoms = map[atom.Atom]bool{
	atom.B: true, atom.Strong: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
}

// parseMarkup flattens a rich-text fragment into paragraphs of bold/regular
// runs. Whitespace collapses as in a browser.
func parseMarkup(markup string) []block {
	nodes, err := html.ParseFragment(strings.NewReader(markup), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return []block{{runs: []run{{markup, false}}, size: bodySize}}
	}

	var (
		out   []block
		cur   []run
		bold  int
		space = true
	)
	flush := func(margin int) {
		if len(cur) > 0 {
			out = append(out, block{runs: cur, size: bodySize, marginTop: margin})
		}
		cur = nil
		space = true
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			text := collapse(n.Data, space)
			if text == "" {
				return
			}
			space = strings.HasSuffix(text, " ")
			cur = append(cur, run{text, bold > 0})
			return
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Head:
				return
			case atom.Br:
				flush(0)
				return
			}
		}
		isBreak := n.Type == html.ElementNode && breakAtoms[n.DataAtom]
		if isBreak {
			flush(6)
			if n.DataAtom == atom.Li {
				cur = append(cur, run{"• ", false})
			}
		}
		isBold := n.Type == html.ElementNode && boldAtoms[n.DataAtom]
		if isBold {
			bold++
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if isBold {
			bold--
		}
		if isBreak {
			flush(6)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	flush(6)

	for i := range out {
		trimBlock(&out[i])
	}
	return out
}

// collapse folds whitespace runs to one space, dropping a leading space when
// the previous text already ended in one.
func collapse(s string, afterSpace bool) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	var b strings.Builder
	prev := afterSpace
	for _, r := range s {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' || r == '\f' {
			if !prev {
				b.WriteByte(' ')
			}
			prev = true
			continue
		}
		b.WriteRune(r)
		prev = false
	}
	return b.String()
}

func trimBlock(b *block) {
	if len(b.runs) == 0 {
		return
	}
	b.runs[len(b.runs)-1].text = strings.TrimRight(b.runs[len(b.runs)-1].text, " ")
}
