package chatview

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

func element(a atom.Atom, class string) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		Data:     a.String(),
		DataAtom: a,
		Attr:     []html.Attribute{{Key: "class", Val: class}},
	}
}

// textElement builds <div class=...>text</div>. Text goes in a text node,
// so the renderer escapes it.
func textElement(class, text string) *html.Node {
	n := element(atom.Div, class)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func child(n *html.Node, class string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && hasClass(c, class) {
			return c
		}
	}
	return nil
}

func childText(n *html.Node, class string) string {
	c := child(n, class)
	if c == nil || c.FirstChild == nil {
		return ""
	}
	return c.FirstChild.Data
}

func setText(n *html.Node, class, text string) {
	c := child(n, class)
	if c == nil {
		n.AppendChild(textElement(class, text))
		return
	}
	for t := c.FirstChild; t != nil; t = c.FirstChild {
		c.RemoveChild(t)
	}
	c.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}
