package nfe

import (
	"strings"
	"sync"

	"github.com/beevik/etree"
)

// Namespace is the NF-e portal namespace. Every element lookup is qualified with it.
const Namespace = "http://www.portalfiscal.inf.br/nfe"

// node is a position in the document tree plus a label used in field issue paths.
//
// Paths are relative etree paths written without namespace filters:
//
//	ide/nNF        child steps
//	//det          any descendant
//	ICMS//vBC      descendant below a child
//	infNFe/@Id     attribute of the matched element
//
// Lookups never fail; a path that matches nothing yields ok=false.
type node struct {
	el *etree.Element
	at string
}

func (n node) valid() bool {
	return n.el != nil
}

// lookup returns the trimmed text (or attribute value) of the first match.
// Present but empty nodes count as absent.
func (n node) lookup(path string) (string, bool) {
	path, attr := splitAttr(path)
	el := n.find(path)
	if el == nil {
		return "", false
	}

	text := el.Text()
	if attr != "" {
		a := el.SelectAttr(attr)
		if a == nil {
			return "", false
		}
		text = a.Value
	}
	text = strings.TrimSpace(text)
	return text, text != ""
}

// first returns the first element matching path as a node labelled label
func (n node) first(path, label string) node {
	return node{el: n.find(path), at: n.child(label)}
}

// all returns every element matching path in document order
func (n node) all(path string) []*etree.Element {
	if n.el == nil {
		return nil
	}
	return n.el.FindElementsPath(compile(path))
}

func (n node) find(path string) *etree.Element {
	if n.el == nil {
		return nil
	}
	return n.el.FindElementPath(compile(path))
}

func (n node) child(label string) string {
	if n.at == "" {
		return label
	}
	if label == "" {
		return n.at
	}
	return n.at + "/" + label
}

var (
	nsFilter = "[namespace-uri()='" + Namespace + "']"
	compiled sync.Map // lookup path -> etree.Path
)

// compile turns a lookup path into an etree path relative to the current
// element, with every element step held to the NF-e namespace.
func compile(path string) etree.Path {
	if p, ok := compiled.Load(path); ok {
		return p.(etree.Path)
	}

	steps := strings.Split(path, "/")
	for i, step := range steps {
		if step != "" && step != "." {
			steps[i] = step + nsFilter
		}
	}
	rel := strings.Join(steps, "/")
	switch {
	case rel == "":
		rel = "."
	case strings.HasPrefix(rel, "/"):
		rel = "." + rel
	default:
		rel = "./" + rel
	}

	p := etree.MustCompilePath(rel)
	compiled.Store(path, p)
	return p
}

func isNFe(el *etree.Element, local string) bool {
	return el.Tag == local && el.NamespaceURI() == Namespace
}

func splitAttr(path string) (string, string) {
	i := strings.LastIndex(path, "@")
	if i < 0 {
		return path, ""
	}
	return strings.TrimSuffix(path[:i], "/"), path[i+1:]
}
