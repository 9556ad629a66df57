package metadata

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

func (d *Document) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	w := &xmlWriter{enc: enc}
	w.start(rootElement)
	for _, k := range adminKeys {
		v, _ := d.root.Get(k)
		w.node(k, v, nil)
	}
	for _, k := range d.root.Keys() {
		if isRootKey(k) {
			continue
		}
		v, _ := d.root.Get(k)
		w.node(k, v, nil)
	}

	images, _ := d.root.Get(KeyImageFiles)
	w.node(KeyImageFiles, images, imageFilesSkeleton)

	for _, p := range Provenances {
		w.start(infoElement, xml.Attr{Name: xml.Name{Local: typeAttr}, Value: string(p)})
		w.children(d.sections[p], sectionSkeleton)
		w.end(infoElement)
	}

	w.start(KeyChangeHistory)
	if node, ok := d.root.Get(KeyChangeHistory); ok {
		list, _ := node.(List)
		for _, item := range list {
			w.node(changeElement, item, nil)
		}
	}
	w.end(KeyChangeHistory)
	w.end(rootElement)

	if w.err != nil {
		return nil, w.err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// xmlWriter keeps the first encoder error so the layout code reads linearly.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err == nil {
		w.err = w.enc.EncodeToken(t)
	}
}

func (w *xmlWriter) start(name string, attrs ...xml.Attr) {
	w.token(xml.StartElement{Name: xml.Name{Local: name}, Attr: attrs})
}

func (w *xmlWriter) end(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

// node writes one element. A nil node renders the skeleton: an empty element,
// with empty children when the skeleton has any.
func (w *xmlWriter) node(name string, n Node, skel []skeleton) {
	switch v := n.(type) {
	case Leaf:
		w.start(name)
		w.token(xml.CharData(v))
		w.end(name)
	case List:
		w.start(name)
		for _, item := range v {
			w.node(termElement, item, nil)
		}
		w.end(name)
	case *Map:
		w.start(name)
		w.children(v, skel)
		w.end(name)
	default:
		w.start(name)
		for _, s := range skel {
			w.node(s.name, nil, s.children)
		}
		w.end(name)
	}
}

func (w *xmlWriter) children(m *Map, skel []skeleton) {
	seen := make(map[string]struct{}, len(skel))
	for _, s := range skel {
		seen[s.name] = struct{}{}
		v, _ := m.Get(s.name)
		w.node(s.name, v, s.children)
	}
	for _, k := range m.Keys() {
		if _, ok := seen[k]; ok {
			continue
		}
		v, _ := m.Get(k)
		w.node(k, v, nil)
	}
}

// element is the generic tree the decoder builds before interpretation.
type element struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []*element
}

func (e *element) attr(name string) string {
	for _, a := range e.attrs {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseElements(data []byte) (*element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*element
	var root *element
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: t.Copy().Attr}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			} else if root == nil {
				root = el
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}

func (d *Document) decode(data []byte) error {
	root, err := parseElements(data)
	if err != nil {
		return err
	}
	if root.name != rootElement {
		return fmt.Errorf("%w: root element %q, want %q", ErrMalformed, root.name, rootElement)
	}
	for _, child := range root.children {
		switch child.name {
		case infoElement:
			p := Provenance(child.attr(typeAttr))
			section, ok := d.sections[p]
			if !ok {
				d.logger.Warn("ignoring metadata section with unknown type", "type", string(p))
				continue
			}
			for _, field := range child.children {
				var node Node
				if field.name == KeyTypology {
					node = termsOf(field)
				} else {
					node = elementNode(field)
				}
				if node != nil {
					section.Set(field.name, node)
				}
			}
		case KeyChangeHistory:
			var history List
			for _, rec := range child.children {
				if node := elementNode(rec); node != nil {
					if m, ok := node.(*Map); ok {
						history = append(history, m)
					}
				}
			}
			if len(history) > 0 {
				d.root.Set(KeyChangeHistory, history)
			}
		default:
			if node := elementNode(child); node != nil {
				d.root.Set(child.name, node)
			}
		}
	}
	return nil
}

// elementNode interprets an element: children make a map, otherwise the text
// is a leaf. Empty results are nil.
func elementNode(e *element) Node {
	if len(e.children) == 0 {
		return cleanNode(Leaf(e.text.String()))
	}
	m := NewMap()
	for _, child := range e.children {
		if node := elementNode(child); node != nil {
			m.Set(child.name, node)
		}
	}
	if m.Len() == 0 {
		return nil
	}
	return m
}

func termsOf(e *element) Node {
	if len(e.children) == 0 {
		return cleanNode(List{Leaf(e.text.String())})
	}
	out := List{}
	for _, child := range e.children {
		term := Clean(child.text.String())
		if term != "" && !containsLeaf(out, term) {
			out = append(out, Leaf(term))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
