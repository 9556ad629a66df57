package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"strings"

	"imgpkg/internal/fileutil"
	"imgpkg/internal/logging"
)

// ErrInvalidKey reports a key that cannot be stored as an XML element name.
var ErrInvalidKey = errors.New("invalid metadata key")

// Document is the descriptive metadata of one package, mirrored to an XML
// file after every mutation unless the caller defers the flush.
type Document struct {
	path     string
	root     *Map
	sections map[Provenance]*Map
	onFlush  func(path string) error
	logger   *slog.Logger
}

// Option configures a Document at Create or Load time.
type Option func(*Document)

// WithLogger routes document logging through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Document) {
		d.logger = logging.NewComponentLogger(logger, "metadata")
	}
}

// WithFlushHook runs fn with the document path after every successful write.
func WithFlushHook(fn func(path string) error) Option {
	return func(d *Document) { d.onFlush = fn }
}

func newDocument(path string, opts []Option) *Document {
	d := &Document{
		path:     path,
		root:     NewMap(),
		sections: map[Provenance]*Map{Original: NewMap(), Curated: NewMap()},
		logger:   logging.NewComponentLogger(nil, "metadata"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Create writes a template document at path. An existing file is an error
// wrapping fs.ErrExist unless overwrite is set.
func Create(path string, overwrite bool, opts ...Option) (*Document, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, fmt.Errorf("create metadata %s: %w", path, fs.ErrExist)
		}
	}
	d := newDocument(path, opts)
	d.root = newTemplateRoot()
	for _, p := range Provenances {
		d.sections[p] = newTemplateSection(p)
	}
	if err := d.Flush(); err != nil {
		return nil, err
	}
	d.logger.Debug("metadata document created", logging.Path(path))
	return d, nil
}

// Load reads an existing document.
func Load(path string, opts ...Option) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	d := newDocument(path, opts)
	if err := d.decode(data); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return d, nil
}

// Path returns the backing file.
func (d *Document) Path() string { return d.path }

// SetOption adjusts a single mutation.
type SetOption func(*setOptions)

type setOptions struct {
	flush    bool
	sections []Provenance
}

// WithoutFlush defers the file write; call Flush afterwards.
func WithoutFlush() SetOption {
	return func(o *setOptions) { o.flush = false }
}

// InSections directs a section-level mutation at the given sections instead
// of the curated one.
func InSections(p ...Provenance) SetOption {
	return func(o *setOptions) { o.sections = slices.Clone(p) }
}

func resolveSetOptions(opts []SetOption) setOptions {
	o := setOptions{flush: true, sections: []Provenance{Curated}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// containers returns the maps a key path addresses.
func (d *Document) containers(head string, sections []Provenance) []*Map {
	if isRootKey(head) {
		return []*Map{d.root}
	}
	out := make([]*Map, 0, len(sections))
	for _, p := range sections {
		if m, ok := d.sections[p]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Get returns a copy of the value at key, looking in the curated section for
// descriptive keys.
func (d *Document) Get(key string) (Node, error) {
	return d.GetFrom(Curated, key)
}

// GetFrom returns a copy of the value at key in the given section.
func (d *Document) GetFrom(p Provenance, key string) (Node, error) {
	segments := SplitKey(key)
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	containers := d.containers(segments[0], []Provenance{p})
	if len(containers) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	node, ok := lookup(containers[0], segments)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return Clone(node), nil
}

// GetString returns the leaf text at key, or "" when absent or not a leaf.
func (d *Document) GetString(key string) string {
	node, err := d.Get(key)
	if err != nil {
		return ""
	}
	return Text(node)
}

func lookup(m *Map, segments []string) (Node, bool) {
	var cur Node = m
	for _, seg := range segments {
		cm, ok := cur.(*Map)
		if !ok {
			return nil, false
		}
		if cur, ok = cm.Get(seg); !ok {
			return nil, false
		}
	}
	return cur, true
}

// Set stores value at key. Hierarchical keys behave like SetHierarchy.
// Empty values remove the key.
func (d *Document) Set(key string, value Node, opts ...SetOption) error {
	return d.SetHierarchy(SplitKey(key), value, opts...)
}

// SetHierarchy stores value under the nested path, creating intermediate maps.
// An intermediate that already holds a non-map value is a conflict.
func (d *Document) SetHierarchy(path []string, value Node, opts ...SetOption) error {
	o := resolveSetOptions(opts)
	if len(path) == 0 {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for _, seg := range path {
		if !validName(seg) {
			return fmt.Errorf("%w: %q", ErrInvalidKey, seg)
		}
	}
	cleaned, err := shape(path, cleanNode(value))
	if err != nil {
		return err
	}

	containers := d.containers(path[0], o.sections)
	for _, m := range containers {
		if err := checkPath(m, path); err != nil {
			return err
		}
	}
	for _, m := range containers {
		if cleaned == nil {
			removePath(m, path)
			continue
		}
		setPath(m, path, Clone(cleaned))
	}
	if o.flush {
		return d.Flush()
	}
	return nil
}

// Remove deletes key. It reports ErrKeyNotFound when no targeted container
// held the key.
func (d *Document) Remove(key string, opts ...SetOption) error {
	o := resolveSetOptions(opts)
	path := SplitKey(key)
	if len(path) == 0 {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	removed := false
	for _, m := range d.containers(path[0], o.sections) {
		if removePath(m, path) {
			removed = true
		}
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	if o.flush {
		return d.Flush()
	}
	return nil
}

// AddKeyword appends term to the typology list unless already present.
func (d *Document) AddKeyword(term string, opts ...SetOption) error {
	o := resolveSetOptions(opts)
	term = Clean(term)
	if term == "" {
		return nil
	}
	changed := false
	for _, m := range d.containers(KeyTypology, o.sections) {
		list, _ := typologyOf(m)
		if containsLeaf(list, term) {
			continue
		}
		m.Set(KeyTypology, append(list, Leaf(term)))
		changed = true
	}
	if changed && o.flush {
		return d.Flush()
	}
	return nil
}

// Keywords returns the curated typology terms.
func (d *Document) Keywords() []string {
	list, _ := typologyOf(d.sections[Curated])
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, Text(item))
	}
	return out
}

func typologyOf(m *Map) (List, bool) {
	node, ok := m.Get(KeyTypology)
	if !ok {
		return nil, false
	}
	switch v := node.(type) {
	case List:
		return slices.Clone(v), true
	case Leaf:
		return List{v}, true
	}
	return nil, false
}

func containsLeaf(list List, term string) bool {
	for _, item := range list {
		if Text(item) == term {
			return true
		}
	}
	return false
}

// Change is one change-history record.
type Change struct {
	Date        string `json:"date" yaml:"date"`
	Agent       string `json:"agent" yaml:"agent"`
	Description string `json:"description" yaml:"description"`
}

// AppendChange adds a record to the change history and flushes.
func (d *Document) AppendChange(c Change) error {
	entry := NewMap()
	entry.Set("date", Leaf(c.Date))
	entry.Set("agent", Leaf(c.Agent))
	entry.Set("description", Leaf(c.Description))
	cleaned := cleanNode(entry)
	if cleaned == nil {
		return nil
	}
	var history List
	if node, ok := d.root.Get(KeyChangeHistory); ok {
		history, _ = node.(List)
	}
	d.root.Set(KeyChangeHistory, append(slices.Clone(history), cleaned))
	return d.Flush()
}

// Changes returns the change history in recorded order.
func (d *Document) Changes() []Change {
	node, ok := d.root.Get(KeyChangeHistory)
	if !ok {
		return nil
	}
	list, _ := node.(List)
	out := make([]Change, 0, len(list))
	for _, item := range list {
		m, ok := item.(*Map)
		if !ok {
			continue
		}
		date, _ := m.Get("date")
		agent, _ := m.Get("agent")
		desc, _ := m.Get("description")
		out = append(out, Change{Date: Text(date), Agent: Text(agent), Description: Text(desc)})
	}
	return out
}

// SetImageFile records the filename of a rendition role (original, master,
// preview, thumbnail).
func (d *Document) SetImageFile(role, name string, opts ...SetOption) error {
	return d.SetHierarchy([]string{KeyImageFiles, role}, Leaf(name), opts...)
}

// Section returns a copy of one provenance section.
func (d *Document) Section(p Provenance) *Map {
	return d.sections[p].Clone()
}

// Tree returns a copy of the whole document as one map: root keys, then the
// original and curated sections, then the change history.
func (d *Document) Tree() *Map {
	out := NewMap()
	for _, k := range d.orderedRootKeys() {
		if k == KeyChangeHistory {
			continue
		}
		v, _ := d.root.Get(k)
		out.Set(k, Clone(v))
	}
	for _, p := range Provenances {
		out.Set(string(p), d.sections[p].Clone())
	}
	if v, ok := d.root.Get(KeyChangeHistory); ok {
		out.Set(KeyChangeHistory, Clone(v))
	}
	return out
}

func (d *Document) orderedRootKeys() []string {
	keys := make([]string, 0, d.root.Len())
	for _, k := range adminKeys {
		if _, ok := d.root.Get(k); ok {
			keys = append(keys, k)
		}
	}
	for _, k := range d.root.Keys() {
		if !isRootKey(k) {
			keys = append(keys, k)
		}
	}
	for _, k := range []string{KeyImageFiles, KeyChangeHistory} {
		if _, ok := d.root.Get(k); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Flush writes the document to disk.
func (d *Document) Flush() error {
	data, err := d.encode()
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	if err := fileutil.WriteFileAtomic(d.path, data, 0o644); err != nil {
		return fmt.Errorf("write metadata %s: %w", d.path, err)
	}
	if d.onFlush != nil {
		if err := d.onFlush(d.path); err != nil {
			return err
		}
	}
	return nil
}

func checkPath(m *Map, path []string) error {
	cur := m
	for i, seg := range path[:len(path)-1] {
		child, ok := cur.Get(seg)
		if !ok {
			return nil
		}
		next, ok := child.(*Map)
		if !ok {
			return &ConflictError{
				Key:      strings.Join(path[:i+1], ":"),
				Existing: Text(child),
				Reason:   "cannot descend into a value that is not a map",
			}
		}
		cur = next
	}
	return nil
}

func setPath(m *Map, path []string, value Node) {
	cur := m
	for _, seg := range path[:len(path)-1] {
		child, ok := cur.Get(seg)
		if !ok {
			next := NewMap()
			cur.Set(seg, next)
			cur = next
			continue
		}
		cur = child.(*Map)
	}
	cur.Set(path[len(path)-1], value)
}

// removePath deletes the value at path and prunes maps left empty.
func removePath(m *Map, path []string) bool {
	if len(path) == 1 {
		return m.Delete(path[0])
	}
	child, ok := m.Get(path[0])
	if !ok {
		return false
	}
	next, ok := child.(*Map)
	if !ok {
		return false
	}
	removed := removePath(next, path[1:])
	if removed && next.Len() == 0 {
		m.Delete(path[0])
	}
	return removed
}

// shape enforces the structures the XML form can represent: lists only under
// typology (terms) and change-history (records).
func shape(path []string, n Node) (Node, error) {
	if n == nil {
		return nil, nil
	}
	key := strings.Join(path, ":")
	last := path[len(path)-1]
	switch {
	case len(path) == 1 && last == KeyTypology:
		switch v := n.(type) {
		case Leaf:
			return List{v}, nil
		case List:
			out := make(List, 0, len(v))
			for _, item := range v {
				leaf, ok := item.(Leaf)
				if !ok {
					return nil, &ConflictError{Key: key, Reason: "typology terms must be text"}
				}
				if !containsLeaf(out, string(leaf)) {
					out = append(out, leaf)
				}
			}
			return out, nil
		}
		return nil, &ConflictError{Key: key, Reason: "typology must be a list of terms"}
	case len(path) == 1 && last == KeyChangeHistory:
		list, ok := n.(List)
		if !ok {
			return nil, &ConflictError{Key: key, Reason: "change-history must be a list of records"}
		}
		for _, item := range list {
			rec, ok := item.(*Map)
			if !ok || !leavesOnly(rec) {
				return nil, &ConflictError{Key: key, Reason: "change records must be maps of text fields"}
			}
		}
		return n, nil
	}
	if !listFree(n) {
		return nil, &ConflictError{Key: key, Reason: "lists are only stored under typology and change-history"}
	}
	return n, nil
}

func leavesOnly(m *Map) bool {
	for _, k := range m.keys {
		if _, ok := m.values[k].(Leaf); !ok || !validName(k) {
			return false
		}
	}
	return true
}

func listFree(n Node) bool {
	switch v := n.(type) {
	case List:
		return false
	case *Map:
		for _, k := range v.keys {
			if !validName(k) || !listFree(v.values[k]) {
				return false
			}
		}
	}
	return true
}

// validName accepts the subset of XML names used for metadata keys.
func validName(s string) bool {
	if s == "" || strings.HasPrefix(strings.ToLower(s), "xml") {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
		case i > 0 && (r >= '0' && r <= '9' || r == '-'):
		default:
			return false
		}
	}
	return true
}
