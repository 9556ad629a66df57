package metadata

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode"

	"imgpkg/internal/logging"
)

// ImportOption adjusts how ImportFacts treats the curated section.
type ImportOption func(*importOptions)

type importOptions struct {
	overwrite bool
}

// OverwriteCurated lets imported values replace what the curated section
// already holds. Use it for the first import into a fresh document, where
// the curated section carries only template defaults.
func OverwriteCurated() ImportOption {
	return func(o *importOptions) { o.overwrite = true }
}

// ImportFacts resolves facts through vocab and records the result in the
// original section. Keys the curated section does not have yet are seeded
// with the same values. Every resolved top-level key is flushed before the
// next one is written. Conflicting date or time fragments abort the import
// before anything is written.
func (d *Document) ImportFacts(facts Facts, vocab Vocabulary, opts ...ImportOption) error {
	var o importOptions
	for _, opt := range opts {
		opt(&o)
	}
	resolved, err := resolveFacts(facts, vocab, d.logger)
	if err != nil {
		return err
	}
	for _, key := range sortedKeys(resolved) {
		if err := d.importKey(key, resolved[key], o.overwrite); err != nil {
			return fmt.Errorf("import %s: %w", key, err)
		}
	}
	d.logger.Info("imported header facts",
		logging.Int("facts", len(facts)),
		logging.Int("keys", len(resolved)),
	)
	return nil
}

func (d *Document) importKey(key string, value Node, overwrite bool) error {
	if key == KeyTypology {
		list, _ := value.(List)
		for _, term := range list {
			if err := d.AddKeyword(Text(term), InSections(Original, Curated), WithoutFlush()); err != nil {
				return err
			}
		}
		return d.Flush()
	}

	path := SplitKey(key)
	if err := d.SetHierarchy(path, value, InSections(Original), WithoutFlush()); err != nil {
		return err
	}
	if _, err := d.GetFrom(Curated, key); overwrite || errors.Is(err, ErrKeyNotFound) {
		err := d.SetHierarchy(path, value, InSections(Curated), WithoutFlush())
		if err != nil && !errors.Is(err, ErrConflict) {
			return err
		}
		if err != nil {
			d.logger.Debug("curated value left untouched", logging.String("key", key), logging.Error(err))
		}
	}
	return d.Flush()
}

type dateParts struct {
	date  string
	clock string
	frac  string
	zone  string
}

func (p *dateParts) String() string {
	var b strings.Builder
	b.WriteString(p.date)
	if p.clock != "" || p.frac != "" || p.zone != "" {
		b.WriteByte('T')
		b.WriteString(p.clock)
		if p.frac != "" {
			b.WriteByte('.')
			b.WriteString(p.frac)
		}
		b.WriteString(p.zone)
	}
	return b.String()
}

func resolveFacts(facts Facts, vocab Vocabulary, logger *slog.Logger) (map[string]Node, error) {
	source, hasSource := facts.First(vocab.Source)
	subject := dateSubject(source, hasSource)

	text := make(map[string]string)
	var keywords List
	dates := make(map[string]*dateParts)

	for _, tag := range sortedKeys(facts) {
		values := facts[tag]
		switch {
		case tag == vocab.Source:
			continue
		case slices.Contains(vocab.Dates, tag):
			timeOnly := slices.Contains(vocab.TimeOnly, tag)
			for _, raw := range values {
				incoming, err := parseDateTime(raw, timeOnly)
				if err != nil {
					return nil, fmt.Errorf("%s: %w", tag, err)
				}
				if incoming == nil {
					continue
				}
				current, ok := dates[subject]
				if !ok {
					dates[subject] = incoming
					continue
				}
				if err := mergeDate(subject, current, incoming); err != nil {
					return nil, err
				}
			}
		default:
			target, known := vocab.Fields[tag]
			if !known {
				continue
			}
			switch target {
			case "":
				logger.Debug("skipping unmapped tag", "tag", tag)
			case KeyTypology:
				for _, raw := range values {
					if term := Clean(raw); term != "" && !containsLeaf(keywords, term) {
						keywords = append(keywords, Leaf(term))
					}
				}
			default:
				text[target] = accumulate(text[target], values)
			}
		}
	}

	out := make(map[string]Node, len(text)+len(dates)+1)
	for target, value := range text {
		if value != "" {
			out[target] = Leaf(value)
		}
	}
	if len(keywords) > 0 {
		out[KeyTypology] = keywords
	}
	for key, parts := range dates {
		if value := parts.String(); value != "" {
			out[key] = Leaf(value)
		}
	}
	return out, nil
}

// accumulate joins values onto cur with single spaces, skipping any value
// already contained in the accumulated text.
func accumulate(cur string, values []string) string {
	for _, raw := range values {
		v := Clean(raw)
		if v == "" || strings.Contains(cur, v) {
			continue
		}
		cur = Clean(cur + " " + v)
	}
	return cur
}

// parseDateTime splits a header value into date and time fragments. It
// returns nil for values that carry nothing, such as all-zero EXIF dates.
func parseDateTime(raw string, timeOnly bool) (*dateParts, error) {
	raw = Clean(raw)
	if raw == "" {
		return nil, nil
	}
	var dateVal, timeVal string
	switch {
	case strings.Contains(raw, "T"):
		dateVal, timeVal, _ = strings.Cut(raw, "T")
	case strings.Contains(raw, " "):
		dateVal, timeVal, _ = strings.Cut(raw, " ")
	case timeOnly:
		timeVal = raw
	default:
		dateVal = raw
	}

	parts := &dateParts{}
	if dateVal != "" {
		date, err := formatDate(dateVal)
		if err != nil {
			return nil, err
		}
		if date == "" {
			// EXIF writes all-zero dates for "unknown".
			return nil, nil
		}
		parts.date = date
	}
	if timeVal != "" {
		if err := parseTime(timeVal, parts); err != nil {
			return nil, err
		}
	}
	if parts.date == "" && parts.clock == "" {
		return nil, nil
	}
	return parts, nil
}

// formatDate strips punctuation and renders YYYY, YYYY-MM or YYYY-MM-DD.
func formatDate(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		switch {
		case unicode.IsDigit(r):
			digits.WriteRune(r)
		case unicode.IsLetter(r):
			return "", fmt.Errorf("%w: date %q", ErrMalformedFact, raw)
		}
	}
	s := digits.String()
	if strings.Trim(s, "0") == "" {
		return "", nil
	}
	switch len(s) {
	case 4:
		return s, nil
	case 6:
		return s[0:4] + "-" + s[4:6], nil
	case 8:
		return s[0:4] + "-" + s[4:6] + "-" + s[6:8], nil
	}
	return "", fmt.Errorf("%w: date %q", ErrMalformedFact, raw)
}

// parseTime splits "hh:mm:ss[.fff][zone]" into its components.
func parseTime(raw string, parts *dateParts) error {
	rest := raw
	if idx := strings.IndexAny(rest, "+-Z"); idx >= 0 {
		parts.zone = rest[idx:]
		rest = rest[:idx]
	}
	if clock, frac, ok := strings.Cut(rest, "."); ok {
		rest = clock
		parts.frac = frac
	}
	for _, r := range rest + parts.frac {
		if r != ':' && !unicode.IsDigit(r) {
			return fmt.Errorf("%w: time %q", ErrMalformedFact, raw)
		}
	}
	parts.clock = rest
	return nil
}

// mergeDate folds incoming into current. Components merge independently:
// the date and the clock may extend each other by prefix, fractional
// seconds likewise, and zones must match when both are present. Anything
// else is a conflict.
func mergeDate(key string, current, incoming *dateParts) error {
	conflict := func(reason string) error {
		return &ConflictError{Key: key, Existing: current.String(), Incoming: incoming.String(), Reason: reason}
	}
	date, ok := mergePrefix(current.date, incoming.date)
	if !ok {
		return conflict("dates disagree")
	}
	clock, ok := mergePrefix(current.clock, incoming.clock)
	if !ok {
		return conflict("times disagree")
	}
	frac, ok := mergePrefix(current.frac, incoming.frac)
	if !ok {
		return conflict("fractional seconds disagree")
	}
	zone := current.zone
	switch {
	case incoming.zone == "":
	case zone == "":
		zone = incoming.zone
	case normalizeZone(zone) != normalizeZone(incoming.zone):
		return conflict("time zones disagree")
	}
	current.date, current.clock, current.frac, current.zone = date, clock, frac, zone
	return nil
}

func mergePrefix(a, b string) (string, bool) {
	switch {
	case strings.HasPrefix(b, a):
		return b, true
	case strings.HasPrefix(a, b):
		return a, true
	}
	return "", false
}

func normalizeZone(z string) string {
	switch z {
	case "Z", "+00:00", "-00:00", "+0000", "-0000":
		return "Z"
	}
	return strings.ReplaceAll(z, ":", "")
}
