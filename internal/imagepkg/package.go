package imagepkg

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"imgpkg/internal/config"
	"imgpkg/internal/derivative"
	"imgpkg/internal/digest"
	"imgpkg/internal/exif"
	"imgpkg/internal/fileutil"
	"imgpkg/internal/history"
	"imgpkg/internal/logging"
	"imgpkg/internal/manifest"
	"imgpkg/internal/metadata"
	"imgpkg/internal/photohost"
)

// Fixed artifact names.
const (
	MasterName    = "master.tif"
	PreviewName   = "preview.jpg"
	ThumbnailName = "thumb.jpg"
	MetadataName  = "meta.xml"

	originalStem = "original"
)

// Rendition roles recorded under image-files in meta.xml.
const (
	RoleOriginal  = "original"
	RoleMaster    = "master"
	RolePreview   = "preview"
	RoleThumbnail = "thumbnail"
)

// State is the lifecycle position of a Package value.
type State int

const (
	StateUnopened State = iota
	StateCreated
	StateOpened
	StateValidated
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateOpened:
		return "opened"
	case StateValidated:
		return "validated"
	default:
		return "unopened"
	}
}

// Artifact is a rendition present in the package.
type Artifact struct {
	Name   string `json:"name" yaml:"name"`
	Digest string `json:"digest" yaml:"digest"`
}

// Renderer produces the derived renditions.
type Renderer interface {
	BuildMaster(ctx context.Context, src, dest string) (derivative.Result, error)
	BuildPreview(ctx context.Context, master, dest string, overwrite bool) (derivative.Result, error)
	BuildThumbnail(ctx context.Context, preview, dest string, overwrite bool) (derivative.Result, error)
}

// Package is one image package directory.
type Package struct {
	Root      string
	ID        string
	Path      string
	Original  string
	Master    *Artifact
	Preview   *Artifact
	Thumbnail *Artifact

	state     State
	lastValid *bool
	ledger    *manifest.Ledger
	meta      *metadata.Document
	history   *history.Log
	env       settings
	logger    *slog.Logger
}

type settings struct {
	logger    *slog.Logger
	renderer  Renderer
	extractor exif.Extractor
	host      photohost.Client
	alg       digest.Algorithm
	loc       *time.Location
	agent     string
	vocab     metadata.Vocabulary
	now       func() time.Time
	copyTries int
}

// Option configures Create and Open.
type Option func(*settings)

// WithLogger routes package logging through logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithRenderer replaces the derivative pipeline.
func WithRenderer(r Renderer) Option {
	return func(s *settings) { s.renderer = r }
}

// WithExtractor sets the fact extractor. A nil extractor skips extraction.
func WithExtractor(e exif.Extractor) Option {
	return func(s *settings) { s.extractor = e }
}

// WithPhotoHost sets the client used by Publish.
func WithPhotoHost(c photohost.Client) Option {
	return func(s *settings) { s.host = c }
}

// WithAlgorithm selects the ledger digest for new packages. Open prefers the
// ledger it finds on disk.
func WithAlgorithm(alg digest.Algorithm) Option {
	return func(s *settings) { s.alg = alg }
}

// WithHistoryLocation sets the zone of history timestamps.
func WithHistoryLocation(loc *time.Location) Option {
	return func(s *settings) { s.loc = loc }
}

// WithAgent sets the agent recorded in change-history entries.
func WithAgent(agent string) Option {
	return func(s *settings) { s.agent = agent }
}

// WithVocabulary replaces the tag mapping used to import facts.
func WithVocabulary(v metadata.Vocabulary) Option {
	return func(s *settings) { s.vocab = v }
}

// WithClock replaces time.Now for history and change records.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// WithCopyTries sets how many times the original copy is attempted.
func WithCopyTries(n int) Option {
	return func(s *settings) { s.copyTries = n }
}

// OptionsFromConfig builds the options that wire a package to the configured
// pipeline, extractor and photo host.
func OptionsFromConfig(cfg *config.Config, logger *slog.Logger) ([]Option, error) {
	renderer, err := derivative.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	host, err := photohost.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, err
	}
	return []Option{
		WithLogger(logger),
		WithRenderer(renderer),
		WithExtractor(exif.NewFromConfig(cfg, logger)),
		WithPhotoHost(host),
		WithAlgorithm(cfg.DigestAlgorithm()),
		WithHistoryLocation(cfg.HistoryLocation()),
		WithAgent(cfg.History.Agent),
	}, nil
}

func resolve(opts []Option) (settings, error) {
	s := settings{
		alg:       digest.Default,
		loc:       time.Local,
		agent:     "imgpkg",
		vocab:     metadata.DefaultVocabulary(),
		now:       time.Now,
		copyTries: fileutil.DefaultCopyTries,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.renderer == nil {
		cfg := config.Default()
		p, err := derivative.NewFromConfig(&cfg, s.logger)
		if err != nil {
			return settings{}, err
		}
		s.renderer = p
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	return s, nil
}

func newPackage(root, id string, env settings) *Package {
	p := &Package{
		Root: root,
		ID:   id,
		Path: filepath.Join(root, id),
		env:  env,
	}
	p.logger = logging.NewComponentLogger(env.logger, "imagepkg").With(logging.String(logging.FieldPackageID, id))
	p.history = history.Open(filepath.Join(p.Path, history.FileName), env.loc, history.WithClock(env.now))
	return p
}

// Create builds a new package named id under root from the image at
// originalPath. Every file is registered in the ledger as soon as it is
// written; on failure the files already written stay registered.
func Create(ctx context.Context, root, id, originalPath string, opts ...Option) (*Package, error) {
	env, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" || id != filepath.Base(id) || id == "." || id == ".." {
		return nil, fmt.Errorf("invalid package id %q", id)
	}
	root, err = fileutil.ValidatePath(root, fileutil.DirKind)
	if err != nil {
		return nil, err
	}
	source, err := fileutil.ValidatePath(originalPath, fileutil.FileKind)
	if err != nil {
		return nil, err
	}
	originalName, err := OriginalName(source)
	if err != nil {
		return nil, err
	}

	p := newPackage(root, id, env)
	if err := os.Mkdir(p.Path, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrPackageExists, p.Path)
		}
		return nil, fmt.Errorf("create package directory: %w", err)
	}
	p.ledger, err = manifest.Create(filepath.Join(p.Path, manifest.FileName(env.alg)), env.alg)
	if err != nil {
		return nil, err
	}
	p.state = StateCreated
	p.logger.Info("creating package",
		logging.String("source", source),
		logging.String(logging.FieldEventType, "package_create_started"),
	)

	sum, err := fileutil.SafeCopy(source, p.file(originalName), env.alg, env.copyTries)
	if err != nil {
		return p, err
	}
	if err := p.ledger.Set(originalName, sum); err != nil {
		return p, err
	}
	p.Original = originalName
	if err := p.record(fmt.Sprintf("copied original %s to %s", filepath.Base(source), originalName)); err != nil {
		return p, err
	}

	facts, err := p.extractFacts(ctx)
	if err != nil {
		return p, err
	}

	if err := p.buildMaster(ctx); err != nil {
		return p, err
	}
	if _, err := p.buildRenditions(ctx, false); err != nil {
		return p, err
	}

	if err := p.createMetadata(); err != nil {
		return p, err
	}
	if len(facts) > 0 {
		if err := p.meta.ImportFacts(facts, env.vocab, metadata.OverwriteCurated()); err != nil {
			return p, fmt.Errorf("import facts: %w", err)
		}
		if err := p.record("imported embedded metadata into " + MetadataName); err != nil {
			return p, err
		}
	}

	p.logger.Info("package created",
		logging.Path(p.Path),
		logging.String("original", p.Original),
		logging.Int("files", p.ledger.Len()),
		logging.String(logging.FieldEventType, "package_created"),
	)
	return p, nil
}

// extractFacts runs the extractor on the original and stores the sidecar.
// Extraction failures are logged and leave the package without imported
// facts.
func (p *Package) extractFacts(ctx context.Context) (metadata.Facts, error) {
	if p.env.extractor == nil {
		return nil, nil
	}
	res, err := p.env.extractor.Extract(ctx, p.file(p.Original))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logging.WarnWithContext(p.logger, "fact extraction failed; continuing without embedded metadata", "exif_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check exif.binary or run metadata reimport after fixing it"),
		)
		return nil, nil
	}
	if err := exif.WriteSidecar(p.file(exif.SidecarName), res.Raw); err != nil {
		return nil, err
	}
	if _, err := p.ledger.SetFile(exif.SidecarName); err != nil {
		return nil, err
	}
	if err := p.record("extracted embedded metadata to " + exif.SidecarName); err != nil {
		return nil, err
	}
	return res.Facts, nil
}

func (p *Package) createMetadata() error {
	doc, err := metadata.Create(p.file(MetadataName), false, p.metadataOptions()...)
	if err != nil {
		return err
	}
	p.meta = doc
	if err := p.recordImageFiles(); err != nil {
		return err
	}
	if err := p.meta.AppendChange(p.change("created metadata document")); err != nil {
		return err
	}
	return p.record("created " + MetadataName)
}

func (p *Package) metadataOptions() []metadata.Option {
	return []metadata.Option{
		metadata.WithLogger(p.env.logger),
		metadata.WithFlushHook(func(string) error {
			_, err := p.ledger.SetFile(MetadataName)
			return err
		}),
	}
}

// recordImageFiles writes the present rendition filenames into meta.xml.
func (p *Package) recordImageFiles() error {
	if p.meta == nil {
		return nil
	}
	roles := []struct {
		role string
		name string
	}{
		{RoleOriginal, p.Original},
		{RoleMaster, artifactName(p.Master)},
		{RolePreview, artifactName(p.Preview)},
		{RoleThumbnail, artifactName(p.Thumbnail)},
	}
	for _, r := range roles {
		if r.name == "" {
			continue
		}
		if err := p.meta.SetImageFile(r.role, r.name, metadata.WithoutFlush()); err != nil {
			return err
		}
	}
	return p.meta.Flush()
}

func artifactName(a *Artifact) string {
	if a == nil {
		return ""
	}
	return a.Name
}

func (p *Package) change(description string) metadata.Change {
	return metadata.Change{
		Date:        p.env.now().In(p.env.loc).Format(time.RFC3339),
		Agent:       p.env.agent,
		Description: description,
	}
}

// record appends a history event and re-registers the history file.
func (p *Package) record(msg string) error {
	if _, err := p.history.Append(msg); err != nil {
		return err
	}
	if _, err := p.ledger.SetFile(history.FileName); err != nil {
		return err
	}
	return nil
}

func (p *Package) file(name string) string {
	return filepath.Join(p.Path, name)
}

// Open loads an existing package. A missing meta.xml is an error.
func Open(ctx context.Context, path string, opts ...Option) (*Package, error) {
	return open(ctx, path, true, opts)
}

// OpenBestEffort loads an existing package, tolerating a missing meta.xml
// with a warning.
func OpenBestEffort(ctx context.Context, path string, opts ...Option) (*Package, error) {
	return open(ctx, path, false, opts)
}

func open(ctx context.Context, path string, strict bool, opts []Option) (*Package, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, err := resolve(opts)
	if err != nil {
		return nil, err
	}
	path, err = fileutil.ValidatePath(path, fileutil.DirKind)
	if err != nil {
		return nil, err
	}
	ledgerName, alg, err := findLedger(path, env.alg)
	if err != nil {
		return nil, err
	}
	env.alg = alg

	p := newPackage(filepath.Dir(path), filepath.Base(path), env)
	p.ledger, err = manifest.Load(filepath.Join(path, ledgerName), alg)
	if err != nil {
		return nil, err
	}
	for _, name := range p.ledger.Names() {
		if isOriginalName(name) {
			p.Original = name
			break
		}
	}
	if p.Original == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingOriginal, path)
	}
	p.refreshArtifacts()

	switch doc, err := metadata.Load(p.file(MetadataName), p.metadataOptions()...); {
	case err == nil:
		p.meta = doc
	case errors.Is(err, fs.ErrNotExist) && !strict:
		logging.WarnWithContext(p.logger, "package has no metadata document", "metadata_missing",
			logging.Path(p.file(MetadataName)),
			logging.String(logging.FieldErrorHint, "set any metadata field to create a fresh "+MetadataName),
		)
	default:
		return nil, err
	}

	p.state = StateOpened
	p.logger.Debug("package opened",
		logging.Path(p.Path),
		logging.Int("files", p.ledger.Len()),
	)
	return p, nil
}

// findLedger locates the package's ledger, preferring the configured
// algorithm.
func findLedger(dir string, preferred digest.Algorithm) (string, digest.Algorithm, error) {
	if name := manifest.FileName(preferred); fileutil.Exists(filepath.Join(dir, name)) {
		return name, preferred, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", "", fmt.Errorf("read package directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if !entry.Type().IsRegular() || !manifest.IsLedgerName(name) {
			continue
		}
		alg, err := digest.Parse(strings.TrimSuffix(strings.TrimPrefix(name, "manifest-"), ".txt"))
		if err != nil {
			continue
		}
		return name, alg, nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotAPackage, dir)
}

// refreshArtifacts derives rendition records from the ledger.
func (p *Package) refreshArtifacts() {
	lookup := func(name string) *Artifact {
		sum, err := p.ledger.Get(name)
		if err != nil {
			return nil
		}
		return &Artifact{Name: name, Digest: sum}
	}
	p.Master = lookup(MasterName)
	p.Preview = lookup(PreviewName)
	p.Thumbnail = lookup(ThumbnailName)
	if p.Original != "" && !p.ledger.Has(p.Original) {
		p.Original = ""
		for _, name := range p.ledger.Names() {
			if isOriginalName(name) {
				p.Original = name
				break
			}
		}
	}
}

// State reports the lifecycle position.
func (p *Package) State() State { return p.state }

// LastValid reports the outcome of the most recent Validate, or nil.
func (p *Package) LastValid() *bool { return p.lastValid }

// Ledger returns the package checksum ledger.
func (p *Package) Ledger() *manifest.Ledger { return p.ledger }

// Metadata returns the metadata document, or nil when the package has none.
func (p *Package) Metadata() *metadata.Document { return p.meta }

// History returns the package history log.
func (p *Package) History() *history.Log { return p.history }

// Algorithm returns the ledger digest algorithm.
func (p *Package) Algorithm() digest.Algorithm { return p.env.alg }

// Files returns the ledger filenames in sorted order.
func (p *Package) Files() []string {
	if p.ledger == nil {
		return nil
	}
	return slices.Clone(p.ledger.Names())
}

func (p *Package) opened() error {
	if p == nil || p.state == StateUnopened || p.ledger == nil {
		return ErrNotOpened
	}
	return nil
}
