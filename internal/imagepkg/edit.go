package imagepkg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"imgpkg/internal/exif"
	"imgpkg/internal/history"
	"imgpkg/internal/logging"
	"imgpkg/internal/metadata"
	"imgpkg/internal/photohost"
)

// RepairManifest rebuilds the ledger from the files currently in the package
// and records the repair in the history log.
func (p *Package) RepairManifest(ctx context.Context) error {
	if err := p.opened(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	before := p.ledger.Snapshot()
	if err := p.ledger.Regenerate(); err != nil {
		return err
	}
	p.refreshArtifacts()

	changed := 0
	after := p.ledger.Snapshot()
	for name, sum := range after {
		if before[name] != sum {
			changed++
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			changed++
		}
	}
	p.logger.Info("manifest regenerated",
		logging.Int("files", len(after)),
		logging.Int("changed", changed),
		logging.String(logging.FieldEventType, "manifest_regenerated"),
	)
	return p.record(fmt.Sprintf("regenerated %s (%d files, %d changed)", filepath.Base(p.ledger.Path()), len(after), changed))
}

// ensureMetadata creates a template meta.xml for packages opened without
// one.
func (p *Package) ensureMetadata() error {
	if p.meta != nil {
		return nil
	}
	if err := p.createMetadata(); err != nil {
		return fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}
	return nil
}

// SetMetadata stores value at key, or removes key when value is empty, and
// records the change.
func (p *Package) SetMetadata(key, value string, opts ...metadata.SetOption) error {
	if err := p.opened(); err != nil {
		return err
	}
	if err := p.ensureMetadata(); err != nil {
		return err
	}
	value = metadata.Clean(value)
	var (
		err  error
		what string
	)
	if value == "" {
		err = p.meta.Remove(key, opts...)
		what = "removed " + key
	} else {
		err = p.meta.Set(key, metadata.Leaf(value), opts...)
		what = fmt.Sprintf("set %s to %q", key, value)
	}
	if err != nil {
		return err
	}
	return p.noteChange(what)
}

// AddKeyword appends a typology term.
func (p *Package) AddKeyword(term string) error {
	if err := p.opened(); err != nil {
		return err
	}
	if err := p.ensureMetadata(); err != nil {
		return err
	}
	term = metadata.Clean(term)
	if term == "" {
		return errors.New("empty keyword")
	}
	if err := p.meta.AddKeyword(term); err != nil {
		return err
	}
	return p.noteChange(fmt.Sprintf("added keyword %q", term))
}

// ReimportFacts imports the stored fact sidecar into the original section
// again, extracting it first when the package has none.
func (p *Package) ReimportFacts(ctx context.Context) error {
	if err := p.opened(); err != nil {
		return err
	}
	if err := p.ensureMetadata(); err != nil {
		return err
	}
	var facts metadata.Facts
	res, err := exif.ReadSidecar(p.file(exif.SidecarName))
	switch {
	case err == nil:
		facts = res.Facts
	case errors.Is(err, os.ErrNotExist):
		if p.env.extractor == nil {
			return fmt.Errorf("no %s and no extractor configured", exif.SidecarName)
		}
		facts, err = p.extractFacts(ctx)
		if err != nil {
			return err
		}
		if facts == nil {
			return fmt.Errorf("extraction produced no %s", exif.SidecarName)
		}
	default:
		return err
	}
	if err := p.meta.ImportFacts(facts, p.env.vocab); err != nil {
		return fmt.Errorf("import facts: %w", err)
	}
	return p.noteChange("imported embedded metadata from " + exif.SidecarName)
}

// noteChange adds a change-history entry and a history event.
func (p *Package) noteChange(what string) error {
	if err := p.meta.AppendChange(p.change(what)); err != nil {
		return err
	}
	p.logger.Info("metadata updated", logging.String("change", what))
	return p.record("metadata: " + what)
}

// Publish uploads the master to the photo host and stores the returned URL
// in the curated section. The package must be marked ready and cleared.
func (p *Package) Publish(ctx context.Context) (string, error) {
	if err := p.opened(); err != nil {
		return "", err
	}
	if p.env.host == nil {
		return "", ErrNoPhotoHost
	}
	if p.meta == nil {
		return "", ErrNoMetadata
	}
	status := p.meta.GetString(metadata.KeyStatus)
	cleared := p.meta.GetString(metadata.KeyPublishCleared)
	if status != "ready" || cleared != "yes" {
		return "", fmt.Errorf("%w: status=%q %s=%q", ErrNotPublishable, status, metadata.KeyPublishCleared, cleared)
	}
	if !p.present(p.Master) {
		return "", fmt.Errorf("publish: %s missing", MasterName)
	}

	url, err := p.env.host.Upload(logging.WithPackageID(ctx, p.ID), photohost.Upload{
		PackageID:   p.ID,
		Path:        p.file(MasterName),
		Title:       p.meta.GetString("title"),
		Description: p.meta.GetString("description"),
		Tags:        p.meta.Keywords(),
		License:     p.meta.GetString(metadata.KeyLicense),
	})
	if err != nil {
		return "", fmt.Errorf("publish: %w", err)
	}
	if err := p.meta.Set(metadata.KeyPublishedURL, metadata.Leaf(url), metadata.InSections(metadata.Curated)); err != nil {
		return url, err
	}
	if err := p.noteChange("published to " + url); err != nil {
		return url, err
	}
	return url, nil
}

// Delete removes the package directory. The Package is unusable afterwards.
func (p *Package) Delete() error {
	if err := p.opened(); err != nil {
		return err
	}
	err := os.RemoveAll(p.Path)
	p.state = StateUnopened
	p.ledger = nil
	p.meta = nil
	if err != nil {
		return fmt.Errorf("delete package: %w", err)
	}
	p.logger.Info("package deleted",
		logging.Path(p.Path),
		logging.String(logging.FieldEventType, "package_deleted"),
	)
	return nil
}

// Events returns the history log.
func (p *Package) Events() ([]history.Event, error) {
	if p.history == nil {
		return nil, ErrNotOpened
	}
	return p.history.Events()
}
