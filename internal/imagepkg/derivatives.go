package imagepkg

import (
	"context"
	"fmt"

	"imgpkg/internal/derivative"
	"imgpkg/internal/fileutil"
	"imgpkg/internal/logging"
)

// MakeDerivatives builds any missing renditions, or rebuilds the preview and
// thumbnail when overwrite is set. A missing master is built first and its
// renditions rebuilt from it. It reports whether anything was written; with
// overwrite unset and every rendition present it returns false without
// touching the filesystem.
func (p *Package) MakeDerivatives(ctx context.Context, overwrite bool) (bool, error) {
	if err := p.opened(); err != nil {
		return false, err
	}
	if !overwrite && p.present(p.Master) && p.present(p.Preview) && p.present(p.Thumbnail) {
		p.logger.Debug("renditions present; nothing to do")
		return false, nil
	}

	wrote := false
	if !p.present(p.Master) {
		if err := p.buildMaster(ctx); err != nil {
			return false, err
		}
		wrote = true
	}
	built, err := p.buildRenditions(ctx, overwrite || wrote)
	if err != nil {
		return wrote, err
	}
	wrote = wrote || built
	if wrote {
		if err := p.recordImageFiles(); err != nil {
			return wrote, err
		}
	}
	return wrote, nil
}

func (p *Package) present(a *Artifact) bool {
	return a != nil && fileutil.Exists(p.file(a.Name))
}

func (p *Package) buildMaster(ctx context.Context) error {
	if p.Original == "" {
		return ErrMissingOriginal
	}
	res, err := p.env.renderer.BuildMaster(ctx, p.file(p.Original), p.file(MasterName))
	if err != nil {
		return fmt.Errorf("build master: %w", err)
	}
	art, err := p.register(MasterName)
	if err != nil {
		return err
	}
	p.Master = art
	msg := fmt.Sprintf("created %s (%dx%d, %s)", MasterName, res.Width, res.Height, res.Profile)
	if res.AssumedProfile {
		msg += "; source profile assumed"
	}
	return p.record(msg)
}

// buildRenditions writes the preview and then the thumbnail. The thumbnail is
// rebuilt whenever the preview was.
func (p *Package) buildRenditions(ctx context.Context, overwrite bool) (bool, error) {
	wrote := false
	preview, err := p.env.renderer.BuildPreview(ctx, p.file(MasterName), p.file(PreviewName), overwrite)
	if err != nil {
		return false, fmt.Errorf("build preview: %w", err)
	}
	if p.Preview, err = p.adopt(PreviewName, preview); err != nil {
		return false, err
	}
	wrote = preview.Written

	thumb, err := p.env.renderer.BuildThumbnail(ctx, p.file(PreviewName), p.file(ThumbnailName), overwrite || preview.Written)
	if err != nil {
		return wrote, fmt.Errorf("build thumbnail: %w", err)
	}
	if p.Thumbnail, err = p.adopt(ThumbnailName, thumb); err != nil {
		return wrote, err
	}
	return wrote || thumb.Written, nil
}

// adopt registers a rendition the pipeline wrote, or one it found already on
// disk but missing from the ledger.
func (p *Package) adopt(name string, res derivative.Result) (*Artifact, error) {
	if !res.Written {
		if sum, err := p.ledger.Get(name); err == nil {
			return &Artifact{Name: name, Digest: sum}, nil
		}
		p.logger.Info("registering existing rendition", logging.File(name))
		return p.register(name)
	}
	art, err := p.register(name)
	if err != nil {
		return nil, err
	}
	if err := p.record(fmt.Sprintf("created %s (%dx%d)", name, res.Width, res.Height)); err != nil {
		return nil, err
	}
	return art, nil
}

func (p *Package) register(name string) (*Artifact, error) {
	sum, err := p.ledger.SetFile(name)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("rendition registered", logging.File(name), logging.Digest(p.ledger.Algorithm().String(), sum))
	return &Artifact{Name: name, Digest: sum}, nil
}
