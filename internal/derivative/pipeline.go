package derivative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"imgpkg/internal/config"
	"imgpkg/internal/digest"
	"imgpkg/internal/fileutil"
	"imgpkg/internal/imaging"
	"imgpkg/internal/imaging/icc"
	"imgpkg/internal/logging"
)

// Box is a maximum rendition size in pixels.
type Box struct {
	Width, Height int
}

// Options configures a Pipeline.
type Options struct {
	TargetProfile       *icc.Profile
	DefaultInputProfile *icc.Profile
	Preview             Box
	Thumbnail           Box
	Quality             int
	Algorithm           digest.Algorithm
}

// Result describes one rendered artifact.
type Result struct {
	Path string
	// Digest is empty when nothing was written.
	Digest  string
	Written bool
	Width   int
	Height  int
	Profile string
	// AssumedProfile is set when the source carried no usable profile and the
	// default input profile was used instead.
	AssumedProfile bool
}

// Pipeline renders derivatives through an imaging.Codec.
type Pipeline struct {
	codec  imaging.Codec
	opts   Options
	logger *slog.Logger
}

// New constructs a pipeline. Missing profiles default to built-in sRGB.
func New(codec imaging.Codec, opts Options, logger *slog.Logger) *Pipeline {
	if opts.TargetProfile == nil {
		opts.TargetProfile = icc.SRGB()
	}
	if opts.DefaultInputProfile == nil {
		opts.DefaultInputProfile = icc.SRGB()
	}
	if opts.Algorithm == "" {
		opts.Algorithm = digest.Default
	}
	return &Pipeline{
		codec:  codec,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "derivative"),
	}
}

// NewFromConfig builds a pipeline backed by the pure-Go imaging engine.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) (*Pipeline, error) {
	target, err := imaging.ResolveProfile(cfg.Imaging.TargetProfile)
	if err != nil {
		return nil, fmt.Errorf("target profile: %w", err)
	}
	input, err := imaging.ResolveProfile(cfg.Imaging.DefaultInputProfile)
	if err != nil {
		return nil, fmt.Errorf("default input profile: %w", err)
	}
	return New(imaging.NewEngine(cfg.Imaging.PreshrinkFactor), Options{
		TargetProfile:       target,
		DefaultInputProfile: input,
		Preview:             Box{cfg.Imaging.PreviewWidth, cfg.Imaging.PreviewHeight},
		Thumbnail:           Box{cfg.Imaging.ThumbnailWidth, cfg.Imaging.ThumbnailHeight},
		Quality:             cfg.Imaging.JPEGQuality,
		Algorithm:           cfg.DigestAlgorithm(),
	}, logger), nil
}

// Options returns the resolved pipeline options.
func (p *Pipeline) Options() Options { return p.opts }

// BuildMaster converts src into the target profile and writes it to dest as
// a TIFF with the target profile embedded. dest is always rewritten.
func (p *Pipeline) BuildMaster(ctx context.Context, src, dest string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	img, err := p.codec.Decode(src)
	var perr *imaging.ProfileError
	switch {
	case errors.As(err, &perr) && img != nil:
		logging.WarnWithContext(p.logger, "embedded color profile unreadable; using default input profile", "profile_unreadable",
			logging.String("source", src),
			logging.Error(perr.Err),
			logging.String(logging.FieldErrorHint, "re-export the original with a valid ICC profile if colors look wrong"),
			logging.String(logging.FieldImpact, "master colors assume the default input profile"),
		)
	case err != nil:
		return Result{}, fmt.Errorf("decode %s: %w", src, err)
	}

	source := img.Profile
	assumed := source == nil
	if assumed {
		source = p.opts.DefaultInputProfile
		if perr == nil {
			logging.WarnWithContext(p.logger, "source has no embedded color profile; assuming default input profile", "profile_missing",
				logging.String("source", src),
				logging.String("assumed_profile", source.String()),
				logging.String(logging.FieldErrorHint, "set imaging.default_input_profile if the scanner uses another space"),
				logging.String(logging.FieldImpact, "master colors assume the default input profile"),
			)
		}
	}

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	converted, err := p.codec.ConvertProfile(img, source, p.opts.TargetProfile)
	if err != nil {
		return Result{}, fmt.Errorf("convert %s from %s: %w", src, source, err)
	}
	if err := p.codec.Save(converted, dest, imaging.SaveOptions{Format: imaging.FormatTIFF, Profile: p.opts.TargetProfile}); err != nil {
		return Result{}, err
	}

	res, err := p.finish(dest, converted)
	if err != nil {
		return Result{}, err
	}
	res.AssumedProfile = assumed
	p.logger.Info("master written",
		logging.Path(dest),
		logging.Int("width", res.Width),
		logging.Int("height", res.Height),
		logging.String("profile", res.Profile),
	)
	return res, nil
}

// BuildPreview fits master into the preview box and writes a JPEG to dest.
// An existing dest is kept unless overwrite is set.
func (p *Pipeline) BuildPreview(ctx context.Context, master, dest string, overwrite bool) (Result, error) {
	return p.render(ctx, "preview", master, dest, p.opts.Preview, overwrite)
}

// BuildThumbnail fits preview into the thumbnail box.
func (p *Pipeline) BuildThumbnail(ctx context.Context, preview, dest string, overwrite bool) (Result, error) {
	return p.render(ctx, "thumbnail", preview, dest, p.opts.Thumbnail, overwrite)
}

func (p *Pipeline) render(ctx context.Context, role, src, dest string, box Box, overwrite bool) (Result, error) {
	if !overwrite && fileutil.Exists(dest) {
		p.logger.Debug("rendition exists; skipping", logging.String("role", role), logging.Path(dest))
		return Result{Path: dest}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	img, err := p.codec.Decode(src)
	if err != nil {
		var perr *imaging.ProfileError
		if !errors.As(err, &perr) || img == nil {
			return Result{}, fmt.Errorf("decode %s: %w", src, err)
		}
		img.Profile = nil
	}
	if img.Profile == nil {
		img.Profile = p.opts.DefaultInputProfile
	}

	w, h := imaging.FitWithin(img.Width(), img.Height(), box.Width, box.Height)
	resized := p.codec.Resize(img, w, h)
	if err := p.codec.Save(resized, dest, imaging.SaveOptions{
		Format:  imaging.FormatJPEG,
		Quality: p.opts.Quality,
		Profile: resized.Profile,
	}); err != nil {
		return Result{}, err
	}
	res, err := p.finish(dest, resized)
	if err != nil {
		return Result{}, err
	}
	p.logger.Info(role+" written",
		logging.Path(dest),
		logging.Int("width", w),
		logging.Int("height", h),
	)
	return res, nil
}

func (p *Pipeline) finish(dest string, img *imaging.Image) (Result, error) {
	sum, err := p.opts.Algorithm.File(dest)
	if err != nil {
		return Result{}, fmt.Errorf("digest %s: %w", dest, err)
	}
	return Result{
		Path:    dest,
		Digest:  sum,
		Written: true,
		Width:   img.Width(),
		Height:  img.Height(),
		Profile: img.Profile.String(),
	}, nil
}
