package derive

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"photovault/internal/config"
	"photovault/internal/media/codec"
)

// Profile is one rendition class.
type Profile struct {
	Name    string
	Width   int
	Quality int
	Effort  int
}

type Policy struct {
	Preview Profile
	Full    Profile
}

func PolicyFromConfig(cfg config.MediaConfig) Policy {
	return Policy{
		Preview: Profile{Name: "preview", Width: cfg.PreviewWidth, Quality: cfg.PreviewQuality, Effort: cfg.PreviewEffort},
		Full:    Profile{Name: "full", Width: cfg.FullWidth, Quality: cfg.FullQuality, Effort: cfg.FullEffort},
	}
}

type Derivative struct {
	Data   []byte
	Width  int
	Height int
	Size   int64
}

// Set is the output of one generation: both renditions share Filename.
type Set struct {
	Filename     string
	Preview      Derivative
	Full         Derivative
	SourceFormat string
	SourceWidth  int
	SourceHeight int
}

type Generator struct {
	policy Policy
	log    zerolog.Logger
}

func NewGenerator(policy Policy, log zerolog.Logger) *Generator {
	return &Generator{policy: policy, log: log}
}

// Generate decodes data once, bakes in orientation, then encodes the
// preview and full renditions.
func (g *Generator) Generate(data []byte) (Set, error) {
	img, err := codec.Decode(data)
	if err != nil {
		return Set{}, err
	}

	sourceWidth, sourceHeight := img.Width, img.Height
	img.NormalizeOrientation()

	preview, err := g.render(img, g.policy.Preview)
	if err != nil {
		return Set{}, err
	}
	full, err := g.render(img, g.policy.Full)
	if err != nil {
		return Set{}, err
	}

	set := Set{
		Filename:     NewFilename(),
		Preview:      preview,
		Full:         full,
		SourceFormat: string(img.Format),
		SourceWidth:  sourceWidth,
		SourceHeight: sourceHeight,
	}

	g.log.Debug().
		Str("filename", set.Filename).
		Str("source_format", set.SourceFormat).
		Int("source_width", sourceWidth).
		Int("source_height", sourceHeight).
		Int64("preview_bytes", preview.Size).
		Int64("full_bytes", full.Size).
		Msg("derivatives generated")

	return set, nil
}

func (g *Generator) render(img *codec.Image, profile Profile) (Derivative, error) {
	out, err := codec.Encode(img, profile.Width, profile.Quality, profile.Effort)
	if err != nil {
		return Derivative{}, fmt.Errorf("render %s: %w", profile.Name, err)
	}
	return Derivative{
		Data:   out.Data,
		Width:  out.Width,
		Height: out.Height,
		Size:   int64(len(out.Data)),
	}, nil
}

// NewFilename returns a random storage filename in the normalized format.
func NewFilename() string {
	return uuid.NewString() + "." + codec.Extension
}
