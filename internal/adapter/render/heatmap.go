// Package render draws quicklook heatmaps of extracted channel series: one
// row per scan, one column per window pixel, colored by radiance. The
// pictures exist to eyeball a run's output without loading the CSV anywhere.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/JvCastelo/masters-project/internal/domain"
)

const (
	dpi             = 120.0
	defaultFontSize = 12.0
	defaultCellSize = 8

	topBorder    = 40
	leftBorder   = 110
	bottomBorder = 40
	rightBorder  = 20

	tickLength  = 5
	targetTicks = 12

	// Cold-to-hot hue sweep, low radiance blue, high radiance red.
	hueStart = 236.0
	hueEnd   = 0.0
)

// nullColor marks cells whose reading was a fill value.
var nullColor = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// Renderer draws heatmaps with a fixed font and cell size.
type Renderer struct {
	cellSize int
	context  *freetype.Context
	fontFace font.Face
}

// NewRenderer creates a renderer; cellSize <= 0 selects the default.
func NewRenderer(cellSize int) (*Renderer, error) {
	if cellSize <= 0 {
		cellSize = defaultCellSize
	}

	parsedFont, err := freetype.ParseFont(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(defaultFontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &Renderer{
		cellSize: cellSize,
		context:  ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    defaultFontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
	}, nil
}

func (r *Renderer) Close() error {
	if r.fontFace != nil {
		return r.fontFace.Close()
	}
	return nil
}

// Heatmap renders a channel series. Rows are scans in record order, columns
// follow the series' pixel columns; the color scale spans the series' own
// valid value range.
func (r *Renderer) Heatmap(series domain.ChannelSeries, title string) (*image.RGBA, error) {
	if len(series.Records) == 0 || len(series.Columns) == 0 {
		return nil, fmt.Errorf("channel %s: nothing to render", series.Channel)
	}
	lo, hi, ok := valueBounds(series)
	if !ok {
		return nil, fmt.Errorf("channel %s: every reading is null", series.Channel)
	}

	gridW := len(series.Columns) * r.cellSize
	gridH := len(series.Records) * r.cellSize
	img := image.NewRGBA(image.Rect(0, 0, leftBorder+gridW+rightBorder, topBorder+gridH+bottomBorder))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for y, rec := range series.Records {
		for x, px := range rec.Pixels {
			cell := image.Rect(
				leftBorder+x*r.cellSize,
				topBorder+y*r.cellSize,
				leftBorder+(x+1)*r.cellSize,
				topBorder+(y+1)*r.cellSize,
			)
			draw.Draw(img, cell, image.NewUniform(cellColor(px, lo, hi)), image.Point{}, draw.Src)
		}
	}

	r.context.SetClip(img.Bounds())
	r.context.SetDst(img)

	if err := r.drawTitle(title); err != nil {
		return nil, err
	}
	if err := r.drawTimeScale(img, series); err != nil {
		return nil, err
	}
	if err := r.drawInfoBar(img, series, lo, hi); err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Renderer) drawTitle(title string) error {
	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	pt := freetype.Pt(leftBorder, topBorder-fontHeight/2)
	if _, err := r.context.DrawString(title, pt); err != nil {
		return fmt.Errorf("drawing title: %w", err)
	}
	return nil
}

func (r *Renderer) drawTimeScale(img *image.RGBA, series domain.ChannelSeries) error {
	stride := len(series.Records) / targetTicks
	if stride < 1 {
		stride = 1
	}

	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()

	for i := 0; i < len(series.Records); i += stride {
		imgY := topBorder + i*r.cellSize
		for x := leftBorder - tickLength; x < leftBorder; x++ {
			img.Set(x, imgY, color.Black)
		}

		label := series.Records[i].Timestamp.UTC().Format("01-02 15:04")
		pt := freetype.Pt(8, imgY+fontHeight/2-metrics.Descent.Round())
		if _, err := r.context.DrawString(label, pt); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (r *Renderer) drawInfoBar(img *image.RGBA, series domain.ChannelSeries, lo, hi float64) error {
	info := fmt.Sprintf("%d scans x %d pixels; range %.2f to %.2f",
		len(series.Records), len(series.Columns), lo, hi)

	metrics := r.fontFace.Metrics()
	fontHeight := (metrics.Ascent + metrics.Descent).Round()
	textY := img.Bounds().Max.Y - (bottomBorder-fontHeight)/2 - metrics.Descent.Round()

	if _, err := r.context.DrawString(info, freetype.Pt(leftBorder, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}
	return nil
}

// valueBounds finds the min and max over valid readings; ok is false when
// the series has none.
func valueBounds(series domain.ChannelSeries) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, rec := range series.Records {
		for _, px := range rec.Pixels {
			if !px.Valid {
				continue
			}
			lo = math.Min(lo, px.Value)
			hi = math.Max(hi, px.Value)
			ok = true
		}
	}
	return lo, hi, ok
}

func cellColor(px domain.Reading, lo, hi float64) color.Color {
	if !px.Valid {
		return nullColor
	}
	norm := 0.5
	if hi > lo {
		norm = (px.Value - lo) / (hi - lo)
	}
	hue := hueStart - norm*(hueStart-hueEnd)
	hue = math.Min(math.Max(hue, hueEnd), hueStart)
	return colorful.Hsv(hue, 1, 0.90)
}

// WritePNG encodes img to path, creating parent directories as needed.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	err = png.Encode(f, img)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
