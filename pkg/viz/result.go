package viz

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/astromechza/plansync/pkg/geom"
	"github.com/astromechza/plansync/pkg/planning"
)

const (
	imageMargin = 20.0
	maxImageDim = 1024.0
	laneWidth   = 2.0
)

var landUseColors = map[planning.LandUse]color.RGBA{
	planning.LandUseResidential:  {R: 0x9c, G: 0xd0, B: 0x8f, A: 0xff},
	planning.LandUseCommercial:   {R: 0x8f, G: 0xb4, B: 0xd0, A: 0xff},
	planning.LandUseIndustrial:   {R: 0xd0, G: 0xb0, B: 0x8f, A: 0xff},
	planning.LandUseAgricultural: {R: 0xe8, G: 0xe0, B: 0x9a, A: 0xff},
	planning.LandUseRecreational: {R: 0x7f, G: 0xc9, B: 0xb0, A: 0xff},
}

// RenderResultPNG draws the lots, roads and intersections of result as a PNG,
// scaled to fit and labelled with each prototype's kind.
func RenderResultPNG(result *planning.PlanResult, w io.Writer) error {
	minX, minY, maxX, maxY := bounds(result)
	scale := 1.0
	if span := math.Max(maxX-minX, maxY-minY); span > 0 {
		scale = math.Min(1, maxImageDim/span)
	}
	width := int(math.Ceil((maxX-minX)*scale + 2*imageMargin))
	height := int(math.Ceil((maxY-minY)*scale + 2*imageMargin))
	project := func(p geom.Point) (float64, float64) {
		return (p.X-minX)*scale + imageMargin, (p.Y-minY)*scale + imageMargin
	}

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	ttfFont, err := truetype.Parse(gomono.TTF)
	if err != nil {
		return fmt.Errorf("failed to parse font: %w", err)
	}
	dc.SetFontFace(truetype.NewFace(ttfFont, &truetype.Options{Size: 10, DPI: 72, Hinting: font.HintingFull}))

	ids := result.SortedIDs()
	for _, kind := range []planning.PrototypeKind{planning.PrototypeLot, planning.PrototypeRoad, planning.PrototypeIntersection} {
		for _, id := range ids {
			p := result.Prototypes[id]
			if p.Kind != kind {
				continue
			}
			switch p.Kind {
			case planning.PrototypeLot:
				for i, point := range p.Path {
					x, y := project(point)
					if i == 0 {
						dc.MoveTo(x, y)
					} else {
						dc.LineTo(x, y)
					}
				}
				dc.ClosePath()
				dc.SetColor(landUseColors[p.LandUse])
				dc.FillPreserve()
				dc.SetColor(color.Black)
				dc.SetLineWidth(1)
				dc.Stroke()
				x, y := project(centroid(p.Path))
				dc.DrawStringAnchored(string(p.LandUse), x, y, 0.5, 0.5)
			case planning.PrototypeRoad:
				dc.SetColor(color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff})
				dc.SetLineWidth(math.Max(1, float64(p.LanesForward+p.LanesBackward)*laneWidth*scale))
				for i := 0; i+1 < len(p.Path); i++ {
					x1, y1 := project(p.Path[i])
					x2, y2 := project(p.Path[i+1])
					dc.DrawLine(x1, y1, x2, y2)
				}
				dc.Stroke()
				x, y := project(p.Path[0])
				dc.SetColor(color.Black)
				dc.DrawString(fmt.Sprintf("%d/%d", p.LanesForward, p.LanesBackward), x+3, y-3)
			case planning.PrototypeIntersection:
				x, y := project(p.Center)
				dc.SetColor(color.RGBA{R: 0xd0, G: 0x30, B: 0x30, A: 0xff})
				dc.DrawCircle(x, y, 4)
				dc.Fill()
			}
		}
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

func bounds(result *planning.PlanResult) (minX, minY, maxX, maxY float64) {
	first := true
	extend := func(p geom.Point) {
		if first {
			minX, maxX, minY, maxY = p.X, p.X, p.Y, p.Y
			first = false
			return
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	for _, p := range result.Prototypes {
		if p.Kind == planning.PrototypeIntersection {
			extend(p.Center)
		}
		for _, point := range p.Path {
			extend(point)
		}
	}
	return minX, minY, maxX, maxY
}

func centroid(ring []geom.Point) geom.Point {
	var c geom.Point
	for _, p := range ring {
		c.X += p.X
		c.Y += p.Y
	}
	if len(ring) > 0 {
		c.X /= float64(len(ring))
		c.Y /= float64(len(ring))
	}
	return c
}
