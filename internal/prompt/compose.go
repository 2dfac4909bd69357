package prompt

import (
	"fmt"
	"strings"
)

// Size is the physical tattoo size token selected by the user.
type Size string

const (
	Size1x1 Size = "1x1"
	Size2x2 Size = "2x2"
	Size3x3 Size = "3x3"
	Size4x4 Size = "4x4"
	Size5x5 Size = "5x5"

	// DefaultSize is used when the token is missing or unknown.
	DefaultSize = Size3x3
)

// Constraints bounds how busy a design may be for a given size.
type Constraints struct {
	MaxLines    int
	MaxCircles  int
	Design      string
	Composition string
	Detail      string
	Elements    string
	CanvasShare int
	Placement   string
	BlankRest   bool
}

var sizeConstraints = map[Size]Constraints{
	Size1x1: {MaxLines: 5, MaxCircles: 1, Design: "extremely minimal design", Composition: "ultra simple composition", Detail: "minimal detail", Elements: "2-3", CanvasShare: 20, Placement: "tiny design in the center", BlankRest: true},
	Size2x2: {MaxLines: 8, MaxCircles: 2, Design: "very simple design", Composition: "minimal composition", Detail: "minimal detail", Elements: "3-4", CanvasShare: 30, Placement: "small design in the center"},
	Size3x3: {MaxLines: 12, MaxCircles: 3, Design: "simple design", Composition: "balanced composition", Detail: "moderate detail", Elements: "4-5", CanvasShare: 40, Placement: "medium design in the center"},
	Size4x4: {MaxLines: 15, MaxCircles: 4, Design: "balanced design", Composition: "moderate composition", Detail: "moderate detail", Elements: "5-6", CanvasShare: 50, Placement: "balanced design in the center"},
	Size5x5: {MaxLines: 20, MaxCircles: 5, Design: "balanced design", Composition: "moderate composition", Detail: "moderate detail", Elements: "6-7", CanvasShare: 60, Placement: "larger design in the center"},
}

// surfaceClause is appended to every prompt before the size constraints.
const surfaceClause = "pure white background, only circles and straight lines allowed"

// baseStyle lists the rendering styles the model must avoid and the flash
// tattoo look it should aim for.
var baseStyle = strings.Join([]string{
	"ultra minimal design", "extremely simple geometric composition", "clean white background",
	"no shading", "no color", "no details", "no background elements", "no textures", "no gradients",
	"no crosshatching", "no stippling", "no dotwork", "no watercolor effects", "no realistic elements",
	"no 3D effects", "no perspective", "flat design", "iconic style", "timeless tattoo design",
	"classic flash art tattoo sketch", "extremely simplified version", "minimal detail", "bold and clean",
	"easy to tattoo", "tattoo artist friendly", "simple enough to be recognizable from a distance",
	"iconic and memorable with minimal elements", "like drawn with a single pen in one continuous motion",
	"hand sketched quality", "organic line work", "imperfect but charming", "like a quick doodle",
	"extremely basic and simple", "like drawn by a human hand in 5 seconds", "pure geometric minimalism",
	"clean white background", "no extra elements", "no decorative details", "no ornamental elements", "no complex patterns",
	"no intricate details", "no fine lines", "no thin lines", "no small elements", "no tiny details",
	"no small shapes", "no complex shapes", "no overlapping shapes", "no intersecting lines",
	"no crossing lines", "no curved lines except circles", "only circles and straight lines",
	"basic geometric forms", "elementary shapes", "fundamental shapes", "primitive shapes",
	"essential shapes only", "pure geometric minimalism", "absolute minimalism", "extreme simplicity", "pure white background",
	"clean white space", "empty white background", "solid white background", "clean white background", "minimalist geometric composition",
	"leave plenty of empty space", "use minimal space", "design should be small and centered",
	"avoid filling the entire space", "keep the design compact and minimal", "leave white space around the design",
	"design should float in the center with empty space around it", "minimal use of canvas space",
	"design should be small and elegant", "leave generous white space", "design should be contained and not spread out",
}, ", ")

// Sizes returns the supported size tokens from smallest to largest.
func Sizes() []Size {
	return []Size{Size1x1, Size2x2, Size3x3, Size4x4, Size5x5}
}

// ParseSize normalizes a free-form token. Unknown values map to DefaultSize.
func ParseSize(raw string) Size {
	s := Size(strings.ToLower(strings.TrimSpace(raw)))
	if s.Valid() {
		return s
	}
	return DefaultSize
}

// Valid reports whether s is one of the supported tokens.
func (s Size) Valid() bool {
	_, ok := sizeConstraints[s]
	return ok
}

// ConstraintsFor returns the ceilings for s, falling back to DefaultSize.
func ConstraintsFor(s Size) Constraints {
	if c, ok := sizeConstraints[s]; ok {
		return c
	}
	return sizeConstraints[DefaultSize]
}

// SizeClause renders the size specific constraint clause including the base style.
func SizeClause(s Size) string {
	c := ConstraintsFor(s)
	parts := []string{
		fmt.Sprintf("maximum %d lines total", c.MaxLines),
		fmt.Sprintf("maximum %d %s", c.MaxCircles, plural(c.MaxCircles, "circle", "circles")),
		c.Design,
		c.Composition,
		c.Detail,
		fmt.Sprintf("maximum %s elements total", c.Elements),
	}
	usage := fmt.Sprintf("use only %d%% of the image space", c.CanvasShare)
	if c.BlankRest {
		usage += ", rest should be blank with no elements"
	}
	parts = append(parts, usage, c.Placement, baseStyle)
	return strings.Join(parts, ", ")
}

// Compose enriches the user prompt with the fixed surface clause and the
// constraints for the requested size.
func Compose(userPrompt string, s Size) string {
	return strings.Join([]string{strings.TrimSpace(userPrompt), surfaceClause, SizeClause(s)}, ", ")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
