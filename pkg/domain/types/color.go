package types

import (
	"regexp"

	"github.com/m-mizutani/goerr/v2"
)

// Color is a display color in #rrggbb form
type Color string

// DefaultColor is applied when a tag is created without a color
const DefaultColor Color = "#c7c7c7"

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks if the Color is a #rrggbb hex string
func (c Color) Validate() error {
	if !colorPattern.MatchString(string(c)) {
		return goerr.New("color must be a #rrggbb hex string", goerr.V("color", c))
	}
	return nil
}

// OrDefault returns DefaultColor when c is empty
func (c Color) OrDefault() Color {
	if c == "" {
		return DefaultColor
	}
	return c
}

func (c Color) String() string {
	return string(c)
}
