package domain

import "math/rand/v2"

// PaletteColor is a named tag color.
type PaletteColor struct {
	Name string `json:"name"`
	Hex  string `json:"hex"`
}

// Palette is the fixed set of colors offered for tags.
var Palette = []PaletteColor{
	{"tomato", "#ff6347"},
	{"cornflowerblue", "#6495ed"},
	{"blueviolet", "#8a2be2"},
	{"orange", "#ffa500"},
	{"lime", "#00ff00"},
	{"green", "#008000"},
	{"goldenrod", "#daa520"},
	{"dodgerblue", "#1e90ff"},
	{"magenta", "#ff00ff"},
	{"slateblue", "#6a5acd"},
	{"teal", "#00ebdb"},
	{"mintgreen", "#98FB98"},
	{"lightpink", "#FFC0CB"},
	{"lightpurple", "#E4C0FF"},
	{"lightblue", "#ADD8E6"},
	{"lightsalmon", "#FFA07A"},
}

// RandomColor returns the hex value of a random palette color.
func RandomColor() string {
	return Palette[rand.IntN(len(Palette))].Hex
}
