package control

import "solar-tracker/internal/models"

// Diagnostics is the LDR probe used while calibrating a tracker by hand
type Diagnostics struct {
	Top      int    `json:"top"`
	Bottom   int    `json:"bottom"`
	Left     int    `json:"left"`
	Right    int    `json:"right"`
	DiffV    int    `json:"diff_v"`
	DiffH    int    `json:"diff_h"`
	SuggestV string `json:"suggest_v"` // "^" up, "v" down, "-" hold
	SuggestH string `json:"suggest_h"` // "<" left, ">" right, "-" hold
}

// Diagnose computes the pair averages of a reading and the direction the panel should move
func Diagnose(reading *models.Reading) Diagnostics {
	d := Diagnostics{
		Top:    (reading.LDRTopLeft + reading.LDRTopRight) / 2,
		Bottom: (reading.LDRBottomLeft + reading.LDRBottomRight) / 2,
		Left:   (reading.LDRTopLeft + reading.LDRBottomLeft) / 2,
		Right:  (reading.LDRTopRight + reading.LDRBottomRight) / 2,
	}
	d.DiffV = d.Top - d.Bottom
	d.DiffH = d.Left - d.Right

	d.SuggestV = suggest(d.DiffV, "^", "v")
	d.SuggestH = suggest(d.DiffH, "<", ">")
	return d
}

func suggest(diff int, positive, negative string) string {
	if diff > Tolerance {
		return positive
	}
	if diff < -Tolerance {
		return negative
	}
	return "-"
}
