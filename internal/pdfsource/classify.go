package pdfsource

import (
	"regexp"
)

// lineBlockMarker is a campus token alone on its line followed by a
// "Last, First" line. The compact layout prints the name on the token's line.
var lineBlockMarker = regexp.MustCompile(`(?:UM_ANN-ARBOR|UM_DEARBORN|UM_FLINT)[ \t]*\n[ \t]*[^\n,]+,[^\n]*\n`)

// Classify picks the layout for text. An explicit override other than
// FormatAuto is returned unchanged.
func Classify(text string, override Format) Format {
	if override != "" && override != FormatAuto {
		return override
	}
	if lineBlockMarker.MatchString(text) {
		return FormatLineBlock
	}
	return FormatCompact
}
