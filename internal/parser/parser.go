// internal/parser/parser.go
package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"emg-service/internal/model"
)

// Parse converts one text line into a sample. Surrounding whitespace is
// ignored; anything that is not a plain decimal number is rejected.
func Parse(line string) (model.Sample, bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return 0, false
	}

	// decimal defines the accepted grammar only. Its float conversion scales
	// by 10^|exponent| and stalls on lines like "1e-200000000".
	if _, err := decimal.NewFromString(text); err != nil {
		return 0, false
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}

	return model.Sample(f), true
}
