// Package factory creates the right statement parser for a wire format and
// provides the single Parse entry point used by import.
package factory

import (
	"fmt"

	"finrecon/bankrecon/internal/camtparser"
	"finrecon/bankrecon/internal/csvparser"
	"finrecon/bankrecon/internal/mt940parser"
	"finrecon/bankrecon/internal/ofxparser"
	"finrecon/bankrecon/internal/parser"
)

// GetParser returns a parser for the given format. FormatAuto is resolved
// by Parse, not here.
func GetParser(format parser.Format) (parser.Parser, error) {
	switch format {
	case parser.FormatMT940:
		return mt940parser.New(), nil
	case parser.FormatCAMT053:
		return camtparser.New(), nil
	case parser.FormatCSV:
		return csvparser.New(), nil
	case parser.FormatOFX:
		return ofxparser.New(), nil
	default:
		return nil, fmt.Errorf("unknown statement format: %s", format)
	}
}

// Parse resolves FormatAuto via content sniffing and dispatches to the
// format parser.
func Parse(data []byte, format parser.Format) (*parser.ParsedStatement, error) {
	if format == parser.FormatAuto || format == "" {
		detected, err := parser.Detect(data)
		if err != nil {
			return nil, fmt.Errorf("format autodetection failed: %w", err)
		}
		format = detected
	}

	p, err := GetParser(format)
	if err != nil {
		return nil, err
	}
	return p.Parse(data)
}
