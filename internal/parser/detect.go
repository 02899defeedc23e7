package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/xmlpath.v2"
)

// iso20022Namespace is the stable prefix of all camt.053 document
// namespaces.
const iso20022Namespace = "urn:iso:std:iso:20022"

// Detect sniffs the wire format from content signatures: MT940 block or tag
// markers, the ISO20022 XML namespace, the OFX header, and finally a CSV
// delimiter scan. It returns an error when no signature matches.
func Detect(data []byte) (Format, error) {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty input")
	}

	if isMT940(trimmed) {
		return FormatMT940, nil
	}
	if isISO20022(trimmed) {
		return FormatCAMT053, nil
	}
	if isOFX(trimmed) {
		return FormatOFX, nil
	}
	if detectDelimiter(trimmed) != 0 {
		return FormatCSV, nil
	}
	return "", fmt.Errorf("unrecognized statement format")
}

func isMT940(data []byte) bool {
	head := data
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("{1:")) || bytes.HasPrefix(head, []byte(":20:")) ||
		bytes.Contains(head, []byte("\n:20:"))
}

func isISO20022(data []byte) bool {
	if !bytes.HasPrefix(data, []byte("<")) {
		return false
	}
	root, err := xmlpath.Parse(bytes.NewReader(data))
	if err != nil {
		return false
	}
	path := xmlpath.MustCompile("/Document")
	if !path.Exists(root) {
		return false
	}
	// The namespace declaration survives as raw text; a plain scan keeps
	// this independent of xmlpath's namespace handling.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	return bytes.Contains(head, []byte(iso20022Namespace))
}

func isOFX(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	upper := bytes.ToUpper(head)
	return bytes.Contains(upper, []byte("OFXHEADER")) || bytes.HasPrefix(upper, []byte("<OFX>"))
}

// detectDelimiter scans the header line for the delimiter candidates and
// returns the one that splits it into the most fields, or 0 when the line
// does not look like delimited text.
func detectDelimiter(data []byte) rune {
	line := string(data)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}

	best := rune(0)
	bestCount := 0
	for _, delim := range []rune{',', ';', '\t'} {
		n := strings.Count(line, string(delim))
		if n > bestCount {
			best = delim
			bestCount = n
		}
	}
	return best
}

// DetectDelimiter exposes the CSV delimiter scan to the CSV parser.
func DetectDelimiter(data []byte) rune {
	return detectDelimiter(bytes.TrimLeft(data, " \t\r\n\ufeff"))
}
