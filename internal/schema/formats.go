package schema

import (
	"regexp"

	"github.com/xeipuuv/gojsonschema"
)

// epsgFormatChecker implements gojsonschema.FormatChecker for CRS references
// such as "EPSG:32633" or "urn:ogc:def:crs:EPSG::4326".
type epsgFormatChecker struct{}

var epsgPattern = regexp.MustCompile(`^(urn:ogc:def:crs:)?EPSG::?\d{4,5}$`)

// IsFormat validates that the input names an EPSG code.
func (c epsgFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		return epsgPattern.MatchString(s)
	}
	return false
}

// hexColorFormatChecker implements gojsonschema.FormatChecker for class
// colours such as "#1f77b4".
type hexColorFormatChecker struct{}

var hexColorPattern = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// IsFormat validates that the input is a six-digit hex colour.
func (c hexColorFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		return hexColorPattern.MatchString(s)
	}
	return false
}

// RegisterCustomFormats registers the epsg_code and hex_color formats.
func RegisterCustomFormats() {
	gojsonschema.FormatCheckers.Add("epsg_code", epsgFormatChecker{})
	gojsonschema.FormatCheckers.Add("hex_color", hexColorFormatChecker{})
}
