// Package didcore contains the W3C DID Core data model: DID URI parsing, DID Documents, verification methods and
// resolution results.
package didcore

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ErrInvalidURI is returned by Parse for input that is not a DID URI.
var ErrInvalidURI = errors.New("invalid DID URI")

const (
	pctEncodedPattern = `(?:%[0-9a-fA-F]{2})`
	idCharPattern     = `(?:[a-zA-Z0-9._-]|` + pctEncodedPattern + `)`
	methodPattern     = `([a-z0-9]+)`
	methodIDPattern   = `((?:` + idCharPattern + `+:)*` + idCharPattern + `+)`
	paramCharPattern  = `[a-zA-Z0-9_.:%-]`
	paramPattern      = `;` + paramCharPattern + `+=` + paramCharPattern + `*`
	paramsPattern     = `((?:` + paramPattern + `)*)`
	pathPattern       = `(/[^#?]*)?`
	queryPattern      = `(\?[^#]*)?`
	fragmentPattern   = `(#.*)?`
)

var didURIRegex = regexp.MustCompile(`^did:` + methodPattern + `:` + methodIDPattern + paramsPattern + pathPattern +
	queryPattern + fragmentPattern + `$`)

// Param is a single DID parameter (";name=value").
type Param struct {
	Name  string
	Value string
}

// DID is a parsed DID URI. The zero value is not a valid DID; instances come from Parse.
type DID struct {
	// URI is the DID without params, path, query or fragment, e.g. did:example:123
	URI string
	// URL is the full input, e.g. did:example:123/path?versionId=1#key-1
	URL string
	// Method is the DID method name, e.g. example
	Method string
	// ID is the method-specific identifier, e.g. 123
	ID string
	// Params are the DID parameters in the order they appear
	Params []Param
	// Path includes the leading slash
	Path string
	// Query excludes the leading question mark
	Query string
	// Fragment excludes the leading hash
	Fragment string
}

// Parse parses a DID URI per the W3C DID Core syntax.
func Parse(input string) (DID, error) {
	match := didURIRegex.FindStringSubmatch(input)
	if match == nil {
		return DID{}, errors.Wrapf(ErrInvalidURI, "%q", input)
	}

	did := DID{
		URI:    "did:" + match[1] + ":" + match[2],
		URL:    input,
		Method: match[1],
		ID:     match[2],
		Path:   match[4],
	}
	if match[3] != "" {
		for _, p := range strings.Split(match[3][1:], ";") {
			name, value, _ := strings.Cut(p, "=")
			did.Params = append(did.Params, Param{Name: name, Value: value})
		}
	}
	if match[5] != "" {
		did.Query = match[5][1:]
	}
	if match[6] != "" {
		did.Fragment = match[6][1:]
	}
	return did, nil
}

// MustParse is Parse for inputs known to be valid; it panics otherwise.
func MustParse(input string) DID {
	did, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return did
}

// Param returns the value of the named parameter.
func (d DID) Param(name string) (string, bool) {
	for _, p := range d.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// String returns the full DID URL.
func (d DID) String() string {
	if d.URL != "" {
		return d.URL
	}
	return d.URI
}

// IsEmpty reports whether d is the zero value.
func (d DID) IsEmpty() bool {
	return d.URI == ""
}

// VerificationMethodID returns the absolute id of a verification method with the given fragment.
func (d DID) VerificationMethodID(fragment string) string {
	return d.URI + "#" + strings.TrimPrefix(fragment, "#")
}

// MarshalText encodes the DID as its full URL.
func (d DID) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses a DID URL.
func (d *DID) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
