// Package crosscheck runs this repository's hand-rolled canonicalizer
// alongside two independent ecosystem JCS implementations, to catch
// canonicalizer drift before it reaches the signing path. Neither
// third-party library sorts object keys by UTF-16 code unit like RFC
// 8785 §3.2.3 and this protocol's conformance vectors require — both
// sort by native Go string comparison, i.e. UTF-8 byte order, which
// only differs from UTF-16 order on inputs containing characters
// outside the Basic Multilingual Plane. Neither is used on the
// signing/hashing path for that reason; this package exists purely to
// report where they agree and where they don't.
package crosscheck

import (
	"encoding/json"

	gowebpki "github.com/gowebpki/jcs"
	ucarion "github.com/ucarion/jcs"

	"github.com/provara-protocol/provara-core/internal/canon"
)

// Report captures one value's canonical form under each implementation,
// plus whether they all agree.
type Report struct {
	Core     string
	Ucarion  string
	Gowebpki string
	Agree    bool
}

// Agree canonicalizes v under this package's codec and under both
// third-party libraries, returning a Report describing any divergence.
func Agree(v canon.Value) (*Report, error) {
	core, err := canon.CanonicalToString(v)
	if err != nil {
		return nil, err
	}

	raw, err := canon.Canonicalize(v)
	if err != nil {
		return nil, err
	}

	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, err
	}

	ucarionOut, err := ucarion.Format(normalized)
	if err != nil {
		return nil, err
	}

	gowebpkiOut, err := gowebpki.Transform(raw)
	if err != nil {
		return nil, err
	}

	r := &Report{
		Core:     core,
		Ucarion:  string(ucarionOut),
		Gowebpki: string(gowebpkiOut),
	}
	r.Agree = r.Core == r.Ucarion && r.Core == r.Gowebpki
	return r, nil
}
