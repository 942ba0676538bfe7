package schedule

import (
	"io"
	"io/ioutil"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.eventsched.dev/core/allocator"
	"gopkg.in/yaml.v2"
)

// DecodeEvents decodes a YAML sequence of EventRequests from |r|, eg:
//
//	- title: Opening keynote
//	  start: "09:00"
//	  end: "10:00"
//	  requires: {projectors: 1, mikes: 2, chairs: 5}
//	- title: Workshop
//	  requires: {chairs: 3, markers: 2}
//
// Unknown fields are an error. Requests are not validated against any Kinds;
// that's done by the Allocator when they're submitted.
func DecodeEvents(r io.Reader) ([]allocator.EventRequest, error) {
	var out []allocator.EventRequest

	if b, err := ioutil.ReadAll(r); err != nil {
		return nil, errors.WithMessage(err, "reading events")
	} else if err = yaml.UnmarshalStrict(b, &out); err != nil {
		return nil, errors.WithMessage(err, "decoding events")
	}
	return out, nil
}

// LoadEvents loads EventRequests from |path| of the Fs. If |path| is "-",
// Stdin is read instead.
func LoadEvents(fs afero.Fs, path string) ([]allocator.EventRequest, error) {
	if path == "-" {
		return DecodeEvents(Stdin)
	}
	var f, err = fs.Open(path)
	if err != nil {
		return nil, errors.WithMessagef(err, "opening events %s", path)
	}
	defer f.Close()

	out, err := DecodeEvents(f)
	if err != nil {
		return nil, errors.WithMessage(err, path)
	}
	return out, nil
}
