package config

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// unmarshalStrict decodes YAML rejecting unknown fields, so typos in config
// files fail fast at startup instead of being silently ignored.
func unmarshalStrict(b []byte, out interface{}) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && err.Error() != "EOF" {
		return err
	}
	return nil
}
