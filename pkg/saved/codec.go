package saved

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Codec encodes values for a Store.
type Codec interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// YAMLCodec encodes values as YAML documents. Panics raised by custom
// marshalers are returned as errors.
type YAMLCodec struct{}

func (YAMLCodec) Name() string { return "yaml" }

func (YAMLCodec) Marshal(v any) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("yaml marshal panic: %v", r)
		}
	}()
	return yaml.Marshal(v)
}

func (YAMLCodec) Unmarshal(data []byte, v any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("yaml unmarshal panic: %v", r)
		}
	}()
	return yaml.Unmarshal(data, v)
}
