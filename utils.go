package aes67

import (
	"encoding/json"
	"reflect"

	"github.com/imdario/mergo"
	"github.com/pion/randutil"
)

type ptrTransformers struct{}

// overwrites pointer type
func (ptrTransformers) Transformer(tp reflect.Type) func(dst, src reflect.Value) error {
	if tp.Kind() == reflect.Ptr {
		return func(dst, src reflect.Value) error {
			if !src.IsNil() {
				if dst.CanSet() {
					dst.Set(src)
				} else {
					dst = src
				}
			}
			return nil
		}
	}
	return nil
}

var randGenerator = randutil.NewMathRandomGenerator()

// generateSSRC returns a random 32 bit synchronization source identifier.
func generateSSRC() uint32 {
	return randGenerator.Uint32()
}

// generateSessionID returns a random positive identifier usable as an SDP
// origin session id.
func generateSessionID() uint64 {
	return randGenerator.Uint64() & 0x7FFFFFFFFFFFFFFF
}

func clone(from, to interface{}) (err error) {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func override(dst, src interface{}) error {
	return mergo.Merge(dst, src,
		mergo.WithOverride,
		mergo.WithTypeCheck,
		mergo.WithTransformers(ptrTransformers{}),
	)
}
