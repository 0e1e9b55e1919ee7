// Copyright 2019 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads the FTL_* configuration keys spec.md §6 names from a
// flat YAML document, falling back to registered per-key defaults.
package config

import (
	"fmt"
	"io/ioutil"
	"strconv"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"

	logger "github.com/intel/ftlsim/pkg/log"
)

var log = logger.NewLogger("config")

// Section groups configuration keys the way SimpleSSD's conf.readX(section, key) does.
type Section string

// Reader reads typed FTL_* configuration values, falling back to defaults
// registered with RegisterDefault when a key is absent from the loaded document.
type Reader struct {
	values map[string]interface{}
}

var defaults = map[string]interface{}{}

// RegisterDefault registers the default value returned for a key that is
// absent from a loaded document. Mirrors the teacher's per-module default
// registration in pkg/config/default.go, flattened to a single key space
// since this reader has no notion of reconfiguration modules.
func RegisterDefault(key string, value interface{}) {
	defaults[key] = value
}

// New creates an empty Reader, pre-populated with no overrides.
func New() *Reader {
	return &Reader{values: map[string]interface{}{}}
}

// ParseYAMLFile loads key/value overrides from a YAML file.
func ParseYAMLFile(path string) (*Reader, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: failed to read %q", path)
	}
	return ParseYAMLData(raw)
}

// ParseYAMLData loads key/value overrides from raw YAML data.
func ParseYAMLData(raw []byte) (*Reader, error) {
	values := map[string]interface{}{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, errors.Wrap(err, "config: failed to parse YAML")
	}
	return &Reader{values: values}, nil
}

func (r *Reader) lookup(section Section, key string) (interface{}, bool) {
	full := string(section) + "." + key
	if v, ok := r.values[full]; ok {
		return v, true
	}
	if v, ok := defaults[full]; ok {
		return v, true
	}
	return nil, false
}

func (r *Reader) mustLookup(section Section, key string) interface{} {
	v, ok := r.lookup(section, key)
	if !ok {
		log.Error("missing required configuration key %s.%s", section, key)
		panic(fmt.Sprintf("config: missing required key %s.%s", section, key))
	}
	return v
}

// ReadBoolean reads a boolean configuration value.
func (r *Reader) ReadBoolean(section Section, key string) bool {
	switch v := r.mustLookup(section, key).(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			panic(fmt.Sprintf("config: %s.%s is not a boolean: %v", section, key, v))
		}
		return b
	default:
		panic(fmt.Sprintf("config: %s.%s is not a boolean: %v", section, key, v))
	}
}

// ReadDouble reads a floating point configuration value.
func (r *Reader) ReadDouble(section Section, key string) float64 {
	switch v := r.mustLookup(section, key).(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			panic(fmt.Sprintf("config: %s.%s is not a number: %v", section, key, v))
		}
		return f
	default:
		panic(fmt.Sprintf("config: %s.%s is not a number: %v", section, key, v))
	}
}

// ReadUint reads an unsigned integer configuration value.
func (r *Reader) ReadUint(section Section, key string) uint64 {
	f := r.ReadDouble(section, key)
	if f < 0 {
		panic(fmt.Sprintf("config: %s.%s must be non-negative: %v", section, key, f))
	}
	return uint64(f)
}

// ReadInt reads a signed integer configuration value.
func (r *Reader) ReadInt(section Section, key string) int64 {
	return int64(r.ReadDouble(section, key))
}

// ReadUintOr reads an unsigned integer configuration value, returning def
// if the key is absent from both the loaded document and the registered
// defaults, instead of panicking. Intended for truly optional keys outside
// any module's required FTL_*/PAL_* set.
func (r *Reader) ReadUintOr(section Section, key string, def uint64) uint64 {
	if _, ok := r.lookup(section, key); !ok {
		return def
	}
	return r.ReadUint(section, key)
}

// ReadString reads a string configuration value.
func (r *Reader) ReadString(section Section, key string) string {
	switch v := r.mustLookup(section, key).(type) {
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
