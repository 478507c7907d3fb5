package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/grdb/internal/ir"
)

// yamlSession mirrors ir.Session for YAML input. Annotations are decoded
// from nodes so each value keeps the type its tag resolved to.
type yamlSession struct {
	Device   ir.DeviceMetadata `yaml:"device"`
	Config   ir.RasterConfig   `yaml:"config"`
	Metadata yamlMetadata      `yaml:"metadata"`
}

type yamlMetadata struct {
	ir.RasterMetadata `yaml:",inline"`
	Annotations       []yamlAnnotation `yaml:"annotations"`
}

type yamlAnnotation struct {
	Key   string    `yaml:"key"`
	Value yaml.Node `yaml:"value"`
}

var yamlLine = regexp.MustCompile(`line (\d+)`)

// LoadYAML decodes data strictly: unknown fields are errors.
func LoadYAML(name string, data []byte) (ir.Session, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var doc yamlSession
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return ir.Session{}, &LoadError{Code: ErrCodeSchema, Message: "empty session definition", File: name, Err: err}
		}
		return ir.Session{}, yamlLoadError(name, err)
	}

	session := ir.Session{
		Device:   doc.Device,
		Config:   doc.Config,
		Metadata: doc.Metadata.RasterMetadata,
	}
	if doc.Metadata.Annotations != nil {
		session.Metadata.Annotations = make([]ir.KVPair, 0, len(doc.Metadata.Annotations))
	}
	for _, a := range doc.Metadata.Annotations {
		v, err := annotationValue(&a.Value)
		if err != nil {
			return ir.Session{}, &LoadError{
				Code:    ErrCodeSchema,
				Message: fmt.Sprintf("annotation %q: %v", a.Key, err),
				File:    name,
				Line:    a.Value.Line,
				Column:  a.Value.Column,
				Err:     err,
			}
		}
		session.Metadata.Annotations = append(session.Metadata.Annotations, ir.KVPair{Key: a.Key, Value: v})
	}

	return validated(name, session)
}

func annotationValue(n *yaml.Node) (ir.AnnotationValue, error) {
	if n.Kind != yaml.ScalarNode {
		return nil, fmt.Errorf("value must be a string, int or float scalar")
	}
	switch n.ShortTag() {
	case "!!str":
		return ir.String(n.Value), nil
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return ir.Int(v), nil
	case "!!float":
		var v float64
		if err := n.Decode(&v); err != nil {
			return nil, err
		}
		return ir.Float(v), nil
	default:
		return nil, fmt.Errorf("value must be a string, int or float, got %s", n.ShortTag())
	}
}

// yamlLoadError turns a decoder error into a LoadError. Type errors are
// schema mismatches; anything else is a syntax error.
func yamlLoadError(name string, err error) *LoadError {
	code := ErrCodeSyntax
	msg := err.Error()

	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		code = ErrCodeSchema
		msg = te.Errors[0]
	}

	le := &LoadError{Code: code, Message: msg, File: name, Err: err}
	if m := yamlLine.FindStringSubmatch(msg); m != nil {
		le.Line, _ = strconv.Atoi(m[1])
	}
	return le
}
