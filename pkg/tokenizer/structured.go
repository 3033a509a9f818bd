package tokenizer

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pelletier/go-toml"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// jsonStrategy streams tokens so string values come out in document order.
type jsonStrategy struct{}

func (jsonStrategy) Tokenize(src []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(src))
	dec.UseNumber()

	// One frame per open container; keyNext is only meaningful for objects.
	type frame struct {
		object  bool
		keyNext bool
	}
	var stack []frame
	var out []string

	valueDone := func() {
		if n := len(stack); n > 0 && stack[n-1].object {
			stack[n-1].keyNext = true
		}
	}

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if len(stack) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			break
		}
		if err != nil {
			return nil, err
		}

		switch v := tok.(type) {
		case json.Delim:
			switch v {
			case '{':
				stack = append(stack, frame{object: true, keyNext: true})
			case '[':
				stack = append(stack, frame{})
			default:
				stack = stack[:len(stack)-1]
				valueDone()
			}
		case string:
			if n := len(stack); n > 0 && stack[n-1].object && stack[n-1].keyNext {
				stack[n-1].keyNext = false
				continue
			}
			if v != "" {
				out = append(out, v)
			}
			valueDone()
		default:
			valueDone()
		}
	}
	return out, nil
}

// yamlStrategy walks every document and keeps string scalars in value position.
type yamlStrategy struct{}

func (yamlStrategy) Tokenize(src []byte) ([]string, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	var out []string
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		out = walkYAML(&doc, out)
	}
	return out, nil
}

func walkYAML(n *yaml.Node, out []string) []string {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			out = walkYAML(c, out)
		}
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			out = walkYAML(n.Content[i], out)
		}
	case yaml.ScalarNode:
		if n.ShortTag() == "!!str" && n.Value != "" {
			out = append(out, n.Value)
		}
	case yaml.AliasNode:
		// The anchored value was already emitted where it was defined.
	}
	return out
}

// tomlStrategy emits string values with keys visited in sorted order.
type tomlStrategy struct{}

func (tomlStrategy) Tokenize(src []byte) ([]string, error) {
	tree, err := toml.LoadBytes(src)
	if err != nil {
		return nil, err
	}
	return walkTOML(tree.ToMap(), nil), nil
}

func walkTOML(v any, out []string) []string {
	switch val := v.(type) {
	case string:
		if val != "" {
			out = append(out, val)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = walkTOML(val[k], out)
		}
	case []map[string]any:
		for _, item := range val {
			out = walkTOML(item, out)
		}
	case []any:
		for _, item := range val {
			out = walkTOML(item, out)
		}
	}
	return out
}

// xmlStrategy keeps attribute values and element text.
type xmlStrategy struct{}

func (xmlStrategy) Tokenize(src []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(src))
	dec.CharsetReader = charsetReader

	var out []string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			for _, attr := range t.Attr {
				if attr.Name.Space == "xmlns" || attr.Name.Local == "xmlns" {
					continue
				}
				if attr.Value != "" {
					out = append(out, attr.Value)
				}
			}
		case xml.CharData:
			if text := strings.TrimSpace(string(t)); text != "" {
				out = append(out, text)
			}
		}
	}
	return out, nil
}

// charsetReader decodes documents that declare a non UTF-8 encoding.
func charsetReader(label string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unsupported xml encoding %q: %w", label, err)
	}
	return enc.NewDecoder().Reader(input), nil
}
