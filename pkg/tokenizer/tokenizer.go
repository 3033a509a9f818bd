// Package tokenizer extracts string literals from source files.
//
// Each file category has one Strategy. Strategies are lossy: they pull out the
// literal text a human could have typed to reference something (route names,
// controller actions, view names) and drop everything structural. A Strategy is
// a pure function of its input, which the token cache relies on.
package tokenizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/panbanda/janitor/pkg/parser"
)

// Kind identifies a tokenization strategy.
type Kind string

const (
	KindDefault    Kind = "default"
	KindPHP        Kind = "php"
	KindBlade      Kind = "blade"
	KindTwig       Kind = "twig"
	KindJSON       Kind = "json"
	KindYAML       Kind = "yaml"
	KindTOML       Kind = "toml"
	KindXML        Kind = "xml"
	KindJavaScript Kind = "javascript"
	KindTypeScript Kind = "typescript"
)

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Strategy converts raw file bytes into an ordered list of string tokens.
// Structured strategies return an error when the input does not parse;
// the default strategy never fails.
type Strategy interface {
	Tokenize(src []byte) ([]string, error)
}

// Select picks the strategy kind for a file. Every path maps to exactly one kind.
func Select(path string) Kind {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(base))

	switch ext {
	case ".php":
		if strings.HasSuffix(base, ".blade.php") {
			return KindBlade
		}
		return KindPHP
	case ".twig":
		return KindTwig
	case ".json":
		return KindJSON
	case ".yml", ".yaml":
		return KindYAML
	case ".toml":
		return KindTOML
	case ".xml", ".xlf", ".xliff":
		return KindXML
	case ".js", ".mjs", ".cjs", ".jsx":
		return KindJavaScript
	case ".ts", ".mts", ".cts", ".tsx":
		return KindTypeScript
	default:
		return KindDefault
	}
}

// For returns the strategy for a kind. Unknown kinds get the default strategy.
func For(kind Kind) Strategy {
	switch kind {
	case KindPHP:
		return sourceStrategy{lang: parser.LangPHP}
	case KindBlade:
		return bladeStrategy
	case KindTwig:
		return twigStrategy
	case KindJSON:
		return jsonStrategy{}
	case KindYAML:
		return yamlStrategy{}
	case KindTOML:
		return tomlStrategy{}
	case KindXML:
		return xmlStrategy{}
	case KindJavaScript:
		return sourceStrategy{lang: parser.LangJavaScript}
	case KindTypeScript:
		return sourceStrategy{lang: parser.LangTypeScript}
	default:
		return Default()
	}
}

// FallbackError reports that a strategy failed and the default strategy
// produced the tokens instead.
type FallbackError struct {
	Kind Kind
	Err  error
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%s tokenizer failed, used default: %v", e.Kind, e.Err)
}

func (e *FallbackError) Unwrap() error {
	return e.Err
}

// Tokenize extracts tokens from a file's bytes using the strategy selected for
// its path. The returned tokens are always usable: when the selected strategy
// fails, the default strategy's tokens are returned along with a *FallbackError.
func Tokenize(path string, src []byte) ([]string, error) {
	kind := Select(path)
	tokens, err := safeTokenize(For(kind), src)
	if err == nil {
		return tokens, nil
	}

	fallback, _ := Default().Tokenize(src)
	return fallback, &FallbackError{Kind: kind, Err: err}
}

// safeTokenize converts a panicking strategy into an error so one bad file
// never aborts a scan.
func safeTokenize(s Strategy, src []byte) (tokens []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Tokenize(src)
}
