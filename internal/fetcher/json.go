package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		if delim, ok := tok.(json.Delim); !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}

// ReadLenientObjects decodes either a JSON array of objects or a stream of
// concatenated top-level objects. Text between objects is ignored and
// objects that fail to decode are logged and skipped.
func ReadLenientObjects[T any](r io.Reader) ([]T, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "json: read input")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	if data[0] == '[' {
		if out, err := collectArray[T](data); err == nil {
			return out, nil
		}
	}

	var out []T
	for i, raw := range splitObjects(data) {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			zap.L().Warn("json: skipping malformed object",
				zap.Int("index", i),
				zap.Error(err),
			)
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func collectArray[T any](data []byte) ([]T, error) {
	ch, errCh := DecodeJSONArray[T](context.Background(), bytes.NewReader(data))
	out := make([]T, 0)
	for item := range ch {
		out = append(out, item)
	}
	return out, <-errCh
}

// splitObjects returns the top-level {...} spans of data. Braces inside
// string literals are not counted.
func splitObjects(data []byte) [][]byte {
	var (
		spans    [][]byte
		depth    int
		start    = -1
		inString bool
		escaped  bool
	)
	for i, c := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 && start >= 0 {
				spans = append(spans, data[start:i+1])
				start = -1
			}
		}
	}
	return spans
}

// WriteJSON writes v as indented UTF-8 JSON, creating parent directories.
// Non-ASCII text is written as is.
func WriteJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "json: create dir %s", dir)
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "json: encode")
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return eris.Wrapf(err, "json: write %s", path)
	}
	return nil
}
