package options

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"rigproc/internal/fileutil"
	"rigproc/internal/services"
)

// Save writes the store to its backing file.
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	data, err := encodeEntries(s.keys, s.values)
	if err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write options: %w", err)
	}
	return nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read options: %w", err)
	}
	keys, values, err := decodeEntries(data)
	if err != nil {
		return services.Wrap(services.ErrValidation, "", "load options", s.path, err)
	}
	s.mu.Lock()
	s.keys = keys
	s.values = values
	s.mu.Unlock()
	return nil
}

// encodeEntries writes a JSON object whose members follow keys order. Tagged
// values become [value, tag].
func encodeEntries(keys []string, values map[string]Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{")
	for i, key := range keys {
		v := values[key]
		var stored any = v.Raw
		if v.Type != TagPlain {
			stored = []any{v.Raw, string(v.Type)}
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(stored)
		if err != nil {
			return nil, fmt.Errorf("encode option %s: %w", key, err)
		}
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(val)
	}
	if len(keys) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func decodeEntries(data []byte) ([]string, map[string]Value, error) {
	values := make(map[string]Value)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, values, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("options file must contain a JSON object")
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, nil, fmt.Errorf("decode option %s: %w", key, err)
		}
		if _, dup := values[key]; !dup {
			keys = append(keys, key)
		}
		values[key] = unwrapStored(raw)
	}
	if _, err := dec.Token(); err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return keys, values, nil
}

func unwrapStored(raw any) Value {
	pair, ok := raw.([]any)
	if !ok || len(pair) != 2 {
		return Value{Raw: raw}
	}
	name, ok := pair[1].(string)
	if !ok {
		return Value{Raw: raw}
	}
	tag, known := ParseTag(name)
	if !known || tag == TagPlain {
		return Value{Raw: raw}
	}
	return Value{Raw: pair[0], Type: tag}
}
