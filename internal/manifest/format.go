package manifest

import (
	"bufio"
	"bytes"
	"strings"
)

// FileName is the manifest file inside a process directory.
const FileName = "manifest.data"

// reservedName is the container file itself and never a step.
const reservedName = "manifest"

// Entry is one manifest line.
type Entry struct {
	Name    string
	Enabled bool
}

// Depth returns the number of path separators in the entry name.
func (e Entry) Depth() int {
	return strings.Count(e.Name, "/")
}

func parse(data []byte) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		name := fields[0]
		if name == reservedName {
			continue
		}
		enabled := false
		if len(fields) > 1 {
			enabled = parseBool(fields[1])
		}
		entries = append(entries, Entry{Name: name, Enabled: enabled})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// parseBool accepts the written True/False form and any casing of true/false.
// Anything else is false.
func parseBool(token string) bool {
	return strings.EqualFold(strings.TrimSpace(token), "true")
}

func formatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

func encode(entries []Entry) []byte {
	var buf bytes.Buffer
	for _, entry := range entries {
		if entry.Name == "" || entry.Name == reservedName {
			continue
		}
		buf.WriteString(entry.Name)
		buf.WriteByte(' ')
		buf.WriteString(formatBool(entry.Enabled))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ParentName returns the qualified name one level up, or "" for top-level names.
func ParentName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}

// IsDirectChild reports whether child sits exactly one level below parent.
func IsDirectChild(parent, child string) bool {
	prefix := parent + "/"
	if !strings.HasPrefix(child, prefix) {
		return false
	}
	rest := strings.TrimPrefix(child, prefix)
	return rest != "" && !strings.Contains(rest, "/")
}
