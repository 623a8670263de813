package gcode

import (
	"bufio"
	"io"
	"os"
	"regexp"
	"strings"

	"rudder/internal/services"
)

const maxLineBytes = 4 << 20

var (
	configLine = regexp.MustCompile(`^;\s*([^=;]+?)\s*=\s*(.*)$`)
	headerLine = regexp.MustCompile(`^;([A-Za-z][A-Za-z0-9 _]*):\s*(.*)$`)
	generator  = regexp.MustCompile(`(?i)^;\s*generated (?:by|with)\s+(\S+)`)
)

// Parameters is the result of parsing one instruction file.
type Parameters struct {
	// Named holds every curated parameter; a nil value was not observed.
	Named map[string]*string
	// All is the full snapshot of every key/value comment in the file.
	All map[string]string
}

// Field is one observed curated parameter.
type Field struct {
	Name  string
	Value string
}

// Observed returns the curated parameters that have a value, in a stable order.
func (p Parameters) Observed() []Field {
	fields := make([]Field, 0, len(curated))
	for _, c := range curated {
		if v := p.Named[c.name]; v != nil {
			fields = append(fields, Field{Name: c.name, Value: *v})
		}
	}
	return fields
}

// Get returns the value of a curated parameter.
func (p Parameters) Get(name string) (string, bool) {
	v := p.Named[name]
	if v == nil {
		return "", false
	}
	return *v, true
}

// Parse reads the file at path.
func Parse(path string) (Parameters, error) {
	f, err := os.Open(path)
	if err != nil {
		return empty(), services.Wrap(services.ErrParse, "gcode", "open", path, err)
	}
	defer f.Close()
	return ParseReader(f)
}

// ParseReader extracts slicer settings from G-code comments. PrusaSlicer,
// SuperSlicer and OrcaSlicer write "; key = value" lines; Cura writes
// ";KEY:value" lines in the leading header. The first occurrence of a key wins.
func ParseReader(r io.Reader) (Parameters, error) {
	all := map[string]string{}
	inHeader := true

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineBytes)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ";") {
			inHeader = false
			continue
		}
		if m := generator.FindStringSubmatch(line); m != nil {
			setFirst(all, "generated_by", m[1])
			continue
		}
		if m := configLine.FindStringSubmatch(line); m != nil {
			setFirst(all, normalizeKey(m[1]), strings.TrimSpace(m[2]))
			continue
		}
		if inHeader {
			if m := headerLine.FindStringSubmatch(line); m != nil {
				setFirst(all, normalizeKey(m[1]), strings.TrimSpace(m[2]))
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return empty(), services.Wrap(services.ErrParse, "gcode", "scan", "", err)
	}
	return Parameters{Named: resolve(all), All: all}, nil
}

func setFirst(m map[string]string, key, value string) {
	if key == "" {
		return
	}
	if _, ok := m[key]; ok {
		return
	}
	m[key] = value
}

func normalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.Fields(key), "_")
}

func empty() Parameters {
	return Parameters{Named: resolve(nil), All: map[string]string{}}
}
