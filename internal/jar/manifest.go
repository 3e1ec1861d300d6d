package jar

import (
	"bytes"
	"strings"
)

const (
	mainClassHeader = "Main-Class"
	// Manifest lines are limited to 72 bytes, line break excluded.
	manifestLineLimit = 72
)

// manifestLines splits a manifest into logical lines, joining continuation
// lines (those starting with a single space) onto their header.
func manifestLines(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, " ") && len(out) > 0 && out[len(out)-1] != "" {
			out[len(out)-1] += line[1:]
			continue
		}
		out = append(out, line)
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// MainClass returns the internal name of the Main-Class header of the main
// section, or "".
func MainClass(manifest []byte) string {
	for _, line := range manifestLines(manifest) {
		if line == "" {
			break
		}
		if v, ok := headerValue(line, mainClassHeader); ok {
			return strings.ReplaceAll(v, ".", "/")
		}
	}
	return ""
}

func headerValue(line, header string) (string, bool) {
	name, value, ok := strings.Cut(line, ":")
	if !ok || !strings.EqualFold(name, header) {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// RewriteMainClass points the Main-Class header at mainClass (internal name)
// and re-folds the manifest. A manifest without the header is returned as is.
func RewriteMainClass(manifest []byte, mainClass string) []byte {
	lines := manifestLines(manifest)
	found := false
	for i, line := range lines {
		if line == "" {
			break
		}
		if _, ok := headerValue(line, mainClassHeader); ok {
			lines[i] = mainClassHeader + ": " + strings.ReplaceAll(mainClass, "/", ".")
			found = true
			break
		}
	}
	if !found {
		return manifest
	}
	var b bytes.Buffer
	for _, line := range lines {
		fold(&b, line)
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

func fold(b *bytes.Buffer, line string) {
	limit := manifestLineLimit
	for len(line) > limit {
		b.WriteString(line[:limit])
		b.WriteString("\r\n ")
		line = line[limit:]
		limit = manifestLineLimit - 1
	}
	b.WriteString(line)
	b.WriteString("\r\n")
}
