package editor

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FrontMatterModule rewrites the YAML metadata block of text documents.
// Updates are key-level substitutions confined to the block; the body is
// preserved byte-for-byte.
type FrontMatterModule struct{}

// NewFrontMatterModule creates a front-matter editing module.
func NewFrontMatterModule() *FrontMatterModule {
	return &FrontMatterModule{}
}

// Update replaces or appends keys inside the metadata block. Fails when the
// document has no front matter delimiter.
func (m *FrontMatterModule) Update(id string, props map[string]any, meta Metadata) error {
	content, err := os.ReadFile(meta.SourcePath)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	str := string(content)
	blockStart, blockEnd, err := frontMatterBounds(str)
	if err != nil {
		return err
	}

	block := str[blockStart:blockEnd]
	for key, value := range props {
		entry := renderFrontMatterEntry(key, value)
		re := regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(key) + `[ \t]*:.*$`)
		if re.MatchString(block) {
			block = re.ReplaceAllStringFunc(block, func(string) string { return entry })
		} else {
			block = strings.TrimRight(block, "\n") + "\n" + entry + "\n"
		}
	}
	if !strings.HasSuffix(block, "\n") {
		block += "\n"
	}

	return writeFileAtomic(meta.SourcePath, []byte(str[:blockStart]+block+str[blockEnd:]))
}

// Create writes a new document whose front matter holds the given
// properties, with an empty body.
func (m *FrontMatterModule) Create(id string, props map[string]any, meta Metadata) error {
	block, err := yaml.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshal front matter: %w", err)
	}
	content := "---\n" + string(block) + "---\n"
	return writeFileAtomic(meta.SourcePath, []byte(content))
}

// Delete removes the document file; the entity is the whole document.
func (m *FrontMatterModule) Delete(id string, meta Metadata) error {
	if err := os.Remove(meta.SourcePath); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	return nil
}

// frontMatterBounds returns the byte range of the metadata block between
// the opening and closing delimiters.
func frontMatterBounds(content string) (int, int, error) {
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return 0, 0, fmt.Errorf("no front matter delimiter in document")
	}

	start := strings.Index(content, "\n") + 1
	close := strings.Index(content[start:], "\n---")
	if close == -1 {
		return 0, 0, fmt.Errorf("no closing front matter delimiter in document")
	}
	return start, start + close + 1, nil
}

// renderFrontMatterEntry serializes one key/value pair as YAML without the
// trailing newline.
func renderFrontMatterEntry(key string, value any) string {
	out, err := yaml.Marshal(map[string]any{key: value})
	if err != nil {
		return key + ": " + fmt.Sprintf("%v", value)
	}
	return strings.TrimRight(string(out), "\n")
}
