package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"onboard/internal/profile/fields"
	"onboard/internal/profile/models"
	"onboard/internal/upload"
)

// answers is the YAML input of a headless wizard run:
//
//	category: hospital
//	fields:
//	  identity.name: St. Mary General
//	  capacity.totalBeds: 200
//	  emergencyServices.traumaCenter: true
//	lists:
//	  services: [Cardiology, Oncology]
//	documents:
//	  license: docs/license.pdf
type answers struct {
	Category  models.Category                `yaml:"category"`
	Fields    map[string]any                 `yaml:"fields"`
	Lists     map[models.ListField][]string  `yaml:"lists"`
	Documents map[models.DocumentType]string `yaml:"documents"`

	dir string
}

func loadAnswers(path string) (*answers, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read answers: %w", err)
	}
	var a answers
	if err := yaml.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("parse answers %s: %w", path, err)
	}
	if !a.Category.IsValid() {
		return nil, fmt.Errorf("answers %s: unsupported category %q", path, a.Category)
	}
	a.dir = filepath.Dir(path)
	return &a, nil
}

// apply writes field and list answers into the store in a stable order.
func (a *answers) apply(s *fields.Store) error {
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var ref models.FieldRef
		if err := ref.UnmarshalText([]byte(k)); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
		if err := s.SetField(ref, a.Fields[k]); err != nil {
			return fmt.Errorf("field %q: %w", k, err)
		}
	}
	for list, values := range a.Lists {
		if err := s.SetList(list, values); err != nil {
			return fmt.Errorf("list %q: %w", list, err)
		}
	}
	return nil
}

// openDocument opens a document answer relative to the answers file. The
// caller closes the returned file once the upload finished.
func (a *answers) openDocument(p string) (*os.File, upload.File, error) {
	if !filepath.IsAbs(p) {
		p = filepath.Join(a.dir, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, upload.File{}, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, upload.File{}, err
	}
	return f, upload.File{
		Name:        filepath.Base(p),
		ContentType: contentTypeFor(p),
		Size:        info.Size(),
		Body:        f,
	}, nil
}

func contentTypeFor(p string) string {
	ext := strings.ToLower(filepath.Ext(p))
	switch ext {
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
