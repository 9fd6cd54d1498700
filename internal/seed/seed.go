// Package seed — bootstrap владельцев и определений endpoint'ов из YAML.
// Seed аддитивен: существующие логины и имена endpoint'ов не трогаем.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fabrika/internal/schema"
	"fabrika/internal/store"
)

type FieldDef struct {
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Required bool    `yaml:"required"`
	Default  *string `yaml:"default"`
}

type EndpointDef struct {
	Name   string     `yaml:"name"`
	Method string     `yaml:"method"`
	Fields []FieldDef `yaml:"fields"`
}

type File struct {
	Owner     string        `yaml:"owner"`
	Endpoints []EndpointDef `yaml:"endpoints"`
}

// Apply читает все *.yaml/*.yml из dir и применяет их к хранилищу.
// Отсутствие директории — не ошибка (seed опционален).
func Apply(ctx context.Context, st store.Store, dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := applyFile(ctx, st, path); err != nil {
			return fmt.Errorf("seed %s: %w", path, err)
		}
	}
	return nil
}

func applyFile(ctx context.Context, st store.Store, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	if strings.TrimSpace(f.Owner) == "" {
		return fmt.Errorf("missing owner")
	}

	owner, err := st.EnsureOwner(ctx, f.Owner, "")
	if err != nil {
		return fmt.Errorf("ensure owner %q: %w", f.Owner, err)
	}
	// локальный bootstrap: токен нужен, чтобы seed-владельцем можно было
	// пользоваться — печатаем его в лог
	log.Printf("seed: owner %q ready (token %s)", owner.Login, owner.Token)

	for _, def := range f.Endpoints {
		ep := &schema.Endpoint{
			OwnerID: owner.ID,
			Name:    strings.TrimSpace(def.Name),
			Method:  strings.ToUpper(strings.TrimSpace(def.Method)),
			Fields:  make([]schema.Field, 0, len(def.Fields)),
		}
		for _, fd := range def.Fields {
			ep.Fields = append(ep.Fields, schema.Field{
				Name:     strings.TrimSpace(fd.Name),
				Type:     schema.FieldType(fd.Type),
				Required: fd.Required,
				Default:  fd.Default,
			})
		}
		if issues := schema.LintDefinition(ep); len(issues) > 0 {
			return fmt.Errorf("endpoint %q: %s", def.Name, issues[0].Message)
		}
		for i := range ep.Fields {
			t, _ := schema.ParseFieldType(string(ep.Fields[i].Type))
			ep.Fields[i].Type = t
		}

		err := st.CreateEndpoint(ctx, ep)
		if errors.Is(err, store.ErrExists) {
			continue // уже объявлен — seed ничего не переписывает
		}
		if err != nil {
			return fmt.Errorf("endpoint %q: %w", def.Name, err)
		}
		log.Printf("seed: endpoint %q (%d fields)", ep.Name, len(ep.Fields))
	}
	return nil
}
