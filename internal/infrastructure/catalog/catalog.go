// Package catalog loads externally authored workflow definitions from YAML
// files and seeds them into the definition store.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/garyjia/sales-crm/internal/domain/entity"
	"github.com/garyjia/sales-crm/internal/domain/workflow"
	"github.com/garyjia/sales-crm/pkg/utils"
)

// File is the document layout of a catalog file
type File struct {
	// TenantID applies to definitions that do not name their own tenant
	TenantID    string       `yaml:"tenant_id"`
	Definitions []Definition `yaml:"definitions"`
}

// Definition describes one workflow
type Definition struct {
	TenantID   string `yaml:"tenant_id"`
	Code       string `yaml:"code"`
	Name       string `yaml:"name"`
	RecordType string `yaml:"record_type"`
	Active     *bool  `yaml:"active"`
	Steps      []Step `yaml:"steps"`
}

// Step describes one step; its position in the list is its sort order
type Step struct {
	Code     string          `yaml:"code"`
	Name     string          `yaml:"name"`
	Kind     entity.StepKind `yaml:"kind"`
	Assignee entity.Assignee `yaml:"assignee"`
	Actions  []Transition    `yaml:"actions"`
}

// Transition routes an action to the next step; an empty Next ends the workflow
type Transition struct {
	Action entity.Action `yaml:"action"`
	Next   string        `yaml:"next"`
}

// Decode parses a catalog document and builds validated definitions.
// defaultTenant is used when neither the document nor a definition names a tenant.
func Decode(encoded []byte, defaultTenant string) ([]*entity.WorkflowDefinition, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(encoded))
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	tenant := file.TenantID
	if tenant == "" {
		tenant = defaultTenant
	}

	definitions := make([]*entity.WorkflowDefinition, 0, len(file.Definitions))
	for _, src := range file.Definitions {
		def, err := build(src, tenant)
		if err != nil {
			return nil, err
		}
		definitions = append(definitions, def)
	}

	return definitions, nil
}

// Load reads a catalog file, or every *.yaml / *.yml file of a directory in name order
func Load(path, defaultTenant string) ([]*entity.WorkflowDefinition, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat catalog %s: %w", path, err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = catalogFiles(path)
		if err != nil {
			return nil, err
		}
	}

	var definitions []*entity.WorkflowDefinition
	seen := make(map[string]string)
	for _, file := range files {
		encoded, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", file, err)
		}

		defs, err := Decode(encoded, defaultTenant)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for _, def := range defs {
			key := def.TenantID + "/" + def.Code
			if other, dup := seen[key]; dup {
				return nil, fmt.Errorf("definition %s is declared in both %s and %s", key, other, file)
			}
			seen[key] = file
		}
		definitions = append(definitions, defs...)
	}

	return definitions, nil
}

func catalogFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func build(src Definition, defaultTenant string) (*entity.WorkflowDefinition, error) {
	tenant := src.TenantID
	if tenant == "" {
		tenant = defaultTenant
	}
	if tenant == "" {
		return nil, fmt.Errorf("definition %s has no tenant_id", src.Code)
	}
	if src.RecordType == "" {
		return nil, fmt.Errorf("definition %s has no record_type", src.Code)
	}
	if err := utils.ValidateTenantID(tenant); err != nil {
		return nil, fmt.Errorf("definition %s: %w", src.Code, err)
	}
	if err := utils.ValidateCode("definition code", src.Code); err != nil {
		return nil, err
	}
	if err := utils.ValidateCode("record_type", src.RecordType); err != nil {
		return nil, fmt.Errorf("definition %s: %w", src.Code, err)
	}

	builder := workflow.NewBuilder(tenant, src.Code, src.RecordType)
	if src.Name != "" {
		builder.Named(src.Name)
	}

	for _, stepSpec := range src.Steps {
		if err := utils.ValidateCode("step code", stepSpec.Code); err != nil {
			return nil, fmt.Errorf("definition %s: %w", src.Code, err)
		}
		step := builder.Step(stepSpec.Code, stepSpec.Kind)
		if stepSpec.Name != "" {
			step.Named(stepSpec.Name)
		}

		switch stepSpec.Assignee.Kind {
		case entity.AssigneeRole:
			step.AssignRole(stepSpec.Assignee.Role)
		case entity.AssigneeUser:
			step.AssignUser(stepSpec.Assignee.UserID)
		case entity.AssigneeCreator:
			step.AssignCreator()
		case entity.AssigneeRoles:
			step.RequireRoles(stepSpec.Assignee.RequiredRoles...)
		case "":
		default:
			return nil, fmt.Errorf("definition %s step %s: unknown assignee kind %q", src.Code, stepSpec.Code, stepSpec.Assignee.Kind)
		}

		for _, transition := range stepSpec.Actions {
			if transition.Next == "" {
				step.Terminate(transition.Action)
			} else {
				step.Permit(transition.Action, transition.Next)
			}
		}
	}

	def, err := builder.Build()
	if err != nil {
		return nil, err
	}
	if src.Active != nil {
		def.IsActive = *src.Active
	}
	return def, nil
}
