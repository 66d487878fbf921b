// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"grant-engine/pkg/registry"
)

var registryPath string

func main() {
	addCmd := flag.NewFlagSet("add", flag.ExitOnError)
	updateCmd := flag.NewFlagSet("update", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	// Add command flags
	nameAdd := addCmd.String("name", "", "Operation name (e.g., analyze_grant_requirements)")
	displayName := addCmd.String("displayName", "", "Display Name (e.g., Analyze Grant Requirements)")
	description := addCmd.String("description", "", "Description")
	category := addCmd.String("category", "", "Category (e.g., analysis)")
	version := addCmd.String("version", "1.0.0", "Version")
	timeout := addCmd.String("timeout", "30s", "Operation timeout")
	cacheable := addCmd.Bool("cacheable", false, "Whether results are cached by input fingerprint")
	addCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")

	// Update command flags
	nameUpdate := updateCmd.String("name", "", "Operation name to update")
	field := updateCmd.String("field", "", "Field to update (version, timeout, cacheable, etc.)")
	value := updateCmd.String("value", "", "New value for the field")
	updateCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")

	// Validate command flags
	validateCmd.StringVar(&registryPath, "path", "configs/registry.json", "Path to registry file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		addCmd.Parse(os.Args[2:])
		if *nameAdd == "" || *displayName == "" || *description == "" || *category == "" {
			fmt.Println("Error: name, displayName, description, and category are required for add.")
			addCmd.Usage()
			os.Exit(1)
		}
		operation := registry.Operation{
			Name:         *nameAdd,
			DisplayName:  *displayName,
			Description:  *description,
			Category:     *category,
			Version:      *version,
			InputSchema:  map[string]interface{}{},
			OutputSchema: map[string]interface{}{},
			ErrorCodes:   []string{},
			Timeout:      *timeout,
			Cacheable:    *cacheable,
			Tags:         []string{},
		}
		err := addOperation(&operation)
		if err != nil {
			fmt.Printf("Error adding operation: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added operation: %s\n", *nameAdd)

	case "update":
		updateCmd.Parse(os.Args[2:])
		if *nameUpdate == "" || *field == "" || *value == "" {
			fmt.Println("Error: name, field, and value are required for update.")
			updateCmd.Usage()
			os.Exit(1)
		}
		err := updateOperation(*nameUpdate, *field, *value)
		if err != nil {
			fmt.Printf("Error updating operation: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Updated operation %s, field %s to %s\n", *nameUpdate, *field, *value)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		err := validateRegistry()
		if err != nil {
			fmt.Printf("Registry validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Registry validation passed.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func addOperation(operation *registry.Operation) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		// If file doesn't exist, create new registry
		if os.IsNotExist(err) {
			reg = &registry.OperationRegistry{
				Version:     "1.0.0",
				LastUpdated: time.Now().Format(time.RFC3339),
				Operations:  []registry.Operation{},
			}
		} else {
			return fmt.Errorf("failed to load registry: %w", err)
		}
	}

	// Check if operation already exists
	if _, exists := reg.Find(operation.Name); exists {
		return fmt.Errorf("operation with name %s already exists", operation.Name)
	}

	// Add new operation
	reg.Operations = append(reg.Operations, *operation)
	reg.LastUpdated = time.Now().Format(time.RFC3339)

	// Save registry
	return saveRegistry(reg, registryPath)
}

func updateOperation(name, field, value string) error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	op, found := reg.Find(name)
	if !found {
		return fmt.Errorf("operation with name %s not found", name)
	}

	switch field {
	case "version":
		op.Version = value
	case "displayName":
		op.DisplayName = value
	case "description":
		op.Description = value
	case "category":
		op.Category = value
	case "timeout":
		op.Timeout = value
	case "cacheable":
		cacheable, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid cacheable value: %w", err)
		}
		op.Cacheable = cacheable
	default:
		return fmt.Errorf("unknown field: %s", field)
	}

	reg.LastUpdated = time.Now().Format(time.RFC3339)
	return saveRegistry(reg, registryPath)
}

func validateRegistry() error {
	reg, err := registry.LoadRegistry(registryPath)
	if err != nil {
		return fmt.Errorf("failed to load registry: %w", err)
	}

	if len(reg.Operations) == 0 {
		return fmt.Errorf("registry contains no operations")
	}

	names := make(map[string]bool)
	for _, operation := range reg.Operations {
		if names[operation.Name] {
			return fmt.Errorf("duplicate operation name: %s", operation.Name)
		}
		names[operation.Name] = true

		if operation.Name == "" {
			return fmt.Errorf("operation missing required field: Name")
		}
		if operation.DisplayName == "" {
			return fmt.Errorf("operation %s missing required field: DisplayName", operation.Name)
		}
		if operation.Category == "" {
			return fmt.Errorf("operation %s missing required field: Category", operation.Name)
		}
		if len(operation.InputSchema) == 0 {
			return fmt.Errorf("operation %s missing required field: InputSchema", operation.Name)
		}
	}

	fmt.Printf("Registry validation passed. Found %d operations.\n", len(reg.Operations))
	return nil
}

// saveRegistry handles saving the registry to file
func saveRegistry(reg *registry.OperationRegistry, path string) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}

	return os.WriteFile(path, data, 0o644)
}

func help() {
	fmt.Println(`Usage: registry-updater <command> [flags]

Commands:
  add       Add a new operation to the registry
  update    Update a field on an existing operation
  validate  Validate the registry file

Run "registry-updater <command> -h" for command flags.`)
}
