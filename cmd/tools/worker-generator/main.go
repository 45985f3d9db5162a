// cmd/tools/worker-generator/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"loangenius/pkg/registry"
)

func main() {
	taskType := flag.String("task", "", "Task type from the registry (e.g., record-loan-lead)")
	outputDir := flag.String("output", "./internal/workers/", "Root directory for generated workers")
	registryPath := flag.String("registry", registry.DefaultPath, "Path to the activity registry JSON file")
	force := flag.Bool("force", false, "Overwrite existing files")
	flag.Parse()

	if *taskType == "" {
		fmt.Println("Usage: worker-generator -task <task-type> [-output <dir>] [-registry <path>] [-force]")
		os.Exit(1)
	}

	reg, err := registry.LoadRegistry(*registryPath)
	if err != nil {
		fmt.Printf("Error loading registry from %s: %v\n", *registryPath, err)
		os.Exit(1)
	}
	activity, ok := reg.Find(*taskType)
	if !ok {
		fmt.Printf("Task type %q not found in registry %s\n", *taskType, *registryPath)
		os.Exit(1)
	}

	files, err := Scaffold(activity)
	if err != nil {
		fmt.Printf("Error rendering scaffold: %v\n", err)
		os.Exit(1)
	}

	dir := WorkerDir(*outputDir, activity)
	written, err := writeFiles(dir, files, *force)
	if err != nil {
		fmt.Printf("Error writing scaffold: %v\n", err)
		os.Exit(1)
	}
	for _, path := range written {
		fmt.Printf("Generated %s\n", path)
	}

	fmt.Printf("\nNext steps:\n")
	fmt.Printf("  1. Implement Execute in %s\n", filepath.Join(dir, "handler.go"))
	fmt.Printf("  2. Register the handler in cmd/worker-manager/workers.go\n")
	fmt.Printf("  3. Add a workers.%s section to configs/config.yaml\n", activity.TaskType)
}

// writeFiles creates dir and writes files in name order. Existing files are
// left alone unless force is set.
func writeFiles(dir string, files map[string][]byte, force bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var written []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil && !force {
			return written, fmt.Errorf("%s already exists; use -force to overwrite", path)
		}
		if err := os.WriteFile(path, files[name], 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
