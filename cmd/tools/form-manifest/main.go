// cmd/tools/form-manifest/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"admissions-portal/internal/form/schema"
	"admissions-portal/internal/form/steps"
	"admissions-portal/pkg/registry"
)

const defaultPath = "configs/form-manifest.json"

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)

	exportPath := exportCmd.String("path", defaultPath, "Where to write the manifest")
	version := exportCmd.String("version", "1.0.0", "Manifest version")
	validatePath := validateCmd.String("path", defaultPath, "Path to manifest file")
	checkPath := checkCmd.String("path", defaultPath, "Path to manifest file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	current := registry.Build("", steps.DefaultRegistry(), schema.ApplicantSchema())

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		current.Version = *version
		if err := registry.Save(current, *exportPath); err != nil {
			fmt.Printf("Error exporting manifest: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %d steps to %s\n", len(current.Steps), *exportPath)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		m, err := registry.Load(*validatePath)
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		if err := m.Validate(); err != nil {
			fmt.Printf("Manifest validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Manifest validation passed. Found %d steps.\n", len(m.Steps))

	case "check":
		checkCmd.Parse(os.Args[2:])
		m, err := registry.Load(*checkPath)
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}
		drift := registry.Drift(m, current)
		if len(drift) > 0 {
			fmt.Printf("Manifest %s is out of date:\n", *checkPath)
			for _, d := range drift {
				fmt.Printf("  - %s\n", d)
			}
			os.Exit(1)
		}
		fmt.Println("Manifest matches the current form.")

	case "help":
		fallthrough
	default:
		help()
	}
}

func help() {
	fmt.Print(`
Usage: form-manifest <command> [flags]

Commands:
  export    Write the current steps and field rules to a manifest
  validate  Check a manifest file is well formed
  check     Fail if a manifest no longer matches the current form
  help      Show this help message

Examples:
  form-manifest export -path configs/form-manifest.json -version 1.2.0
  form-manifest check -path configs/form-manifest.json

Use 'form-manifest <command> -h' for more information about a command.
` + "\n")
}
