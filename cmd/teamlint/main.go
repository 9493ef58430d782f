// teamlint validates team configuration files and prints every schema
// issue found, making it usable as a pre-commit check for config repos.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tmarkou/agora/internal/schema"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	maxDepth := schema.DefaultMaxDepth
	var files []string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-depth":
			if i+1 >= len(args) {
				fmt.Fprintln(stderr, "missing value for -depth")
				return 2
			}
			i++
			d, err := strconv.Atoi(args[i])
			if err != nil || d < 1 {
				fmt.Fprintf(stderr, "invalid -depth value %q\n", args[i])
				return 2
			}
			maxDepth = d
		default:
			files = append(files, args[i])
		}
	}

	if len(files) == 0 {
		fmt.Fprintf(stderr, "Usage: teamlint [-depth N] <team.json|team.yaml> ...\n")
		return 2
	}

	failed := 0
	for _, file := range files {
		if err := lintFile(file, maxDepth, stdout); err != nil {
			printError(stderr, file, err)
			failed++
		} else {
			fmt.Fprintf(stdout, "%s: ok\n", file)
		}
	}

	if failed > 0 {
		return 1
	}
	return 0
}

func lintFile(file string, maxDepth int, stdout io.Writer) error {
	raw, err := os.ReadFile(file)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		raw, err = yamlToJSON(raw)
		if err != nil {
			return err
		}
	}

	_, err = schema.DecodeTeamDepth(raw, maxDepth)
	return err
}

func yamlToJSON(raw []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("convert yaml: %w", err)
	}
	return out, nil
}

func printError(stderr io.Writer, file string, err error) {
	var se *schema.SchemaError
	if errors.As(err, &se) {
		fmt.Fprintf(stderr, "%s: %d issue(s)\n", file, len(se.Issues))
		for _, issue := range se.Issues {
			if issue.Path != "" {
				fmt.Fprintf(stderr, "  %s: %s\n", issue.Path, issue.Message)
			} else {
				fmt.Fprintf(stderr, "  %s\n", issue.Message)
			}
		}
		return
	}
	fmt.Fprintf(stderr, "%s: %v\n", file, err)
}
