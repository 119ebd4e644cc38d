package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/EasterCompany/dex-transcribe-service/config"
)

// ANSI color codes for formatted output
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

func main() {
	fmt.Printf("%s--- Dexter Transcriber Config Verifier ---%s\n", ColorBlue, ColorReset)

	path := ""
	if len(os.Args) > 1 {
		path = os.Args[1]
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Printf("%s[FATAL]%s Could not determine user home directory: %v\n", ColorRed, ColorReset, err)
			os.Exit(1)
		}
		path = filepath.Join(home, "Dexter", "config", "transcriber.json")
	}

	fmt.Printf("\nVerifying %s'%s'%s...\n", ColorBlue, path, ColorReset)
	if !verifyConfigFile(path) {
		fmt.Printf("%s❌ Some issues were found in the configuration.%s\n", ColorRed, ColorReset)
		os.Exit(1)
	}
	fmt.Printf("%s✅ The configuration file seems correct.%s\n", ColorGreen, ColorReset)
}

func verifyConfigFile(path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("  %s[FAIL]%s File not found or not readable: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s File exists and is readable.\n", ColorGreen, ColorReset)

	decoder := json.NewDecoder(bytes.NewReader(content))
	decoder.DisallowUnknownFields()
	var cfg config.AllConfig
	if err := decoder.Decode(&cfg); err != nil {
		fmt.Printf("  %s[FAIL]%s JSON is invalid or contains unexpected fields: %v\n", ColorRed, ColorReset, err)
		return false
	}
	fmt.Printf("  %s[OK]%s JSON is valid and all fields are recognized.\n", ColorGreen, ColorReset)

	if missing := emptySections(&cfg); len(missing) > 0 {
		fmt.Printf("  %s[WARN]%s These sections are missing and will use defaults: %v\n", ColorYellow, ColorReset, missing)
		return true
	}

	if err := cfg.Validate(); err != nil {
		fmt.Printf("  %s[WARN]%s %v (environment overrides may still supply it)\n", ColorYellow, ColorReset, err)
	} else {
		fmt.Printf("  %s[OK]%s All required fields have values.\n", ColorGreen, ColorReset)
	}
	return true
}

// emptySections lists the top-level sections left out of the file.
func emptySections(cfg *config.AllConfig) []string {
	var missing []string
	val := reflect.ValueOf(cfg).Elem()
	typ := val.Type()
	for i := 0; i < val.NumField(); i++ {
		if val.Field(i).IsZero() {
			missing = append(missing, typ.Field(i).Name)
		}
	}
	return missing
}
