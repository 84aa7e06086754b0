package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/steveiliop56/adhub/internal/config"
)

type EnvEntry struct {
	Name        string
	Description string
	Value       any
}

func generateExampleEnv() []byte {
	cfg := config.NewDefaultConfiguration()
	entries := make([]EnvEntry, 0)

	root := reflect.TypeOf(cfg).Elem()
	rootValue := reflect.ValueOf(cfg).Elem()

	walkAndBuild(root, rootValue, config.DefaultNamePrefix, &entries, buildEnvEntry, buildEnvMapEntry, buildEnvChildPath)
	return compileEnv(entries)
}

func buildEnvEntry(child reflect.StructField, childValue reflect.Value, parentPath string, entries *[]EnvEntry) {
	if child.Tag.Get("yaml") == "-" {
		return
	}

	entry := EnvEntry{
		Name:        parentPath + strings.ToUpper(child.Name),
		Description: child.Tag.Get("description"),
	}

	switch value := childValue.Interface().(type) {
	case []string:
		entry.Value = strings.Join(value, ",")
	case string:
		if value != "" {
			entry.Value = fmt.Sprintf(`"%s"`, value)
		} else {
			entry.Value = ""
		}
	default:
		entry.Value = value
	}

	*entries = append(*entries, entry)
}

// Map keys are platform ids, e.g. ADHUB_PLATFORMS_META_APIBASEURL
func buildEnvMapEntry(child reflect.StructField, parentPath string, entries *[]EnvEntry) {
	fieldType := child.Type

	if fieldType.Key().Kind() != reflect.String {
		slog.Info("unsupported map key type", "type", fieldType.Key().Kind())
		return
	}

	valueType := fieldType.Elem()

	if valueType.Kind() != reflect.Struct {
		return
	}

	mapPath := parentPath + strings.ToUpper(child.Name) + "_PLATFORM_"
	zeroValue := reflect.New(valueType).Elem()
	walkAndBuild(valueType, zeroValue, mapPath, entries, buildEnvEntry, buildEnvMapEntry, buildEnvChildPath)
}

func buildEnvChildPath(parent string, child string) string {
	return parent + strings.ToUpper(child) + "_"
}

func compileEnv(entries []EnvEntry) []byte {
	buffer := bytes.Buffer{}
	buffer.WriteString("# Adhub example configuration\n\n")

	for _, entry := range entries {
		fmt.Fprintf(&buffer, "# %s\n%s=%v\n\n", entry.Description, entry.Name, entry.Value)
	}

	return buffer.Bytes()
}
