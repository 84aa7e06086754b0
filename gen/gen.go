package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
)

// Usage: go run ./gen [output dir], the current directory by default.
func main() {
	dir := "."
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}

	outputs := []struct {
		name     string
		generate func() []byte
	}{
		{name: ".env.example", generate: generateExampleEnv},
		{name: "config.gen.md", generate: generateMarkdown},
	}

	for _, output := range outputs {
		path := filepath.Join(dir, output.name)
		slog.Info("generating", "path", path)
		if err := writeGenerated(path, output.generate()); err != nil {
			slog.Error("failed to write generated file", "path", path, "error", err)
			os.Exit(1)
		}
	}
}

// writeGenerated replaces path so a stale file never survives a failed run.
func writeGenerated(path string, contents []byte) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}

func walkAndBuild[T any](parent reflect.Type, parentValue reflect.Value,
	parentPath string, entries *[]T,
	buildEntry func(child reflect.StructField, childValue reflect.Value, parentPath string, entries *[]T),
	buildMap func(child reflect.StructField, parentPath string, entries *[]T),
	buildChildPath func(parentPath string, childName string) string,
) {
	for i := 0; i < parent.NumField(); i++ {
		field := parent.Field(i)
		fieldType := field.Type
		fieldValue := parentValue.Field(i)

		switch fieldType.Kind() {
		case reflect.Struct:
			childPath := buildChildPath(parentPath, field.Name)
			walkAndBuild(fieldType, fieldValue, childPath, entries, buildEntry, buildMap, buildChildPath)
		case reflect.Map:
			buildMap(field, parentPath, entries)
		case reflect.Bool, reflect.String, reflect.Slice, reflect.Int, reflect.Float64:
			buildEntry(field, fieldValue, parentPath, entries)
		default:
			slog.Info("unknown type", "type", fieldType.Kind())
		}
	}
}
