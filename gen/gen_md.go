package main

import (
	"bytes"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/steveiliop56/adhub/internal/config"
)

const mdRootPath = "adhub."

type MarkdownEntry struct {
	Env         string
	Flag        string
	Description string
	Default     any
}

func generateMarkdown() []byte {
	cfg := config.NewDefaultConfiguration()
	entries := make([]MarkdownEntry, 0)

	root := reflect.TypeOf(cfg).Elem()
	rootValue := reflect.ValueOf(cfg).Elem()

	walkAndBuild(root, rootValue, mdRootPath, &entries, buildMdEntry, buildMdMapEntry, buildMdChildPath)
	return compileMd(entries)
}

func buildMdEntry(child reflect.StructField, childValue reflect.Value, parentPath string, entries *[]MarkdownEntry) {
	tag := child.Tag.Get("yaml")

	if tag == "-" {
		return
	}

	env := strings.ToUpper(strings.ReplaceAll(strings.ReplaceAll(parentPath, ".[platform].", "_PLATFORM_"), ".", "_"))

	entry := MarkdownEntry{
		Env:         env + strings.ToUpper(child.Name),
		Flag:        fmt.Sprintf("--%s%s", strings.TrimPrefix(parentPath, mdRootPath), tag),
		Description: child.Tag.Get("description"),
	}

	switch value := childValue.Interface().(type) {
	case []string:
		entry.Default = fmt.Sprintf("`%s`", strings.Join(value, ","))
	default:
		entry.Default = fmt.Sprintf("`%v`", value)
	}

	*entries = append(*entries, entry)
}

func buildMdMapEntry(child reflect.StructField, parentPath string, entries *[]MarkdownEntry) {
	fieldType := child.Type

	if fieldType.Key().Kind() != reflect.String {
		slog.Info("unsupported map key type", "type", fieldType.Key().Kind())
		return
	}

	tag := child.Tag.Get("yaml")

	if tag == "-" {
		return
	}

	mapPath := parentPath + tag + ".[platform]."
	valueType := fieldType.Elem()

	if valueType.Kind() == reflect.Struct {
		zeroValue := reflect.New(valueType).Elem()
		walkAndBuild(valueType, zeroValue, mapPath, entries, buildMdEntry, buildMdMapEntry, buildMdChildPath)
	}
}

func buildMdChildPath(parent string, child string) string {
	return parent + strings.ToLower(child) + "."
}

func compileMd(entries []MarkdownEntry) []byte {
	buffer := bytes.Buffer{}

	buffer.WriteString("# Adhub configuration reference\n\n")
	buffer.WriteString("| Environment | Flag | Description | Default |\n")
	buffer.WriteString("| - | - | - | - |\n")

	previousSection := ""

	for _, entry := range entries {
		if strings.Count(entry.Env, "_") > 1 {
			section := strings.Split(strings.TrimPrefix(entry.Env, config.DefaultNamePrefix), "_")[0]
			if section != previousSection {
				buffer.WriteString("\n## " + strings.ToLower(section) + "\n\n")
				buffer.WriteString("| Environment | Flag | Description | Default |\n")
				buffer.WriteString("| - | - | - | - |\n")
				previousSection = section
			}
		}
		fmt.Fprintf(&buffer, "| `%s` | `%s` | %s | %s |\n", entry.Env, entry.Flag, entry.Description, entry.Default)
	}

	return buffer.Bytes()
}
