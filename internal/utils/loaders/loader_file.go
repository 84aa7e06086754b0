package loaders

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/traefik/paerser/cli"
	"github.com/traefik/paerser/file"
	"github.com/traefik/paerser/flag"
)

// paerser always parses flags under the traefik root name
var configFileFlags = []string{"traefik.experimental.configFile", "traefik.experimental.configfile"}

type FileLoader struct{}

func (f *FileLoader) Load(args []string, cmd *cli.Command) (bool, error) {
	flags, err := flag.Parse(args, cmd.Configuration)
	if err != nil {
		return false, err
	}

	var path string
	for _, key := range configFileFlags {
		if value, ok := flags[key]; ok && value != "" {
			path = value
			break
		}
	}

	if path == "" {
		return false, nil
	}

	log.Warn().Str("path", path).Msg("Loading configuration from file, this feature is experimental and may change in future releases")

	if err := file.Decode(path, cmd.Configuration); err != nil {
		return false, fmt.Errorf("failed to decode configuration file: %w", err)
	}

	return true, nil
}
