package cli

import (
	"fmt"
	"io"

	"github.com/ehrlich-b/logkeep/internal/config"
	"github.com/ehrlich-b/logkeep/internal/console"
)

// ValidateConfig loads the config at path, or the one found in dir when
// path is empty, and prints the resolved settings.
func ValidateConfig(path, dir string, out io.Writer) error {
	var (
		cfg    *config.Config
		source = path
		err    error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, source, err = config.Load(dir)
	}
	if err != nil {
		return err
	}

	term := console.NewTerminal(out)
	term.PrintSuccess("%s is valid", source)
	term.PrintKeyValue("path", cfg.Path)
	term.PrintKeyValue("filter", cfg.FilterSeverity())
	term.PrintKeyValue("echo", cfg.Echo)
	term.PrintKeyValue("retention", fmt.Sprintf("%g days", *cfg.Prune.LimitDays))
	term.PrintKeyValue("prune every", cfg.PruneFrequency())
	term.PrintKeyValue("sealed", cfg.Metadata.Secret != "")
	term.PrintKeyValue("archive", cfg.Archive.Dir)
	if cfg.Archive.R2 != nil {
		term.PrintKeyValue("r2 bucket", cfg.Archive.R2.Bucket)
	}
	return nil
}
