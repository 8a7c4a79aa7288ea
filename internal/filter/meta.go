package filter

import (
	"strings"

	"github.com/dgallion1/texprefilter/internal/pandoc"
)

// Document metadata keys read by the filter.
const (
	MetaPreservedTeX   = "preserved_tex"
	MetaInlineMath     = "custom_inline_math"
	MetaEnvConversions = "env_conversions"
	MetaFigureDir      = "figure_dir"
	MetaFigureExt      = "figure_ext"
)

// mergeMeta folds metadata into the run configuration. Entries are only
// ever added, so merging the same metadata again changes nothing.
func (c *Context) mergeMeta(meta map[string]pandoc.Node) {
	if len(meta) == 0 {
		return
	}
	if v, ok := meta[MetaPreservedTeX]; ok {
		c.addPreserved(pandoc.MetaStrings(v)...)
	}
	if v, ok := meta[MetaInlineMath]; ok {
		c.addLiterals(metaStringMap(v))
	}
	if v, ok := meta[MetaEnvConversions]; ok {
		for name, class := range metaStringMap(v) {
			if class != "" {
				c.conversions[name] = class
			}
		}
	}
	if v, ok := meta[MetaFigureDir]; ok {
		c.resolver.AddDirs(pandoc.MetaStrings(v)...)
	}
	if v, ok := meta[MetaFigureExt]; ok {
		c.resolver.SetExt(pandoc.Stringify(v))
	}
}

func metaStringMap(n pandoc.Node) map[string]string {
	keys, entries := pandoc.MetaEntries(n)
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		out[k] = strings.TrimSpace(pandoc.Stringify(entries[k]))
	}
	return out
}
