package filter

import (
	"context"
	"strconv"

	"github.com/dgallion1/texprefilter/internal/latex"
	"github.com/dgallion1/texprefilter/internal/pandoc"
)

// rewriteEnvironment turns \begin{NAME}[TITLE] BODY \end{NAME} into a div of
// class NAME (after conversion) numbered per class. The body is parsed and
// filtered by a nested run before it becomes the div's content.
func (c *Context) rewriteEnvironment(ctx context.Context, raw *pandoc.RawBlock) (pandoc.Result, error) {
	env, ok := latex.MatchEnvironment(raw.Text)
	if !ok {
		c.absorbGraphicsPath(raw.Text)
		c.drop(raw, "no matched environment")
		return pandoc.Delete(), nil
	}

	class := c.classFor(env.Name)
	c.counters[class]++
	n := c.counters[class]
	c.metrics.IncrementEnvironments(class)

	label, body, hasLabel := latex.ExtractLabel(env.Body)

	blocks, err := c.nested(ctx, body)
	if err != nil {
		return pandoc.Keep(), err
	}
	if hasLabel {
		blocks = append([]pandoc.Node{c.anchorBlock(label, n)}, blocks...)
	}

	c.log.Debug("environment rewritten", "name", env.Name, "class", class, "number", n, "label", label, "depth", c.depth)

	return pandoc.Replace(&pandoc.Div{
		Attr: pandoc.Attr{
			ID:      label,
			Classes: []string{class},
			KVs: []pandoc.KV{
				{Key: "markdown", Value: ""},
				{Key: "env-number", Value: strconv.Itoa(n)},
				{Key: "title-name", Value: titleName(env)},
			},
		},
		Blocks: blocks,
	}), nil
}

func (c *Context) classFor(name string) string {
	if class, ok := c.conversions[name]; ok && class != "" {
		return class
	}
	return name
}

// titleName keeps the brackets of an environment title, as in [Main].
func titleName(env latex.Environment) string {
	if !env.HasTitle {
		return ""
	}
	return "[" + env.Title + "]"
}
