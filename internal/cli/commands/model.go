package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hybris-tools/tsls/internal/cli/ui"
	"github.com/hybris-tools/tsls/internal/typesystem/meta"
	"github.com/hybris-tools/tsls/internal/util/fuzzy"
)

type modelOptions struct {
	format   string
	typeName string
}

// NewModelCommand creates the model command
func NewModelCommand(opts *globalOptions) *cobra.Command {
	mo := &modelOptions{}

	cmd := &cobra.Command{
		Use:   "model [dir]",
		Short: "Print the merged meta-model of a workspace",
		Long: `Build the meta-model from the declaration files of the workspace merged with the
platform types and print it as YAML or JSON. Use --type to print a single item type,
enum or relation.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runModel(cmd, dir, mo, opts)
		},
	}

	cmd.Flags().StringVarP(&mo.format, "format", "f", "yaml", "Output format: yaml or json")
	cmd.Flags().StringVarP(&mo.typeName, "type", "t", "", "Print only the named type")
	return cmd
}

// modelDump is the serialized form of a meta-model
type modelDump struct {
	Generation uint64         `json:"generation" yaml:"generation"`
	Items      []itemDump     `json:"items,omitempty" yaml:"items,omitempty"`
	Enums      []enumDump     `json:"enums,omitempty" yaml:"enums,omitempty"`
	Relations  []relationDump `json:"relations,omitempty" yaml:"relations,omitempty"`
	Problems   []string       `json:"problems,omitempty" yaml:"problems,omitempty"`
}

type itemDump struct {
	Name         string            `json:"name" yaml:"name"`
	Extends      []string          `json:"extends,omitempty" yaml:"extends,omitempty"`
	Abstract     bool              `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	DeclaredIn   []string          `json:"declaredIn,omitempty" yaml:"declaredIn,omitempty"`
	Attributes   []attributeDump   `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	RelationEnds []relationEndDump `json:"relationEnds,omitempty" yaml:"relationEnds,omitempty"`
	Indexes      []indexDump       `json:"indexes,omitempty" yaml:"indexes,omitempty"`
}

type attributeDump struct {
	Qualifier string `json:"qualifier" yaml:"qualifier"`
	Type      string `json:"type" yaml:"type"`
	Redeclare bool   `json:"redeclare,omitempty" yaml:"redeclare,omitempty"`
}

type relationEndDump struct {
	Qualifier   string `json:"qualifier" yaml:"qualifier"`
	Type        string `json:"type" yaml:"type"`
	Cardinality string `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`
	Relation    string `json:"relation" yaml:"relation"`
	Ordered     bool   `json:"ordered,omitempty" yaml:"ordered,omitempty"`
}

type indexDump struct {
	Name string   `json:"name" yaml:"name"`
	Keys []string `json:"keys" yaml:"keys"`
}

type enumDump struct {
	Name       string   `json:"name" yaml:"name"`
	Dynamic    bool     `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Values     []string `json:"values,omitempty" yaml:"values,omitempty"`
	DeclaredIn []string `json:"declaredIn,omitempty" yaml:"declaredIn,omitempty"`
}

type relationDump struct {
	Name      string          `json:"name" yaml:"name"`
	Localized bool            `json:"localized,omitempty" yaml:"localized,omitempty"`
	Source    relationEndDump `json:"source" yaml:"source"`
	Target    relationEndDump `json:"target" yaml:"target"`
}

func runModel(cmd *cobra.Command, dir string, mo *modelOptions, opts *globalOptions) error {
	format := strings.ToLower(mo.format)
	if format != "yaml" && format != "json" {
		return fmt.Errorf("invalid --format %q: must be yaml or json", mo.format)
	}

	ws, err := loadWorkspace(context.Background(), dir, opts)
	if err != nil {
		writeLoadError(cmd.ErrOrStderr(), err, opts.noColor)
		return errProblemsFound
	}

	snap := ws.api.Service().Snapshot()
	dump := modelDump{Generation: snap.Generation}

	if mo.typeName != "" {
		c, ok := snap.Registry.Classifier(mo.typeName)
		if !ok {
			c, ok = snap.Registry.ClassifierFold(mo.typeName)
		}
		if !ok {
			suggestions := fuzzy.FindSimilar(mo.typeName, snap.Registry.ClassifierNames(), nil)
			fmt.Fprint(cmd.ErrOrStderr(), ui.TypeNotFoundError(mo.typeName, suggestions, opts.noColor))
			return errProblemsFound
		}
		switch c := c.(type) {
		case *meta.Item:
			dump.Items = append(dump.Items, dumpItem(c))
		case *meta.Enum:
			dump.Enums = append(dump.Enums, dumpEnum(c))
		case *meta.Relation:
			dump.Relations = append(dump.Relations, dumpRelation(c))
		}
		return writeModel(cmd.OutOrStdout(), format, dump)
	}

	reg := snap.Registry
	for _, item := range reg.Items() {
		dump.Items = append(dump.Items, dumpItem(item))
	}
	for _, enum := range reg.Enums() {
		dump.Enums = append(dump.Enums, dumpEnum(enum))
	}
	for _, rel := range reg.Relations() {
		dump.Relations = append(dump.Relations, dumpRelation(rel))
	}
	for _, p := range reg.Problems() {
		dump.Problems = append(dump.Problems, fmt.Sprintf("%s: %s", originFile(p.Origin), p.Message))
	}
	return writeModel(cmd.OutOrStdout(), format, dump)
}

func writeModel(w io.Writer, format string, dump modelDump) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(dump)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(dump); err != nil {
		return err
	}
	return enc.Close()
}

func dumpItem(item *meta.Item) itemDump {
	d := itemDump{
		Name:     item.Name(),
		Extends:  item.Extends,
		Abstract: item.Abstract,
	}
	for _, o := range item.Declarations {
		d.DeclaredIn = append(d.DeclaredIn, originFile(o))
	}
	for _, attr := range item.Attributes() {
		d.Attributes = append(d.Attributes, attributeDump{Qualifier: attr.Qualifier, Type: attr.Type, Redeclare: attr.Redeclare})
	}
	for _, end := range item.RelationEnds() {
		d.RelationEnds = append(d.RelationEnds, dumpRelationEnd(end))
	}
	for _, idx := range item.Indexes() {
		d.Indexes = append(d.Indexes, indexDump{Name: idx.Name, Keys: idx.Keys})
	}
	return d
}

func dumpRelationEnd(end *meta.RelationEnd) relationEndDump {
	return relationEndDump{
		Qualifier:   end.Qualifier,
		Type:        end.Type,
		Cardinality: end.Cardinality,
		Relation:    end.Relation,
		Ordered:     end.Ordered,
	}
}

func dumpEnum(enum *meta.Enum) enumDump {
	d := enumDump{Name: enum.Name(), Dynamic: enum.Dynamic}
	for _, v := range enum.Values {
		d.Values = append(d.Values, v.Code)
	}
	for _, o := range enum.Declarations {
		d.DeclaredIn = append(d.DeclaredIn, originFile(o))
	}
	return d
}

func dumpRelation(rel *meta.Relation) relationDump {
	return relationDump{
		Name:      rel.Name(),
		Localized: rel.Localized,
		Source:    dumpRelationEnd(rel.Source),
		Target:    dumpRelationEnd(rel.Target),
	}
}

// originFile names the file of a declaration, or "platform" for built-in types
func originFile(o meta.Origin) string {
	if o.IsZero() {
		return "platform"
	}
	return path.Base(o.URI)
}
