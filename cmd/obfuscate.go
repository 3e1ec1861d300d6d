package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cmmoran/jvmobf/pkg/action/obfuscate"
	"github.com/cmmoran/jvmobf/pkg/action/release"
	"github.com/cmmoran/jvmobf/pkg/obfuscator"
)

const obfuscateKey = "obfuscate"

func init() {
	var obfuscateCmd = NewObfuscateCommand(viper.GetViper())
	rootCmd.AddCommand(obfuscateCmd)
}

// NewObfuscateCommand builds the obfuscate command. Every flag is bound to
// v under "obfuscate.<option>", so config files and JVMOBF_OBFUSCATE_* env
// variables fill in whatever the command line leaves out.
func NewObfuscateCommand(v *viper.Viper) *cobra.Command {
	var (
		defaults = obfuscator.NewOptions()
		rel      struct{ manifest, name, version string }
	)

	// obfuscateCmd represents the jvmobf obfuscate command
	var obfuscateCmd = &cobra.Command{
		Use:   "obfuscate",
		Short: "obfuscate jars",
		Long:  "Rename classes, fields and methods of the input jars consistently across their class hierarchy",
		RunE: func(c *cobra.Command, args []string) error {
			opts := obfuscator.NewOptions()
			// Unmarshal rather than UnmarshalKey: only the former sees flags bound to nested keys.
			cfg := struct {
				Obfuscate *obfuscator.Options `mapstructure:"obfuscate"`
			}{Obfuscate: opts}
			if err := v.Unmarshal(&cfg); err != nil {
				return err
			}
			opts.Inputs = append(opts.Inputs, args...)
			res, err := obfuscate.Generate(c.Context(), opts)
			if res == nil {
				return err
			}
			if rel.manifest != "" {
				if rerr := release.Record(rel.manifest, rel.name, rel.version, opts.MappingFile, opts.Output); rerr != nil {
					return rerr
				}
			}
			return err
		},
	}
	flags := obfuscateCmd.Flags()
	flags.StringSliceP("input", "i", nil, "application jar, jmod, directory or class file (repeatable)")
	flags.StringSliceP("library", "L", nil, "library jar, jmod or directory used to resolve supertypes (repeatable)")
	flags.StringP("output", "o", "", "jar to write")
	flags.StringP("mapping", "m", "", "file to write the mapping to")
	flags.String("main-class", "", "entry point; read from the input manifest when empty")
	flags.IntP("threads", "t", defaults.Threads, "pipeline workers")
	flags.Duration("oversubscribe-delay", defaults.OversubscribeDelay, "pause after warning that threads exceed the core count")
	flags.String("failure-policy", defaults.FailurePolicy, "fail-fast or best-effort")
	flags.Bool("accept-missing", false, "keep classes whose supertypes cannot be resolved instead of failing")
	flags.StringSlice("exclude-classes", nil, "class patterns that keep their names, ex: com.acme.api.**")
	flags.StringSlice("exclude-methods", nil, "method patterns that keep their names, ex: com.acme.*/get*")
	flags.StringSlice("exclude-fields", nil, "field patterns that keep their names")
	flags.Bool("rename-classes", defaults.RenameClasses, "rename classes")
	flags.Bool("rename-methods", defaults.RenameMethods, "rename methods")
	flags.Bool("rename-fields", defaults.RenameFields, "rename fields")
	flags.Bool("widen-access", false, "make renamed classes and their members public")
	flags.String("repackage", defaults.Repackage, "keep, flatten or random")
	flags.String("target-package", "", "package renamed classes move to when flattening")
	flags.Int("package-pool", 0, "number of generated packages in random mode")
	flags.String("dictionary", defaults.Dictionary, "alphabet, mixed or confusable")
	flags.Uint64("seed", 0, "name generation seed; 0 derives one from the inputs")
	flags.Bool("strip-debug-info", false, "drop source file, line number and local variable tables")
	flags.StringVar(&rel.manifest, "release-manifest", "", "record the mapping in this release manifest")
	flags.StringVar(&rel.name, "release-name", "", "release name recorded in the manifest")
	flags.StringVar(&rel.version, "release-version", "", "release version recorded in the manifest")

	for key, flag := range map[string]string{
		"inputs":              "input",
		"libraries":           "library",
		"output":              "output",
		"mapping_file":        "mapping",
		"main_class":          "main-class",
		"threads":             "threads",
		"oversubscribe_delay": "oversubscribe-delay",
		"failure_policy":      "failure-policy",
		"accept_missing":      "accept-missing",
		"exclude_classes":     "exclude-classes",
		"exclude_methods":     "exclude-methods",
		"exclude_fields":      "exclude-fields",
		"rename_classes":      "rename-classes",
		"rename_methods":      "rename-methods",
		"rename_fields":       "rename-fields",
		"widen_access":        "widen-access",
		"repackage":           "repackage",
		"target_package":      "target-package",
		"package_pool":        "package-pool",
		"dictionary":          "dictionary",
		"seed":                "seed",
		"strip_debug_info":    "strip-debug-info",
	} {
		if err := v.BindPFlag(obfuscateKey+"."+key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	return obfuscateCmd
}
