package configs

import "flag"

// Load resolves a Config from the four precedence layers (lowest to
// highest): hard-coded defaults, CCS, environment, command line. It
// validates the result and returns ErrConfigInvalid without mutating the
// caller's flag bindings further if validation fails.
//
// repo may be NoneCCS{} when no CCS backend is selected (cmd/gulmd's -ccs
// flag); args is normally os.Args[1:].
func Load(fs *flag.FlagSet, args []string, repo CCS) (Config, error) {
	cfg := Defaults()
	ApplyCCS(&cfg, repo)
	ApplyEnv(&cfg)

	flagBindings := NewFlagSet(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return Config{}, ErrConfigInvalid
	}
	flagBindings.Apply(&cfg)
	resolveIfDev(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
