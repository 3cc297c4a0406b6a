package schema

// CoordinatorConfig defines defaults for the output coordinator.
type CoordinatorConfig struct {
	// InitialTag is focused on every output at startup.
	InitialTag Tag
	// SkipInitialFocus leaves the current workspaces alone at startup.
	SkipInitialFocus bool
}

// DefaultInitialTag is the tag every output starts on.
const DefaultInitialTag Tag = "1"

// NormalizeCoordinatorConfig applies defaults and validates the config.
func NormalizeCoordinatorConfig(cfg CoordinatorConfig) (CoordinatorConfig, error) {
	if cfg.InitialTag == "" {
		cfg.InitialTag = DefaultInitialTag
	}
	tag, err := NormalizeTag(cfg.InitialTag)
	if err != nil {
		return CoordinatorConfig{}, err
	}
	cfg.InitialTag = tag
	return cfg, nil
}
