package job

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadOptions marks an invalid build request. Jobs failing validation
// never reach the pipeline.
var ErrBadOptions = errors.New("invalid build options")

// BuildOptions carries everything a build job needs. It is assembled
// once at submit time; stages read it but never change it.
type BuildOptions struct {
	JobID     string
	GitHubURL string
	Prompt    string

	Provider string
	Model    string
	APIKey   string

	// Absolute path to an uploaded requirements file, if any.
	RequirementPath string

	GenerateUnit bool
	GenerateBDD  bool

	// GenerationRequired promotes the generate stage to required. Set by
	// Normalize when an API key is available.
	GenerationRequired bool
}

// ParseBool interprets the truthy strings multipart forms send.
func ParseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y", "t":
		return true
	}
	return false
}

// Normalize enforces the radio semantics between the unit and BDD
// suites and fixes the generation failure policy. Exactly one suite is
// selected: when both are requested the unit suite wins, and when
// neither is requested the unit suite is the default. A key arriving
// with the request or found in the environment makes generation
// required; without one the scaffold fallback is acceptable.
func (o *BuildOptions) Normalize(envKey string) {
	if o.GenerateUnit && o.GenerateBDD {
		o.GenerateBDD = false
	} else if !o.GenerateUnit && !o.GenerateBDD {
		o.GenerateUnit = true
	}
	if o.Provider == "" {
		o.Provider = "openai"
	}
	if o.APIKey == "" {
		o.APIKey = envKey
	}
	o.GenerationRequired = o.APIKey != ""
}

// Validate rejects requests the pipeline cannot run.
func (o *BuildOptions) Validate() error {
	if strings.TrimSpace(o.GitHubURL) == "" {
		return fmt.Errorf("%w: github_url is required", ErrBadOptions)
	}
	if o.GenerateUnit == o.GenerateBDD {
		return fmt.Errorf("%w: exactly one of unit/bdd must be selected", ErrBadOptions)
	}
	return nil
}

// Flags reports the normalized selection for the job record.
func (o *BuildOptions) Flags() Flags {
	return Flags{
		GenerateUnit:       o.GenerateUnit,
		GenerateBDD:        o.GenerateBDD,
		GenerationRequired: o.GenerationRequired,
	}
}
