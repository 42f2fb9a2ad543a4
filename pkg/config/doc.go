// Package config loads the settings of a tapestry invocation from a
// .tapestry.yaml file in the start directory, or from an explicit path.
//
// Values may refer to the environment with {{ env.NAME || fallback }}.
// Settings are validated with struct tags; command line flags are applied
// over them by the CLI.
//
// Example file:
//
//	buildfile: Buildfile
//	tolerance: 5
//	verbosity: 2
//	targets_dir: build
//	history:
//	  enabled: true
//	  path: "{{ env.TAPESTRY_HISTORY || .tapestry/history.db }}"
//	options:
//	  def-before-set: "true"
package config
