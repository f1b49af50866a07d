/*
Package config reads run and node settings from YAML or JSON documents.

A document looks like:

	graph_name: nightly-etl
	max_concurrency: 4
	metrics: true
	tracing: false
	nodes:
	  fetch:
	    max_retries: 3
	    retry_delay: 500ms
	  report:
	    enabled: false

Load it and read values with defaults:

	cfg, err := config.FromFile("taskgraph.yaml")
	if err != nil {
	    return err
	}
	workers := cfg.Int("max_concurrency", 0)
	fetch := cfg.Sub("nodes").Sub("fetch")
	delay := fetch.Duration("retry_delay", 0)

Accessors never fail: a missing key or a value of the wrong type yields
the default. Durations accept Go duration strings or a number of seconds.

The taskgraph package turns a Config into run and node options with
OptionsFromConfig and NodeOptionsFromConfig.
*/
package config
