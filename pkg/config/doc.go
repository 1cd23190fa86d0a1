// Package config provides configuration management for tabula.
//
// Configuration is read with viper from an optional YAML file and then
// overridden by TABULA_* environment variables, where the variable name is
// the upper-cased key path with dots replaced by underscores.
//
// # Usage
//
//	cfg, err := config.Load("tabula.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	engineCfg, err := cfg.EngineConfig()
//
// # File layout
//
//	log:
//	  level: debug
//	  encoding: console
//	engine:
//	  delimiter: "."
//	  rules_file: rules.yaml
//	  check_proposed_type: false
//	store:
//	  driver: sqlite
//	  dsn: tabula.db
//	source:
//	  kind: mongo
//	  uri: mongodb://localhost:27017
//	  database: scrapes
//	  collections: [instagram, tiktok]
//	  limit: 500
//	tracing:
//	  enabled: true
//	  exporter: stdout
//	metrics:
//	  addr: ":9090"
//
// # Environment overrides
//
//	TABULA_STORE_DRIVER=postgres
//	TABULA_STORE_DSN=postgres://localhost/tabula
//	TABULA_SOURCE_COLLECTIONS=instagram,tiktok
package config
