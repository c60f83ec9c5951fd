// Package config loads the flow validator service configuration.
//
// Configuration starts from Defaults, then every JSON layer added to the
// Loader is merged over it in order. A layer only overrides the keys it
// contains, so a production layer can change a single port without
// restating the rest. Duration fields accept Go duration strings ("2s",
// "1m30s"). Unknown keys are rejected.
//
// Environment variables are applied last. They are named
// FLOWVALIDATOR_<SECTION>_<FIELD>, for example:
//
//	FLOWVALIDATOR_NATS_URLS=nats://a:4222,nats://b:4222
//	FLOWVALIDATOR_NATS_TOKEN=...
//	FLOWVALIDATOR_HTTP_PORT=8080
//	FLOWVALIDATOR_METRICS_ENABLED=false
//	FLOWVALIDATOR_COMPONENTS_CATALOG=/etc/flowvalidator/components.yaml
//
// Basic usage:
//
//	loader := config.NewLoader()
//	loader.AddLayer("config/base.json")
//	loader.AddLayer("config/production.json")
//	loader.EnableValidation(true)
//
//	cfg, err := loader.Load()
//	if err != nil {
//		return err
//	}
//
// Layer files must be regular .json files no larger than 10MB. Relative
// paths may not resolve outside the working directory.
package config
