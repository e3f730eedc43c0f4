/*
Package config loads server configuration from defaults, an optional YAML
file, and flag overrides applied by the command layer. Finalize derives the
data and config directories from the base directory and pulls the admin
password from the environment.
*/
package config
