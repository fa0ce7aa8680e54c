package appconfig

import "fmt"

type MissingConfigError struct {
	ConfigName string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing %s configuration value", e.ConfigName)
}

// InvalidConfigError is a configuration value that is set but can not be used.
type InvalidConfigError struct {
	ConfigName string
	Reason     string
}

func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid %s configuration value: %s", e.ConfigName, e.Reason)
}
