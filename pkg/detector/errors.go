package detector

import "fmt"

// ConfigurationError is returned when a detector is built for an extension
// which has no matching archive driver.
type ConfigurationError struct {
	Extension string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("cannot detect extension %q: %s", e.Extension, e.Reason)
}
