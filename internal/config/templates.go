package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "app":
		return appTemplate, nil
	case "driver":
		return driverTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const appTemplate = `# port is normally supplied by the driver via --e2e-test-port=<port>.
host = "localhost"
log_level = "info"
verbose = false
connect_timeout = "5s"
retry_delay = "1s"
# max_retry_delay above retry_delay doubles the wait after each failure.
max_retry_delay = "0s"
max_connect_attempts = 0
join_timeout = "1s"
diagnostics_addr = "127.0.0.1:7070"
`

const driverTemplate = `listen_addr = "127.0.0.1:0"
app_path = "./bin/e2eapp"
app_args = []
connect_timeout = "30s"
command_timeout = "5s"
log_level = "info"
`
