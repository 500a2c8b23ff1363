package e2e

import (
	"bytes"
	"fmt"
	"os"
	"text/template"
)

// appConfigOptions is used to fill in a config template with details unique to
// a specific test environment. Keep this as small as possible so the input
// remains as close to a "real" YAML document as we can make it. Also using
// YAML/JSON-compatible types only here.
//
// Fields are exported so we can use them in templates.
type appConfigOptions struct {
	SMTPServerAddress string
	TLS               string
	CACertPath        string
	// Leave both empty to take the credentials from the environment
	Username   string
	Password   string
	StorageDir string
}

// createAppConfig writes a configuration YAML doc to the given path.
// Use this configuration to start the e2e test environment
func createAppConfig(path string, opts appConfigOptions) error {
	configTemplate := `---
email:
    smtpServerAddress: {{ .SMTPServerAddress }}
    tls: {{ .TLS }}
{{- if .CACertPath }}
    caCertPath: {{ .CACertPath }}
{{- end }}
{{- if .Username }}
    username: {{ .Username }}
    password: {{ .Password }}
{{- end }}
    timeout: 5s
    from:
        name: My Newsletter
        address: mynewsletter@example.com
    replyTo:
        name: Newsletter Support
        address: support@example.com
{{- if .StorageDir }}
journal:
    storageDir: {{ .StorageDir }}
    keyTTL: "720h"
    cleanupInterval: "10m"
{{- end }}
`

	tmpl, err := template.New("conf").Parse(configTemplate)

	// This means the config template string was written incorrectly. Not
	// an issue with the application itself.
	if err != nil {
		return fmt.Errorf("couldn't parse the application config template: %v", err)
	}

	var config bytes.Buffer

	err = tmpl.Execute(&config, opts)

	// This is an issue with the test environment, not the application
	if err != nil {
		return fmt.Errorf("couldn't populate the application config template: %v", err)
	}

	cf, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("couldn't create the config file: %v", err)
	}
	defer cf.Close()

	_, err = cf.Write(config.Bytes())
	if err != nil {
		return fmt.Errorf("couldn't write to the config file: %v", err)
	}

	return nil

}
