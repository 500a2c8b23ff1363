package userconfig

import (
	"errors"
	"fmt"
	"io"

	"github.com/kelseyhightower/envconfig"
	"github.com/ptgott/onemail/email"
	"github.com/ptgott/onemail/storage"
	"github.com/rs/zerolog/log"

	yaml "gopkg.in/yaml.v2"
)

// EnvPrefix is prepended to the names of environment variables that
// override the config file, e.g., ONEMAIL_SMTP_PASSWORD.
const EnvPrefix = "onemail"

// Meta represents all current config options that the application can use,
// i.e., after validation and parsing
type Meta struct {
	EmailSettings email.UserConfig `yaml:"email"`
	Journal       storage.KVConfig `yaml:"journal"`
}

// Overrides are settings read from the environment so credentials don't
// have to live in the config file. Empty values leave the file's settings
// alone.
type Overrides struct {
	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPUsername string `envconfig:"SMTP_USERNAME"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
}

// Apply copies every non-empty override into m.
func (o Overrides) Apply(m *Meta) {
	if o.SMTPHost != "" {
		log.Debug().Msg("using the SMTP server host from the environment")
		m.EmailSettings.SMTPServerHost = o.SMTPHost
	}
	if o.SMTPUsername != "" {
		log.Debug().Msg("using the SMTP username from the environment")
		m.EmailSettings.Username = o.SMTPUsername
	}
	if o.SMTPPassword != "" {
		log.Debug().Msg("using the SMTP password from the environment")
		m.EmailSettings.Password = o.SMTPPassword
	}
}

// CheckAndSetDefaults validates m and either returns a copy of m with default
// settings applied or returns an error due to an invalid configuration
func (m *Meta) CheckAndSetDefaults() (Meta, error) {
	c := Meta{}

	e, err := m.EmailSettings.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.EmailSettings = e

	j, err := m.Journal.CheckAndSetDefaults()
	if err != nil {
		return Meta{}, err
	}
	c.Journal = j

	return c, nil

}

// Parse generates usable configurations from possibly arbitrary user input.
// An error indicates a problem with parsing. Environment overrides are
// applied on top of the file. Call CheckAndSetDefaults on the result before
// using it.
func Parse(r io.Reader) (*Meta, error) {
	var m Meta
	err := yaml.NewDecoder(r).Decode(&m)
	if err != nil {
		return &Meta{}, fmt.Errorf("can't read the config file as YAML: %v", err)
	}

	var es email.UserConfig = email.UserConfig{}
	if m.EmailSettings == es {
		return &Meta{}, errors.New("must include an \"email\" section")
	}

	if !m.Journal.Enabled() {
		log.Debug().Msg(
			"no journal configured: disabling database operations",
		)
	}

	var o Overrides
	if err := envconfig.Process(EnvPrefix, &o); err != nil {
		return &Meta{}, fmt.Errorf("can't read settings from the environment: %v", err)
	}
	o.Apply(&m)

	return &m, nil

}
