package email

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/ptgott/onemail/contact"
)

const smtpScheme string = "smtp://"

// UserConfig represents config options provided by
// the user. Not meant to be used directly for sending
// email without validation.
type UserConfig struct {
	SMTPServerHost string
	SMTPServerPort uint16
	TLS            TLSMode
	Username       string
	Password       string
	Timeout        time.Duration
	// PEM file with extra root certificates to trust, e.g., for a relay
	// with a self-signed certificate.
	CACertPath string
	// Skip verifying the relay's certificate. Only meant for testing.
	SkipCertVerification bool
	From                 contact.Contact
	ReplyTo              contact.Contact
}

// rawUserConfig mirrors the keys of the "email" section of the config file.
type rawUserConfig struct {
	SMTPServerAddress    string           `yaml:"smtpServerAddress"`
	SMTPServerHost       string           `yaml:"smtpServerHost"`
	SMTPServerPort       string           `yaml:"smtpServerPort"`
	TLS                  string           `yaml:"tls"`
	Username             string           `yaml:"username"`
	Password             string           `yaml:"password"`
	Timeout              string           `yaml:"timeout"`
	CACertPath           string           `yaml:"caCertPath"`
	SkipCertVerification bool             `yaml:"skipCertVerification"`
	From                 *contact.Contact `yaml:"from"`
	ReplyTo              *contact.Contact `yaml:"replyTo"`
}

// UnmarshalYAML implements the yaml.Unmarshaler interface. The relay can be
// given either as smtpServerAddress (host:port, with or without an smtp://
// scheme) or as separate smtpServerHost and smtpServerPort keys.
func (uc *UserConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var v rawUserConfig
	err := unmarshal(&v)

	if err != nil {
		return fmt.Errorf("can't parse the email config: %v", err)
	}

	if v.SMTPServerAddress != "" {
		h, p, err := parseRelayAddress(v.SMTPServerAddress)
		if err != nil {
			return err
		}
		uc.SMTPServerHost = h
		uc.SMTPServerPort = p
	} else {
		// The host can also come from the environment, so leave the
		// presence check to CheckAndSetDefaults.
		uc.SMTPServerHost = v.SMTPServerHost

		if v.SMTPServerPort != "" {
			p, err := parsePort(v.SMTPServerPort)
			if err != nil {
				return err
			}
			uc.SMTPServerPort = p
		}
	}

	m, err := ParseTLSMode(v.TLS)
	if err != nil {
		return err
	}
	uc.TLS = m

	if v.Timeout != "" {
		d, err := time.ParseDuration(v.Timeout)
		if err != nil {
			return fmt.Errorf("can't parse the SMTP timeout as a duration: %v", err)
		}
		uc.Timeout = d
	}

	if v.From == nil {
		return errors.New("the email config must include a \"from\" contact")
	}
	uc.From = *v.From
	if v.ReplyTo != nil {
		uc.ReplyTo = *v.ReplyTo
	}

	uc.Username = v.Username
	uc.Password = v.Password
	uc.CACertPath = v.CACertPath
	uc.SkipCertVerification = v.SkipCertVerification

	return nil
}

// parseRelayAddress splits a relay address into a host and port. Don't
// require the user to include a scheme. If we can't find one, use one for
// SMTP.
func parseRelayAddress(s string) (string, uint16, error) {
	var ra string
	// Not handling the error since it only happens on compilation, which
	// won't fail since the regexp is constant.
	m, _ := regexp.MatchString(fmt.Sprintf("^%v", smtpScheme), s)
	if m {
		ra = s
	} else {
		ra = fmt.Sprintf("%v%v", smtpScheme, s)
	}

	u, err := url.Parse(ra)
	if err != nil {
		return "", 0, fmt.Errorf("can't parse the SMTP server address: %v", err)
	}

	// A different scheme ends up nested in the host, e.g.,
	// smtp://https://host:123, which leaves an empty port.
	if u.Hostname() == "" || u.Port() == "" {
		return "", 0, fmt.Errorf("the SMTP server address %v must be in the form host:port", s)
	}

	p, err := parsePort(u.Port())
	if err != nil {
		return "", 0, err
	}

	return u.Hostname(), p, nil
}

func parsePort(s string) (uint16, error) {
	p, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("can't parse the SMTP server port %q: %v", s, err)
	}
	if p == 0 {
		return 0, errors.New("the SMTP server port can't be zero")
	}
	return uint16(p), nil
}

// CheckAndSetDefaults validates uc and either returns a copy of uc with
// default settings applied or returns an error due to an invalid
// configuration
func (uc *UserConfig) CheckAndSetDefaults() (UserConfig, error) {
	c := *uc

	if c.SMTPServerHost == "" || c.SMTPServerPort == 0 {
		return UserConfig{}, errors.New("must supply an SMTP server host and port")
	}

	if (c.Username == "") != (c.Password == "") {
		return UserConfig{}, errors.New("must supply both a username and a password, or neither")
	}

	if c.From.Address.IsZero() {
		return UserConfig{}, errors.New("must supply a \"from\" contact")
	}

	if c.ReplyTo.Address.IsZero() {
		c.ReplyTo = c.From
	}

	if c.Timeout < 0 {
		return UserConfig{}, errors.New("the SMTP timeout can't be negative")
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}

	if c.CACertPath != "" {
		if _, err := os.Stat(c.CACertPath); err != nil {
			return UserConfig{}, fmt.Errorf("can't use the CA certificate file: %v", err)
		}
	}

	return c, nil
}

// ServerSettings returns the relay settings described by uc. Call this on a
// UserConfig returned by CheckAndSetDefaults.
func (uc *UserConfig) ServerSettings() (SMTPServerSettings, error) {
	s := SMTPServerSettings{
		Host: uc.SMTPServerHost,
		Port: uc.SMTPServerPort,
		TLS:  uc.TLS,
		Credentials: Credentials{
			Username: uc.Username,
			Password: uc.Password,
		},
		Timeout: uc.Timeout,
	}

	if uc.CACertPath == "" && !uc.SkipCertVerification {
		return s, nil
	}

	tlsc := &tls.Config{
		ServerName:         uc.SMTPServerHost,
		InsecureSkipVerify: uc.SkipCertVerification,
	}

	if uc.CACertPath != "" {
		pem, err := os.ReadFile(uc.CACertPath)
		if err != nil {
			return SMTPServerSettings{}, fmt.Errorf("can't read the CA certificate file: %v", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return SMTPServerSettings{}, fmt.Errorf("no certificates found in %v", uc.CACertPath)
		}
		tlsc.RootCAs = pool
	}

	s.TLSConfig = tlsc
	return s, nil
}

// EmailSettings returns the sender contacts described by uc.
func (uc *UserConfig) EmailSettings() Settings {
	return Settings{
		From:    uc.From,
		ReplyTo: uc.ReplyTo,
	}
}
