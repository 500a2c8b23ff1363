package e2e

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ptgott/onemail/smtptest"
	"github.com/ptgott/onemail/userconfig"
)

const (
	tempDirPathName = "tempTestDir"
	configFileName  = "config.yaml"
)

// testEnvironmentConfig exposes options that should be available and
// perhaps changeable when spinning up a test environment. While they
// may not vary between tests, they shouldn't be buried inside
// functions.
type testEnvironmentConfig struct {
	// Only accept AUTH with these credentials
	username string
	password string
	// Addresses the relay refuses at RCPT TO
	rejectRecipients []string
}

// testEnvironment manages all dependencies required to simulate a "real"
// environment and run the e2e tests. Callers should create this via
// startTestEnvironment.
type testEnvironment struct {
	SMTPServer  smtptest.Server
	caCertPath  string
	tempDirPath string // must be populated programmatically
}

// startTestEnvironment spins up a relay that offers STARTTLS with a freshly
// generated certificate. Callers should defer a call to tearDown.
//
// Note that if startTestEnvironment fails, it will return an error along with
// whatever shreds of a test environment we've set up so far so you can tear
// it down (i.e., it won't just be the zero value)
func startTestEnvironment(t *testing.T, c testEnvironmentConfig) (*testEnvironment, error) {
	te := &testEnvironment{}

	p, err := os.MkdirTemp("", tempDirPathName)
	if err != nil {
		// Shouldn't happen
		return te, fmt.Errorf("could not create the test storage directory: %w", err)
	}

	te.tempDirPath = p

	key, cert, err := smtptest.GenerateTLSFiles(t)
	if err != nil {
		return te, err
	}
	te.caCertPath = cert

	ts, err := smtptest.NewInProcessServer(smtptest.ServerConfig{
		KeyPath:          key,
		CertPath:         cert,
		Username:         c.username,
		Password:         c.password,
		RejectRecipients: c.rejectRecipients,
	})
	if err != nil {
		return te, err
	}

	te.SMTPServer = ts

	go ts.Start()

	return te, nil
}

// journalDir is where the application keeps its delivery journal during the
// test.
func (te *testEnvironment) journalDir() string {
	return filepath.Join(te.tempDirPath, "journal")
}

// loadConfig writes a config file for opts, then reads and validates it the
// same way main does.
func (te *testEnvironment) loadConfig(opts appConfigOptions) (*userconfig.Meta, error) {
	path := filepath.Join(te.tempDirPath, configFileName)
	if err := createAppConfig(path, opts); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := userconfig.Parse(f)
	if err != nil {
		return nil, err
	}
	c, err := m.CheckAndSetDefaults()
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// tearDown returns the testEnvironment to its state prior to start. Designed
// to call with defer
func (te *testEnvironment) tearDown() {
	if te.SMTPServer != nil {
		te.SMTPServer.Close()
	}

	// This error will be nil if the path doesn't exist. See:
	// https://golang.org/pkg/os/#RemoveAll
	err := os.RemoveAll(te.tempDirPath)

	// We're not expecting this to return an error since it's designed to call with
	// defer. Instead we panic, and hopefully we can prevent any panic-causing
	// error from happening again.
	if err != nil {
		panic(fmt.Sprintf("can't delete the test storage directory: %v", err))
	}
}
