package dispatch

import (
	"bytes"
	"net"
	"strconv"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
	"github.com/ptgott/onemail/address"
	"github.com/ptgott/onemail/contact"
	"github.com/ptgott/onemail/email"
	"github.com/ptgott/onemail/smtptest"
	"github.com/ptgott/onemail/storage"
	"github.com/ptgott/onemail/userconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, conf smtptest.ServerConfig) *smtptest.InProcessServer {
	t.Helper()
	srv, err := smtptest.NewInProcessServer(conf)
	require.NoError(t, err)
	go func(srv *smtptest.InProcessServer) {
		srv.Start()
	}(srv)
	t.Cleanup(srv.Close)
	return srv
}

// testConfig points a validated config at addr. An empty journalDir turns
// the journal off.
func testConfig(t *testing.T, addr string, journalDir string) *userconfig.Meta {
	t.Helper()
	h, p, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.ParseUint(p, 10, 16)
	require.NoError(t, err)
	from, err := address.Parse("alice@example.com")
	require.NoError(t, err)

	m := userconfig.Meta{
		EmailSettings: email.UserConfig{
			SMTPServerHost: h,
			SMTPServerPort: uint16(port),
			TLS:            email.TLSNone,
			Username:       "myuser",
			Password:       "mypassword",
			Timeout:        time.Duration(5) * time.Second,
			From:           contact.New("Alice", from),
		},
	}
	if journalDir != "" {
		m.Journal = storage.KVConfig{
			StorageDirPath:  journalDir,
			KeyTTLDuration:  time.Hour,
			CleanupInterval: time.Hour,
		}
	}

	c, err := m.CheckAndSetDefaults()
	require.NoError(t, err)
	return &c
}

// journalRecords reads back everything Run stored. Run closes the journal,
// so it's safe to open the directory again here.
func journalRecords(t *testing.T, dir string) []storage.Record {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	require.NoError(t, err)
	defer db.Close()

	var recs []storage.Record
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			v, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			r, err := storage.RecordFromEntry(storage.KVEntry{Key: item.KeyCopy(nil), Value: v})
			if err != nil {
				// not a send record
				continue
			}
			recs = append(recs, r)
		}
		return nil
	})
	require.NoError(t, err)
	return recs
}

func TestRun(t *testing.T) {
	srv := startServer(t, smtptest.ServerConfig{})
	dir := t.TempDir()
	cfg := testConfig(t, srv.Address(), dir)

	err := Run(cfg, Request{
		ToName:    "Carol",
		ToAddress: "carol@example.com",
		Subject:   "Hello",
		Body:      "Hi there",
	})
	require.NoError(t, err)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "alice@example.com", msgs[0].From)
	assert.Equal(t, []string{"carol@example.com"}, msgs[0].To)

	header, body := smtptest.SplitMessage(msgs[0].Body)
	assert.Equal(t, "Carol <carol@example.com>", smtptest.HeaderValue(header, "To"))
	assert.Equal(t, "Alice <alice@example.com>", smtptest.HeaderValue(header, "Reply-To"))
	assert.Equal(t, "Hi there", body)

	recs := journalRecords(t, dir)
	require.Len(t, recs, 1)
	assert.Equal(t, "carol@example.com", recs[0].To)
	assert.Equal(t, "Hello", recs[0].Subject)
	assert.True(t, recs[0].Delivered())
}

func TestRunRejectedRecipient(t *testing.T) {
	srv := startServer(t, smtptest.ServerConfig{
		RejectRecipients: []string{"nobody@example.com"},
	})
	dir := t.TempDir()
	cfg := testConfig(t, srv.Address(), dir)

	err := Run(cfg, Request{
		ToAddress: "nobody@example.com",
		Subject:   "Hello",
		Body:      "Hi there",
	})
	require.Error(t, err)

	var se *email.SendError
	require.True(t, errors.As(err, &se), "expected a *email.SendError but got %T", err)
	assert.Equal(t, 550, se.Code)
	assert.Empty(t, srv.Messages())

	recs := journalRecords(t, dir)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Delivered())
	assert.Equal(t, err.Error(), recs[0].Error)
	assert.Equal(t, "nobody@example.com", recs[0].To)
}

func TestRunInvalidRecipient(t *testing.T) {
	srv := startServer(t, smtptest.ServerConfig{})
	cfg := testConfig(t, srv.Address(), "")

	err := Run(cfg, Request{
		ToAddress: "not an email",
		Subject:   "Hello",
		Body:      "Hi there",
	})

	var ve *address.ValidationError
	require.True(t, errors.As(err, &ve), "expected a *address.ValidationError but got %v", err)
	assert.Equal(t, "not an email is not a valid email", err.Error())
	assert.Empty(t, srv.Messages())
}

func TestRunWithoutJournal(t *testing.T) {
	srv := startServer(t, smtptest.ServerConfig{})
	cfg := testConfig(t, srv.Address(), "")

	err := Run(cfg, Request{
		ToAddress: "carol@example.com",
		Subject:   "Hello",
		Body:      "Hi there",
	})
	require.NoError(t, err)
	assert.Len(t, srv.Messages(), 1)
}

func TestRunDryRun(t *testing.T) {
	srv := startServer(t, smtptest.ServerConfig{})
	dir := t.TempDir()
	cfg := testConfig(t, srv.Address(), dir)

	var buf bytes.Buffer
	err := Run(cfg, Request{
		ToName:    "Carol",
		ToAddress: "carol@example.com",
		Subject:   "Hello",
		Body:      "Hi there",
		DryRun:    true,
		Output:    &buf,
	})
	require.NoError(t, err)

	header, body := smtptest.SplitMessage(buf.String())
	assert.Equal(t, "Carol <carol@example.com>", smtptest.HeaderValue(header, "To"))
	assert.Equal(t, "Hello", smtptest.HeaderValue(header, "Subject"))
	assert.Equal(t, "Hi there", body)
	assert.Empty(t, srv.Messages(), "a dry run shouldn't reach the relay")
	assert.Empty(t, journalRecords(t, dir), "a dry run shouldn't be journaled")

	err = Run(cfg, Request{
		ToAddress: "carol@example.com",
		DryRun:    true,
	})
	assert.Error(t, err, "a dry run without an output should fail")
}
