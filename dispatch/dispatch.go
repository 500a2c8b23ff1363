package dispatch

import (
	"errors"
	"io"
	"time"

	"github.com/ptgott/onemail/address"
	"github.com/ptgott/onemail/contact"
	"github.com/ptgott/onemail/email"
	"github.com/ptgott/onemail/storage"
	"github.com/ptgott/onemail/userconfig"
	"github.com/rs/zerolog/log"
)

// Request describes a single message to send.
type Request struct {
	// ToName may be empty, in which case the recipient is addressed by
	// address alone.
	ToName    string
	ToAddress string
	Subject   string
	Body      string
	// Write the formatted message to Output instead of sending it. Dry
	// runs aren't journaled.
	DryRun bool
	Output io.Writer
}

// Run conducts a single send and returns the send error, if any. config
// should already have gone through CheckAndSetDefaults. Journal failures are
// logged but never turn a successful send into an error.
func Run(config *userconfig.Meta, req Request) error {
	addr, err := address.Parse(req.ToAddress)
	if err != nil {
		log.Error().
			Err(err).
			Msg("can't send to an invalid recipient address")
		return err
	}
	to := contact.New(req.ToName, addr)

	var t email.Transport
	if req.DryRun {
		if req.Output == nil {
			return errors.New("a dry run needs somewhere to write the message")
		}
		t = email.NewWriterTransport(req.Output)
	} else {
		ss, err := config.EmailSettings.ServerSettings()
		if err != nil {
			log.Error().Err(err).Msg("can't set up the connection to the SMTP server")
			return err
		}
		t = email.NewSMTPTransport(ss)
	}

	var kv storage.KeyValue = &storage.NoOpDB{}
	if !req.DryRun {
		kv, err = storage.Open(&config.Journal)
		if err != nil {
			// Sending matters more than keeping a record of it.
			log.Error().Err(err).Msg("can't open the journal, sending without it")
			kv = &storage.NoOpDB{}
		} else if config.Journal.Enabled() {
			log.Info().
				Str("storageDir", config.Journal.StorageDirPath).
				Msg("set up the journal connection successfully")
		}
	}
	j := storage.NewJournal(kv, config.Journal.CleanupInterval)

	rec := storage.NewRecord(addr.String(), req.Subject, time.Now())
	l := log.With().Str("sendID", rec.ID).Logger()

	c := email.NewClient(t, config.EmailSettings.EmailSettings())
	l.Info().
		Str("to", addr.String()).
		Str("domain", addr.Domain()).
		Str("server", config.EmailSettings.SMTPServerHost).
		Msg("attempting to send an email")
	sendErr := c.Send(to, req.Subject, req.Body)
	if sendErr != nil {
		rec.Error = sendErr.Error()
	}

	if err := j.Write(rec); err != nil && !errors.Is(err, storage.ErrNoOpDB) {
		l.Error().Err(err).Msg("error saving the send to the journal")
	}

	// Get rid of old keys just before we close
	if ran, err := j.Cleanup(time.Now()); err != nil {
		l.Error().Err(err).Msg("error cleaning up the journal")
	} else if ran {
		l.Debug().Msg("cleaned up the journal")
	}

	// Closing flushes the journal to disk.
	// https://pkg.go.dev/github.com/dgraph-io/badger#readme-i-don-t-see-any-disk-writes-why
	if err := j.Close(); err != nil {
		l.Error().Err(err).Msg("error closing the journal")
	}

	return sendErr
}
