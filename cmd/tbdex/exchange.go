package main

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/config"
	"github.com/tbd54566975/tbdex-go/pkg/storage"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex/exchange"
)

type exchangeSummary struct {
	ID       string              `json:"id"`
	Messages int                 `json:"messages"`
	Latest   string              `json:"latest"`
	Next     []tbdex.MessageKind `json:"next"`
}

func summarize(ex *exchange.Exchange) exchangeSummary {
	return exchangeSummary{
		ID:       ex.ID,
		Messages: len(ex.Messages),
		Latest:   ex.Latest().Metadata.ID,
		Next:     ex.NextKinds(),
	}
}

func openExchangeStore(cfg config.ExchangesConfig) (*exchange.Store, error) {
	var opts []storage.Option
	if cfg.Path != "" {
		opts = append(opts, storage.Option{ID: storage.BoltDBFilePathOption, Option: cfg.Path})
	}
	if cfg.RedisAddress != "" {
		opts = append(opts, storage.Option{ID: storage.RedisAddressOption, Option: cfg.RedisAddress})
	}
	if cfg.RedisPassword != "" {
		opts = append(opts, storage.Option{ID: storage.PasswordOption, Option: cfg.RedisPassword})
	}
	db, err := storage.NewStorage(storage.Type(cfg.Storage), opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s exchange storage", cfg.Storage)
	}
	return exchange.NewStore(db)
}

func (a *app) exchange(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	store, err := openExchangeStore(a.cfg.Exchanges)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logrus.WithError(err).Error("closing exchange storage")
		}
	}()

	switch args[0] {
	case "add":
		return a.addToExchange(ctx, store, args[1:])
	case "show":
		if len(args) != 2 {
			return errors.New("usage: tbdex exchange show <exchange id>")
		}
		ex, err := store.Get(ctx, args[1])
		if err != nil {
			return err
		}
		return a.write(ex.Messages)
	case "list":
		ids, err := store.List(ctx)
		if err != nil {
			return err
		}
		summaries := make([]exchangeSummary, 0, len(ids))
		for _, id := range ids {
			ex, err := store.Get(ctx, id)
			if err != nil {
				return err
			}
			summaries = append(summaries, summarize(ex))
		}
		return a.write(summaries)
	}
	return errUsage
}

// addToExchange records a message only after its signature checks out against the sender's resolved DID.
func (a *app) addToExchange(ctx context.Context, store *exchange.Store, args []string) error {
	e, err := a.readEnvelope(args)
	if err != nil {
		return err
	}
	m, ok := e.(messageEnvelope)
	if !ok {
		return errors.New("only messages can be added to an exchange")
	}
	if err = m.Validate(); err != nil {
		return err
	}
	verified, err := m.Verify(ctx, a.registry)
	if err != nil {
		return err
	}
	if !verified {
		return errors.Wrapf(tbdex.ErrInvalidSignature, "%s %s", m.Metadata.Kind, m.Metadata.ID)
	}

	ex, err := store.Add(ctx, m.Message)
	if err != nil {
		return err
	}
	logrus.Infof("added %s to exchange %s", m.Metadata.ID, ex.ID)
	return a.write(summarize(ex))
}
