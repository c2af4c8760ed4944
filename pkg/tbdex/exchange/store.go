package exchange

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tbd54566975/tbdex-go/internal/util"
	"github.com/tbd54566975/tbdex-go/pkg/storage"
	"github.com/tbd54566975/tbdex-go/pkg/tbdex"
)

const (
	// exchangesNamespace indexes every exchange id by the DID of its customer
	exchangesNamespace = "exchanges"
	namespacePrefix    = "exchange-"
)

// Store persists exchanges in a ServiceStorage. Each exchange is a namespace whose keys are the zero padded
// positions of its messages.
type Store struct {
	db storage.ServiceStorage
	// serializes appends made through this store
	mu sync.Mutex
}

func NewStore(db storage.ServiceStorage) (*Store, error) {
	if db == nil {
		return nil, util.LoggingNewError("exchange storage cannot be nil")
	}
	return &Store{db: db}, nil
}

// Add records a signed message. An rfq opens a new exchange; every other kind is checked against the exchange it
// names. The caller is responsible for verifying the signature first.
func (s *Store) Add(ctx context.Context, m *tbdex.Message) (*Exchange, error) {
	if m == nil {
		return nil, errors.New("message cannot be nil")
	}
	if m.Signature == "" {
		return nil, errors.Wrapf(ErrUnsigned, "message %s", m.Metadata.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ex, err := s.Get(ctx, m.Metadata.ExchangeID)
	switch {
	case errors.Is(err, ErrNotFound) && m.Metadata.Kind == tbdex.KindRFQ:
		if ex, err = New(m); err != nil {
			return nil, err
		}
		if _, err = s.db.WriteIfAbsent(ctx, exchangesNamespace, ex.ID, []byte(m.Metadata.From)); err != nil {
			return nil, errors.Wrapf(err, "indexing exchange %s", ex.ID)
		}
	case err != nil:
		return nil, err
	default:
		if err = ex.Append(m); err != nil {
			return nil, err
		}
	}

	value, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrapf(err, "marshaling message %s", m.Metadata.ID)
	}
	position := len(ex.Messages) - 1
	written, err := s.db.WriteIfAbsent(ctx, namespace(ex.ID), messageKey(position), value)
	if err != nil {
		return nil, util.LoggingErrorMsgf(err, "writing message %s", m.Metadata.ID)
	}
	if !written {
		return nil, errors.Errorf("exchange %s was appended to concurrently at position %d", ex.ID, position)
	}
	logrus.Debugf("recorded %s %s in exchange %s", m.Metadata.Kind, m.Metadata.ID, ex.ID)
	return ex, nil
}

// Get loads an exchange.
func (s *Store) Get(ctx context.Context, exchangeID string) (*Exchange, error) {
	if exchangeID == "" {
		return nil, errors.Wrap(ErrNotFound, "exchange id cannot be empty")
	}
	stored, err := s.db.ReadAll(ctx, namespace(exchangeID))
	if err != nil {
		return nil, errors.Wrapf(err, "reading exchange %s", exchangeID)
	}
	if len(stored) == 0 {
		return nil, errors.Wrapf(ErrNotFound, "exchange %s", exchangeID)
	}

	keys := make([]string, 0, len(stored))
	for k := range stored {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ex := &Exchange{ID: exchangeID, Messages: make([]*tbdex.Message, 0, len(keys))}
	for _, k := range keys {
		m, err := tbdex.ParseMessage(stored[k])
		if err != nil {
			return nil, errors.Wrapf(err, "decoding message %s of exchange %s", k, exchangeID)
		}
		ex.Messages = append(ex.Messages, m)
	}
	return ex, nil
}

// List returns the ids of every recorded exchange.
func (s *Store) List(ctx context.Context) ([]string, error) {
	ids, err := s.db.ReadAllKeys(ctx, exchangesNamespace)
	if err != nil {
		return nil, errors.Wrap(err, "listing exchanges")
	}
	sort.Strings(ids)
	return ids, nil
}

// Close closes the underlying storage.
func (s *Store) Close() error {
	return s.db.Close()
}

func namespace(exchangeID string) string {
	return namespacePrefix + exchangeID
}

func messageKey(position int) string {
	return fmt.Sprintf("%08d", position)
}
