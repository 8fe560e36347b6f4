package wa

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.mau.fi/whatsmeow"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotPaired is returned when connecting a device store that holds no
// credentials. Pairing happens out of band.
var ErrNotPaired = errors.New("connector has no paired device")

// Adapter owns the whatsmeow client and its device store.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
}

// NewAdapter opens the connector device store at dbPath.
func NewAdapter(ctx context.Context, dbPath string, logger *zap.Logger) (*Adapter, error) {
	wastore.SetOSInfo("Lawdesk", [3]uint32{0, 1, 0})

	container, err := sqlstore.New(ctx, "sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", dbPath), nil)
	if err != nil {
		return nil, fmt.Errorf("open connector store: %w", err)
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load device: %w", err)
	}

	return &Adapter{
		client:    whatsmeow.NewClient(device, nil),
		container: container,
		logger:    logger,
	}, nil
}

// IsLoggedIn reports whether the device store holds credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect opens the connection once.
func (a *Adapter) Connect() error {
	if !a.IsLoggedIn() {
		return ErrNotPaired
	}
	return a.client.Connect()
}

// ConnectWithRetry calls Connect up to attempts times, delay apart, until it
// succeeds or ctx is done. An unpaired device is not retried.
func (a *Adapter) ConnectWithRetry(ctx context.Context, attempts int, delay time.Duration) error {
	return connectWithRetry(ctx, a.Connect, attempts, delay, a.logger)
}

func connectWithRetry(ctx context.Context, connect func() error, attempts int, delay time.Duration, logger *zap.Logger) error {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(delay), uint64(attempts-1)),
		ctx,
	)
	n := 0
	op := func() error {
		n++
		err := connect()
		if errors.Is(err, ErrNotPaired) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("connect to WhatsApp failed, retrying",
			zap.Int("attempt", n),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("connect after %d attempts: %w", n, err)
	}
	logger.Info("connected to WhatsApp", zap.Int("attempts", n))
	return nil
}

// Disconnect closes the connection and the device store.
func (a *Adapter) Disconnect() {
	a.client.Disconnect()
	if err := a.container.Close(); err != nil {
		a.logger.Warn("close connector store", zap.Error(err))
	}
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// PhoneNumber returns the paired account's number, or "".
func (a *Adapter) PhoneNumber() string {
	if id := a.client.Store.ID; id != nil {
		return id.User
	}
	return ""
}

// ResolveLID maps a LID to the phone number JID recorded in the device
// store. Any other JID, or a LID without a mapping, is returned unchanged.
func (a *Adapter) ResolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}
