package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/cart-engine/internal/logging"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

var ErrNoAddress = errors.New("no email address for owner")

// AddressBook maps an owner to the address recovery mail goes to.
type AddressBook interface {
	EmailFor(ctx context.Context, ownerID string) (string, error)
}

// StaticAddressBook answers from a fixed map. Owner ids that already look like email
// addresses are used as is.
type StaticAddressBook struct {
	mu    sync.RWMutex
	addrs map[string]string
}

func NewStaticAddressBook(addrs map[string]string) *StaticAddressBook {
	b := &StaticAddressBook{addrs: make(map[string]string, len(addrs))}
	for k, v := range addrs {
		b.addrs[k] = v
	}
	return b
}

func (b *StaticAddressBook) EmailFor(_ context.Context, ownerID string) (string, error) {
	b.mu.RLock()
	addr, ok := b.addrs[ownerID]
	b.mu.RUnlock()
	if ok {
		return addr, nil
	}
	if strings.Contains(ownerID, "@") {
		return ownerID, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoAddress, ownerID)
}

type mailSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// SendGridNotifier mails the buyer a reminder of what is still in the cart.
type SendGridNotifier struct {
	client mailSender
	from   *mail.Email
	book   AddressBook
}

func NewSendGridNotifier(cfg SendGridConfig, book AddressBook) (*SendGridNotifier, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("sendgrid api key is empty")
	}
	if cfg.FromEmail == "" {
		return nil, fmt.Errorf("from address is empty")
	}
	return &SendGridNotifier{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		book:   book,
	}, nil
}

func (n *SendGridNotifier) NotifyAbandoned(ctx context.Context, r Recovery) error {
	to, err := n.book.EmailFor(ctx, r.OwnerID)
	if err != nil {
		return err
	}

	subject := "You left something in your cart"
	body := recoveryBody(r)
	message := mail.NewSingleEmail(n.from, subject, mail.NewEmail("", to), body, fmt.Sprintf("<pre>%s</pre>", body))

	response, err := n.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send error: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d, body=%s", response.StatusCode, response.Body)
	}

	logging.New("notify").Debug("recovery mail sent", "owner_id", r.OwnerID, "status", response.StatusCode)
	return nil
}

func recoveryBody(r Recovery) string {
	var b strings.Builder
	b.WriteString("Your cart is waiting for you:\n\n")
	for _, it := range r.Items {
		fmt.Fprintf(&b, "  %s  %s %s\n", it.ItemID, it.UnitPrice.StringFixed(money.Scale), r.Currency)
	}
	fmt.Fprintf(&b, "\nTotal: %s %s\n", r.TotalAmount.StringFixed(money.Scale), r.Currency)
	return b.String()
}
