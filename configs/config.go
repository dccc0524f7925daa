package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/cart-engine/internal/catalog"
	"github.com/fjod/go_cart/cart-engine/internal/domain"
	"github.com/fjod/go_cart/cart-engine/internal/money"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/shopspring/decimal"
)

const envPrefix = "CARTENGINE_"

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		GRPCAddr string `koanf:"grpc_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout    time.Duration `koanf:"read_timeout"`
		WriteTimeout   time.Duration `koanf:"write_timeout"`
		IdleTimeout    time.Duration `koanf:"idle_timeout"`
		RequestTimeout time.Duration `koanf:"request_timeout"`
	} `koanf:"http"`

	Store struct {
		Driver string `koanf:"driver"`
		Mongo  struct {
			URI         string `koanf:"uri"`
			Database    string `koanf:"database"`
			MaxPoolSize uint64 `koanf:"max_pool_size"`
		} `koanf:"mongo"`
		Postgres struct {
			Host          string `koanf:"host"`
			Port          int    `koanf:"port"`
			User          string `koanf:"user"`
			Password      string `koanf:"password"`
			DBName        string `koanf:"dbname"`
			MigrationsDir string `koanf:"migrations_dir"`
		} `koanf:"postgres"`
	} `koanf:"store"`

	Redis struct {
		Addr     string        `koanf:"addr"`
		Password string        `koanf:"password"`
		DB       int           `koanf:"db"`
		TTL      time.Duration `koanf:"ttl"`
	} `koanf:"redis"`

	Catalog struct {
		URL         string        `koanf:"url"`
		Timeout     time.Duration `koanf:"timeout"`
		MaxFailures uint32        `koanf:"max_failures"`
		OpenTimeout time.Duration `koanf:"open_timeout"`
		Items       []ItemConfig  `koanf:"items"`
	} `koanf:"catalog"`

	Cart struct {
		DefaultCurrency string `koanf:"default_currency"`
	} `koanf:"cart"`

	Coupons []CouponConfig `koanf:"coupons"`

	Lifecycle struct {
		Interval time.Duration `koanf:"interval"`
	} `koanf:"lifecycle"`

	Notifier struct {
		Kind     string `koanf:"kind"`
		Topic    string `koanf:"topic"`
		SendGrid struct {
			APIKey    string `koanf:"api_key"`
			FromEmail string `koanf:"from_email"`
			FromName  string `koanf:"from_name"`
		} `koanf:"sendgrid"`
		// Addresses maps owner ids to e-mail addresses for the sendgrid notifier.
		Addresses map[string]string `koanf:"addresses"`
	} `koanf:"notifier"`

	Kafka struct {
		Brokers       []string `koanf:"brokers"`
		CheckoutTopic string   `koanf:"checkout_topic"`
		GroupID       string   `koanf:"group_id"`
	} `koanf:"kafka"`
}

// ItemConfig is a statically configured catalog entry. Amounts are decimal strings.
type ItemConfig struct {
	ItemID    string `koanf:"item_id"`
	Price     string `koanf:"price"`
	ListPrice string `koanf:"list_price"`
	Available bool   `koanf:"available"`
	Currency  string `koanf:"currency"`
}

// CouponConfig is a coupon definition. Times are RFC 3339.
type CouponConfig struct {
	Code            string   `koanf:"code"`
	Type            string   `koanf:"type"`
	Value           string   `koanf:"value"`
	ItemIDs         []string `koanf:"item_ids"`
	MinimumAmount   string   `koanf:"minimum_amount"`
	MaximumDiscount string   `koanf:"maximum_discount"`
	ValidFrom       string   `koanf:"valid_from"`
	ValidUntil      string   `koanf:"valid_until"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod), missing is fine for local runs
	if envName != "" {
		_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())
	}

	// 3) environment variables, nested with __
	// e.g. CARTENGINE_STORE__DRIVER, CARTENGINE_REDIS__ADDR
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}

	switch c.Store.Driver {
	case "memory":
	case "mongo":
		if c.Store.Mongo.URI == "" || c.Store.Mongo.Database == "" {
			return fmt.Errorf("store.mongo.uri and store.mongo.database required")
		}
	case "postgres":
		if c.Store.Postgres.Host == "" || c.Store.Postgres.DBName == "" {
			return fmt.Errorf("store.postgres.host and store.postgres.dbname required")
		}
	default:
		return fmt.Errorf("store.driver must be memory, mongo or postgres, got %q", c.Store.Driver)
	}

	switch c.Notifier.Kind {
	case "", "log":
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka.brokers required for the kafka notifier")
		}
	case "sendgrid":
		if c.Notifier.SendGrid.APIKey == "" || c.Notifier.SendGrid.FromEmail == "" {
			return fmt.Errorf("notifier.sendgrid.api_key and notifier.sendgrid.from_email required")
		}
	default:
		return fmt.Errorf("notifier.kind must be log, kafka or sendgrid, got %q", c.Notifier.Kind)
	}

	if _, err := c.DefaultCurrency(); err != nil {
		return fmt.Errorf("cart.default_currency: %w", err)
	}
	if _, err := c.CatalogItems(); err != nil {
		return err
	}
	if _, err := c.CouponDefinitions(); err != nil {
		return err
	}
	return nil
}

func (c Config) DefaultCurrency() (money.Currency, error) {
	if c.Cart.DefaultCurrency == "" {
		return money.USD, nil
	}
	return money.ParseCurrency(c.Cart.DefaultCurrency)
}

// CatalogItems converts the static catalog entries. They are only used when no catalog URL is set.
func (c Config) CatalogItems() ([]catalog.Item, error) {
	items := make([]catalog.Item, 0, len(c.Catalog.Items))
	for _, ic := range c.Catalog.Items {
		price, err := money.Parse(ic.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog item %s price: %w", ic.ItemID, err)
		}
		list := price
		if ic.ListPrice != "" {
			if list, err = money.Parse(ic.ListPrice); err != nil {
				return nil, fmt.Errorf("catalog item %s list_price: %w", ic.ItemID, err)
			}
		}
		cur := money.USD
		if ic.Currency != "" {
			if cur, err = money.ParseCurrency(ic.Currency); err != nil {
				return nil, fmt.Errorf("catalog item %s: %w", ic.ItemID, err)
			}
		}
		items = append(items, catalog.Item{
			ItemID:    ic.ItemID,
			Price:     price,
			ListPrice: list,
			Available: ic.Available,
			Currency:  cur,
		})
	}
	return items, nil
}

func (c Config) CouponDefinitions() ([]domain.AppliedCoupon, error) {
	out := make([]domain.AppliedCoupon, 0, len(c.Coupons))
	for _, cc := range c.Coupons {
		cp, err := cc.toCoupon()
		if err != nil {
			return nil, fmt.Errorf("coupon %q: %w", cc.Code, err)
		}
		out = append(out, cp)
	}
	return out, nil
}

func (cc CouponConfig) toCoupon() (domain.AppliedCoupon, error) {
	if cc.Code == "" {
		return domain.AppliedCoupon{}, fmt.Errorf("code required")
	}
	cp := domain.AppliedCoupon{
		Code:         strings.ToUpper(cc.Code),
		DiscountType: domain.DiscountType(strings.ToLower(cc.Type)),
		Scope:        domain.GlobalScope(),
	}
	if cp.DiscountType != domain.DiscountPercentage && cp.DiscountType != domain.DiscountFixed {
		return domain.AppliedCoupon{}, fmt.Errorf("type must be percentage or fixed, got %q", cc.Type)
	}
	if len(cc.ItemIDs) > 0 {
		cp.Scope = domain.TargetedScope(cc.ItemIDs...)
	}

	var err error
	if cp.DiscountValue, err = money.Parse(cc.Value); err != nil {
		return domain.AppliedCoupon{}, fmt.Errorf("value: %w", err)
	}
	if cp.MinimumAmount, err = optionalAmount(cc.MinimumAmount); err != nil {
		return domain.AppliedCoupon{}, fmt.Errorf("minimum_amount: %w", err)
	}
	if cp.MaximumDiscount, err = optionalAmount(cc.MaximumDiscount); err != nil {
		return domain.AppliedCoupon{}, fmt.Errorf("maximum_discount: %w", err)
	}
	if cp.ValidFrom, err = optionalTime(cc.ValidFrom); err != nil {
		return domain.AppliedCoupon{}, fmt.Errorf("valid_from: %w", err)
	}
	if cp.ValidUntil, err = optionalTime(cc.ValidUntil); err != nil {
		return domain.AppliedCoupon{}, fmt.Errorf("valid_until: %w", err)
	}
	return cp, nil
}

func optionalAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := money.Parse(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func optionalTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
