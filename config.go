package x402

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Defaults applied by BackendConfig.WithDefaults.
const (
	DefaultAsset          = "USDC"
	DefaultNetwork        = "base-sepolia"
	DefaultRequirementTTL = 5 * time.Minute
	DefaultVerifyTimeout  = 5 * time.Second
)

// BackendConfig describes the payment backend the default collaborators talk to.
type BackendConfig struct {
	// FacilitatorURL is the base URL of the verification service.
	FacilitatorURL string `json:"facilitatorUrl" mapstructure:"facilitator_url" validate:"required,url"`

	// SellerAddress receives payments. It is checked against DefaultNetwork.
	SellerAddress string `json:"sellerAddress" mapstructure:"seller_address" validate:"required"`

	// DefaultAsset is used when a pricing config names no asset.
	DefaultAsset string `json:"defaultAsset,omitempty" mapstructure:"default_asset"`

	// DefaultNetwork is used when a pricing config names no network.
	DefaultNetwork string `json:"defaultNetwork,omitempty" mapstructure:"default_network"`

	// RequirementTTL is how long a requirement stays valid after it is built.
	RequirementTTL time.Duration `json:"requirementTtl,omitempty" mapstructure:"requirement_ttl" validate:"gte=0"`

	// VerifyTimeout bounds a single facilitator call.
	VerifyTimeout time.Duration `json:"verifyTimeout,omitempty" mapstructure:"verify_timeout" validate:"gte=0"`

	// MaxRetries is the number of extra attempts made after a transient facilitator failure.
	MaxRetries int `json:"maxRetries,omitempty" mapstructure:"max_retries" validate:"gte=0,lte=10"`

	// Authorization is a static Authorization header value sent to the facilitator.
	Authorization string `json:"-" mapstructure:"authorization"`
}

var validate = validator.New()

// WithDefaults returns a copy of c with empty optional fields filled in.
func (c BackendConfig) WithDefaults() BackendConfig {
	if c.DefaultAsset == "" {
		c.DefaultAsset = DefaultAsset
	}
	if c.DefaultNetwork == "" {
		c.DefaultNetwork = DefaultNetwork
	}
	if c.RequirementTTL == 0 {
		c.RequirementTTL = DefaultRequirementTTL
	}
	if c.VerifyTimeout == 0 {
		c.VerifyTimeout = DefaultVerifyTimeout
	}
	c.FacilitatorURL = strings.TrimRight(c.FacilitatorURL, "/")
	return c
}

// Validate checks the struct tags and that the seller address matches the default network.
func (c BackendConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return configErrorFrom(err)
	}
	network := c.DefaultNetwork
	if network == "" {
		network = DefaultNetwork
	}
	if err := ValidateAddress(network, c.SellerAddress); err != nil {
		return &ConfigError{Field: "SellerAddress", Err: err}
	}
	return nil
}

// Validate checks that the price is a positive decimal amount.
func (p PricingConfig) Validate() error {
	if err := validate.Struct(p); err != nil {
		return configErrorFrom(err)
	}
	if _, err := ParsePrice(p.Price); err != nil {
		return &ConfigError{Field: "Price", Err: err}
	}
	return nil
}

// ParsePrice parses a human-readable price. A leading "$" is accepted.
func ParsePrice(price string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(price), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: price %q: %v", ErrInvalidPricing, price, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: price must be greater than 0, got %s", ErrInvalidPricing, price)
	}
	return d, nil
}

func configErrorFrom(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field: fe.Field(),
			Err:   fmt.Errorf("failed %q validation", fe.Tag()),
		}
	}
	return &ConfigError{Err: err}
}
