package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var slugRegex = regexp.MustCompile(`^[a-z][a-z0-9-]{0,62}$`)

func init() {
	_ = validate.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation("keyvalue", func(fl validator.FieldLevel) bool {
		key, _, ok := strings.Cut(fl.Field().String(), "=")
		return ok && strings.TrimSpace(key) != ""
	})
}

// Validate checks field constraints and the rules that span sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid field %s: failed %q check", verrs[0].Namespace(), verrs[0].Tag())
		}
		return err
	}

	if c.Pool.Enabled && !slugRegex.MatchString(c.Pool.Name) {
		return fmt.Errorf("pool.name %q must be lowercase alphanumeric with dashes", c.Pool.Name)
	}

	return nil
}

// ValidateTopology checks only the topology section. The CLI uses it after
// applying flag overrides.
func ValidateTopology(t Topology) error {
	if err := validate.Struct(t); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("invalid topology field %s: failed %q check", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}
